package parking

import (
	"context"
	"errors"
	"testing"
)

func TestCreateSector(t *testing.T) {
	store := newYard()
	c := newTestCoordinator(store)
	ctx := context.Background()

	s, err := c.CreateSector(ctx, " c12 ")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if s.Code != "C12" || s.ID == "" {
		t.Errorf("Unexpected sector %+v", s)
	}

	catalog, err := c.Catalog(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if id, err := catalog.ResolveSlotID("C12"); err != nil || id != s.ID {
		t.Errorf("Expected C12 to resolve to %s, got %q (%v)", s.ID, id, err)
	}

	regenerated := GenerateSectors([]string{"C"}, 12)
	if s.ID != regenerated[11].ID {
		t.Errorf("Expected the generated ID for C12, got %s", s.ID)
	}
}

func TestCreateSectorRejects(t *testing.T) {
	tests := []struct {
		name string
		code string
		want error
	}{
		{"duplicate", "a1", ErrSlotExists},
		{"empty", "  ", ErrInvalidCode},
		{"no number", "C", ErrInvalidCode},
		{"no prefix", "12", ErrInvalidCode},
		{"zero", "C0", ErrInvalidCode},
		{"trailing letters", "C1X", ErrInvalidCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newYard()
			c := newTestCoordinator(store)

			_, err := c.CreateSector(context.Background(), tt.code)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
			if sectors, _ := store.FetchSectors(context.Background()); len(sectors) != 4 {
				t.Errorf("Expected catalog unchanged, got %d slots", len(sectors))
			}
		})
	}
}

func TestDeleteSector(t *testing.T) {
	store := newYard()
	c := newTestCoordinator(store)
	ctx := context.Background()

	if err := c.DeleteSector(ctx, "b1"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	catalog, _ := c.Catalog(ctx)
	if _, err := catalog.ResolveSlotID("B1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected B1 removed, got %v", err)
	}

	if err := c.DeleteSector(ctx, "B1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDeleteOccupiedSectorRefused(t *testing.T) {
	store := newYard()
	c := newTestCoordinator(store)
	ctx := context.Background()

	if _, err := c.Register(ctx, RegisterRequest{SlotCode: "A2", ActorID: "user1"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := c.DeleteSector(ctx, "A2"); !errors.Is(err, ErrSlotOccupied) {
		t.Errorf("Expected ErrSlotOccupied, got %v", err)
	}

	if _, err := c.Depart(ctx, DepartRequest{SlotCode: "A2", ActorID: "user1"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := c.DeleteSector(ctx, "A2"); err != nil {
		t.Errorf("Expected a released slot to be removable, got %v", err)
	}
}

type fixedCatalog []Sector

func (f fixedCatalog) FetchSectors(context.Context) ([]Sector, error) {
	return f, nil
}

func TestCatalogChangesNeedAdminSource(t *testing.T) {
	store := newYard()
	c := NewCoordinator(fixedCatalog(sectorsFor("A1")), store)
	ctx := context.Background()

	if _, err := c.CreateSector(ctx, "A2"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported, got %v", err)
	}
	if err := c.DeleteSector(ctx, "A1"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported, got %v", err)
	}
}
