package parking

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

type CatalogSource interface {
	FetchSectors(ctx context.Context) ([]Sector, error)
}

// CatalogAdmin is implemented by catalog sources that accept slot changes.
// DeleteSector reports ErrNotFound for an unknown ID.
type CatalogAdmin interface {
	CreateSector(ctx context.Context, s Sector) (Sector, error)
	DeleteSector(ctx context.Context, id string) error
}

// PlacementStore is the shared placement log. Implementations assign
// Sequence on create in commit order and keep the caller's record ID, so a
// write whose outcome is unknown can still be discarded. Discarding a record
// that was never written is not an error.
type PlacementStore interface {
	FetchPlacements(ctx context.Context) ([]Placement, error)
	CreatePlacement(ctx context.Context, p Placement) (Placement, error)
	DiscardPlacement(ctx context.Context, p Placement) error
}

// MemoryStore keeps the catalog and placement log in process.
type MemoryStore struct {
	mu         sync.RWMutex
	sectors    []Sector
	placements []Placement
	seq        int64
}

func NewMemoryStore(sectors []Sector) *MemoryStore {
	return &MemoryStore{sectors: slices.Clone(sectors)}
}

func (m *MemoryStore) FetchSectors(ctx context.Context) ([]Sector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.sectors), nil
}

func (m *MemoryStore) SeedSectors(ctx context.Context, sectors []Sector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sectors = slices.Clone(sectors)
	return nil
}

func (m *MemoryStore) CreateSector(ctx context.Context, s Sector) (Sector, error) {
	if err := ctx.Err(); err != nil {
		return Sector{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.sectors {
		if existing.ID == s.ID || NormalizeCode(existing.Code) == NormalizeCode(s.Code) {
			return Sector{}, fmt.Errorf("%w: %s", ErrSlotExists, s.Code)
		}
	}
	m.sectors = append(m.sectors, s)
	return s, nil
}

func (m *MemoryStore) DeleteSector(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.sectors)
	m.sectors = slices.DeleteFunc(m.sectors, func(s Sector) bool { return s.ID == id })
	if len(m.sectors) == n {
		return fmt.Errorf("%w: sector %s", ErrNotFound, id)
	}
	return nil
}

func (m *MemoryStore) FetchPlacements(ctx context.Context) ([]Placement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.placements), nil
}

func (m *MemoryStore) CreatePlacement(ctx context.Context, p Placement) (Placement, error) {
	if err := ctx.Err(); err != nil {
		return Placement{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.placements {
		if existing.ID == p.ID {
			return Placement{}, fmt.Errorf("%w: placement %s already exists", ErrConflict, p.ID)
		}
	}

	m.seq++
	p.Sequence = m.seq
	m.placements = append(m.placements, p)
	return p, nil
}

func (m *MemoryStore) DiscardPlacement(ctx context.Context, target Placement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.placements = slices.DeleteFunc(m.placements, func(p Placement) bool {
		return p.ID == target.ID
	})
	return nil
}
