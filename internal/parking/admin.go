package parking

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// CreateSector adds a slot to the catalog. The slot ID is derived from the
// code the same way GenerateSectors derives it, so a slot removed and added
// again keeps its history.
func (c *Coordinator) CreateSector(ctx context.Context, code string) (Sector, error) {
	admin, ok := c.sectors.(CatalogAdmin)
	if !ok {
		return Sector{}, fmt.Errorf("create sector: %w", ErrUnsupported)
	}

	code = NormalizeCode(code)
	if !validSlotCode(code) {
		return Sector{}, fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}

	catalog, err := c.Catalog(ctx)
	if err != nil {
		return Sector{}, err
	}
	if _, err := catalog.ResolveSlotID(code); err == nil {
		return Sector{}, fmt.Errorf("%w: %s", ErrSlotExists, code)
	}

	sector := Sector{ID: uuid.NewSHA1(sectorNamespace, []byte(code)).String(), Code: code}
	var created Sector
	err = c.call(ctx, func(ctx context.Context) error {
		var err error
		created, err = admin.CreateSector(ctx, sector)
		return err
	})
	if err != nil {
		return Sector{}, fmt.Errorf("create sector %s: %w", code, err)
	}
	return created, nil
}

// DeleteSector removes a free slot from the catalog. An occupied slot is
// refused with ErrSlotOccupied.
func (c *Coordinator) DeleteSector(ctx context.Context, code string) error {
	admin, ok := c.sectors.(CatalogAdmin)
	if !ok {
		return fmt.Errorf("delete sector: %w", ErrUnsupported)
	}

	catalog, idx, err := c.Occupancy(ctx)
	if err != nil {
		return err
	}
	code = NormalizeCode(code)
	id, err := catalog.ResolveSlotID(code)
	if err != nil {
		return err
	}
	if status := idx.Status(code); status != StatusFree {
		return fmt.Errorf("%w: %s is %s", ErrSlotOccupied, code, status)
	}

	err = c.call(ctx, func(ctx context.Context) error {
		return admin.DeleteSector(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete sector %s: %w", code, err)
	}
	return nil
}

func validSlotCode(code string) bool {
	prefix := SectorPrefix(code)
	if prefix == "" || prefix == code {
		return false
	}
	n, err := strconv.ParseUint(code[len(prefix):], 10, 32)
	return err == nil && n > 0
}
