package parking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultStoreTimeout = 15 * time.Second

type RegisterRequest struct {
	SlotCode string
	Plate    string
	ActorID  string
}

type DepartRequest struct {
	SlotCode string
	ActorID  string
}

// Coordinator validates registrations against the current occupancy and
// commits them to the placement store. It holds no state of its own; every
// call works from a fresh snapshot.
type Coordinator struct {
	sectors    CatalogSource
	placements PlacementStore
	timeout    time.Duration
	now        func() time.Time
	newID      func() string
}

type Option func(*Coordinator)

func WithStoreTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(c *Coordinator) { c.newID = newID }
}

func NewCoordinator(sectors CatalogSource, placements PlacementStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		sectors:    sectors,
		placements: placements,
		timeout:    DefaultStoreTimeout,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) Catalog(ctx context.Context) (*Catalog, error) {
	var sectors []Sector
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		sectors, err = c.sectors.FetchSectors(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch sectors: %w", err)
	}
	return NewCatalog(sectors)
}

func (c *Coordinator) fetchPlacements(ctx context.Context) ([]Placement, error) {
	var placements []Placement
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		placements, err = c.placements.FetchPlacements(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch placements: %w", err)
	}
	return placements, nil
}

func (c *Coordinator) Snapshot(ctx context.Context) (*Catalog, []Placement, error) {
	catalog, err := c.Catalog(ctx)
	if err != nil {
		return nil, nil, err
	}
	placements, err := c.fetchPlacements(ctx)
	if err != nil {
		return nil, nil, err
	}
	return catalog, placements, nil
}

func (c *Coordinator) Occupancy(ctx context.Context) (*Catalog, Index, error) {
	catalog, placements, err := c.Snapshot(ctx)
	if err != nil {
		return nil, Index{}, err
	}
	return catalog, BuildIndex(catalog, placements), nil
}

// Register places a new motorcycle into a free slot. The slot is checked
// before the write and again on a snapshot read after it. A registration
// that finds another entry in the same tenure is discarded and reported as
// ErrSlotOccupied.
func (c *Coordinator) Register(ctx context.Context, req RegisterRequest) (Placement, error) {
	code := NormalizeCode(req.SlotCode)

	catalog, err := c.Catalog(ctx)
	if err != nil {
		return Placement{}, err
	}
	sectorID, err := catalog.ResolveSlotID(code)
	if err != nil {
		return Placement{}, err
	}

	placements, err := c.fetchPlacements(ctx)
	if err != nil {
		return Placement{}, err
	}
	idx := BuildIndex(catalog, placements)
	if status := idx.Status(code); status != StatusFree {
		return Placement{}, fmt.Errorf("%w: %s is %s", ErrSlotOccupied, code, status)
	}

	tentative := Placement{
		ID:           c.newID(),
		MotorcycleID: c.newID(),
		SectorID:     sectorID,
		SlotCode:     code,
		Plate:        NormalizePlate(req.Plate),
		Movement:     MovementEntry,
		Timestamp:    c.stamp(idx, code),
		RecordedBy:   strings.TrimSpace(req.ActorID),
	}

	committed, err := c.create(ctx, tentative)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return Placement{}, fmt.Errorf("%w: %s: %w", ErrSlotOccupied, code, err)
		}
		return Placement{}, err
	}

	fresh, err := c.fetchPlacements(ctx)
	if err != nil {
		return Placement{}, c.discard(ctx, committed, err)
	}

	ours, visible := findPlacement(fresh, committed.ID)
	if !visible {
		return Placement{}, c.discard(ctx, committed,
			fmt.Errorf("%w: placement %s missing from post-write snapshot", ErrTransient, committed.ID))
	}

	if other, found := rival(fresh, ours); found {
		return Placement{}, c.discard(ctx, committed,
			fmt.Errorf("%w: %s taken by motorcycle %s", ErrLostRace, code, other.MotorcycleID))
	}

	if ours.SlotCode == "" {
		ours.SlotCode = code
	}
	return ours, nil
}

// Depart releases an occupied slot by appending an exit record for the
// motorcycle holding it.
func (c *Coordinator) Depart(ctx context.Context, req DepartRequest) (Placement, error) {
	code := NormalizeCode(req.SlotCode)

	catalog, err := c.Catalog(ctx)
	if err != nil {
		return Placement{}, err
	}
	sectorID, err := catalog.ResolveSlotID(code)
	if err != nil {
		return Placement{}, err
	}

	placements, err := c.fetchPlacements(ctx)
	if err != nil {
		return Placement{}, err
	}
	idx := BuildIndex(catalog, placements)
	active, ok := idx.Active(code)
	if !ok {
		return Placement{}, fmt.Errorf("%w: %s", ErrSlotVacant, code)
	}

	exit := Placement{
		ID:           c.newID(),
		MotorcycleID: active.MotorcycleID,
		SectorID:     sectorID,
		SlotCode:     code,
		Plate:        active.Plate,
		Movement:     MovementExit,
		Timestamp:    c.stamp(idx, code),
		RecordedBy:   strings.TrimSpace(req.ActorID),
	}

	committed, err := c.create(ctx, exit)
	if err != nil {
		return Placement{}, err
	}
	return committed, nil
}

// create writes p. A write that times out may still have landed, so it is
// discarded before the transient error is returned.
func (c *Coordinator) create(ctx context.Context, p Placement) (Placement, error) {
	var committed Placement
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		committed, err = c.placements.CreatePlacement(ctx, p)
		return err
	})
	switch {
	case err == nil:
		return committed, nil
	case errors.Is(err, ErrTransient):
		return Placement{}, c.discard(ctx, p, fmt.Errorf("create %s: %w", p.Movement, err))
	default:
		return Placement{}, fmt.Errorf("create %s: %w", p.Movement, err)
	}
}

// stamp returns the clock time, moved past the slot's latest record when the
// local clock is behind it, so a new record always ranks last for its slot.
func (c *Coordinator) stamp(idx Index, code string) time.Time {
	now := c.now()
	if latest, ok := idx.Latest(code); ok && !now.After(latest.Timestamp) {
		return latest.Timestamp.Add(time.Nanosecond)
	}
	return now
}

// discard removes a tentative placement and returns cause, joined with the
// discard failure if the record could not be removed.
func (c *Coordinator) discard(ctx context.Context, p Placement, cause error) error {
	err := c.call(context.WithoutCancel(ctx), func(ctx context.Context) error {
		return c.placements.DiscardPlacement(ctx, p)
	})
	if err != nil {
		return errors.Join(cause, fmt.Errorf("discard placement %s: %w", p.ID, err))
	}
	return cause
}

func (c *Coordinator) call(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := fn(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTransient) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return err
}

func findPlacement(placements []Placement, id string) (Placement, bool) {
	for _, p := range placements {
		if p.ID == id {
			return p, true
		}
	}
	return Placement{}, false
}

// rival returns another entry holding ours' slot in the same tenure: committed
// after the last exit before ours and before the first exit after it. The
// lower sequence does not win, since a store may expose a lower sequence only
// after a higher one. Two writers that see each other both yield.
func rival(placements []Placement, ours Placement) (Placement, bool) {
	var releasedAt, closedAt int64 = -1, math.MaxInt64
	for _, p := range placements {
		if p.SectorID != ours.SectorID || !p.IsExit() {
			continue
		}
		if p.Sequence < ours.Sequence && p.Sequence > releasedAt {
			releasedAt = p.Sequence
		}
		if p.Sequence > ours.Sequence && p.Sequence < closedAt {
			closedAt = p.Sequence
		}
	}

	for _, p := range placements {
		if p.SectorID != ours.SectorID || p.IsExit() || p.ID == ours.ID {
			continue
		}
		if p.Sequence > releasedAt && p.Sequence < closedAt {
			return p, true
		}
	}
	return Placement{}, false
}
