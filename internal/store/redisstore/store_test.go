package redisstore

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moto-yard/internal/parking"
)

// newTestStore connects to REDIS_ADDR under a throwaway key prefix.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	prefix := "moto-yard-test:" + uuid.NewString()
	s, err := New(context.Background(), Config{Addr: addr, KeyPrefix: prefix})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx := context.Background()
		s.rdb.Del(ctx, s.sectorsKey(), s.placementsKey(), s.seqKey(), s.idsKey())
		_ = s.Close()
	})
	return s
}

func TestSeedAndFetchSectors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sectors := parking.GenerateSectors([]string{"A"}, 3)
	require.NoError(t, s.SeedSectors(ctx, sectors))

	got, err := s.FetchSectors(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, sectors, got)
}

func TestPlacementLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	entry := parking.Placement{ID: "p1", SectorID: "s1", Movement: parking.MovementEntry, Timestamp: now}
	a, err := s.CreatePlacement(ctx, entry)
	require.NoError(t, err)
	b, err := s.CreatePlacement(ctx, parking.Placement{ID: "p2", SectorID: "s1", Movement: parking.MovementExit, Timestamp: now})
	require.NoError(t, err)
	assert.Equal(t, a.Sequence+1, b.Sequence)

	require.NoError(t, s.DiscardPlacement(ctx, entry))
	require.NoError(t, s.DiscardPlacement(ctx, entry))

	all, err := s.FetchPlacements(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "p2", all[0].ID)
}

func TestDuplicatePlacementIsConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := parking.Placement{ID: "p1", SectorID: "s1", Movement: parking.MovementEntry, Timestamp: time.Now()}

	_, err := s.CreatePlacement(ctx, p)
	require.NoError(t, err)
	_, err = s.CreatePlacement(ctx, p)
	assert.ErrorIs(t, err, parking.ErrConflict)

	all, err := s.FetchPlacements(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestConcurrentCreatesGetDistinctOrderedSequences(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	const writers = 20
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreatePlacement(ctx, parking.Placement{
				ID: fmt.Sprintf("p%d", i), SectorID: "s1", Movement: parking.MovementEntry, Timestamp: now,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := s.FetchPlacements(ctx)
	require.NoError(t, err)
	require.Len(t, all, writers)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Sequence, all[i].Sequence, "sequences must be distinct")
	}
}

func TestCoordinatorOverRedis(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SeedSectors(ctx, parking.GenerateSectors([]string{"B"}, 2)))

	c := parking.NewCoordinator(s, s)
	_, err := c.Register(ctx, parking.RegisterRequest{SlotCode: "B1", ActorID: "user1"})
	require.NoError(t, err)

	_, idx, err := c.Occupancy(ctx)
	require.NoError(t, err)
	assert.Equal(t, parking.StatusOccupiedNoPlate, idx.Status("B1"))
	assert.Equal(t, parking.StatusFree, idx.Status("B2"))
}

func TestSectorAdmin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateSector(ctx, parking.Sector{ID: "s1", Code: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "C1", created.Code)

	_, err = s.CreateSector(ctx, parking.Sector{ID: "s1", Code: "C1"})
	assert.ErrorIs(t, err, parking.ErrSlotExists)

	require.NoError(t, s.DeleteSector(ctx, "s1"))
	assert.ErrorIs(t, s.DeleteSector(ctx, "s1"), parking.ErrNotFound)
}
