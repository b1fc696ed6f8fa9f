package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"moto-yard/internal/parking"
)

// Store keeps the catalog in a hash (sector id -> code) and the placement
// log in a list of JSON records, indexed by record ID in a second hash.
// Sequence numbers come from INCR inside the append script, so list order and
// sequence order agree for every client of the same keys.
type Store struct {
	rdb    *goredis.Client
	prefix string
}

type Config struct {
	Addr      string
	KeyPrefix string
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewWithClient(rdb, cfg.KeyPrefix), nil
}

func NewWithClient(rdb *goredis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "moto-yard"
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) sectorsKey() string    { return s.prefix + ":sectors" }
func (s *Store) placementsKey() string { return s.prefix + ":placements" }
func (s *Store) seqKey() string        { return s.prefix + ":seq" }
func (s *Store) idsKey() string        { return s.prefix + ":placement-ids" }

func (s *Store) FetchSectors(ctx context.Context) ([]parking.Sector, error) {
	m, err := s.rdb.HGetAll(ctx, s.sectorsKey()).Result()
	if err != nil {
		return nil, wrap("fetch sectors", err)
	}

	sectors := make([]parking.Sector, 0, len(m))
	for id, code := range m {
		sectors = append(sectors, parking.Sector{ID: id, Code: code})
	}
	sort.Slice(sectors, func(i, j int) bool { return sectors[i].ID < sectors[j].ID })
	return sectors, nil
}

func (s *Store) SeedSectors(ctx context.Context, sectors []parking.Sector) error {
	if len(sectors) == 0 {
		return nil
	}
	values := make([]any, 0, len(sectors)*2)
	for _, sec := range sectors {
		values = append(values, sec.ID, parking.NormalizeCode(sec.Code))
	}
	return wrap("seed sectors", s.rdb.HSet(ctx, s.sectorsKey(), values...).Err())
}

func (s *Store) CreateSector(ctx context.Context, sec parking.Sector) (parking.Sector, error) {
	sec.Code = parking.NormalizeCode(sec.Code)
	added, err := s.rdb.HSetNX(ctx, s.sectorsKey(), sec.ID, sec.Code).Result()
	if err != nil {
		return parking.Sector{}, wrap("create sector", err)
	}
	if !added {
		return parking.Sector{}, fmt.Errorf("create sector: %w: %s", parking.ErrSlotExists, sec.Code)
	}
	return sec, nil
}

func (s *Store) DeleteSector(ctx context.Context, id string) error {
	removed, err := s.rdb.HDel(ctx, s.sectorsKey(), id).Result()
	if err != nil {
		return wrap("delete sector", err)
	}
	if removed == 0 {
		return fmt.Errorf("delete sector: %w: %s", parking.ErrNotFound, id)
	}
	return nil
}

func (s *Store) FetchPlacements(ctx context.Context) ([]parking.Placement, error) {
	raw, err := s.rdb.LRange(ctx, s.placementsKey(), 0, -1).Result()
	if err != nil {
		return nil, wrap("fetch placements", err)
	}

	placements := make([]parking.Placement, 0, len(raw))
	for _, item := range raw {
		var p parking.Placement
		if err := json.Unmarshal([]byte(item), &p); err != nil {
			return nil, fmt.Errorf("decode placement: %w: %w", parking.ErrIO, err)
		}
		placements = append(placements, p)
	}
	sort.SliceStable(placements, func(i, j int) bool {
		return placements[i].Sequence < placements[j].Sequence
	})
	return placements, nil
}

// createScript appends a record and assigns its sequence in one step, so a
// record is never visible without its sequence or the other way around.
// KEYS: seq, placements, ids. ARGV: record JSON, record ID.
var createScript = goredis.NewScript(`
if redis.call('HEXISTS', KEYS[3], ARGV[2]) == 1 then
  return redis.error_reply('CONFLICT placement ' .. ARGV[2] .. ' already exists')
end
local rec = cjson.decode(ARGV[1])
rec['sequence'] = redis.call('INCR', KEYS[1])
local raw = cjson.encode(rec)
redis.call('RPUSH', KEYS[2], raw)
redis.call('HSET', KEYS[3], ARGV[2], raw)
return raw
`)

// discardScript removes the exact stored item for a record ID.
// KEYS: placements, ids. ARGV: record ID.
var discardScript = goredis.NewScript(`
local raw = redis.call('HGET', KEYS[2], ARGV[1])
if not raw then
  return 0
end
redis.call('LREM', KEYS[1], 1, raw)
redis.call('HDEL', KEYS[2], ARGV[1])
return 1
`)

func (s *Store) CreatePlacement(ctx context.Context, p parking.Placement) (parking.Placement, error) {
	p.Sequence = 0
	data, err := json.Marshal(p)
	if err != nil {
		return parking.Placement{}, err
	}

	keys := []string{s.seqKey(), s.placementsKey(), s.idsKey()}
	raw, err := createScript.Run(ctx, s.rdb, keys, data, p.ID).Text()
	if err != nil {
		return parking.Placement{}, wrap("create placement", err)
	}

	var committed parking.Placement
	if err := json.Unmarshal([]byte(raw), &committed); err != nil {
		return parking.Placement{}, fmt.Errorf("decode placement: %w: %w", parking.ErrIO, err)
	}
	return committed, nil
}

func (s *Store) DiscardPlacement(ctx context.Context, p parking.Placement) error {
	keys := []string{s.placementsKey(), s.idsKey()}
	return wrap("discard placement", discardScript.Run(ctx, s.rdb, keys, p.ID).Err())
}

func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case strings.HasPrefix(err.Error(), "CONFLICT"):
		return fmt.Errorf("%s: %w: %w", op, parking.ErrConflict, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, parking.ErrTransient, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, parking.ErrIO, err)
	}
}
