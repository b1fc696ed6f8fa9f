package parking

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Sector is one addressable slot record as served by the catalog source.
// Slots sharing the same leading letters form a sector.
type Sector struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

// Catalog is an immutable view over a sector snapshot.
type Catalog struct {
	codes    []string
	idByCode map[string]string
	codeByID map[string]string
}

func NewCatalog(sectors []Sector) (*Catalog, error) {
	c := &Catalog{
		codes:    make([]string, 0, len(sectors)),
		idByCode: make(map[string]string, len(sectors)),
		codeByID: make(map[string]string, len(sectors)),
	}

	for _, s := range sectors {
		code := NormalizeCode(s.Code)
		id := strings.TrimSpace(s.ID)
		if code == "" || id == "" {
			return nil, fmt.Errorf("%w: id=%q code=%q", ErrInvalidSector, s.ID, s.Code)
		}
		if _, ok := c.idByCode[code]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCode, code)
		}
		c.idByCode[code] = id
		c.codeByID[id] = code
		c.codes = append(c.codes, code)
	}

	slices.SortStableFunc(c.codes, compareCodes)
	return c, nil
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// SectorPrefix returns the leading letters of a slot code.
func SectorPrefix(code string) string {
	code = NormalizeCode(code)
	end := strings.IndexFunc(code, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		return code
	}
	return code[:end]
}

func (c *Catalog) Len() int {
	return len(c.codes)
}

// ListSlots returns the codes of one sector, or every code when prefix is
// empty, in slot order.
func (c *Catalog) ListSlots(prefix string) []string {
	prefix = NormalizeCode(prefix)
	out := make([]string, 0, len(c.codes))
	for _, code := range c.codes {
		if prefix == "" || SectorPrefix(code) == prefix {
			out = append(out, code)
		}
	}
	return out
}

func (c *Catalog) ResolveSlotID(code string) (string, error) {
	id, ok := c.idByCode[NormalizeCode(code)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, NormalizeCode(code))
	}
	return id, nil
}

func (c *Catalog) CodeFor(sectorID string) (string, bool) {
	code, ok := c.codeByID[sectorID]
	return code, ok
}

func (c *Catalog) Prefixes() []string {
	var prefixes []string
	for _, code := range c.codes {
		p := SectorPrefix(code)
		if len(prefixes) == 0 || prefixes[len(prefixes)-1] != p {
			prefixes = append(prefixes, p)
		}
	}
	return prefixes
}

// compareCodes orders by prefix, then numeric suffix, then code. Codes without
// an integer suffix sort after the numbered ones of the same prefix.
func compareCodes(a, b string) int {
	pa, pb := SectorPrefix(a), SectorPrefix(b)
	if pa != pb {
		return strings.Compare(pa, pb)
	}

	na, errA := strconv.Atoi(a[len(pa):])
	nb, errB := strconv.Atoi(b[len(pb):])
	switch {
	case errA == nil && errB == nil:
		if c := cmp.Compare(na, nb); c != 0 {
			return c
		}
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}

var sectorNamespace = uuid.MustParse("6f1c2a3e-8d4b-4b8e-9a51-2f7c0d9e4a10")

// GenerateSectors builds prefix×perSector slot records ("A1".."A<n>") with
// stable IDs, so reseeding a store yields the same identifiers.
func GenerateSectors(prefixes []string, perSector int) []Sector {
	var sectors []Sector
	for _, p := range prefixes {
		p = NormalizeCode(p)
		if p == "" {
			continue
		}
		for i := 1; i <= perSector; i++ {
			code := p + strconv.Itoa(i)
			sectors = append(sectors, Sector{
				ID:   uuid.NewSHA1(sectorNamespace, []byte(code)).String(),
				Code: code,
			})
		}
	}
	return sectors
}
