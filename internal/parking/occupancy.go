package parking

type Status string

const (
	StatusFree            Status = "free"
	StatusOccupied        Status = "occupied"
	StatusOccupiedNoPlate Status = "occupied-no-plate"
)

// Index maps every catalog code to its status. It is derived from the
// placement log and never persisted.
type Index struct {
	codes  []string
	latest map[string]Placement
}

// BuildIndex derives slot statuses from the most recent placement per slot.
func BuildIndex(c *Catalog, placements []Placement) Index {
	latest := make(map[string]Placement, len(placements))
	for _, p := range placements {
		code, ok := c.CodeFor(p.SectorID)
		if !ok {
			continue
		}
		if cur, seen := latest[code]; seen && !p.after(cur) {
			continue
		}
		latest[code] = p
	}

	return Index{
		codes:  c.ListSlots(""),
		latest: latest,
	}
}

func (idx Index) Status(code string) Status {
	p, ok := idx.latest[NormalizeCode(code)]
	switch {
	case !ok || p.IsExit():
		return StatusFree
	case !p.HasPlate():
		return StatusOccupiedNoPlate
	default:
		return StatusOccupied
	}
}

// Active returns the entry currently holding code, if any.
func (idx Index) Active(code string) (Placement, bool) {
	p, ok := idx.latest[NormalizeCode(code)]
	if !ok || p.IsExit() {
		return Placement{}, false
	}
	return p, true
}

// Latest returns the most recent record for code, entry or exit.
func (idx Index) Latest(code string) (Placement, bool) {
	p, ok := idx.latest[NormalizeCode(code)]
	return p, ok
}

func (idx Index) Codes(status Status) []string {
	var out []string
	for _, code := range idx.codes {
		if idx.Status(code) == status {
			out = append(out, code)
		}
	}
	return out
}

func (idx Index) Counts() map[Status]int {
	counts := map[Status]int{
		StatusFree:            0,
		StatusOccupied:        0,
		StatusOccupiedNoPlate: 0,
	}
	for _, code := range idx.codes {
		counts[idx.Status(code)]++
	}
	return counts
}

func (idx Index) Len() int {
	return len(idx.codes)
}
