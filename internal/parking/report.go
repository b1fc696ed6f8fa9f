package parking

import (
	"slices"
	"strings"
	"time"
)

type ReportFilter struct {
	Prefix string
	Plate  string
	// Day keeps only rows on the same calendar day, in Day's location.
	Day time.Time
}

type ReportRow struct {
	Movement   Movement  `json:"movement"`
	SlotCode   string    `json:"slot_code"`
	Plate      string    `json:"plate"`
	Timestamp  time.Time `json:"timestamp"`
	RecordedBy string    `json:"recorded_by"`
}

// BuildReport turns placements into export rows, one row per placement,
// oldest first.
func BuildReport(c *Catalog, placements []Placement, f ReportFilter) []ReportRow {
	prefix := NormalizeCode(f.Prefix)
	plate := NormalizePlate(f.Plate)

	rows := make([]ReportRow, 0, len(placements))
	for _, p := range placements {
		code, ok := c.CodeFor(p.SectorID)
		if !ok {
			code = NormalizeCode(p.SlotCode)
		}
		if prefix != "" && SectorPrefix(code) != prefix {
			continue
		}
		if plate != NoPlate && !strings.Contains(NormalizePlate(p.Plate), plate) {
			continue
		}
		if !f.Day.IsZero() && !sameDay(p.Timestamp.In(f.Day.Location()), f.Day) {
			continue
		}
		rows = append(rows, ReportRow{
			Movement:   p.Movement,
			SlotCode:   code,
			Plate:      p.Plate,
			Timestamp:  p.Timestamp,
			RecordedBy: p.RecordedBy,
		})
	}

	slices.SortStableFunc(rows, func(a, b ReportRow) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return rows
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
