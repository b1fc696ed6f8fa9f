package parking

type SectorSummary struct {
	Prefix   string `json:"sector"`
	Total    int    `json:"total"`
	Free     int    `json:"free"`
	Occupied int    `json:"occupied"`
	NoPlate  int    `json:"no_plate"`
}

// Summarize counts statuses per sector prefix, in catalog order. Occupied
// includes slots held without a plate; NoPlate counts those separately.
func Summarize(c *Catalog, idx Index) []SectorSummary {
	var out []SectorSummary
	for _, prefix := range c.Prefixes() {
		s := SectorSummary{Prefix: prefix}
		for _, code := range c.ListSlots(prefix) {
			s.Total++
			switch idx.Status(code) {
			case StatusFree:
				s.Free++
			case StatusOccupiedNoPlate:
				s.Occupied++
				s.NoPlate++
			default:
				s.Occupied++
			}
		}
		out = append(out, s)
	}
	return out
}
