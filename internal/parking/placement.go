package parking

import (
	"strings"
	"time"
)

type Movement string

const (
	MovementEntry Movement = "entry"
	MovementExit  Movement = "exit"
)

// NoPlate marks a motorcycle registered without a readable plate.
const NoPlate = ""

// Placement records one motorcycle entering or leaving one slot. Records are
// append-only; a slot is released by a later exit record.
type Placement struct {
	ID           string    `json:"id"`
	MotorcycleID string    `json:"motorcycle_id"`
	SectorID     string    `json:"sector_id"`
	SlotCode     string    `json:"slot_code"`
	Plate        string    `json:"plate,omitempty"`
	Movement     Movement  `json:"movement"`
	Timestamp    time.Time `json:"timestamp"`
	RecordedBy   string    `json:"recorded_by"`
	// Sequence is the store's commit order.
	Sequence int64 `json:"sequence"`
}

func NormalizePlate(plate string) string {
	plate = strings.ToUpper(strings.TrimSpace(plate))
	if plate == "" {
		return NoPlate
	}
	return plate
}

func (p Placement) HasPlate() bool {
	return strings.TrimSpace(p.Plate) != NoPlate
}

func (p Placement) IsExit() bool {
	return p.Movement == MovementExit
}

// after reports whether p supersedes q as the most recent record for a slot.
func (p Placement) after(q Placement) bool {
	if !p.Timestamp.Equal(q.Timestamp) {
		return p.Timestamp.After(q.Timestamp)
	}
	return p.Sequence >= q.Sequence
}
