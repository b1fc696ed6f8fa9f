package sqlstore

import (
	"time"

	"moto-yard/internal/parking"
)

type sectorRow struct {
	ID   string `gorm:"primaryKey;type:varchar(64)"`
	Code string `gorm:"uniqueIndex;type:varchar(32);not null"`
}

func (sectorRow) TableName() string {
	return "sectors"
}

// placementRow is one entry in the append-only placement log. Sequence is
// assigned by the database and defines commit order.
type placementRow struct {
	Sequence     int64     `gorm:"primaryKey;autoIncrement"`
	ID           string    `gorm:"uniqueIndex;type:varchar(64);not null"`
	MotorcycleID string    `gorm:"index;type:varchar(64);not null"`
	SectorID     string    `gorm:"index;type:varchar(64);not null"`
	SlotCode     string    `gorm:"type:varchar(32)"`
	Plate        string    `gorm:"type:varchar(16)"`
	Movement     string    `gorm:"type:varchar(8);not null"`
	RecordedAt   time.Time `gorm:"not null"`
	RecordedBy   string    `gorm:"type:varchar(64)"`
}

func (placementRow) TableName() string {
	return "placements"
}

func toRow(p parking.Placement) placementRow {
	return placementRow{
		ID:           p.ID,
		MotorcycleID: p.MotorcycleID,
		SectorID:     p.SectorID,
		SlotCode:     p.SlotCode,
		Plate:        p.Plate,
		Movement:     string(p.Movement),
		RecordedAt:   p.Timestamp,
		RecordedBy:   p.RecordedBy,
	}
}

func (r placementRow) toPlacement() parking.Placement {
	return parking.Placement{
		ID:           r.ID,
		MotorcycleID: r.MotorcycleID,
		SectorID:     r.SectorID,
		SlotCode:     r.SlotCode,
		Plate:        r.Plate,
		Movement:     parking.Movement(r.Movement),
		Timestamp:    r.RecordedAt.UTC(),
		RecordedBy:   r.RecordedBy,
		Sequence:     r.Sequence,
	}
}
