package parking

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("slot not found")
	ErrSlotOccupied  = errors.New("slot is occupied")
	ErrSlotVacant    = errors.New("slot is already free")
	ErrConflict      = errors.New("conflicting write")
	ErrTransient     = errors.New("store unavailable")
	ErrIO            = errors.New("store request failed")
	ErrDuplicateCode = errors.New("duplicate slot code")
	ErrInvalidSector = errors.New("invalid sector record")
	ErrInvalidCode   = errors.New("slot code must be letters followed by a number")
	ErrUnsupported   = errors.New("not supported by this store")

	ErrSlotExists = fmt.Errorf("%w: slot already exists", ErrDuplicateCode)

	// ErrLostRace is returned when the closing re-check finds that another
	// writer claimed the slot first. The tentative record has been discarded.
	ErrLostRace = fmt.Errorf("%w by a concurrent registration", ErrSlotOccupied)
)

// IsRejected reports whether err means the slot was taken by someone else.
// Callers should pick another slot or refresh before trying again.
func IsRejected(err error) bool {
	return errors.Is(err, ErrSlotOccupied) || errors.Is(err, ErrConflict)
}
