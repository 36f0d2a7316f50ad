package schedule

import (
	"context"
	"errors"
)

// ErrSlotConflict covers both races lost on an available slot and claims
// against a slot identity that does not exist. Callers treat the two the same:
// the booking did not get the slot.
var ErrSlotConflict = errors.New("slot is not available")

// Store is the persistence boundary for provider slot tables.
//
// Claim is the system's only double-booking defense: the status check and the
// available→booked flip must happen as one step under the store's exclusion
// region, and the flip must be durable before Claim returns nil. Any error
// other than ErrSlotConflict is a storage fault and is fatal to the booking.
type Store interface {
	Providers(ctx context.Context) ([]string, error)
	// SlotsOn returns the available slots for one day, in stored order.
	SlotsOn(ctx context.Context, provider, date string) ([]Slot, error)
	// OpenSlots returns every available slot for the provider ordered by
	// date ascending then start time ascending.
	OpenSlots(ctx context.Context, provider string) ([]Slot, error)
	Claim(ctx context.Context, provider string, key SlotKey) error
}
