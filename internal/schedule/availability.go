package schedule

import (
	"context"
	"time"
)

// Availability is the query surface the booking flow uses on top of a Store.
type Availability struct {
	store Store
	now   func() time.Time
}

func NewAvailability(store Store) *Availability {
	return &Availability{store: store, now: time.Now}
}

func (a *Availability) Providers(ctx context.Context) ([]string, error) {
	return a.store.Providers(ctx)
}

// UpcomingDays lists n ISO dates starting today.
func (a *Availability) UpcomingDays(n int) []string {
	base := a.now()
	days := make([]string, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, base.AddDate(0, 0, i).Format("2006-01-02"))
	}
	return days
}

func (a *Availability) SlotsOn(ctx context.Context, provider, date string) ([]Slot, error) {
	return a.store.SlotsOn(ctx, provider, date)
}

// FindFirstFit scans the provider's whole table and returns the available
// slots long enough for the requested duration, earliest first.
func (a *Availability) FindFirstFit(ctx context.Context, provider string, requiredMinutes int) ([]Slot, error) {
	open, err := a.store.OpenSlots(ctx, provider)
	if err != nil {
		return nil, err
	}
	var fits []Slot
	for _, s := range open {
		if s.Minutes >= requiredMinutes {
			fits = append(fits, s)
		}
	}
	return fits, nil
}

func (a *Availability) Claim(ctx context.Context, provider string, key SlotKey) error {
	return a.store.Claim(ctx, provider, key)
}
