package schedule

import (
	"fmt"
	"strings"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
)

// ParseStatus accepts the loose casing found in seeded tables ("Available",
// "BOOKED") and rejects anything else at the store boundary.
func ParseStatus(s string) (SlotStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(SlotAvailable):
		return SlotAvailable, nil
	case string(SlotBooked):
		return SlotBooked, nil
	default:
		return "", fmt.Errorf("unknown slot status %q", s)
	}
}

// Slot is one bookable interval in a provider's table. Its identity is the
// (provider, date, start, end) tuple; there is no separate slot id.
type Slot struct {
	Provider string     `json:"provider"`
	Date     string     `json:"date"` // ISO-8601 day
	Start    string     `json:"start_time"`
	End      string     `json:"end_time"`
	Minutes  int        `json:"duration_minutes"`
	Status   SlotStatus `json:"status"`
}

// SlotKey identifies a slot within one provider's table.
type SlotKey struct {
	Date  string `json:"date"`
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

func (s Slot) Key() SlotKey {
	return SlotKey{Date: s.Date, Start: s.Start, End: s.End}
}

func (k SlotKey) String() string {
	return k.Date + " " + k.Start + "-" + k.End
}
