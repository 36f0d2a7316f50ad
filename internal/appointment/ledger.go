package appointment

import (
	"context"
	"errors"
	"time"
)

var ErrAppointmentNotFound = errors.New("appointment not found")

// Ledger is the durable appointment record book. Appointments are appended
// once and afterwards mutated only to stamp side-effect timestamps; nothing
// is ever deleted.
type Ledger interface {
	Append(ctx context.Context, a Appointment) error
	All(ctx context.Context) ([]Appointment, error)
	GetByID(ctx context.Context, id string) (*Appointment, error)
	SetFormsSent(ctx context.Context, id string, at time.Time) error
	SetReminderSent(ctx context.Context, id string, n int, at time.Time) error
	SetExported(ctx context.Context, at time.Time) error
}
