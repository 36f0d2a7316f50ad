// Package booking coordinates one walk-in booking attempt end to end:
// identity resolution, duration inference, slot claim, appointment
// materialization, then best-effort collaborator side effects.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/clinicdesk/walkin-scheduling/internal/appointment"
	"github.com/clinicdesk/walkin-scheduling/internal/export"
	"github.com/clinicdesk/walkin-scheduling/internal/forms"
	"github.com/clinicdesk/walkin-scheduling/internal/notify"
	"github.com/clinicdesk/walkin-scheduling/internal/patient"
	"github.com/clinicdesk/walkin-scheduling/internal/schedule"
)

var (
	ErrNoAvailability  = errors.New("no available slots found")
	ErrBookingConflict = errors.New("slot was booked by another request")
)

// ClaimGuard is an optional cross-process exclusion region around the claim
// step, for deployments running more than one instance against shared
// storage. The in-store mutex already serializes claims within one process.
type ClaimGuard interface {
	WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// ErrLockBusy is returned by a ClaimGuard when the lock is already held.
// The coordinator treats it as a booking conflict.
var ErrLockBusy = errors.New("slot lock held by another booking")

// Options fix the coordinator's policy knobs. Visit durations are tied to
// patient status, not slot content, and are not caller-overridable.
type Options struct {
	NewPatientMinutes       int
	ReturningPatientMinutes int
	// ReminderAfter holds the three increasing elapsed-time thresholds.
	ReminderAfter [3]time.Duration
	Location      string
	ExportPath    string
}

func DefaultOptions() Options {
	return Options{
		NewPatientMinutes:       60,
		ReturningPatientMinutes: 30,
		ReminderAfter:           [3]time.Duration{24 * time.Hour, 48 * time.Hour, 72 * time.Hour},
		Location:                "Main Clinic",
		ExportPath:              "data/appointments_export.csv",
	}
}

// Request carries everything the caller knows about the walk-in. Slot is
// optional; when nil the coordinator picks the first fit.
type Request struct {
	Name     string
	DOB      string
	Phone    string
	Email    string
	Provider string
	Reason   string
	Insurer  string
	MemberID string
	GroupNo  string
	Slot     *schedule.SlotKey
}

// Result is the success shape. Warnings hold collaborator failures that did
// not unwind the booking but must not be swallowed.
type Result struct {
	Message       string
	Appointment   *appointment.Appointment
	PatientStatus patient.MatchStatus
	Confidence    float64
	Warnings      []string
}

type Service struct {
	registry  *patient.Registry
	avail     *schedule.Availability
	ledger    appointment.Ledger
	messenger notify.Messenger
	forms     forms.Sender
	exporter  export.Exporter
	guard     ClaimGuard // may be nil
	opts      Options
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(
	registry *patient.Registry,
	avail *schedule.Availability,
	ledger appointment.Ledger,
	messenger notify.Messenger,
	formSender forms.Sender,
	exporter export.Exporter,
	guard ClaimGuard,
	opts Options,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.NewPatientMinutes == 0 {
		opts = DefaultOptions()
	}
	return &Service{
		registry:  registry,
		avail:     avail,
		ledger:    ledger,
		messenger: messenger,
		forms:     formSender,
		exporter:  exporter,
		guard:     guard,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// Book runs the booking pipeline. Domain failures come back as
// ErrNoAvailability or ErrBookingConflict; anything else is a storage fault.
// No partial appointment is ever created: a failure before the ledger append
// leaves at most the claimed-slot flip. Claim and append are not transactional
// across stores, and claim goes first: a claimed slot with no appointment is
// recoverable, the reverse is a double booking.
func (s *Service) Book(ctx context.Context, req Request) (*Result, error) {
	// 1. resolve or create the patient
	p, status, confidence, err := s.registry.Resolve(ctx, req.Name, req.DOB, req.Phone, req.Email)
	if err != nil {
		return nil, fmt.Errorf("resolve patient: %w", err)
	}
	if status == patient.StatusNew {
		p, err = s.registry.Create(ctx, req.Name, req.DOB, req.Phone, req.Email, req.Provider)
		if err != nil {
			return nil, fmt.Errorf("create patient: %w", err)
		}
	}

	// 2. visit duration follows patient status
	minutes := s.opts.ReturningPatientMinutes
	if status == patient.StatusNew {
		minutes = s.opts.NewPatientMinutes
	}

	// 3. slot: caller's choice, or first fit
	key := req.Slot
	if key == nil {
		fits, err := s.avail.FindFirstFit(ctx, req.Provider, minutes)
		if err != nil {
			return nil, fmt.Errorf("search slots: %w", err)
		}
		if len(fits) == 0 {
			return nil, ErrNoAvailability
		}
		k := fits[0].Key()
		key = &k
	}

	// 4. claim — the only double-booking defense, no automatic retry
	if err := s.claim(ctx, req.Provider, *key); err != nil {
		return nil, err
	}

	// 5. materialize the appointment
	appt := appointment.Appointment{
		ID:           appointment.NewAppointmentID(),
		PatientID:    p.ID,
		PatientName:  p.Name,
		PatientEmail: p.Email,
		PatientPhone: p.Phone,
		Provider:     req.Provider,
		Location:     s.opts.Location,
		Date:         key.Date,
		Start:        key.Start,
		End:          key.End,
		Minutes:      minutes,
		Status:       appointment.StatusConfirmed,
		Reason:       req.Reason,
		Insurer:      fallback(req.Insurer, p.PrimaryInsurer),
		MemberID:     fallback(req.MemberID, p.MemberID),
		GroupNo:      fallback(req.GroupNo, p.GroupNo),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.ledger.Append(ctx, appt); err != nil {
		return nil, fmt.Errorf("append appointment: %w", err)
	}

	s.logger.Info("appointment booked",
		zap.String("appt_id", appt.ID),
		zap.String("patient_id", p.ID),
		zap.String("provider", req.Provider),
		zap.String("slot", key.String()),
		zap.String("patient_status", string(status)))

	// 6. best-effort side effects after the booking is durable
	res := &Result{
		Message: fmt.Sprintf("Booked %s on %s %s. Appointment ID: %s",
			req.Provider, key.Date, key.Start, appt.ID),
		Appointment:   &appt,
		PatientStatus: status,
		Confidence:    confidence,
	}
	s.postCommit(ctx, &appt, res)
	return res, nil
}

func (s *Service) claim(ctx context.Context, provider string, key schedule.SlotKey) error {
	doClaim := func(ctx context.Context) error {
		return s.avail.Claim(ctx, provider, key)
	}

	var err error
	if s.guard != nil {
		err = s.guard.WithSlotLock(ctx, provider+"|"+key.String(), doClaim)
	} else {
		err = doClaim(ctx)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, schedule.ErrSlotConflict), errors.Is(err, ErrLockBusy):
		return ErrBookingConflict
	default:
		return fmt.Errorf("claim slot: %w", err)
	}
}

// postCommit runs the collaborator hooks. Failures land in Result.Warnings;
// the appointment stays booked regardless.
func (s *Service) postCommit(ctx context.Context, appt *appointment.Appointment, res *Result) {
	if err := s.messenger.SendConfirmation(ctx, appt); err != nil {
		s.warn(res, appt.ID, "confirmation not sent", err)
	}

	dest, err := s.forms.SendForm(ctx, appt.PatientEmail, appt.ID)
	if err != nil {
		s.warn(res, appt.ID, "intake form not sent", err)
		return
	}
	if err := s.ledger.SetFormsSent(ctx, appt.ID, s.now()); err != nil {
		s.warn(res, appt.ID, "forms timestamp not stamped", err)
		return
	}
	appt.FormsSentAt = s.now().UTC().Format(time.RFC3339)
	s.logger.Info("intake form sent", zap.String("appt_id", appt.ID), zap.String("dest", dest))
}

func (s *Service) warn(res *Result, apptID, msg string, err error) {
	s.logger.Warn(msg, zap.String("appt_id", apptID), zap.Error(err))
	res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", msg, err))
}

// RemindDue sweeps the ledger and sends each overdue reminder that has not
// been stamped yet. Idempotent per threshold: a stamped reminder never fires
// again, and a failed send leaves the stamp empty so the next sweep retries.
func (s *Service) RemindDue(ctx context.Context) (int, error) {
	appts, err := s.ledger.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("load ledger: %w", err)
	}

	sent := 0
	now := s.now()
	for i := range appts {
		a := appts[i]
		if a.Status != appointment.StatusConfirmed {
			continue
		}
		elapsed := now.Sub(a.CreatedAt)
		for n := 1; n <= 3; n++ {
			if elapsed <= s.opts.ReminderAfter[n-1] || a.ReminderStamp(n) != "" {
				continue
			}
			if err := s.messenger.SendReminder(ctx, &a, n); err != nil {
				s.logger.Warn("reminder not sent",
					zap.String("appt_id", a.ID), zap.Int("reminder", n), zap.Error(err))
				continue
			}
			if err := s.ledger.SetReminderSent(ctx, a.ID, n, now); err != nil {
				return sent, fmt.Errorf("stamp reminder %d for %s: %w", n, a.ID, err)
			}
			sent++
		}
	}
	return sent, nil
}

// Export stamps the whole ledger and writes a snapshot to the configured
// destination. Returns the destination path.
func (s *Service) Export(ctx context.Context) (string, error) {
	if err := s.ledger.SetExported(ctx, s.now()); err != nil {
		return "", fmt.Errorf("stamp export: %w", err)
	}
	appts, err := s.ledger.All(ctx)
	if err != nil {
		return "", fmt.Errorf("load ledger: %w", err)
	}
	if err := s.exporter.Export(ctx, appts, s.opts.ExportPath); err != nil {
		return "", fmt.Errorf("export ledger: %w", err)
	}
	s.logger.Info("ledger exported",
		zap.String("dest", s.opts.ExportPath), zap.Int("appointments", len(appts)))
	return s.opts.ExportPath, nil
}

func fallback(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
