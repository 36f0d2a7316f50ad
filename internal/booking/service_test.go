package booking

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/walkin-scheduling/internal/appointment"
	"github.com/clinicdesk/walkin-scheduling/internal/patient"
	"github.com/clinicdesk/walkin-scheduling/internal/schedule"
)

type stubMessenger struct {
	confirmations []string
	reminders     []string // "apptID/n"
	failConfirm   error
	failReminder  error
}

func (m *stubMessenger) SendConfirmation(ctx context.Context, a *appointment.Appointment) error {
	if m.failConfirm != nil {
		return m.failConfirm
	}
	m.confirmations = append(m.confirmations, a.ID)
	return nil
}

func (m *stubMessenger) SendReminder(ctx context.Context, a *appointment.Appointment, n int) error {
	if m.failReminder != nil {
		return m.failReminder
	}
	m.reminders = append(m.reminders, fmt.Sprintf("%s/%d", a.ID, n))
	return nil
}

type stubForms struct {
	sent []string
	fail error
}

func (f *stubForms) SendForm(ctx context.Context, email, apptID string) (string, error) {
	if f.fail != nil {
		return "", f.fail
	}
	f.sent = append(f.sent, apptID)
	return "/outbox/" + apptID + "_intake.pdf", nil
}

type stubExporter struct {
	dest  string
	count int
}

func (e *stubExporter) Export(ctx context.Context, appts []appointment.Appointment, dest string) error {
	e.dest = dest
	e.count = len(appts)
	return nil
}

type fixture struct {
	svc       *Service
	registry  *patient.Registry
	slots     *schedule.FileStore
	ledger    *appointment.FileLedger
	messenger *stubMessenger
	forms     *stubForms
	exporter  *stubExporter
}

func newFixture(t *testing.T, patients []patient.Patient, tables map[string][]schedule.Slot) *fixture {
	t.Helper()
	dir := t.TempDir()

	pstore, err := patient.NewFileStore(filepath.Join(dir, "patients.csv"), nil)
	require.NoError(t, err)
	for _, p := range patients {
		require.NoError(t, pstore.Append(context.Background(), p))
	}
	registry := patient.NewRegistry(pstore, patient.DefaultOptions(), nil)

	schedDir := filepath.Join(dir, "schedules")
	for provider, slots := range tables {
		require.NoError(t, schedule.WriteProviderTable(schedDir, provider, slots))
	}
	slotStore, err := schedule.NewFileStore(schedDir, nil)
	require.NoError(t, err)

	ledger, err := appointment.NewFileLedger(filepath.Join(dir, "appointments.csv"), nil)
	require.NoError(t, err)

	f := &fixture{
		registry:  registry,
		slots:     slotStore,
		ledger:    ledger,
		messenger: &stubMessenger{},
		forms:     &stubForms{},
		exporter:  &stubExporter{},
	}
	opts := DefaultOptions()
	opts.ExportPath = filepath.Join(dir, "appointments_export.csv")
	f.svc = NewService(registry, schedule.NewAvailability(slotStore), ledger,
		f.messenger, f.forms, f.exporter, nil, opts, nil)
	return f
}

func drLeeTable() map[string][]schedule.Slot {
	return map[string][]schedule.Slot{
		"Dr. Lee": {
			{Provider: "Dr. Lee", Date: "2026-09-01", Start: "09:00", End: "09:30", Minutes: 30, Status: schedule.SlotAvailable},
			{Provider: "Dr. Lee", Date: "2026-09-01", Start: "10:00", End: "11:00", Minutes: 60, Status: schedule.SlotAvailable},
			{Provider: "Dr. Lee", Date: "2026-09-02", Start: "09:00", End: "10:00", Minutes: 60, Status: schedule.SlotAvailable},
		},
	}
}

func TestBookNewPatientEndToEnd(t *testing.T) {
	f := newFixture(t, nil, drLeeTable())

	res, err := f.svc.Book(context.Background(), Request{
		Name: "Jane Doe", DOB: "1990-01-01", Phone: "555-123-4567",
		Provider: "Dr. Lee", Reason: "checkup",
	})
	require.NoError(t, err)

	assert.Equal(t, patient.StatusNew, res.PatientStatus)
	assert.Equal(t, 0.0, res.Confidence)
	require.NotNil(t, res.Appointment)
	appt := res.Appointment

	// new patients get the long duration and the first fitting slot
	assert.Equal(t, 60, appt.Minutes)
	assert.Equal(t, "2026-09-01", appt.Date)
	assert.Equal(t, "10:00", appt.Start)
	assert.Equal(t, appointment.StatusConfirmed, appt.Status)
	assert.NotEmpty(t, appt.PatientID)
	assert.Empty(t, res.Warnings)

	// the patient was persisted and is now resolvable
	p, status, score, err := f.registry.Resolve(context.Background(), "", "", "555-123-4567", "")
	require.NoError(t, err)
	assert.Equal(t, patient.StatusReturning, status)
	assert.Equal(t, 1.0, score)
	assert.Equal(t, appt.PatientID, p.ID)

	// the slot is no longer offered
	open, err := f.slots.OpenSlots(context.Background(), "Dr. Lee")
	require.NoError(t, err)
	for _, s := range open {
		assert.NotEqual(t, appt.Start, s.Start, "claimed slot still open on %s", s.Date)
	}

	// side effects ran and the forms timestamp is stamped
	assert.Equal(t, []string{appt.ID}, f.messenger.confirmations)
	assert.Equal(t, []string{appt.ID}, f.forms.sent)
	stored, err := f.ledger.GetByID(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.FormsSentAt)
}

func TestBookReturningPatientByEmail(t *testing.T) {
	f := newFixture(t, []patient.Patient{{
		ID: "P000123", Name: "Jane Doe", DOB: "1990-01-01",
		Email: "jane@x.com", Phone: "5550001111",
		PrimaryInsurer: "Acme Health", MemberID: "M-77",
	}}, drLeeTable())

	res, err := f.svc.Book(context.Background(), Request{
		Name: "J Doe", Email: "jane@x.com", Provider: "Dr. Lee",
	})
	require.NoError(t, err)

	assert.Equal(t, patient.StatusReturning, res.PatientStatus)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, 30, res.Appointment.Minutes)
	assert.Equal(t, "P000123", res.Appointment.PatientID)
	// insurance falls back to the registry record when the request omits it
	assert.Equal(t, "Acme Health", res.Appointment.Insurer)
	assert.Equal(t, "M-77", res.Appointment.MemberID)
	// earliest 30-minute fit
	assert.Equal(t, "09:00", res.Appointment.Start)
}

func TestBookSpecificSlotConflict(t *testing.T) {
	f := newFixture(t, nil, drLeeTable())
	key := schedule.SlotKey{Date: "2026-09-01", Start: "09:00", End: "09:30"}

	// another attempt takes the slot first
	require.NoError(t, f.slots.Claim(context.Background(), "Dr. Lee", key))

	_, err := f.svc.Book(context.Background(), Request{
		Name: "Jane Doe", DOB: "1990-01-01", Provider: "Dr. Lee", Slot: &key,
	})
	assert.ErrorIs(t, err, ErrBookingConflict)

	// no partial appointment was created
	appts, lerr := f.ledger.All(context.Background())
	require.NoError(t, lerr)
	assert.Empty(t, appts)
}

func TestBookNoAvailability(t *testing.T) {
	f := newFixture(t, nil, map[string][]schedule.Slot{
		"Dr. Lee": {
			{Provider: "Dr. Lee", Date: "2026-09-01", Start: "09:00", End: "09:30", Minutes: 30, Status: schedule.SlotAvailable},
		},
	})

	// new patient needs 60 minutes; only a 30-minute slot exists
	_, err := f.svc.Book(context.Background(), Request{
		Name: "Jane Doe", DOB: "1990-01-01", Provider: "Dr. Lee",
	})
	assert.ErrorIs(t, err, ErrNoAvailability)
}

func TestCollaboratorFailureDoesNotUnwindBooking(t *testing.T) {
	f := newFixture(t, nil, drLeeTable())
	f.messenger.failConfirm = fmt.Errorf("smtp down")
	f.forms.fail = fmt.Errorf("intake form source document missing")

	res, err := f.svc.Book(context.Background(), Request{
		Name: "Jane Doe", DOB: "1990-01-01", Provider: "Dr. Lee",
	})
	require.NoError(t, err, "collaborator failures must not fail the booking")
	require.Len(t, res.Warnings, 2)

	stored, err := f.ledger.GetByID(context.Background(), res.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusConfirmed, stored.Status)
	assert.Empty(t, stored.FormsSentAt, "forms stamp only on successful send")
}

func TestRemindDueIsIdempotentPerThreshold(t *testing.T) {
	f := newFixture(t, nil, drLeeTable())

	res, err := f.svc.Book(context.Background(), Request{
		Name: "Jane Doe", DOB: "1990-01-01", Provider: "Dr. Lee",
	})
	require.NoError(t, err)
	apptID := res.Appointment.ID

	// jump past the first two thresholds but not the third
	created := res.Appointment.CreatedAt
	f.svc.now = func() time.Time { return created.Add(49 * time.Hour) }

	sent, err := f.svc.RemindDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{apptID + "/1", apptID + "/2"}, f.messenger.reminders)

	// immediate second sweep sends nothing
	sent, err = f.svc.RemindDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sent)

	// past the third threshold only reminder 3 fires
	f.svc.now = func() time.Time { return created.Add(80 * time.Hour) }
	sent, err = f.svc.RemindDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{apptID + "/1", apptID + "/2", apptID + "/3"}, f.messenger.reminders)
}

func TestRemindDueRetriesFailedSends(t *testing.T) {
	f := newFixture(t, nil, drLeeTable())
	res, err := f.svc.Book(context.Background(), Request{
		Name: "Jane Doe", DOB: "1990-01-01", Provider: "Dr. Lee",
	})
	require.NoError(t, err)

	created := res.Appointment.CreatedAt
	f.svc.now = func() time.Time { return created.Add(25 * time.Hour) }

	f.messenger.failReminder = fmt.Errorf("gateway down")
	sent, err := f.svc.RemindDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sent)

	// stamp stayed empty, so the next sweep retries
	f.messenger.failReminder = nil
	sent, err = f.svc.RemindDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestExportStampsLedger(t *testing.T) {
	f := newFixture(t, nil, drLeeTable())
	_, err := f.svc.Book(context.Background(), Request{
		Name: "Jane Doe", DOB: "1990-01-01", Provider: "Dr. Lee",
	})
	require.NoError(t, err)

	dest, err := f.svc.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.exporter.dest, dest)
	assert.Equal(t, 1, f.exporter.count)

	appts, err := f.ledger.All(context.Background())
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.NotEmpty(t, appts[0].ExportedAt)
}
