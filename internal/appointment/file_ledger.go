package appointment

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ledgerHeader = []string{
	"appt_id", "patient_id", "patient_name", "patient_email", "patient_phone",
	"provider", "location", "date", "start", "end", "duration", "status",
	"reason", "insurance_carrier", "member_id", "group_no",
	"forms_sent_at", "reminder1", "reminder2", "reminder3",
	"created_at", "exported_at",
}

// FileLedger mirrors the in-memory ledger to a flat CSV table. Load failures
// degrade to an empty ledger; write failures are fatal to the operation.
type FileLedger struct {
	path   string
	logger *zap.Logger

	mu    sync.Mutex
	appts []Appointment
}

func NewFileLedger(path string, logger *zap.Logger) (*FileLedger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &FileLedger{path: path, logger: logger}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		if err := l.save(); err != nil {
			return nil, fmt.Errorf("initialize ledger: %w", err)
		}
		return l, nil
	}
	if err != nil {
		logger.Warn("ledger unreadable, starting empty", zap.String("path", path), zap.Error(err))
		return l, nil
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		logger.Warn("ledger corrupt, starting empty", zap.String("path", path), zap.Error(err))
		return l, nil
	}
	for i, row := range rows {
		if i == 0 {
			continue
		}
		a, ok := rowToAppointment(row)
		if !ok {
			logger.Warn("skipping malformed ledger row", zap.Int("line", i+1))
			continue
		}
		l.appts = append(l.appts, a)
	}
	return l, nil
}

func (l *FileLedger) Append(ctx context.Context, a Appointment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appts = append(l.appts, a)
	if err := l.save(); err != nil {
		l.appts = l.appts[:len(l.appts)-1]
		return err
	}
	return nil
}

func (l *FileLedger) All(ctx context.Context) ([]Appointment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Appointment, len(l.appts))
	copy(out, l.appts)
	return out, nil
}

func (l *FileLedger) GetByID(ctx context.Context, id string) (*Appointment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.appts {
		if l.appts[i].ID == id {
			a := l.appts[i]
			return &a, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (l *FileLedger) SetFormsSent(ctx context.Context, id string, at time.Time) error {
	return l.update(id, func(a *Appointment) {
		a.FormsSentAt = at.UTC().Format(time.RFC3339)
	})
}

func (l *FileLedger) SetReminderSent(ctx context.Context, id string, n int, at time.Time) error {
	stamp := at.UTC().Format(time.RFC3339)
	return l.update(id, func(a *Appointment) {
		switch n {
		case 1:
			a.Reminder1 = stamp
		case 2:
			a.Reminder2 = stamp
		case 3:
			a.Reminder3 = stamp
		}
	})
}

func (l *FileLedger) SetExported(ctx context.Context, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	stamp := at.UTC().Format(time.RFC3339)
	for i := range l.appts {
		l.appts[i].ExportedAt = stamp
	}
	return l.save()
}

func (l *FileLedger) update(id string, mutate func(*Appointment)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.appts {
		if l.appts[i].ID == id {
			prev := l.appts[i]
			mutate(&l.appts[i])
			if err := l.save(); err != nil {
				l.appts[i] = prev
				return err
			}
			return nil
		}
	}
	return ErrAppointmentNotFound
}

func (l *FileLedger) save() error {
	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".appointments-*.csv")
	if err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	w := csv.NewWriter(tmp)
	rows := [][]string{ledgerHeader}
	for i := range l.appts {
		rows = append(rows, appointmentToRow(l.appts[i]))
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

func appointmentToRow(a Appointment) []string {
	return []string{
		a.ID, a.PatientID, a.PatientName, a.PatientEmail, a.PatientPhone,
		a.Provider, a.Location, a.Date, a.Start, a.End,
		strconv.Itoa(a.Minutes), string(a.Status),
		a.Reason, a.Insurer, a.MemberID, a.GroupNo,
		a.FormsSentAt, a.Reminder1, a.Reminder2, a.Reminder3,
		a.CreatedAt.UTC().Format(time.RFC3339), a.ExportedAt,
	}
}

func rowToAppointment(row []string) (Appointment, bool) {
	if len(row) < len(ledgerHeader) || row[0] == "" {
		return Appointment{}, false
	}
	minutes, err := strconv.Atoi(row[10])
	if err != nil {
		return Appointment{}, false
	}
	createdAt, err := time.Parse(time.RFC3339, row[20])
	if err != nil {
		return Appointment{}, false
	}
	return Appointment{
		ID: row[0], PatientID: row[1], PatientName: row[2],
		PatientEmail: row[3], PatientPhone: row[4],
		Provider: row[5], Location: row[6], Date: row[7], Start: row[8], End: row[9],
		Minutes: minutes, Status: Status(row[11]),
		Reason: row[12], Insurer: row[13], MemberID: row[14], GroupNo: row[15],
		FormsSentAt: row[16], Reminder1: row[17], Reminder2: row[18], Reminder3: row[19],
		CreatedAt: createdAt, ExportedAt: row[21],
	}, true
}
