package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgLedger stores the appointment ledger in Postgres.
type PgLedger struct {
	pool *pgxpool.Pool
}

func NewPgLedger(pool *pgxpool.Pool) *PgLedger {
	return &PgLedger{pool: pool}
}

const apptColumns = `
	appt_id, patient_id, patient_name, patient_email, patient_phone,
	provider, location, appt_date, start_time, end_time, duration, status,
	reason, insurance_carrier, member_id, group_no,
	forms_sent_at, reminder1, reminder2, reminder3, created_at, exported_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	err := row.Scan(
		&a.ID, &a.PatientID, &a.PatientName, &a.PatientEmail, &a.PatientPhone,
		&a.Provider, &a.Location, &a.Date, &a.Start, &a.End, &a.Minutes, &status,
		&a.Reason, &a.Insurer, &a.MemberID, &a.GroupNo,
		&a.FormsSentAt, &a.Reminder1, &a.Reminder2, &a.Reminder3,
		&a.CreatedAt, &a.ExportedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	a.Status = Status(status)
	return &a, nil
}

func (l *PgLedger) Append(ctx context.Context, a Appointment) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO appointments (`+apptColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`,
		a.ID, a.PatientID, a.PatientName, a.PatientEmail, a.PatientPhone,
		a.Provider, a.Location, a.Date, a.Start, a.End, a.Minutes, string(a.Status),
		a.Reason, a.Insurer, a.MemberID, a.GroupNo,
		a.FormsSentAt, a.Reminder1, a.Reminder2, a.Reminder3,
		a.CreatedAt, a.ExportedAt,
	)
	return err
}

func (l *PgLedger) All(ctx context.Context) ([]Appointment, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		ORDER BY created_at, appt_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (l *PgLedger) GetByID(ctx context.Context, id string) (*Appointment, error) {
	row := l.pool.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE appt_id = $1
	`, id)
	return scanAppointment(row)
}

func (l *PgLedger) SetFormsSent(ctx context.Context, id string, at time.Time) error {
	return l.stamp(ctx, "forms_sent_at", id, at)
}

func (l *PgLedger) SetReminderSent(ctx context.Context, id string, n int, at time.Time) error {
	if n < 1 || n > 3 {
		return fmt.Errorf("reminder number out of range: %d", n)
	}
	return l.stamp(ctx, fmt.Sprintf("reminder%d", n), id, at)
}

func (l *PgLedger) SetExported(ctx context.Context, at time.Time) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE appointments SET exported_at = $1`,
		at.UTC().Format(time.RFC3339))
	return err
}

func (l *PgLedger) stamp(ctx context.Context, column, id string, at time.Time) error {
	tag, err := l.pool.Exec(ctx,
		`UPDATE appointments SET `+column+` = $1 WHERE appt_id = $2`,
		at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}
