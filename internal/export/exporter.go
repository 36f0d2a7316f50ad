// Package export writes appointment-ledger snapshots for downstream review.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/clinicdesk/walkin-scheduling/internal/appointment"
)

// Exporter is the export collaborator contract: dump the full ledger to a
// destination. Stamping exported_at on the ledger is the coordinator's job.
type Exporter interface {
	Export(ctx context.Context, appts []appointment.Appointment, dest string) error
}

// CSVExporter writes the snapshot as a flat CSV table.
type CSVExporter struct{}

var snapshotHeader = []string{
	"appt_id", "patient_id", "patient_name", "patient_email", "patient_phone",
	"provider", "location", "date", "start", "end", "duration", "status",
	"reason", "insurance_carrier", "member_id", "group_no",
	"forms_sent_at", "reminder1", "reminder2", "reminder3",
	"created_at", "exported_at",
}

func (CSVExporter) Export(ctx context.Context, appts []appointment.Appointment, dest string) error {
	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".export-*.csv")
	if err != nil {
		return fmt.Errorf("write export: %w", err)
	}

	w := csv.NewWriter(tmp)
	rows := [][]string{snapshotHeader}
	for _, a := range appts {
		rows = append(rows, []string{
			a.ID, a.PatientID, a.PatientName, a.PatientEmail, a.PatientPhone,
			a.Provider, a.Location, a.Date, a.Start, a.End,
			strconv.Itoa(a.Minutes), string(a.Status),
			a.Reason, a.Insurer, a.MemberID, a.GroupNo,
			a.FormsSentAt, a.Reminder1, a.Reminder2, a.Reminder3,
			a.CreatedAt.UTC().Format(time.RFC3339), a.ExportedAt,
		})
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write export: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}
