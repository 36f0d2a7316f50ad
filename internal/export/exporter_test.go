package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/walkin-scheduling/internal/appointment"
)

func TestCSVExporterWritesSnapshot(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out", "appointments_export.csv")

	appts := []appointment.Appointment{
		{
			ID: "APPT-1a2b3c4d", PatientID: "P000001", PatientName: "Jane Doe",
			Provider: "Dr. Lee", Date: "2026-09-01", Start: "10:00", End: "11:00",
			Minutes: 60, Status: appointment.StatusConfirmed,
			CreatedAt:  time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
			ExportedAt: "2026-08-30T13:00:00Z",
		},
		{
			ID: "APPT-5e6f7a8b", PatientID: "P000002", PatientName: "John Roe",
			Provider: "Dr. Lee", Date: "2026-09-02", Start: "09:00", End: "09:30",
			Minutes: 30, Status: appointment.StatusConfirmed,
			CreatedAt: time.Date(2026, 8, 30, 12, 5, 0, 0, time.UTC),
		},
	}

	require.NoError(t, CSVExporter{}.Export(context.Background(), appts, dest))

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, snapshotHeader, rows[0])
	assert.Equal(t, "APPT-1a2b3c4d", rows[1][0])
	assert.Equal(t, "Jane Doe", rows[1][2])
	assert.Equal(t, "60", rows[1][10])
	assert.Equal(t, "2026-08-30T13:00:00Z", rows[1][21])
	assert.Equal(t, "APPT-5e6f7a8b", rows[2][0])
}

func TestCSVExporterOverwritesPrevious(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "export.csv")
	ctx := context.Background()

	require.NoError(t, CSVExporter{}.Export(ctx, []appointment.Appointment{
		{ID: "APPT-1a2b3c4d"}, {ID: "APPT-5e6f7a8b"},
	}, dest))
	require.NoError(t, CSVExporter{}.Export(ctx, []appointment.Appointment{
		{ID: "APPT-9c0d1e2f"},
	}, dest))

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "APPT-9c0d1e2f", rows[1][0])
}
