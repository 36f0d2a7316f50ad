package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/walkin-scheduling/internal/appointment"
)

func testAppt() *appointment.Appointment {
	return &appointment.Appointment{
		ID:           "APPT-1a2b3c4d",
		PatientEmail: "jane@example.com",
		PatientPhone: "555-123-4567",
		Provider:     "Dr. Lee",
		Date:         "2026-09-01",
		Start:        "10:00",
	}
}

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var payload map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &payload))
		lines = append(lines, payload)
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestLogMessengerAppendsJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messaging.log")
	m := NewLogMessenger(path)
	ctx := context.Background()

	require.NoError(t, m.SendConfirmation(ctx, testAppt()))
	require.NoError(t, m.SendReminder(ctx, testAppt(), 2))

	lines := readLines(t, path)
	require.Len(t, lines, 2)

	assert.Equal(t, "confirmation", lines[0]["type"])
	assert.Equal(t, "jane@example.com", lines[0]["to_email"])
	assert.Equal(t, "APPT-1a2b3c4d", lines[0]["appt_id"])
	assert.NotEmpty(t, lines[0]["ts"])

	assert.Equal(t, "reminder", lines[1]["type"])
	assert.Equal(t, float64(2), lines[1]["reminder_number"])
}
