// Package notify is the outbound-message collaborator. The core treats
// delivery as best effort; the default implementation records every message
// as one JSON line in an append-only log, which is what the front desk
// reviews in lieu of a real SMS/email gateway.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/clinicdesk/walkin-scheduling/internal/appointment"
)

// Messenger is the contract the booking coordinator calls into. No retry
// behavior is imposed on implementations.
type Messenger interface {
	SendConfirmation(ctx context.Context, appt *appointment.Appointment) error
	SendReminder(ctx context.Context, appt *appointment.Appointment, reminderNumber int) error
}

// LogMessenger appends message payloads to a JSONL file.
type LogMessenger struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

func NewLogMessenger(path string) *LogMessenger {
	return &LogMessenger{path: path, now: time.Now}
}

func (m *LogMessenger) SendConfirmation(ctx context.Context, appt *appointment.Appointment) error {
	return m.log(map[string]any{
		"type":     "confirmation",
		"to_email": appt.PatientEmail,
		"to_phone": appt.PatientPhone,
		"appt_id":  appt.ID,
		"message":  fmt.Sprintf("Confirmed: %s on %s %s", appt.Provider, appt.Date, appt.Start),
	})
}

func (m *LogMessenger) SendReminder(ctx context.Context, appt *appointment.Appointment, reminderNumber int) error {
	return m.log(map[string]any{
		"type":            "reminder",
		"reminder_number": reminderNumber,
		"to_email":        appt.PatientEmail,
		"to_phone":        appt.PatientPhone,
		"appt_id":         appt.ID,
		"message":         fmt.Sprintf("Reminder %d for appt %s", reminderNumber, appt.ID),
	})
}

func (m *LogMessenger) log(payload map[string]any) error {
	payload["ts"] = m.now().UTC().Format(time.RFC3339)

	line, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := os.OpenFile(m.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open messaging log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append messaging log: %w", err)
	}
	return nil
}
