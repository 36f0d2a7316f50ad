package appointment

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const StatusConfirmed Status = "confirmed"

// Appointment is one row in the booking ledger. Timestamps for collaborator
// side effects (forms, reminders, export) are RFC3339 strings where empty
// means "not yet stamped"; the reminder sweep keys off that emptiness.
type Appointment struct {
	ID           string    `json:"appt_id"`
	PatientID    string    `json:"patient_id"`
	PatientName  string    `json:"patient_name"`
	PatientEmail string    `json:"patient_email"`
	PatientPhone string    `json:"patient_phone"`
	Provider     string    `json:"provider"`
	Location     string    `json:"location"`
	Date         string    `json:"date"`
	Start        string    `json:"start"`
	End          string    `json:"end"`
	Minutes      int       `json:"duration"`
	Status       Status    `json:"status"`
	Reason       string    `json:"reason"`
	Insurer      string    `json:"insurance_carrier"`
	MemberID     string    `json:"member_id"`
	GroupNo      string    `json:"group_no"`
	FormsSentAt  string    `json:"forms_sent_at"`
	Reminder1    string    `json:"reminder1"`
	Reminder2    string    `json:"reminder2"`
	Reminder3    string    `json:"reminder3"`
	CreatedAt    time.Time `json:"created_at"`
	ExportedAt   string    `json:"exported_at"`
}

// ReminderStamp returns the stamp for reminder n (1..3), "" if unsent.
func (a *Appointment) ReminderStamp(n int) string {
	switch n {
	case 1:
		return a.Reminder1
	case 2:
		return a.Reminder2
	case 3:
		return a.Reminder3
	}
	return ""
}

// NewAppointmentID mints an id like "APPT-1a2b3c4d". Generated once at
// creation, never reused.
func NewAppointmentID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "APPT-" + hex[:8]
}
