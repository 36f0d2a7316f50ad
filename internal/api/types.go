package api

import (
	"encoding/json"
	"net/http"

	"github.com/clinicdesk/walkin-scheduling/internal/appointment"
	"github.com/clinicdesk/walkin-scheduling/internal/patient"
	"github.com/clinicdesk/walkin-scheduling/internal/schedule"
)

type SlotRef struct {
	Date  string `json:"date" validate:"required,datetime=2006-01-02"`
	Start string `json:"start_time" validate:"required"`
	End   string `json:"end_time" validate:"required"`
}

type BookRequest struct {
	Name     string   `json:"name" validate:"required"`
	DOB      string   `json:"dob" validate:"required"`
	Phone    string   `json:"phone"`
	Email    string   `json:"email" validate:"omitempty,email"`
	Provider string   `json:"provider" validate:"required"`
	Reason   string   `json:"reason"`
	Insurer  string   `json:"insurance_carrier"`
	MemberID string   `json:"member_id"`
	GroupNo  string   `json:"group_no"`
	Slot     *SlotRef `json:"slot,omitempty"`
}

type BookResponse struct {
	Status        string                   `json:"status"`
	Message       string                   `json:"message"`
	PatientStatus string                   `json:"patient_status"`
	Confidence    float64                  `json:"confidence"`
	Warnings      []string                 `json:"warnings,omitempty"`
	Appointment   *appointment.Appointment `json:"appointment"`
}

type ResolveRequest struct {
	Name  string `json:"name"`
	DOB   string `json:"dob"`
	Phone string `json:"phone"`
	Email string `json:"email" validate:"omitempty,email"`
	TopK  int    `json:"top_k"`
}

type ResolveResponse struct {
	Status     string              `json:"status"`
	Confidence float64             `json:"confidence"`
	Patient    *patient.Patient    `json:"patient"`
	Candidates []patient.Candidate `json:"candidates,omitempty"`
}

type ProvidersResponse struct {
	Providers []string `json:"providers"`
}

type DaysResponse struct {
	Days []string `json:"days"`
}

type SlotsResponse struct {
	Slots []schedule.Slot `json:"slots"`
}

type RemindersResponse struct {
	Sent int `json:"sent"`
}

type ExportResponse struct {
	Destination string `json:"destination"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
