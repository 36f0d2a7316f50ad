package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/clinicdesk/walkin-scheduling/internal/appointment"
	"github.com/clinicdesk/walkin-scheduling/internal/booking"
	"github.com/clinicdesk/walkin-scheduling/internal/patient"
	"github.com/clinicdesk/walkin-scheduling/internal/schedule"
)

type Handler struct {
	svc      *booking.Service
	registry *patient.Registry
	avail    *schedule.Availability
	ledger   appointment.Ledger
	metrics  *Metrics
	validate *validator.Validate
	logger   *zap.Logger
}

func NewHandler(
	svc *booking.Service,
	registry *patient.Registry,
	avail *schedule.Availability,
	ledger appointment.Ledger,
	metrics *Metrics,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		svc:      svc,
		registry: registry,
		avail:    avail,
		ledger:   ledger,
		metrics:  metrics,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.avail.Providers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ProvidersResponse{Providers: providers})
}

func (h *Handler) ListDays(w http.ResponseWriter, r *http.Request) {
	n := 7
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 90 {
			writeError(w, http.StatusBadRequest, "invalid_days", "n must be an integer between 1 and 90")
			return
		}
		n = parsed
	}
	writeJSON(w, http.StatusOK, DaysResponse{Days: h.avail.UpcomingDays(n)})
}

func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "missing_date", "date query parameter is required")
		return
	}

	slots, err := h.avail.SlotsOn(r.Context(), provider, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if slots == nil {
		slots = []schedule.Slot{}
	}
	writeJSON(w, http.StatusOK, SlotsResponse{Slots: slots})
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	breq := booking.Request{
		Name:     req.Name,
		DOB:      req.DOB,
		Phone:    req.Phone,
		Email:    req.Email,
		Provider: req.Provider,
		Reason:   req.Reason,
		Insurer:  req.Insurer,
		MemberID: req.MemberID,
		GroupNo:  req.GroupNo,
	}
	if req.Slot != nil {
		breq.Slot = &schedule.SlotKey{
			Date:  req.Slot.Date,
			Start: req.Slot.Start,
			End:   req.Slot.End,
		}
	}

	res, err := h.svc.Book(r.Context(), breq)
	if err != nil {
		h.handleBookError(w, err)
		return
	}

	h.metrics.RecordBooking("ok")
	writeJSON(w, http.StatusCreated, BookResponse{
		Status:        "booked",
		Message:       res.Message,
		PatientStatus: string(res.PatientStatus),
		Confidence:    res.Confidence,
		Warnings:      res.Warnings,
		Appointment:   res.Appointment,
	})
}

func (h *Handler) handleBookError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrNoAvailability):
		h.metrics.RecordBooking("no_availability")
		writeError(w, http.StatusConflict, "no_availability", err.Error())
	case errors.Is(err, booking.ErrBookingConflict):
		h.metrics.RecordBooking("booking_conflict")
		writeError(w, http.StatusConflict, "booking_conflict", "slot was taken by another booking, pick a different slot")
	default:
		h.metrics.RecordBooking("error")
		h.logger.Error("booking failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	appts, err := h.ledger.All(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if appts == nil {
		appts = []appointment.Appointment{}
	}
	writeJSON(w, http.StatusOK, appts)
}

func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := h.ledger.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, appointment.ErrAppointmentNotFound) {
			writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	p, err := h.registry.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, patient.ErrPatientNotFound) {
			writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ResolvePatient previews identity resolution without booking anything. The
// candidate list shows how close the near-misses were.
func (h *Handler) ResolvePatient(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	p, status, confidence, err := h.registry.Resolve(r.Context(), req.Name, req.DOB, req.Phone, req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	resp := ResolveResponse{
		Status:     string(status),
		Confidence: confidence,
		Patient:    p,
	}
	if req.TopK > 0 {
		cands, err := h.registry.Candidates(r.Context(), req.Name, req.DOB, req.TopK)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		resp.Candidates = cands
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) RunReminders(w http.ResponseWriter, r *http.Request) {
	sent, err := h.svc.RemindDue(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, RemindersResponse{Sent: sent})
}

func (h *Handler) RunExport(w http.ResponseWriter, r *http.Request) {
	dest, err := h.svc.Export(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ExportResponse{Destination: dest})
}
