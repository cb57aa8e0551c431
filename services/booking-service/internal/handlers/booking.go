package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/salonbook/bookingengine/libs/httpx"
	"github.com/salonbook/bookingengine/services/booking-service/internal/booking"
	"github.com/salonbook/bookingengine/services/booking-service/internal/model"
)

// Engine is the part of booking.Engine the HTTP layer drives.
type Engine interface {
	Book(ctx context.Context, req booking.BookRequest) (model.Appointment, error)
	Get(ctx context.Context, id string) (model.Appointment, error)
	TransitionStatus(ctx context.Context, id string, to model.Status) (model.Appointment, error)
	Cancel(ctx context.Context, id string, initiator model.Initiator, reason string) (model.Appointment, error)
	Slots(ctx context.Context, req booking.SlotsRequest) ([]booking.Slot, error)
}

type BookingHandler struct {
	engine Engine
	logger *slog.Logger
}

func NewBookingHandler(engine Engine, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{engine: engine, logger: logger}
}

// Register mounts the booking routes on mux.
func (h *BookingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/public/book", h.Book)
	mux.HandleFunc("/api/v1/public/slots", h.Slots)
	mux.HandleFunc("/api/v1/appointments/get", h.Get)
	mux.HandleFunc("/api/v1/appointments/status", h.UpdateStatus)
	mux.HandleFunc("/api/v1/appointments/cancel", h.Cancel)
}

type appointmentResponse struct {
	AppointmentID string       `json:"appointment_id"`
	BusinessID    string       `json:"business_id"`
	ServiceID     string       `json:"service_id"`
	StaffID       string       `json:"staff_id"`
	ClientID      string       `json:"client_id,omitempty"`
	Guest         *model.Guest `json:"guest,omitempty"`
	Status        model.Status `json:"status"`
	Date          string       `json:"date"`
	StartTime     string       `json:"start_time"`
	EndTime       string       `json:"end_time"`
	StartAt       string       `json:"start_at"`
	EndAt         string       `json:"end_at"`
	Price         string       `json:"price"`
	Currency      string       `json:"currency"`
	DurationMins  int          `json:"duration_minutes"`
	Notes         string       `json:"notes,omitempty"`
	CancelledBy   string       `json:"cancelled_by,omitempty"`
	CancelReason  string       `json:"cancel_reason,omitempty"`
	CreatedAt     string       `json:"created_at,omitempty"`
}

func toResponse(a model.Appointment) appointmentResponse {
	resp := appointmentResponse{
		AppointmentID: a.ID,
		BusinessID:    a.BusinessID,
		ServiceID:     a.ServiceID,
		StaffID:       a.StaffID,
		ClientID:      a.ClientID,
		Guest:         a.Guest,
		Status:        a.Status,
		Date:          a.Date,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		StartAt:       a.StartAt.UTC().Format(time.RFC3339),
		EndAt:         a.EndAt.UTC().Format(time.RFC3339),
		Price:         a.Price.StringFixed(2),
		Currency:      a.Currency,
		DurationMins:  a.DurationMins,
		Notes:         a.Notes,
		CancelledBy:   string(a.CancelledBy),
		CancelReason:  a.CancelReason,
	}
	if !a.CreatedAt.IsZero() {
		resp.CreatedAt = a.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

type statusRequest struct {
	AppointmentID string       `json:"appointment_id"`
	Status        model.Status `json:"status"`
}

type cancelRequest struct {
	AppointmentID string          `json:"appointment_id"`
	Initiator     model.Initiator `json:"initiator"`
	Reason        string          `json:"reason"`
}

func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req booking.BookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, string(booking.KindInvalidRequest), "invalid json body")
		return
	}
	req.IdempotencyKey = strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	appt, err := h.engine.Book(r.Context(), req)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toResponse(appt))
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("appointment_id"))
	if id == "" {
		httpx.WriteError(w, http.StatusBadRequest, string(booking.KindInvalidRequest), "appointment_id required")
		return
	}
	appt, err := h.engine.Get(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(appt))
}

func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, string(booking.KindInvalidRequest), "invalid json body")
		return
	}
	to := model.Status(strings.ToUpper(strings.TrimSpace(string(req.Status))))
	if to == "" {
		httpx.WriteError(w, http.StatusBadRequest, string(booking.KindInvalidRequest), "status required")
		return
	}
	appt, err := h.engine.TransitionStatus(r.Context(), req.AppointmentID, to)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(appt))
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req cancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, string(booking.KindInvalidRequest), "invalid json body")
		return
	}
	initiator := model.Initiator(strings.ToLower(strings.TrimSpace(string(req.Initiator))))
	appt, err := h.engine.Cancel(r.Context(), req.AppointmentID, initiator, req.Reason)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(appt))
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	q := r.URL.Query()
	req := booking.SlotsRequest{
		BusinessID: strings.TrimSpace(q.Get("business_id")),
		ServiceID:  strings.TrimSpace(q.Get("service_id")),
		StaffID:    strings.TrimSpace(q.Get("staff_id")),
		Date:       strings.TrimSpace(q.Get("date")),
	}
	slots, err := h.engine.Slots(r.Context(), req)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, slots)
}

// StatusFor maps an engine error kind to its HTTP status.
func StatusFor(kind booking.Kind) int {
	switch kind {
	case booking.KindServiceNotFound, booking.KindAppointmentNotFound:
		return http.StatusNotFound
	case booking.KindSlotUnavailable, booking.KindNoStaffAvailable, booking.KindConcurrencyConflict, booking.KindInvalidTransition:
		return http.StatusConflict
	case booking.KindGuestInfoRequired, booking.KindInvalidTimezone:
		return http.StatusUnprocessableEntity
	case booking.KindInvalidRequest:
		return http.StatusBadRequest
	case booking.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *BookingHandler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var be *booking.Error
	if !errors.As(err, &be) {
		h.logger.ErrorContext(r.Context(), "unexpected engine error",
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"err", err,
		)
		httpx.WriteError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	status := StatusFor(be.Kind)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "booking request failed",
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"kind", be.Kind,
			"err", err,
		)
		// The cause may carry driver details.
		httpx.WriteError(w, status, string(be.Kind), "storage temporarily unavailable")
		return
	}
	httpx.WriteError(w, status, string(be.Kind), be.Message)
}
