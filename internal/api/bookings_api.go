package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"slotbook/internal/audit"
	"slotbook/internal/booking"
	"slotbook/internal/metrics"
	"slotbook/internal/models"
)

const exportLimit = 10000

// CreateBookingRequest is the request body for POST /api/v1/bookings.
type CreateBookingRequest struct {
	SlotStart       string `json:"slot_start"` // ISO-8601 with ±HH:MM offset
	SlotEnd         string `json:"slot_end"`
	DurationMinutes int    `json:"duration_minutes"`
	Participant     struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Notes string `json:"notes,omitempty"`
	} `json:"participant"`
}

// BookingResponse renders a booking with explicit-offset timestamps.
type BookingResponse struct {
	ID              string             `json:"id"`
	Start           string             `json:"start"`
	End             string             `json:"end"`
	DurationMinutes int                `json:"duration_minutes"`
	Status          string             `json:"status"`
	Participant     models.Participant `json:"participant"`
	CreatedAt       string             `json:"created_at"`
}

func toBookingResponse(b *models.Booking) BookingResponse {
	return BookingResponse{
		ID:              b.ID,
		Start:           b.StartTime.UTC().Format(timestampLayout),
		End:             b.EndTime.UTC().Format(timestampLayout),
		DurationMinutes: b.DurationMinutes,
		Status:          b.Status,
		Participant:     b.Participant,
		CreatedAt:       b.CreatedAt.UTC().Format(timestampLayout),
	}
}

// handleCreateBooking commits a slot selection as a booking.
// POST /api/v1/bookings
func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_booking")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req CreateBookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	slotStart, err := parseTimestamp("slot_start", req.SlotStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	slotEnd, err := parseTimestamp("slot_end", req.SlotEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.scheduler.Commit(r.Context(), booking.CommitRequest{
		SlotStart:       slotStart,
		SlotEnd:         slotEnd,
		DurationMinutes: req.DurationMinutes,
		Participant: models.Participant{
			Name:  req.Participant.Name,
			Email: req.Participant.Email,
			Notes: req.Participant.Notes,
		},
	})
	if err != nil {
		s.writeDomainError(w, "create_booking", err)
		return
	}

	s.log.Info().
		Str("booking_id", created.ID).
		Time("start", created.StartTime).
		Msg("booking created")

	writeJSON(w, http.StatusCreated, toBookingResponse(created))
}

// handleBookingByID dispatches /api/v1/bookings/{id} and the export route.
func (s *HTTPServer) handleBookingByID(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/v1/bookings/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	if rest == "" || strings.Contains(rest, "/") {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}

	if rest == "export" {
		s.handleExportBookings(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetBooking(w, r, rest)
	case http.MethodDelete:
		s.handleCancelBooking(w, r, rest)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleGetBooking returns a single booking.
// GET /api/v1/bookings/{id}
func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request, id string) {
	metrics.IncHTTP("get_booking")

	b, err := s.bookings.GetBooking(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, "get_booking", err)
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "booking not found")
		return
	}

	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

// handleCancelBooking cancels a booking. Cancelling an already-cancelled
// booking succeeds.
// DELETE /api/v1/bookings/{id}
func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request, id string) {
	metrics.IncHTTP("cancel_booking")

	if err := s.scheduler.Cancel(r.Context(), id); err != nil {
		s.writeDomainError(w, "cancel_booking", err)
		return
	}

	s.log.Info().Str("booking_id", id).Msg("booking cancelled")
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleExportBookings streams booking history as an Excel workbook.
// GET /api/v1/bookings/export?limit=N
func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_bookings")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}

	limit := exportLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > exportLimit {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	list, err := s.bookings.ListBookings(r.Context(), limit)
	if err != nil {
		s.writeDomainError(w, "export_bookings", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+audit.Filename(time.Now()))
	if err := s.exporter.WriteBookings(w, list); err != nil {
		s.log.Error().Err(err).Msg("booking export failed")
	}
}
