// Package api exposes slot discovery and booking over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"slotbook/internal/booking"
	"slotbook/internal/models"
)

// Scheduler is the booking core the API delegates to.
type Scheduler interface {
	AvailableSlots(ctx context.Context, req models.SlotRequest) ([]models.Slot, error)
	Commit(ctx context.Context, req booking.CommitRequest) (*models.Booking, error)
	Cancel(ctx context.Context, bookingID string) error
}

// BookingReader serves read-only booking lookups and history exports.
type BookingReader interface {
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context, limit int) ([]models.Booking, error)
}

// Exporter renders booking history for download.
type Exporter interface {
	WriteBookings(w io.Writer, bookings []models.Booking) error
}

// HTTPServer is the public API server.
type HTTPServer struct {
	scheduler Scheduler
	bookings  BookingReader
	exporter  Exporter
	log       *zerolog.Logger
	server    *http.Server
}

// NewHTTPServer creates the API server listening on the given port.
func NewHTTPServer(port int, scheduler Scheduler, bookings BookingReader, exporter Exporter, logger *zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		scheduler: scheduler,
		bookings:  bookings,
		exporter:  exporter,
		log:       logger,
	}
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *HTTPServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/slots", s.handleSlots)
	mux.HandleFunc("/api/v1/bookings", s.handleCreateBooking)
	mux.HandleFunc("/api/v1/bookings/", s.handleBookingByID)
	return mux
}

// Start serves until ListenAndServe returns.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("api server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// writeDomainError maps core errors to HTTP statuses. Internal failures are
// logged but never echoed to the caller.
func (s *HTTPServer) writeDomainError(w http.ResponseWriter, endpoint string, err error) {
	switch {
	case booking.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable")
	case errors.Is(err, booking.ErrNotFound):
		writeError(w, http.StatusNotFound, "booking not found")
	case booking.IsRetryable(err):
		writeError(w, http.StatusServiceUnavailable, "busy, retry shortly")
	default:
		s.log.Error().Err(err).Str("endpoint", endpoint).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
