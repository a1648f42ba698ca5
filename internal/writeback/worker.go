// Package writeback performs calendar write-back for committed bookings as
// a decoupled, best-effort side effect. It never holds the booking lock and
// its failures never undo a commit.
package writeback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"slotbook/internal/collector"
	"slotbook/internal/metrics"
	"slotbook/internal/models"
)

// Task kinds.
const (
	taskCreate = "create"
	taskDelete = "delete"
)

// ErrQueueFull is returned when the write-back queue cannot accept more
// work. The booking itself is unaffected.
var ErrQueueFull = errors.New("writeback queue full")

// Store records external event ids against bookings.
type Store interface {
	SetBookingExternalEvent(ctx context.Context, bookingID, externalEventID string) error
}

type task struct {
	kind            string
	booking         models.Booking
	bookingID       string
	externalEventID string
}

// Config tunes the worker's queue and retry behaviour.
type Config struct {
	QueueSize   int
	MaxAttempts int
	BackoffBase time.Duration
	CallTimeout time.Duration
	// RatePerSec caps outbound calendar calls.
	RatePerSec float64
	Burst      int
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{
		QueueSize:   256,
		MaxAttempts: 5,
		BackoffBase: 2 * time.Second,
		CallTimeout: 15 * time.Second,
		RatePerSec:  5,
		Burst:       10,
	}
}

// Worker drains the write-back queue against the sync collector.
type Worker struct {
	collector collector.Collector
	store     Store
	config    Config
	limiter   *rate.Limiter
	tasks     chan task
	logger    *zerolog.Logger
}

// NewWorker creates a write-back worker.
func NewWorker(col collector.Collector, store Store, cfg Config, logger *zerolog.Logger) *Worker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 15 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	return &Worker{
		collector: col,
		store:     store,
		config:    cfg,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		tasks:     make(chan task, cfg.QueueSize),
		logger:    logger,
	}
}

// EnqueueCreate queues a calendar event creation for a committed booking.
func (w *Worker) EnqueueCreate(booking models.Booking) error {
	return w.enqueue(task{kind: taskCreate, booking: booking, bookingID: booking.ID})
}

// EnqueueDelete queues a calendar event deletion for a cancelled booking.
func (w *Worker) EnqueueDelete(bookingID, externalEventID string) error {
	return w.enqueue(task{kind: taskDelete, bookingID: bookingID, externalEventID: externalEventID})
}

func (w *Worker) enqueue(t task) error {
	select {
	case w.tasks <- t:
		return nil
	default:
		metrics.IncWriteback("dropped")
		return ErrQueueFull
	}
}

// Start drains the queue until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info().Int("queue_size", w.config.QueueSize).Msg("writeback worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("writeback worker stopped")
			return
		case t := <-w.tasks:
			w.process(ctx, t)
		}
	}
}

// process runs a task with retries and exponential backoff. Exhausting the
// attempts is logged and counted; the booking's committed state stands.
func (w *Worker) process(ctx context.Context, t task) {
	var lastErr error
	for attempt := 1; attempt <= w.config.MaxAttempts; attempt++ {
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}

		lastErr = w.attempt(ctx, t)
		if lastErr == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}

		backoff := w.config.BackoffBase * time.Duration(1<<(attempt-1))
		w.logger.Warn().Err(lastErr).
			Str("kind", t.kind).
			Str("booking_id", t.bookingID).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("writeback attempt failed")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}

	metrics.IncWriteback("failed")
	w.logger.Error().Err(lastErr).
		Str("kind", t.kind).
		Str("booking_id", t.bookingID).
		Msg("writeback gave up after max attempts")
}

func (w *Worker) attempt(ctx context.Context, t task) error {
	callCtx, cancel := context.WithTimeout(ctx, w.config.CallTimeout)
	defer cancel()

	switch t.kind {
	case taskCreate:
		eventID, err := w.collector.CreateEvent(callCtx, t.booking)
		if err != nil {
			return err
		}
		if err := w.store.SetBookingExternalEvent(callCtx, t.bookingID, eventID); err != nil {
			// The calendar event exists; only the local pointer is missing.
			w.logger.Warn().Err(err).Str("booking_id", t.bookingID).Msg("record external event id failed")
		}
		metrics.IncWriteback("created")
		w.logger.Info().Str("booking_id", t.bookingID).Str("event_id", eventID).Msg("calendar event created")
		return nil

	case taskDelete:
		if t.externalEventID == "" {
			// Nothing was ever written back for this booking.
			metrics.IncWriteback("skipped")
			return nil
		}
		err := w.collector.DeleteEvent(callCtx, t.externalEventID)
		switch {
		case err == nil:
			metrics.IncWriteback("deleted")
			w.logger.Info().Str("booking_id", t.bookingID).Msg("calendar event deleted")
		case errors.Is(err, collector.ErrEventAbsent):
			// Idempotent deletion: already gone counts as done.
			metrics.IncWriteback("absent")
			w.logger.Debug().Str("booking_id", t.bookingID).Msg("calendar event already absent")
		default:
			return err
		}
		return nil

	default:
		return fmt.Errorf("unknown writeback task kind %q", t.kind)
	}
}
