// Package booking owns booking commit and cancellation, including the
// write-serialization discipline that prevents double booking.
package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"slotbook/internal/availability"
	"slotbook/internal/metrics"
	"slotbook/internal/models"
	"slotbook/internal/slots"
)

// Store is the coordinator's storage boundary. Bookings are written by the
// coordinator only; no other component mutates them.
type Store interface {
	GetSettings(ctx context.Context) (models.SchedulingSettings, error)
	ListRules(ctx context.Context) ([]models.AvailabilityRule, error)
	ListManualBlocksInRange(ctx context.Context, start, end time.Time) ([]models.ManualBlock, error)
	ListActiveBookingsInRange(ctx context.Context, start, end time.Time) ([]models.Booking, error)
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id, status string) error
}

// BusySource supplies cached busy intervals from external calendars.
type BusySource interface {
	BusyIntervals(ctx context.Context, start, end time.Time) ([]models.BusyInterval, error)
}

// WritebackQueue receives decoupled calendar write-back requests. Enqueue
// happens outside the booking lock and its failure never affects the
// already-committed booking.
type WritebackQueue interface {
	EnqueueCreate(booking models.Booking) error
	EnqueueDelete(bookingID, externalEventID string) error
}

// EventPublisher notifies in-process observers of booking lifecycle events.
type EventPublisher interface {
	PublishJSON(eventType string, payload any) error
}

// Event types published by the coordinator.
const (
	EventBookingCreated   = "booking.created"
	EventBookingCancelled = "booking.cancelled"
)

// CommitRequest is a slot selection to be committed as a booking.
type CommitRequest struct {
	SlotStart       time.Time
	SlotEnd         time.Time
	DurationMinutes int
	Participant     models.Participant
}

// Coordinator validates slot selections against live state and commits them
// under a per-host FIFO lock.
type Coordinator struct {
	store     Store
	busy      BusySource
	writeback WritebackQueue
	bus       EventPublisher
	locks     *LockRegistry
	resolver  *availability.Resolver
	hostID    string
	logger    *zerolog.Logger
	now       func() time.Time
}

// NewCoordinator wires a coordinator for a single host.
func NewCoordinator(store Store, busy BusySource, writeback WritebackQueue, bus EventPublisher, locks *LockRegistry, hostID string, logger *zerolog.Logger) *Coordinator {
	if hostID == "" {
		hostID = "host"
	}
	return &Coordinator{
		store:     store,
		busy:      busy,
		writeback: writeback,
		bus:       bus,
		locks:     locks,
		resolver:  availability.NewResolver(logger),
		hostID:    hostID,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock overrides the coordinator's time source. Intended for tests.
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

// AvailableSlots resolves free time for the request range and generates
// bookable slots. Read-only: any number of callers may run this
// concurrently with commits.
func (c *Coordinator) AvailableSlots(ctx context.Context, req models.SlotRequest) ([]models.Slot, error) {
	metrics.IncSlotRequests()
	if err := validateDuration(req.DurationMinutes); err != nil {
		return nil, err
	}
	if !req.RangeEnd.After(req.RangeStart) {
		return nil, newValidationError("range", "range end must be after range start")
	}

	settings, err := c.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	rules, err := c.store.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	busy, err := c.collectBusy(ctx, req.RangeStart, req.RangeEnd)
	if err != nil {
		return nil, err
	}

	free := c.resolver.Resolve(req.RangeStart, req.RangeEnd, rules, busy)
	return slots.Generate(free, req.DurationMinutes, settings, c.now()), nil
}

// Commit re-validates the slot selection against current state and persists
// the booking. Validation and write happen inside the host lock, so no two
// commits can both see the same interval as free. The calendar write-back is
// enqueued after the lock is released.
func (c *Coordinator) Commit(ctx context.Context, req CommitRequest) (*models.Booking, error) {
	if err := validateCommitRequest(req); err != nil {
		return nil, err
	}

	release, err := c.locks.Acquire(ctx, c.hostID)
	if err != nil {
		metrics.IncCommit("lock_busy")
		return nil, err
	}

	booking, err := c.commitLocked(ctx, req)
	release()
	if err != nil {
		return nil, err
	}

	metrics.IncCommit("committed")
	c.publish(EventBookingCreated, booking)
	if err := c.writeback.EnqueueCreate(*booking); err != nil {
		// Best-effort side effect: the booking stands regardless.
		c.logger.Warn().Err(err).Str("booking_id", booking.ID).Msg("enqueue calendar write-back failed")
	}
	return booking, nil
}

func (c *Coordinator) commitLocked(ctx context.Context, req CommitRequest) (*models.Booking, error) {
	settings, err := c.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	now := c.now()
	if req.SlotStart.Before(now.Add(settings.MinNotice())) {
		metrics.IncCommit("conflict")
		return nil, fmt.Errorf("slot start violates minimum notice: %w", ErrSlotUnavailable)
	}
	if req.SlotEnd.After(now.Add(settings.BookingWindow())) {
		metrics.IncCommit("conflict")
		return nil, fmt.Errorf("slot end beyond booking window: %w", ErrSlotUnavailable)
	}

	busy, err := c.collectBusy(ctx, req.SlotStart, req.SlotEnd)
	if err != nil {
		return nil, err
	}
	requested := models.TimeInterval{Start: req.SlotStart, End: req.SlotEnd}
	for _, b := range busy {
		if requested.Overlaps(b.TimeInterval) {
			metrics.IncCommit("conflict")
			c.logger.Info().
				Time("slot_start", req.SlotStart).
				Str("busy_source", b.Source).
				Msg("commit rejected, interval busy")
			return nil, ErrSlotUnavailable
		}
	}

	booking := &models.Booking{
		ID:              uuid.NewString(),
		StartTime:       req.SlotStart.UTC(),
		EndTime:         req.SlotEnd.UTC(),
		DurationMinutes: req.DurationMinutes,
		Status:          models.StatusConfirmed,
		Participant:     req.Participant,
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}
	if err := c.store.CreateBooking(ctx, booking); err != nil {
		metrics.IncCommit("error")
		return nil, fmt.Errorf("persist booking: %w", err)
	}

	c.logger.Info().
		Str("booking_id", booking.ID).
		Time("start", booking.StartTime).
		Time("end", booking.EndTime).
		Msg("booking committed")
	return booking, nil
}

// Cancel transitions a confirmed booking to cancelled under the same host
// lock as commit. Cancelling an already-cancelled booking succeeds without
// effect.
func (c *Coordinator) Cancel(ctx context.Context, bookingID string) error {
	if strings.TrimSpace(bookingID) == "" {
		return newValidationError("booking_id", "required")
	}

	release, err := c.locks.Acquire(ctx, c.hostID)
	if err != nil {
		return err
	}

	booking, err := c.cancelLocked(ctx, bookingID)
	release()
	if err != nil {
		return err
	}
	if booking == nil {
		// Already cancelled; nothing changed and no write-back is due.
		return nil
	}

	metrics.IncCancellation()
	c.publish(EventBookingCancelled, booking)
	if err := c.writeback.EnqueueDelete(booking.ID, booking.ExternalEventID); err != nil {
		c.logger.Warn().Err(err).Str("booking_id", booking.ID).Msg("enqueue calendar delete failed")
	}
	return nil
}

// cancelLocked returns the booking when a state transition happened, nil
// when the cancellation was an idempotent no-op.
func (c *Coordinator) cancelLocked(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, err := c.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if booking == nil {
		return nil, ErrNotFound
	}
	if booking.Status == models.StatusCancelled {
		return nil, nil
	}

	if err := c.store.UpdateBookingStatus(ctx, bookingID, models.StatusCancelled); err != nil {
		return nil, fmt.Errorf("update booking status: %w", err)
	}
	booking.Status = models.StatusCancelled

	c.logger.Info().Str("booking_id", bookingID).Msg("booking cancelled")
	return booking, nil
}

// collectBusy gathers busy intervals from every source for the given range:
// confirmed bookings and manual blocks from storage, calendar events from
// the sync collector's cache.
func (c *Coordinator) collectBusy(ctx context.Context, start, end time.Time) ([]models.BusyInterval, error) {
	bookings, err := c.store.ListActiveBookingsInRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}
	blocks, err := c.store.ListManualBlocksInRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load manual blocks: %w", err)
	}
	events, err := c.busy.BusyIntervals(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load calendar busy intervals: %w", err)
	}

	busy := make([]models.BusyInterval, 0, len(bookings)+len(blocks)+len(events))
	for _, b := range bookings {
		busy = append(busy, models.BusyInterval{
			TimeInterval: b.Interval(),
			Source:       models.SourceConfirmedBooking,
			SourceID:     b.ID,
		})
	}
	for _, blk := range blocks {
		busy = append(busy, models.BusyInterval{
			TimeInterval: models.TimeInterval{Start: blk.StartTime, End: blk.EndTime},
			Source:       models.SourceManualBlock,
			SourceID:     fmt.Sprintf("%d", blk.ID),
		})
	}
	busy = append(busy, events...)
	return busy, nil
}

func (c *Coordinator) publish(eventType string, booking *models.Booking) {
	if c.bus == nil {
		return
	}
	if err := c.bus.PublishJSON(eventType, booking); err != nil {
		c.logger.Warn().Err(err).Str("event", eventType).Msg("publish event failed")
	}
}

func validateCommitRequest(req CommitRequest) error {
	if err := validateDuration(req.DurationMinutes); err != nil {
		return err
	}
	if !req.SlotEnd.After(req.SlotStart) {
		return newValidationError("slot", "slot end must be after slot start")
	}
	if req.SlotEnd.Sub(req.SlotStart) != time.Duration(req.DurationMinutes)*time.Minute {
		return newValidationError("slot", "slot length does not match duration")
	}
	if strings.TrimSpace(req.Participant.Name) == "" {
		return newValidationError("participant.name", "required")
	}
	if strings.TrimSpace(req.Participant.Email) == "" {
		return newValidationError("participant.email", "required")
	}
	return nil
}

func validateDuration(minutes int) error {
	if minutes < models.MinDurationMinutes || minutes > models.MaxDurationMinutes {
		return newValidationError("duration_minutes",
			"must be between %d and %d", models.MinDurationMinutes, models.MaxDurationMinutes)
	}
	return nil
}
