package booking

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"slotbook/internal/models"
)

// fakeStore is an in-memory Store so concurrency tests exercise real
// check-then-write interleavings.
type fakeStore struct {
	mu       sync.Mutex
	settings models.SchedulingSettings
	rules    []models.AvailabilityRule
	blocks   []models.ManualBlock
	bookings map[string]*models.Booking
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		settings: models.SchedulingSettings{MinNoticeHours: 0, BookingWindowDays: 30, DefaultDurationMinutes: 30},
		bookings: make(map[string]*models.Booking),
	}
}

func (s *fakeStore) GetSettings(ctx context.Context) (models.SchedulingSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

func (s *fakeStore) ListRules(ctx context.Context) ([]models.AvailabilityRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules, nil
}

func (s *fakeStore) ListManualBlocksInRange(ctx context.Context, start, end time.Time) ([]models.ManualBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ManualBlock
	for _, b := range s.blocks {
		if b.StartTime.Before(end) && start.Before(b.EndTime) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeStore) ListActiveBookingsInRange(ctx context.Context, start, end time.Time) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Booking
	for _, b := range s.bookings {
		if b.Status == models.StatusConfirmed && b.StartTime.Before(end) && start.Before(b.EndTime) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.bookings[b.ID] = &cp
	return nil
}

func (s *fakeStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (s *fakeStore) UpdateBookingStatus(ctx context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return errors.New("no such booking")
	}
	b.Status = status
	return nil
}

type mockBusySource struct {
	mock.Mock
}

func (m *mockBusySource) BusyIntervals(ctx context.Context, start, end time.Time) ([]models.BusyInterval, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BusyInterval), args.Error(1)
}

type mockQueue struct {
	mock.Mock
}

func (m *mockQueue) EnqueueCreate(b models.Booking) error { return m.Called(b).Error(0) }
func (m *mockQueue) EnqueueDelete(bookingID, externalEventID string) error {
	return m.Called(bookingID, externalEventID).Error(0)
}

type mockBus struct {
	mock.Mock
}

func (m *mockBus) PublishJSON(eventType string, payload any) error {
	return m.Called(eventType, payload).Error(0)
}

func newTestCoordinator(store Store) (*Coordinator, *mockBusySource, *mockQueue, *mockBus) {
	busy := new(mockBusySource)
	queue := new(mockQueue)
	bus := new(mockBus)
	logger := zerolog.New(io.Discard)
	c := NewCoordinator(store, busy, queue, bus, NewLockRegistry(2*time.Second), "host", &logger)
	return c, busy, queue, bus
}

var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func slotAt(hour int) CommitRequest {
	start := time.Date(2026, 3, 3, hour, 0, 0, 0, time.UTC)
	return CommitRequest{
		SlotStart:       start,
		SlotEnd:         start.Add(30 * time.Minute),
		DurationMinutes: 30,
		Participant:     models.Participant{Name: "Ada Lovelace", Email: "ada@example.com"},
	}
}

func TestCommitDurationBounds(t *testing.T) {
	c, _, _, _ := newTestCoordinator(newFakeStore())
	ctx := context.Background()

	req := slotAt(10)
	req.DurationMinutes = 4
	req.SlotEnd = req.SlotStart.Add(4 * time.Minute)
	_, err := c.Commit(ctx, req)
	assert.True(t, IsValidation(err), "4 minutes should fail validation, got %v", err)

	req = slotAt(10)
	req.DurationMinutes = 481
	req.SlotEnd = req.SlotStart.Add(481 * time.Minute)
	_, err = c.Commit(ctx, req)
	assert.True(t, IsValidation(err), "481 minutes should fail validation, got %v", err)
}

func TestCommitSuccess(t *testing.T) {
	store := newFakeStore()
	c, busy, queue, bus := newTestCoordinator(store)
	c.SetClock(func() time.Time { return testNow })
	ctx := context.Background()

	busy.On("BusyIntervals", ctx, mock.Anything, mock.Anything).Return([]models.BusyInterval(nil), nil)
	queue.On("EnqueueCreate", mock.Anything).Return(nil).Once()
	bus.On("PublishJSON", EventBookingCreated, mock.Anything).Return(nil).Once()

	booking, err := c.Commit(ctx, slotAt(10))
	assert.NoError(t, err)
	assert.NotNil(t, booking)
	assert.Equal(t, models.StatusConfirmed, booking.Status)
	assert.NotEmpty(t, booking.ID)
	assert.Equal(t, 30, booking.DurationMinutes)

	stored, _ := store.GetBooking(ctx, booking.ID)
	assert.NotNil(t, stored)
	queue.AssertExpectations(t)
	bus.AssertExpectations(t)
}

func TestCommitConflictWithExistingBooking(t *testing.T) {
	store := newFakeStore()
	c, busy, queue, bus := newTestCoordinator(store)
	c.SetClock(func() time.Time { return testNow })
	ctx := context.Background()

	busy.On("BusyIntervals", ctx, mock.Anything, mock.Anything).Return([]models.BusyInterval(nil), nil)
	queue.On("EnqueueCreate", mock.Anything).Return(nil).Once()
	bus.On("PublishJSON", EventBookingCreated, mock.Anything).Return(nil).Once()

	_, err := c.Commit(ctx, slotAt(10))
	assert.NoError(t, err)

	_, err = c.Commit(ctx, slotAt(10))
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestCommitConflictWithCalendarEvent(t *testing.T) {
	c, busy, _, _ := newTestCoordinator(newFakeStore())
	c.SetClock(func() time.Time { return testNow })
	ctx := context.Background()

	req := slotAt(10)
	busy.On("BusyIntervals", ctx, mock.Anything, mock.Anything).Return([]models.BusyInterval{
		{
			TimeInterval: models.TimeInterval{Start: req.SlotStart.Add(-10 * time.Minute), End: req.SlotStart.Add(10 * time.Minute)},
			Source:       models.SourceCalendarEvent,
			SourceID:     "evt-1",
		},
	}, nil)

	_, err := c.Commit(ctx, req)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestCommitNoticeAndWindowChecks(t *testing.T) {
	store := newFakeStore()
	store.settings = models.SchedulingSettings{MinNoticeHours: 6, BookingWindowDays: 7}
	c, busy, _, _ := newTestCoordinator(store)
	c.SetClock(func() time.Time { return testNow })
	ctx := context.Background()

	busy.On("BusyIntervals", ctx, mock.Anything, mock.Anything).Return([]models.BusyInterval(nil), nil)

	// Starts 2h from now, notice is 6h.
	tooSoon := CommitRequest{
		SlotStart:       testNow.Add(2 * time.Hour),
		SlotEnd:         testNow.Add(2*time.Hour + 30*time.Minute),
		DurationMinutes: 30,
		Participant:     models.Participant{Name: "Ada", Email: "ada@example.com"},
	}
	_, err := c.Commit(ctx, tooSoon)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	// Ends 10 days out, window is 7 days.
	tooFar := CommitRequest{
		SlotStart:       testNow.AddDate(0, 0, 10),
		SlotEnd:         testNow.AddDate(0, 0, 10).Add(30 * time.Minute),
		DurationMinutes: 30,
		Participant:     models.Participant{Name: "Ada", Email: "ada@example.com"},
	}
	_, err = c.Commit(ctx, tooFar)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

// TestCommitConcurrentSameSlot drives many simultaneous commits for the
// identical interval; exactly one must win.
func TestCommitConcurrentSameSlot(t *testing.T) {
	store := newFakeStore()
	c, busy, queue, bus := newTestCoordinator(store)
	c.SetClock(func() time.Time { return testNow })

	busy.On("BusyIntervals", mock.Anything, mock.Anything, mock.Anything).Return([]models.BusyInterval(nil), nil)
	queue.On("EnqueueCreate", mock.Anything).Return(nil)
	bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Commit(context.Background(), slotAt(10))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var committed, conflicted int
	for err := range results {
		switch {
		case err == nil:
			committed++
		case errors.Is(err, ErrSlotUnavailable):
			conflicted++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, committed, "exactly one commit must win")
	assert.Equal(t, attempts-1, conflicted)
}

func TestCancel(t *testing.T) {
	store := newFakeStore()
	c, busy, queue, bus := newTestCoordinator(store)
	c.SetClock(func() time.Time { return testNow })
	ctx := context.Background()

	busy.On("BusyIntervals", ctx, mock.Anything, mock.Anything).Return([]models.BusyInterval(nil), nil)
	queue.On("EnqueueCreate", mock.Anything).Return(nil).Once()
	bus.On("PublishJSON", EventBookingCreated, mock.Anything).Return(nil).Once()

	booking, err := c.Commit(ctx, slotAt(10))
	assert.NoError(t, err)

	queue.On("EnqueueDelete", booking.ID, "").Return(nil).Once()
	bus.On("PublishJSON", EventBookingCancelled, mock.Anything).Return(nil).Once()

	assert.NoError(t, c.Cancel(ctx, booking.ID))

	stored, _ := store.GetBooking(ctx, booking.ID)
	assert.Equal(t, models.StatusCancelled, stored.Status)

	// Second cancel succeeds without another delete or event.
	assert.NoError(t, c.Cancel(ctx, booking.ID))
	queue.AssertNumberOfCalls(t, "EnqueueDelete", 1)
	bus.AssertExpectations(t)
}

func TestCancelNotFound(t *testing.T) {
	c, _, _, _ := newTestCoordinator(newFakeStore())
	err := c.Cancel(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelledBookingFreesSlot(t *testing.T) {
	store := newFakeStore()
	c, busy, queue, bus := newTestCoordinator(store)
	c.SetClock(func() time.Time { return testNow })
	ctx := context.Background()

	busy.On("BusyIntervals", ctx, mock.Anything, mock.Anything).Return([]models.BusyInterval(nil), nil)
	queue.On("EnqueueCreate", mock.Anything).Return(nil)
	queue.On("EnqueueDelete", mock.Anything, mock.Anything).Return(nil)
	bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)

	first, err := c.Commit(ctx, slotAt(10))
	assert.NoError(t, err)
	assert.NoError(t, c.Cancel(ctx, first.ID))

	second, err := c.Commit(ctx, slotAt(10))
	assert.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestAvailableSlots(t *testing.T) {
	store := newFakeStore()
	store.rules = []models.AvailabilityRule{
		{DayOfWeek: 2, StartTime: "09:00", EndTime: "12:00", Timezone: "UTC"},
	}
	c, busy, _, _ := newTestCoordinator(store)
	c.SetClock(func() time.Time { return testNow })
	ctx := context.Background()

	busy.On("BusyIntervals", ctx, mock.Anything, mock.Anything).Return([]models.BusyInterval(nil), nil)

	// Tuesday 2026-03-03.
	req := models.SlotRequest{
		DurationMinutes: 60,
		RangeStart:      time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		RangeEnd:        time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
	}
	got, err := c.AvailableSlots(ctx, req)
	assert.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), got[0].Start)

	req.DurationMinutes = 3
	_, err = c.AvailableSlots(ctx, req)
	assert.True(t, IsValidation(err))
}
