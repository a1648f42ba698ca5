package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"slotbook/internal/models"
)

// GoogleCalendar reads busy events from and writes booking events to a
// Google Calendar.
type GoogleCalendar struct {
	service    *calendar.Service
	calendarID string
	logger     *zerolog.Logger
}

// NewGoogleCalendar builds a collector backed by the given calendar, using
// service-account credentials from credentialsPath.
func NewGoogleCalendar(ctx context.Context, credentialsPath, calendarID string, logger *zerolog.Logger) (*GoogleCalendar, error) {
	service, err := calendar.NewService(ctx,
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(calendar.CalendarScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &GoogleCalendar{
		service:    service,
		calendarID: calendarID,
		logger:     logger,
	}, nil
}

// BusyIntervals lists events overlapping [start, end) and converts them to
// busy intervals. Events marked transparent (free) are skipped.
func (g *GoogleCalendar) BusyIntervals(ctx context.Context, start, end time.Time) ([]models.BusyInterval, error) {
	call := g.service.Events.List(g.calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250)

	var busy []models.BusyInterval
	pageToken := ""
	for {
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		events, err := call.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("list calendar events: %w", err)
		}

		for _, ev := range events.Items {
			if ev.Transparency == "transparent" || ev.Status == "cancelled" {
				continue
			}
			iv, ok := eventInterval(ev)
			if !ok {
				g.logger.Debug().Str("event_id", ev.Id).Msg("skipping event with unparseable times")
				continue
			}
			busy = append(busy, models.BusyInterval{
				TimeInterval: iv,
				Source:       models.SourceCalendarEvent,
				SourceID:     ev.Id,
			})
		}

		pageToken = events.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return busy, nil
}

// CreateEvent writes the booking to the calendar and returns the event id.
func (g *GoogleCalendar) CreateEvent(ctx context.Context, booking models.Booking) (string, error) {
	event := &calendar.Event{
		Summary:     fmt.Sprintf("Booking: %s", booking.Participant.Name),
		Description: booking.Participant.Notes,
		Start:       &calendar.EventDateTime{DateTime: booking.StartTime.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: booking.EndTime.Format(time.RFC3339)},
	}

	created, err := g.service.Events.Insert(g.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert calendar event: %w", err)
	}
	return created.Id, nil
}

// DeleteEvent removes the event; a 404/410 means it was already gone and
// maps to ErrEventAbsent.
func (g *GoogleCalendar) DeleteEvent(ctx context.Context, externalEventID string) error {
	err := g.service.Events.Delete(g.calendarID, externalEventID).Context(ctx).Do()
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == 404 || apiErr.Code == 410) {
		return ErrEventAbsent
	}
	return fmt.Errorf("delete calendar event: %w", err)
}

// eventInterval extracts the event's occupied interval. Timed events carry
// RFC3339 DateTime; all-day events carry a bare date interpreted in the
// event's zone.
func eventInterval(ev *calendar.Event) (models.TimeInterval, bool) {
	if ev.Start == nil || ev.End == nil {
		return models.TimeInterval{}, false
	}

	if ev.Start.DateTime != "" && ev.End.DateTime != "" {
		start, err1 := time.Parse(time.RFC3339, ev.Start.DateTime)
		end, err2 := time.Parse(time.RFC3339, ev.End.DateTime)
		if err1 != nil || err2 != nil || !end.After(start) {
			return models.TimeInterval{}, false
		}
		return models.TimeInterval{Start: start.UTC(), End: end.UTC()}, true
	}

	if ev.Start.Date != "" && ev.End.Date != "" {
		loc := time.UTC
		if ev.Start.TimeZone != "" {
			if l, err := time.LoadLocation(ev.Start.TimeZone); err == nil {
				loc = l
			}
		}
		start, err1 := time.ParseInLocation("2006-01-02", ev.Start.Date, loc)
		end, err2 := time.ParseInLocation("2006-01-02", ev.End.Date, loc)
		if err1 != nil || err2 != nil || !end.After(start) {
			return models.TimeInterval{}, false
		}
		return models.TimeInterval{Start: start.UTC(), End: end.UTC()}, true
	}

	return models.TimeInterval{}, false
}
