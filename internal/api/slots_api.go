package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"slotbook/internal/metrics"
	"slotbook/internal/models"
)

// timestampLayout is ISO-8601 with a mandatory numeric UTC offset. The
// layout never renders "Z", so responses always carry an explicit offset.
const timestampLayout = "2006-01-02T15:04:05-07:00"

// SlotResponse is one offerable slot, rendered in the requested timezone.
type SlotResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// SlotsResponse is the response for GET /api/v1/slots.
type SlotsResponse struct {
	Slots    []SlotResponse `json:"slots"`
	Timezone string         `json:"timezone"`
}

// handleSlots returns bookable slots for a duration within a range.
// GET /api/v1/slots?duration_minutes=60&range_start=...&range_end=...&timezone=...
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("slots")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}

	q := r.URL.Query()

	duration, err := strconv.Atoi(q.Get("duration_minutes"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "duration_minutes must be an integer")
		return
	}

	rangeStart, err := parseTimestamp("range_start", q.Get("range_start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rangeEnd, err := parseTimestamp("range_end", q.Get("range_end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tzName := q.Get("timezone")
	if tzName == "" {
		tzName = "UTC"
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unrecognized timezone identifier")
		return
	}

	slots, err := s.scheduler.AvailableSlots(r.Context(), models.SlotRequest{
		DurationMinutes: duration,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
	})
	if err != nil {
		s.writeDomainError(w, "slots", err)
		return
	}

	resp := SlotsResponse{
		Slots:    make([]SlotResponse, 0, len(slots)),
		Timezone: tzName,
	}
	for _, slot := range slots {
		resp.Slots = append(resp.Slots, SlotResponse{
			Start: slot.Start.In(loc).Format(timestampLayout),
			End:   slot.End.In(loc).Format(timestampLayout),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// parseTimestamp parses an ISO-8601 timestamp and requires an explicit
// ±HH:MM offset. A bare "Z" suffix or a truncated ±HH offset is rejected.
func parseTimestamp(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%s is required", field)
	}
	if len(value) < 6 || (value[len(value)-6] != '+' && value[len(value)-6] != '-') {
		return time.Time{}, fmt.Errorf("%s must carry an explicit UTC offset (±HH:MM)", field)
	}
	t, err := time.Parse(timestampLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s; expected YYYY-MM-DDTHH:MM:SS±HH:MM", field)
	}
	return t, nil
}
