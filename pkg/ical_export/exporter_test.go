package ical_export

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unical/unical/internal/utils"
	"github.com/unical/unical/pkg/calendar"
)

var start = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

type staticEvents []calendar.Event

func (s staticEvents) Events() []calendar.Event {
	return s
}

func TestExporter_Export(t *testing.T) {
	exporter := NewExporter(utils.NewMockClock(start))
	events := []calendar.Event{
		{
			Id:           "evt-1",
			Title:        "Standup",
			Start:        start,
			End:          start.Add(15 * time.Minute),
			Type:         calendar.Task,
			Location:     "Room 4",
			Participants: []string{"a@example.com", "b@example.com"},
		},
		{Title: "Draft", Start: start, End: start.Add(time.Hour)},
	}

	var buf bytes.Buffer
	err := exporter.Export(&buf, events)

	require.NoError(t, err)
	decoded, err := ical.NewDecoder(&buf).Decode()
	require.NoError(t, err)
	vevents := decoded.Events()
	require.Len(t, vevents, 1)

	vevent := vevents[0]
	uid, err := vevent.Props.Text(ical.PropUID)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", uid)
	summary, _ := vevent.Props.Text(ical.PropSummary)
	assert.Equal(t, "Standup", summary)
	location, _ := vevent.Props.Text(ical.PropLocation)
	assert.Equal(t, "Room 4", location)
	dtStart, err := vevent.DateTimeStart(time.UTC)
	require.NoError(t, err)
	assert.True(t, start.Equal(dtStart))
	dtEnd, err := vevent.DateTimeEnd(time.UTC)
	require.NoError(t, err)
	assert.True(t, start.Add(15*time.Minute).Equal(dtEnd))

	attendees := vevent.Props.Values(ical.PropAttendee)
	require.Len(t, attendees, 2)
	assert.Equal(t, "mailto:a@example.com", attendees[0].Value)
	assert.Equal(t, "mailto:b@example.com", attendees[1].Value)
}

func TestExporter_Export_Empty(t *testing.T) {
	var buf bytes.Buffer

	err := NewExporter(nil).Export(&buf, []calendar.Event{{Title: "Draft", Start: start, End: start.Add(time.Hour)}})

	assert.ErrorIs(t, err, ErrNothingToExport)
	assert.Zero(t, buf.Len())
}

func TestHandler_Export(t *testing.T) {
	handler := NewHandler(NewExporter(utils.NewMockClock(start)), staticEvents{
		{Id: "jan", Title: "January", Start: start, End: start.Add(time.Hour)},
		{Id: "mar", Title: "March", Start: start.AddDate(0, 2, 0), End: start.AddDate(0, 2, 0).Add(time.Hour)},
	})

	t.Run("should export the requested window", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/calendar/export.ics?from=2024-01-01T00:00:00Z&to=2024-02-01T00:00:00Z", nil)
		rr := httptest.NewRecorder()

		handler.Export(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/calendar"))
		body := rr.Body.String()
		assert.Contains(t, body, "SUMMARY:January")
		assert.NotContains(t, body, "SUMMARY:March")
	})

	t.Run("should answer no content for an empty window", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/calendar/export.ics?from=2025-01-01T00:00:00Z&to=2025-02-01T00:00:00Z", nil)
		rr := httptest.NewRecorder()

		handler.Export(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("should reject a malformed window", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/calendar/export.ics?from=today&to=2024-02-01T00:00:00Z", nil)
		rr := httptest.NewRecorder()

		handler.Export(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
