package ical_export

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/unical/unical/internal/rest"
	"github.com/unical/unical/pkg/calendar"
)

// EventSource is the read side of the local store.
type EventSource interface {
	Events() []calendar.Event
}

type Handler struct {
	exporter *Exporter
	events   EventSource
}

func NewHandler(exporter *Exporter, events EventSource) *Handler {
	return &Handler{exporter: exporter, events: events}
}

// Export godoc
// @Summary Export stored events as iCalendar
// @Tags Calendar
// @Produce text/calendar
// @Param from query string false "Window start (RFC3339)"
// @Param to query string false "Window end (RFC3339)"
// @Success 200 {string} string "VCALENDAR document"
// @Success 204 "No events in the window"
// @Failure 400 {object} rest.ErrorResponse
// @Router /api/calendar/export.ics [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	events := h.events.Events()

	fromString, toString := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if fromString != "" || toString != "" {
		from, err := time.Parse(time.RFC3339, fromString)
		if err != nil {
			rest.WriteError(w, http.StatusBadRequest, "Invalid from (date) format", "'from' must be in RFC3339 format")
			return
		}
		to, err := time.Parse(time.RFC3339, toString)
		if err != nil {
			rest.WriteError(w, http.StatusBadRequest, "Invalid to (date) format", "'to' must be in RFC3339 format")
			return
		}
		inWindow := make([]calendar.Event, 0, len(events))
		for _, e := range events {
			if e.Overlaps(from, to) {
				inWindow = append(inWindow, e)
			}
		}
		events = inWindow
	}

	var buf bytes.Buffer
	err := h.exporter.Export(&buf, events)
	if errors.Is(err, ErrNothingToExport) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		log.Errorf("failed to export events: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, "Failed to export events", err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Debugf("failed to write export: %v", err)
	}
}
