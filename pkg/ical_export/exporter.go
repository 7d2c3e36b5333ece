package ical_export

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/unical/unical/internal/utils"
	"github.com/unical/unical/pkg/calendar"
)

const productId = "-//unical//EN"

// ErrNothingToExport is returned for an empty event set; a VCALENDAR needs at least one component.
var ErrNothingToExport = errors.New("no events to export")

// Exporter renders events as an iCalendar document.
type Exporter struct {
	clock utils.Clock
}

func NewExporter(clock utils.Clock) *Exporter {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &Exporter{clock: clock}
}

// Export writes one VEVENT per event. Drafts have no identity yet and are left out.
func (e *Exporter) Export(w io.Writer, events []calendar.Event) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productId)

	stamp := e.clock.Now().UTC()
	for _, event := range events {
		if event.IsDraft() {
			continue
		}
		cal.Children = append(cal.Children, toVEvent(event, stamp))
	}

	if len(cal.Children) == 0 {
		return ErrNothingToExport
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

func toVEvent(event calendar.Event, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, event.Id)
	ve.Props.SetText(ical.PropSummary, event.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	ve.Props.SetDateTime(ical.PropDateTimeStart, event.Start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, event.End.UTC())
	if event.Type != "" {
		ve.Props.SetText(ical.PropCategories, strings.ToUpper(string(event.Type)))
	}
	if event.Location != "" {
		ve.Props.SetText(ical.PropLocation, event.Location)
	}
	if event.Description != "" {
		ve.Props.SetText(ical.PropDescription, event.Description)
	}
	for _, participant := range event.Participants {
		attendee := ical.NewProp(ical.PropAttendee)
		attendee.Value = "mailto:" + participant
		ve.Props.Add(attendee)
	}
	return ve
}
