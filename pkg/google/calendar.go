package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/unical/unical/pkg/calendar"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

const pageSize = 100

// Calendar is the calendar.Remote backed by one Google calendar.
type Calendar struct {
	service    *ServiceImpl
	calendarId string
}

func newGoogleCalendar(service *ServiceImpl, calendarId string) *Calendar {
	return &Calendar{
		service:    service,
		calendarId: calendarId,
	}
}

func (c *Calendar) FetchEvents(ctx context.Context, from time.Time, to time.Time) ([]calendar.Event, error) {
	service, err := c.service.prepareGoogleService(ctx)
	if err != nil {
		return nil, err
	}

	result, err := service.Events.List(c.calendarId).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(pageSize).
		Context(ctx).
		Do()
	if err != nil {
		err := fmt.Errorf("unable to retrieve events from Google Calendar: %w", classify(err))
		log.Error(err)
		return nil, err
	}
	if result.NextPageToken != "" {
		log.Debugf("Window holds more than %d events, later ones are not fetched", pageSize)
	}
	items := result.Items
	if len(items) > pageSize {
		items = items[:pageSize]
	}

	events := make([]calendar.Event, 0, len(items))
	for _, item := range items {
		event, err := c.toLocal(item)
		if err != nil {
			log.Warnf("Skipping Google event: %v", err)
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func (c *Calendar) CreateEvent(ctx context.Context, draft calendar.Event) (*calendar.Event, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	service, err := c.service.prepareGoogleService(ctx)
	if err != nil {
		return nil, err
	}
	log.Debugf("Adding event %q to calendar: %s", draft.Title, c.calendarId)

	result, err := service.Events.Insert(c.calendarId, c.toGoogle(draft)).Context(ctx).Do()
	if err != nil {
		err := fmt.Errorf("unable to insert event in Google Calendar: %w", classify(err))
		log.Error(err)
		return nil, err
	}
	return c.echo(result, draft.Type)
}

func (c *Calendar) UpdateEvent(ctx context.Context, event calendar.Event) (*calendar.Event, error) {
	if event.Id == "" {
		return nil, fmt.Errorf("%w: event id is required for update", calendar.ErrValidation)
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	service, err := c.service.prepareGoogleService(ctx)
	if err != nil {
		return nil, err
	}

	result, err := service.Events.Patch(c.calendarId, event.Id, c.toGoogle(event)).Context(ctx).Do()
	if err != nil {
		err := fmt.Errorf("unable to update event in Google Calendar: %w", classify(err))
		log.Error(err)
		return nil, err
	}
	return c.echo(result, event.Type)
}

func (c *Calendar) DeleteEvent(ctx context.Context, eventId string) error {
	if eventId == "" {
		return fmt.Errorf("%w: event id is required for delete", calendar.ErrValidation)
	}
	service, err := c.service.prepareGoogleService(ctx)
	if err != nil {
		return err
	}
	if err := service.Events.Delete(c.calendarId, eventId).Context(ctx).Do(); err != nil {
		err := fmt.Errorf("unable to delete event in Google Calendar: %w", classify(err))
		log.Error(err)
		return err
	}
	return nil
}

func (c *Calendar) echo(item *gcal.Event, eventType calendar.Type) (*calendar.Event, error) {
	event, err := c.toLocal(item)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable response: %w", calendar.ErrNetwork, err)
	}
	if eventType != "" {
		event.Type = eventType
	}
	return &event, nil
}

func (c *Calendar) toLocal(item *gcal.Event) (calendar.Event, error) {
	start, err := c.parseEventDateTime(item.Start)
	if err != nil {
		return calendar.Event{}, fmt.Errorf("event %s: invalid start: %w", item.Id, err)
	}
	end, err := c.parseEventDateTime(item.End)
	if err != nil {
		return calendar.Event{}, fmt.Errorf("event %s: invalid end: %w", item.Id, err)
	}

	event := calendar.Event{
		Id:           item.Id,
		Title:        item.Summary,
		Start:        start,
		End:          end,
		Type:         calendar.Meeting,
		Location:     item.Location,
		Description:  item.Description,
		Participants: make([]string, 0, len(item.Attendees)),
	}
	for _, attendee := range item.Attendees {
		if attendee.Email != "" {
			event.Participants = append(event.Participants, attendee.Email)
		}
	}
	return event, nil
}

// parseEventDateTime accepts timed values and all-day dates, the latter at
// midnight in the configured zone.
func (c *Calendar) parseEventDateTime(dt *gcal.EventDateTime) (time.Time, error) {
	if dt == nil {
		return time.Time{}, errors.New("missing")
	}
	if dt.DateTime != "" {
		return time.Parse(time.RFC3339, dt.DateTime)
	}
	return time.ParseInLocation(time.DateOnly, dt.Date, c.service.location)
}

func (c *Calendar) toGoogle(event calendar.Event) *gcal.Event {
	location := c.service.location
	item := &gcal.Event{
		Summary:     event.Title,
		Location:    event.Location,
		Description: event.Description,
		Start: &gcal.EventDateTime{
			DateTime: event.Start.In(location).Format(time.RFC3339),
			TimeZone: location.String(),
		},
		End: &gcal.EventDateTime{
			DateTime: event.End.In(location).Format(time.RFC3339),
			TimeZone: location.String(),
		},
		Attendees: make([]*gcal.EventAttendee, 0, len(event.Participants)),
	}
	for _, p := range event.Participants {
		item.Attendees = append(item.Attendees, &gcal.EventAttendee{Email: p})
	}
	return item
}

// classify maps a Google API failure onto the calendar error taxonomy.
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %w", calendar.ErrAuthRequired, err)
		case http.StatusNotFound, http.StatusGone:
			return fmt.Errorf("%w: %w", calendar.ErrNotFound, err)
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %w", calendar.ErrValidation, err)
		}
		return fmt.Errorf("%w: %w", calendar.ErrNetwork, err)
	}
	return fmt.Errorf("%w: %w", calendar.ErrNetwork, err)
}
