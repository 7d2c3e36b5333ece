package interaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/unical/unical/pkg/calendar"
)

// DefaultDuration is the length of an event created from a selected start.
const DefaultDuration = time.Hour

// Form is what the event form shows and submits. An empty Id creates a new event.
type Form struct {
	Id           string
	Title        string
	Start        time.Time
	End          time.Time
	Type         calendar.Type
	Location     string
	Description  string
	Participants []string
}

func (f Form) Event() calendar.Event {
	return calendar.Event{
		Id:           f.Id,
		Title:        strings.TrimSpace(f.Title),
		Start:        f.Start,
		End:          f.End,
		Type:         f.Type,
		Location:     strings.TrimSpace(f.Location),
		Description:  f.Description,
		Participants: f.Participants,
	}.WithDefaults()
}

func formFromEvent(e calendar.Event) Form {
	return Form{
		Id:           e.Id,
		Title:        e.Title,
		Start:        e.Start,
		End:          e.End,
		Type:         e.Type,
		Location:     e.Location,
		Description:  e.Description,
		Participants: append([]string{}, e.Participants...),
	}
}

// EventStore is the part of the local store the controller writes to.
type EventStore interface {
	Add(event calendar.Event)
	Replace(event calendar.Event)
	Remove(eventId string)
	Find(eventId string) (calendar.Event, bool)
}

// TypeMemory keeps the local type of confirmed events.
type TypeMemory interface {
	Remember(ctx context.Context, event calendar.Event)
	Forget(ctx context.Context, eventId string)
}

// Controller turns user gestures into remote calls and store updates. The store
// is only touched after the remote call succeeded.
type Controller struct {
	remote calendar.Remote
	store  EventStore
	types  TypeMemory
}

func NewController(remote calendar.Remote, store EventStore, types TypeMemory) *Controller {
	return &Controller{remote: remote, store: store, types: types}
}

// SelectRange opens a creation form for a one-hour meeting starting at start.
func (c *Controller) SelectRange(start time.Time) Form {
	return Form{
		Start:        start,
		End:          start.Add(DefaultDuration),
		Type:         calendar.Meeting,
		Participants: []string{},
	}
}

// ClickEvent opens the edit form of a stored event.
func (c *Controller) ClickEvent(eventId string) (Form, error) {
	event, ok := c.store.Find(eventId)
	if !ok {
		return Form{}, fmt.Errorf("%w: %s", calendar.ErrNotFound, eventId)
	}
	return formFromEvent(event), nil
}

func (c *Controller) Submit(ctx context.Context, form Form) (*calendar.Event, error) {
	event := form.Event()
	if err := event.Validate(); err != nil {
		log.Debugf("Rejected event form: %v", err)
		return nil, err
	}

	if event.IsDraft() {
		created, err := c.remote.CreateEvent(ctx, event)
		if err != nil {
			log.Errorf("failed to create event %q: %v", event.Title, err)
			return nil, err
		}
		c.types.Remember(ctx, *created)
		c.store.Add(*created)
		return created, nil
	}

	updated, err := c.remote.UpdateEvent(ctx, event)
	if err != nil {
		log.Errorf("failed to update event %s: %v", event.Id, err)
		return nil, err
	}
	c.types.Remember(ctx, *updated)
	c.store.Replace(*updated)
	return updated, nil
}

func (c *Controller) Delete(ctx context.Context, eventId string) error {
	if eventId == "" {
		return fmt.Errorf("%w: event id is required", calendar.ErrValidation)
	}
	if err := c.remote.DeleteEvent(ctx, eventId); err != nil {
		log.Errorf("failed to delete event %s: %v", eventId, err)
		return err
	}
	c.types.Forget(ctx, eventId)
	c.store.Remove(eventId)
	return nil
}

// UserMessage is the text shown to the user for a failed gesture.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, calendar.ErrAuthRequired):
		return "Please sign in to continue."
	case errors.Is(err, calendar.ErrNotFound):
		return "This event no longer exists."
	case errors.Is(err, calendar.ErrValidation):
		return validationReason(err)
	default:
		return "Failed to save event. Please try again."
	}
}

// validationReason strips the sentinel prefix, leaving the reason itself.
func validationReason(err error) string {
	reason := strings.TrimPrefix(err.Error(), calendar.ErrValidation.Error()+": ")
	if reason == "" {
		return "Invalid event."
	}
	return strings.ToUpper(reason[:1]) + reason[1:] + "."
}

// ParseParticipants splits a comma-separated address list, dropping blanks.
func ParseParticipants(raw string) []string {
	participants := []string{}
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			participants = append(participants, p)
		}
	}
	return participants
}
