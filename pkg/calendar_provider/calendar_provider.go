package calendar_provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/unical/unical/pkg/calendar"
)

var ErrUnknownProvider = errors.New("unknown calendar provider")

// CalendarProvider is the calendar.Remote the rest of the application talks to.
// It delegates to the configured provider; the others stay reachable by name for migrations.
type CalendarProvider struct {
	remotes map[string]calendar.Remote
	active  string
}

func NewCalendarProvider(active string, remotes map[string]calendar.Remote) (*CalendarProvider, error) {
	if _, ok := remotes[active]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, active)
	}
	return &CalendarProvider{
		remotes: remotes,
		active:  active,
	}, nil
}

func (c *CalendarProvider) Active() string {
	return c.active
}

// Names lists the registered providers in a stable order.
func (c *CalendarProvider) Names() []string {
	names := make([]string, 0, len(c.remotes))
	for name := range c.remotes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *CalendarProvider) Remote(name string) (calendar.Remote, error) {
	remote, ok := c.remotes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return remote, nil
}

func (c *CalendarProvider) getCalendar() calendar.Remote {
	return c.remotes[c.active]
}

func (c *CalendarProvider) FetchEvents(ctx context.Context, from time.Time, to time.Time) ([]calendar.Event, error) {
	return c.getCalendar().FetchEvents(ctx, from, to)
}

func (c *CalendarProvider) CreateEvent(ctx context.Context, draft calendar.Event) (*calendar.Event, error) {
	return c.getCalendar().CreateEvent(ctx, draft)
}

func (c *CalendarProvider) UpdateEvent(ctx context.Context, event calendar.Event) (*calendar.Event, error) {
	return c.getCalendar().UpdateEvent(ctx, event)
}

func (c *CalendarProvider) DeleteEvent(ctx context.Context, eventId string) error {
	return c.getCalendar().DeleteEvent(ctx, eventId)
}
