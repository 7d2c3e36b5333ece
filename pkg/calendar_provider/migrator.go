package calendar_provider

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

type EventsMigrator interface {
	Migrate(ctx context.Context, source, target string, from time.Time, to time.Time) (int, error)
}

// EventsMigratorImpl copies events between two registered providers. Copies
// are created as new events in the target; the source is left untouched.
type EventsMigratorImpl struct {
	provider *CalendarProvider
}

func NewEventsMigratorImpl(calendarProvider *CalendarProvider) *EventsMigratorImpl {
	return &EventsMigratorImpl{provider: calendarProvider}
}

func (m *EventsMigratorImpl) Migrate(ctx context.Context, source, target string, from time.Time, to time.Time) (int, error) {
	if source == target {
		return 0, fmt.Errorf("source and target must differ, both are %q", source)
	}
	sourceCalendar, err := m.provider.Remote(source)
	if err != nil {
		return 0, err
	}
	targetCalendar, err := m.provider.Remote(target)
	if err != nil {
		return 0, err
	}

	events, err := sourceCalendar.FetchEvents(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to get events from %s: %w", source, err)
	}

	numberOfMigratedEvents := 0
	for _, event := range events {
		draft := event
		draft.Id = ""
		if _, err := targetCalendar.CreateEvent(ctx, draft.WithDefaults()); err != nil {
			log.Errorf("failed to add event %q to %s: %v. Trying to continue", event.Title, target, err)
			continue
		}
		numberOfMigratedEvents++
	}
	log.Infof("Migrated %d of %d events from %s to %s", numberOfMigratedEvents, len(events), source, target)
	return numberOfMigratedEvents, nil
}
