package event_bus

import (
	"time"

	"github.com/unical/unical/pkg/calendar"
)

const (
	StoreEventsChanged   EventType = "store.events.changed"
	StoreDarkModeToggled EventType = "store.darkmode.toggled"
	SyncCompleted        EventType = "sync.completed"
)

// EventsChanged is published with StoreEventsChanged and carries the full state after the mutation.
type EventsChanged struct {
	Events    []calendar.Event
	IsLoading bool
	Error     string
}

type DarkModeToggled struct {
	DarkMode bool
}

type SyncFinished struct {
	At     time.Time
	Events int
	Error  string
}
