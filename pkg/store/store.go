package store

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/unical/unical/internal/event_bus"
	"github.com/unical/unical/internal/utils"
	"github.com/unical/unical/pkg/calendar"
)

type ReconcilePolicy string

const (
	// PolicyReplace makes every fetch replace the whole set, last fetch wins.
	PolicyReplace ReconcilePolicy = "replace"
	// PolicyMerge keeps recent local confirmations over a fetched set that does not reflect them yet.
	PolicyMerge ReconcilePolicy = "merge"
)

// State is a consistent copy of everything the store holds.
type State struct {
	Events    []calendar.Event
	DarkMode  bool
	IsLoading bool
	Error     string
}

type pendingChange struct {
	event   *calendar.Event // nil when the event was removed
	removed bool
	at      time.Time
}

// Store is the in-memory set of events shown to the user. Every mutation is
// applied atomically and announced on the event bus. Bus handlers must not
// mutate the store.
type Store struct {
	mu        sync.RWMutex
	publishMu sync.Mutex

	events    []calendar.Event
	darkMode  bool
	isLoading bool
	lastError string

	bus     *event_bus.EventBus
	clock   utils.Clock
	policy  ReconcilePolicy
	grace   time.Duration
	pending map[string]pendingChange
}

func New(bus *event_bus.EventBus, clock utils.Clock, policy ReconcilePolicy, grace time.Duration) *Store {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	if policy != PolicyMerge {
		policy = PolicyReplace
	}
	return &Store{
		events:  []calendar.Event{},
		bus:     bus,
		clock:   clock,
		policy:  policy,
		grace:   grace,
		pending: map[string]pendingChange{},
	}
}

// ReplaceAll installs a freshly fetched set, keeping the server's order.
func (s *Store) ReplaceAll(events []calendar.Event) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	fetched := copyEvents(events)
	if s.policy == PolicyMerge {
		fetched = s.reconcile(fetched)
	}
	s.events = fetched
	s.isLoading = false
	s.lastError = ""
	changed := s.eventsChangedLocked()
	s.mu.Unlock()

	s.publish(event_bus.StoreEventsChanged, changed)
}

// Add inserts a confirmed event. Drafts are ignored; an existing id is overwritten.
func (s *Store) Add(event calendar.Event) {
	if event.IsDraft() {
		log.Warnf("Refusing to store a draft event %q", event.Title)
		return
	}
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	event = copyEvent(event)
	if i := s.indexLocked(event.Id); i >= 0 {
		s.events[i] = event
	} else {
		s.events = append(s.events, event)
	}
	s.rememberLocked(event.Id, &event)
	changed := s.eventsChangedLocked()
	s.mu.Unlock()

	s.publish(event_bus.StoreEventsChanged, changed)
}

// Replace overwrites the event with the same id. An unknown id is a no-op.
func (s *Store) Replace(event calendar.Event) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	i := s.indexLocked(event.Id)
	if i < 0 {
		s.mu.Unlock()
		log.Debugf("Replace of unknown event %s ignored", event.Id)
		return
	}
	event = copyEvent(event)
	s.events[i] = event
	s.rememberLocked(event.Id, &event)
	changed := s.eventsChangedLocked()
	s.mu.Unlock()

	s.publish(event_bus.StoreEventsChanged, changed)
}

// Remove drops the event with the given id. An unknown id is a no-op.
func (s *Store) Remove(eventId string) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	i := s.indexLocked(eventId)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.events = slices.Delete(s.events, i, i+1)
	s.rememberLocked(eventId, nil)
	changed := s.eventsChangedLocked()
	s.mu.Unlock()

	s.publish(event_bus.StoreEventsChanged, changed)
}

func (s *Store) Events() []calendar.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyEvents(s.events)
}

func (s *Store) Find(eventId string) (calendar.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(eventId)
	if i < 0 {
		return calendar.Event{}, false
	}
	return copyEvent(s.events[i]), true
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Events:    copyEvents(s.events),
		DarkMode:  s.darkMode,
		IsLoading: s.isLoading,
		Error:     s.lastError,
	}
}

func (s *Store) ToggleDarkMode() bool {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	s.darkMode = !s.darkMode
	darkMode := s.darkMode
	s.mu.Unlock()

	s.publish(event_bus.StoreDarkModeToggled, event_bus.DarkModeToggled{DarkMode: darkMode})
	return darkMode
}

func (s *Store) DarkMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.darkMode
}

func (s *Store) SetLoading(loading bool) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	if s.isLoading == loading {
		s.mu.Unlock()
		return
	}
	s.isLoading = loading
	changed := s.eventsChangedLocked()
	s.mu.Unlock()

	s.publish(event_bus.StoreEventsChanged, changed)
}

// SetError records the last failure shown to the user; nil clears it.
func (s *Store) SetError(err error) {
	message := ""
	if err != nil {
		message = err.Error()
	}
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	s.lastError = message
	s.isLoading = false
	changed := s.eventsChangedLocked()
	s.mu.Unlock()

	s.publish(event_bus.StoreEventsChanged, changed)
}

func (s *Store) indexLocked(eventId string) int {
	if eventId == "" {
		return -1
	}
	return slices.IndexFunc(s.events, func(e calendar.Event) bool { return e.Id == eventId })
}

func (s *Store) rememberLocked(eventId string, event *calendar.Event) {
	if s.policy != PolicyMerge {
		return
	}
	s.pending[eventId] = pendingChange{event: event, removed: event == nil, at: s.clock.Now()}
}

// reconcile lays the still-fresh local confirmations over a fetched set. A
// confirmation is dropped once the fetch reflects it or the grace period ends.
func (s *Store) reconcile(fetched []calendar.Event) []calendar.Event {
	now := s.clock.Now()
	for _, id := range slices.Sorted(maps.Keys(s.pending)) {
		change := s.pending[id]
		if now.Sub(change.at) > s.grace {
			delete(s.pending, id)
			continue
		}
		i := slices.IndexFunc(fetched, func(e calendar.Event) bool { return e.Id == id })
		switch {
		case change.removed && i < 0:
			delete(s.pending, id)
		case change.removed:
			fetched = slices.Delete(fetched, i, i+1)
		case i >= 0 && sameContent(fetched[i], *change.event):
			delete(s.pending, id)
		case i >= 0:
			fetched[i] = copyEvent(*change.event)
		default:
			fetched = append(fetched, copyEvent(*change.event))
		}
	}
	return fetched
}

func (s *Store) eventsChangedLocked() event_bus.EventsChanged {
	return event_bus.EventsChanged{
		Events:    copyEvents(s.events),
		IsLoading: s.isLoading,
		Error:     s.lastError,
	}
}

func (s *Store) publish(eventType event_bus.EventType, data any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(event_bus.NewEvent(context.Background(), eventType, data)); err != nil {
		log.Warnf("store notification %s failed: %v", eventType, err)
	}
}

// sameContent compares what the remote stores; the local type is not part of it.
func sameContent(a, b calendar.Event) bool {
	return a.Id == b.Id &&
		a.Title == b.Title &&
		a.Start.Equal(b.Start) &&
		a.End.Equal(b.End) &&
		a.Location == b.Location &&
		a.Description == b.Description &&
		slices.Equal(a.Participants, b.Participants)
}

func copyEvent(e calendar.Event) calendar.Event {
	e.Participants = slices.Clone(e.Participants)
	if e.Participants == nil {
		e.Participants = []string{}
	}
	return e
}

func copyEvents(events []calendar.Event) []calendar.Event {
	copied := make([]calendar.Event, len(events))
	for i, e := range events {
		copied[i] = copyEvent(e)
	}
	return copied
}
