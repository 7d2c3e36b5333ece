package calendar

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StubRemote is an in-memory Remote used by tests of the components sitting on top of a remote calendar.
type StubRemote struct {
	mu   sync.Mutex
	data map[string]Event

	FetchErr  error
	CreateErr error
	UpdateErr error
	DeleteErr error
	// FetchDelay makes every fetch block for the given time or until the context is done.
	FetchDelay time.Duration

	fetchCalls  int
	createCalls int
	updateCalls int
	deleteCalls int
}

func NewStubRemote() *StubRemote {
	return &StubRemote{data: map[string]Event{}}
}

func (c *StubRemote) FetchEvents(ctx context.Context, from time.Time, to time.Time) ([]Event, error) {
	c.mu.Lock()
	c.fetchCalls++
	delay := c.FetchDelay
	fetchErr := c.FetchErr
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrNetwork, ctx.Err())
		}
	}
	if fetchErr != nil {
		return nil, fetchErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	events := make([]Event, 0, len(c.data))
	for _, event := range c.data {
		if event.Overlaps(from, to) {
			events = append(events, event)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return events, nil
}

func (c *StubRemote) CreateEvent(_ context.Context, draft Event) (*Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createCalls++
	if c.CreateErr != nil {
		return nil, c.CreateErr
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	draft = draft.WithDefaults()
	draft.Id = uuid.NewString()
	c.data[draft.Id] = draft
	return &draft, nil
}

func (c *StubRemote) UpdateEvent(_ context.Context, event Event) (*Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateCalls++
	if c.UpdateErr != nil {
		return nil, c.UpdateErr
	}
	if event.Id == "" {
		return nil, fmt.Errorf("%w: event id is required", ErrValidation)
	}
	if _, ok := c.data[event.Id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, event.Id)
	}
	event = event.WithDefaults()
	c.data[event.Id] = event
	return &event, nil
}

func (c *StubRemote) DeleteEvent(_ context.Context, eventId string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteCalls++
	if c.DeleteErr != nil {
		return c.DeleteErr
	}
	if _, ok := c.data[eventId]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, eventId)
	}
	delete(c.data, eventId)
	return nil
}

// Put stores an event directly, bypassing validation, as if another client had created it.
func (c *StubRemote) Put(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[event.Id] = event
}

// Forget removes an event directly, as if another client had deleted it.
func (c *StubRemote) Forget(eventId string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, eventId)
}

func (c *StubRemote) SetFetchErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.FetchErr = err
}

func (c *StubRemote) SetFetchDelay(delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.FetchDelay = delay
}

func (c *StubRemote) FetchCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchCalls
}

func (c *StubRemote) MutationCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createCalls + c.updateCalls + c.deleteCalls
}

func (c *StubRemote) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = map[string]Event{}
}
