package event_type

import (
	"context"
	"sync"

	"github.com/unical/unical/pkg/calendar"
)

// StubRepository keeps types in memory. It also serves as the store when no database is configured.
type StubRepository struct {
	mu    sync.RWMutex
	types map[string]map[string]calendar.Type
}

func NewStubRepository() *StubRepository {
	return &StubRepository{types: map[string]map[string]calendar.Type{}}
}

func (s *StubRepository) GetTypes(_ context.Context, account string, eventIds []string) (map[string]calendar.Type, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]calendar.Type, len(eventIds))
	for _, id := range eventIds {
		if t, ok := s.types[account][id]; ok {
			result[id] = t
		}
	}
	return result, nil
}

func (s *StubRepository) SetType(_ context.Context, account string, eventId string, eventType calendar.Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.types[account] == nil {
		s.types[account] = map[string]calendar.Type{}
	}
	s.types[account][eventId] = eventType
	return nil
}

func (s *StubRepository) DeleteType(_ context.Context, account string, eventId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.types[account], eventId)
	return nil
}

func (s *StubRepository) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types = map[string]map[string]calendar.Type{}
}
