package calendar

import (
	"context"
	"errors"
	"time"
)

var (
	ErrAuthRequired = errors.New("authentication required")
	ErrNetwork      = errors.New("remote calendar unavailable")
	ErrValidation   = errors.New("invalid event")
	ErrNotFound     = errors.New("event no longer exists")
)

// Remote is a calendar kept by an external provider. Every call refreshes
// credentials first and fails as a whole; there is no partial success.
type Remote interface {
	FetchEvents(ctx context.Context, from time.Time, to time.Time) ([]Event, error)
	CreateEvent(ctx context.Context, draft Event) (*Event, error)
	UpdateEvent(ctx context.Context, event Event) (*Event, error)
	DeleteEvent(ctx context.Context, eventId string) error
}
