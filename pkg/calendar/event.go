package calendar

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

type Type string

const (
	Meeting  Type = "meeting"
	Task     Type = "task"
	Reminder Type = "reminder"
)

func (t Type) Valid() bool {
	switch t {
	case Meeting, Task, Reminder:
		return true
	}
	return false
}

// Event is the local, normalized calendar entry. An empty Id marks a draft that
// has not been created remotely yet.
type Event struct {
	Id           string
	Title        string
	Start        time.Time
	End          time.Time
	Type         Type
	Location     string
	Description  string
	Participants []string
}

func (e Event) IsDraft() bool {
	return e.Id == ""
}

// Overlaps reports whether the event intersects the [from, to] window.
func (e Event) Overlaps(from, to time.Time) bool {
	return e.Start.Before(to) && e.End.After(from)
}

// Validate checks the invariants that must hold before an event is sent to a remote calendar.
func (e Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if e.Start.IsZero() || e.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrValidation)
	}
	if !e.Start.Before(e.End) {
		return fmt.Errorf("%w: start (%s) must be before end (%s)", ErrValidation,
			e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
	}
	if e.Type != "" && !e.Type.Valid() {
		return fmt.Errorf("%w: unknown event type %q", ErrValidation, e.Type)
	}
	for _, p := range e.Participants {
		// remotes take bare addresses, so display-name forms are refused
		if addr, err := mail.ParseAddress(p); err != nil || addr.Address != p {
			return fmt.Errorf("%w: invalid participant %q", ErrValidation, p)
		}
	}
	return nil
}

// WithDefaults fills the optional fields the rest of the system relies on.
func (e Event) WithDefaults() Event {
	if e.Type == "" {
		e.Type = Meeting
	}
	if e.Participants == nil {
		e.Participants = []string{}
	}
	return e
}
