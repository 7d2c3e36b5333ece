package event_type

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/unical/unical/pkg/calendar"
)

// Annotator restores remembered types on fetched events. Failures to read or
// write the memory are logged; events then fall back to calendar.Meeting.
type Annotator struct {
	repo    Repository
	account string
}

func NewAnnotator(repo Repository, account string) *Annotator {
	return &Annotator{repo: repo, account: account}
}

func (a *Annotator) Annotate(ctx context.Context, events []calendar.Event) []calendar.Event {
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.Id)
	}
	types, err := a.repo.GetTypes(ctx, a.account, ids)
	if err != nil {
		log.Warnf("Event types unavailable, showing defaults: %v", err)
		return events
	}
	for i := range events {
		if t, ok := types[events[i].Id]; ok && t.Valid() {
			events[i].Type = t
		}
	}
	return events
}

// Remember records the type of a confirmed event. Meetings are the default and are not stored.
func (a *Annotator) Remember(ctx context.Context, event calendar.Event) {
	var err error
	if event.Type == "" || event.Type == calendar.Meeting {
		err = a.repo.DeleteType(ctx, a.account, event.Id)
	} else {
		err = a.repo.SetType(ctx, a.account, event.Id, event.Type)
	}
	if err != nil {
		log.Warnf("Could not remember type of event %s: %v", event.Id, err)
	}
}

func (a *Annotator) Forget(ctx context.Context, eventId string) {
	if err := a.repo.DeleteType(ctx, a.account, eventId); err != nil {
		log.Warnf("Could not forget type of event %s: %v", eventId, err)
	}
}
