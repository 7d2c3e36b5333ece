package graph

import (
	"fmt"
	"time"

	"github.com/unical/unical/pkg/calendar"
)

// wallClockFormat is the zone-less layout Graph uses for dateTime values.
// Parsing also accepts the 7-digit fractional seconds Graph emits.
const wallClockFormat = "2006-01-02T15:04:05"

// TimeZones makes the translator's timezone assumptions explicit.
//
// Naive is applied to remote timestamps that carry neither an offset nor a
// loadable timeZone name. Local is the zone outgoing timestamps are written in.
type TimeZones struct {
	Naive *time.Location
	Local *time.Location
}

func DefaultTimeZones() TimeZones {
	return TimeZones{Naive: time.UTC, Local: time.UTC}
}

// Translator converts between Graph events and local events. It holds no state
// beyond its timezone policy and never reorders what it is given.
type Translator struct {
	zones TimeZones
}

func NewTranslator(zones TimeZones) Translator {
	if zones.Naive == nil {
		zones.Naive = time.UTC
	}
	if zones.Local == nil {
		zones.Local = time.UTC
	}
	return Translator{zones: zones}
}

// ToLocal maps a remote event onto the local model. Remote events carry no
// local classification, so the type is always calendar.Meeting.
func (t Translator) ToLocal(remote RemoteEvent) (calendar.Event, error) {
	start, err := t.parseDateTime(remote.Start)
	if err != nil {
		return calendar.Event{}, fmt.Errorf("event %s: invalid start: %w", remote.Id, err)
	}
	end, err := t.parseDateTime(remote.End)
	if err != nil {
		return calendar.Event{}, fmt.Errorf("event %s: invalid end: %w", remote.Id, err)
	}

	event := calendar.Event{
		Id:           remote.Id,
		Title:        remote.Subject,
		Start:        start,
		End:          end,
		Type:         calendar.Meeting,
		Description:  remote.BodyPreview,
		Participants: make([]string, 0, len(remote.Attendees)),
	}
	if remote.Location != nil {
		event.Location = remote.Location.DisplayName
	}
	if event.Description == "" && remote.Body != nil && remote.Body.ContentType == contentTypeText {
		event.Description = remote.Body.Content
	}
	for _, a := range remote.Attendees {
		if a.EmailAddress.Address != "" {
			event.Participants = append(event.Participants, a.EmailAddress.Address)
		}
	}
	return event, nil
}

// ToRemote builds the create/update payload for a local event.
func (t Translator) ToRemote(local calendar.Event) RemoteEvent {
	remote := RemoteEvent{
		Subject: local.Title,
		Start:   t.formatDateTime(local.Start),
		End:     t.formatDateTime(local.End),
		Body: &ItemBody{
			ContentType: contentTypeText,
			Content:     local.Description,
		},
		Attendees: make([]Attendee, 0, len(local.Participants)),
	}
	if local.Location != "" {
		remote.Location = &Location{DisplayName: local.Location}
	}
	for _, p := range local.Participants {
		remote.Attendees = append(remote.Attendees, Attendee{
			EmailAddress: EmailAddress{Address: p},
			Type:         attendeeRequired,
		})
	}
	return remote
}

func (t Translator) formatDateTime(ts time.Time) DateTimeTimeZone {
	return DateTimeTimeZone{
		DateTime: ts.In(t.zones.Local).Truncate(time.Second).Format(wallClockFormat),
		TimeZone: t.zones.Local.String(),
	}
}

func (t Translator) parseDateTime(dt DateTimeTimeZone) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, dt.DateTime); err == nil {
		return ts, nil
	}
	location := t.zones.Naive
	if dt.TimeZone != "" {
		if loc, err := time.LoadLocation(dt.TimeZone); err == nil {
			location = loc
		}
	}
	return time.ParseInLocation(wallClockFormat, dt.DateTime, location)
}
