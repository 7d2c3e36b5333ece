package interaction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unical/unical/internal/event_bus"
	"github.com/unical/unical/pkg/calendar"
	"github.com/unical/unical/pkg/event_type"
	"github.com/unical/unical/pkg/store"
)

var ctx = context.Background()

var start = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	remote     *calendar.StubRemote
	store      *store.Store
	types      *event_type.StubRepository
	bus        *event_bus.EventBus
	controller *Controller
}

func setup(t *testing.T) fixture {
	bus := event_bus.NewEventBus()
	remote := calendar.NewStubRemote()
	types := event_type.NewStubRepository()
	s := store.New(bus, nil, store.PolicyReplace, 0)
	t.Cleanup(func() {
		remote.Cleanup()
		types.Cleanup()
	})
	return fixture{
		remote:     remote,
		store:      s,
		types:      types,
		bus:        bus,
		controller: NewController(remote, s, event_type.NewAnnotator(types, "me")),
	}
}

func TestController_SelectRange(t *testing.T) {
	f := setup(t)

	form := f.controller.SelectRange(start)

	assert.Empty(t, form.Id)
	assert.Equal(t, start, form.Start)
	assert.Equal(t, start.Add(time.Hour), form.End)
	assert.Equal(t, calendar.Meeting, form.Type)
}

func TestController_ClickEvent(t *testing.T) {
	t.Run("should pre-fill the form from the store", func(t *testing.T) {
		f := setup(t)
		f.store.Add(calendar.Event{Id: "a", Title: "Review", Start: start, End: start.Add(time.Hour), Type: calendar.Task, Participants: []string{"x@example.com"}})

		form, err := f.controller.ClickEvent("a")

		require.NoError(t, err)
		assert.Equal(t, "Review", form.Title)
		assert.Equal(t, calendar.Task, form.Type)
		assert.Equal(t, []string{"x@example.com"}, form.Participants)
	})

	t.Run("should report an unknown event", func(t *testing.T) {
		f := setup(t)

		_, err := f.controller.ClickEvent("missing")

		assert.ErrorIs(t, err, calendar.ErrNotFound)
	})
}

func TestController_Submit(t *testing.T) {
	t.Run("should create a draft and store exactly the echo", func(t *testing.T) {
		f := setup(t)
		form := f.controller.SelectRange(start)
		form.Title = "Standup"
		form.End = start.Add(15 * time.Minute)

		created, err := f.controller.Submit(ctx, form)

		require.NoError(t, err)
		assert.NotEmpty(t, created.Id)
		events := f.store.Events()
		require.Len(t, events, 1)
		assert.Equal(t, created.Id, events[0].Id)
		assert.Equal(t, "Standup", events[0].Title)
	})

	t.Run("should remember a non-default type", func(t *testing.T) {
		f := setup(t)
		form := Form{Title: "Pay rent", Start: start, End: start.Add(time.Hour), Type: calendar.Reminder}

		created, err := f.controller.Submit(ctx, form)

		require.NoError(t, err)
		types, _ := f.types.GetTypes(ctx, "me", []string{created.Id})
		assert.Equal(t, calendar.Reminder, types[created.Id])
	})

	t.Run("should update an existing event", func(t *testing.T) {
		f := setup(t)
		created, err := f.controller.Submit(ctx, Form{Title: "Old", Start: start, End: start.Add(time.Hour)})
		require.NoError(t, err)
		form, err := f.controller.ClickEvent(created.Id)
		require.NoError(t, err)
		form.Title = "New"

		_, err = f.controller.Submit(ctx, form)

		require.NoError(t, err)
		events := f.store.Events()
		require.Len(t, events, 1)
		assert.Equal(t, "New", events[0].Title)
	})

	t.Run("should reject an invalid form before any remote call", func(t *testing.T) {
		f := setup(t)

		_, err := f.controller.Submit(ctx, Form{Title: "  ", Start: start, End: start.Add(time.Hour)})
		assert.ErrorIs(t, err, calendar.ErrValidation)
		_, err = f.controller.Submit(ctx, Form{Title: "Backwards", Start: start, End: start})
		assert.ErrorIs(t, err, calendar.ErrValidation)

		assert.Equal(t, 0, f.remote.MutationCalls())
		assert.Empty(t, f.store.Events())
	})

	t.Run("should leave the store unchanged when the event was deleted remotely", func(t *testing.T) {
		f := setup(t)
		stale := calendar.Event{Id: "gone", Title: "Stale", Start: start, End: start.Add(time.Hour), Type: calendar.Meeting, Participants: []string{}}
		f.store.Add(stale)
		before := f.store.Events()
		form, err := f.controller.ClickEvent("gone")
		require.NoError(t, err)
		form.Title = "Edited"

		_, err = f.controller.Submit(ctx, form)

		assert.ErrorIs(t, err, calendar.ErrNotFound)
		assert.Equal(t, before, f.store.Events())
	})

	t.Run("should not touch the store when access is refused", func(t *testing.T) {
		f := setup(t)
		f.remote.CreateErr = calendar.ErrAuthRequired

		_, err := f.controller.Submit(ctx, Form{Title: "Standup", Start: start, End: start.Add(time.Hour)})

		assert.ErrorIs(t, err, calendar.ErrAuthRequired)
		assert.Empty(t, f.store.Events())
	})
}

func TestController_Delete(t *testing.T) {
	t.Run("should remove after remote success", func(t *testing.T) {
		f := setup(t)
		created, err := f.controller.Submit(ctx, Form{Title: "Standup", Start: start, End: start.Add(time.Hour), Type: calendar.Task})
		require.NoError(t, err)

		err = f.controller.Delete(ctx, created.Id)

		require.NoError(t, err)
		assert.Empty(t, f.store.Events())
		types, _ := f.types.GetTypes(ctx, "me", []string{created.Id})
		assert.Empty(t, types)
	})

	t.Run("should keep the event when the remote fails", func(t *testing.T) {
		f := setup(t)
		created, err := f.controller.Submit(ctx, Form{Title: "Standup", Start: start, End: start.Add(time.Hour)})
		require.NoError(t, err)
		f.remote.DeleteErr = calendar.ErrNetwork

		err = f.controller.Delete(ctx, created.Id)

		assert.ErrorIs(t, err, calendar.ErrNetwork)
		assert.Len(t, f.store.Events(), 1)
	})
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"auth", calendar.ErrAuthRequired, "Please sign in to continue."},
		{"not found", calendar.ErrNotFound, "This event no longer exists."},
		{"validation", calendar.Event{Start: start, End: start.Add(time.Hour)}.Validate(), "Title is required."},
		{"network", calendar.ErrNetwork, "Failed to save event. Please try again."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func TestParseParticipants(t *testing.T) {
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, ParseParticipants(" a@example.com, ,b@example.com ,"))
	assert.Equal(t, []string{}, ParseParticipants(""))
}
