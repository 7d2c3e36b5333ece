package app

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Calendar events
	r.HandleFunc("/api/calendar/event", deps.InteractionHandler.ListEvents).Methods("GET")
	r.HandleFunc("/api/calendar/event", deps.InteractionHandler.CreateEvent).Methods("POST")
	r.HandleFunc("/api/calendar/event/{eventId}", deps.InteractionHandler.UpdateEvent).Methods("PUT")
	r.HandleFunc("/api/calendar/event/{eventId}", deps.InteractionHandler.DeleteEvent).Methods("DELETE")
	r.HandleFunc("/api/calendar/event/{eventId}/form", deps.InteractionHandler.EditForm).Methods("GET")
	r.HandleFunc("/api/calendar/form/new", deps.InteractionHandler.NewForm).Queries("start", "{start}").Methods("GET")
	r.HandleFunc("/api/calendar/state", deps.InteractionHandler.State).Methods("GET")
	r.HandleFunc("/api/calendar/stream", deps.InteractionHandler.Stream).Methods("GET")
	r.HandleFunc("/api/calendar/export.ics", deps.ExportHandler.Export).Methods("GET")
	r.HandleFunc("/api/calendar/migrate", deps.CalendarMigratorHandler.Migrate).
		Queries("source", "{source}", "target", "{target}", "from", "{from}", "to", "{to}").Methods("POST")

	// Settings
	r.HandleFunc("/api/settings/darkmode", deps.InteractionHandler.GetDarkMode).Methods("GET")
	r.HandleFunc("/api/settings/darkmode", deps.InteractionHandler.SetDarkMode).Methods("PUT")

	// Sync loop
	r.HandleFunc("/api/sync/status", deps.SyncHandler.GetStatus).Methods("GET")
	r.HandleFunc("/api/sync/start", deps.SyncHandler.Start).Methods("POST")
	r.HandleFunc("/api/sync/stop", deps.SyncHandler.Stop).Methods("POST")

	// Google integration
	if deps.GoogleHandler != nil {
		r.HandleFunc("/api/google/calendars", deps.GoogleHandler.ListCalendars).Methods("GET")
	}
}
