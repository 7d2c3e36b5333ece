package calendar_provider

import (
	"errors"
	"net/http"
	"time"

	"github.com/unical/unical/internal/rest"
	"github.com/unical/unical/pkg/calendar"
)

type MigrationStatusDTO struct {
	Status         string `json:"status"`
	MigratedEvents int    `json:"migratedEvents"`
}

type MigratorHandler struct {
	eventsMigrator EventsMigrator
}

func NewMigratorHandler(eventsMigrator EventsMigrator) *MigratorHandler {
	return &MigratorHandler{
		eventsMigrator: eventsMigrator,
	}
}

// Migrate godoc
// @Summary Copy events between providers
// @Tags Calendar
// @Produce json
// @Param source query string true "Source provider"
// @Param target query string true "Target provider"
// @Param from query string true "Window start (RFC3339)"
// @Param to query string true "Window end (RFC3339)"
// @Success 200 {object} MigrationStatusDTO
// @Failure 400 {object} rest.ErrorResponse
// @Router /api/calendar/migrate [post]
func (h *MigratorHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, err := time.Parse(time.RFC3339, query.Get("from"))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid from (date) format", "'from' must be in RFC3339 format")
		return
	}
	to, err := time.Parse(time.RFC3339, query.Get("to"))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid to (date) format", "'to' must be in RFC3339 format")
		return
	}

	eventsMigrated, err := h.eventsMigrator.Migrate(r.Context(), query.Get("source"), query.Get("target"), from, to)
	if err != nil {
		switch {
		case errors.Is(err, calendar.ErrAuthRequired):
			rest.WriteError(w, http.StatusUnauthorized, "Please sign in to continue", err.Error())
		case errors.Is(err, calendar.ErrNetwork):
			rest.WriteError(w, http.StatusBadGateway, "Failed to read source calendar", err.Error())
		default:
			rest.WriteError(w, http.StatusBadRequest, "Migration failed", err.Error())
		}
		return
	}

	rest.WriteJSON(w, http.StatusOK, MigrationStatusDTO{
		Status:         "OK",
		MigratedEvents: eventsMigrated,
	})
}
