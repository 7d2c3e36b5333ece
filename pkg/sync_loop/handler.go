package sync_loop

import (
	"net/http"

	"github.com/unical/unical/internal/rest"
	"github.com/unical/unical/pkg/calendar"
)

type Handler struct {
	loop     *Loop
	onUpdate func([]calendar.Event)
}

// NewHandler exposes the loop over HTTP. onUpdate receives every delivery of a loop started here.
func NewHandler(loop *Loop, onUpdate func([]calendar.Event)) *Handler {
	return &Handler{loop: loop, onUpdate: onUpdate}
}

// GetStatus godoc
// @Summary Sync loop status
// @Tags Sync
// @Produce json
// @Success 200 {object} Status
// @Router /api/sync/status [get]
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	rest.WriteJSON(w, http.StatusOK, h.loop.Status())
}

// Start godoc
// @Summary Start polling the remote calendar
// @Description Fetches once before answering; starting a running loop changes nothing
// @Tags Sync
// @Produce json
// @Success 200 {object} Status
// @Router /api/sync/start [post]
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.loop.Start(h.onUpdate)
	rest.WriteJSON(w, http.StatusOK, h.loop.Status())
}

// Stop godoc
// @Summary Stop polling
// @Tags Sync
// @Produce json
// @Success 200 {object} Status
// @Router /api/sync/stop [post]
func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	h.loop.Stop()
	rest.WriteJSON(w, http.StatusOK, h.loop.Status())
}
