package interaction

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/unical/unical/internal/event_bus"
	"github.com/unical/unical/internal/rest"
	"github.com/unical/unical/pkg/calendar"
	"github.com/unical/unical/pkg/store"
)

type EventDTO struct {
	Id           string    `json:"id,omitempty"`
	Title        string    `json:"title"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Type         string    `json:"type,omitempty"`
	Location     string    `json:"location,omitempty"`
	Description  string    `json:"description,omitempty"`
	Participants []string  `json:"participants"`
	// ParticipantsText is the raw comma-separated field of the form, used when Participants is empty.
	ParticipantsText string `json:"participantsText,omitempty"`
}

type StateDTO struct {
	Events    []EventDTO `json:"events"`
	DarkMode  bool       `json:"darkMode"`
	IsLoading bool       `json:"isLoading"`
	Error     string     `json:"error,omitempty"`
}

type DarkModeDTO struct {
	DarkMode bool `json:"darkMode"`
}

type Handler struct {
	controller *Controller
	store      *store.Store
	bus        *event_bus.EventBus
}

func NewHandler(controller *Controller, store *store.Store, bus *event_bus.EventBus) *Handler {
	return &Handler{controller: controller, store: store, bus: bus}
}

// ListEvents godoc
// @Summary List stored events
// @Tags Calendar
// @Produce json
// @Param from query string false "Window start (RFC3339)"
// @Param to query string false "Window end (RFC3339)"
// @Success 200 {array} EventDTO
// @Router /api/calendar/event [get]
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events := h.store.Events()

	fromString, toString := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if fromString != "" || toString != "" {
		from, err := time.Parse(time.RFC3339, fromString)
		if err != nil {
			rest.WriteError(w, http.StatusBadRequest, "Invalid from (date) format", "'from' must be in RFC3339 format")
			return
		}
		to, err := time.Parse(time.RFC3339, toString)
		if err != nil {
			rest.WriteError(w, http.StatusBadRequest, "Invalid to (date) format", "'to' must be in RFC3339 format")
			return
		}
		filtered := events[:0]
		for _, e := range events {
			if e.Overlaps(from, to) {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	rest.WriteJSON(w, http.StatusOK, toDTOs(events))
}

// State godoc
// @Summary Store state: events, theme, loading and error flags
// @Tags Calendar
// @Produce json
// @Success 200 {object} StateDTO
// @Router /api/calendar/state [get]
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	rest.WriteJSON(w, http.StatusOK, stateToDTO(h.store.Snapshot()))
}

// NewForm godoc
// @Summary Creation form for a selected start
// @Tags Calendar
// @Produce json
// @Param start query string true "Selected start (RFC3339)"
// @Success 200 {object} EventDTO
// @Failure 400 {object} rest.ErrorResponse
// @Router /api/calendar/form/new [get]
func (h *Handler) NewForm(w http.ResponseWriter, r *http.Request) {
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid start (date) format", "'start' must be in RFC3339 format")
		return
	}
	rest.WriteJSON(w, http.StatusOK, formToDTO(h.controller.SelectRange(start)))
}

// EditForm godoc
// @Summary Edit form of a stored event
// @Tags Calendar
// @Produce json
// @Param eventId path string true "Event ID"
// @Success 200 {object} EventDTO
// @Failure 404 {object} rest.ErrorResponse
// @Router /api/calendar/event/{eventId}/form [get]
func (h *Handler) EditForm(w http.ResponseWriter, r *http.Request) {
	form, err := h.controller.ClickEvent(mux.Vars(r)["eventId"])
	if err != nil {
		writeControllerError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, formToDTO(form))
}

// CreateEvent godoc
// @Summary Create an event
// @Tags Calendar
// @Accept json
// @Produce json
// @Param event body EventDTO true "Event"
// @Success 201 {object} EventDTO
// @Failure 400 {object} rest.ErrorResponse
// @Failure 401 {object} rest.ErrorResponse
// @Failure 502 {object} rest.ErrorResponse
// @Router /api/calendar/event [post]
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var dto EventDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	form := dtoToForm(dto)
	form.Id = ""

	created, err := h.controller.Submit(r.Context(), form)
	if err != nil {
		writeControllerError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, eventToDTO(*created))
}

// UpdateEvent godoc
// @Summary Update an event
// @Tags Calendar
// @Accept json
// @Produce json
// @Param eventId path string true "Event ID"
// @Param event body EventDTO true "Event"
// @Success 200 {object} EventDTO
// @Failure 400 {object} rest.ErrorResponse
// @Failure 404 {object} rest.ErrorResponse
// @Router /api/calendar/event/{eventId} [put]
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var dto EventDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	form := dtoToForm(dto)
	form.Id = mux.Vars(r)["eventId"]

	updated, err := h.controller.Submit(r.Context(), form)
	if err != nil {
		writeControllerError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, eventToDTO(*updated))
}

// DeleteEvent godoc
// @Summary Delete an event
// @Tags Calendar
// @Param eventId path string true "Event ID"
// @Success 204
// @Failure 404 {object} rest.ErrorResponse
// @Router /api/calendar/event/{eventId} [delete]
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Delete(r.Context(), mux.Vars(r)["eventId"]); err != nil {
		writeControllerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetDarkMode(w http.ResponseWriter, r *http.Request) {
	rest.WriteJSON(w, http.StatusOK, DarkModeDTO{DarkMode: h.store.DarkMode()})
}

// SetDarkMode toggles the theme when the requested value differs; an empty body always toggles.
func (h *Handler) SetDarkMode(w http.ResponseWriter, r *http.Request) {
	var dto *DarkModeDTO
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
			return
		}
	}
	darkMode := h.store.DarkMode()
	if dto == nil || dto.DarkMode != darkMode {
		darkMode = h.store.ToggleDarkMode()
	}
	rest.WriteJSON(w, http.StatusOK, DarkModeDTO{DarkMode: darkMode})
}

// Stream godoc
// @Summary Server-sent store snapshots
// @Description Sends the store state on connect and after every change
// @Tags Calendar
// @Produce text/event-stream
// @Router /api/calendar/stream [get]
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		rest.WriteError(w, http.StatusInternalServerError, "Streaming unsupported", "")
		return
	}

	// a single pending signal is enough: every send reads the latest snapshot
	changed := make(chan struct{}, 1)
	notify := func(event_bus.Event) error {
		select {
		case changed <- struct{}{}:
		default:
		}
		return nil
	}
	unsubscribeEvents := h.bus.Subscribe(event_bus.StoreEventsChanged, notify)
	defer unsubscribeEvents()
	unsubscribeTheme := h.bus.Subscribe(event_bus.StoreDarkModeToggled, notify)
	defer unsubscribeTheme()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	keepAlive := time.NewTicker(30 * time.Second)
	defer keepAlive.Stop()

	if err := writeSnapshot(w, stateToDTO(h.store.Snapshot())); err != nil {
		return
	}
	flusher.Flush()

	for {
		var err error
		select {
		case <-r.Context().Done():
			return
		case <-changed:
			err = writeSnapshot(w, stateToDTO(h.store.Snapshot()))
		case <-keepAlive.C:
			_, err = fmt.Fprint(w, ": keep-alive\n\n")
		}
		if err != nil {
			log.Debugf("Stream client gone: %v", err)
			return
		}
		flusher.Flush()
	}
}

func writeSnapshot(w http.ResponseWriter, state StateDTO) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: state\ndata: %s\n\n", payload)
	return err
}

func writeControllerError(w http.ResponseWriter, err error) {
	message := UserMessage(err)
	switch {
	case errors.Is(err, calendar.ErrAuthRequired):
		rest.WriteError(w, http.StatusUnauthorized, message, err.Error())
	case errors.Is(err, calendar.ErrNotFound):
		rest.WriteError(w, http.StatusNotFound, message, err.Error())
	case errors.Is(err, calendar.ErrValidation):
		rest.WriteError(w, http.StatusBadRequest, message, err.Error())
	case errors.Is(err, calendar.ErrNetwork):
		rest.WriteError(w, http.StatusBadGateway, message, err.Error())
	default:
		rest.WriteError(w, http.StatusInternalServerError, message, err.Error())
	}
}

func eventToDTO(e calendar.Event) EventDTO {
	participants := e.Participants
	if participants == nil {
		participants = []string{}
	}
	return EventDTO{
		Id:           e.Id,
		Title:        e.Title,
		Start:        e.Start,
		End:          e.End,
		Type:         string(e.Type),
		Location:     e.Location,
		Description:  e.Description,
		Participants: participants,
	}
}

func toDTOs(events []calendar.Event) []EventDTO {
	dtos := make([]EventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, eventToDTO(e))
	}
	return dtos
}

func formToDTO(f Form) EventDTO {
	return eventToDTO(calendar.Event{
		Id:           f.Id,
		Title:        f.Title,
		Start:        f.Start,
		End:          f.End,
		Type:         f.Type,
		Location:     f.Location,
		Description:  f.Description,
		Participants: f.Participants,
	})
}

func dtoToForm(dto EventDTO) Form {
	participants := dto.Participants
	if len(participants) == 0 && dto.ParticipantsText != "" {
		participants = ParseParticipants(dto.ParticipantsText)
	}
	return Form{
		Id:           dto.Id,
		Title:        dto.Title,
		Start:        dto.Start,
		End:          dto.End,
		Type:         calendar.Type(dto.Type),
		Location:     dto.Location,
		Description:  dto.Description,
		Participants: participants,
	}
}

func stateToDTO(s store.State) StateDTO {
	return StateDTO{
		Events:    toDTOs(s.Events),
		DarkMode:  s.DarkMode,
		IsLoading: s.IsLoading,
		Error:     s.Error,
	}
}
