package google

import (
	"errors"
	"net/http"

	"github.com/unical/unical/internal/rest"
	"github.com/unical/unical/pkg/calendar"
)

type CalendarItemDto struct {
	Id      string `json:"id"`
	Summary string `json:"summary"`
}

type Handler struct {
	service Service
}

func NewHandler(s Service) *Handler {
	return &Handler{s}
}

// ListCalendars godoc
// @Summary List Google calendars
// @Description Calendars visible to the signed-in Google account
// @Tags Google
// @Produce json
// @Success 200 {array} CalendarItemDto
// @Failure 401 {object} rest.ErrorResponse "Sign-in required"
// @Router /api/google/calendars [get]
func (h *Handler) ListCalendars(w http.ResponseWriter, r *http.Request) {
	calendars, err := h.service.ListCalendars(r.Context())
	if err != nil {
		if errors.Is(err, calendar.ErrAuthRequired) {
			rest.WriteError(w, http.StatusUnauthorized, "Please sign in to continue", err.Error())
			return
		}
		rest.WriteError(w, http.StatusBadGateway, "Failed to list calendars", err.Error())
		return
	}

	calendarItems := make([]CalendarItemDto, 0, len(calendars))
	for _, c := range calendars {
		calendarItems = append(calendarItems, toCalendarItemDto(c))
	}
	rest.WriteJSON(w, http.StatusOK, calendarItems)
}

func toCalendarItemDto(ci CalendarItem) CalendarItemDto {
	return CalendarItemDto{
		Id:      ci.ID,
		Summary: ci.Summary,
	}
}
