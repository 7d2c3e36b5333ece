package interaction

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unical/unical/pkg/calendar"
)

func setupRouter(t *testing.T) (*mux.Router, fixture) {
	f := setup(t)
	handler := NewHandler(f.controller, f.store, f.bus)
	router := mux.NewRouter()
	router.HandleFunc("/api/calendar/event", handler.ListEvents).Methods("GET")
	router.HandleFunc("/api/calendar/event", handler.CreateEvent).Methods("POST")
	router.HandleFunc("/api/calendar/event/{eventId}", handler.UpdateEvent).Methods("PUT")
	router.HandleFunc("/api/calendar/event/{eventId}", handler.DeleteEvent).Methods("DELETE")
	router.HandleFunc("/api/calendar/event/{eventId}/form", handler.EditForm).Methods("GET")
	router.HandleFunc("/api/calendar/form/new", handler.NewForm).Methods("GET")
	router.HandleFunc("/api/calendar/state", handler.State).Methods("GET")
	router.HandleFunc("/api/calendar/stream", handler.Stream).Methods("GET")
	router.HandleFunc("/api/settings/darkmode", handler.GetDarkMode).Methods("GET")
	router.HandleFunc("/api/settings/darkmode", handler.SetDarkMode).Methods("PUT")
	return router, f
}

func doRequest(router *mux.Router, method, target string, body any) *httptest.ResponseRecorder {
	var payload bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&payload).Encode(body)
	}
	req := httptest.NewRequest(method, target, &payload)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHandler_CreateEvent(t *testing.T) {
	t.Run("should create and list the event", func(t *testing.T) {
		router, _ := setupRouter(t)

		rr := doRequest(router, "POST", "/api/calendar/event", EventDTO{
			Title:            "Standup",
			Start:            start,
			End:              start.Add(15 * time.Minute),
			ParticipantsText: "a@example.com, b@example.com",
		})

		require.Equal(t, http.StatusCreated, rr.Code)
		var created EventDTO
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
		assert.NotEmpty(t, created.Id)
		assert.Equal(t, "meeting", created.Type)
		assert.Equal(t, []string{"a@example.com", "b@example.com"}, created.Participants)

		rr = doRequest(router, "GET", "/api/calendar/event", nil)
		var listed []EventDTO
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&listed))
		require.Len(t, listed, 1)
		assert.Equal(t, created.Id, listed[0].Id)
	})

	t.Run("should reject an invalid event with the reason", func(t *testing.T) {
		router, _ := setupRouter(t)

		rr := doRequest(router, "POST", "/api/calendar/event", EventDTO{Title: "Backwards", Start: start, End: start.Add(-time.Hour)})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "must be before end")
	})

	t.Run("should answer 401 when sign-in is required", func(t *testing.T) {
		router, f := setupRouter(t)
		f.remote.CreateErr = calendar.ErrAuthRequired

		rr := doRequest(router, "POST", "/api/calendar/event", EventDTO{Title: "Standup", Start: start, End: start.Add(time.Hour)})

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "Please sign in")
	})
}

func TestHandler_UpdateAndDelete(t *testing.T) {
	router, f := setupRouter(t)
	created, err := f.controller.Submit(context.Background(), Form{Title: "Old", Start: start, End: start.Add(time.Hour)})
	require.NoError(t, err)

	rr := doRequest(router, "PUT", "/api/calendar/event/"+created.Id, EventDTO{Title: "New", Start: start, End: start.Add(time.Hour)})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(router, "GET", "/api/calendar/event/"+created.Id+"/form", nil)
	var form EventDTO
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&form))
	assert.Equal(t, "New", form.Title)

	rr = doRequest(router, "DELETE", "/api/calendar/event/"+created.Id, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = doRequest(router, "DELETE", "/api/calendar/event/"+created.Id, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandler_ListEvents_Window(t *testing.T) {
	router, f := setupRouter(t)
	f.store.ReplaceAll([]calendar.Event{
		{Id: "jan", Title: "January", Start: start, End: start.Add(time.Hour)},
		{Id: "mar", Title: "March", Start: start.AddDate(0, 2, 0), End: start.AddDate(0, 2, 0).Add(time.Hour)},
	})

	rr := doRequest(router, "GET", "/api/calendar/event?from=2024-01-01T00:00:00Z&to=2024-02-01T00:00:00Z", nil)

	var listed []EventDTO
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "jan", listed[0].Id)

	rr = doRequest(router, "GET", "/api/calendar/event?from=yesterday&to=2024-02-01T00:00:00Z", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_NewForm(t *testing.T) {
	router, _ := setupRouter(t)

	rr := doRequest(router, "GET", "/api/calendar/form/new?start=2024-01-02T09:00:00Z", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var form EventDTO
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&form))
	assert.True(t, start.Add(time.Hour).Equal(form.End))
	assert.Equal(t, "meeting", form.Type)
}

func TestHandler_DarkMode(t *testing.T) {
	router, _ := setupRouter(t)

	rr := doRequest(router, "PUT", "/api/settings/darkmode", DarkModeDTO{DarkMode: true})
	assert.JSONEq(t, `{"darkMode":true}`, rr.Body.String())

	rr = doRequest(router, "PUT", "/api/settings/darkmode", DarkModeDTO{DarkMode: true})
	assert.JSONEq(t, `{"darkMode":true}`, rr.Body.String())

	rr = doRequest(router, "GET", "/api/settings/darkmode", nil)
	assert.JSONEq(t, `{"darkMode":true}`, rr.Body.String())
}

func TestHandler_Stream(t *testing.T) {
	router, f := setupRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/calendar/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	first := readState(t, reader)
	assert.Empty(t, first.Events)

	f.store.Add(calendar.Event{Id: "a", Title: "Streamed", Start: start, End: start.Add(time.Hour)})

	second := readState(t, reader)
	require.Len(t, second.Events, 1)
	assert.Equal(t, "Streamed", second.Events[0].Title)
}

func readState(t *testing.T, reader *bufio.Reader) StateDTO {
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			var state StateDTO
			require.NoError(t, json.Unmarshal([]byte(data), &state))
			return state
		}
	}
}
