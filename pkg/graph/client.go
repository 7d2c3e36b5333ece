package graph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/unical/unical/pkg/calendar"
	"golang.org/x/oauth2"
)

const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// Authenticator hands out access tokens. auth.Credentials satisfies it.
type Authenticator interface {
	EnsureAccess(ctx context.Context) (*oauth2.Token, error)
}

// Client is the calendar.Remote backed by Microsoft Graph.
type Client struct {
	baseURL    string
	calendarId string
	httpClient *http.Client
	auth       Authenticator
	translator Translator
}

func NewClient(baseURL, calendarId string, httpClient *http.Client, auth Authenticator, translator Translator) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		calendarId: calendarId,
		httpClient: httpClient,
		auth:       auth,
		translator: translator,
	}
}

func (c *Client) calendarPath() string {
	if c.calendarId == "" {
		return c.baseURL + "/me"
	}
	return c.baseURL + "/me/calendars/" + url.PathEscape(c.calendarId)
}

// FetchEvents returns at most 100 events overlapping [from, to] in the order the server
// sent them, from a single request. Records that cannot be translated are logged and skipped.
func (c *Client) FetchEvents(ctx context.Context, from, to time.Time) ([]calendar.Event, error) {
	token, err := c.auth.EnsureAccess(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("startDateTime", from.UTC().Format(time.RFC3339))
	params.Set("endDateTime", to.UTC().Format(time.RFC3339))
	params.Set("$top", strconv.Itoa(pageSize))
	params.Set("$select", selectFields)
	params.Set("$orderby", "start/dateTime asc")
	endpoint := c.calendarPath() + "/calendarView?" + params.Encode()

	var page eventList
	if err := c.do(ctx, token, http.MethodGet, endpoint, nil, http.StatusOK, &page); err != nil {
		return nil, err
	}
	if page.NextLink != "" {
		log.Debugf("Window holds more than %d events, later ones are not fetched", pageSize)
	}
	records := page.Value
	if len(records) > pageSize {
		records = records[:pageSize]
	}

	events := make([]calendar.Event, 0, len(records))
	for _, remote := range records {
		event, err := c.translator.ToLocal(remote)
		if err != nil {
			log.Warnf("Skipping remote event: %v", err)
			continue
		}
		events = append(events, event)
	}
	log.Debugf("Fetched %d events between %s and %s", len(events), from.Format(time.RFC3339), to.Format(time.RFC3339))
	return events, nil
}

func (c *Client) CreateEvent(ctx context.Context, draft calendar.Event) (*calendar.Event, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	token, err := c.auth.EnsureAccess(ctx)
	if err != nil {
		return nil, err
	}

	var created RemoteEvent
	err = c.do(ctx, token, http.MethodPost, c.calendarPath()+"/events", c.translator.ToRemote(draft), http.StatusCreated, &created)
	if err != nil {
		return nil, err
	}
	return c.echo(created, draft.Type)
}

func (c *Client) UpdateEvent(ctx context.Context, event calendar.Event) (*calendar.Event, error) {
	if event.Id == "" {
		return nil, fmt.Errorf("%w: event id is required for update", calendar.ErrValidation)
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	token, err := c.auth.EnsureAccess(ctx)
	if err != nil {
		return nil, err
	}

	var updated RemoteEvent
	endpoint := c.calendarPath() + "/events/" + url.PathEscape(event.Id)
	err = c.do(ctx, token, http.MethodPatch, endpoint, c.translator.ToRemote(event), http.StatusOK, &updated)
	if err != nil {
		return nil, err
	}
	return c.echo(updated, event.Type)
}

func (c *Client) DeleteEvent(ctx context.Context, eventId string) error {
	if eventId == "" {
		return fmt.Errorf("%w: event id is required for delete", calendar.ErrValidation)
	}
	token, err := c.auth.EnsureAccess(ctx)
	if err != nil {
		return err
	}
	endpoint := c.calendarPath() + "/events/" + url.PathEscape(eventId)
	return c.do(ctx, token, http.MethodDelete, endpoint, nil, http.StatusNoContent, nil)
}

// echo translates the server's copy of a written event. The remote has no notion of
// the local type, so the caller's is kept.
func (c *Client) echo(remote RemoteEvent, eventType calendar.Type) (*calendar.Event, error) {
	event, err := c.translator.ToLocal(remote)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable response: %w", calendar.ErrNetwork, err)
	}
	if eventType != "" {
		event.Type = eventType
	}
	return &event, nil
}

func (c *Client) do(ctx context.Context, token *oauth2.Token, method, endpoint string, body any, expected int, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	token.SetAuthHeader(req)
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Errorf("%s %s failed: %v", method, req.URL.Path, err)
		return fmt.Errorf("%w: %w", calendar.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != expected {
		statusErr := statusError(resp)
		log.Errorf("%s %s: %v", method, req.URL.Path, statusErr)
		return statusErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %w", calendar.ErrNetwork, err)
	}
	return nil
}

// statusError classifies an unexpected response into the calendar error taxonomy.
func statusError(resp *http.Response) error {
	message := resp.Status
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var envelope errorEnvelope
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
		message = fmt.Sprintf("%s: %s (%s)", resp.Status, envelope.Error.Message, envelope.Error.Code)
	}

	var kind error
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		kind = calendar.ErrAuthRequired
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		kind = calendar.ErrNotFound
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnprocessableEntity:
		kind = calendar.ErrValidation
	default:
		kind = calendar.ErrNetwork
	}
	return fmt.Errorf("%w: %w", kind, errors.New(message))
}
