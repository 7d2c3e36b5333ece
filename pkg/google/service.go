package google

import (
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

type CalendarItem struct {
	ID      string
	Summary string
}

// Authenticator hands out access tokens. auth.Credentials satisfies it.
type Authenticator interface {
	EnsureAccess(ctx context.Context) (*oauth2.Token, error)
}

type Service interface {
	GetCalendar(calendarId string) *Calendar
	ListCalendars(ctx context.Context) ([]CalendarItem, error)
}

type ServiceImpl struct {
	auth       Authenticator
	location   *time.Location
	endpoint   string
	httpClient *http.Client
}

// NewService creates the Google Calendar service. location is the zone event
// times are written in; endpoint overrides the API base URL when non-empty.
func NewService(auth Authenticator, location *time.Location, endpoint string, httpClient *http.Client) *ServiceImpl {
	if location == nil {
		location = time.UTC
	}
	return &ServiceImpl{
		auth:       auth,
		location:   location,
		endpoint:   endpoint,
		httpClient: httpClient,
	}
}

func (s *ServiceImpl) GetCalendar(calendarId string) *Calendar {
	if calendarId == "" {
		calendarId = "primary"
	}
	return newGoogleCalendar(s, calendarId)
}

func (s *ServiceImpl) ListCalendars(ctx context.Context) ([]CalendarItem, error) {
	googleService, err := s.prepareGoogleService(ctx)
	if err != nil {
		return nil, err
	}
	calendars, err := googleService.CalendarList.List().Context(ctx).Do()
	if err != nil {
		err := fmt.Errorf("unable to retrieve calendars from Google Calendar: %w", classify(err))
		log.Error(err)
		return nil, err
	}
	googleCalendars := make([]CalendarItem, 0, len(calendars.Items))
	for _, cal := range calendars.Items {
		googleCalendars = append(googleCalendars, CalendarItem{
			ID:      cal.Id,
			Summary: cal.Summary,
		})
	}
	return googleCalendars, nil
}

// prepareGoogleService acquires a token first, so no request is sent when access is refused.
func (s *ServiceImpl) prepareGoogleService(ctx context.Context) (*gcal.Service, error) {
	token, err := s.auth.EnsureAccess(ctx)
	if err != nil {
		return nil, err
	}

	clientCtx := ctx
	if s.httpClient != nil {
		clientCtx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}
	options := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(clientCtx, oauth2.StaticTokenSource(token)))}
	if s.endpoint != "" {
		options = append(options, option.WithEndpoint(s.endpoint))
	}
	service, err := gcal.NewService(ctx, options...)
	if err != nil {
		err := fmt.Errorf("unable to retrieve Calendar client: %v", err)
		log.Error(err)
		return nil, err
	}

	return service, nil
}
