package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/unical/unical/internal/config"
	"github.com/unical/unical/internal/database"
	"github.com/unical/unical/internal/event_bus"
	"github.com/unical/unical/internal/utils"
	"github.com/unical/unical/pkg/auth"
	"github.com/unical/unical/pkg/calendar"
	"github.com/unical/unical/pkg/calendar_provider"
	"github.com/unical/unical/pkg/event_type"
	"github.com/unical/unical/pkg/google"
	"github.com/unical/unical/pkg/graph"
	"github.com/unical/unical/pkg/ical_export"
	"github.com/unical/unical/pkg/interaction"
	"github.com/unical/unical/pkg/store"
	"github.com/unical/unical/pkg/sync_loop"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Clock utils.Clock
	Bus   *event_bus.EventBus
	Store *store.Store
	DB    *pgxpool.Pool

	TypeRepo  event_type.Repository
	Annotator *event_type.Annotator

	// Credentials is the sign-in of the active provider.
	Credentials *auth.Credentials

	GoogleService google.Service
	GoogleHandler *google.Handler

	CalendarProvider        *calendar_provider.CalendarProvider
	CalendarMigrator        *calendar_provider.EventsMigratorImpl
	CalendarMigratorHandler *calendar_provider.MigratorHandler

	SyncLoop    *sync_loop.Loop
	SyncHandler *sync_loop.Handler

	Controller         *interaction.Controller
	InteractionHandler *interaction.Handler

	Exporter      *ical_export.Exporter
	ExportHandler *ical_export.Handler
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(ctx context.Context, cfg config.Application) (*Dependencies, error) {
	deps := &Dependencies{}

	local, naive, err := cfg.Timezone.Locations()
	if err != nil {
		return nil, fmt.Errorf("invalid timezone configuration: %w", err)
	}

	deps.Clock = utils.SystemClock{}
	deps.Bus = event_bus.NewEventBus()
	deps.Store = store.New(deps.Bus, deps.Clock, store.ReconcilePolicy(cfg.Sync.Reconcile), cfg.Sync.Grace)

	if cfg.Database.Enabled {
		deps.DB, err = database.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(cfg.Database); err != nil {
			deps.DB.Close()
			return nil, err
		}
		deps.TypeRepo = event_type.NewRepository(deps.DB)
	} else {
		log.Info("Database disabled, event types are kept in memory")
		deps.TypeRepo = event_type.NewStubRepository()
	}
	deps.Annotator = event_type.NewAnnotator(deps.TypeRepo, cfg.Auth.Account)

	tokens := tokenStore(cfg.Auth)
	prompt := &auth.LoopbackPrompt{
		ListenAddr: cfg.Auth.RedirectAddr,
		Timeout:    cfg.Auth.InteractiveTimeout,
	}

	remotes := map[string]calendar.Remote{}
	credentials := map[string]*auth.Credentials{}

	if cfg.Provider == config.ProviderGraph || cfg.Auth.ClientId != "" {
		provider := auth.NewMicrosoftProvider(cfg.Auth.TenantId, cfg.Auth.ClientId, cfg.Auth.ClientSecret, tokens, prompt)
		credentials[config.ProviderGraph] = auth.NewCredentials(provider, cfg.Auth.Account, cfg.Auth.Scopes)
		translator := graph.NewTranslator(graph.TimeZones{Naive: naive, Local: local})
		remotes[config.ProviderGraph] = graph.NewClient(cfg.Graph.BaseURL, cfg.Graph.CalendarId, nil, credentials[config.ProviderGraph], translator)
	}

	if cfg.Provider == config.ProviderGoogle || cfg.Google.ClientId != "" {
		provider := auth.NewGoogleProvider(cfg.Google.ClientId, cfg.Google.ClientSecret, tokens, prompt)
		// tokens of both providers may share a store, so the Google account is kept apart
		credentials[config.ProviderGoogle] = auth.NewCredentials(provider, cfg.Auth.Account+"-google", cfg.Google.Scopes)
		service := google.NewService(credentials[config.ProviderGoogle], local, cfg.Google.Endpoint, nil)
		deps.GoogleService = service
		deps.GoogleHandler = google.NewHandler(service)
		remotes[config.ProviderGoogle] = service.GetCalendar(cfg.Google.CalendarId)
	}

	deps.CalendarProvider, err = calendar_provider.NewCalendarProvider(cfg.Provider, remotes)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Credentials = credentials[cfg.Provider]
	deps.CalendarMigrator = calendar_provider.NewEventsMigratorImpl(deps.CalendarProvider)
	deps.CalendarMigratorHandler = calendar_provider.NewMigratorHandler(deps.CalendarMigrator)

	deps.SyncLoop, err = sync_loop.New(deps.CalendarProvider, sync_loop.Options{
		Interval:      cfg.Sync.Interval,
		Schedule:      cfg.Sync.Schedule,
		MonthsBack:    cfg.Sync.MonthsBack,
		MonthsForward: cfg.Sync.MonthsForward,
		Overlap:       sync_loop.OverlapPolicy(cfg.Sync.Overlap),
		Clock:         deps.Clock,
		OnError:       deps.onSyncError,
	})
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.SyncHandler = sync_loop.NewHandler(deps.SyncLoop, deps.OnUpdate)

	deps.Controller = interaction.NewController(deps.CalendarProvider, deps.Store, deps.Annotator)
	deps.InteractionHandler = interaction.NewHandler(deps.Controller, deps.Store, deps.Bus)

	deps.Exporter = ical_export.NewExporter(deps.Clock)
	deps.ExportHandler = ical_export.NewHandler(deps.Exporter, deps.Store)

	return deps, nil
}

// OnUpdate installs a fetched window in the store, restoring the remembered types first.
func (d *Dependencies) OnUpdate(events []calendar.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events = d.Annotator.Annotate(ctx, events)
	d.Store.ReplaceAll(events)

	err := d.Bus.Publish(event_bus.NewEvent(ctx, event_bus.SyncCompleted, event_bus.SyncFinished{
		At:     d.Clock.Now(),
		Events: len(events),
	}))
	if err != nil {
		log.Warnf("sync notification failed: %v", err)
	}
}

func (d *Dependencies) onSyncError(err error) {
	d.Store.SetError(err)
	publishErr := d.Bus.Publish(event_bus.NewEvent(context.Background(), event_bus.SyncCompleted, event_bus.SyncFinished{
		At:    d.Clock.Now(),
		Error: err.Error(),
	}))
	if publishErr != nil {
		log.Warnf("sync notification failed: %v", publishErr)
	}
}

// Close releases the database pool, if any.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}

func tokenStore(cfg config.Auth) auth.TokenStore {
	if cfg.TokenCache == "file" {
		dir := cfg.TokenDir
		if dir == "" {
			dir = auth.DefaultTokenDir()
		}
		log.Infof("Tokens are cached in %s", dir)
		return auth.NewFileTokenStore(dir)
	}
	return auth.NewMemoryTokenStore()
}
