package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/unical/unical/internal/config"
)

// Application wires configuration, dependencies, router, and server lifecycle.
type Application struct {
	cfg    config.Application
	deps   *Dependencies
	router *mux.Router
	srv    *http.Server
}

// NewApplication constructs the full HTTP application, ready to Run().
func NewApplication(ctx context.Context, cfg config.Application) (*Application, error) {
	deps, err := BuildDependencies(ctx, cfg)
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()

	// Middleware chain
	SetupMiddleware(r)

	// Routes
	RegisterRoutes(r, deps)

	srv := &http.Server{
		Handler: r,
		Addr:    cfg.Listen,
		// no WriteTimeout: the event stream stays open
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return &Application{cfg: cfg, deps: deps, router: r, srv: srv}, nil
}

func (a *Application) Dependencies() *Dependencies {
	return a.deps
}

// Run serves HTTP until ctx is cancelled, then stops the sync loop and shuts the server down.
func (a *Application) Run(ctx context.Context) error {
	defer a.deps.Close()

	var loopStarted sync.WaitGroup
	if a.cfg.Sync.AutoStart {
		// the first fetch may wait for an interactive sign-in
		loopStarted.Add(1)
		go func() {
			defer loopStarted.Done()
			a.deps.SyncLoop.Start(a.deps.OnUpdate)
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", a.srv.Addr)
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var err error
	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case err = <-serveErr:
		log.Errorf("server failed: %v", err)
	}

	a.deps.SyncLoop.Stop()
	loopStarted.Wait()
	// covers a Start that had not begun when the first Stop ran
	a.deps.SyncLoop.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := a.srv.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warnf("server shutdown: %v", shutdownErr)
	}
	return err
}
