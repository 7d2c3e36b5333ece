package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/unical/unical/internal/app"
	"github.com/unical/unical/internal/config"
	"github.com/urfave/cli/v2"
)

func init() {
	level := os.Getenv("LOG_LEVEL")
	if level != "" {
		logrusLevel, err := log.ParseLevel(level)
		if err != nil {
			log.Fatal(err)
		}
		log.SetLevel(logrusLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

func main() {
	// a missing .env file is fine
	_ = godotenv.Load()

	cliApp := &cli.App{
		Name:  "unical",
		Usage: "Keep a local view of a remote calendar and edit it through a small HTTP API.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "./config/application.yaml",
				Usage:   "Path to the YAML configuration file.",
				EnvVars: []string{"UNICAL_CONFIG"},
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server and the sync loop (default).",
				Action: serve,
			},
			{
				Name:   "login",
				Usage:  "Sign in to the configured provider and cache the token.",
				Action: login,
			},
			{
				Name:   "events",
				Usage:  "Fetch the current window once and print it.",
				Action: events,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context) (config.Application, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return config.Application{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApplication(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return application.Run(ctx)
}

func login(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Auth.TokenCache != "file" {
		log.Warn("Token cache is in memory, the sign-in will not outlive this command")
	}
	deps, err := app.BuildDependencies(c.Context, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	ctx, cancel := context.WithTimeout(c.Context, cfg.Auth.InteractiveTimeout+time.Minute)
	defer cancel()
	if _, err := deps.Credentials.EnsureAccess(ctx); err != nil {
		return err
	}
	fmt.Printf("Signed in to %s as %s\n", cfg.Provider, deps.Credentials.Account())
	return nil
}

func events(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	deps, err := app.BuildDependencies(c.Context, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	fetched, err := deps.SyncLoop.SyncNow(c.Context)
	if err != nil {
		return err
	}
	fetched = deps.Annotator.Annotate(c.Context, fetched)
	for _, e := range fetched {
		fmt.Printf("%s  %s  %-8s  %s\n", e.Start.Local().Format("2006-01-02 15:04"), e.End.Local().Format("15:04"), e.Type, e.Title)
	}
	return nil
}
