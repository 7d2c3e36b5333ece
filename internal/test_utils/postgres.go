package test_utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/unical/unical/internal/config"
	"github.com/unical/unical/internal/database"
)

const (
	testDbName = "unical"
	testDbUser = "test_unical"
	testDbPass = "test_unical"
)

func preparePostgresContainer(ctx context.Context) (*postgres.PostgresContainer, error) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to find project root: %v", err)
	}

	return runGuarded(func() (*postgres.PostgresContainer, error) {
		return postgres.Run(
			ctx, "postgres:18.1-alpine",
			postgres.WithInitScripts(filepath.Join(projectRoot, "dev", "init.sql")),
			postgres.WithDatabase(testDbName),
			postgres.WithUsername(testDbUser),
			postgres.WithPassword(testDbPass),
			postgres.BasicWaitStrategies(),
		)
	})
}

// runGuarded turns a panic into an error; testcontainers panics in its provider
// lookup when no container runtime is installed.
func runGuarded(run func() (*postgres.PostgresContainer, error)) (container *postgres.PostgresContainer, err error) {
	defer func() {
		if r := recover(); r != nil {
			container = nil
			err = fmt.Errorf("container runtime unavailable: %v", r)
		}
	}()
	return run()
}

// TestWithDB starts a migrated Postgres container. It returns a nil pool when
// no container runtime is available, so callers can skip their tests.
func TestWithDB() (*pgxpool.Pool, func()) {
	ctx := context.Background()
	noop := func() {}

	container, err := preparePostgresContainer(ctx)
	if err != nil {
		log.Warnf("Postgres container unavailable, database tests will be skipped: %v", err)
		return nil, noop
	}
	terminate := func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			log.Errorf("failed to terminate postgres container: %v", err)
		}
	}

	host, _ := container.Host(ctx)
	port, _ := container.MappedPort(ctx, "5432/tcp")
	log.Infof("Postgres container started at %s:%d", host, port.Int())

	cfg := config.Database{
		Enabled: true,
		Host:    host,
		Port:    port.Int(),
		User:    testDbUser,
		Pass:    testDbPass,
		Name:    testDbName,
		Schema:  "unical",
	}
	if err := database.Migrate(cfg); err != nil {
		terminate()
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	pool, err := database.Open(ctx, cfg)
	if err != nil {
		terminate()
		log.Fatalf("Failed to open database connection: %v", err)
	}
	return pool, func() {
		pool.Close()
		terminate()
	}
}

// findProjectRoot walks up to the directory holding go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find project root")
		}
		dir = parent
	}
}
