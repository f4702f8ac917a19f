package main

import (
	"errors"
	"flag"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"storefront/config"
	"storefront/internal/util"
)

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		log.Fatal("usage: migrate <up|down|version>")
	}

	cfg := config.Load()
	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "file://migrations"
	}

	m, err := migrate.New(migrationsPath, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to create migrate instance", zap.Error(err))
	}
	defer func() { _, _ = m.Close() }()

	switch args[0] {
	case "up":
		err = m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("No pending migrations")
			return
		}
		if err != nil {
			logger.Fatal("Migration up failed", zap.Error(err))
		}
		logger.Info("Migrations applied")

	case "down":
		err = m.Steps(-1)
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("No migrations to roll back")
			return
		}
		if err != nil {
			logger.Fatal("Migration down failed", zap.Error(err))
		}
		logger.Info("Migration rolled back")

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("No migrations applied yet")
			return
		}
		if err != nil {
			logger.Fatal("Failed to read migration version", zap.Error(err))
		}
		logger.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))

	default:
		logger.Fatal("Unknown command", zap.String("command", args[0]))
	}
}
