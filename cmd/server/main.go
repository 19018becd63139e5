// Package main implements the entry point for the study engine server,
// which schedules spaced-repetition reviews and manages study session
// lifecycles over HTTP.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"

	"github.com/membo-ai/study-engine/internal/config"
	"github.com/membo-ai/study-engine/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String(
		"migrate", "", "run a migration command (up, down, status) and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.Setup(cfg.Server.LogLevel)

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"inactivity_timeout", cfg.Study.InactivityTimeout)

	db, err := setupAppDatabase(cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if *migrateCmd != "" {
		if err := runMigrations(db, *migrateCmd, appLogger); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		return
	}

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, appLogger, db)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
