// Package main is the entry point for the recipe API server.
//
// The main package stays minimal. Its job is to:
//  1. Read configuration (config file, .env, environment)
//  2. Create process-wide dependencies (logger, PDF font)
//  3. Start the application
//
// All actual logic lives in internal/server and the packages it wires.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/foodgram/internal/config"
	"github.com/sakif/foodgram/internal/server"
	"github.com/sakif/foodgram/internal/shoppinglist"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file (optional)")
	flag.Parse()

	// === 1. READ CONFIGURATION ===
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if cfg.JWTSecret == "" {
		// JWT_SECRET=$(openssl rand -hex 32)
		logger.Error("JWT_SECRET is not set")
		os.Exit(1)
	}

	// === 3. DATA DIRECTORIES ===
	// SQLite does not create missing parent directories.
	if dbDir := filepath.Dir(cfg.DBPath); cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === 4. PDF FONT ===
	// Without a TTF the shopping list falls back to Helvetica, which
	// cannot draw Cyrillic ingredient names.
	if cfg.PDFFontPath != "" {
		if err := shoppinglist.RegisterFont("shopping-list", cfg.PDFFontPath); err != nil {
			logger.Error("failed to load PDF font",
				slog.String("path", cfg.PDFFontPath),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	} else {
		logger.Warn("PDF_FONT_PATH not set, shopping lists use the built-in Latin-1 font")
	}

	// === 5. CREATE AND START THE SERVER ===
	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until the server is shut down (Ctrl+C or SIGTERM).
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
