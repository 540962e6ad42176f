// Command quaketui runs the earthquake feed controller behind a terminal UI.
// Configuration comes from the same environment variables as quakewatch; logs
// go to a file so they do not draw over the screen.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/quake-feed-service/internal/adapter/mapbox"
	"github.com/couchcryptid/quake-feed-service/internal/adapter/tui"
	"github.com/couchcryptid/quake-feed-service/internal/adapter/usgs"
	"github.com/couchcryptid/quake-feed-service/internal/config"
	"github.com/couchcryptid/quake-feed-service/internal/controller"
	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/observability"
)

func main() {
	logPath := flag.String("log", "quaketui.log", "file to write logs to")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	logger := observability.NewLoggerTo(logFile, cfg)
	metrics := observability.NewMetrics()

	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
	}

	fetcher := usgs.NewClient(cfg.FeedBaseURL, cfg.FeedUserAgent, cfg.FeedTimeout, metrics, logger)
	transformer := controller.NewTransformer(geocoder, cfg.DisplayLocation, metrics, logger)
	ctrl := controller.New(fetcher, transformer, logger, metrics, controller.Options{
		Filter:          cfg.DefaultFilter,
		WarningDwell:    cfg.WarningDwell,
		RefreshInterval: cfg.RefreshInterval,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)

	views, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	_, runErr := tea.NewProgram(tui.New(ctrl, views), tea.WithAltScreen(), tea.WithContext(ctx)).Run()

	cancel()
	if err := <-done; err != nil {
		logger.Error("controller error", "error", err)
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		fmt.Fprintf(os.Stderr, "terminal error: %v\n", runErr)
		os.Exit(1)
	}
}
