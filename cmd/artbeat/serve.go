package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	appexplore "artbeat/internal/app/explore"
	"artbeat/internal/explore"
	"artbeat/internal/httpapi"
	"artbeat/internal/store"
	"artbeat/shared/go/config"
	"artbeat/shared/go/middleware"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the explore HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Close()

	gestureCfg, err := config.LoadGestureTuning(cfg.Explore.TuningFile)
	if err != nil {
		return err
	}
	placeholders, err := loadPlaceholders(cfg.Explore.TuningFile)
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg.Database.URL, logger.Component("database"))
	if err != nil {
		return err
	}
	defer db.Close()

	dataStore := store.New(db)
	analytics := appexplore.NewLogAnalytics(logger.Zerolog())
	registry := appexplore.NewRegistry(appexplore.RegistryConfig{
		Secret:       []byte(cfg.Security.SessionSecret),
		IdleTTL:      cfg.Explore.SessionTTL,
		Source:       appexplore.New(dataStore, appexplore.WithPageSize(cfg.Explore.PageSize)),
		Placeholders: placeholders,
		Analytics:    analytics,
		Gesture:      gestureCfg,
		LoadTimeout:  cfg.Explore.LoadTimeout,
		Logger:       logger.Component("explore"),
	})

	api := httpapi.New(registry,
		httpapi.WithHealthChecker(dataStore),
		httpapi.WithSwipeCounter(analytics),
		httpapi.WithLogger(logger.Component("http")),
	)
	handler := middleware.Chain(api.Routes(),
		middleware.Recovery(logger.Zerolog()),
		middleware.RequestLogging(logger.Component("http")),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	serverLog := logger.Component("server")
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		serverLog.Info().Str("addr", srv.Addr).Msg("explore API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return registry.RunSweeper(gctx, cfg.Explore.SweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		serverLog.Info().Msg("shutting down explore API")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// loadPlaceholders reads the placeholder catalog; a missing tuning file
// leaves sessions without placeholders.
func loadPlaceholders(path string) (explore.PlaceholderProvider, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	placeholders, err := explore.LoadPlaceholderFile(path)
	if err != nil {
		return nil, err
	}
	return placeholders, nil
}
