package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/doorline/knock/internal/config"
	"github.com/doorline/knock/internal/db"
	"github.com/doorline/knock/internal/geocode"
	"github.com/doorline/knock/internal/kv"
	"github.com/doorline/knock/internal/logging"
	"github.com/doorline/knock/internal/tracking"
	"github.com/doorline/knock/internal/visitlog"
	"github.com/doorline/knock/internal/web"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the HTTP API used by the map front end, plus the read-only manager page at /manager.

Settings come from --config (YAML) and KNOCK_* environment variables, e.g.
KNOCK_STORAGE_BACKEND=sqlite KNOCK_STORAGE_PATH=~/.config/knock/knock.db.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.HTTP.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "port to listen on (overrides config)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Pretty); err != nil {
		return err
	}
	logger := slog.Default()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	sub, database, err := openSubstrate(cfg)
	if err != nil {
		return err
	}
	if database != nil {
		defer closeDB(database)
	}

	store := visitlog.NewStore(sub, visitlog.WithLocation(loc), visitlog.WithLogger(logger))

	var lookup geocode.Lookuper
	if cfg.Geocode.Token != "" {
		mb, err := geocode.NewMapbox(cfg.Geocode.Token, cfg.Geocode.RatePerSecond)
		if err != nil {
			return err
		}
		lookup = geocode.NewCache(mb)
	} else {
		logger.Info("address lookup disabled (geocode token not configured)")
	}

	srv, err := web.NewServer(web.Options{
		Store:        store,
		Session:      tracking.NewSession(logger),
		Feed:         tracking.NewFeed(16),
		Backfill:     geocode.NewBackfiller(lookup, store, cfg.Geocode.Workers, logger),
		RadiusMeters: cfg.Proximity.RadiusMeters,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting position watch: %w", err)
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      logging.RequestLogger(logger)(srv),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpServer.Addr, "backend", cfg.Storage.Backend, "timezone", loc.String())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// openSubstrate returns the configured storage substrate. The database is
// non-nil for the sqlite backend and must be closed by the caller.
func openSubstrate(cfg *config.Config) (kv.Substrate, *sql.DB, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return kv.NewMemory(), nil, nil
	case config.BackendSQLite:
		database, err := db.Open(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return kv.NewSQLite(database), database, nil
	case config.BackendFile:
		return kv.NewFile(cfg.Storage.Path, cfg.Storage.MaxBytes), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// closeDB closes the database, logging any error to stderr.
func closeDB(database *sql.DB) {
	if err := database.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing database: %v\n", err)
	}
}
