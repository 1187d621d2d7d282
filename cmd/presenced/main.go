// presenced runs the presence relay: an HTTP API that keeps gateway
// sessions alive and forwards presence updates to them.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/presence-relay/internal/api"
	"github.com/rickgao/presence-relay/internal/config"
	"github.com/rickgao/presence-relay/internal/connection"
	"github.com/rickgao/presence-relay/internal/database"
	"github.com/rickgao/presence-relay/internal/gateway"
	"github.com/rickgao/presence-relay/internal/journal"
	"github.com/rickgao/presence-relay/internal/mirror"
	"github.com/rickgao/presence-relay/internal/registry"
	"github.com/rickgao/presence-relay/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var showVersion bool

	flagSet := pflag.NewFlagSet("presenced", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to config file (defaults only when empty)")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Println("presenced", version.String())
		return nil
	}

	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	build := version.Get()
	logger.Info("starting presenced",
		"version", build.Version,
		"commit", build.Commit,
		"built", build.BuildTime,
		"config", configPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional event journal
	var events *journal.Journal
	if cfg.Database.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database.DBConfig)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		if err := database.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}

		events = journal.New(journal.Config{
			BatchSize:     cfg.Journal.BatchSize,
			FlushInterval: cfg.Journal.FlushInterval,
			BufferSize:    cfg.Journal.BufferSize,
		}, pool, logger.With("component", "journal"))
		if err := events.Start(ctx); err != nil {
			return fmt.Errorf("start journal: %w", err)
		}
		defer stopWith(cfg, logger, "journal", events.Stop)
	}

	// Optional status mirror
	var snapshots *mirror.Mirror
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		logger.Info("redis connected", "addr", cfg.Redis.Addr)

		snapshots = mirror.New(mirror.Config{
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       cfg.Redis.TTL,
		}, rdb, logger.With("component", "mirror"))
		if err := snapshots.Start(ctx); err != nil {
			return fmt.Errorf("start mirror: %w", err)
		}
		defer stopWith(cfg, logger, "mirror", snapshots.Stop)
	}

	dialer := connection.NewDialer(cfg.Gateway.ClientConfig(), logger.With("component", "connection"))
	sessionCfg := cfg.Gateway.SessionConfig()

	factory := func(id string) *gateway.Session {
		var observers []gateway.Observer
		if events != nil {
			observers = append(observers, events.ForSession(id))
		}
		if snapshots != nil {
			observers = append(observers, snapshots.ForSession(id))
		}
		return gateway.NewSession(sessionCfg, dialer, logger.With("session", id),
			gateway.WithObserver(gateway.Observers(observers...)),
		)
	}

	sessions := registry.New(registry.Config{
		SingleSession: cfg.Sessions.SingleSessionEnabled(),
	}, factory, logger.With("component", "registry"))
	defer sessions.DisconnectAll()

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewServer(sessions, logger.With("component", "api")).Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("presenced stopped", "sessions", sessions.Len())
	return nil
}

// stopWith runs a component's Stop under the shutdown timeout.
func stopWith(cfg *config.Config, logger *slog.Logger, name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		logger.Error("stop failed", "component", name, "error", err)
	}
}

// newLogger builds the process logger from the log section.
func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
