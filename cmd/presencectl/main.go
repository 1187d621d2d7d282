// presencectl holds one gateway session with a chosen presence and logs
// every state change until interrupted.
//
// Usage:
//
//	GATEWAY_TOKEN=... presencectl --status dnd --activity "chess" --activity-type 0
//
// With --server the session is opened on a running presenced instead of
// locally, and its status is polled.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/rickgao/presence-relay/internal/config"
	"github.com/rickgao/presence-relay/internal/connection"
	"github.com/rickgao/presence-relay/internal/gateway"
	"github.com/rickgao/presence-relay/internal/relayclient"
	"github.com/rickgao/presence-relay/internal/version"
)

type options struct {
	configPath   string
	token        string
	status       string
	activity     string
	activityType int
	details      string
	state        string
	server       string
	sessionID    string
	pollInterval time.Duration
	verbose      bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	var showVersion bool

	flagSet := pflag.NewFlagSet("presencectl", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to config file")
	flagSet.StringVar(&opts.token, "token", "", "gateway token (default $GATEWAY_TOKEN)")
	flagSet.StringVar(&opts.status, "status", "online", "presence status: online, idle, dnd, offline, invisible")
	flagSet.StringVar(&opts.activity, "activity", "", "activity name (none when empty)")
	flagSet.IntVar(&opts.activityType, "activity-type", 0, "activity type: 0 playing, 1 streaming, 2 listening, 3 watching, 5 competing")
	flagSet.StringVar(&opts.details, "details", "", "activity details")
	flagSet.StringVar(&opts.state, "state", "", "activity state")
	flagSet.StringVar(&opts.server, "server", "", "presenced base URL; drive the session through it")
	flagSet.StringVar(&opts.sessionID, "session-id", "", "session id to use with --server")
	flagSet.DurationVar(&opts.pollInterval, "poll-interval", 2*time.Second, "status poll interval with --server")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Println("presencectl", version.String())
		return nil
	}

	if opts.token == "" {
		opts.token = os.Getenv("GATEWAY_TOKEN")
	}
	if opts.token == "" {
		return errors.New("a token is required (--token or GATEWAY_TOKEN)")
	}

	presence, err := opts.presence()
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.server != "" {
		return runRemote(ctx, opts, presence, logger)
	}
	return runLocal(ctx, opts, presence, logger)
}

// presence builds the requested presence from the flags.
func (o options) presence() (gateway.Presence, error) {
	status, err := gateway.ParsePresenceStatus(o.status)
	if err != nil {
		return gateway.Presence{}, err
	}

	p := gateway.Presence{Status: status}
	if o.activity != "" {
		a := &gateway.Activity{
			Name:    o.activity,
			Type:    gateway.ActivityType(o.activityType),
			Details: o.details,
			State:   o.state,
		}
		if err := a.Validate(); err != nil {
			return gateway.Presence{}, err
		}
		p.Activity = a
	}
	return p, nil
}

// runLocal drives one session in this process.
func runLocal(ctx context.Context, opts options, presence gateway.Presence, logger *slog.Logger) error {
	cfg, err := config.LoadAndValidate(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dialer := connection.NewDialer(cfg.Gateway.ClientConfig(), logger)
	session := gateway.NewSession(cfg.Gateway.SessionConfig(), dialer, logger,
		gateway.WithObserver(gateway.ObserverFunc(func(ev gateway.Event) {
			logEvent(logger, ev)
		})),
	)

	// Stored now, replayed after READY.
	session.UpdatePresence(presence)
	session.Connect(opts.token)

	logger.Info("session started", "gateway", cfg.Gateway.URL, "status", presence.Status)

	<-ctx.Done()
	session.Disconnect()

	snap := session.GetStatus()
	logger.Info("session stopped", "state", snap.State, "dormant_reason", snap.DormantReason)
	return nil
}

// runRemote drives one session on a running relay.
func runRemote(ctx context.Context, opts options, presence gateway.Presence, logger *slog.Logger) error {
	client := relayclient.NewClient(opts.server, relayclient.WithLogger(logger))

	health, err := client.Health(ctx)
	if err != nil {
		return fmt.Errorf("relay health: %w", err)
	}
	logger.Info("relay reachable", "version", health.Version, "sessions", health.Sessions)

	id, err := client.Connect(ctx, opts.token, opts.sessionID)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	logger.Info("session started", "session", id)

	if presence.Activity != nil {
		r, err := client.SetActivity(ctx, id, presence.Status, presence.Activity)
		if err != nil {
			return fmt.Errorf("set activity: %w", err)
		}
		logger.Info(r.Message, "applied", r.Applied)
	} else {
		r, err := client.SetStatus(ctx, id, presence.Status)
		if err != nil {
			return fmt.Errorf("set status: %w", err)
		}
		logger.Info(r.Message, "applied", r.Applied)
	}

	ticker := time.NewTicker(opts.pollInterval)
	defer ticker.Stop()

	var last gateway.State = -1
	for {
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := client.Disconnect(stopCtx, id)
			cancel()
			if err != nil {
				return fmt.Errorf("disconnect: %w", err)
			}
			logger.Info("session stopped", "session", id)
			return nil

		case <-ticker.C:
			st, err := client.Status(ctx, id)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("status poll failed", "error", err)
				}
				continue
			}
			if st.Message != "" {
				return fmt.Errorf("session %s: %s", id, st.Message)
			}
			if st.State != last {
				last = st.State
				logger.Info("session state",
					"state", st.State,
					"connected", st.Connected,
					"attempts", st.ReconnectAttempts,
					"dormant_reason", st.DormantReason,
				)
			}
		}
	}
}

func logEvent(logger *slog.Logger, ev gateway.Event) {
	switch ev.Kind {
	case gateway.KindStateChanged:
		logger.Info("state changed", "transition", ev.Detail)
	case gateway.KindTransportClosed:
		logger.Warn("transport closed", "code", ev.Code, "error", ev.Detail)
	case gateway.KindReconnectScheduled:
		logger.Info("reconnect scheduled", "attempt", ev.Attempt, "delay", ev.Delay)
	case gateway.KindReady:
		logger.Info("ready", "user", ev.Detail)
	case gateway.KindPresenceSent:
		logger.Info("presence sent", "status", ev.Detail)
	case gateway.KindInvalidSession:
		logger.Warn("session invalidated")
	}
}
