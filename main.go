// Command study-bridge watches one voice channel and mirrors its study
// sessions into a Slack channel.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to the configured presence source (Discord voice, or Twitch chat
//     membership) and feeds transitions through a single ordered worker.
//   - Starts, updates and finishes sessions in the remote session store while
//     keeping one Slack status message per session current.
//   - Optionally archives finished sessions in Postgres and caches member names
//     in Redis.
//   - Exposes a minimal HTTP server with /, /health, /readyz, /status, /history
//     and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/onnwee/study-bridge/chat"
	"github.com/onnwee/study-bridge/config"
	"github.com/onnwee/study-bridge/db"
	"github.com/onnwee/study-bridge/discord"
	"github.com/onnwee/study-bridge/history"
	"github.com/onnwee/study-bridge/names"
	"github.com/onnwee/study-bridge/notify"
	"github.com/onnwee/study-bridge/presence"
	"github.com/onnwee/study-bridge/server"
	"github.com/onnwee/study-bridge/sessions"
	"github.com/onnwee/study-bridge/telemetry"
	"github.com/onnwee/study-bridge/twitchapi"
)

// source is a running presence event source.
type source func(ctx context.Context, sink *presence.Dispatcher) error

func main() {
	// Config (.env is loaded here when present)
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("err", err))
		os.Exit(1)
	}
	loc, err := cfg.Location()
	if err != nil {
		slog.Error("invalid configuration", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("study-bridge", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, loc); err != nil {
		slog.Error("study-bridge exited with error", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("shutting down")
}

func run(ctx context.Context, cfg *config.Config, loc *time.Location) error {
	var checks []server.Check
	memory := names.NewMemory()
	directory := names.Chain{memory}

	// Redis name cache (optional)
	if cfg.RedisAddr != "" {
		rn, err := names.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			slog.Warn("redis name cache unavailable; continuing without it", slog.Any("err", err), slog.String("component", "names"))
		} else {
			defer func() {
				if err := rn.Close(); err != nil {
					slog.Warn("failed to close redis", slog.Any("err", err))
				}
			}()
			directory = append(directory, rn)
			checks = append(checks, server.Check{Name: "redis", Fn: rn.Ping})
		}
	}

	// History archive (optional)
	var archive presence.Archive
	var historyReader server.HistoryReader
	if cfg.DBDsn != "" {
		database, err := db.Connect(ctx, cfg.DBDsn)
		if err != nil {
			return err
		}
		defer func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}()
		slog.Info("running database migrations", slog.String("component", "db_migrate"))
		if err := db.Prepare(database, func() error { return db.Migrate(ctx, database) }); err != nil {
			return err
		}
		store := history.NewStore(database)
		archive, historyReader = store, store
		checks = append(checks, server.Check{Name: "database", Fn: store.Ping})
	}

	// Presence source and its platform name lookup
	var src source
	watched := cfg.WatchedChannelID()
	switch cfg.EventSource {
	case config.SourceTwitch:
		cs, err := chat.New(cfg.TwitchChannel, cfg.TwitchBotUsername, cfg.TwitchOAuthToken)
		if err != nil {
			return err
		}
		watched = cs.ChannelID()
		if cfg.HelixEnabled() {
			ts := &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret}
			directory = append(directory, twitchapi.NewNameResolver(twitchapi.NewHelixClient(cfg.TwitchClientID, ts)))
		} else {
			slog.Info("twitch client credentials not set; members shown by login", slog.String("component", "chat"))
		}
		src = func(ctx context.Context, d *presence.Dispatcher) error { return cs.Run(ctx, d) }
	default:
		ds, err := discord.New(cfg.DiscordBotToken)
		if err != nil {
			return err
		}
		directory = append(directory, ds.Resolver())
		src = func(ctx context.Context, d *presence.Dispatcher) error { return ds.Run(ctx, d) }
	}

	ctrl := presence.NewController(presence.Config{
		WatchedChannelID: watched,
		Store:            sessions.New(cfg.SessionAPIURL, cfg.SessionAPIKey, cfg.SessionAPITimeout),
		Messenger:        notify.NewSlackMessenger(cfg.SlackBotToken, cfg.SlackLearningChanID, cfg.SlackAPITimeout),
		Names:            directory,
		Archive:          archive,
		Location:         loc,
	})
	dispatcher := presence.NewDispatcher(ctrl, cfg.EventQueueSize)

	mux := server.NewMux(server.Deps{
		Source:  cfg.EventSource,
		Stats:   ctrl,
		Queue:   dispatcher,
		History: historyReader,
		Ready:   checks,
	})

	slog.Info("starting study-bridge",
		slog.String("source", cfg.EventSource),
		slog.String("watched_channel", watched),
		slog.String("timezone", loc.String()),
		slog.Bool("history", archive != nil),
		slog.Bool("tracing", telemetry.TracingEnabled()),
		slog.Int("name_resolvers", len(directory)))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dispatcher.Run(gctx)
		return nil
	})
	g.Go(func() error { return src(gctx, dispatcher) })
	g.Go(func() error { return server.Start(gctx, net.JoinHostPort("", cfg.Port), mux) })
	return g.Wait()
}

// setupLogging configures the default logger (level + format). Defaults: level=info, format=text.
func setupLogging(level, format string) {
	lvl := slog.LevelInfo
	unknown := false
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
	default:
		unknown = true
	}
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		format = "text"
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	if unknown {
		slog.Warn("unknown LOG_LEVEL, using info", slog.String("value", level))
	}
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", strings.ToLower(format)))
}
