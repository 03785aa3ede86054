// Command ytlivechat runs a YouTube live chat bot against one channel.
// It:
//   - Loads configuration and initializes structured logging.
//   - Optionally authorises against the OAuth flow when a secrets file is
//     configured, enabling the outbound send path.
//   - Runs the bot session: stream resolution, poll loop, event processing,
//     and token auto-refresh.
//   - Exposes a minimal HTTP server with /healthz, /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/onnwee/ytlivechat/bot"
	"github.com/onnwee/ytlivechat/config"
	"github.com/onnwee/ytlivechat/events"
	"github.com/onnwee/ytlivechat/logging"
	"github.com/onnwee/ytlivechat/server"
	"github.com/onnwee/ytlivechat/telemetry"
)

const version = "1.0.0"

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	slog.Info("starting ytlivechat", slog.String("version", version))

	if err := cfg.ValidateBotReady(); err != nil {
		slog.Error("config incomplete", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("ytlivechat", version)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	b, err := bot.New(cfg.APIKey, cfg.ChannelID)
	if err != nil {
		slog.Error("bot setup failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Write path is optional: without a secrets file the bot only reads chat.
	if cfg.SecretsFile != "" {
		if err := b.UseSecrets(cfg.SecretsFile); err != nil {
			slog.Error("failed to load oauth secrets", slog.Any("err", err))
			os.Exit(1)
		}
		if err := b.Authorise(ctx, false); err != nil {
			slog.Error("authorisation failed", slog.Any("err", err))
			os.Exit(1)
		}
	}

	events.Listen(b.Events(), func(ctx context.Context, ev events.MessageCreated) error {
		slog.Info("chat message",
			slog.String("author", ev.Message.Channel.Name),
			slog.String("content", ev.Message.Content))
		return nil
	})

	// HTTP server (health/status/metrics)
	go func() {
		status := func() map[string]any {
			out := map[string]any{"platform": b.Platform(), "queue_size": b.Events().QueueSize()}
			if stream, ok := b.Stream(); ok {
				out["stream_id"] = stream.ID
			}
			return out
		}
		ready := func() bool { _, ok := b.Stream(); return ok }
		if err := server.Start(ctx, cfg.HTTPAddr, status, ready); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	if err := b.Run(ctx, cfg.StreamID); err != nil {
		slog.Error("bot exited with error", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("shutting down")
}
