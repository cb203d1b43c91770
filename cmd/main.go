package main

import (
	"context"
	"crypto/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Goosie/NostrQuizAndVote/internal/adapters/http/api"
	"github.com/Goosie/NostrQuizAndVote/internal/adapters/registry"
	"github.com/Goosie/NostrQuizAndVote/internal/adapters/relay"
	"github.com/Goosie/NostrQuizAndVote/internal/app"
	"github.com/Goosie/NostrQuizAndVote/internal/config"
	"github.com/Goosie/NostrQuizAndVote/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second

	ephemeralKeyBytes = 32
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	signer, err := buildSigner(cfg)
	if err != nil {
		log.Error(ctx, "building signer", logger.Error(err))
		return
	}

	bus := relay.NewBus(cfg.Relays, signer,
		relay.WithPublishTimeout(time.Duration(cfg.PublishTimeoutMS)*time.Millisecond),
		relay.WithDedupeSize(cfg.DedupeSize),
		relay.WithLogger(log.Named("relay")))
	bus.Start(ctx)
	defer bus.Close()

	store := registry.NewMemoryStore()

	svc := app.New(bus, store,
		app.WithLogger(log.Named("app")),
		app.WithQueueSize(cfg.SessionQueueSize),
		app.WithBasePoints(cfg.BasePoints),
		app.WithTimeBonus(cfg.TimeBonus),
		app.WithMaxTimeBonus(cfg.MaxTimeBonus),
		app.WithQuestionDelay(time.Duration(cfg.QuestionDelayMS)*time.Millisecond),
		app.WithDefaultTimePerQuestion(cfg.DefaultTimePerQuestion))
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "starting service", logger.Error(err))
		return
	}
	defer svc.Stop()

	log.Info(ctx, "host identity ready",
		logger.String("pubkey", bus.PubKey()),
		logger.Int("relays", len(cfg.Relays)))

	// HTTP mux and routes.
	mux := http.NewServeMux()
	api.NewServer(svc).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

func buildSigner(cfg *config.Config) (relay.Signer, error) {
	if cfg.SecretKey != "" {
		return relay.NewDigestSigner([]byte(cfg.SecretKey)), nil
	}

	secret := make([]byte, ephemeralKeyBytes)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return relay.NewDigestSigner(secret), nil
}
