// Package app assembles the Cinematic assistant: storage, the Matrix
// gateway, the classifier, the disambiguation engine, and the execution
// pipeline.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bdobrica/Cinematic/internal/cinematic/catalog"
	"github.com/bdobrica/Cinematic/internal/cinematic/config"
	"github.com/bdobrica/Cinematic/internal/cinematic/enrich"
	"github.com/bdobrica/Cinematic/internal/cinematic/executor"
	"github.com/bdobrica/Cinematic/internal/cinematic/matrix"
	"github.com/bdobrica/Cinematic/internal/cinematic/nlp"
	"github.com/bdobrica/Cinematic/internal/cinematic/pipeline"
	"github.com/bdobrica/Cinematic/internal/cinematic/resolve"
	"github.com/bdobrica/Cinematic/internal/cinematic/session"
	"github.com/bdobrica/Cinematic/internal/cinematic/store"
)

// App is the assembled assistant.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	gateway  *matrix.Gateway
	pipeline *pipeline.Pipeline
}

// New wires the application from configuration. Fails fast on anything that
// would leave the assistant half-working.
func New(cfg *config.Config) (*App, error) {
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("opening database", "path", cfg.DatabasePath)
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	logger.Info("connecting to Matrix", "homeserver", cfg.Matrix.Homeserver)
	gateway, err := matrix.New(matrix.Config{
		Homeserver:  cfg.Matrix.Homeserver,
		UserID:      cfg.Matrix.UserID,
		AccessToken: cfg.Matrix.AccessToken,
		Rooms:       cfg.Matrix.Rooms,
	}, db, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize Matrix gateway: %w", err)
	}

	provider := nlp.New(nlp.Config{
		APIKey:  cfg.NLP.APIKey,
		BaseURL: cfg.NLP.Endpoint,
		Model:   cfg.NLP.Model,
	})
	classifier := nlp.NewClassifier(provider, cfg.Pipeline.ClarificationFloor)

	cat := catalog.New(
		catalog.Options{
			URL:              cfg.Radarr.URL,
			APIKey:           cfg.Radarr.APIKey,
			QualityProfileID: cfg.Radarr.QualityProfileID,
			RootFolder:       cfg.Radarr.RootFolder,
		},
		catalog.Options{
			URL:              cfg.Sonarr.URL,
			APIKey:           cfg.Sonarr.APIKey,
			QualityProfileID: cfg.Sonarr.QualityProfileID,
			RootFolder:       cfg.Sonarr.RootFolder,
		},
	)

	var enricher enrich.Enricher
	if cfg.TMDB.APIKey != "" {
		enricher = enrich.NewTMDBClient(cfg.TMDB.APIKey)
	} else {
		logger.Warn("no TMDB API key, candidate discovery limited to the library")
	}

	engine := resolve.NewEngine(cat, enricher, resolve.Config{
		HighConfidence:     cfg.Pipeline.HighConfidenceThreshold,
		ClarificationFloor: cfg.Pipeline.ClarificationFloor,
		MinMargin:          cfg.Pipeline.MinMargin,
		MaxCandidates:      cfg.Pipeline.MaxCandidates,
	}, logger)

	runner := executor.New(cat, executor.Config{
		MaxRetries:  cfg.Pipeline.MaxRetries,
		DedupWindow: cfg.Pipeline.DedupWindow.Std(),
	}, logger)

	app := &App{cfg: cfg, logger: logger, store: db, gateway: gateway}
	app.pipeline = pipeline.New(pipeline.Options{
		Classifier: classifier,
		Resolver:   engine,
		Runner:     runner,
		Sessions:   session.NewStore(cfg.Pipeline.SessionTimeout.Std()),
		Limiter:    nlp.NewRateLimiter(cfg.NLP.RateLimit, time.Minute),
		Audit:      db,
		Respond:    app.respond,
		Logger:     logger,
	})
	return app, nil
}

// Run starts the gateway and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx := context.Background()

	if err := a.gateway.Start(ctx, func(roomID, sender, body string) {
		a.pipeline.HandleMessage(pipeline.Message{RoomID: roomID, Sender: sender, Body: body})
	}); err != nil {
		return fmt.Errorf("start Matrix gateway: %w", err)
	}
	a.logger.Info("cinematic is up", "rooms", len(a.cfg.Matrix.Rooms))

	for _, roomID := range a.gateway.Rooms() {
		if err := a.gateway.SendNotice(ctx, roomID, "Cinematic is online. Ask me to search, add, remove, or check on a movie or show."); err != nil {
			a.logger.Warn("startup notice failed", "room", roomID, "error", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	a.logger.Info("shutting down", "signal", sig.String())
	return nil
}

// Stop drains in-flight messages and releases resources.
func (a *App) Stop() {
	if a.gateway != nil {
		a.gateway.Stop()
	}
	if a.pipeline != nil {
		a.pipeline.Drain()
	}
	if a.store != nil {
		a.store.Close()
	}
}

// respond delivers a pipeline reply, flashing the typing indicator so the
// room sees the assistant is active.
func (a *App) respond(ctx context.Context, roomID, text string) error {
	_ = a.gateway.SetTyping(ctx, roomID, false, 0)
	return a.gateway.SendText(ctx, roomID, text)
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
