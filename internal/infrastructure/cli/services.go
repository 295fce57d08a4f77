package cli

import (
	"log/slog"
	"os"
	"strings"

	"github.com/felixgeelhaar/pulse/internal/application"
	"github.com/felixgeelhaar/pulse/internal/domain/ingest"
	"github.com/felixgeelhaar/pulse/internal/domain/source"
	"github.com/felixgeelhaar/pulse/internal/infrastructure/config"
	"github.com/felixgeelhaar/pulse/internal/infrastructure/datastore"
	"github.com/felixgeelhaar/pulse/internal/infrastructure/sources"
	"github.com/felixgeelhaar/pulse/internal/infrastructure/sources/harvest"
	"github.com/felixgeelhaar/pulse/internal/infrastructure/sources/jira"
	"github.com/felixgeelhaar/pulse/internal/infrastructure/sources/trello"
)

// services bundles everything a command needs, wired once per invocation.
type services struct {
	cfg     *config.Config
	logger  *slog.Logger
	manager *datastore.Manager
	store   datastore.Store
	events  *application.Events
}

func (s *services) Close() error {
	return s.manager.Close()
}

func loadServices() (*services, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.LogLevel)

	manager := datastore.NewManager(cfg.DataDir)
	store := datastore.NewSQLStore(manager, logger)

	client := sources.NewClient()
	registry := source.NewRegistry()
	registry.Register(ingest.SubsystemDemand, source.KindJira, jira.NewDemandAdapter(client, logger))
	registry.Register(ingest.SubsystemDemand, source.KindTrello, trello.NewAdapter(client, logger))
	registry.Register(ingest.SubsystemDefect, source.KindJira, jira.NewDefectAdapter(client, logger))
	registry.Register(ingest.SubsystemEffort, source.KindHarvest, harvest.NewAdapter(client, logger))

	indicators := application.NewIndicators(store, cfg, logger)
	tracker := application.NewTracker(store, indicators, cfg, logger)
	loader := application.NewLoader(store, registry, tracker, cfg, logger)
	events := application.NewEvents(store, loader, cfg, logger)

	return &services{
		cfg:     cfg,
		logger:  logger,
		manager: manager,
		store:   store,
		events:  events,
	}, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}
