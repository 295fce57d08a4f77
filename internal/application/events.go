package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/pulse/internal/domain/event"
	"github.com/felixgeelhaar/pulse/internal/domain/ingest"
	"github.com/felixgeelhaar/pulse/internal/domain/project"
	"github.com/felixgeelhaar/pulse/internal/infrastructure/config"
	"github.com/felixgeelhaar/pulse/internal/infrastructure/datastore"
)

var (
	// ErrActiveEvent rejects a new event while an earlier one is still
	// running and no override was requested.
	ErrActiveEvent = errors.New("an active load event already exists")
	// ErrInvalidEventType rejects event types other than LOAD and UPDATE.
	ErrInvalidEventType = errors.New("event type must be LOAD or UPDATE")
	// ErrNotConfigured reports a project with no source system to load from.
	ErrNotConfigured = errors.New("no demand, defect, or effort system configured")
	// ErrNotFound is the datastore's lookup miss, re-exported so transport
	// code does not import the datastore directly.
	ErrNotFound = datastore.ErrNotFound
)

// Events creates and reads load events. Creation is the entry point of the
// whole pipeline: it admits or rejects the run, stamps the watermark, and
// hands the event to the loader in the background.
type Events struct {
	store  datastore.Store
	loader *Loader
	cfg    *config.Config
	logger *slog.Logger
}

func NewEvents(store datastore.Store, loader *Loader, cfg *config.Config, logger *slog.Logger) *Events {
	if logger == nil {
		logger = slog.Default()
	}
	return &Events{store: store, loader: loader, cfg: cfg, logger: logger}
}

// Create admits a new ingestion run for a project. A LOAD pulls everything
// from the default watermark; an UPDATE resumes from the previous event's
// end time. Only one event may be active per project: a second request is
// rejected unless override is set, which force-closes the running event
// first. The pipeline itself runs in the background; the returned event is
// the pending document callers poll for completion.
func (s *Events) Create(ctx context.Context, projectName, eventType string, override bool) (*event.LoadEvent, error) {
	kind := event.Type(strings.ToUpper(eventType))
	if kind != event.TypeLoad && kind != event.TypeUpdate {
		return nil, fmt.Errorf("%w, got %q", ErrInvalidEventType, eventType)
	}

	proj, err := s.Project(ctx, projectName)
	if err != nil {
		return nil, err
	}
	if err := proj.Validate(); err != nil {
		return nil, fmt.Errorf("project %s: %w", projectName, err)
	}

	location := s.cfg.ProjectPath(projectName)
	recent, err := s.MostRecent(ctx, projectName)
	if err != nil {
		return nil, err
	}

	if recent != nil && recent.IsActive() {
		if !override {
			return nil, fmt.Errorf("%w: %s", ErrActiveEvent, recent.ID)
		}
		now := time.Now().UTC()
		recent.Status = event.StatusFailed
		recent.Note = event.ForcedCloseNote
		recent.EndTime = &now
		if err := s.store.Upsert(ctx, location, event.Collection, recent); err != nil {
			return nil, fmt.Errorf("force close event %s: %w", recent.ID, err)
		}
		s.logger.Warn("forced event complete", "project", projectName, "event", recent.ID)
	}

	ev := event.New(kind, ingest.DefaultStartDate)
	if kind == event.TypeUpdate && recent != nil && recent.EndTime != nil {
		ev.Since = ingest.DayStamp(*recent.EndTime)
	}
	ev.ConfigureSections(proj.Demand.Configured(), proj.Defect.Configured(), proj.Effort.Configured())

	if _, err := s.store.Insert(ctx, location, event.Collection, ev); err != nil {
		return nil, fmt.Errorf("create event for %s: %w", projectName, err)
	}

	if ev.Status != event.StatusPending {
		// The event is stored as a closed failure; nothing will ever load.
		return ev, fmt.Errorf("%w for project %s", ErrNotConfigured, projectName)
	}

	s.logger.Info("load event created",
		"project", projectName, "event", ev.ID, "type", ev.Type, "since", ev.Since)

	// The request's context ends with the response; the pipeline must not.
	go s.loader.ProcessProjectData(context.WithoutCancel(ctx), proj, ev)

	return ev, nil
}

// List returns every load event for a project, oldest first.
func (s *Events) List(ctx context.Context, projectName string) ([]event.LoadEvent, error) {
	var events []event.LoadEvent
	location := s.cfg.ProjectPath(projectName)
	if err := s.store.GetAll(ctx, location, event.Collection, &events); err != nil {
		return nil, err
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].StartTime.Before(events[j].StartTime)
	})
	return events, nil
}

// Get looks up one event by id.
func (s *Events) Get(ctx context.Context, projectName, eventID string) (*event.LoadEvent, error) {
	var ev event.LoadEvent
	location := s.cfg.ProjectPath(projectName)
	if err := s.store.GetByID(ctx, location, event.Collection, eventID, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// MostRecent returns the newest event by start time, or nil when the project
// has never run.
func (s *Events) MostRecent(ctx context.Context, projectName string) (*event.LoadEvent, error) {
	events, err := s.List(ctx, projectName)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[len(events)-1], nil
}

// Project loads and returns a project's configuration from the core
// database.
func (s *Events) Project(ctx context.Context, projectName string) (*project.Project, error) {
	var proj project.Project
	if err := s.store.GetByName(ctx, s.cfg.CorePath(), project.Collection, projectName, &proj); err != nil {
		return nil, err
	}
	return &proj, nil
}
