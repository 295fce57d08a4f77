package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/pulse/internal/domain/event"
	"github.com/felixgeelhaar/pulse/internal/domain/ingest"
	"github.com/felixgeelhaar/pulse/internal/domain/project"
	"github.com/felixgeelhaar/pulse/internal/domain/source"
	"github.com/felixgeelhaar/pulse/internal/infrastructure/config"
	"github.com/felixgeelhaar/pulse/internal/infrastructure/datastore"
)

// Loader drives ingestion for a project: one pipeline per configured
// subsystem, each running fetch, persist raw, transform, persist common,
// transform, persist summary, then reporting its outcome to the completion
// tracker.
type Loader struct {
	store    datastore.Store
	registry *source.Registry
	tracker  *Tracker
	cfg      *config.Config
	logger   *slog.Logger
}

func NewLoader(store datastore.Store, registry *source.Registry, tracker *Tracker, cfg *config.Config, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: store, registry: registry, tracker: tracker, cfg: cfg, logger: logger}
}

// ProcessProjectData runs every configured subsystem's pipeline
// concurrently and returns when all of them have reported. Overall
// completion is observed through the event document, not through this call:
// the event already exists with every configured section pending, so
// out-of-order completions always land on a live document. One subsystem
// failing never blocks or cancels the others.
func (l *Loader) ProcessProjectData(ctx context.Context, proj *project.Project, ev *event.LoadEvent) {
	location := l.cfg.ProjectPath(proj.Name)
	endDate := projectEndDate(proj)

	var wg sync.WaitGroup
	run := func(sub ingest.Subsystem, sysCfg *project.SystemConfig) {
		if !sysCfg.Configured() {
			return
		}
		ins := ingest.NewInstructions(location, endDate, sub)
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.logger.Info("loading subsystem",
				"project", proj.Name, "subsystem", sub.String(), "source", sysCfg.Source, "since", ev.Since)

			outcome := l.loadSubsystem(ctx, sub, sysCfg, ev.Since, ins)
			if err := l.tracker.RecordOutcome(ctx, proj, ev.ID, ins.Section, outcome); err != nil {
				l.logger.Error("failed to record subsystem outcome",
					"project", proj.Name, "event", ev.ID, "section", ins.Section, "error", err)
			}
		}()
	}

	run(ingest.SubsystemDemand, proj.Demand)
	run(ingest.SubsystemDefect, proj.Defect)
	run(ingest.SubsystemEffort, proj.Effort)
	wg.Wait()
}

// loadSubsystem resolves the adapter and runs the pipeline. An unresolvable
// source name is a configuration error: it fails the subsystem immediately,
// before any network call.
func (l *Loader) loadSubsystem(ctx context.Context, sub ingest.Subsystem, sysCfg *project.SystemConfig, since string, ins ingest.Instructions) event.SystemEvent {
	adapter, err := l.registry.Resolve(sub, sysCfg.Source)
	if err != nil {
		l.logger.Debug("unknown source system", "subsystem", sub.String(), "source", sysCfg.Source)
		return event.NewSystemEvent(event.StatusFailed, fmt.Sprintf("unknown source system [%s]", sysCfg.Source))
	}
	return l.RunSubsystemLoad(ctx, adapter, sysCfg, since, ins)
}

// RunSubsystemLoad executes one subsystem's raw-common-summary pipeline and
// always produces a terminal outcome. Every failure at every stage becomes
// data: the tracker must receive something to write into the event document,
// so nothing here is allowed to escape.
func (l *Loader) RunSubsystemLoad(ctx context.Context, adapter source.Adapter, sysCfg *project.SystemConfig, since string, ins ingest.Instructions) (outcome event.SystemEvent) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("subsystem pipeline panicked", "section", ins.Section, "panic", r)
			outcome = event.NewSystemEvent(event.StatusFailed, fmt.Sprintf("%v", r))
		}
	}()

	raw, err := adapter.FetchRaw(ctx, sysCfg, since)
	if err != nil {
		l.logger.Debug("raw fetch failed", "section", ins.Section, "error", err)
		return event.NewSystemEvent(event.StatusFailed, err.Error())
	}
	l.logger.Debug("raw data fetched", "section", ins.Section, "count", len(raw))

	if len(raw) == 0 {
		return event.NewSystemEvent(event.StatusSuccess, "no records processed")
	}

	if err := l.storeRaw(ctx, ins, raw); err != nil {
		l.logger.Debug("raw store failed", "section", ins.Section, "error", err)
		return event.NewSystemEvent(event.StatusFailed, err.Error())
	}

	common := adapter.TransformRawToCommon(raw, sysCfg)
	if err := l.store.WipeAndStore(ctx, ins.Location, ins.CommonCollection, common...); err != nil {
		l.logger.Debug("common store failed", "section", ins.Section, "error", err)
		return event.NewSystemEvent(event.StatusFailed, err.Error())
	}
	l.logger.Debug("common data stored", "section", ins.Section, "count", len(common))

	summary := adapter.TransformCommonToSummary(common, ins)
	if err := l.store.WipeAndStore(ctx, ins.Location, ins.SummaryCollection, summary...); err != nil {
		l.logger.Debug("summary store failed", "section", ins.Section, "error", err)
		return event.NewSystemEvent(event.StatusFailed, err.Error())
	}
	l.logger.Debug("summary data stored", "section", ins.Section, "count", len(summary))

	return event.NewSystemEvent(event.StatusSuccess, fmt.Sprintf("%d records processed", len(raw)))
}

func (l *Loader) storeRaw(ctx context.Context, ins ingest.Instructions, raw []source.RawDoc) error {
	docs := make([]any, len(raw))
	for i, doc := range raw {
		docs[i] = doc
	}
	if ins.Mode == ingest.StorageInsert {
		_, err := l.store.Insert(ctx, ins.Location, ins.RawCollection, docs...)
		return err
	}
	return l.store.Upsert(ctx, ins.Location, ins.RawCollection, docs...)
}

// projectEndDate picks the summarization bound: the projection's end date
// when planned, the project's own end date otherwise, today as a fallback.
func projectEndDate(proj *project.Project) string {
	if proj.Projection != nil && proj.Projection.EndDate != "" {
		return proj.Projection.EndDate
	}
	if proj.EndDate != "" {
		return proj.EndDate
	}
	return ingest.DayStamp(time.Now())
}
