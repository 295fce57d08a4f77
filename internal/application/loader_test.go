package application_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/felixgeelhaar/pulse/internal/application"
	"github.com/felixgeelhaar/pulse/internal/domain/event"
	"github.com/felixgeelhaar/pulse/internal/domain/ingest"
	"github.com/felixgeelhaar/pulse/internal/domain/project"
	"github.com/felixgeelhaar/pulse/internal/domain/source"
	"github.com/felixgeelhaar/pulse/internal/infrastructure/config"
	"github.com/felixgeelhaar/pulse/internal/infrastructure/datastore"
)

// fakeAdapter scripts the three pipeline stages for tests.
type fakeAdapter struct {
	raw      []source.RawDoc
	fetchErr error
	panicOn  string
}

func (a *fakeAdapter) FetchRaw(context.Context, *project.SystemConfig, string) ([]source.RawDoc, error) {
	if a.panicOn == "fetch" {
		panic("fetch exploded")
	}
	return a.raw, a.fetchErr
}

func (a *fakeAdapter) TransformRawToCommon(raw []source.RawDoc, _ *project.SystemConfig) []source.CommonDoc {
	if a.panicOn == "common" {
		panic("transform exploded")
	}
	common := make([]source.CommonDoc, 0, len(raw))
	for _, doc := range raw {
		common = append(common, ingest.UnifiedRecord{ID: doc["id"].(string)})
	}
	return common
}

func (a *fakeAdapter) TransformCommonToSummary(common []source.CommonDoc, _ ingest.Instructions) []source.SummaryDoc {
	return []source.SummaryDoc{ingest.DailySummary{ProjectDate: "2016-01-01", Status: map[string]int{"Backlog": len(common)}}}
}

type harness struct {
	cfg     *config.Config
	store   datastore.Store
	tracker *application.Tracker
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()

	manager := datastore.NewManager(cfg.DataDir)
	t.Cleanup(func() { manager.Close() })
	store := datastore.NewSQLStore(manager, nil)

	indicators := application.NewIndicators(store, cfg, nil)
	tracker := application.NewTracker(store, indicators, cfg, nil)
	return &harness{cfg: cfg, store: store, tracker: tracker}
}

func newLoader(h *harness, registry *source.Registry) *application.Loader {
	if registry == nil {
		registry = source.NewRegistry()
	}
	return application.NewLoader(h.store, registry, h.tracker, h.cfg, nil)
}

func demandConfig(sourceName string) *project.SystemConfig {
	return &project.SystemConfig{Source: sourceName, URL: "http://source.local", Project: "DEMO"}
}

func TestRunSubsystemLoad(t *testing.T) {
	ins := ingest.NewInstructions("pulse-demo", "2016-06-01", ingest.SubsystemDemand)

	t.Run("no records is a success", func(t *testing.T) {
		h := newHarness(t)
		loader := newLoader(h, nil)

		outcome := loader.RunSubsystemLoad(context.Background(), &fakeAdapter{}, demandConfig("JIRA"), "2000-01-01", ins)
		if outcome.Status != event.StatusSuccess {
			t.Errorf("expected SUCCESS, got %s: %s", outcome.Status, outcome.Message)
		}
		if outcome.Message != "no records processed" {
			t.Errorf("unexpected message %q", outcome.Message)
		}
		if outcome.Completion == nil {
			t.Error("outcome must carry a completion stamp")
		}
	})

	t.Run("fetch failure becomes a failed outcome", func(t *testing.T) {
		h := newHarness(t)
		loader := newLoader(h, nil)

		adapter := &fakeAdapter{fetchErr: errors.New("connection refused")}
		outcome := loader.RunSubsystemLoad(context.Background(), adapter, demandConfig("JIRA"), "2000-01-01", ins)
		if outcome.Status != event.StatusFailed {
			t.Errorf("expected FAILED, got %s", outcome.Status)
		}
		if !strings.Contains(outcome.Message, "connection refused") {
			t.Errorf("expected the error in the message, got %q", outcome.Message)
		}
	})

	t.Run("panic becomes a failed outcome", func(t *testing.T) {
		h := newHarness(t)
		loader := newLoader(h, nil)

		adapter := &fakeAdapter{raw: []source.RawDoc{{"id": "1"}}, panicOn: "common"}
		outcome := loader.RunSubsystemLoad(context.Background(), adapter, demandConfig("JIRA"), "2000-01-01", ins)
		if outcome.Status != event.StatusFailed {
			t.Errorf("expected FAILED, got %s", outcome.Status)
		}
		if !strings.Contains(outcome.Message, "transform exploded") {
			t.Errorf("expected the panic in the message, got %q", outcome.Message)
		}
	})

	t.Run("records flow through all three stages", func(t *testing.T) {
		h := newHarness(t)
		loader := newLoader(h, nil)
		ctx := context.Background()

		adapter := &fakeAdapter{raw: []source.RawDoc{{"id": "1"}, {"id": "2"}, {"id": "3"}}}
		outcome := loader.RunSubsystemLoad(ctx, adapter, demandConfig("JIRA"), "2000-01-01", ins)
		if outcome.Status != event.StatusSuccess {
			t.Fatalf("expected SUCCESS, got %s: %s", outcome.Status, outcome.Message)
		}
		if outcome.Message != "3 records processed" {
			t.Errorf("unexpected message %q", outcome.Message)
		}

		var raw []map[string]any
		if err := h.store.GetAll(ctx, ins.Location, ins.RawCollection, &raw); err != nil {
			t.Fatalf("GetAll raw: %v", err)
		}
		if len(raw) != 3 {
			t.Errorf("expected 3 raw documents, got %d", len(raw))
		}

		var common []ingest.UnifiedRecord
		if err := h.store.GetAll(ctx, ins.Location, ins.CommonCollection, &common); err != nil {
			t.Fatalf("GetAll common: %v", err)
		}
		if len(common) != 3 {
			t.Errorf("expected 3 common records, got %d", len(common))
		}

		var summaries []ingest.DailySummary
		if err := h.store.GetAll(ctx, ins.Location, ins.SummaryCollection, &summaries); err != nil {
			t.Fatalf("GetAll summaries: %v", err)
		}
		if len(summaries) != 1 || summaries[0].Status["Backlog"] != 3 {
			t.Errorf("unexpected summaries %v", summaries)
		}
	})

	t.Run("reload replaces derived collections", func(t *testing.T) {
		h := newHarness(t)
		loader := newLoader(h, nil)
		ctx := context.Background()

		first := &fakeAdapter{raw: []source.RawDoc{{"id": "1"}, {"id": "2"}}}
		loader.RunSubsystemLoad(ctx, first, demandConfig("JIRA"), "2000-01-01", ins)
		second := &fakeAdapter{raw: []source.RawDoc{{"id": "2"}}}
		loader.RunSubsystemLoad(ctx, second, demandConfig("JIRA"), "2016-01-01", ins)

		// Raw is upserted in place, derived stages are rebuilt from scratch.
		var raw []map[string]any
		if err := h.store.GetAll(ctx, ins.Location, ins.RawCollection, &raw); err != nil {
			t.Fatalf("GetAll raw: %v", err)
		}
		if len(raw) != 2 {
			t.Errorf("expected raw records to accumulate, got %d", len(raw))
		}
		var common []ingest.UnifiedRecord
		if err := h.store.GetAll(ctx, ins.Location, ins.CommonCollection, &common); err != nil {
			t.Fatalf("GetAll common: %v", err)
		}
		if len(common) != 1 {
			t.Errorf("expected common rebuilt from the latest load, got %d", len(common))
		}
	})
}

func TestProcessProjectDataUnknownSource(t *testing.T) {
	h := newHarness(t)
	loader := newLoader(h, nil) // empty registry: every source is unknown
	ctx := context.Background()

	proj := &project.Project{Name: "demo", Demand: demandConfig("BUGZILLA")}
	ev := event.New(event.TypeLoad, ingest.DefaultStartDate)
	ev.ConfigureSections(true, false, false)
	location := h.cfg.ProjectPath(proj.Name)
	if _, err := h.store.Insert(ctx, location, event.Collection, ev); err != nil {
		t.Fatalf("Insert event: %v", err)
	}

	loader.ProcessProjectData(ctx, proj, ev)

	var final event.LoadEvent
	if err := h.store.GetByID(ctx, location, event.Collection, ev.ID, &final); err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Status != event.StatusFailed {
		t.Errorf("expected FAILED event, got %s", final.Status)
	}
	if final.EndTime == nil {
		t.Error("event should be finalized")
	}
	if final.Demand == nil || !strings.Contains(final.Demand.Message, "unknown source system") {
		t.Errorf("expected an unknown-source outcome, got %+v", final.Demand)
	}
}
