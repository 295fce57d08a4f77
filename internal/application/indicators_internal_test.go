package application

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/pulse/internal/domain/ingest"
	"github.com/felixgeelhaar/pulse/internal/domain/project"
	"github.com/felixgeelhaar/pulse/internal/infrastructure/config"
	"github.com/felixgeelhaar/pulse/internal/infrastructure/datastore"
)

func newIndicatorsAt(t *testing.T, now time.Time) (*Indicators, datastore.Store, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	manager := datastore.NewManager(cfg.DataDir)
	t.Cleanup(func() { manager.Close() })
	store := datastore.NewSQLStore(manager, nil)

	indicators := NewIndicators(store, cfg, nil)
	indicators.now = func() time.Time { return now }
	return indicators, store, cfg
}

func storeSummaries(t *testing.T, store datastore.Store, location string, summaries ...ingest.DailySummary) {
	t.Helper()
	docs := make([]any, len(summaries))
	for i, s := range summaries {
		docs[i] = s
	}
	if err := store.WipeAndStore(context.Background(), location, ingest.SubsystemDemand.SummaryCollection(), docs...); err != nil {
		t.Fatalf("store summaries: %v", err)
	}
}

// A one-week ramp-up at 1 story/day, a two-week middle at 2 stories/day, a
// one-week ramp-down at 1 story/day.
func testProjection() *project.Projection {
	return &project.Projection{
		BacklogSize:     42,
		IterationLength: 1,
		StartIterations: 1,
		StartVelocity:   7,
		TargetVelocity:  14,
		EndIterations:   1,
		EndVelocity:     7,
		StartDate:       "2016-01-01",
	}
}

func TestDemandVsProjected(t *testing.T) {
	tests := []struct {
		name string
		day  int
		done int
		rag  string
	}{
		{"behind target is red", 5, 3, project.RagRed},
		{"on target is amber", 5, 5, project.RagAmber},
		{"ahead of target is green", 5, 9, project.RagGreen},
		{"middle phase target", 10, 13, project.RagAmber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, _ := time.Parse(ingest.DayFormat, "2016-01-01")
			ind, store, _ := newIndicatorsAt(t, start.AddDate(0, 0, tt.day))
			storeSummaries(t, store, "loc", ingest.DailySummary{
				ProjectDate: "2016-01-02",
				Status:      map[string]int{"Done": tt.done, "Backlog": 10},
			})

			proj := &project.Project{Name: "demo", Projection: testProjection()}
			indicators, err := ind.Evaluate(context.Background(), proj, "loc")
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if len(indicators) != 1 {
				t.Fatalf("expected one indicator, got %v", indicators)
			}
			if indicators[0].RagStatus != tt.rag {
				t.Errorf("expected %s, got %s (target %s, value %s)",
					tt.rag, indicators[0].RagStatus, indicators[0].Target, indicators[0].Value)
			}
		})
	}
}

func TestDemandVsProjectedUsesLatestSummary(t *testing.T) {
	start, _ := time.Parse(ingest.DayFormat, "2016-01-01")
	ind, store, _ := newIndicatorsAt(t, start.AddDate(0, 0, 5))
	storeSummaries(t, store, "loc",
		ingest.DailySummary{ProjectDate: "2016-01-01", Status: map[string]int{"Done": 0}},
		ingest.DailySummary{ProjectDate: "2016-01-05", Status: map[string]int{"Done": 9}},
	)

	proj := &project.Project{Name: "demo", Projection: testProjection()}
	indicators, err := ind.Evaluate(context.Background(), proj, "loc")
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(indicators) != 1 || indicators[0].Value != "9" {
		t.Errorf("expected the latest Done count, got %v", indicators)
	}
}

func TestBacklogRegression(t *testing.T) {
	tests := []struct {
		name     string
		counts   map[string]int // projectDate -> not-done count
		endDate  string
		rag      string
		expected string
	}{
		{
			name:     "shrinking backlog lands before the end date",
			counts:   map[string]int{"2016-01-01": 10, "2016-01-06": 5},
			endDate:  "2016-02-01",
			rag:      project.RagGreen,
			expected: "2016-01-11",
		},
		{
			name:    "shrinking too slowly lands after the end date",
			counts:  map[string]int{"2016-01-01": 100, "2016-01-06": 95},
			endDate: "2016-02-01",
			rag:     project.RagRed,
		},
		{
			name:     "growing backlog never lands",
			counts:   map[string]int{"2016-01-01": 5, "2016-01-06": 10},
			endDate:  "2016-02-01",
			rag:      project.RagRed,
			expected: "never",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ind, store, _ := newIndicatorsAt(t, time.Now())

			summaries := make([]ingest.DailySummary, 0, len(tt.counts))
			for day, count := range tt.counts {
				summaries = append(summaries, ingest.DailySummary{
					ProjectDate: day,
					Status:      map[string]int{"Backlog": count},
				})
			}
			storeSummaries(t, store, "loc", summaries...)

			proj := &project.Project{Name: "demo", StartDate: "2016-01-01", EndDate: tt.endDate}
			indicators, err := ind.Evaluate(context.Background(), proj, "loc")
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if len(indicators) != 1 {
				t.Fatalf("expected one indicator, got %v", indicators)
			}
			if indicators[0].RagStatus != tt.rag {
				t.Errorf("expected %s, got %s (value %s)", tt.rag, indicators[0].RagStatus, indicators[0].Value)
			}
			if tt.expected != "" && indicators[0].Value != tt.expected {
				t.Errorf("expected predicted value %q, got %q", tt.expected, indicators[0].Value)
			}
		})
	}
}

func TestBacklogRegressionIgnoresDoneCounts(t *testing.T) {
	ind, store, _ := newIndicatorsAt(t, time.Now())
	storeSummaries(t, store, "loc",
		ingest.DailySummary{ProjectDate: "2016-01-01", Status: map[string]int{"Backlog": 10, "Done": 50}},
		ingest.DailySummary{ProjectDate: "2016-01-06", Status: map[string]int{"Backlog": 5, "Done": 55}},
	)

	proj := &project.Project{Name: "demo", StartDate: "2016-01-01", EndDate: "2016-02-01"}
	indicators, err := ind.Evaluate(context.Background(), proj, "loc")
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(indicators) != 1 || indicators[0].Value != "2016-01-11" {
		t.Errorf("Done counts must not feed the regression, got %v", indicators)
	}
}

func TestEvaluateNoSummaries(t *testing.T) {
	ind, _, _ := newIndicatorsAt(t, time.Now())
	proj := &project.Project{Name: "demo", Projection: testProjection(), StartDate: "2016-01-01", EndDate: "2016-02-01"}

	indicators, err := ind.Evaluate(context.Background(), proj, "loc")
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if indicators != nil {
		t.Errorf("no demand data should mean no indicators, got %v", indicators)
	}
}
