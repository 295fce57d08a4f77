package application

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/felixgeelhaar/pulse/internal/domain/ingest"
	"github.com/felixgeelhaar/pulse/internal/domain/project"
	"github.com/felixgeelhaar/pulse/internal/infrastructure/config"
	"github.com/felixgeelhaar/pulse/internal/infrastructure/datastore"
)

// doneStatus is the demand status counted as delivered.
const doneStatus = "Done"

// Indicators evaluates project health from the daily demand summaries and
// rolls the result up into the project document.
type Indicators struct {
	store  datastore.Store
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time
}

func NewIndicators(store datastore.Store, cfg *config.Config, logger *slog.Logger) *Indicators {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indicators{store: store, cfg: cfg, logger: logger, now: time.Now}
}

// EvaluateAndStore recomputes every applicable indicator, replaces the
// project's indicator collection, and writes the worst color onto the
// project document in the core database.
func (s *Indicators) EvaluateAndStore(ctx context.Context, proj *project.Project, location string) error {
	indicators, err := s.Evaluate(ctx, proj, location)
	if err != nil {
		return err
	}

	docs := make([]any, len(indicators))
	for i, indicator := range indicators {
		docs[i] = indicator
	}
	if err := s.store.WipeAndStore(ctx, location, project.RagCollection, docs...); err != nil {
		return err
	}

	rollup := project.WorstRag(indicators)
	if err := s.store.UpdatePart(ctx, s.cfg.CorePath(), project.Collection,
		proj.DocumentID(), "ragStatus", rollup, nil); err != nil {
		return err
	}

	s.logger.Info("project health evaluated",
		"project", proj.Name, "indicators", len(indicators), "ragStatus", rollup)
	return nil
}

// Evaluate computes every indicator the project carries enough configuration
// for. A project with no projection and no date range simply has no
// indicators.
func (s *Indicators) Evaluate(ctx context.Context, proj *project.Project, location string) ([]project.Indicator, error) {
	summaries, err := s.demandSummaries(ctx, location)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, nil
	}

	var indicators []project.Indicator
	if proj.Projection != nil && proj.Projection.StartDate != "" {
		if indicator := s.demandVsProjected(proj.Projection, summaries); indicator != nil {
			indicators = append(indicators, *indicator)
		}
	}
	if proj.StartDate != "" && proj.EndDate != "" {
		if indicator := s.backlogRegression(proj, summaries); indicator != nil {
			indicators = append(indicators, *indicator)
		}
	}
	return indicators, nil
}

func (s *Indicators) demandSummaries(ctx context.Context, location string) ([]ingest.DailySummary, error) {
	var summaries []ingest.DailySummary
	if err := s.store.GetAll(ctx, location, ingest.SubsystemDemand.SummaryCollection(), &summaries); err != nil {
		return nil, err
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].ProjectDate < summaries[j].ProjectDate
	})
	return summaries, nil
}

// demandVsProjected compares the latest delivered count against the planned
// delivery curve for today. The curve is piecewise linear over three phases:
// ramp-up at the start velocity, the steady middle at the target velocity,
// and ramp-down at the end velocity.
func (s *Indicators) demandVsProjected(plan *project.Projection, summaries []ingest.DailySummary) *project.Indicator {
	start, err := time.Parse(ingest.DayFormat, plan.StartDate)
	if err != nil {
		s.logger.Debug("projection start date unparseable", "startDate", plan.StartDate)
		return nil
	}

	target := projectedStories(plan, s.now().Sub(start).Hours()/24)
	done := summaries[len(summaries)-1].Status[doneStatus]

	rag := project.RagAmber
	switch {
	case done < target:
		rag = project.RagRed
	case done > target:
		rag = project.RagGreen
	}

	return &project.Indicator{
		Name:      "Demand vs. Projected",
		Target:    strconv.Itoa(target),
		Value:     strconv.Itoa(done),
		RagStatus: rag,
	}
}

// projectedStories evaluates the delivery curve at a day offset from the
// projection start.
func projectedStories(plan *project.Projection, day float64) int {
	iterationDays := plan.IterationLength * 7
	if iterationDays == 0 {
		return 0
	}

	startDays := plan.StartIterations * iterationDays
	endDays := plan.EndIterations * iterationDays
	startVelocity := plan.StartVelocity / iterationDays
	targetVelocity := plan.TargetVelocity / iterationDays
	endVelocity := plan.EndVelocity / iterationDays

	// Stories left for the middle phase after the planned ramp phases, with
	// dark matter inflating the backlog.
	middleStories := plan.BacklogSize*(1+plan.DarkMatterPercentage/100) -
		plan.StartIterations*plan.StartVelocity -
		plan.EndIterations*plan.EndVelocity
	middleDays := 0.0
	if plan.TargetVelocity > 0 {
		middleDays = math.Ceil(middleStories/plan.TargetVelocity) * iterationDays
	}
	totalDays := startDays + middleDays + endDays

	startPhase := func(d float64) float64 { return math.Floor(startVelocity * d) }
	middlePhase := func(d float64) float64 {
		intercept := startPhase(startDays) - targetVelocity*startDays
		return math.Floor(targetVelocity*d + intercept)
	}
	endPhase := func(d float64) float64 {
		rampDownStart := startDays + middleDays
		intercept := middlePhase(rampDownStart) - endVelocity*rampDownStart
		return math.Floor(endVelocity*d + intercept)
	}

	day = math.Floor(day)
	switch {
	case day <= startDays:
		return int(startPhase(day))
	case day <= totalDays-endDays:
		return int(middlePhase(day))
	default:
		return int(endPhase(day))
	}
}

// backlogRegression fits a line through the daily not-done counts and
// extrapolates the day the backlog reaches zero. Landing after the planned
// end date, or a backlog that is not shrinking at all, reads red.
func (s *Indicators) backlogRegression(proj *project.Project, summaries []ingest.DailySummary) *project.Indicator {
	start, err := time.Parse(ingest.DayFormat, proj.StartDate)
	if err != nil {
		s.logger.Debug("project start date unparseable", "startDate", proj.StartDate)
		return nil
	}
	targetEnd, err := time.Parse(ingest.DayFormat, proj.EndDate)
	if err != nil {
		s.logger.Debug("project end date unparseable", "endDate", proj.EndDate)
		return nil
	}

	var points [][2]float64
	for _, summary := range summaries {
		date, err := time.Parse(ingest.DayFormat, summary.ProjectDate)
		if err != nil {
			continue
		}
		notDone := 0
		for status, count := range summary.Status {
			if status != doneStatus {
				notDone += count
			}
		}
		if notDone > 0 {
			points = append(points, [2]float64{date.Sub(start).Hours() / 24, float64(notDone)})
		}
	}
	if len(points) < 2 {
		return nil
	}

	slope, intercept := linearRegression(points)
	indicator := &project.Indicator{
		Name:   "Predicted End Date",
		Target: proj.EndDate,
	}

	if slope >= 0 {
		// Backlog flat or growing; no zero crossing ahead.
		indicator.Value = "never"
		indicator.RagStatus = project.RagRed
		return indicator
	}

	zeroDay := -intercept / slope
	predicted := start.AddDate(0, 0, int(math.Round(zeroDay)))
	indicator.Value = ingest.DayStamp(predicted)

	switch {
	case predicted.After(targetEnd):
		indicator.RagStatus = project.RagRed
	case predicted.Before(targetEnd):
		indicator.RagStatus = project.RagGreen
	default:
		indicator.RagStatus = project.RagAmber
	}
	return indicator
}

// linearRegression is a least-squares fit over (x, y) points, returning the
// slope and intercept.
func linearRegression(points [][2]float64) (slope, intercept float64) {
	n := float64(len(points))
	var sumX, sumY, sumXY, sumXX float64
	for _, p := range points {
		sumX += p[0]
		sumY += p[1]
		sumXY += p[0] * p[1]
		sumXX += p[0] * p[0]
	}

	denominator := n*sumXX - sumX*sumX
	if denominator == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denominator
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}
