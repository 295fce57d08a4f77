package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/pulse/internal/domain/event"
	"github.com/felixgeelhaar/pulse/internal/domain/project"
	"github.com/felixgeelhaar/pulse/internal/infrastructure/config"
	"github.com/felixgeelhaar/pulse/internal/infrastructure/datastore"
)

// ErrEventFinalized is returned when a subsystem outcome arrives after the
// event already closed. The outcome is still recorded in its section; the
// event's terminal state does not change.
var ErrEventFinalized = errors.New("load event already finalized")

// Tracker records subsystem outcomes on the load event and finalizes the
// event once every configured section has reported. Outcomes from concurrent
// subsystems may arrive in any order and on any goroutine; each recording is
// a single-field update so siblings never clobber each other.
type Tracker struct {
	store      datastore.Store
	indicators *Indicators
	cfg        *config.Config
	logger     *slog.Logger
}

func NewTracker(store datastore.Store, indicators *Indicators, cfg *config.Config, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: store, indicators: indicators, cfg: cfg, logger: logger}
}

// RecordOutcome writes one subsystem's outcome into its section of the load
// event, then checks the updated document: when this was the last section to
// report, it evaluates the project's health indicators and finalizes the
// event. Finalization is guarded on endTime still being unset, so exactly
// one reporter closes the event even when the last two sections race.
func (t *Tracker) RecordOutcome(ctx context.Context, proj *project.Project, eventID, section string, outcome event.SystemEvent) error {
	location := t.cfg.ProjectPath(proj.Name)

	var updated event.LoadEvent
	if err := t.store.UpdatePart(ctx, location, event.Collection, eventID, section, outcome, &updated); err != nil {
		return fmt.Errorf("record %s outcome on event %s: %w", section, eventID, err)
	}
	t.logger.Info("subsystem outcome recorded",
		"project", proj.Name, "event", eventID, "section", section, "status", outcome.Status)

	if !updated.IsComplete() {
		t.logger.Debug("event still awaiting sections", "event", eventID)
		return nil
	}

	lifecycle, err := event.NewLifecycle(updated.ID, updated.Status)
	if err != nil {
		return err
	}
	if lifecycle.IsTerminal() {
		t.logger.Warn("outcome recorded on an already finalized event",
			"project", proj.Name, "event", eventID, "section", section)
		return ErrEventFinalized
	}

	transition := event.TransitionSucceed
	if !updated.CompletedSuccessfully() {
		transition = event.TransitionFail
	}

	// Indicator evaluation belongs to the run: when it fails, the run did
	// not fully succeed, whatever the sections say.
	if err := t.indicators.EvaluateAndStore(ctx, proj, location); err != nil {
		t.logger.Error("status indicator evaluation failed",
			"project", proj.Name, "event", eventID, "error", err)
		transition = event.TransitionFail
		updated.Note = fmt.Sprintf("status indicators: %v", err)
	}

	if err := lifecycle.Transition(transition); err != nil {
		return fmt.Errorf("finalize event %s: %w", eventID, err)
	}

	now := time.Now().UTC()
	updated.Status = lifecycle.CurrentStatus()
	updated.EndTime = &now

	replaced, err := t.store.ReplaceWhereNull(ctx, location, event.Collection, updated.ID, "endTime", updated)
	if err != nil {
		return fmt.Errorf("finalize event %s: %w", eventID, err)
	}
	if !replaced {
		// A sibling finished the race between our read-back and here.
		t.logger.Debug("event finalized by another reporter", "event", eventID)
		return nil
	}

	t.logger.Info("load event finalized",
		"project", proj.Name, "event", eventID, "status", updated.Status)
	return nil
}
