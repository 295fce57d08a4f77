package event

import (
	"time"

	"github.com/google/uuid"
)

// Collection is the document collection load events live in, inside each
// project's database.
const Collection = "loadEvents"

// Type says what kind of ingestion run an event tracks.
type Type string

const (
	TypeLoad   Type = "LOAD"
	TypeUpdate Type = "UPDATE"
)

// Status is the lifecycle state of an event or of one subsystem's outcome.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// ForcedCloseNote marks events that were closed by an override rather than
// by their subsystems completing.
const ForcedCloseNote = "Event forced complete"

const unconfiguredNote = "No demand, defect, or effort system configured for this project"

// SystemEvent is the terminal outcome of one subsystem's load. Completion is
// stamped at construction: the instant the outcome exists it counts as
// reported.
type SystemEvent struct {
	Completion *time.Time `json:"completion"`
	Status     Status     `json:"status"`
	Message    string     `json:"message"`
}

// NewSystemEvent builds a reported outcome with the completion stamp set.
func NewSystemEvent(status Status, message string) SystemEvent {
	now := time.Now().UTC()
	return SystemEvent{Completion: &now, Status: status, Message: message}
}

// Reported says whether this section carries a real outcome yet. A section
// exists as an empty placeholder from event creation until its subsystem
// finishes.
func (s *SystemEvent) Reported() bool {
	return s != nil && s.Completion != nil
}

// LoadEvent tracks one ingestion run for a project. A nil section means the
// subsystem is not configured and is excluded from completion and success
// evaluation; a zero-value section is configured but still pending.
type LoadEvent struct {
	ID        string       `json:"id"`
	Type      Type         `json:"type"`
	StartTime time.Time    `json:"startTime"`
	EndTime   *time.Time   `json:"endTime"`
	Since     string       `json:"since"`
	Status    Status       `json:"status"`
	Note      string       `json:"note"`
	Demand    *SystemEvent `json:"demand"`
	Defect    *SystemEvent `json:"defect"`
	Effort    *SystemEvent `json:"effort"`
}

// New creates a pending event with the default since watermark. Sections
// start nil until ConfigureSections marks the subsystems the project tracks.
func New(eventType Type, defaultSince string) *LoadEvent {
	return &LoadEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		StartTime: time.Now().UTC(),
		Since:     defaultSince,
		Status:    StatusPending,
	}
}

// ConfigureSections opens a pending placeholder for each configured
// subsystem. Set up pessimistically: a project with nothing configured gets
// a closed FAILED event so it can never hang in PENDING.
func (e *LoadEvent) ConfigureSections(demand, defect, effort bool) {
	e.Status = StatusFailed
	now := time.Now().UTC()
	e.EndTime = &now
	e.Note = unconfiguredNote

	open := func(section **SystemEvent) {
		*section = &SystemEvent{}
		e.Status = StatusPending
		e.EndTime = nil
		e.Note = ""
	}
	if demand {
		open(&e.Demand)
	}
	if defect {
		open(&e.Defect)
	}
	if effort {
		open(&e.Effort)
	}
}

// IsActive reports whether the event is still in progress. EndTime is the
// terminal marker; it is set exactly once.
func (e *LoadEvent) IsActive() bool { return e.EndTime == nil }

// IsComplete reports whether every configured section has a reported
// outcome. Unconfigured (nil) sections never block completion.
func (e *LoadEvent) IsComplete() bool {
	return (e.Demand == nil || e.Demand.Reported()) &&
		(e.Defect == nil || e.Defect.Reported()) &&
		(e.Effort == nil || e.Effort.Reported())
}

// CompletedSuccessfully is the AND of every configured section's status.
func (e *LoadEvent) CompletedSuccessfully() bool {
	return (e.Demand == nil || e.Demand.Status == StatusSuccess) &&
		(e.Defect == nil || e.Defect.Status == StatusSuccess) &&
		(e.Effort == nil || e.Effort.Status == StatusSuccess)
}

// Section returns a pointer to the named section field, or nil for an
// unknown name.
func (e *LoadEvent) Section(name string) *SystemEvent {
	switch name {
	case "demand":
		return e.Demand
	case "defect":
		return e.Defect
	case "effort":
		return e.Effort
	}
	return nil
}
