package event

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// State constants for statekit integration. These must remain untyped string
// constants for statekit.StateID compatibility and are kept in sync with the
// Status values in event.go.
const (
	StatePending = "PENDING"
	StateSuccess = "SUCCESS"
	StateFailed  = "FAILED"
)

func init() {
	stateMap := map[string]Status{
		StatePending: StatusPending,
		StateSuccess: StatusSuccess,
		StateFailed:  StatusFailed,
	}
	for fsmState, status := range stateMap {
		if fsmState != string(status) {
			panic(fmt.Sprintf("FSM state %q does not match Status %q - constants are out of sync", fsmState, status))
		}
	}
}

// Transition events.
const (
	TransitionSucceed = "succeed"
	TransitionFail    = "fail"
)

// LifecycleContext carries state data.
type LifecycleContext struct {
	EventID string
}

// Lifecycle enforces the load-event state machine: PENDING moves to SUCCESS
// or FAILED exactly once, and terminal states accept nothing. The completion
// tracker consults it before finalizing so a late subsystem outcome can
// never re-finalize an event.
type Lifecycle struct {
	interpreter *statekit.Interpreter[LifecycleContext]
}

func NewLifecycle(eventID string, current Status) (*Lifecycle, error) {
	builder := statekit.NewMachine[LifecycleContext]("load-event").
		WithInitial(statekit.StateID(current)).
		WithContext(LifecycleContext{EventID: eventID})

	builder.State(StatePending).
		On(TransitionSucceed).Target(StateSuccess).
		On(TransitionFail).Target(StateFailed).
		Done()

	// Terminal states: no outgoing transitions.
	builder.State(StateSuccess).Done()
	builder.State(StateFailed).Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build event state machine: %w", err)
	}

	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()

	return &Lifecycle{interpreter: interpreter}, nil
}

// Transition attempts to finalize the event. In statekit, if no transition
// matches, the state stays the same; an unchanged state means the move was
// rejected.
func (l *Lifecycle) Transition(transition string) error {
	before := l.Current()
	l.interpreter.Send(statekit.Event{Type: statekit.EventType(transition)})
	after := l.Current()

	if before != after {
		return nil
	}
	return fmt.Errorf("transition %q is not allowed while the event is %s", transition, before)
}

func (l *Lifecycle) Current() string {
	return string(l.interpreter.State().Value)
}

// CurrentStatus returns the current state as a Status value.
func (l *Lifecycle) CurrentStatus() Status {
	return Status(l.Current())
}

// IsTerminal reports whether the event has already been finalized.
func (l *Lifecycle) IsTerminal() bool {
	current := l.CurrentStatus()
	return current == StatusSuccess || current == StatusFailed
}
