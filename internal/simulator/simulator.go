// Package simulator drives a compiled net to produce an observable,
// reproducible trace (§4.5). Unlike the validator, it honours guards and
// inhibitor conditions against a supplied context, and resolves
// concurrent-enabling conflicts with a seeded PRNG so that the same
// (net, seed) always fires the same transition sequence.
//
// Grounded on the teacher's run-loop shape in
// cmd/workflow-runner/run/executor.go (step/pause/resume/stop state
// machine around a single in-flight run), adapted here from executing
// real side-effecting actions to firing Petri-net transitions.
package simulator

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lyzr/workflowverify/internal/guard"
	"github.com/lyzr/workflowverify/internal/petri"
	"github.com/lyzr/workflowverify/internal/prng"
)

// Mode selects deterministic vs. interactive stepping (§4.5).
type Mode string

const (
	ModeDeterministic Mode = "DETERMINISTIC"
	ModeInteractive   Mode = "INTERACTIVE"
)

// RunStatus is the lifecycle state of a simulation.
type RunStatus string

const (
	StatusRunning    RunStatus = "RUNNING"
	StatusPaused     RunStatus = "PAUSED"
	StatusCompleted  RunStatus = "COMPLETED"
	StatusDeadlocked RunStatus = "DEADLOCKED"
	StatusMaxSteps   RunStatus = "MAX_STEPS_REACHED"
	StatusCancelled  RunStatus = "CANCELLED"
	StatusError      RunStatus = "ERROR"
)

// terminal reports whether status is one a simulation does not leave once
// reached (§6.3's enum, minus the in-flight RUNNING/PAUSED states).
func (s RunStatus) terminal() bool {
	switch s {
	case StatusCompleted, StatusDeadlocked, StatusMaxSteps, StatusCancelled, StatusError:
		return true
	default:
		return false
	}
}

// EventKind names a trace event's type.
type EventKind string

const (
	EventTransitionFired EventKind = "TRANSITION_FIRED"
	EventDeadlock        EventKind = "DEADLOCK"
	EventTerminated      EventKind = "TERMINATED"
	EventMaxStepsReached EventKind = "MAX_STEPS_REACHED"
	EventCancelled       EventKind = "CANCELLED"
	EventError           EventKind = "ERROR"
)

// TraceEvent is one entry of a simulation's trace (§4.5 step 4).
type TraceEvent struct {
	Sequence        int
	Timestamp       time.Time
	Kind            EventKind
	TransitionID    string
	TransitionName  string
	MarkingBefore   petri.Marking
	MarkingAfter    petri.Marking
	PlacesEmptied   []string
	PlacesFilled    []string
	Seed            uint64
}

// Options configures a simulation run (§4.5).
type Options struct {
	Seed            uint64
	Mode            Mode
	MaxSteps        int
	StepDelayMs     int
	EnableTracing   bool
	EnableAnimation bool
	PauseOnDeadlock bool
	Verbose         bool

	// Context supplies the values guards and inhibitor conditions are
	// evaluated against.
	Context map[string]any
}

// DefaultOptions returns the §4.5 defaults: seed 42, deterministic mode,
// maxSteps 1000, no delay.
func DefaultOptions() Options {
	return Options{Seed: 42, Mode: ModeDeterministic, MaxSteps: 1000, EnableTracing: true}
}

func (o Options) normalized() Options {
	if o.MaxSteps <= 0 {
		o.MaxSteps = 1000
	}
	if o.StepDelayMs < 0 {
		o.StepDelayMs = 0
	}
	return o
}

// Decider lets interactive mode supply an externally-chosen transition id
// between steps. Returning "" falls back to the deterministic rule.
type Decider func(enabled []petri.Transition) string

// Simulation carries all state for one run (§4.5, "State").
type Simulation struct {
	ID             string
	net            petri.Net
	opts           Options
	guardEval      *guard.Evaluator
	rng            *prng.Xoshiro256
	initialMarking petri.Marking
	marking        petri.Marking
	steps          int
	startedAt      time.Time
	endedAt        time.Time
	status         RunStatus
	trace          []TraceEvent
	decider        Decider
	stopRequested  bool
}

// New creates a simulation over net with the given options. A fresh
// guard.Evaluator is created internally; callers needing to share a cache
// across many simulations should use NewWithEvaluator.
func New(net petri.Net, opts Options) (*Simulation, error) {
	ev, err := guard.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("simulator: %w", err)
	}
	return NewWithEvaluator(net, opts, ev), nil
}

// NewWithEvaluator creates a simulation reusing an existing guard.Evaluator
// (so its compiled-program cache is shared across runs of the same net).
func NewWithEvaluator(net petri.Net, opts Options, ev *guard.Evaluator) *Simulation {
	opts = opts.normalized()
	return &Simulation{
		ID:             uuid.NewString(),
		net:            net,
		opts:           opts,
		guardEval:      ev,
		rng:            prng.New(opts.Seed),
		initialMarking: net.InitialMarking,
		marking:        net.InitialMarking,
		status:         StatusRunning,
	}
}

// WithDecider installs an interactive decision callback (§4.5, "Interactive
// mode").
func (s *Simulation) WithDecider(d Decider) *Simulation {
	s.decider = d
	return s
}

// Marking returns the current marking.
func (s *Simulation) Marking() petri.Marking { return s.marking }

// InitialMarking returns the marking the simulation started from (§6.3).
func (s *Simulation) InitialMarking() petri.Marking { return s.initialMarking }

// Status returns the current run status.
func (s *Simulation) Status() RunStatus { return s.status }

// Steps returns the number of transitions fired so far.
func (s *Simulation) Steps() int { return s.steps }

// Trace returns the accumulated trace events.
func (s *Simulation) Trace() []TraceEvent { return s.trace }

// StartedAt returns the timestamp of the first Step call, or the zero time
// if the simulation has not yet taken a step (§6.3).
func (s *Simulation) StartedAt() time.Time { return s.startedAt }

// EndedAt returns the timestamp at which the simulation reached a terminal
// status, or the zero time while still running/paused (§6.3).
func (s *Simulation) EndedAt() time.Time { return s.endedAt }

// Success reports whether the simulation reached COMPLETED, as opposed to
// DEADLOCKED, MAX_STEPS_REACHED, CANCELLED, or ERROR (§6.3).
func (s *Simulation) Success() bool { return s.status == StatusCompleted }

// Message is a short human-readable summary of the current status, for
// §6.3's "message" field.
func (s *Simulation) Message() string {
	switch s.status {
	case StatusCompleted:
		return fmt.Sprintf("completed after %d steps", s.steps)
	case StatusDeadlocked:
		return fmt.Sprintf("deadlocked after %d steps: no enabled transition and marking is not terminal", s.steps)
	case StatusMaxSteps:
		return fmt.Sprintf("stopped after reaching the configured maximum of %d steps", s.opts.MaxSteps)
	case StatusCancelled:
		return fmt.Sprintf("cancelled after %d steps", s.steps)
	case StatusError:
		return fmt.Sprintf("aborted after %d steps due to an unexpected firing error", s.steps)
	case StatusPaused:
		return fmt.Sprintf("paused after %d steps", s.steps)
	default:
		return fmt.Sprintf("running, %d steps so far", s.steps)
	}
}

// Pause transitions a running simulation to paused; a no-op otherwise.
func (s *Simulation) Pause() {
	if s.status == StatusRunning {
		s.status = StatusPaused
	}
}

// Resume transitions a paused simulation back to running; a no-op
// otherwise.
func (s *Simulation) Resume() {
	if s.status == StatusPaused {
		s.status = StatusRunning
	}
}

// Stop requests cancellation. It does not itself change status or emit a
// trace event: the next Step call observes the request, emits a single
// CANCELLED trace event, and moves the simulation to the terminal
// CANCELLED status. Every Step after that is a plain no-op.
func (s *Simulation) Stop() {
	s.stopRequested = true
}

// Reset returns the simulation to its initial marking, step count, trace,
// and RUNNING status, reseeding the PRNG so a reset run is byte-identical
// to a fresh one with the same seed.
func (s *Simulation) Reset() {
	s.marking = s.initialMarking
	s.steps = 0
	s.trace = nil
	s.status = StatusRunning
	s.stopRequested = false
	s.startedAt = time.Time{}
	s.endedAt = time.Time{}
	s.rng = prng.New(s.opts.Seed)
}

// setStatus transitions to status, stamping endedAt the first time a
// terminal status (§6.3) is reached.
func (s *Simulation) setStatus(status RunStatus) {
	s.status = status
	if status.terminal() && s.endedAt.IsZero() {
		s.endedAt = time.Now()
	}
}

// eligible returns the transitions structurally enabled in the current
// marking whose guard and inhibitor conditions also hold against the
// simulation's context (§4.5 step 1). A guard that fails to evaluate is
// recovered locally as false per §7, never aborting the run.
func (s *Simulation) eligible() []petri.Transition {
	var out []petri.Transition
	for _, t := range s.net.Enabled(s.marking) {
		if guard.Inhibited(t.InhibitorConditions, s.opts.Context) {
			continue
		}
		if t.Guard != "" {
			ok, err := s.guardEval.Eval(t.Guard, s.opts.Context)
			if err != nil || !ok {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// Step advances the simulation by one transition firing (§4.5, "Step
// algorithm"). It is a no-op once the simulation is terminal, and while it
// is paused unless a Stop is pending.
func (s *Simulation) Step() {
	if s.stopRequested && !s.status.terminal() {
		s.emit(TraceEvent{Kind: EventCancelled, MarkingBefore: s.marking, MarkingAfter: s.marking, Seed: s.opts.Seed})
		s.setStatus(StatusCancelled)
		return
	}
	if s.status != StatusRunning {
		return
	}
	if s.startedAt.IsZero() {
		s.startedAt = time.Now()
	}

	eligible := s.eligible()
	if len(eligible) == 0 {
		if s.net.IsTerminal(s.marking) {
			s.emit(TraceEvent{Kind: EventTerminated, MarkingBefore: s.marking, MarkingAfter: s.marking, Seed: s.opts.Seed})
			s.setStatus(StatusCompleted)
			return
		}
		s.emit(TraceEvent{Kind: EventDeadlock, MarkingBefore: s.marking, MarkingAfter: s.marking, Seed: s.opts.Seed})
		if s.opts.PauseOnDeadlock {
			s.status = StatusPaused
			return
		}
		s.setStatus(StatusDeadlocked)
		return
	}

	chosenID := ""
	if s.opts.Mode == ModeInteractive && s.decider != nil {
		chosenID = s.decider(eligible)
	}
	var chosen petri.Transition
	if chosenID != "" {
		for _, t := range eligible {
			if t.ID == chosenID {
				chosen = t
				break
			}
		}
	}
	if chosen.ID == "" {
		idx := s.rng.Intn(len(eligible))
		chosen = eligible[idx]
	}

	before := s.marking
	after, err := s.net.Fire(chosen.ID, before)
	if err != nil {
		// eligible() only returns structurally-enabled transitions, so
		// this can only happen if the net or marking were mutated
		// concurrently, which the model forbids. Distinct from DEADLOCKED
		// (§6.3): this is an unexpected firing failure, not a reachable
		// marking with nothing enabled.
		s.emit(TraceEvent{
			Kind:          EventError,
			TransitionID:  chosen.ID,
			MarkingBefore: before,
			MarkingAfter:  before,
			Seed:          s.opts.Seed,
		})
		s.setStatus(StatusError)
		return
	}

	emptied, filled := diffPlaces(before, after)
	s.marking = after
	s.steps++
	if s.opts.EnableTracing {
		s.emit(TraceEvent{
			Kind:           EventTransitionFired,
			TransitionID:   chosen.ID,
			TransitionName: chosen.Name,
			MarkingBefore:  before,
			MarkingAfter:   after,
			PlacesEmptied:  emptied,
			PlacesFilled:   filled,
			Seed:           s.opts.Seed,
		})
	}

	if s.opts.StepDelayMs > 0 && s.opts.EnableAnimation {
		time.Sleep(time.Duration(s.opts.StepDelayMs) * time.Millisecond)
	}

	if s.steps >= s.opts.MaxSteps {
		s.emit(TraceEvent{Kind: EventMaxStepsReached, MarkingBefore: s.marking, MarkingAfter: s.marking, Seed: s.opts.Seed})
		s.setStatus(StatusMaxSteps)
	}
}

// Run drives the simulation to completion (or a control boundary),
// stepping until the status leaves RUNNING.
func (s *Simulation) Run() {
	for s.status == StatusRunning {
		s.Step()
	}
}

func (s *Simulation) emit(e TraceEvent) {
	e.Sequence = len(s.trace) + 1
	e.Timestamp = time.Now()
	s.trace = append(s.trace, e)
}

func diffPlaces(before, after petri.Marking) (emptied, filled []string) {
	for placeID, n := range before {
		if n > 0 && after.Get(placeID) == 0 {
			emptied = append(emptied, placeID)
		}
	}
	for placeID, n := range after {
		if n > 0 && before.Get(placeID) == 0 {
			filled = append(filled, placeID)
		}
	}
	return emptied, filled
}
