// Package validator implements the bounded state-space engine of §4.4: a
// breadth-first exploration of a net's reachable markings, backing five
// independently toggleable checks (deadlock, reachability, liveness,
// boundedness, soundness).
//
// Grounded on the teacher's static-analysis pass in
// cmd/workflow-runner/compiler/ir.go (a worklist walk over the compiled
// graph collecting diagnostics), generalized here from a single linear
// walk to full BFS over the marking state space, because the net model
// admits branching and concurrency the teacher's IR did not.
package validator

import (
	"fmt"
	"time"

	"github.com/lyzr/workflowverify/internal/petri"
)

// Status is the outcome of a check or of an overall run.
type Status string

const (
	StatusPass    Status = "PASS"
	StatusFail    Status = "FAIL"
	StatusUnknown Status = "UNKNOWN"
)

// CheckKind names one of the five checks of §4.4.
type CheckKind string

const (
	CheckDeadlock      CheckKind = "DEADLOCK"
	CheckReachability  CheckKind = "REACHABILITY"
	CheckLiveness      CheckKind = "LIVENESS"
	CheckBoundedness   CheckKind = "BOUNDEDNESS"
	CheckSoundness     CheckKind = "SOUNDNESS"
)

// Options configures one validation run (§4.4, §6.5).
type Options struct {
	KBound    int  // default 200
	MaxTimeMs int  // default 30000
	Deadlock     bool
	Reachability bool
	Liveness     bool
	Boundedness  bool
	Soundness    bool

	// GoalMarking is the target for the reachability check, if set. When
	// nil, reachability instead checks whether any sink-only marking is
	// reachable.
	GoalMarking petri.Marking

	// Bound overrides, per place id, the capacity used by the
	// boundedness check; a place absent here falls back to its declared
	// capacity, else unbounded.
	Bound map[string]int
}

// DefaultOptions returns an Options value with every check enabled and the
// default exploration limits of §4.4.
func DefaultOptions() Options {
	return Options{
		KBound:       200,
		MaxTimeMs:    30000,
		Deadlock:     true,
		Reachability: true,
		Liveness:     true,
		Boundedness:  true,
		Soundness:    true,
	}
}

func (o Options) normalized() Options {
	if o.KBound <= 0 {
		o.KBound = 200
	}
	if o.MaxTimeMs <= 0 {
		o.MaxTimeMs = 30000
	}
	return o
}

// CounterExample describes a failing marking and how exploration reached
// it, per §4.4's "result shape".
type CounterExample struct {
	Description string
	Marking     petri.Marking
	Enabled     []string
	Path        []string
}

// CheckResult is one check's outcome.
type CheckResult struct {
	Kind          CheckKind
	Status        Status
	Message       string
	ExecutionTime time.Duration
	CounterExample *CounterExample
}

// Result is the full validation outcome of §4.4.
type Result struct {
	Status        Status
	Checks        []CheckResult
	StatesExplored int
	ExecutionTime time.Duration
	Hints         []string
	LimitReached  bool
}

// explored is the state produced by the shared BFS pass: every reachable
// marking, the transition path that reached it, and whether the bound
// (kBound or maxTimeMs) cut exploration short of full closure.
type explored struct {
	order        []petri.Marking // BFS discovery order, starting with the initial marking
	pathTo       map[string][]string
	enabledAt    map[string][]petri.Transition
	firedIDs     map[string]bool // every transition id fired at least once across all explored markings
	limitReached bool
}

// Validate runs the bounded BFS exploration once and evaluates every
// enabled check against the shared result (§4.4).
func Validate(net petri.Net, opts Options) Result {
	start := time.Now()
	opts = opts.normalized()

	ex := explore(net, opts)

	var checks []CheckResult
	anyFail := false

	if opts.Deadlock {
		r := checkDeadlock(net, ex)
		checks = append(checks, r)
		anyFail = anyFail || r.Status == StatusFail
	}
	if opts.Reachability {
		r := checkReachability(net, ex, opts)
		checks = append(checks, r)
		anyFail = anyFail || r.Status == StatusFail
	}
	if opts.Liveness {
		r := checkLiveness(net, ex)
		checks = append(checks, r)
		anyFail = anyFail || r.Status == StatusFail
	}
	if opts.Boundedness {
		r := checkBoundedness(net, ex, opts)
		checks = append(checks, r)
		anyFail = anyFail || r.Status == StatusFail
	}
	if opts.Soundness {
		r := checkSoundness(net, ex)
		checks = append(checks, r)
		anyFail = anyFail || r.Status == StatusFail
	}

	status := StatusPass
	if anyFail {
		status = StatusFail
	} else if ex.limitReached {
		status = StatusUnknown
	}

	var hints []string
	if ex.limitReached {
		hints = append(hints, fmt.Sprintf("explored %d states in %s; increase kBound or maxTimeMs to proceed", len(ex.order), time.Since(start)))
	}

	return Result{
		Status:         status,
		Checks:         checks,
		StatesExplored: len(ex.order),
		ExecutionTime:  time.Since(start),
		Hints:          hints,
		LimitReached:   ex.limitReached,
	}
}

// explore performs the BFS state-space walk shared by every check. It
// never consults guards or context (§4.4's "policy choices": the validator
// over-approximates, which is safe for deadlock/boundedness, not for
// deterministic paths).
func explore(net petri.Net, opts Options) explored {
	deadline := time.Now().Add(time.Duration(opts.MaxTimeMs) * time.Millisecond)

	initial := net.InitialMarking
	visited := map[string]bool{initial.Key(): true}
	frontier := []petri.Marking{initial}

	ex := explored{
		pathTo:    map[string][]string{initial.Key(): {}},
		enabledAt: map[string][]petri.Transition{},
		firedIDs:  map[string]bool{},
	}
	ex.order = append(ex.order, initial)

	for len(frontier) > 0 {
		if len(ex.order) >= opts.KBound {
			ex.limitReached = true
			break
		}
		if time.Now().After(deadline) {
			ex.limitReached = true
			break
		}

		m := frontier[0]
		frontier = frontier[1:]
		key := m.Key()

		enabledSet := net.Enabled(m)
		ex.enabledAt[key] = enabledSet

		for _, t := range enabledSet {
			ex.firedIDs[t.ID] = true
			next, err := net.Fire(t.ID, m)
			if err != nil {
				continue
			}
			nextKey := next.Key()
			if visited[nextKey] {
				continue
			}
			visited[nextKey] = true

			path := append(append([]string{}, ex.pathTo[key]...), t.ID)
			ex.pathTo[nextKey] = path
			ex.order = append(ex.order, next)
			frontier = append(frontier, next)

			if len(ex.order) >= opts.KBound {
				ex.limitReached = true
			}
		}
		if ex.limitReached {
			break
		}
	}

	// markings discovered but never dequeued (because the bound hit)
	// still need an enabled-set entry for liveness/deadlock checks to
	// treat them consistently with dequeued markings.
	for _, m := range frontier {
		key := m.Key()
		if _, ok := ex.enabledAt[key]; !ok {
			ex.enabledAt[key] = net.Enabled(m)
		}
	}

	return ex
}

func checkDeadlock(net petri.Net, ex explored) CheckResult {
	start := time.Now()
	for _, m := range ex.order {
		key := m.Key()
		if len(ex.enabledAt[key]) == 0 && !net.IsTerminal(m) {
			return CheckResult{
				Kind:          CheckDeadlock,
				Status:        StatusFail,
				Message:       fmt.Sprintf("reachable deadlock at marking %s", key),
				ExecutionTime: time.Since(start),
				CounterExample: &CounterExample{
					Description: "no enabled transition and marking is not terminal",
					Marking:     m,
					Enabled:     nil,
					Path:        ex.pathTo[key],
				},
			}
		}
	}
	return CheckResult{Kind: CheckDeadlock, Status: StatusPass, Message: "no reachable deadlock found", ExecutionTime: time.Since(start)}
}

func checkReachability(net petri.Net, ex explored, opts Options) CheckResult {
	start := time.Now()

	matches := func(m petri.Marking) bool {
		if opts.GoalMarking != nil {
			return m.Equal(opts.GoalMarking)
		}
		return isSinkOnly(net, m)
	}

	for _, m := range ex.order {
		if matches(m) {
			return CheckResult{Kind: CheckReachability, Status: StatusPass, Message: "goal marking reached", ExecutionTime: time.Since(start)}
		}
	}
	if ex.limitReached {
		return CheckResult{
			Kind:          CheckReachability,
			Status:        StatusUnknown,
			Message:       "exploration limit reached before any marking satisfied the reachability goal",
			ExecutionTime: time.Since(start),
		}
	}
	return CheckResult{
		Kind:          CheckReachability,
		Status:        StatusFail,
		Message:       "no explored marking satisfies the reachability goal",
		ExecutionTime: time.Since(start),
	}
}

func isSinkOnly(net petri.Net, m petri.Marking) bool {
	for placeID, count := range m {
		if count <= 0 {
			continue
		}
		p, ok := net.Place(placeID)
		if !ok {
			return false
		}
		if !p.IsSink && len(net.OutputTransitions(placeID)) > 0 {
			return false
		}
	}
	return true
}

func checkLiveness(net petri.Net, ex explored) CheckResult {
	start := time.Now()
	var deadTransitions []string
	for _, t := range net.Transitions {
		if !ex.firedIDs[t.ID] {
			deadTransitions = append(deadTransitions, t.ID)
		}
	}
	if len(deadTransitions) > 0 {
		if ex.limitReached {
			return CheckResult{
				Kind:          CheckLiveness,
				Status:        StatusUnknown,
				Message:       fmt.Sprintf("exploration limit reached before these transitions were seen to fire: %v", deadTransitions),
				ExecutionTime: time.Since(start),
			}
		}
		return CheckResult{
			Kind:          CheckLiveness,
			Status:        StatusFail,
			Message:       fmt.Sprintf("transitions never fired in any explored trace: %v", deadTransitions),
			ExecutionTime: time.Since(start),
		}
	}
	return CheckResult{Kind: CheckLiveness, Status: StatusPass, Message: "every transition fired at least once", ExecutionTime: time.Since(start)}
}

func checkBoundedness(net petri.Net, ex explored, opts Options) CheckResult {
	start := time.Now()

	boundFor := func(placeID string) (int, bool) {
		if b, ok := opts.Bound[placeID]; ok {
			return b, true
		}
		if p, ok := net.Place(placeID); ok && p.HasCapacity() {
			return *p.Capacity, true
		}
		return 0, false
	}

	for _, m := range ex.order {
		for placeID, count := range m {
			bound, has := boundFor(placeID)
			if !has {
				continue
			}
			if count > bound {
				return CheckResult{
					Kind:          CheckBoundedness,
					Status:        StatusFail,
					Message:       fmt.Sprintf("place %q holds %d tokens, exceeding bound %d", placeID, count, bound),
					ExecutionTime: time.Since(start),
					CounterExample: &CounterExample{
						Description: fmt.Sprintf("place %q over bound", placeID),
						Marking:     m,
						Path:        ex.pathTo[m.Key()],
					},
				}
			}
		}
	}
	return CheckResult{Kind: CheckBoundedness, Status: StatusPass, Message: "no place exceeded its bound", ExecutionTime: time.Since(start)}
}

// checkSoundness implements §4.4's workflow-soundness check: attempted
// only when the net declares a sink place; a single-token initial marking
// must reach a marking with exactly one token in a sink place and nothing
// elsewhere, and every transition must be live.
func checkSoundness(net petri.Net, ex explored) CheckResult {
	start := time.Now()
	sinks := net.SinkPlaces()
	if len(sinks) == 0 {
		return CheckResult{Kind: CheckSoundness, Status: StatusUnknown, Message: "net declares no sink place; soundness not attempted", ExecutionTime: time.Since(start)}
	}

	if net.InitialMarking.Total() != 1 {
		return CheckResult{
			Kind:          CheckSoundness,
			Status:        StatusFail,
			Message:       "soundness requires a single-token initial marking",
			ExecutionTime: time.Since(start),
		}
	}

	sinkIDs := map[string]bool{}
	for _, s := range sinks {
		sinkIDs[s.ID] = true
	}

	reached := false
	for _, m := range ex.order {
		if m.Total() != 1 {
			continue
		}
		for placeID, count := range m {
			if count > 0 && sinkIDs[placeID] {
				reached = true
			}
		}
		if reached {
			break
		}
	}
	if !reached {
		if ex.limitReached {
			return CheckResult{
				Kind:          CheckSoundness,
				Status:        StatusUnknown,
				Message:       "exploration limit reached before a proper-completion marking was found",
				ExecutionTime: time.Since(start),
			}
		}
		return CheckResult{
			Kind:          CheckSoundness,
			Status:        StatusFail,
			Message:       "no explored marking places exactly one token in a sink place",
			ExecutionTime: time.Since(start),
		}
	}

	live := checkLiveness(net, ex)
	if live.Status == StatusUnknown {
		return CheckResult{
			Kind:          CheckSoundness,
			Status:        StatusUnknown,
			Message:       "proper completion reached but liveness is undetermined: " + live.Message,
			ExecutionTime: time.Since(start),
		}
	}
	if live.Status != StatusPass {
		return CheckResult{
			Kind:          CheckSoundness,
			Status:        StatusFail,
			Message:       "proper completion reached but not every transition is live: " + live.Message,
			ExecutionTime: time.Since(start),
		}
	}

	return CheckResult{Kind: CheckSoundness, Status: StatusPass, Message: "net is sound", ExecutionTime: time.Since(start)}
}
