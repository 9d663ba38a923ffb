// Package petri implements the Petri-net data model: places, transitions,
// arcs, markings, and the net value itself, along with the structural
// invariants and neighborhood/firing operations of spec §3–§4.1. Every
// transformation returns a new value; nothing here mutates its receiver's
// backing storage after construction (§9: arena-style storage, string ids
// as the only cross-references).
package petri

import (
	"fmt"
	"sort"

	"github.com/lyzr/workflowverify/internal/verrors"
)

// Net is the immutable tuple described in §3.5.
type Net struct {
	ID                string
	Name              string
	Description       string
	Places            []Place
	Transitions       []Transition
	Arcs              []Arc
	InitialMarking    Marking
	SchemaVersion     string
	Metadata          map[string]any
	DerivedFromDagID  string

	// indexes built at construction time for O(1) lookups; never mutated
	// after New returns.
	placeIndex      map[string]int
	transitionIndex map[string]int
	inputPlaces     map[string][]Arc // transition id -> arcs from places
	outputPlaces    map[string][]Arc // transition id -> arcs to places
	inputTrans      map[string][]Arc // place id -> arcs from transitions
	outputTrans     map[string][]Arc // place id -> arcs to transitions
}

// Builder accumulates places/transitions/arcs before sealing them into an
// immutable Net. Kept for ergonomics per §9; nothing it produces is
// mutable once New is called.
type Builder struct {
	id               string
	name             string
	description      string
	places           []Place
	transitions      []Transition
	arcs             []Arc
	initialMarking   map[string]int
	schemaVersion    string
	metadata         map[string]any
	derivedFromDagID string
}

// NewBuilder starts a net builder.
func NewBuilder(name string) *Builder {
	return &Builder{name: name, initialMarking: map[string]int{}, schemaVersion: "1.0"}
}

func (b *Builder) WithID(id string) *Builder { b.id = id; return b }

func (b *Builder) WithDescription(desc string) *Builder { b.description = desc; return b }

func (b *Builder) WithMetadata(md map[string]any) *Builder { b.metadata = md; return b }

func (b *Builder) WithDerivedFromDagID(id string) *Builder { b.derivedFromDagID = id; return b }

func (b *Builder) AddPlace(p Place) *Builder {
	b.places = append(b.places, p)
	return b
}

func (b *Builder) AddTransition(t Transition) *Builder {
	b.transitions = append(b.transitions, t)
	return b
}

func (b *Builder) AddArc(a Arc) *Builder {
	b.arcs = append(b.arcs, a)
	return b
}

func (b *Builder) SetInitialTokens(placeID string, count int) *Builder {
	b.initialMarking[placeID] = count
	return b
}

// Build validates and seals the net, deriving a stable id if none was set.
func (b *Builder) Build() (Net, error) {
	n := Net{
		ID:               b.id,
		Name:             b.name,
		Description:      b.description,
		Places:           append([]Place(nil), b.places...),
		Transitions:      append([]Transition(nil), b.transitions...),
		Arcs:             append([]Arc(nil), b.arcs...),
		InitialMarking:   NewMarking(b.initialMarking),
		SchemaVersion:    b.schemaVersion,
		Metadata:         b.metadata,
		DerivedFromDagID: b.derivedFromDagID,
	}
	return New(n)
}

// New validates and seals a net value, deriving a stable id if n.ID is
// empty. Structural errors are returned wrapped in verrors.ErrInvalidNet
// (§3.5, §7).
func New(n Net) (Net, error) {
	if errs := validateStructure(n); len(errs) > 0 {
		return Net{}, fmt.Errorf("%w: %s", verrors.ErrInvalidNet, joinErrs(errs))
	}

	n.buildIndexes()

	if n.ID == "" {
		n.ID = n.stableID()
	}
	if n.SchemaVersion == "" {
		n.SchemaVersion = "1.0"
	}
	return n, nil
}

func joinErrs(errs []string) string {
	out := errs[0]
	for _, e := range errs[1:] {
		out += "; " + e
	}
	return out
}

// Validate returns the list of structural errors per §3.5, without
// wrapping. Exposed so callers can inspect all problems rather than only
// the first (mirrors IntentSpec.validate's non-short-circuiting policy).
func (n Net) Validate() []string {
	return validateStructure(n)
}

func validateStructure(n Net) []string {
	var errs []string

	if len(n.Places) == 0 {
		errs = append(errs, "net must declare at least one place")
	}
	if len(n.Transitions) == 0 {
		errs = append(errs, "net must declare at least one transition")
	}

	placeIDs := map[string]bool{}
	for _, p := range n.Places {
		if p.ID == "" {
			errs = append(errs, "place id must not be empty")
			continue
		}
		if placeIDs[p.ID] {
			errs = append(errs, fmt.Sprintf("duplicate place id %q", p.ID))
		}
		placeIDs[p.ID] = true
		if p.Capacity != nil && *p.Capacity < 0 {
			errs = append(errs, fmt.Sprintf("place %q has negative capacity", p.ID))
		}
	}

	transitionIDs := map[string]bool{}
	for _, t := range n.Transitions {
		if t.ID == "" {
			errs = append(errs, "transition id must not be empty")
			continue
		}
		if transitionIDs[t.ID] {
			errs = append(errs, fmt.Sprintf("duplicate transition id %q", t.ID))
		}
		transitionIDs[t.ID] = true
	}

	for _, a := range n.Arcs {
		if !a.alternates() {
			errs = append(errs, fmt.Sprintf("arc %s->%s must connect a place to a transition", a.From.ID, a.To.ID))
			continue
		}
		if a.Weight < 1 {
			errs = append(errs, fmt.Sprintf("arc %s->%s must have weight >= 1", a.From.ID, a.To.ID))
		}
		for _, ep := range []Endpoint{a.From, a.To} {
			switch ep.Kind {
			case KindPlace:
				if !placeIDs[ep.ID] {
					errs = append(errs, fmt.Sprintf("arc references unknown place %q", ep.ID))
				}
			case KindTransition:
				if !transitionIDs[ep.ID] {
					errs = append(errs, fmt.Sprintf("arc references unknown transition %q", ep.ID))
				}
			}
		}
	}

	for placeID := range n.InitialMarking {
		if !placeIDs[placeID] {
			errs = append(errs, fmt.Sprintf("initial marking references unknown place %q", placeID))
		}
	}

	return errs
}

func (n *Net) buildIndexes() {
	n.placeIndex = make(map[string]int, len(n.Places))
	for i, p := range n.Places {
		n.placeIndex[p.ID] = i
	}
	n.transitionIndex = make(map[string]int, len(n.Transitions))
	for i, t := range n.Transitions {
		n.transitionIndex[t.ID] = i
	}

	n.inputPlaces = map[string][]Arc{}
	n.outputPlaces = map[string][]Arc{}
	n.inputTrans = map[string][]Arc{}
	n.outputTrans = map[string][]Arc{}

	for _, a := range n.Arcs {
		switch {
		case a.From.Kind == KindPlace && a.To.Kind == KindTransition:
			n.inputPlaces[a.To.ID] = append(n.inputPlaces[a.To.ID], a)
			n.outputTrans[a.From.ID] = append(n.outputTrans[a.From.ID], a)
		case a.From.Kind == KindTransition && a.To.Kind == KindPlace:
			n.outputPlaces[a.From.ID] = append(n.outputPlaces[a.From.ID], a)
			n.inputTrans[a.To.ID] = append(n.inputTrans[a.To.ID], a)
		}
	}
}

// Place looks up a place by id.
func (n Net) Place(id string) (Place, bool) {
	i, ok := n.placeIndex[id]
	if !ok {
		return Place{}, false
	}
	return n.Places[i], true
}

// Transition looks up a transition by id.
func (n Net) Transition(id string) (Transition, bool) {
	i, ok := n.transitionIndex[id]
	if !ok {
		return Transition{}, false
	}
	return n.Transitions[i], true
}

// InputPlaces returns the places feeding transition t, i.e. •t.
func (n Net) InputPlaces(transitionID string) []Arc {
	return n.inputPlaces[transitionID]
}

// OutputPlaces returns the places transition t feeds, i.e. t•.
func (n Net) OutputPlaces(transitionID string) []Arc {
	return n.outputPlaces[transitionID]
}

// InputTransitions returns the transitions feeding place p.
func (n Net) InputTransitions(placeID string) []Arc {
	return n.inputTrans[placeID]
}

// OutputTransitions returns the transitions place p feeds.
func (n Net) OutputTransitions(placeID string) []Arc {
	return n.outputTrans[placeID]
}

// ArcWeight returns the weight of the arc between from and to, or 0 if no
// such arc exists.
func (n Net) ArcWeight(from, to Endpoint) int {
	var candidates []Arc
	if from.Kind == KindPlace {
		candidates = n.outputTrans[from.ID]
	} else {
		candidates = n.outputPlaces[from.ID]
	}
	for _, a := range candidates {
		if a.To == to {
			return a.Weight
		}
	}
	return 0
}

// IsEnabled reports whether t is structurally enabled in marking m, ignoring
// guards and inhibitor conditions (§4.1): every input place holds at least
// the arc weight, and every output place has room for the produce. An
// inhibitor arc reverses the input test: enabled only when M(p) < w.
func (n Net) IsEnabled(transitionID string, m Marking) bool {
	for _, a := range n.inputPlaces[transitionID] {
		count := m.Get(a.From.ID)
		if a.IsInhibitor {
			if count >= a.Weight {
				return false
			}
			continue
		}
		if a.IsTest {
			if count < a.Weight {
				return false
			}
			continue
		}
		if count < a.Weight {
			return false
		}
	}
	for _, a := range n.outputPlaces[transitionID] {
		place, ok := n.Place(a.To.ID)
		if !ok || !place.HasCapacity() {
			continue
		}
		if m.Get(a.To.ID)+a.Weight > *place.Capacity {
			return false
		}
	}
	return true
}

// Enabled returns the transitions structurally enabled in m, sorted by
// (descending priority, ascending id) for a deterministic tie-break (§4.1).
func (n Net) Enabled(m Marking) []Transition {
	var out []Transition
	for _, t := range n.Transitions {
		if n.IsEnabled(t.ID, m) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].Priority(), out[j].Priority()
		if pi != pj {
			return pi > pj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Fire fires t in marking m, returning the resulting marking. The
// precondition IsEnabled(t, m) must hold; otherwise verrors.ErrNotEnabled
// is returned (§4.1, §7).
func (n Net) Fire(transitionID string, m Marking) (Marking, error) {
	if !n.IsEnabled(transitionID, m) {
		return nil, fmt.Errorf("%w: %s", verrors.ErrNotEnabled, transitionID)
	}
	next := m.Clone()
	for _, a := range n.inputPlaces[transitionID] {
		if a.IsTest {
			continue // test arcs read without consuming
		}
		if a.IsInhibitor {
			continue // inhibitor arcs never consume tokens
		}
		next[a.From.ID] -= a.Weight
		if next[a.From.ID] == 0 {
			delete(next, a.From.ID)
		}
	}
	for _, a := range n.outputPlaces[transitionID] {
		next[a.To.ID] += a.Weight
	}
	return next, nil
}

// IsTerminal reports whether m has no enabled transitions and every place
// still holding tokens is a sink (no outgoing transitions). A marking with
// non-sink tokens and no enabled transition is a deadlock, not terminal
// (§4.1, GLOSSARY).
func (n Net) IsTerminal(m Marking) bool {
	if len(n.Enabled(m)) > 0 {
		return false
	}
	for placeID, count := range m {
		if count <= 0 {
			continue
		}
		if len(n.outputTrans[placeID]) > 0 {
			return false
		}
	}
	return true
}

// IsDeadlock reports whether m is a reachable non-terminal marking with no
// enabled transitions.
func (n Net) IsDeadlock(m Marking) bool {
	return len(n.Enabled(m)) == 0 && !n.IsTerminal(m)
}

// SinkPlaces returns the places flagged (or inferred) as sinks: no outgoing
// transitions.
func (n Net) SinkPlaces() []Place {
	var out []Place
	for _, p := range n.Places {
		if p.IsSink || len(n.outputTrans[p.ID]) == 0 {
			out = append(out, p)
		}
	}
	return out
}
