package petri

// NodeKind distinguishes the two kinds of arc endpoint.
type NodeKind int

const (
	KindPlace NodeKind = iota
	KindTransition
)

// Endpoint identifies one side of an arc.
type Endpoint struct {
	Kind NodeKind
	ID   string
}

// Arc is an ordered (from, to) pair with an integer weight >= 1. An arc must
// connect a place to a transition or a transition to a place; never two
// nodes of the same kind (§3.3).
type Arc struct {
	From       Endpoint
	To         Endpoint
	Weight     int
	IsInhibitor bool
	IsTest     bool
}

// PlaceToTransition builds an arc from a place to a transition.
func PlaceToTransition(placeID, transitionID string, weight int) Arc {
	return Arc{
		From:   Endpoint{Kind: KindPlace, ID: placeID},
		To:     Endpoint{Kind: KindTransition, ID: transitionID},
		Weight: weight,
	}
}

// TransitionToPlace builds an arc from a transition to a place.
func TransitionToPlace(transitionID, placeID string, weight int) Arc {
	return Arc{
		From:   Endpoint{Kind: KindTransition, ID: transitionID},
		To:     Endpoint{Kind: KindPlace, ID: placeID},
		Weight: weight,
	}
}

// Inhibitor marks the arc as an inhibitor arc and returns it for chaining.
func (a Arc) Inhibitor() Arc {
	a.IsInhibitor = true
	return a
}

// Test marks the arc as a test arc (reads without consuming) and returns it
// for chaining.
func (a Arc) Test() Arc {
	a.IsTest = true
	return a
}

// alternates reports whether from and to are of different kinds, as §3.3
// requires.
func (a Arc) alternates() bool {
	return a.From.Kind != a.To.Kind
}
