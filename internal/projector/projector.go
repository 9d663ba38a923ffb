// Package projector derives a task DAG from a compiled net (§4.6): each
// non-connector transition becomes one task node, and edges express
// immediate precedence as implied by shared places, after transitive
// reduction.
//
// Grounded on the teacher's DAG-rendering pass in
// cmd/workflow-runner/compiler/ir.go (building a node/edge view for the
// UI from the compiled graph), adapted from the teacher's single-layer
// node/edge schema to operate over a Petri net with dependency-connector
// transitions that must be filtered out first.
package projector

import (
	"fmt"
	"sort"

	"github.com/lyzr/workflowverify/internal/petri"
	"github.com/lyzr/workflowverify/internal/verrors"
)

// Node is one DAG task node, corresponding to exactly one non-connector
// transition of the source net (§3.7, §6.4).
type Node struct {
	ID          string
	Name        string
	Action      string
	InputParams map[string]any
	Metadata    map[string]any
	MaxRetries  int

	// DependencyIDs lists the retained predecessors this node depends on,
	// in the same order as IncomingEdges.
	DependencyIDs []string

	// IncomingEdges resolves open question 4: the cross-highlighting
	// contract. For each retained predecessor, it records the set of net
	// places that realise that edge, so a UI can highlight both the edge
	// and its underlying places together.
	IncomingEdges []IncomingEdge
}

// IncomingEdge describes one retained predecessor of a node.
type IncomingEdge struct {
	From   string
	Places []string
}

// Edge is one retained precedence edge after transitive reduction.
type Edge struct {
	From   string
	To     string
	Places []string
}

// DAG is the projected task graph (§3.7, §6.4).
type DAG struct {
	ID                    string
	Name                  string
	DerivedFromPetriNetID string
	Metadata              map[string]any
	Nodes                 []Node
	Edges                 []Edge

	// Roots lists every node with no retained predecessor (§4.6 step 5);
	// the common case is a single root. RootNodeID names that one root
	// when there is exactly one, per §6.4's "optional root node id".
	Roots      []string
	RootNodeID string
}

// Project derives net's task DAG per §4.6. Returns verrors.ErrCyclicPrecedence
// if the induced precedence relation among non-connector transitions is not
// acyclic, which should never happen for a net produced by this module's
// compiler (§4.6, "Preconditions").
func Project(net petri.Net) (DAG, error) {
	kept := make(map[string]petri.Transition)
	for _, t := range net.Transitions {
		if t.IsDependencyConnector() {
			continue
		}
		kept[t.ID] = t
	}

	// direct[A][B] = set of places realising an A -> B immediate edge.
	direct := map[string]map[string]map[string]bool{}
	addEdge := func(from, to, place string) {
		if _, ok := direct[from]; !ok {
			direct[from] = map[string]map[string]bool{}
		}
		if _, ok := direct[from][to]; !ok {
			direct[from][to] = map[string]bool{}
		}
		direct[from][to][place] = true
	}

	for _, place := range net.Places {
		producers := reachableNonConnectorProducers(net, kept, place.ID)
		consumers := reachableNonConnectorConsumers(net, kept, place.ID)
		for _, from := range producers {
			for _, to := range consumers {
				addEdge(from, to, place.ID)
			}
		}
	}

	if hasCycle(direct) {
		return DAG{}, fmt.Errorf("%w: precedence relation among retained transitions is not acyclic", verrors.ErrCyclicPrecedence)
	}

	reduced := transitiveReduce(direct)

	dag := DAG{
		ID:                    "dag_" + net.ID,
		Name:                  net.Name,
		DerivedFromPetriNetID: net.ID,
	}
	incoming := map[string][]IncomingEdge{}
	dependencyIDs := map[string][]string{}
	hasPredecessor := map[string]bool{}

	var froms []string
	for from := range reduced {
		froms = append(froms, from)
	}
	sort.Strings(froms)

	for _, from := range froms {
		var tos []string
		for to := range reduced[from] {
			tos = append(tos, to)
		}
		sort.Strings(tos)
		for _, to := range tos {
			places := sortedKeys(direct[from][to])
			dag.Edges = append(dag.Edges, Edge{From: from, To: to, Places: places})
			incoming[to] = append(incoming[to], IncomingEdge{From: from, Places: places})
			dependencyIDs[to] = append(dependencyIDs[to], from)
			hasPredecessor[to] = true
		}
	}

	var ids []string
	for id := range kept {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		t := kept[id]
		maxRetries := 0
		if t.Retry != nil {
			maxRetries = t.Retry.MaxRetries
		}
		dag.Nodes = append(dag.Nodes, Node{
			ID:            id,
			Name:          t.Name,
			Action:        t.Action,
			InputParams:   inputParams(t.Metadata),
			Metadata:      t.Metadata,
			MaxRetries:    maxRetries,
			DependencyIDs: dependencyIDs[id],
			IncomingEdges: incoming[id],
		})
		if !hasPredecessor[id] {
			dag.Roots = append(dag.Roots, id)
		}
	}
	if len(dag.Roots) == 1 {
		dag.RootNodeID = dag.Roots[0]
	}

	return dag, nil
}

// inputParams extracts a transition's "inputParams" metadata sub-map, if
// any step-level input parameters were carried through compilation (§3.7).
func inputParams(md map[string]any) map[string]any {
	if md == nil {
		return nil
	}
	if v, ok := md["inputParams"].(map[string]any); ok {
		return v
	}
	return nil
}

// reachableNonConnectorProducers returns the non-connector transitions
// that feed placeID, looking through any chain of connector transitions
// (§4.6 step 1: connectors are filtered from the output, but the
// precedence they carry must still be attributed to the real transitions
// on either side).
func reachableNonConnectorProducers(net petri.Net, kept map[string]petri.Transition, placeID string) []string {
	var out []string
	seen := map[string]bool{}
	var walk func(pid string)
	walk = func(pid string) {
		for _, a := range net.InputTransitions(pid) {
			tid := a.From.ID
			if _, isKept := kept[tid]; isKept {
				if !seen[tid] {
					seen[tid] = true
					out = append(out, tid)
				}
				continue
			}
			// a.From is a connector transition; walk back through its
			// own input places to find the real producer(s).
			for _, inArc := range net.InputPlaces(tid) {
				walk(inArc.From.ID)
			}
		}
	}
	walk(placeID)
	return out
}

// reachableNonConnectorConsumers is the mirror of
// reachableNonConnectorProducers, walking forward through connectors.
func reachableNonConnectorConsumers(net petri.Net, kept map[string]petri.Transition, placeID string) []string {
	var out []string
	seen := map[string]bool{}
	var walk func(pid string)
	walk = func(pid string) {
		for _, a := range net.OutputTransitions(pid) {
			tid := a.To.ID
			if _, isKept := kept[tid]; isKept {
				if !seen[tid] {
					seen[tid] = true
					out = append(out, tid)
				}
				continue
			}
			for _, outArc := range net.OutputPlaces(tid) {
				walk(outArc.To.ID)
			}
		}
	}
	walk(placeID)
	return out
}

func hasCycle(direct map[string]map[string]map[string]bool) bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var visit func(node string) bool
	visit = func(node string) bool {
		color[node] = gray
		for next := range direct[node] {
			switch color[next] {
			case gray:
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		color[node] = black
		return false
	}

	var nodes []string
	for from, tos := range direct {
		nodes = append(nodes, from)
		for to := range tos {
			nodes = append(nodes, to)
		}
	}
	sort.Strings(nodes)
	for _, n := range nodes {
		if color[n] == white {
			if visit(n) {
				return true
			}
		}
	}
	return false
}

// transitiveReduce removes any edge A->C for which a path A->...->C exists
// through other retained edges (§4.6 step 3).
func transitiveReduce(direct map[string]map[string]map[string]bool) map[string]map[string]bool {
	reachableVia := func(from, to string, viaOnly bool) bool {
		visited := map[string]bool{from: true}
		stack := []string{from}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for next := range direct[n] {
				if viaOnly && n == from && next == to {
					continue // skip the direct edge itself
				}
				if next == to {
					return true
				}
				if !visited[next] {
					visited[next] = true
					stack = append(stack, next)
				}
			}
		}
		return false
	}

	reduced := map[string]map[string]bool{}
	for from, tos := range direct {
		for to := range tos {
			if reachableVia(from, to, true) {
				continue // a longer path exists; this direct edge is redundant
			}
			if _, ok := reduced[from]; !ok {
				reduced[from] = map[string]bool{}
			}
			reduced[from][to] = true
		}
	}
	return reduced
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
