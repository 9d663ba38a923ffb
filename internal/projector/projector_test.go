package projector

import (
	"errors"
	"testing"

	"github.com/lyzr/workflowverify/internal/petri"
	"github.com/lyzr/workflowverify/internal/verrors"
)

// TestTransitiveReductionDropsRedundantEdge reproduces §8 scenario 6: a
// precedence relation A->B, B->C, A->C reduces to {A->B, B->C} only.
func TestTransitiveReductionDropsRedundantEdge(t *testing.T) {
	b := petri.NewBuilder("triangle")
	for _, id := range []string{"A", "B", "C"} {
		b.AddTransition(petri.NewTransition(id, id))
	}
	b.AddPlace(petri.NewPlace("p_ab", "p_ab"))
	b.AddPlace(petri.NewPlace("p_bc", "p_bc"))
	b.AddPlace(petri.NewPlace("p_ac", "p_ac"))
	b.AddPlace(petri.NewPlace("p_root", "p_root"))
	b.AddArc(petri.PlaceToTransition("p_root", "A", 1))
	b.AddArc(petri.TransitionToPlace("A", "p_ab", 1))
	b.AddArc(petri.PlaceToTransition("p_ab", "B", 1))
	b.AddArc(petri.TransitionToPlace("B", "p_bc", 1))
	b.AddArc(petri.PlaceToTransition("p_bc", "C", 1))
	b.AddArc(petri.TransitionToPlace("A", "p_ac", 1))
	b.AddArc(petri.PlaceToTransition("p_ac", "C", 1))
	b.SetInitialTokens("p_root", 1)

	net, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	dag, err := Project(net)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if len(dag.Edges) != 2 {
		t.Fatalf("expected exactly 2 retained edges, got %d: %+v", len(dag.Edges), dag.Edges)
	}
	has := func(from, to string) bool {
		for _, e := range dag.Edges {
			if e.From == from && e.To == to {
				return true
			}
		}
		return false
	}
	if !has("A", "B") || !has("B", "C") {
		t.Fatalf("expected edges A->B and B->C, got %+v", dag.Edges)
	}
	if has("A", "C") {
		t.Fatalf("expected the transitively-implied A->C edge to be dropped, got %+v", dag.Edges)
	}
}

func TestIncomingEdgesCarryRealizingPlaces(t *testing.T) {
	b := petri.NewBuilder("two-node")
	b.AddTransition(petri.NewTransition("A", "A"))
	b.AddTransition(petri.NewTransition("B", "B"))
	b.AddPlace(petri.NewPlace("p_root", "p_root"))
	b.AddPlace(petri.NewPlace("p_shared", "p_shared"))
	b.AddArc(petri.PlaceToTransition("p_root", "A", 1))
	b.AddArc(petri.TransitionToPlace("A", "p_shared", 1))
	b.AddArc(petri.PlaceToTransition("p_shared", "B", 1))
	b.SetInitialTokens("p_root", 1)

	net, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	dag, err := Project(net)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	var nodeB *Node
	for i := range dag.Nodes {
		if dag.Nodes[i].ID == "B" {
			nodeB = &dag.Nodes[i]
		}
	}
	if nodeB == nil {
		t.Fatal("expected node B in the projected DAG")
	}
	if len(nodeB.IncomingEdges) != 1 || nodeB.IncomingEdges[0].From != "A" {
		t.Fatalf("expected B's incoming edge to be from A, got %+v", nodeB.IncomingEdges)
	}
	if len(nodeB.IncomingEdges[0].Places) != 1 || nodeB.IncomingEdges[0].Places[0] != "p_shared" {
		t.Fatalf("expected the incoming edge to name p_shared as its realizing place, got %+v", nodeB.IncomingEdges[0])
	}
}

func TestDependencyConnectorsAreFilteredOut(t *testing.T) {
	b := petri.NewBuilder("with-connector")
	b.AddTransition(petri.NewTransition("A", "A"))
	connector := petri.NewTransition("t_conn", "connector")
	connector.Metadata = map[string]any{"isDependencyConnector": true}
	b.AddTransition(connector)
	b.AddTransition(petri.NewTransition("B", "B"))

	b.AddPlace(petri.NewPlace("p_root", "p_root"))
	b.AddPlace(petri.NewPlace("p_mid", "p_mid"))
	b.AddPlace(petri.NewPlace("p_shared", "p_shared"))

	b.AddArc(petri.PlaceToTransition("p_root", "A", 1))
	b.AddArc(petri.TransitionToPlace("A", "p_mid", 1))
	b.AddArc(petri.PlaceToTransition("p_mid", "t_conn", 1))
	b.AddArc(petri.TransitionToPlace("t_conn", "p_shared", 1))
	b.AddArc(petri.PlaceToTransition("p_shared", "B", 1))
	b.SetInitialTokens("p_root", 1)

	net, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	dag, err := Project(net)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	for _, n := range dag.Nodes {
		if n.ID == "t_conn" {
			t.Fatal("expected the connector transition to be filtered out of the DAG nodes")
		}
	}
	if len(dag.Edges) != 1 || dag.Edges[0].From != "A" || dag.Edges[0].To != "B" {
		t.Fatalf("expected a single A->B edge through the connector, got %+v", dag.Edges)
	}
}

func TestDAGAndNodeCarrySpecFields(t *testing.T) {
	b := petri.NewBuilder("single-task").WithID("petri_single")
	task := petri.NewTransition("A", "send email")
	task.Action = "send_email"
	task.Metadata = map[string]any{"inputParams": map[string]any{"to": "ops@example.com"}}
	task.Retry = &petri.RetryPolicy{MaxRetries: 3}
	b.AddTransition(task)
	b.AddPlace(petri.NewPlace("p_root", "p_root"))
	b.AddArc(petri.PlaceToTransition("p_root", "A", 1))
	b.SetInitialTokens("p_root", 1)

	net, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	dag, err := Project(net)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if dag.DerivedFromPetriNetID != "petri_single" || dag.Name != "single-task" {
		t.Fatalf("expected DAG to carry the source net's id/name, got %+v", dag)
	}
	if len(dag.Nodes) != 1 {
		t.Fatalf("expected exactly one node, got %+v", dag.Nodes)
	}
	n := dag.Nodes[0]
	if n.Action != "send_email" || n.MaxRetries != 3 {
		t.Fatalf("expected node to carry action label and max retries, got %+v", n)
	}
	if n.InputParams["to"] != "ops@example.com" {
		t.Fatalf("expected node to carry input params, got %+v", n.InputParams)
	}
	if dag.RootNodeID != "A" {
		t.Fatalf("expected single root to set RootNodeID, got %q", dag.RootNodeID)
	}
}

func TestCyclicPrecedenceIsRejected(t *testing.T) {
	b := petri.NewBuilder("cyclic-precedence")
	b.AddTransition(petri.NewTransition("A", "A"))
	b.AddTransition(petri.NewTransition("B", "B"))
	b.AddPlace(petri.NewPlace("p_ab", "p_ab"))
	b.AddPlace(petri.NewPlace("p_ba", "p_ba"))
	b.AddArc(petri.PlaceToTransition("p_ba", "A", 1))
	b.AddArc(petri.TransitionToPlace("A", "p_ab", 1))
	b.AddArc(petri.PlaceToTransition("p_ab", "B", 1))
	b.AddArc(petri.TransitionToPlace("B", "p_ba", 1))
	b.SetInitialTokens("p_ab", 1)

	net, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	_, err = Project(net)
	if !errors.Is(err, verrors.ErrCyclicPrecedence) {
		t.Fatalf("expected ErrCyclicPrecedence, got %v", err)
	}
}
