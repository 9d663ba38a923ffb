package compiler

import (
	"testing"

	"github.com/lyzr/workflowverify/internal/intent"
	"github.com/lyzr/workflowverify/internal/petri"
)

// TestLinearActionSequence reproduces §8 scenario 1: s1 -> s2, both ACTION.
func TestLinearActionSequence(t *testing.T) {
	spec := intent.IntentSpec{
		Name: "linear",
		Steps: []intent.IntentStep{
			{ID: "s1", Type: intent.StepAction, Description: "send email"},
			{ID: "s2", Type: intent.StepAction, Description: "generate report", Dependencies: []string{"s1"}},
		},
	}

	net, err := Compile(spec)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(net.Transitions) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(net.Transitions))
	}
	if len(net.Places) != 5 {
		t.Fatalf("expected 4+1=5 places, got %d: %+v", len(net.Places), net.Places)
	}
	if got := net.InitialMarking.Get("p_pre_s1"); got != 1 {
		t.Fatalf("expected initial marking {p_pre_s1: 1}, got %v", net.InitialMarking)
	}
	if net.InitialMarking.Total() != 1 {
		t.Fatalf("expected exactly one initial token, got %v", net.InitialMarking)
	}

	m := net.InitialMarking
	enabled := net.Enabled(m)
	if len(enabled) != 1 || enabled[0].ID != "t_s1" {
		t.Fatalf("expected only t_s1 enabled initially, got %+v", enabled)
	}
	m, err = net.Fire("t_s1", m)
	if err != nil {
		t.Fatalf("fire t_s1: %v", err)
	}
	enabled = net.Enabled(m)
	if len(enabled) != 1 || enabled[0].ID != "t_s2" {
		t.Fatalf("expected only t_s2 enabled after t_s1, got %+v", enabled)
	}
	m, err = net.Fire("t_s2", m)
	if err != nil {
		t.Fatalf("fire t_s2: %v", err)
	}
	if got := m.Get("p_post_s2"); got != 1 {
		t.Fatalf("expected final marking {p_post_s2: 1}, got %v", m)
	}
	if m.Total() != 1 {
		t.Fatalf("expected exactly one token in the final marking, got %v", m)
	}
	if !net.IsTerminal(m) {
		t.Fatal("expected final marking to be terminal")
	}
}

// TestExclusiveChoice reproduces §8 scenario 2.
func TestExclusiveChoice(t *testing.T) {
	spec := intent.IntentSpec{
		Name: "choice",
		Steps: []intent.IntentStep{
			{ID: "c", Type: intent.StepChoice, Metadata: map[string]any{"paths": []string{"a", "b"}}},
		},
	}
	net, err := Compile(spec)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	var tA, tB petri.Transition
	var foundA, foundB bool
	for _, tr := range net.Transitions {
		switch tr.ID {
		case "t_c_a":
			tA, foundA = tr, true
		case "t_c_b":
			tB, foundB = tr, true
		}
	}
	if !foundA || !foundB {
		t.Fatalf("expected t_c_a and t_c_b transitions, got %+v", net.Transitions)
	}
	if !tA.IsChoice() || !tB.IsChoice() {
		t.Fatal("expected both choice transitions to carry isChoice")
	}
	if _, ok := net.Place("p_choice_output_c_a"); !ok {
		t.Fatal("expected p_choice_output_c_a")
	}
	if _, ok := net.Place("p_choice_output_c_b"); !ok {
		t.Fatal("expected p_choice_output_c_b")
	}

	m := net.InitialMarking
	if m.Get("p_choice_input_c") != 1 {
		t.Fatalf("expected initial token in p_choice_input_c, got %v", m)
	}

	// Both paths are structurally enabled (guards are evaluated by the
	// caller via the guard package, not by IsEnabled); firing either one
	// consumes the sole input token and the other becomes disabled.
	next, err := net.Fire("t_c_a", m)
	if err != nil {
		t.Fatalf("fire t_c_a: %v", err)
	}
	if next.Get("p_choice_output_c_a") != 1 {
		t.Fatalf("expected token in p_choice_output_c_a, got %v", next)
	}
	if net.IsEnabled("t_c_b", next) {
		t.Fatal("expected t_c_b to no longer be enabled after t_c_a fired")
	}
	if !net.IsTerminal(next) {
		t.Fatal("expected post-choice marking to be terminal")
	}
}

// TestParallelForkJoin reproduces §8 scenario 3.
func TestParallelForkJoin(t *testing.T) {
	spec := intent.IntentSpec{
		Name: "parallel",
		Steps: []intent.IntentStep{
			{ID: "pf", Type: intent.StepParallel},
		},
	}
	net, err := Compile(spec)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	m := net.InitialMarking
	enabled := net.Enabled(m)
	if len(enabled) != 1 || enabled[0].ID != "t_pf_fork" {
		t.Fatalf("expected only the fork transition enabled, got %+v", enabled)
	}
	m, err = net.Fire("t_pf_fork", m)
	if err != nil {
		t.Fatalf("fire fork: %v", err)
	}
	if m.Get("p_parallel_branch_a_pf") != 1 || m.Get("p_parallel_branch_b_pf") != 1 {
		t.Fatalf("expected both branches marked after fork, got %v", m)
	}

	enabled = net.Enabled(m)
	if len(enabled) != 1 || enabled[0].ID != "t_pf_join" {
		t.Fatalf("expected only the join transition enabled after fork, got %+v", enabled)
	}
	m, err = net.Fire("t_pf_join", m)
	if err != nil {
		t.Fatalf("fire join: %v", err)
	}
	if m.Get("p_parallel_output_pf") != 1 {
		t.Fatalf("expected final marking {p_parallel_output_pf: 1}, got %v", m)
	}
	if !net.IsTerminal(m) {
		t.Fatal("expected final marking to be terminal")
	}
}

// TestSyncRootIsActivatable covers the fix for §9 open question 3: a SYNC
// step with no dependencies must still be able to fire.
func TestSyncRootIsActivatable(t *testing.T) {
	spec := intent.IntentSpec{
		Name: "sync-root",
		Steps: []intent.IntentStep{
			{ID: "j", Type: intent.StepSync},
		},
	}
	net, err := Compile(spec)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if net.InitialMarking.Get("p_sync_input_j") != 1 {
		t.Fatalf("expected sync root to receive an initial token, got %v", net.InitialMarking)
	}
	enabled := net.Enabled(net.InitialMarking)
	if len(enabled) != 1 || enabled[0].ID != "t_j" {
		t.Fatalf("expected the sync join to be enabled as a root, got %+v", enabled)
	}
}

// TestSequenceStepEmitsNothing checks §4.3's "no emission" rule and that
// dependents of a SEQUENCE step stitch directly to the sequence's own
// upstream dependency.
func TestSequenceStepEmitsNothing(t *testing.T) {
	spec := intent.IntentSpec{
		Name: "seq-transparent",
		Steps: []intent.IntentStep{
			{ID: "s1", Type: intent.StepAction},
			{ID: "seq", Type: intent.StepSequence, Dependencies: []string{"s1"}},
			{ID: "s2", Type: intent.StepAction, Dependencies: []string{"seq"}},
		},
	}
	net, err := Compile(spec)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(net.Transitions) != 2 {
		t.Fatalf("expected only s1 and s2 to contribute transitions, got %d: %+v", len(net.Transitions), net.Transitions)
	}
	if _, ok := net.Place("p_shared_s1_s2"); !ok {
		t.Fatal("expected s2 to stitch directly to s1 through the sequence step")
	}
}

// TestDependencyCycleIsRejected checks that Compile refuses to compile an
// intent spec with a dependency cycle rather than producing a malformed net.
func TestDependencyCycleIsRejected(t *testing.T) {
	spec := intent.IntentSpec{
		Name: "cyclic",
		Steps: []intent.IntentStep{
			{ID: "a", Type: intent.StepAction, Dependencies: []string{"b"}},
			{ID: "b", Type: intent.StepAction, Dependencies: []string{"a"}},
		},
	}
	if _, err := Compile(spec); err == nil {
		t.Fatal("expected Compile to reject a cyclic intent spec")
	}
}

// TestAdvancedPatternCompilesWithFlag checks the fallback fragment for
// advanced-pattern step types (§9, open question 2).
func TestAdvancedPatternCompilesWithFlag(t *testing.T) {
	spec := intent.IntentSpec{
		Name: "loopy",
		Steps: []intent.IntentStep{
			{ID: "retry", Type: intent.StepLoop, Description: "retry until success"},
		},
	}
	net, err := Compile(spec)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	tr, ok := net.Transition("t_retry")
	if !ok {
		t.Fatal("expected t_retry transition")
	}
	if v, _ := tr.Metadata["isLoop"].(bool); !v {
		t.Fatalf("expected isLoop metadata flag, got %+v", tr.Metadata)
	}
}
