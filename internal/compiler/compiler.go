// Package compiler translates an intent spec into a Petri net, per §4.3.
// For each step it emits a net fragment, then stitches fragments together
// through shared places derived from the step's declared dependencies.
//
// The translation is grounded on the teacher's CompileWorkflowSchema
// (cmd/workflow-runner/compiler/ir.go): a per-node-type emission switch
// followed by an edge-wiring pass, generalized here from the teacher's
// flat node/edge schema to the richer step-type/fragment model of §3.6
// and §4.3.
package compiler

import (
	"fmt"

	"github.com/lyzr/workflowverify/internal/intent"
	"github.com/lyzr/workflowverify/internal/petri"
	"github.com/lyzr/workflowverify/internal/verrors"
)

// entryPoint is where upstream tokens must land for a step to begin. Most
// step types expose a single transition as their entry (is_enabled then
// naturally ANDs every incoming dependency); CHOICE instead exposes a
// single shared place, since multiple alternative transitions must be
// able to read the same incoming token.
type entryPoint struct {
	isPlace    bool
	transition string
	place      string
}

// exitPoint is where a step deposits its completion token(s). Most step
// types expose a single transition (their output arcs can fan out to
// several shared places); CHOICE instead exposes one place per path, since
// only one path's transition actually fires.
type exitPoint struct {
	isPlaces    bool
	transition  string
	places      []string
}

// fragment records how one step's compiled pieces connect to the rest of
// the net.
type fragment struct {
	stepID   string
	stepType intent.StepType
	entry    entryPoint
	exit     exitPoint

	// native entry/exit places/transition used when the step is a root or
	// a leaf (no dependents): p_pre_<id>, p_post_<id> and friends.
	nativeEntryPlace string
	nativeExitPlace  string
}

// Compile translates spec into a Petri net. Compilation aborts with
// verrors.ErrInvalidIntent if spec fails validation (§7); otherwise it
// returns a net satisfying §3.5's invariants.
func Compile(spec intent.IntentSpec) (petri.Net, error) {
	spec = spec.WithSchemaVersionDefault()
	if err := spec.ValidateErr(); err != nil {
		return petri.Net{}, err
	}

	b := petri.NewBuilder(spec.Name).WithDescription(spec.Description)

	fragments := make(map[string]*fragment, len(spec.Steps))
	for _, step := range spec.Steps {
		f, err := emitFragment(b, step)
		if err != nil {
			return petri.Net{}, err
		}
		fragments[step.ID] = f
	}

	dependentsOf := make(map[string][]string, len(spec.Steps))
	for _, step := range spec.Steps {
		for _, dep := range step.Dependencies {
			dependentsOf[dep] = append(dependentsOf[dep], step.ID)
		}
	}

	stitchDependencies(b, spec, fragments)
	activateRoots(b, spec, fragments, dependentsOf)

	return b.Build()
}

// emitFragment emits the net fragment for one step, per the translation
// table of §4.3, and returns the fragment's wiring description.
func emitFragment(b *petri.Builder, step intent.IntentStep) (*fragment, error) {
	switch step.Type {
	case intent.StepAction:
		return emitAction(b, step), nil
	case intent.StepChoice:
		return emitChoice(b, step), nil
	case intent.StepParallel:
		return emitParallel(b, step), nil
	case intent.StepSync:
		return emitSync(b, step), nil
	case intent.StepSequence:
		return emitSequence(step), nil
	default:
		if step.Type.IsAdvancedPattern() {
			return emitAdvancedPattern(b, step), nil
		}
		return nil, fmt.Errorf("%w: unknown step type %q for step %q", verrors.ErrInvalidIntent, step.Type, step.ID)
	}
}

func emitAction(b *petri.Builder, step intent.IntentStep) *fragment {
	return emitActionLike(b, step, nil)
}

// emitActionLike emits an ACTION-shaped fragment (pre place, post place,
// one transition), merging extraMetadata into the transition's metadata.
// Shared by emitAction and emitAdvancedPattern so the latter only needs to
// contribute its pattern flag.
func emitActionLike(b *petri.Builder, step intent.IntentStep, extraMetadata map[string]any) *fragment {
	pre := "p_pre_" + step.ID
	post := "p_post_" + step.ID
	tid := "t_" + step.ID

	b.AddPlace(petri.NewPlace(pre, "pre: "+step.ID))
	b.AddPlace(petri.NewPlace(post, "post: "+step.ID))

	t := petri.NewTransition(tid, step.ID)
	t.Guard = step.When
	t.Description = step.Description
	t.Action = deriveActionLabel(step.Description)
	t.Metadata = cloneMetadata(step.Metadata)
	if len(extraMetadata) > 0 {
		if t.Metadata == nil {
			t.Metadata = map[string]any{}
		}
		for k, v := range extraMetadata {
			t.Metadata[k] = v
		}
	}
	t.InhibitorConditions = conditionMap(step.Condition)
	applyRetryAndTimeout(&t, step)
	b.AddTransition(t)

	// Entry/exit arcs are added lazily by activateRoots/stitchDependencies
	// depending on whether this step is a root and/or has dependents, so
	// that a non-root step's pre-place and a leafless step's post-place
	// stay declared but unconnected rather than creating an unreachable
	// input requirement (§9, open question 1).
	return &fragment{
		stepID:           step.ID,
		stepType:         step.Type,
		entry:            entryPoint{transition: tid},
		exit:             exitPoint{transition: tid},
		nativeEntryPlace: pre,
		nativeExitPlace:  post,
	}
}

// emitAdvancedPattern implements §4.3's minimum requirement for LOOP,
// NESTED_CONDITIONAL, EVENT_TRIGGER, ERROR_HANDLER, COMPENSATION,
// CIRCUIT_BREAKER, FAN_OUT_FAN_IN, PIPELINE_STAGE, and
// RESOURCE_CONSTRAINED steps (§9, open question 2): a single transition
// carrying a metadata flag naming the pattern, shaped like an ACTION
// fragment so the rest of the net can still route tokens through it.
func emitAdvancedPattern(b *petri.Builder, step intent.IntentStep) *fragment {
	return emitActionLike(b, step, map[string]any{advancedPatternFlag(step.Type): true})
}

func advancedPatternFlag(t intent.StepType) string {
	switch t {
	case intent.StepLoop:
		return "isLoop"
	case intent.StepNestedConditional:
		return "isNestedConditional"
	case intent.StepEventTrigger:
		return "isEventTrigger"
	case intent.StepErrorHandler:
		return "isErrorHandler"
	case intent.StepCompensation:
		return "isCompensation"
	case intent.StepCircuitBreaker:
		return "isCircuitBreaker"
	case intent.StepFanOutFanIn:
		return "isFanOutFanIn"
	case intent.StepPipelineStage:
		return "isPipelineStage"
	case intent.StepResourceConstrained:
		return "isResourceConstrained"
	default:
		return "isAdvancedPattern"
	}
}

func emitChoice(b *petri.Builder, step intent.IntentStep) *fragment {
	inputPlace := "p_choice_input_" + step.ID
	b.AddPlace(petri.NewPlace(inputPlace, "choice input: "+step.ID))

	paths := extractPaths(step)
	var exitPlaces []string
	for _, path := range paths {
		tid := fmt.Sprintf("t_%s_%s", step.ID, path)
		outPlace := fmt.Sprintf("p_choice_output_%s_%s", step.ID, path)
		b.AddPlace(petri.NewPlace(outPlace, fmt.Sprintf("choice output %s: %s", path, step.ID)))

		// choiceCondition records the path's selector for callers that want
		// to steer a simulation (e.g. an interactive decider); it is not
		// wired as the transition's own Guard, since every path must stay
		// structurally enabled together so the simulator's seeded tie-break
		// — not guard evaluation — is what resolves which one fires.
		t := petri.NewTransition(tid, fmt.Sprintf("%s:%s", step.ID, path))
		t.Metadata = map[string]any{
			"isChoice":        true,
			"choiceCondition": fmt.Sprintf("choice == '%s'", path),
		}
		b.AddTransition(t)
		b.AddArc(petri.PlaceToTransition(inputPlace, tid, 1))
		b.AddArc(petri.TransitionToPlace(tid, outPlace, 1))

		exitPlaces = append(exitPlaces, outPlace)
	}

	return &fragment{
		stepID:           step.ID,
		stepType:         step.Type,
		entry:            entryPoint{isPlace: true, place: inputPlace},
		exit:             exitPoint{isPlaces: true, places: exitPlaces},
		nativeEntryPlace: inputPlace,
	}
}

func extractPaths(step intent.IntentStep) []string {
	var paths []string
	if step.Metadata != nil {
		switch v := step.Metadata["paths"].(type) {
		case []string:
			paths = append(paths, v...)
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					paths = append(paths, s)
				}
			}
		}
	}
	if len(paths) == 0 {
		paths = []string{"default"}
	}
	return paths
}

func emitParallel(b *petri.Builder, step intent.IntentStep) *fragment {
	inputPlace := "p_parallel_input_" + step.ID
	outputPlace := "p_parallel_output_" + step.ID
	branchA := "p_parallel_branch_a_" + step.ID
	branchB := "p_parallel_branch_b_" + step.ID
	forkID := "t_" + step.ID + "_fork"
	joinID := "t_" + step.ID + "_join"

	b.AddPlace(petri.NewPlace(inputPlace, "parallel input: "+step.ID))
	b.AddPlace(petri.NewPlace(outputPlace, "parallel output: "+step.ID))
	b.AddPlace(petri.NewPlace(branchA, "branch a: "+step.ID))
	b.AddPlace(petri.NewPlace(branchB, "branch b: "+step.ID))

	fork := petri.NewTransition(forkID, step.ID+":fork")
	fork.Metadata = map[string]any{"isFork": true}
	b.AddTransition(fork)
	b.AddArc(petri.TransitionToPlace(forkID, branchA, 1))
	b.AddArc(petri.TransitionToPlace(forkID, branchB, 1))

	join := petri.NewTransition(joinID, step.ID+":join")
	join.Metadata = map[string]any{"isJoin": true}
	b.AddTransition(join)
	b.AddArc(petri.PlaceToTransition(branchA, joinID, 1))
	b.AddArc(petri.PlaceToTransition(branchB, joinID, 1))

	return &fragment{
		stepID:           step.ID,
		stepType:         step.Type,
		entry:            entryPoint{transition: forkID},
		exit:             exitPoint{transition: joinID},
		nativeEntryPlace: inputPlace,
		nativeExitPlace:  outputPlace,
	}
}

// emitSync resolves §9 open question 3: the source's sync steps with no
// dependencies are never activated. This implementation gives every SYNC
// step a native input place (p_sync_input_<id>) exactly like ACTION's
// p_pre, so a root SYNC step still receives the initial token and its join
// transition can fire.
func emitSync(b *petri.Builder, step intent.IntentStep) *fragment {
	inputPlace := "p_sync_input_" + step.ID
	outputPlace := "p_sync_output_" + step.ID
	joinID := "t_" + step.ID

	b.AddPlace(petri.NewPlace(inputPlace, "sync input: "+step.ID))
	b.AddPlace(petri.NewPlace(outputPlace, "sync output: "+step.ID))

	join := petri.NewTransition(joinID, step.ID)
	join.Metadata = map[string]any{"isJoin": true}
	b.AddTransition(join)

	return &fragment{
		stepID:           step.ID,
		stepType:         step.Type,
		entry:            entryPoint{transition: joinID},
		exit:             exitPoint{transition: joinID},
		nativeEntryPlace: inputPlace,
		nativeExitPlace:  outputPlace,
	}
}

// emitSequence implements §4.3's "no emission" rule: a SEQUENCE step
// contributes nothing to the net itself. It is made transparent during
// stitching instead (see effectiveSources).
func emitSequence(step intent.IntentStep) *fragment {
	return &fragment{stepID: step.ID, stepType: step.Type}
}

// effectiveSources resolves a dependency id through any chain of SEQUENCE
// steps (which emit nothing) to the set of real fragment ids whose exit
// should feed whatever depends on it.
func effectiveSources(spec intent.IntentSpec, stepID string, seen map[string]bool) []string {
	if seen[stepID] {
		return nil
	}
	seen[stepID] = true

	step, ok := spec.Step(stepID)
	if !ok {
		return nil
	}
	if step.Type != intent.StepSequence {
		return []string{stepID}
	}
	var out []string
	for _, dep := range step.Dependencies {
		out = append(out, effectiveSources(spec, dep, seen)...)
	}
	return out
}

// stitchDependencies implements §4.3's dependency-stitching pass,
// generalized to every step type (§9, open question 1: the source only
// wired ACTION dependents; here every step type's declared entry/exit
// points are wired identically).
func stitchDependencies(b *petri.Builder, spec intent.IntentSpec, fragments map[string]*fragment) {
	for _, step := range spec.Steps {
		if step.Type == intent.StepSequence {
			continue // sequence steps never receive a shared-place wiring of their own
		}
		target := fragments[step.ID]

		for _, dep := range step.Dependencies {
			sources := effectiveSources(spec, dep, map[string]bool{})
			for _, srcID := range sources {
				src := fragments[srcID]
				if src == nil {
					continue
				}
				sharedPlace := fmt.Sprintf("p_shared_%s_%s", srcID, step.ID)
				b.AddPlace(petri.NewPlace(sharedPlace, "shared: "+srcID+"->"+step.ID))

				wireExit(b, src, sharedPlace)
				wireEntry(b, target, sharedPlace)
			}
		}
	}
}

// wireExit connects a fragment's exit point(s) into sharedPlace.
func wireExit(b *petri.Builder, src *fragment, sharedPlace string) {
	if !src.exit.isPlaces {
		b.AddArc(petri.TransitionToPlace(src.exit.transition, sharedPlace, 1))
		return
	}
	for i, place := range src.exit.places {
		connID := fmt.Sprintf("t_conn_%s_%d_to_%s", src.stepID, i, sharedPlace)
		conn := petri.NewTransition(connID, "connector")
		conn.Metadata = map[string]any{"isDependencyConnector": true}
		b.AddTransition(conn)
		b.AddArc(petri.PlaceToTransition(place, connID, 1))
		b.AddArc(petri.TransitionToPlace(connID, sharedPlace, 1))
	}
}

// wireEntry connects sharedPlace into a fragment's entry point.
func wireEntry(b *petri.Builder, target *fragment, sharedPlace string) {
	if !target.entry.isPlace {
		b.AddArc(petri.PlaceToTransition(sharedPlace, target.entry.transition, 1))
		return
	}
	connID := "t_conn_to_" + sharedPlace
	conn := petri.NewTransition(connID, "connector")
	conn.Metadata = map[string]any{"isDependencyConnector": true}
	b.AddTransition(conn)
	b.AddArc(petri.PlaceToTransition(sharedPlace, connID, 1))
	b.AddArc(petri.TransitionToPlace(connID, target.entry.place, 1))
}

// activateRoots implements §4.3's final step: a token is placed in the
// pre-place of every root step (no dependencies). For transition-entry
// fragments this also requires the native-entry-place -> entry-transition
// arc, added here rather than at emission time so a non-root step's native
// entry place stays declared but unconnected (§9, open question 1).
func activateRoots(b *petri.Builder, spec intent.IntentSpec, fragments map[string]*fragment, dependentsOf map[string][]string) {
	for _, step := range spec.Steps {
		if step.Type == intent.StepSequence {
			continue
		}
		if len(step.Dependencies) != 0 {
			continue
		}
		f := fragments[step.ID]
		if f.entry.isPlace {
			// CHOICE: the per-path transitions already read directly from
			// the native entry place; it only needs the initial token.
			b.SetInitialTokens(f.nativeEntryPlace, 1)
			continue
		}
		b.AddArc(petri.PlaceToTransition(f.nativeEntryPlace, f.entry.transition, 1))
		b.SetInitialTokens(f.nativeEntryPlace, 1)
	}

	// Leaf fragments (no dependents) still need their native exit wired so
	// their completion is observable in the final marking.
	for _, step := range spec.Steps {
		if step.Type == intent.StepSequence {
			continue
		}
		f := fragments[step.ID]
		if len(dependentsOf[step.ID]) != 0 {
			continue // wired to a shared place instead, by stitchDependencies
		}
		if f.exit.isPlaces {
			continue // CHOICE's per-path output places are already its terminal places
		}
		if f.nativeExitPlace == "" {
			continue
		}
		b.AddArc(petri.TransitionToPlace(f.exit.transition, f.nativeExitPlace, 1))
	}
}

func cloneMetadata(md map[string]any) map[string]any {
	if md == nil {
		return nil
	}
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

func conditionMap(c map[string]any) map[string]any {
	if len(c) == 0 {
		return nil
	}
	return cloneMetadata(c)
}

func applyRetryAndTimeout(t *petri.Transition, step intent.IntentStep) {
	t.TimeoutMs = step.TimeoutMs
	if len(step.RetryPolicy) == 0 {
		return
	}
	rp := &petri.RetryPolicy{}
	if v, ok := step.RetryPolicy["max_retries"].(int); ok {
		rp.MaxRetries = v
	}
	if v, ok := step.RetryPolicy["backoff_multiplier"].(float64); ok {
		rp.BackoffMultiplier = v
	}
	if v, ok := step.RetryPolicy["initial_delay_ms"].(int); ok {
		rp.InitialDelayMs = v
	}
	if v, ok := step.RetryPolicy["max_delay_ms"].(int); ok {
		rp.MaxDelayMs = v
	}
	if v, ok := step.RetryPolicy["retry_on"].([]string); ok {
		rp.RetryOn = v
	}
	t.Retry = rp
}
