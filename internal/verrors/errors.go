// Package verrors defines the error taxonomy shared by the compiler, net
// model, validator, simulator, and projector. Each kind is a sentinel that
// callers can match with errors.Is; concrete errors wrap the sentinel with
// fmt.Errorf so context survives the wrap.
package verrors

import "errors"

// Sentinel kinds for the error-shaped rows of the taxonomy. Deadlock and
// Cancelled have no sentinel: they are reported as validator/simulator
// statuses, not as errors.
var (
	// ErrInvalidIntent means an intent spec failed validation before compilation.
	ErrInvalidIntent = errors.New("invalid intent")

	// ErrInvalidNet means a constructed net violates a structural invariant.
	ErrInvalidNet = errors.New("invalid net")

	// ErrNotEnabled means fire was called on a transition that is not enabled
	// in the given marking.
	ErrNotEnabled = errors.New("transition not enabled")

	// ErrCyclicPrecedence means the projector found a non-acyclic precedence
	// relation among non-connector transitions.
	ErrCyclicPrecedence = errors.New("cyclic precedence")

	// ErrGuardEvalFailed means a guard or inhibitor expression could not be
	// evaluated in the current context. Callers recover this locally as a
	// fail-closed false rather than aborting.
	ErrGuardEvalFailed = errors.New("guard evaluation failed")

	// ErrExplorationLimit means the validator's kBound or maxTimeMs was
	// reached before exploration finished. Not a failure on its own.
	ErrExplorationLimit = errors.New("exploration limit reached")
)

// Is reports whether err wraps target per errors.Is semantics. Provided as a
// thin re-export so callers only need to import this package for taxonomy
// checks.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
