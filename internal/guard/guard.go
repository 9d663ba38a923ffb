// Package guard evaluates the small guard-expression grammar of spec
// §4.1.1: a bare identifier resolved against a context map (truthy means
// enabled), or a comparison "LHS op RHS" where op is one of
// == != > >= < <= and either side may be a number literal, boolean
// literal, quoted string, or context key. Missing keys fail closed.
//
// Expressions are compiled to CEL programs and cached, mirroring the cache
// + mutex shape of the teacher's condition.Evaluator
// (cmd/workflow-runner/condition/evaluator.go), adapted from its
// "output"/"ctx" two-variable model to a single flat context map, which is
// what the §4.1.1 grammar actually needs.
package guard

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/lyzr/workflowverify/internal/verrors"
)

// Evaluator compiles and caches guard expressions.
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]cel.Program
	env   *cel.Env
}

// NewEvaluator builds an evaluator with a CEL environment exposing a single
// dynamically-typed "ctx" map, matching the grammar's single context.
func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(cel.Variable("ctx", cel.DynType))
	if err != nil {
		return nil, fmt.Errorf("guard: create cel env: %w", err)
	}
	return &Evaluator{cache: make(map[string]cel.Program), env: env}, nil
}

// Eval evaluates expr against context. A missing key, a compile error, or a
// non-boolean result is reported as verrors.ErrGuardEvalFailed; callers
// recover this locally as false (fail-closed) per §7.
func (e *Evaluator) Eval(expr string, context map[string]any) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true, nil // absent guard never blocks firing
	}

	prg, err := e.programFor(expr)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", verrors.ErrGuardEvalFailed, expr, err)
	}

	out, _, err := prg.Eval(map[string]any{"ctx": context})
	if err != nil {
		// CEL reports missing-key lookups as an evaluation error; the
		// grammar specifies that as fail-closed false, not a hard abort.
		return false, fmt.Errorf("%w: %s: %v", verrors.ErrGuardEvalFailed, expr, err)
	}

	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s: expression did not evaluate to bool", verrors.ErrGuardEvalFailed, expr)
	}
	return b, nil
}

func (e *Evaluator) programFor(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.cache[expr]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	celExpr, err := translate(expr)
	if err != nil {
		return nil, err
	}

	ast, issues := e.env.Compile(celExpr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err = e.env.Program(ast)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[expr] = prg
	e.mu.Unlock()
	return prg, nil
}

// ClearCache drops all compiled programs.
func (e *Evaluator) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]cel.Program)
}
