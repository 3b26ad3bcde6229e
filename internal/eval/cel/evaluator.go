package cel

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/interpreter"

	"github.com/aescanero/dago-render-helpers/internal/helper"
	"github.com/aescanero/dago-render-helpers/internal/tracking"
)

// Evaluator evaluates CEL expressions against tracked cells
type Evaluator struct {
	env   *cel.Env
	cache map[string]cel.Program
	mu    sync.RWMutex
}

// NewEvaluator creates a new CEL evaluator
func NewEvaluator() *Evaluator {
	// Identifiers are resolved at evaluation time from the store, so the
	// environment carries no declarations
	env, err := cel.NewEnv()
	if err != nil {
		panic(fmt.Sprintf("failed to create CEL environment: %v", err))
	}

	return &Evaluator{
		env:   env,
		cache: make(map[string]cel.Program),
	}
}

// Evaluate evaluates a CEL expression. Every cell the expression references
// is read through the scope and becomes a dependency of the computation.
func (e *Evaluator) Evaluate(s *helper.Scope, expression string, store *tracking.Store) (any, error) {
	// Get or compile program
	program, err := e.getProgram(expression)
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", err)
	}

	out, _, err := program.Eval(&trackedActivation{store: store, scope: s})
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	return out.Value(), nil
}

// getProgram gets a compiled program from cache or compiles it
func (e *Evaluator) getProgram(expression string) (cel.Program, error) {
	// Check cache first (read lock)
	e.mu.RLock()
	if program, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return program, nil
	}
	e.mu.RUnlock()

	// Compile the expression (write lock)
	e.mu.Lock()
	defer e.mu.Unlock()

	// Check again in case another goroutine compiled it
	if program, ok := e.cache[expression]; ok {
		return program, nil
	}

	// Parse only: identifiers are dynamic
	ast, issues := e.env.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("parse error: %w", issues.Err())
	}

	// Generate the program
	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program generation error: %w", err)
	}

	// Cache the program
	e.cache[expression] = program

	return program, nil
}

// ValidateExpression validates a CEL expression without evaluating it
func (e *Evaluator) ValidateExpression(expression string) error {
	_, issues := e.env.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return issues.Err()
	}
	return nil
}

// ClearCache clears the compiled program cache
func (e *Evaluator) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]cel.Program)
}

// Condition returns an expression node evaluating source against store.
func (e *Evaluator) Condition(source string, store *tracking.Store) *Condition {
	return &Condition{evaluator: e, store: store, source: source}
}

// Condition is a CEL expression usable anywhere the helper engine takes an
// expression, such as the test of helper.If.
type Condition struct {
	evaluator *Evaluator
	store     *tracking.Store
	source    string
}

// Source returns the CEL source.
func (c *Condition) Source() string {
	return c.source
}

// Eval implements helper.Expr.
func (c *Condition) Eval(s *helper.Scope) (any, error) {
	return c.evaluator.Evaluate(s, c.source, c.store)
}

// trackedActivation resolves identifiers to cell values through the scope.
type trackedActivation struct {
	store *tracking.Store
	scope *helper.Scope
}

func (a *trackedActivation) ResolveName(name string) (any, bool) {
	cell, ok := a.store.Lookup(name)
	if !ok {
		// Qualified candidates are probes for field selection; only plain
		// identifiers get a cell so a later write invalidates the reader
		if strings.Contains(name, ".") {
			return nil, false
		}
		cell = a.store.Cell(name)
	}
	return a.scope.Read(cell), true
}

func (a *trackedActivation) Parent() interpreter.Activation {
	return nil
}
