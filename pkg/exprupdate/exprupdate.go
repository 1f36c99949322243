// Package exprupdate compiles textual updater expressions into memval updates.
//
// An expression sees the previous state of the container and evaluates to the
// next value:
//
//	value + 1
//	present ? value : 0
//	merge(value, {"theme": "dark"})
//	nil
//
// The environment holds value (the current value, nil when not present),
// present, state ("undetermined", "null" or "present") and version. A nil
// result sets the explicit null state.
package exprupdate

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/vango-dev/memval/pkg/memval"
)

// ErrEmpty is returned when an expression is blank.
var ErrEmpty = errors.New("exprupdate: expression must not be empty")

// Program is a compiled updater expression. It is safe for concurrent use.
type Program struct {
	source  string
	program *vm.Program
}

// Compile parses and type-checks expression.
func Compile(expression string) (*Program, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, ErrEmpty
	}

	options := []expr.Option{
		expr.Env(env{}),
		expr.Function("merge", merge),
		expr.Function("without", without),
	}
	program, err := expr.Compile(expression, options...)
	if err != nil {
		return nil, fmt.Errorf("exprupdate: compile %q: %w", expression, err)
	}
	return &Program{source: expression, program: program}, nil
}

// programs caches compiled expressions for Run.
var programs sync.Map // map[string]*Program

// Run compiles expression (cached) and applies it to obs.
func Run(obs memval.Observable[any], expression string) (memval.Snapshot[any], error) {
	if p, ok := programs.Load(expression); ok {
		return p.(*Program).Apply(obs)
	}
	p, err := Compile(expression)
	if err != nil {
		return obs.Snapshot(), err
	}
	programs.Store(expression, p)
	return p.Apply(obs)
}

// String returns the source expression.
func (p *Program) String() string {
	return p.source
}

// Eval computes the next value from prev without touching any container.
func (p *Program) Eval(prev memval.Snapshot[any]) (any, error) {
	out, err := expr.Run(p.program, environment(prev))
	if err != nil {
		return nil, fmt.Errorf("exprupdate: eval %q: %w", p.source, err)
	}
	return out, nil
}

// Update returns the expression as a memval.Update. An evaluation error keeps
// the previous state and is reported to onError, if set.
func (p *Program) Update(onError func(error)) memval.Update[any] {
	return func(prev memval.Snapshot[any]) memval.Snapshot[any] {
		out, err := p.Eval(prev)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return prev
		}
		if out == nil {
			return memval.None[any]()
		}
		return memval.Some(out)
	}
}

// Apply emits the expression on obs and returns the resulting state. On an
// evaluation error the container is left unchanged and the error returned.
func (p *Program) Apply(obs memval.Observable[any]) (memval.Snapshot[any], error) {
	// The update may run more than once under contention; the last run decides.
	var evalErr error
	update := p.Update(func(err error) { evalErr = err })
	snap := obs.Emit(func(prev memval.Snapshot[any]) memval.Snapshot[any] {
		evalErr = nil
		return update(prev)
	})
	return snap, evalErr
}

// env is the evaluation environment. value is untyped so expressions type
// check against any stored shape.
type env struct {
	Value   any    `expr:"value"`
	Present bool   `expr:"present"`
	State   string `expr:"state"`
	Version int    `expr:"version"`
}

func environment(prev memval.Snapshot[any]) env {
	e := env{
		Present: prev.Present(),
		State:   prev.State().String(),
		Version: int(prev.Version()),
	}
	if v, ok := prev.Get(); ok {
		e.Value = v
	}
	return e
}

// merge(base, patch...) returns a new mapping with the keys of every patch
// applied over base. A nil base counts as an empty mapping.
func merge(params ...any) (any, error) {
	out := map[string]any{}
	for i, p := range params {
		if p == nil {
			continue
		}
		m, ok := p.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("merge: argument %d is %T, not a mapping", i+1, p)
		}
		for k, v := range m {
			out[k] = v
		}
	}
	return out, nil
}

// without(base, keys...) returns a copy of base without keys.
func without(params ...any) (any, error) {
	if len(params) == 0 {
		return nil, errors.New("without: missing mapping")
	}
	if params[0] == nil {
		return map[string]any{}, nil
	}
	base, ok := params[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("without: argument 1 is %T, not a mapping", params[0])
	}

	out := make(map[string]any, len(base))
	for k, v := range base {
		out[k] = v
	}
	for i, p := range params[1:] {
		key, ok := p.(string)
		if !ok {
			return nil, fmt.Errorf("without: argument %d is %T, not a string", i+2, p)
		}
		delete(out, key)
	}
	return out, nil
}
