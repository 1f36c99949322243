package exprupdate

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/memval/pkg/memval"
)

func TestProgramApply(t *testing.T) {
	tests := []struct {
		name    string
		initial any
		expr    string
		want    any
		null    bool
	}{
		{"increment", 1, "value + 1", 2, false},
		{"default when missing", nil, "present ? value : 10", 10, false},
		{"merge mapping", map[string]any{"a": 1}, `merge(value, {"b": 2})`, map[string]any{"a": 1, "b": 2}, false},
		{"without key", map[string]any{"a": 1, "b": 2}, `without(value, "a")`, map[string]any{"b": 2}, false},
		{"append sequence", []any{1}, "concat(value, [2])", []any{1, 2}, false},
		{"string", "ada", `upper(value)`, "ADA", false},
		{"nil sets null", "x", "nil", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []memval.Option[any]
			if tt.initial != nil {
				opts = append(opts, memval.WithInitial[any](tt.initial))
			}
			v := memval.New(opts...)

			p, err := Compile(tt.expr)
			if err != nil {
				t.Fatalf("Compile(%q) error = %v", tt.expr, err)
			}
			snap, err := p.Apply(v)
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}

			if tt.null {
				if !snap.IsNull() {
					t.Errorf("expected null, got %v", snap)
				}
				return
			}
			if !memval.Equal(snap.Value(), tt.want) {
				t.Errorf("Apply() = %v, want %v", snap.Value(), tt.want)
			}
		})
	}
}

func TestProgramEvalErrorKeepsState(t *testing.T) {
	v := memval.New(memval.WithInitial[any]("text"))
	calls := 0
	v.Subscribe(func(memval.Snapshot[any]) error { calls++; return nil })

	p, err := Compile(`merge(value, {"a": 1})`)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	snap, err := p.Apply(v)
	if err == nil {
		t.Fatal("expected an evaluation error")
	}
	if snap.Value() != "text" || calls != 0 {
		t.Errorf("failed update must not change state, got %v after %d broadcasts", snap, calls)
	}
}

func TestCompileErrors(t *testing.T) {
	if _, err := Compile("   "); !errors.Is(err, ErrEmpty) {
		t.Errorf("Compile(blank) error = %v, want ErrEmpty", err)
	}
	if _, err := Compile("value +"); err == nil {
		t.Error("expected a syntax error")
	}
}

func TestProgramEvalEnvironment(t *testing.T) {
	p, err := Compile(`[state, present, version]`)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	out, err := p.Eval(memval.Snapshot[any]{})
	if err != nil {
		t.Fatalf("Eval() error = %v", err)
	}
	if diff := cmp.Diff([]any{"undetermined", false, 0}, out); diff != "" {
		t.Errorf("environment mismatch (-want +got):\n%s", diff)
	}
	if p.String() != `[state, present, version]` {
		t.Errorf("String() = %q", p.String())
	}
}

func TestRun(t *testing.T) {
	v := memval.New[any]()

	for i := 0; i < 3; i++ {
		if _, err := Run(v, "(value ?? 0) + 1"); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	}
	if got := v.Snapshot().Value(); !memval.Equal(got, 3) {
		t.Errorf("value = %v, want 3", got)
	}

	if _, err := Run(v, "value +"); err == nil {
		t.Error("expected compile error from Run")
	}
}
