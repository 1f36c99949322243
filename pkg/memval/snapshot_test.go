package memval

import (
	"encoding/json"
	"testing"
)

func TestSnapshotStates(t *testing.T) {
	var zero Snapshot[int]
	if zero.Determined() || zero.State() != Undetermined {
		t.Errorf("zero snapshot should be undetermined, got %v", zero.State())
	}

	null := None[int]()
	if !null.Determined() || !null.IsNull() || null.Present() {
		t.Errorf("None() should be a determined null, got %v", null.State())
	}

	some := Some(3)
	if v, ok := some.Get(); !ok || v != 3 {
		t.Errorf("Some(3).Get() = %v, %v", v, ok)
	}
	if some.String() != "3" || null.String() != "null" || zero.String() != "undetermined" {
		t.Errorf("unexpected String() output: %q %q %q", some, null, zero)
	}
}

func TestSnapshotMarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot[[]string]
		want string
	}{
		{"present", Some([]string{"a"}), `["a"]`},
		{"null", None[[]string](), `null`},
		{"undetermined", Snapshot[[]string]{}, `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.snap)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("Marshal() = %s, want %s", data, tt.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	if got := State(9).String(); got != "State(9)" {
		t.Errorf("State(9).String() = %q", got)
	}
}
