package live

import (
	"github.com/vango-dev/memval/pkg/memval"
)

// State is the wire form of a snapshot.
type State struct {
	Name    string `json:"name"`
	State   string `json:"state"`
	Value   any    `json:"value"`
	Version uint64 `json:"version"`
}

func newState(name string, snap memval.Snapshot[any]) State {
	s := State{
		Name:    name,
		State:   snap.State().String(),
		Version: snap.Version(),
	}
	if v, ok := snap.Get(); ok {
		s.Value = v
	}
	return s
}

// Op is a client request received over a WebSocket.
type Op struct {
	// Op is "set", "eval" or "delete".
	Op    string `json:"op"`
	Value any    `json:"value,omitempty"`
	Expr  string `json:"expr,omitempty"`
}

// Op names.
const (
	OpSet    = "set"
	OpEval   = "eval"
	OpDelete = "delete"
)

// ErrorReply is sent for a request that could not be applied.
type ErrorReply struct {
	Error string `json:"error"`
	Op    string `json:"op,omitempty"`
}

// literal turns a decoded JSON value into an update. JSON null clears.
func literal(v any) memval.Update[any] {
	if v == nil {
		return memval.Clear[any]()
	}
	return memval.Literal(v)
}
