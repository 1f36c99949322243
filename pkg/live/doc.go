// Package live serves named observables to remote renderers over HTTP and
// WebSocket.
//
// Every value in a Registry is readable and writable with plain HTTP, and
// streamable over a WebSocket that pushes the latest state on connect and
// after every accepted emission:
//
//	GET    /values               list names
//	GET    /values/{name}        current state
//	PUT    /values/{name}        set from a JSON body (null clears)
//	DELETE /values/{name}        remove (persistent values delete their slot)
//	POST   /values/{name}/eval   apply {"expr": "..."} (see package exprupdate)
//	GET    /values/{name}/ws     stream states, accept set/eval/delete ops
//	GET    /metrics              Prometheus metrics
//
// States are encoded as {"name","state","value","version"}. A slow WebSocket
// client only ever receives the most recent state; intermediate states may be
// skipped.
//
// The handler mounts into any router:
//
//	reg := live.NewRegistry()
//	reg.Register("prefs", prefs)
//	srv := live.New(reg, nil)
//	http.ListenAndServe(":7070", srv.Handler())
package live
