// Package memval provides observable value containers that can be shared
// between independent consumers outside of any component tree.
//
// A MemoryValue holds one value in memory and broadcasts every accepted change
// to its listeners. A StoredValue wraps a MemoryValue and mirrors it to a
// keyed storage backend: it hydrates once from storage in the background and
// writes every accepted emission back without ever blocking the caller.
//
// Reads are always synchronous and never fail:
//
//	theme := memval.NewStored(store, "theme", memval.WithInitial("light"))
//
//	snap := theme.Snapshot() // "light" right away, the stored value once hydrated
//	theme.Emit(memval.Literal("dark"))
//
//	unsubscribe := theme.Subscribe(func(s memval.Snapshot[string]) error {
//	    log.Println("theme is now", s.Value())
//	    return nil
//	})
//	defer unsubscribe()
//
// # States
//
// A container is undetermined until a value is set or hydration settles.
// Persistent containers report Null when storage was checked and held nothing,
// so consumers can tell "still loading" apart from "confirmed empty".
//
// # Emission
//
// Emit resolves the candidate value from an Update, compares it to the current
// value with deep structural equality and drops it if nothing changed.
// Otherwise the new state is committed before any listener runs, and
// broadcasts are delivered in commit order. Listener failures (returned errors
// or panics) are logged on the warning channel and never reach the emitter.
//
// # Warnings
//
// Storage problems are reported through a process-wide warning channel backed
// by log/slog. Call DisableWarnings to silence it.
package memval
