// Package binding adapts memval containers to the subscribe-with-snapshot
// contract used by rendering layers to schedule re-renders.
//
// A rendering layer consumes two functions: subscribe(onChange) returning an
// unsubscribe, and getSnapshot() returning the current state. Both must be
// stable across calls, and getSnapshot must be synchronous and never fail.
// For returns one Binding per container with exactly that shape:
//
//	prefs := memval.NewStored[Prefs](store, "prefs")
//	b := binding.For[Prefs](prefs)
//
//	stop := binding.Observe(b.Subscribe, b.GetSnapshot, func(s memval.Snapshot[Prefs]) {
//	    scheduleRender(s)
//	})
//	defer stop()
//
//	b.Set.Update(func(p Prefs) Prefs { p.Theme = "dark"; return p })
//
// Use and UseAsync are the hook-style entry points: they return the current
// snapshot together with the stable setter, and UseAsync adds a loading flag
// that stays true until a persistent container has hydrated.
package binding
