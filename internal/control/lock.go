package control

import "sync"

// configLock is spec.md §5's config_rlock: "a thread that has acquired it
// may re-enter... because high-level methods call lower-level methods
// that also lock." Go has no built-in re-entrant mutex, and the usual
// workaround (tracking the owning goroutine's runtime ID) is exactly the
// kind of fragile reflection-over-the-runtime this corpus avoids. Instead
// every exported API method takes configLock exactly once at its
// outermost call and every lower-level helper it calls is unexported and
// lock-free by construction -- re-entrancy is structural (there is only
// ever one lock acquisition per public call), not runtime-detected. See
// SPEC_FULL.md's Open Question decision for "global ControlAPI
// singleton."
type configLock struct {
	mu sync.Mutex
}

func (l *configLock) Lock()   { l.mu.Lock() }
func (l *configLock) Unlock() { l.mu.Unlock() }
