// Package resync provides a resettable sync.Once, convenient to reload
// singletons between tests.
package resync

import (
	"sync"
	"sync/atomic"
)

// Once behaves like sync.Once but can be reset.
type Once struct {
	mu   sync.Mutex
	done atomic.Bool
}

// Do calls f only once until the next Reset.
func (o *Once) Do(f func()) {
	if o.done.Load() {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.done.Load() {
		defer o.done.Store(true)
		f()
	}
}

// Reset forgets the previous call so that the next Do runs again.
func (o *Once) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.done.Store(false)
}
