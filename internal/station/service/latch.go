package service

import "sync/atomic"

// Latch is the hard-stop flag shared between the interrupt watcher and the
// tick loop.  It is the only state touched from more than one goroutine.
type Latch struct {
	set atomic.Bool
}

// Set raises the latch.  Safe to call from any goroutine.
func (l *Latch) Set() { l.set.Store(true) }

// Consume reports whether the latch was set and clears it in the same
// atomic operation.
func (l *Latch) Consume() bool { return l.set.Swap(false) }
