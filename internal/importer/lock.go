package importer

import "sync/atomic"

// ImportLock is a non-blocking mutual exclusion flag for import runs.
type ImportLock struct {
	state atomic.Int32 // 0 = free, 1 = held
}

// TryAcquire takes the lock if it is free and reports whether it did.
func (l *ImportLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release frees the lock. Only the holder may call it.
func (l *ImportLock) Release() {
	l.state.Store(0)
}
