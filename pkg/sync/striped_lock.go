package sync

import (
	"sync"
)

// StripedLock serializes work per key over a fixed pool of mutexes. Distinct
// keys may share a stripe, so holders must never acquire a second key.
type StripedLock struct {
	ring  *ring
	locks []sync.Mutex
}

// NewStripedLock returns a StripedLock with a static number of stripes
func NewStripedLock(stripes uint) *StripedLock {
	r := newRing("lock", stripes, virtualNodesPerStripe)
	return &StripedLock{
		ring:  r,
		locks: make([]sync.Mutex, r.stripes),
	}
}

// Lock blocks until the key's stripe is held and returns its release
func (l *StripedLock) Lock(key []byte) (unlock func()) {
	mu := l.Get(key)
	mu.Lock()
	return mu.Unlock
}

// Get returns the mutex guarding the key
func (l *StripedLock) Get(key []byte) *sync.Mutex {
	return &l.locks[l.ring.stripe(key)]
}
