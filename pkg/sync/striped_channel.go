package sync

import (
	"context"
	"sync"
)

// StripedChannel fans values out over a fixed set of queues. Values sharing a
// key always land on the same queue, so a single consumer per queue observes
// them in send order.
type StripedChannel[T any] struct {
	ring      *ring
	queues    []chan T
	closeOnce sync.Once
}

// NewStripedChannel returns a StripedChannel with count queues, each buffering
// up to queueSize values.
func NewStripedChannel[T any](count, queueSize uint) *StripedChannel[T] {
	r := newRing("chan", count, virtualNodesPerStripe)

	queues := make([]chan T, r.stripes)
	for i := range queues {
		queues[i] = make(chan T, queueSize)
	}

	return &StripedChannel[T]{
		ring:   r,
		queues: queues,
	}
}

// Receivers returns every queue, in stripe order
func (c *StripedChannel[T]) Receivers() []<-chan T {
	receivers := make([]<-chan T, len(c.queues))
	for i, queue := range c.queues {
		receivers[i] = queue
	}
	return receivers
}

// TrySend queues the value without blocking and reports whether there was room
func (c *StripedChannel[T]) TrySend(key []byte, value T) bool {
	select {
	case c.queues[c.ring.stripe(key)] <- value:
		return true
	default:
		return false
	}
}

// Send queues the value, waiting for room until ctx is done
func (c *StripedChannel[T]) Send(ctx context.Context, key []byte, value T) error {
	select {
	case c.queues[c.ring.stripe(key)] <- value:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes every queue. Sending after Close panics.
func (c *StripedChannel[T]) Close() {
	c.closeOnce.Do(func() {
		for _, queue := range c.queues {
			close(queue)
		}
	})
}
