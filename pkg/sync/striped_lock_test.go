package sync

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripedLock_SerializesPerKey(t *testing.T) {
	keyCount := 64
	incrementsPerKey := 1000

	l := NewStripedLock(4)
	counters := make([]int, keyCount)

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < keyCount; i++ {
		key := []byte(fmt.Sprintf("mint%d", i))
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start

				for k := 0; k < incrementsPerKey/4; k++ {
					unlock := l.Lock(key)
					counters[i]++
					unlock()
				}
			}(i)
		}
	}

	close(start)
	wg.Wait()

	for _, count := range counters {
		assert.Equal(t, incrementsPerKey, count)
	}
}

func TestStripedLock_SameKeySameMutex(t *testing.T) {
	l := NewStripedLock(16)
	assert.Len(t, l.locks, 16)

	for i := 0; i < 100; i++ {
		key := []byte(fmt.Sprintf("mint%d", i))
		assert.Same(t, l.Get(key), l.Get(key))
	}
}
