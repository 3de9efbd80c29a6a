package sync

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keyedValue struct {
	key   string
	value int
}

func TestStripedChannel_PreservesOrderPerKey(t *testing.T) {
	c := NewStripedChannel[keyedValue](8, 16)

	receivers := c.Receivers()
	require.Len(t, receivers, 8)

	var mu sync.Mutex
	seen := make(map[string][]int)

	var wg sync.WaitGroup
	for _, receiver := range receivers {
		wg.Add(1)
		go func(receiver <-chan keyedValue) {
			defer wg.Done()
			for v := range receiver {
				mu.Lock()
				seen[v.key] = append(seen[v.key], v.value)
				mu.Unlock()
			}
		}(receiver)
	}

	keyCount := 32
	valuesPerKey := 100
	for i := 0; i < valuesPerKey; i++ {
		for j := 0; j < keyCount; j++ {
			key := fmt.Sprintf("mint%d", j)
			require.NoError(t, c.Send(context.Background(), []byte(key), keyedValue{key: key, value: i}))
		}
	}

	c.Close()
	wg.Wait()

	require.Len(t, seen, keyCount)
	for key, values := range seen {
		require.Len(t, values, valuesPerKey, key)
		for i, value := range values {
			assert.Equal(t, i, value, key)
		}
	}
}

func TestStripedChannel_Backpressure(t *testing.T) {
	c := NewStripedChannel[int](1, 1)
	key := []byte("mint")

	assert.True(t, c.TrySend(key, 1))
	assert.False(t, c.TrySend(key, 2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, context.Canceled, c.Send(ctx, key, 2))

	assert.Equal(t, 1, <-c.Receivers()[0])
	assert.True(t, c.TrySend(key, 3))

	c.Close()
	c.Close()

	values := c.Receivers()[0]
	assert.Equal(t, 3, <-values)
	_, ok := <-values
	assert.False(t, ok)
}
