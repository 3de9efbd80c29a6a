package wrapper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-manager-server/pkg/config"
	"github.com/code-payments/token-manager-server/pkg/config/memory"
)

func TestUint64Config(t *testing.T) {
	ctx := context.Background()
	source := memory.NewConfig(nil)
	c := NewUint64Config(source, 9)

	assert.EqualValues(t, 9, c.Get(ctx))

	for _, raw := range []interface{}{uint64(6), uint(6), []byte("6"), "6"} {
		source.SetValue(raw)
		value, err := c.GetSafe(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 6, value)
	}

	// Conversion failures keep the last known value
	source.SetValue([]byte("six"))
	value, err := c.GetSafe(ctx)
	assert.Error(t, err)
	assert.EqualValues(t, 6, value)

	source.SetValue(int32(6))
	value, err = c.GetSafe(ctx)
	assert.Equal(t, ErrUnsupportedConversion, err)
	assert.EqualValues(t, 6, value)

	source.InduceErrors()
	value, err = c.GetSafe(ctx)
	assert.Error(t, err)
	assert.EqualValues(t, 6, value)
	source.StopInducingErrors()

	// An unset source reverts to the default
	source.ClearValue()
	assert.EqualValues(t, 9, c.Get(ctx))

	c.Shutdown()
	_, err = c.GetSafe(ctx)
	assert.Equal(t, config.ErrShutdown, err)
}

func TestFloat64Config(t *testing.T) {
	ctx := context.Background()
	source := memory.NewConfig(nil)
	c := NewFloat64Config(source, 5)

	assert.Equal(t, 5.0, c.Get(ctx))

	source.SetValue(0.5)
	assert.Equal(t, 0.5, c.Get(ctx))

	source.SetValue([]byte("2.5"))
	assert.Equal(t, 2.5, c.Get(ctx))

	source.SetValue([]byte("fast"))
	value, err := c.GetSafe(ctx)
	assert.Error(t, err)
	assert.Equal(t, 2.5, value)
}

func TestDurationConfig(t *testing.T) {
	ctx := context.Background()
	source := memory.NewConfig(nil)
	c := NewDurationConfig(source, 30*time.Second)

	assert.Equal(t, 30*time.Second, c.Get(ctx))

	source.SetValue(250 * time.Millisecond)
	assert.Equal(t, 250*time.Millisecond, c.Get(ctx))

	source.SetValue([]byte("1m"))
	assert.Equal(t, time.Minute, c.Get(ctx))

	source.SetValue([]byte("60"))
	value, err := c.GetSafe(ctx)
	assert.Error(t, err)
	assert.Equal(t, time.Minute, value)
}

func TestStringConfig(t *testing.T) {
	ctx := context.Background()
	source := memory.NewConfig(nil)
	c := NewStringConfig(source, "mint")

	assert.Equal(t, "mint", c.Get(ctx))

	source.SetValue("mint_and_authority")
	assert.Equal(t, "mint_and_authority", c.Get(ctx))

	source.SetValue([]byte("mint"))
	assert.Equal(t, "mint", c.Get(ctx))

	source.SetValue(42)
	value, err := c.GetSafe(ctx)
	assert.Equal(t, ErrUnsupportedConversion, err)
	assert.Equal(t, "mint", value)
}

func TestBoolConfig(t *testing.T) {
	ctx := context.Background()
	source := memory.NewConfig(nil)
	c := NewBoolConfig(source, false)

	assert.False(t, c.Get(ctx))

	source.SetValue(true)
	assert.True(t, c.Get(ctx))

	source.SetValue([]byte("false"))
	assert.False(t, c.Get(ctx))

	source.SetValue([]byte("yes"))
	value, err := c.GetSafe(ctx)
	assert.Error(t, err)
	assert.False(t, value)
}
