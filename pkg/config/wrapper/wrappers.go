package wrapper

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/code-payments/token-manager-server/pkg/config"
)

// ErrUnsupportedConversion indicates the source produced a type the wrapper
// cannot convert
var ErrUnsupportedConversion = errors.New("config: wrapper conversion from source type not implemented")

// converter turns a raw source value into T. Sources such as the environment
// produce []byte, in-memory sources produce T directly.
type converter[T any] func(raw interface{}) (T, error)

type typedConfig[T any] struct {
	source       config.Config
	defaultValue T
	convert      converter[T]

	mu        sync.RWMutex
	lastValue T
}

func newTypedConfig[T any](source config.Config, defaultValue T, convert converter[T]) *typedConfig[T] {
	return &typedConfig[T]{
		source:       source,
		defaultValue: defaultValue,
		convert:      convert,
		lastValue:    defaultValue,
	}
}

// GetSafe returns the source's value. An unset source yields the default. On
// failure a best-effort last known value is returned along with the error.
func (c *typedConfig[T]) GetSafe(ctx context.Context) (T, error) {
	raw, err := c.source.Get(ctx)
	if err == config.ErrNoValue {
		c.store(c.defaultValue)
		return c.defaultValue, nil
	} else if err != nil {
		return c.load(), err
	}

	value, err := c.convert(raw)
	if err != nil {
		return c.load(), err
	}

	c.store(value)
	return value, nil
}

func (c *typedConfig[T]) Get(ctx context.Context) T {
	value, _ := c.GetSafe(ctx)
	return value
}

func (c *typedConfig[T]) Shutdown() {
	c.source.Shutdown()
}

func (c *typedConfig[T]) load() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastValue
}

func (c *typedConfig[T]) store(value T) {
	c.mu.Lock()
	c.lastValue = value
	c.mu.Unlock()
}

// parsed builds a converter accepting T as is, or parsing it from text
func parsed[T any](parse func(string) (T, error)) converter[T] {
	return func(raw interface{}) (T, error) {
		switch typed := raw.(type) {
		case T:
			return typed, nil
		case []byte:
			return parse(string(typed))
		case string:
			return parse(typed)
		default:
			var zero T
			return zero, ErrUnsupportedConversion
		}
	}
}

// NewBoolConfig returns a bool config over the source
func NewBoolConfig(source config.Config, defaultValue bool) config.Bool {
	return newTypedConfig(source, defaultValue, parsed(strconv.ParseBool))
}

// NewDurationConfig returns a duration config over the source. Text values
// use time.ParseDuration syntax.
func NewDurationConfig(source config.Config, defaultValue time.Duration) config.Duration {
	return newTypedConfig(source, defaultValue, parsed(time.ParseDuration))
}

// NewFloat64Config returns a float64 config over the source
func NewFloat64Config(source config.Config, defaultValue float64) config.Float64 {
	return newTypedConfig(source, defaultValue, parsed(func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	}))
}

// NewStringConfig returns a string config over the source
func NewStringConfig(source config.Config, defaultValue string) config.String {
	return newTypedConfig(source, defaultValue, parsed(func(s string) (string, error) {
		return s, nil
	}))
}

// NewUint64Config returns a uint64 config over the source. In-memory sources
// may also hold a uint.
func NewUint64Config(source config.Config, defaultValue uint64) config.Uint64 {
	parseUint := parsed(func(s string) (uint64, error) {
		return strconv.ParseUint(s, 10, 64)
	})
	return newTypedConfig(source, defaultValue, func(raw interface{}) (uint64, error) {
		if typed, ok := raw.(uint); ok {
			return uint64(typed), nil
		}
		return parseUint(raw)
	})
}
