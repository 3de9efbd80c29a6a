package backoff

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConstant(t *testing.T) {
	s := Constant(250 * time.Millisecond)
	for attempts := uint(1); attempts < 10; attempts++ {
		assert.Equal(t, 250*time.Millisecond, s(attempts))
	}
}

func TestExponential(t *testing.T) {
	s := Exponential(2*time.Second, 3)
	for i, expected := range []time.Duration{2 * time.Second, 6 * time.Second, 18 * time.Second, 54 * time.Second} {
		assert.Equal(t, expected, s(uint(i+1)))
	}
	assert.Equal(t, 2*time.Second, s(0))
}

func TestBinaryExponential(t *testing.T) {
	s := BinaryExponential(100 * time.Millisecond)
	for i, expected := range []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond} {
		assert.Equal(t, expected, s(uint(i+1)))
	}
}

func TestExponential_Saturates(t *testing.T) {
	s := BinaryExponential(time.Second)
	assert.Equal(t, time.Duration(math.MaxInt64), s(200))
}
