package circuit_test

import (
	"sync"
	"testing"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/circuit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_StartsClosed(t *testing.T) {
	t.Parallel()

	b := circuit.New()

	require.NoError(t, b.Allow())
	assert.Equal(t, circuit.StateClosed, b.State())
	assert.Empty(t, b.Reason())
}

func TestBreaker_TripIsPermanent(t *testing.T) {
	t.Parallel()

	var calls int
	b := circuit.New(circuit.WithStateChange(func(from, to circuit.State, reason string) {
		calls++
		assert.Equal(t, circuit.StateClosed, from)
		assert.Equal(t, circuit.StateOpen, to)
	}))

	b.Trip("list status 429")
	b.Trip("list status 503")

	err := b.Allow()
	require.ErrorIs(t, err, circuit.ErrOpen)
	assert.Contains(t, err.Error(), "429")
	assert.Equal(t, "list status 429", b.Reason())
	assert.Equal(t, "open", b.State().String())
	assert.Equal(t, 1, calls)
}

func TestBreaker_ConcurrentAllow(t *testing.T) {
	t.Parallel()

	b := circuit.New()
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Allow()
		}()
	}
	b.Trip("forbidden")
	wg.Wait()

	assert.ErrorIs(t, b.Allow(), circuit.ErrOpen)
}
