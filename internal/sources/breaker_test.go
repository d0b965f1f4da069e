package sources

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/literature-aggregation-service/internal/domain"
)

func newTestBreaker(threshold int, resetTimeout time.Duration) (*CircuitBreaker, *time.Time) {
	b := NewCircuitBreaker("arxiv", threshold, resetTimeout)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		b.RecordFailure()
		assert.Equal(t, BreakerClosed, b.State())
	}

	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())

	err := b.Allow()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCircuitOpen))

	var openErr *domain.CircuitOpenError
	require.True(t, errors.As(err, &openErr))
	assert.Equal(t, "arxiv", openErr.Source)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	assert.Equal(t, 0, b.Failures())

	// Two more failures do not reach the threshold again.
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, BreakerClosed, b.State())
}

func TestCircuitBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	b, now := newTestBreaker(1, time.Minute)

	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())
	require.Error(t, b.Allow())

	// The reset timeout elapses; the next call is admitted as a trial.
	*now = now.Add(time.Minute + time.Second)
	require.NoError(t, b.Allow())
	assert.Equal(t, BreakerHalfOpen, b.State())

	// Concurrent calls during the trial are rejected.
	require.Error(t, b.Allow())
}

func TestCircuitBreaker_HalfOpenSuccessCloses(t *testing.T) {
	b, now := newTestBreaker(1, time.Minute)

	b.RecordFailure()
	*now = now.Add(2 * time.Minute)
	require.NoError(t, b.Allow())

	b.RecordSuccess()
	assert.Equal(t, BreakerClosed, b.State())
	assert.Equal(t, 0, b.Failures())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, now := newTestBreaker(1, time.Minute)

	b.RecordFailure()
	*now = now.Add(2 * time.Minute)
	require.NoError(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())
	require.Error(t, b.Allow())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)

	b.RecordFailure()
	require.Equal(t, BreakerOpen, b.State())

	b.Reset()
	assert.Equal(t, BreakerClosed, b.State())
	assert.Equal(t, 0, b.Failures())
	assert.NoError(t, b.Allow())
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half_open", BreakerHalfOpen.String())
}
