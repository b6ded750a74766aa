package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTransient = errors.New("transient")
	errFatal     = errors.New("fatal")
)

func classifyTransient(err error) Decision {
	if errors.Is(err, errTransient) {
		return Retry
	}
	return Propagate
}

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
	}
}

// failingN возвращает операцию, которая падает n раз, затем возвращает "ok".
func failingN(n int, calls *int) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		*calls++
		if *calls <= n {
			return "", errTransient
		}
		return "ok", nil
	}
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	calls := 0
	res, err := Do(context.Background(), fastPolicy(3), classifyTransient, failingN(0, &calls))

	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	for _, n := range []int{1, 2, 4} {
		calls := 0
		res, err := Do(context.Background(), fastPolicy(5), classifyTransient, failingN(n, &calls))

		require.NoError(t, err, "n=%d", n)
		assert.Equal(t, "ok", res)
		assert.Equal(t, n+1, calls, "operation should be invoked N+1 times")
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(3), classifyTransient, failingN(100, &calls))

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, errTransient, "last error must be wrapped")
	assert.Equal(t, 3, Attempts(err))
}

func TestDo_FatalPropagatesImmediately(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(5), classifyTransient, func(context.Context) (int, error) {
		calls++
		return 0, errFatal
	})

	require.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, calls)
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 0, Attempts(err))
}

func TestDo_NilClassifierNeverRetries(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(5), nil, failingN(3, &calls))

	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestDo_ZeroAttemptsMeansOne(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(0), classifyTransient, failingN(5, &calls))

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_CancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := Policy{
		MaxAttempts:  10,
		InitialDelay: time.Hour,
		MaxDelay:     time.Hour,
		OnRetry: func(int, error, time.Duration) {
			// Отменяем контекст до начала ожидания
			cancel()
		},
	}

	calls := 0
	_, err := Do(ctx, p, classifyTransient, failingN(100, &calls))

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, fastPolicy(3), classifyTransient, failingN(0, &calls))

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestDo_OnRetryReportsAttempts(t *testing.T) {
	var seen []int
	p := fastPolicy(4)
	p.OnRetry = func(attempt int, err error, delay time.Duration) {
		seen = append(seen, attempt)
		assert.ErrorIs(t, err, errTransient)
		assert.Positive(t, delay)
	}

	calls := 0
	_, err := Do(context.Background(), p, classifyTransient, failingN(2, &calls))

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestPolicy_BackOffBounds(t *testing.T) {
	p := Policy{InitialDelay: 10 * time.Millisecond, MaxDelay: 40 * time.Millisecond}
	b := p.backOff()

	for i := 0; i < 10; i++ {
		d := b.NextBackOff()
		// jitter ±50% относительно MaxInterval
		assert.LessOrEqual(t, d, 60*time.Millisecond)
		assert.Positive(t, d)
	}
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "retry", Retry.String())
	assert.Equal(t, "propagate", Propagate.String())
}
