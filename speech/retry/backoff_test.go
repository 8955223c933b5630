package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BaSui01/speechflow/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func transient() error {
	return types.NewError(types.ErrTransientNetwork, "connection reset").WithRetryable(true)
}

func TestDelay_DocumentedSequence(t *testing.T) {
	p := NewPolicy(3, time.Second)

	assert.Equal(t, time.Second, Delay(p, 1))
	assert.Equal(t, 2*time.Second, Delay(p, 2))
	assert.Equal(t, 4*time.Second, Delay(p, 3))
	assert.Equal(t, time.Duration(0), Delay(p, 0))
}

func TestDelay_MaxDelayCaps(t *testing.T) {
	p := &Policy{InitialDelay: time.Second, Multiplier: 2, MaxDelay: 3 * time.Second}
	assert.Equal(t, 3*time.Second, Delay(p, 3))
}

func TestDelay_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("delay doubles per attempt", prop.ForAll(
		func(baseMS int, attempt int) bool {
			p := NewPolicy(10, time.Duration(baseMS)*time.Millisecond)
			return Delay(p, attempt+1) == 2*Delay(p, attempt)
		},
		gen.IntRange(1, 5000),
		gen.IntRange(1, 8),
	))

	properties.Property("jitter never drops below the deterministic floor", prop.ForAll(
		func(baseMS int, attempt int) bool {
			plain := NewPolicy(10, time.Duration(baseMS)*time.Millisecond)
			jittered := *plain
			jittered.Jitter = true
			floor := Delay(plain, attempt)
			got := Delay(&jittered, attempt)
			return got >= floor && float64(got) <= float64(floor)*1.25+1
		},
		gen.IntRange(1, 5000),
		gen.IntRange(1, 8),
	))

	properties.TestingRun(t)
}

func TestBackoffRetryer_SucceedsFirstTry(t *testing.T) {
	r := NewBackoffRetryer(NewPolicy(3, time.Millisecond), zap.NewNop())

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoffRetryer_RetriesThenSucceeds(t *testing.T) {
	r := NewBackoffRetryer(NewPolicy(3, time.Millisecond), zap.NewNop())

	calls := 0
	got, err := r.DoWithResult(context.Background(), func() (any, error) {
		calls++
		if calls < 3 {
			return nil, transient()
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestBackoffRetryer_ExhaustsAfterInitialPlusRetries(t *testing.T) {
	var delays []time.Duration
	policy := NewPolicy(3, 10*time.Millisecond)
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	}
	r := NewBackoffRetryer(policy, zap.NewNop())

	calls := 0
	last := types.NewError(types.ErrRateLimited, "rpm exceeded").WithRetryable(true)
	start := time.Now()
	err := r.Do(context.Background(), func() error {
		calls++
		return last
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}, delays)
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)

	var typed *types.Error
	require.True(t, errors.As(err, &typed))
	assert.Same(t, last, typed)
	assert.True(t, types.IsErrorCode(err, types.ErrRateLimited))
}

func TestBackoffRetryer_NonRetryableStopsImmediately(t *testing.T) {
	r := NewBackoffRetryer(NewPolicy(3, time.Millisecond), zap.NewNop())

	for _, code := range []types.ErrorCode{types.ErrAuthentication, types.ErrValidation, types.ErrProvider} {
		calls := 0
		err := r.Do(context.Background(), func() error {
			calls++
			return types.NewError(code, "fatal")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls, "code %s", code)
		assert.Equal(t, code, types.GetErrorCode(err))
	}
}

func TestBackoffRetryer_PlainErrorsNotRetried(t *testing.T) {
	r := NewBackoffRetryer(NewPolicy(3, time.Millisecond), zap.NewNop())

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoffRetryer_CustomClassifier(t *testing.T) {
	sentinel := errors.New("flaky")
	policy := NewPolicy(2, time.Millisecond)
	policy.Classifier = func(err error) bool { return errors.Is(err, sentinel) }
	r := NewBackoffRetryer(policy, zap.NewNop())

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls)
}

func TestBackoffRetryer_ZeroRetries(t *testing.T) {
	r := NewBackoffRetryer(NewPolicy(0, time.Millisecond), zap.NewNop())

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return transient()
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoffRetryer_ContextCancelDuringBackoff(t *testing.T) {
	r := NewBackoffRetryer(NewPolicy(3, time.Hour), zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	start := time.Now()
	err := r.Do(ctx, func() error {
		calls++
		return transient()
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBackoffRetryer_NilPolicyUsesDefaults(t *testing.T) {
	r := NewBackoffRetryer(nil, nil).(*backoffRetryer)
	assert.Equal(t, 3, r.policy.MaxRetries)
	assert.Equal(t, time.Second, r.policy.InitialDelay)
	assert.NotNil(t, r.policy.Classifier)
}
