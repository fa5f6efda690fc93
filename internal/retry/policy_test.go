package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsync/internal/config"
)

func TestDelay_Linear(t *testing.T) {
	p := Policy{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 3 * time.Second, MaxRetries: 5}
	require.Equal(t, time.Duration(0), p.Delay(0))
	require.Equal(t, time.Second, p.Delay(1))
	require.Equal(t, 2*time.Second, p.Delay(2))
	require.Equal(t, 3*time.Second, p.Delay(3))
	require.Equal(t, 3*time.Second, p.Delay(10), "capped at max")
}

func TestDelay_Exponential(t *testing.T) {
	p := Policy{Mode: config.RetryBackoffExponential, Initial: time.Second, Max: 10 * time.Second, MaxRetries: 5}
	require.Equal(t, time.Second, p.Delay(1))
	require.Equal(t, 2*time.Second, p.Delay(2))
	require.Equal(t, 4*time.Second, p.Delay(3))
	require.Equal(t, 8*time.Second, p.Delay(4))
	require.Equal(t, 10*time.Second, p.Delay(5), "capped at max")
}

func TestDelay_Fixed(t *testing.T) {
	p := Policy{Mode: config.RetryBackoffFixed, Initial: 2 * time.Second, Max: time.Minute, MaxRetries: 5}
	require.Equal(t, 2*time.Second, p.Delay(1))
	require.Equal(t, 2*time.Second, p.Delay(7))
}

func TestFromConfig_FallsBackToDefaults(t *testing.T) {
	p := FromConfig(config.RetryConfig{})
	require.Equal(t, DefaultPolicy(), p)

	p = FromConfig(config.RetryConfig{Backoff: "bogus", Initial: -1})
	require.Equal(t, config.RetryBackoffLinear, p.Mode)
	require.Equal(t, time.Second, p.Initial)
}

func TestFromConfig_ClampsInitialToMax(t *testing.T) {
	p := FromConfig(config.RetryConfig{Initial: time.Minute, Max: time.Second})
	require.Equal(t, time.Second, p.Initial)
}

func TestDo_RetriesTransientErrors(t *testing.T) {
	p := Policy{Mode: config.RetryBackoffFixed, Initial: time.Millisecond, Max: time.Millisecond, MaxRetries: 3}

	calls := 0
	err := p.Do(context.Background(), nil, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDo_StopsWhenPredicateSaysPermanent(t *testing.T) {
	p := Policy{Mode: config.RetryBackoffFixed, Initial: time.Millisecond, Max: time.Millisecond, MaxRetries: 3}
	permanent := errors.New("permanent")

	calls := 0
	err := p.Do(context.Background(), func(err error) bool { return false }, func() error {
		calls++
		return permanent
	})
	require.ErrorIs(t, err, permanent)
	require.Equal(t, 1, calls)
}

func TestDo_ExhaustsRetries(t *testing.T) {
	p := Policy{Mode: config.RetryBackoffFixed, Initial: time.Millisecond, Max: time.Millisecond, MaxRetries: 2}

	calls := 0
	err := p.Do(context.Background(), nil, func() error {
		calls++
		return errors.New("still failing")
	})
	require.Error(t, err)
	require.Equal(t, 3, calls, "initial attempt plus two retries")
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())
	require.Error(t, Policy{Initial: 0, Max: time.Second}.Validate())
	require.Error(t, Policy{Initial: time.Second, Max: 0}.Validate())
	require.Error(t, Policy{Initial: time.Second, Max: time.Second, MaxRetries: -1}.Validate())
}
