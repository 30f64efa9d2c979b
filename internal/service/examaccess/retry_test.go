package examaccess

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/yourusername/exam-portal-api/internal/pkg/errors"
)

// recordingSleeper records requested delays instead of sleeping.
type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func (s *recordingSleeper) total() time.Duration {
	var sum time.Duration
	for _, d := range s.delays {
		sum += d
	}
	return sum
}

func testPolicy(s *recordingSleeper) RetryPolicy {
	p := DefaultRetryPolicy()
	p.Sleep = s.Sleep
	return p
}

func networkErr() error {
	return apperrors.E(apperrors.KindNetwork, "test", "", errors.New("connection reset by peer"))
}

func TestRetry_NonNetworkErrorIsNotRetried(t *testing.T) {
	sleeper := &recordingSleeper{}
	calls := 0
	wantErr := apperrors.E(apperrors.KindNotFound, "test", "missing", nil)

	_, err := Retry(context.Background(), testPolicy(sleeper), func(ctx context.Context) (int, error) {
		calls++
		return 0, wantErr
	})

	assert.Equal(t, 1, calls)
	assert.Same(t, wantErr, err)
	assert.Empty(t, sleeper.delays)
}

func TestRetry_PlainErrorIsNotRetried(t *testing.T) {
	sleeper := &recordingSleeper{}
	calls := 0

	err := RetryErr(context.Background(), testPolicy(sleeper), func(ctx context.Context) error {
		calls++
		return errors.New("failed to fetch")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_NetworkErrorTwiceThenSuccess(t *testing.T) {
	sleeper := &recordingSleeper{}
	calls := 0

	got, err := Retry(context.Background(), testPolicy(sleeper), func(ctx context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", networkErr()
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.delays)
	assert.Equal(t, 3*time.Second, sleeper.total())
}

func TestRetry_ExhaustedReturnsLastError(t *testing.T) {
	sleeper := &recordingSleeper{}
	calls := 0
	var last error

	_, err := Retry(context.Background(), testPolicy(sleeper), func(ctx context.Context) (int, error) {
		calls++
		last = networkErr()
		return 0, last
	})

	assert.Equal(t, DefaultMaxRetries, calls)
	assert.Same(t, last, err)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestRetry_CancelledContextStopsWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0

	policy := DefaultRetryPolicy()
	_, err := Retry(ctx, policy, func(ctx context.Context) (int, error) {
		calls++
		return 0, networkErr()
	})

	assert.Equal(t, 1, calls)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second}

	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
}

func TestConfig_RetryPolicy(t *testing.T) {
	cfg := &Config{MaxRetries: 5, RetryBaseDelay: 10 * time.Millisecond}

	p := cfg.RetryPolicy()

	assert.Equal(t, 5, p.MaxRetries)
	assert.Equal(t, 10*time.Millisecond, p.BaseDelay)
	assert.NotNil(t, p.Sleep)
}
