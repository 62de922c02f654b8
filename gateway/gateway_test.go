package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type answerFunc func(ctx context.Context, layoutContext, question string) (string, error)

type fakeAnswerer struct {
	calls atomic.Int32
	fn    answerFunc
}

func (f *fakeAnswerer) Answer(ctx context.Context, layoutContext, question string) (string, error) {
	f.calls.Add(1)
	return f.fn(ctx, layoutContext, question)
}

func testConfig() Config {
	return Config{
		Timeout:        50 * time.Millisecond,
		Retries:        2,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
		Multiplier:     2,
		MaxInFlight:    2,
	}
}

func newGateway(t *testing.T, cfg Config, fn answerFunc) (*Gateway, *fakeAnswerer) {
	t.Helper()
	fa := &fakeAnswerer{fn: fn}
	g, err := New(fa, cfg, nil)
	require.NoError(t, err)
	return g, fa
}

func requireFailure(t *testing.T, err error, kind FailureKind) *Failure {
	t.Helper()
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, kind, f.Kind)
	return f
}

func TestAsk_AlwaysTimingOutIsServiceUnavailable(t *testing.T) {
	cfg := testConfig()
	g, fa := newGateway(t, cfg, func(ctx context.Context, _, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	start := time.Now()
	_, err := g.Ask(context.Background(), "ctx", "how many?")
	elapsed := time.Since(start)

	f := requireFailure(t, err, ServiceUnavailable)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.NotErrorIs(t, err, ErrNoAnswer)
	assert.Equal(t, 3, f.Attempts)
	assert.EqualValues(t, 3, fa.calls.Load())

	backoff := cfg.InitialBackoff + cfg.MaxBackoff
	assert.GreaterOrEqual(t, elapsed, 3*cfg.Timeout)
	assert.Less(t, elapsed, 3*cfg.Timeout+backoff+250*time.Millisecond)
}

func TestAsk_Outcomes(t *testing.T) {
	t.Run("transient failure then success", func(t *testing.T) {
		var calls atomic.Int32
		g, _ := newGateway(t, testConfig(), func(context.Context, string, string) (string, error) {
			if calls.Add(1) < 3 {
				return "", errors.New("connection reset")
			}
			return "3 cola", nil
		})
		ans, err := g.Ask(context.Background(), "ctx", "how many cola?")
		require.NoError(t, err)
		assert.Equal(t, Answer{Text: "3 cola", Attempts: 3}, ans)
	})

	t.Run("no answer is not retried", func(t *testing.T) {
		g, fa := newGateway(t, testConfig(), func(context.Context, string, string) (string, error) {
			return "", fmt.Errorf("model said: %w", ErrNoAnswer)
		})
		_, err := g.Ask(context.Background(), "ctx", "what colour is the sky?")
		f := requireFailure(t, err, NoAnswer)
		assert.ErrorIs(t, err, ErrNoAnswer)
		assert.Equal(t, 1, f.Attempts)
		assert.EqualValues(t, 1, fa.calls.Load())
		assert.Contains(t, f.UserMessage(), "Not enough shelf data")
	})

	t.Run("blank answer is no answer", func(t *testing.T) {
		g, _ := newGateway(t, testConfig(), func(context.Context, string, string) (string, error) {
			return "  ", nil
		})
		_, err := g.Ask(context.Background(), "ctx", "anything?")
		requireFailure(t, err, NoAnswer)
	})

	t.Run("permanent error stops retries", func(t *testing.T) {
		g, fa := newGateway(t, testConfig(), func(context.Context, string, string) (string, error) {
			return "", Permanent(errors.New("401 unauthorized"))
		})
		_, err := g.Ask(context.Background(), "ctx", "how many?")
		f := requireFailure(t, err, ServiceUnavailable)
		assert.Equal(t, 1, f.Attempts)
		assert.EqualValues(t, 1, fa.calls.Load())
		assert.Contains(t, f.UserMessage(), "try again later")
	})

	t.Run("panicking answerer is transient", func(t *testing.T) {
		g, fa := newGateway(t, testConfig(), func(context.Context, string, string) (string, error) {
			panic("boom")
		})
		_, err := g.Ask(context.Background(), "ctx", "how many?")
		requireFailure(t, err, ServiceUnavailable)
		assert.EqualValues(t, 3, fa.calls.Load())
	})

	t.Run("empty question", func(t *testing.T) {
		g, fa := newGateway(t, testConfig(), func(context.Context, string, string) (string, error) {
			return "never", nil
		})
		_, err := g.Ask(context.Background(), "ctx", "   ")
		f := requireFailure(t, err, NoAnswer)
		assert.Zero(t, f.Attempts)
		assert.Zero(t, fa.calls.Load())
	})

	t.Run("cancelled caller stops retrying", func(t *testing.T) {
		cfg := testConfig()
		cfg.InitialBackoff, cfg.MaxBackoff = time.Second, time.Second
		g, fa := newGateway(t, cfg, func(context.Context, string, string) (string, error) {
			return "", errors.New("connection refused")
		})
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		_, err := g.Ask(ctx, "ctx", "how many?")
		requireFailure(t, err, ServiceUnavailable)
		assert.EqualValues(t, 1, fa.calls.Load())
	})
}

func TestAsk_CachesAnswers(t *testing.T) {
	cfg := testConfig()
	cfg.CacheTTL = time.Minute
	g, fa := newGateway(t, cfg, func(_ context.Context, c, q string) (string, error) {
		return c + "/" + q, nil
	})

	first, err := g.Ask(context.Background(), "ctx", "q")
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := g.Ask(context.Background(), "ctx", " q ")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "ctx/q", second.Text)

	_, err = g.Ask(context.Background(), "other", "q")
	require.NoError(t, err)
	assert.EqualValues(t, 2, fa.calls.Load())
}

func TestAsk_InFlightLimitQueues(t *testing.T) {
	cfg := testConfig()
	cfg.MaxInFlight = 1
	cfg.Timeout = time.Second

	var active, peak atomic.Int32
	release := make(chan struct{})
	g, _ := newGateway(t, cfg, func(ctx context.Context, _, q string) (string, error) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return "ok " + q, nil
	})

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = g.Ask(context.Background(), "ctx", fmt.Sprintf("q%d", i))
		}(i)
	}

	require.Eventually(t, func() bool { return active.Load() == 1 }, time.Second, time.Millisecond)

	// a waiter whose deadline passes before a slot frees up gives up cleanly
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := g.Ask(ctx, "ctx", "impatient")
	f := requireFailure(t, err, ServiceUnavailable)
	assert.Zero(t, f.Attempts)

	close(release)
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, peak.Load())
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := []func(*Config){
		func(c *Config) { c.Timeout = 0 },
		func(c *Config) { c.Retries = -1 },
		func(c *Config) { c.MaxBackoff = c.InitialBackoff - 1 },
		func(c *Config) { c.Multiplier = 0.5 },
		func(c *Config) { c.MaxInFlight = 0 },
	}
	for i, mutate := range bad {
		c := DefaultConfig()
		mutate(&c)
		assert.Error(t, c.Validate(), "case %d", i)
	}

	_, err := New(nil, DefaultConfig(), nil)
	assert.Error(t, err)
}
