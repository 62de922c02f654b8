// Package gateway forwards a shelf context and a free text question to the
// answer collaborator. Every call is time bounded, transient failures are
// retried with exponential backoff, and callers always get either an answer
// or a *Failure.
package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	iface "ShelfLayoutServer/interface"
	"ShelfLayoutServer/logger"
	"ShelfLayoutServer/monitor"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

type Config struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	Retries        int           `mapstructure:"retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	Multiplier     float64       `mapstructure:"multiplier"`
	MaxInFlight    int           `mapstructure:"max_in_flight"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

func DefaultConfig() Config {
	return Config{
		Timeout:        10 * time.Second,
		Retries:        2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     4 * time.Second,
		Multiplier:     2,
		MaxInFlight:    4,
		CacheTTL:       5 * time.Minute,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Timeout <= 0:
		return fmt.Errorf("answer timeout must be positive, got %s", c.Timeout)
	case c.Retries < 0:
		return fmt.Errorf("answer retries must not be negative, got %d", c.Retries)
	case c.InitialBackoff < 0 || c.MaxBackoff < c.InitialBackoff:
		return fmt.Errorf("invalid backoff range [%s, %s]", c.InitialBackoff, c.MaxBackoff)
	case c.Multiplier < 1:
		return fmt.Errorf("backoff multiplier must be >= 1, got %v", c.Multiplier)
	case c.MaxInFlight < 1:
		return fmt.Errorf("max in-flight must be >= 1, got %d", c.MaxInFlight)
	}
	return nil
}

// Answer is a successful gateway result.
type Answer struct {
	Text     string `json:"answer"`
	Attempts int    `json:"attempts"`
	Cached   bool   `json:"cached"`
}

type Gateway struct {
	answerer iface.Answerer
	cfg      Config
	sem      chan struct{}
	cache    *cache.Cache
	metrics  *monitor.Metrics
}

// New wraps answerer. metrics may be nil. A zero CacheTTL disables caching.
func New(answerer iface.Answerer, cfg Config, metrics *monitor.Metrics) (*Gateway, error) {
	if answerer == nil {
		return nil, errors.New("gateway needs an answerer")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Gateway{
		answerer: answerer,
		cfg:      cfg,
		sem:      make(chan struct{}, cfg.MaxInFlight),
		metrics:  metrics,
	}
	if cfg.CacheTTL > 0 {
		// no janitor goroutine; expired entries are purged on insert
		g.cache = cache.New(cfg.CacheTTL, 0)
	}
	return g, nil
}

func cacheKey(layoutContext, question string) string {
	sum := sha256.Sum256([]byte(layoutContext + "\x00" + strings.TrimSpace(question)))
	return hex.EncodeToString(sum[:])
}

// Ask never panics. On failure the error is a *Failure matching either
// ErrServiceUnavailable or ErrNoAnswer.
func (g *Gateway) Ask(ctx context.Context, layoutContext, question string) (Answer, error) {
	if strings.TrimSpace(question) == "" {
		return g.fail(NoAnswer, 0, errors.New("empty question"))
	}
	key := cacheKey(layoutContext, question)
	if g.cache != nil {
		if v, ok := g.cache.Get(key); ok {
			g.metrics.ObserveAnswer("cached", 0)
			return Answer{Text: v.(string), Cached: true}, nil
		}
	}

	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return g.fail(ServiceUnavailable, 0, ctx.Err())
	}
	defer func() { <-g.sem }()

	var (
		lastErr  error
		attempts int
		delay    = g.cfg.InitialBackoff
	)
	for attempt := 0; attempt <= g.cfg.Retries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, delay); err != nil {
				lastErr = err
				break
			}
			delay = g.nextDelay(delay)
		}
		attempts++
		text, err := g.call(ctx, layoutContext, question)
		switch {
		case err == nil && strings.TrimSpace(text) != "":
			if g.cache != nil {
				g.cache.DeleteExpired()
				g.cache.SetDefault(key, text)
			}
			g.metrics.ObserveAnswer("answered", attempts)
			return Answer{Text: text, Attempts: attempts}, nil
		case err == nil:
			return g.fail(NoAnswer, attempts, ErrNoAnswer)
		case errors.Is(err, ErrNoAnswer):
			return g.fail(NoAnswer, attempts, err)
		case isPermanent(err):
			return g.fail(ServiceUnavailable, attempts, err)
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		logger.Named("gateway").Warn("answer attempt failed",
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", g.cfg.Retries+1),
			zap.Error(err))
	}
	return g.fail(ServiceUnavailable, attempts, lastErr)
}

func (g *Gateway) fail(kind FailureKind, attempts int, err error) (Answer, error) {
	outcome := "service_unavailable"
	if kind == NoAnswer {
		outcome = "no_answer"
	}
	g.metrics.ObserveAnswer(outcome, attempts)
	return Answer{}, &Failure{Kind: kind, Attempts: attempts, Err: err}
}

// call runs one attempt under its own timeout. A panicking answerer counts as
// a transient failure.
func (g *Gateway) call(ctx context.Context, layoutContext, question string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("answerer panic: %v", r)}
			}
		}()
		text, err := g.answerer.Answer(attemptCtx, layoutContext, question)
		done <- result{text: text, err: err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-attemptCtx.Done():
		return "", fmt.Errorf("attempt timed out after %s: %w", g.cfg.Timeout, attemptCtx.Err())
	}
}

func (g *Gateway) nextDelay(d time.Duration) time.Duration {
	next := time.Duration(float64(d) * g.cfg.Multiplier)
	if next > g.cfg.MaxBackoff {
		return g.cfg.MaxBackoff
	}
	return next
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
