package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/dotsetgreg/dotfocus/pkg/config"
	"github.com/dotsetgreg/dotfocus/pkg/logger"
)

// ErrCircuitOpen is returned while a provider's breaker rejects calls after
// repeated failures.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// GuardConfig bounds the request rate of one client and trips its breaker
// after MaxFailures consecutive failures. Zero RequestsPerSecond disables
// rate limiting.
type GuardConfig struct {
	RequestsPerSecond float64
	Burst             int
	MaxFailures       uint32
	OpenTimeout       time.Duration
}

func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		RequestsPerSecond: 5,
		Burst:             5,
		MaxFailures:       3,
		OpenTimeout:       30 * time.Second,
	}
}

func guardConfigFrom(limits config.LimitsConfig) GuardConfig {
	gc := GuardConfig{
		RequestsPerSecond: limits.RequestsPerSecond,
		Burst:             limits.Burst,
		MaxFailures:       limits.BreakerMaxFailures,
		OpenTimeout:       time.Duration(limits.BreakerOpenSeconds) * time.Second,
	}
	def := DefaultGuardConfig()
	if gc.MaxFailures == 0 {
		gc.MaxFailures = def.MaxFailures
	}
	if gc.OpenTimeout <= 0 {
		gc.OpenTimeout = def.OpenTimeout
	}
	return gc
}

// guard runs calls through a rate limiter and a circuit breaker. It never
// retries.
type guard struct {
	name    string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func newGuard(name string, cfg GuardConfig) *guard {
	g := &guard{name: name}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	maxFailures := cfg.MaxFailures
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// Caller cancellation says nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WarnCF("providers", "Circuit breaker state changed", map[string]interface{}{
				"client": name,
				"from":   from.String(),
				"to":     to.String(),
			})
		},
	})
	return g
}

func (g *guard) do(ctx context.Context, fn func() error) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s rate limit wait: %w", g.name, err)
		}
	}
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", g.name, ErrCircuitOpen)
	}
	return err
}
