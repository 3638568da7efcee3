package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"movierec/common"
	"movierec/logging"
	"movierec/metrics"
	"movierec/models"
)

// BreakerConfig configures a BreakerCatalog
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32        // consecutive failures before the breaker opens
	Timeout          time.Duration // time spent open before a half-open probe
}

// BreakerCatalog guards a Catalog with a circuit breaker. Calls are never
// retried; while the breaker is open they fail immediately with an error
// wrapping common.ErrCatalogUnavailable.
type BreakerCatalog struct {
	inner Catalog
	cb    *gobreaker.CircuitBreaker[any]
	name  string
}

// NewBreakerCatalog wraps inner with a circuit breaker
func NewBreakerCatalog(inner Catalog, cfg BreakerConfig) *BreakerCatalog {
	if cfg.Name == "" {
		cfg.Name = "tmdb"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	}
	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(stateValue(gobreaker.StateClosed))

	return &BreakerCatalog{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[any](settings),
		name:  cfg.Name,
	}
}

// State returns the breaker's current state name
func (b *BreakerCatalog) State() string {
	return b.cb.State().String()
}

// SearchMovies implements Catalog
func (b *BreakerCatalog) SearchMovies(ctx context.Context, query string) (*models.SearchPage, error) {
	return execute(b, "search", func() (*models.SearchPage, error) {
		return b.inner.SearchMovies(ctx, query)
	})
}

// GetMovie implements Catalog
func (b *BreakerCatalog) GetMovie(ctx context.Context, id int) (*models.CatalogMovie, error) {
	return execute(b, "details", func() (*models.CatalogMovie, error) {
		return b.inner.GetMovie(ctx, id)
	})
}

// GetRecommendations implements Catalog
func (b *BreakerCatalog) GetRecommendations(ctx context.Context, id int) ([]models.CatalogMovie, error) {
	return execute(b, "recommendations", func() ([]models.CatalogMovie, error) {
		return b.inner.GetRecommendations(ctx, id)
	})
}

// GetGenres implements Catalog
func (b *BreakerCatalog) GetGenres(ctx context.Context) ([]models.Genre, error) {
	return execute(b, "genres", func() ([]models.Genre, error) {
		return b.inner.GetGenres(ctx)
	})
}

func execute[T any](b *BreakerCatalog, operation string, fn func() (T, error)) (T, error) {
	var zero T
	result, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CatalogRequestsTotal.WithLabelValues(operation, "rejected").Inc()
			return zero, fmt.Errorf("%w: %s breaker: %w", common.ErrCatalogUnavailable, b.name, err)
		}
		return zero, err
	}
	return result.(T), nil
}

// isBreakerSuccess keeps caller mistakes and cancellations from counting
// toward tripping the breaker
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.clientError()
	}
	return false
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
