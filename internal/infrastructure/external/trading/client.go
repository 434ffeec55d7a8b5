// Package trading implements the client for the trade simulator's
// stats service. Trade statistics feed achievement criteria only; the
// provider is outside the consistency boundary, so callers degrade to
// zero stats when it is unavailable.
package trading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/tradequest/tradequest-core/internal/domain/shared"
	"github.com/tradequest/tradequest-core/internal/domain/trading"
	"github.com/tradequest/tradequest-core/pkg/circuitbreaker"
	"github.com/tradequest/tradequest-core/pkg/retry"
)

// ClientConfig contains configuration for the stats service client.
type ClientConfig struct {
	// BaseURL is the stats service base URL.
	BaseURL string

	// APIKey is the bearer token for authentication.
	APIKey string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// MaxRetries bounds attempts per stats request.
	MaxRetries int

	// RetryBaseDelay is the first backoff delay.
	RetryBaseDelay time.Duration

	// RetryMaxDelay caps the backoff.
	RetryMaxDelay time.Duration

	// BreakerThreshold is consecutive failures before the circuit opens.
	BreakerThreshold int

	// BreakerTimeout is how long the circuit stays open.
	BreakerTimeout time.Duration

	// BreakerHalfOpenMax is the probe budget in half-open state.
	BreakerHalfOpenMax int

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:            baseURL,
		Timeout:            10 * time.Second,
		MaxRetries:         3,
		RetryBaseDelay:     200 * time.Millisecond,
		RetryMaxDelay:      2 * time.Second,
		BreakerThreshold:   5,
		BreakerTimeout:     30 * time.Second,
		BreakerHalfOpenMax: 1,
	}
}

// Client is the trade simulator stats client.
// It implements trading.StatsProvider.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	breaker    *circuitbreaker.CircuitBreaker
	retrier    *retry.Retrier
}

// NewClient creates a new stats service client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	defaults := DefaultClientConfig(config.BaseURL)
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = defaults.RetryBaseDelay
	}
	if config.RetryMaxDelay <= 0 {
		config.RetryMaxDelay = defaults.RetryMaxDelay
	}
	if config.BreakerThreshold <= 0 {
		config.BreakerThreshold = defaults.BreakerThreshold
	}
	if config.BreakerTimeout <= 0 {
		config.BreakerTimeout = defaults.BreakerTimeout
	}
	if config.BreakerHalfOpenMax <= 0 {
		config.BreakerHalfOpenMax = defaults.BreakerHalfOpenMax
	}

	logger := config.Logger.With("component", "trading_client")

	breaker := circuitbreaker.New("trading-stats",
		circuitbreaker.WithFailureThreshold(config.BreakerThreshold),
		circuitbreaker.WithTimeout(config.BreakerTimeout),
		circuitbreaker.WithMaxHalfOpenRequests(config.BreakerHalfOpenMax),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		}),
	)

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:  logger,
		breaker: breaker,
		retrier: retry.New(
			retry.WithMaxAttempts(config.MaxRetries),
			retry.WithInitialDelay(config.RetryBaseDelay),
			retry.WithMaxDelay(config.RetryMaxDelay),
		),
	}
}

// GetStats returns the user's trade statistics.
// A user unknown to the simulator has zero stats, not an error.
func (c *Client) GetStats(ctx context.Context, userID shared.UserID) (trading.Stats, error) {
	var dto statsDTO

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			return c.fetchStats(ctx, userID, &dto)
		})
	})
	if err != nil {
		if errors.Is(err, errUserUnknown) {
			return trading.ZeroStats(userID), nil
		}
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return trading.Stats{}, shared.ErrTradingUnavailable
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return trading.Stats{}, shared.ErrTradingTimeout
		}
		return trading.Stats{}, fmt.Errorf("%w: %v", shared.ErrTradingUnavailable, err)
	}

	return dto.toDomain(userID)
}

// errUserUnknown marks a 404 from the stats service.
var errUserUnknown = errors.New("trading: user unknown to simulator")

// fetchStats performs a single stats request.
func (c *Client) fetchStats(ctx context.Context, userID shared.UserID, dto *statsDTO) error {
	endpoint := fmt.Sprintf("%s/api/v1/users/%s/stats",
		c.config.BaseURL, url.PathEscape(userID.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("build request: %w", err))
	}

	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.Retryable(fmt.Errorf("stats request: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusNotFound:
		return retry.Permanent(errUserUnknown)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return retry.Retryable(fmt.Errorf("stats service returned %d", resp.StatusCode))
	default:
		return retry.Permanent(fmt.Errorf("stats service returned %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	if err := json.Unmarshal(body, dto); err != nil {
		return retry.Permanent(fmt.Errorf("decode response: %w", err))
	}

	return nil
}

// IsHealthy reports whether the stats service responds to a ping.
func (c *Client) IsHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/healthz", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// BreakerState returns the current circuit breaker state.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}
