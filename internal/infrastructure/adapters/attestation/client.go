package attestation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bridge-service/bridge_service/internal/domain/entities"
	"github.com/bridge-service/bridge_service/pkg/metrics"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultPollInterval = 5 * time.Second
	maxRetries          = 3
)

// Config represents attestation client configuration
type Config struct {
	BaseURL      string
	Environment  string // "sandbox" or "mainnet"
	Timeout      time.Duration
	PollInterval time.Duration
}

// Client polls Circle's Iris API for burn attestations
type Client struct {
	config         Config
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	rateLimiter    *rate.Limiter
	logger         *zap.Logger
}

// NewClient creates a new Iris API client
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.PollInterval == 0 {
		config.PollInterval = defaultPollInterval
	}
	if config.BaseURL == "" {
		if config.Environment == "mainnet" {
			config.BaseURL = IrisMainnetURL
		} else {
			config.BaseURL = IrisSandboxURL
		}
	}

	cbSettings := gobreaker.Settings{
		Name:        "IrisAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("attestation circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Client{
		config:         config,
		httpClient:     &http.Client{Timeout: config.Timeout},
		circuitBreaker: gobreaker.NewCircuitBreaker(cbSettings),
		rateLimiter:    rate.NewLimiter(rate.Limit(MaxRequestsPerSecond), 1),
		logger:         logger,
	}
}

// GetMessage performs a single lookup of a burn transaction's message
func (c *Client) GetMessage(ctx context.Context, sourceDomain uint32, txHash string) (*MessagesResponse, error) {
	endpoint := fmt.Sprintf("/v2/messages/%d?transactionHash=%s", sourceDomain, txHash)
	var resp MessagesResponse
	if err := c.doRequest(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("get message failed: %w", err)
	}
	if len(resp.Messages) == 0 {
		return nil, ErrNoMessages
	}
	return &resp, nil
}

// GetFees retrieves current fees for a transfer between domains
func (c *Client) GetFees(ctx context.Context, sourceDomain, destDomain uint32) (*FeesResponse, error) {
	endpoint := fmt.Sprintf("/v2/burn/USDC/fees?sourceDomain=%d&destinationDomain=%d", sourceDomain, destDomain)
	var resp FeesResponse
	if err := c.doRequest(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("get fees failed: %w", err)
	}
	return &resp, nil
}

// RetrieveAttestation polls the attestation service until the burn message
// reaches complete status or the wall-clock timeout elapses. Not-yet-indexed
// (404), pending status and transport errors are all treated as not ready.
// On timeout it returns ErrTimeout; the caller decides whether that is a
// transient or terminal condition.
func (c *Client) RetrieveAttestation(ctx context.Context, sourceDomain uint32, txHash string, timeout time.Duration) (*entities.AttestationRecord, error) {
	deadline := time.Now().Add(timeout)

	for attempt := 1; ; attempt++ {
		record, ready := c.pollOnce(ctx, sourceDomain, txHash, attempt)
		if ready {
			return record, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			c.logger.Info("attestation polling window elapsed",
				zap.String("tx_hash", txHash),
				zap.Uint32("source_domain", sourceDomain),
				zap.Int("attempts", attempt))
			return nil, ErrTimeout
		}

		wait := c.config.PollInterval
		if wait > remaining {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}
	}
}

// pollOnce runs a single attempt. The second return value is true only when
// a complete attestation was observed.
func (c *Client) pollOnce(ctx context.Context, sourceDomain uint32, txHash string, attempt int) (*entities.AttestationRecord, bool) {
	resp, err := c.GetMessage(ctx, sourceDomain, txHash)
	if err != nil {
		var apiErr *ErrorResponse
		switch {
		case errors.As(err, &apiErr) && apiErr.IsNotFound():
			// Not yet indexed by the attestation service.
			metrics.AttestationPolls.WithLabelValues("not_found").Inc()
			c.logger.Debug("burn transaction not yet indexed",
				zap.String("tx_hash", txHash),
				zap.Int("attempt", attempt))
		case errors.Is(err, ErrNoMessages):
			metrics.AttestationPolls.WithLabelValues("not_found").Inc()
		default:
			// Transient service or network failure. Keep polling; the
			// service's availability is outside our control.
			metrics.AttestationPolls.WithLabelValues("error").Inc()
			c.logger.Warn("attestation poll attempt failed",
				zap.String("tx_hash", txHash),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		return nil, false
	}

	msg := resp.Messages[0]
	if msg.Status != StatusComplete {
		metrics.AttestationPolls.WithLabelValues("pending").Inc()
		c.logger.Debug("attestation not yet complete",
			zap.String("tx_hash", txHash),
			zap.String("status", msg.Status),
			zap.Int("attempt", attempt))
		return nil, false
	}

	metrics.AttestationPolls.WithLabelValues("complete").Inc()
	return &entities.AttestationRecord{
		Status:      entities.AttestationComplete,
		Message:     msg.Message,
		Attestation: msg.Attestation,
	}, true
}

// Lookup performs a single non-polling attestation check and maps the result
// onto the domain record, including the pending case.
func (c *Client) Lookup(ctx context.Context, sourceDomain uint32, txHash string) (*entities.AttestationRecord, error) {
	resp, err := c.GetMessage(ctx, sourceDomain, txHash)
	if err != nil {
		var apiErr *ErrorResponse
		if (errors.As(err, &apiErr) && apiErr.IsNotFound()) || errors.Is(err, ErrNoMessages) {
			return &entities.AttestationRecord{Status: entities.AttestationPending}, nil
		}
		return nil, err
	}
	msg := resp.Messages[0]
	if msg.Status != StatusComplete {
		return &entities.AttestationRecord{Status: entities.AttestationPending}, nil
	}
	return &entities.AttestationRecord{
		Status:      entities.AttestationComplete,
		Message:     msg.Message,
		Attestation: msg.Attestation,
	}, nil
}

func (c *Client) doRequest(ctx context.Context, endpoint string, response interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, c.doRequestInternal(ctx, endpoint, response)
	})
	return err
}

func (c *Client) doRequestInternal(ctx context.Context, endpoint string, response interface{}) error {
	fullURL := c.config.BaseURL + endpoint

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read body: %w", err)
			continue
		}

		// Retry on 5xx
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: status %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode >= 400 {
			var errResp ErrorResponse
			if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
				errResp.StatusCode = resp.StatusCode
				return &errResp
			}
			return &ErrorResponse{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}

		if response != nil && len(body) > 0 {
			if err := json.Unmarshal(body, response); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}
	return lastErr
}
