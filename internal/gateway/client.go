package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"therabook/pkg/client"
	apperrors "therabook/pkg/errors"
	"therabook/pkg/logger"
)

// Client talks to the provider's payment intent API over HTTP. Transient
// failures (5xx, network errors) are retried with a fixed backoff; after the
// retry budget is spent the caller gets GatewayUnavailable and must treat
// payment state as unknown, never as failed.
type Client struct {
	http       *client.HttpClient
	maxRetries int
	backoff    time.Duration
	log        *logger.Logger
}

type Config struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

func NewClient(cfg Config, log *logger.Logger) *Client {
	httpClient := client.NewHttpClient(cfg.BaseURL, cfg.Timeout)
	if cfg.APIKey != "" {
		httpClient.WithHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	return &Client{
		http:       httpClient,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		log:        log,
	}
}

func (c *Client) IntentStatus(ctx context.Context, ref string) (*Intent, error) {
	path := fmt.Sprintf("/v1/payment_intents/%s", ref)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, apperrors.GatewayUnavailable(ctx.Err())
			case <-time.After(c.backoff):
			}
		}

		resp, err := c.http.GET(ctx, path)
		if err != nil {
			lastErr = err
			c.log.Warn("Gateway request failed",
				"payment_ref", ref,
				"attempt", attempt+1,
				"error", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			var intent Intent
			if err := resp.DecodeJSON(&intent); err != nil {
				return nil, apperrors.GatewayUnavailable(fmt.Errorf("failed to decode intent: %w", err))
			}
			return &intent, nil

		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrIntentNotFound

		case resp.StatusCode >= http.StatusInternalServerError:
			lastErr = fmt.Errorf("gateway returned %d: %s", resp.StatusCode, client.GetErrorMessage(resp))
			c.log.Warn("Gateway server error",
				"payment_ref", ref,
				"attempt", attempt+1,
				"status_code", resp.StatusCode)
			continue

		default:
			// 4xx other than 404 will not improve on retry
			return nil, apperrors.GatewayUnavailable(fmt.Errorf("gateway returned %d: %s", resp.StatusCode, client.GetErrorMessage(resp)))
		}
	}

	return nil, apperrors.GatewayUnavailable(lastErr)
}
