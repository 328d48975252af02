package retryablehttp

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

const defaultRetryAfter = 60 * time.Second

type RetryConfig struct {
	MaxRetries int           // attempts after the first one (default 3)
	BaseDelay  time.Duration // default 100ms
	MaxDelay   time.Duration // default 5s
	MaxJitter  time.Duration // default 100ms
	Timeout    time.Duration // per attempt, 0 means no client timeout
}

// RateLimitedError is returned when retries end on a 429 response.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

var ErrRetriesExhausted = errors.New("retries exhausted")

type RetryableClient struct {
	client      *http.Client
	retryConfig RetryConfig
}

func NewRetryableClient(config RetryConfig) *RetryableClient {
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.BaseDelay == 0 {
		config.BaseDelay = 100 * time.Millisecond
	}
	if config.MaxDelay == 0 {
		config.MaxDelay = 5 * time.Second
	}
	if config.MaxJitter == 0 {
		config.MaxJitter = 100 * time.Millisecond
	}

	return &RetryableClient{
		client:      &http.Client{Timeout: config.Timeout},
		retryConfig: config,
	}
}

func (c *RetryableClient) isRetryable(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}

	if resp == nil {
		return false
	}

	statusCode := resp.StatusCode
	return statusCode == 0 ||
		(statusCode >= 500 && statusCode <= 599) ||
		statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusRequestTimeout
}

// Do sends req, retrying network errors, 5xx, 408 and 429 with exponential
// backoff. Request bodies are replayed through req.GetBody.
func (c *RetryableClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)

	var resp *http.Response
	var err error

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt > 0 && req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, fmt.Errorf("rewind request body: %w", bodyErr)
			}
			req.Body = body
		}

		resp, err = c.client.Do(req)

		if err == nil && !c.isRetryable(resp, nil) {
			return resp, nil
		}

		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt == c.retryConfig.MaxRetries {
			if resp != nil {
				if resp.StatusCode == http.StatusTooManyRequests {
					retryAfter := GetRetryAfter(resp)
					resp.Body.Close()
					return resp, &RateLimitedError{RetryAfter: retryAfter}
				}
				return resp, fmt.Errorf("%w: last attempt: %s", ErrRetriesExhausted, resp.Status)
			}
			return nil, fmt.Errorf("%w: last attempt: %v", ErrRetriesExhausted, err)
		}

		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}

		delay := c.backoffDelay(attempt)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("unexpected error")
}

func (c *RetryableClient) backoffDelay(attempt int) time.Duration {
	backoff := time.Duration(1<<uint(attempt)) * c.retryConfig.BaseDelay
	if backoff > c.retryConfig.MaxDelay {
		backoff = c.retryConfig.MaxDelay
	}

	jitter := time.Duration(rand.Int63n(int64(c.retryConfig.MaxJitter)))
	return backoff + jitter
}

// GetRetryAfter reads Retry-After in seconds, falling back to one minute.
func GetRetryAfter(resp *http.Response) time.Duration {
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultRetryAfter
}
