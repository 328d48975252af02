package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ibeloyar/payrelay/internal/model"
	"github.com/ibeloyar/payrelay/pgk/retryablehttp"
)

type httpDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// RelayPublisher POSTs confirmations as JSON to an external realtime relay.
type RelayPublisher struct {
	client httpDoer
	url    string
}

func NewRelayPublisher(url string, config retryablehttp.RetryConfig) *RelayPublisher {
	return &RelayPublisher{
		client: retryablehttp.NewRetryableClient(config),
		url:    url,
	}
}

// Publish returns *retryablehttp.RateLimitedError when the relay keeps
// answering 429.
func (p *RelayPublisher) Publish(ctx context.Context, event model.PaymentConfirmed) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", event.EventID)

	resp, err := p.client.Do(ctx, req)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("relay responded %s", resp.Status)
	}

	return nil
}
