// Package remote implements the client for the backend sales-creation
// endpoint, including the idempotency fields that make at-least-once
// retransmission safe.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"resty.dev/v3"

	"github.com/roach88/till/internal/sale"
)

// ErrUnavailable classifies connectivity-class failures: network errors,
// timeouts, and backend responses that indicate a transient condition
// (408, 429, any 5xx). These submissions will be retried on a later drain.
var ErrUnavailable = errors.New("sales backend unavailable")

// ErrRejected classifies definitive rejections: 4xx responses other than
// 408/429 (duplicate receipt conflict, malformed payload, auth failure).
// These are never retried automatically.
var ErrRejected = errors.New("sale rejected by backend")

// Submitter is the submission surface the sync engine depends on.
type Submitter interface {
	SubmitSale(ctx context.Context, p sale.Payload, offlineID string) error
}

// Client submits sales over HTTP.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient creates a Client for the backend at baseURL. Every submission
// attempt is bounded by timeout; an attempt that exceeds it is ambiguous
// and therefore treated as a failure (the record stays pending and the
// backend's idempotency key absorbs any duplicate).
func NewClient(baseURL, apiToken string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if apiToken != "" {
		c.SetAuthToken(apiToken)
	}
	return &Client{http: c, logger: logger}
}

// saleRequest is the wire body: the full payload plus the offline ID the
// backend dedups on (together with the payload's receipt number).
type saleRequest struct {
	sale.Payload
	OfflineID string `json:"offline_id"`
}

// SubmitSale POSTs one sale. A 2xx response means the backend accepted the
// sale; everything else is an error classified as ErrUnavailable or
// ErrRejected.
func (c *Client) SubmitSale(ctx context.Context, p sale.Payload, offlineID string) error {
	body := saleRequest{
		Payload:   p,
		OfflineID: offlineID,
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/api/sales/")
	if err != nil {
		return fmt.Errorf("submit sale %s: %w: %v", p.ReceiptNumber, ErrUnavailable, err)
	}

	if res.IsSuccess() {
		c.logger.Debug("sale accepted",
			zap.String("receipt_number", p.ReceiptNumber),
			zap.String("offline_id", offlineID),
			zap.Int("status", res.StatusCode()))
		return nil
	}

	status := res.StatusCode()
	if retryable(status) {
		return fmt.Errorf("submit sale %s: %w: status %d", p.ReceiptNumber, ErrUnavailable, status)
	}
	return fmt.Errorf("submit sale %s: %w: status %d: %s",
		p.ReceiptNumber, ErrRejected, status, snippet(res.String()))
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.http.Close()
}

// retryable reports whether an HTTP status indicates a transient condition.
func retryable(status int) bool {
	switch {
	case status >= 500:
		return true
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return true
	}
	return false
}

func snippet(body string) string {
	const max = 200
	if len(body) > max {
		return body[:max] + "..."
	}
	return body
}
