// Package httpclient wraps outbound HTTP calls with per-attempt deadlines
// and bounded exponential-backoff retries on transient failures.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	backoffBase = 250 * time.Millisecond
	backoffCap  = 2 * time.Second
	jitterMax   = 120 * time.Millisecond

	// drainLimit bounds how much of a discarded response body is read
	// before the connection is released back to the pool.
	drainLimit = 1 << 20
)

// Options control a single Do call.
type Options struct {
	// Timeout is the per-attempt deadline. Zero means no attempt deadline
	// beyond the parent context's.
	Timeout time.Duration

	// Retries is the number of additional attempts after the first.
	// Zero means exactly one attempt.
	Retries int

	// Client overrides the transport. Defaults to a shared pooled client.
	Client *http.Client

	// OnRetry, if set, is invoked before each retry attempt.
	OnRetry func(attempt int)
}

var defaultClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	},
}

// retryableStatus reports whether an HTTP status is worth another attempt.
func retryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, // 408
		http.StatusTooEarly,            // 425
		http.StatusTooManyRequests,     // 429
		http.StatusInternalServerError, // 500
		http.StatusBadGateway,          // 502
		http.StatusServiceUnavailable,  // 503
		http.StatusGatewayTimeout:      // 504
		return true
	}
	return false
}

// Do performs an HTTP request, retrying transient failures with exponential
// backoff. Transport errors that are not a caller-initiated abort and
// responses with a retryable status (408, 425, 429, 5xx gateway class) are
// retried up to opts.Retries times. Any other response is returned
// immediately. When the budget is exhausted the last response (even a
// retryable one) or the last error is returned, never swallowed.
func Do(ctx context.Context, method, url string, body []byte, headers map[string]string, opts Options) (*http.Response, error) {
	client := opts.Client
	if client == nil {
		client = defaultClient
	}

	var lastErr error
	var lastResp *http.Response

	for attempt := 0; attempt <= opts.Retries; attempt++ {
		if attempt > 0 {
			if opts.OnRetry != nil {
				opts.OnRetry(attempt)
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoffDelay(attempt)):
			}
		}

		resp, err := doAttempt(ctx, client, method, url, body, headers, opts.Timeout)
		if err != nil {
			if ctx.Err() != nil {
				// Caller-initiated abort, never retried.
				return nil, ctx.Err()
			}
			log.Debug().Err(err).Int("attempt", attempt+1).Str("url", url).Msg("transport error")
			lastErr = err
			lastResp = nil
			continue
		}

		if !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		lastErr = nil
		lastResp = resp
		if attempt < opts.Retries {
			// Release the connection before the next attempt.
			drain(resp)
			lastResp = nil
		}
	}

	if lastResp != nil {
		return lastResp, nil
	}
	return nil, fmt.Errorf("request failed after %d attempt(s): %w", opts.Retries+1, lastErr)
}

func doAttempt(ctx context.Context, client *http.Client, method, url string, body []byte, headers map[string]string, timeout time.Duration) (*http.Response, error) {
	attemptCtx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, url, bodyReader)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("Content-Type") == "" && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}

	// The attempt context must stay alive while the caller reads the body.
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func backoffDelay(attempt int) time.Duration {
	delay := backoffBase << (attempt - 1)
	if delay > backoffCap {
		delay = backoffCap
	}
	return delay + time.Duration(rand.Int63n(int64(jitterMax)))
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
	_ = resp.Body.Close()
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
