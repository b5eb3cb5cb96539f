package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	maxResponseBytes    = 4 << 20
	defaultRetryBackoff = 250 * time.Millisecond
)

// transport performs JSON calls with one bounded retry on transient network errors.
type transport struct {
	provider Kind
	client   *http.Client
	backoff  time.Duration
}

func newTransport(provider Kind, client *http.Client) *transport {
	return &transport{provider: provider, client: client, backoff: defaultRetryBackoff}
}

// doJSON sends body (if non-nil) and decodes a 2xx response into out.
func (t *transport) doJSON(ctx context.Context, method, url string, headers map[string]string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", t.provider, err)
		}
	}

	resp, err := t.send(ctx, method, url, headers, payload)
	if err != nil {
		return classifyTransport(t.provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return classifyTransport(t.provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(t.provider, resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return malformed(t.provider, "could not decode response", err)
	}
	return nil
}

func (t *transport) send(ctx context.Context, method, url string, headers map[string]string, payload []byte) (*http.Response, error) {
	resp, err := t.sendOnce(ctx, method, url, headers, payload)
	if err == nil || !isTransient(err) {
		return resp, err
	}

	// Only retry when the deadline leaves room for the backoff.
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= t.backoff {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(t.backoff):
	}
	return t.sendOnce(ctx, method, url, headers, payload)
}

func (t *transport) sendOnce(ctx context.Context, method, url string, headers map[string]string, payload []byte) (*http.Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return t.client.Do(req)
}
