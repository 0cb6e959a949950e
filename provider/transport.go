package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Transport issues the actual HTTP calls for providers without an official
// SDK client. Do sends one request and returns the decoded body; Stream
// sends one request and invokes onEvent once per decoded server-sent event
// until the stream ends.
type Transport interface {
	Do(ctx context.Context, payload []byte) (json.RawMessage, error)
	Stream(ctx context.Context, payload []byte, onEvent func(event json.RawMessage) error) error
}

// HTTPTransport is the default Transport: JSON POST with bearer auth and
// SSE decoding for streams.
type HTTPTransport struct {
	Provider string // provider name, used in error reporting
	URL      string
	APIKey   string
	Headers  map[string]string
	Client   *http.Client
}

// NewHTTPTransport builds a transport with a sane default timeout. The
// timeout is a plain configuration option; the orchestrator treats a timeout
// as an ordinary transport failure.
func NewHTTPTransport(providerName, url, apiKey string, timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPTransport{
		Provider: providerName,
		URL:      url,
		APIKey:   apiKey,
		Client:   &http.Client{Timeout: timeout},
	}
}

func (t *HTTPTransport) newRequest(ctx context.Context, payload []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.APIKey)
	}
	for k, v := range t.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// Do implements Transport.
func (t *HTTPTransport) Do(ctx context.Context, payload []byte) (json.RawMessage, error) {
	req, err := t.newRequest(ctx, payload)
	if err != nil {
		return nil, &TransportError{Provider: t.Provider, Err: err}
	}
	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, &TransportError{Provider: t.Provider, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Provider: t.Provider, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{
			Provider:   t.Provider,
			StatusCode: resp.StatusCode,
			Payload:    body,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}
	return json.RawMessage(body), nil
}

// Stream implements Transport. Events arrive as SSE "data:" lines; the
// terminal "[DONE]" sentinel is swallowed. An error from onEvent aborts the
// stream and is returned as-is.
func (t *HTTPTransport) Stream(ctx context.Context, payload []byte, onEvent func(json.RawMessage) error) error {
	req, err := t.newRequest(ctx, payload)
	if err != nil {
		return &TransportError{Provider: t.Provider, Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := t.Client.Do(req)
	if err != nil {
		return &TransportError{Provider: t.Provider, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &TransportError{
			Provider:   t.Provider,
			StatusCode: resp.StatusCode,
			Payload:    body,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return &TransportError{Provider: t.Provider, Err: err}
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "event:") || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" || data == "[DONE]" {
			continue
		}
		if err := onEvent(json.RawMessage(data)); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return &TransportError{Provider: t.Provider, Err: fmt.Errorf("stream interrupted: %w", err)}
	}
	return nil
}
