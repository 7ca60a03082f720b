// Package backend provides the HTTP client for the inference backend,
// treated as an opaque streaming text endpoint.
package backend

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

	"github.com/rs/zerolog"

	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

const (
	streamPath = "/generateStreamMessage"
	oncePath   = "/generateMessage"

	// MaxResponseBytes caps how much of a backend response body is read.
	MaxResponseBytes = 2 << 20 // 2 MiB

	defaultTimeout = 5 * time.Minute
)

// StatusError reports a non-success HTTP status from the backend. It
// unwraps to relay.ErrBackendUnavailable so callers can branch on the
// taxonomy without inspecting codes.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %s", e.Status)
}

func (e *StatusError) Unwrap() error {
	return relay.ErrBackendUnavailable
}

// Stream is a cancellable, pull-based iterator over the newline-delimited
// chunks of one backend response. The sequence is finite and not
// restartable; Recv returns io.EOF after the last chunk. Closing the
// stream (or cancelling the request context) releases the underlying
// connection promptly.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Client calls the inference backend over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     zerolog.Logger
}

// NewClient creates a backend client. The timeout bounds a whole request
// including body streaming; zero selects the default of five minutes.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("backend base URL cannot be empty")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger.With().Str("component", "BackendClient").Logger(),
	}, nil
}

// GenerateStream issues a streaming POST and returns once response headers
// arrive. A non-success status is returned as a *StatusError with the body
// already closed.
func (c *Client) GenerateStream(ctx context.Context, credential, message string) (Stream, error) {
	resp, err := c.post(ctx, c.baseURL+streamPath, credential, message)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_ = resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	scanner := bufio.NewScanner(io.LimitReader(resp.Body, MaxResponseBytes))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &lineStream{body: resp.Body, scanner: scanner}, nil
}

// GenerateOnce issues a single-shot POST and returns the full response body.
func (c *Client) GenerateOnce(ctx context.Context, credential, message string) (string, error) {
	resp, err := c.post(ctx, c.baseURL+oncePath, credential, message)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", relay.ErrBackendUnavailable, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	return string(body), nil
}

func (c *Client) post(ctx context.Context, url, credential, message string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(normalizeMessage(message)))
	if err != nil {
		return nil, fmt.Errorf("failed to build backend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", relay.ErrBackendUnavailable, err)
	}
	return resp, nil
}

// normalizeMessage re-serializes the raw client message as JSON for the
// backend. Anything that does not parse is sent as an empty object rather
// than rejected.
func normalizeMessage(raw string) []byte {
	data := []byte(raw)
	if !json.Valid(data) {
		return []byte("{}")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return []byte("{}")
	}
	return buf.Bytes()
}

// lineStream adapts a response body to the Stream interface.
type lineStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func (s *lineStream) Recv() (string, error) {
	if s.scanner.Scan() {
		return s.scanner.Text(), nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *lineStream) Close() error {
	return s.body.Close()
}
