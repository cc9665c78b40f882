// Package backend implements the domain repositories over the REST API of the
// application backend, which stays the system of record for activities,
// submissions, progress, answers and leaderboards.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/contest-maker-150/assessment/internal/domain"
)

const maxResponseBytes = 8 << 20

// StatusError is returned when the backend answers with a non-2xx status
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Unwrap classifies server errors as backend unavailability
func (e *StatusError) Unwrap() error {
	if e.Status >= http.StatusInternalServerError {
		return domain.ErrBackendUnavailable
	}
	return nil
}

// Client is a thin JSON client for the application backend. The bearer token
// of the calling participant is read from the request context.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a backend client rooted at baseURL
func NewClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// do sends a request with an optional JSON body and decodes the response into
// out when it is not nil
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := sonic.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimLeft(path, "/"), body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := domain.CredentialsFrom(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Backend request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s %s: %w", domain.ErrBackendUnavailable, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   messageOf(payload),
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			c.logger.Warn("Backend returned server error",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
			)
		}
		return serr
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %w", domain.ErrBackendUnavailable, method, path, err)
	}
	return nil
}

// statusOf returns the HTTP status carried by err, or 0
func statusOf(err error) int {
	var serr *StatusError
	if errors.As(err, &serr) {
		return serr.Status
	}
	return 0
}

// mapNotFound replaces a 404 with the given sentinel
func mapNotFound(err, notFound error) error {
	if statusOf(err) == http.StatusNotFound {
		return fmt.Errorf("%w: %w", notFound, err)
	}
	return mapAuth(err)
}

// mapAuth turns 401/403 into ErrUnauthorized
func mapAuth(err error) error {
	switch statusOf(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	return err
}

// messageOf extracts {"message": ...} from an error body, falling back to the
// raw text
func messageOf(payload []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := sonic.Unmarshal(payload, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	s := strings.TrimSpace(string(payload))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
