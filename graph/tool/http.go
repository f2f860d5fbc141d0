package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxBody caps how much of a response body is read.
const maxBody = 4 << 20

// HTTPClient is a small JSON-over-HTTP client shared by the service
// adapters in this package. Non-2xx responses become *Error values.
type HTTPClient struct {
	tool    string
	baseURL string
	client  *http.Client
	header  http.Header
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) { h.client = c }
}

// WithHeader sets a header on every request.
func WithHeader(key, value string) HTTPOption {
	return func(h *HTTPClient) { h.header.Set(key, value) }
}

// NewHTTPClient creates a client for baseURL. tool names the collaborator
// in errors.
func NewHTTPClient(tool, baseURL string, opts ...HTTPOption) *HTTPClient {
	h := &HTTPClient{
		tool:    tool,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		header:  http.Header{"Accept": []string{"application/json"}},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// GetJSON issues GET baseURL+path?query and decodes the JSON response.
func (h *HTTPClient) GetJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	target := h.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return h.do(ctx, http.MethodGet, target, nil, "", nil, out)
}

// PostJSON sends body as JSON and decodes the JSON response.
func (h *HTTPClient) PostJSON(ctx context.Context, path string, body, out interface{}, header http.Header) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", h.tool, err)
	}
	return h.do(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(payload), "application/json", header, out)
}

// PostForm sends form as application/x-www-form-urlencoded.
func (h *HTTPClient) PostForm(ctx context.Context, path string, form url.Values, out interface{}) error {
	return h.do(ctx, http.MethodPost, h.baseURL+path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil, out)
}

func (h *HTTPClient) do(ctx context.Context, method, target string, body io.Reader, contentType string, header http.Header, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", h.tool, err)
	}
	for k, v := range h.header {
		req.Header[k] = v
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &Error{Tool: h.tool, Code: CodeNetwork, Message: err.Error(), Retryable: true, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return &Error{Tool: h.tool, Code: CodeNetwork, Message: "read body: " + err.Error(), Retryable: true, Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(h.tool, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Tool: h.tool, Code: CodeDecode, Message: err.Error(), Cause: err}
	}
	return nil
}

func statusError(tool string, status int, body []byte) *Error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	msg = fmt.Sprintf("HTTP %d %s", status, msg)

	e := &Error{Tool: tool, Message: strings.TrimSpace(msg)}
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		e.Code, e.Fatal = CodeUnauthorized, true
	case status == http.StatusTooManyRequests:
		e.Code, e.Retryable = CodeRateLimited, true
	case status == http.StatusNotFound:
		e.Code = CodeNotFound
	case status >= 500:
		e.Code, e.Retryable = CodeUpstream, true
	default:
		e.Code = CodeBadRequest
	}
	return e
}

// IsRetryable reports whether err is a retryable *Error.
func IsRetryable(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Retryable
}

// IsFatal reports whether err is a fatal *Error.
func IsFatal(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Fatal
}

func missingKey(tool string) *Error {
	return &Error{Tool: tool, Code: CodeMissingKey, Message: "API key is not configured", Fatal: true}
}
