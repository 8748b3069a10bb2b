// Package transport implements the HTTP collaborator injected into source
// adapters. Adapters never touch net/http directly; they see the Getter
// contract and the package's error taxonomy, which keeps upstream quirks
// (session cookies, timeouts) out of parsing code.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// ErrorKind classifies a transport failure.
type ErrorKind string

const (
	KindTimeout          ErrorKind = "timeout"
	KindConnectionFailed ErrorKind = "connection failed"
	KindHTTPStatus       ErrorKind = "http status"
)

// Error is a classified transport failure. Status is set for KindHTTPStatus.
type Error struct {
	Kind   ErrorKind
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("%s: HTTP %d from %s", e.Kind, e.Status, e.URL)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a transport error for an HTTP 404.
// Some sources publish one file per observation hour, where a 404 means
// "station did not report", not "request failed".
func IsNotFound(err error) bool {
	var terr *Error
	return errors.As(err, &terr) && terr.Kind == KindHTTPStatus && terr.Status == http.StatusNotFound
}

// RawResponse is a fully-read upstream response body.
type RawResponse struct {
	URL    string
	Status int
	Body   []byte
}

// Getter is the transport contract adapters depend on. PostForm exists for
// upstream sites that gate data behind a form handshake (the wateroffice
// disclaimer); plain data retrieval uses Get.
type Getter interface {
	Get(ctx context.Context, rawURL string, params url.Values) (*RawResponse, error)
	PostForm(ctx context.Context, rawURL string, form url.Values) (*RawResponse, error)
}

// Client is the production Getter: an http.Client with a cookie jar (so a
// handshake's session cookie applies to subsequent Gets) and a fixed
// per-request timeout.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a transport client. Every request is bounded by
// timeout; exceeding it surfaces as a KindTimeout error, never a hang.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		logger: logger,
	}
}

// Get issues a GET with the params encoded into the query string.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values) (*RawResponse, error) {
	full := rawURL
	if len(params) > 0 {
		full = rawURL + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(req)
}

// PostForm issues an application/x-www-form-urlencoded POST.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) (*RawResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*RawResponse, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(req.URL.String(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(req.URL.String(), err)
	}

	c.logger.Debug("upstream request",
		"method", req.Method,
		"url", req.URL.Redacted(),
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Kind: KindHTTPStatus, URL: req.URL.String(), Status: resp.StatusCode}
	}
	return &RawResponse{URL: req.URL.String(), Status: resp.StatusCode, Body: body}, nil
}

func classify(url string, err error) *Error {
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return &Error{Kind: KindTimeout, URL: url, Err: err}
	}
	return &Error{Kind: KindConnectionFailed, URL: url, Err: err}
}
