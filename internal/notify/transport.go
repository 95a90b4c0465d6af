package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultRetries    = 1
	defaultRetryDelay = time.Second
	maxResponseBytes  = 4 << 20
)

// Request is a single provider call. Body is kept as bytes so that a retry
// can resend it.
type Request struct {
	Method string
	URL    string
	Header map[string]string
	Body   []byte
	// Proxy routes the call through an HTTP(S) proxy when set.
	Proxy *url.URL
}

// Response is a fully read provider response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON decodes the body into a generic document.
func (r *Response) JSON() (any, error) {
	var doc any
	if err := json.Unmarshal(r.Body, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Transport performs provider HTTP calls.
type Transport interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// HTTPClient is the default Transport: a fixed timeout and a bounded number
// of retries for idempotent requests.
type HTTPClient struct {
	client     *http.Client
	retries    int
	retryDelay time.Duration
}

// HTTPOption customizes an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithRetries sets how many times a failed idempotent request is retried.
func WithRetries(n int) HTTPOption {
	return func(c *HTTPClient) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithRetryDelay sets the pause before a retry.
func WithRetryDelay(d time.Duration) HTTPOption {
	return func(c *HTTPClient) { c.retryDelay = d }
}

// NewHTTPClient creates a transport with a 10s timeout and one retry.
func NewHTTPClient(opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		client:     &http.Client{Timeout: defaultTimeout},
		retries:    defaultRetries,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	client := c.client
	if req.Proxy != nil {
		client = c.proxied(req.Proxy)
	}

	attempts := 1
	if retryableMethod(method) {
		attempts += c.retries
	}

	var (
		resp *Response
		err  error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err = c.once(ctx, client, method, req)
		if attempt == attempts || !shouldRetry(ctx, resp, err) {
			break
		}
		slog.Debug("retrying provider request", "method", method, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
	return resp, err
}

func (c *HTTPClient) once(ctx context.Context, client *http.Client, method string, req Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: data}, nil
}

func (c *HTTPClient) proxied(proxy *url.URL) *http.Client {
	base, ok := http.DefaultTransport.(*http.Transport)
	var tr *http.Transport
	if ok {
		tr = base.Clone()
	} else {
		tr = &http.Transport{}
	}
	tr.Proxy = http.ProxyURL(proxy)
	tr.MaxIdleConns = 256
	tr.MaxIdleConnsPerHost = 256
	return &http.Client{Timeout: c.client.Timeout, Transport: tr}
}

func retryableMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodHead, http.MethodDelete, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func shouldRetry(ctx context.Context, resp *Response, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	switch resp.StatusCode {
	case 408, 413, 429, 500, 502, 503, 504, 521, 522, 524:
		return true
	}
	return false
}
