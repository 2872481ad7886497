// Package api is the authenticated HTTP client for the Rechart API server.
//
// Requests made with RequestConfig.WithCredentials get the signed in
// user's ID token and principal headers attached by an interceptor. Every
// non-2xx response is returned as a *ResponseError; nothing is retried.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rechart/rechart/internal/api/metrics"
	"github.com/rechart/rechart/internal/core/domain"
)

// DefaultBaseURL is the production API server.
const DefaultBaseURL = "https://columns.ai/api"

// Credentials supplies the identity token and principal for credentialed
// requests. *service.AuthSession satisfies it.
type Credentials interface {
	CurrentToken(ctx context.Context) (string, error)
	CurrentUserInfo(update *domain.AuthUserInfo) *domain.AuthUserInfo
}

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL   string
	UserAgent string
}

// RequestConfig carries per-request options.
type RequestConfig struct {
	// WithCredentials attaches the identity token and principal headers.
	// The credentials interceptor clears it once the headers are set, so
	// ambient cookies are never sent alongside the token.
	WithCredentials bool
	Header          http.Header
	Query           url.Values
}

// Request is an outgoing request as seen by interceptors.
type Request struct {
	Method string
	URL    string
	Body   []byte
	Config RequestConfig
}

// Response is a resolved response.
type Response struct {
	Status  int
	Header  http.Header
	Body    []byte
	Request *Request
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode %s %s: %w", r.Request.Method, r.Request.URL, err)
	}
	return nil
}

// Client sends requests to the API server.
type Client struct {
	base    *url.URL
	creds   Credentials
	device  string
	plain   *http.Client
	withJar *http.Client
	log     zerolog.Logger

	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
	onHandled            func(ctx context.Context, err *ResponseError)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying http.Client. Its Jar is only used for
// requests that still ask for credentials when they are dispatched.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		plain := *hc
		plain.Jar = nil
		c.plain = &plain
		c.withJar = hc
	}
}

// WithRequestInterceptor appends a request interceptor. It runs after the
// credentials interceptor.
func WithRequestInterceptor(i RequestInterceptor) ClientOption {
	return func(c *Client) { c.requestInterceptors = append(c.requestInterceptors, i) }
}

// WithResponseInterceptor appends a response interceptor. It runs after the
// status classifier, for successes and failures alike.
func WithResponseInterceptor(i ResponseInterceptor) ClientOption {
	return func(c *Client) { c.responseInterceptors = append(c.responseInterceptors, i) }
}

// WithHandledErrorHook sets a callback for 401 and 405 responses, e.g. to
// sign the user out. The error is still returned to the caller.
func WithHandledErrorHook(fn func(ctx context.Context, err *ResponseError)) ClientOption {
	return func(c *Client) { c.onHandled = fn }
}

// NewClient returns a Client. The device header is decided here, once,
// from cfg.UserAgent.
func NewClient(cfg ClientConfig, creds Credentials, log zerolog.Logger, opts ...ClientOption) (*Client, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("api: parse base url %q: %w", raw, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api: base url %q must be absolute", raw)
	}

	c := &Client{
		base:    base,
		creds:   creds,
		device:  DeviceFromUserAgent(cfg.UserAgent),
		plain:   &http.Client{},
		withJar: &http.Client{},
		log:     log,
	}
	c.requestInterceptors = []RequestInterceptor{c.credentialsInterceptor}
	c.responseInterceptors = []ResponseInterceptor{c.classifyInterceptor}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Device returns the device header value of this client.
func (c *Client) Device() string {
	return c.device
}

func (c *Client) Get(ctx context.Context, path string, cfg *RequestConfig) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, cfg)
}

func (c *Client) Delete(ctx context.Context, path string, cfg *RequestConfig) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, cfg)
}

func (c *Client) Head(ctx context.Context, path string, cfg *RequestConfig) (*Response, error) {
	return c.Do(ctx, http.MethodHead, path, nil, cfg)
}

func (c *Client) Options(ctx context.Context, path string, cfg *RequestConfig) (*Response, error) {
	return c.Do(ctx, http.MethodOptions, path, nil, cfg)
}

func (c *Client) Post(ctx context.Context, path string, body any, cfg *RequestConfig) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body, cfg)
}

func (c *Client) Put(ctx context.Context, path string, body any, cfg *RequestConfig) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body, cfg)
}

func (c *Client) Patch(ctx context.Context, path string, body any, cfg *RequestConfig) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, path, body, cfg)
}

// Do runs the request interceptors, sends the request and runs the response
// interceptors. body is sent as is when it is a []byte, JSON encoded
// otherwise. A nil cfg sends the request without credentials.
func (c *Client) Do(ctx context.Context, method, path string, body any, cfg *RequestConfig) (*Response, error) {
	start := time.Now()
	defer func() {
		metrics.RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	req, err := c.newRequest(method, path, body, cfg)
	if err != nil {
		return nil, err
	}

	for _, intercept := range c.requestInterceptors {
		if err := intercept(ctx, req); err != nil {
			metrics.RequestsTotal.WithLabelValues(method, "rejected").Inc()
			return nil, err
		}
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(method, "transport_error").Inc()
		c.log.Warn().Err(err).Str("method", method).Str("url", req.URL).Msg("request failed")
	}

	for _, intercept := range c.responseInterceptors {
		resp, err = intercept(ctx, resp, err)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) newRequest(method, path string, body any, cfg *RequestConfig) (*Request, error) {
	req := &Request{Method: method}
	if cfg != nil {
		req.Config = RequestConfig{
			WithCredentials: cfg.WithCredentials,
			Header:          cfg.Header.Clone(),
		}
		if cfg.Query != nil {
			req.Config.Query = url.Values{}
			for k, v := range cfg.Query {
				req.Config.Query[k] = append([]string(nil), v...)
			}
		}
	}
	if req.Config.Header == nil {
		req.Config.Header = http.Header{}
	}

	u, err := c.resolve(path)
	if err != nil {
		return nil, err
	}
	req.URL = u

	switch b := body.(type) {
	case nil:
	case []byte:
		req.Body = b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("api: encode %s %s body: %w", method, path, err)
		}
		req.Body = data
		if req.Config.Header.Get("Content-Type") == "" {
			req.Config.Header.Set("Content-Type", "application/json")
		}
	}
	return req, nil
}

// resolve joins path onto the base URL. Absolute URLs are used as given.
func (c *Client) resolve(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("api: parse url %q: %w", path, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	ref.Path = strings.TrimLeft(ref.Path, "/")
	return c.base.ResolveReference(ref).String(), nil
}

func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("api: parse url %q: %w", req.URL, err)
	}
	if len(req.Config.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Config.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("api: build request: %w", err)
	}
	httpReq.Header = req.Config.Header.Clone()

	hc := c.plain
	if req.Config.WithCredentials {
		hc = c.withJar
	}

	httpResp, err := hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("api: %s %s: %w", req.Method, req.URL, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("api: read %s %s: %w", req.Method, req.URL, err)
	}

	return &Response{
		Status:  httpResp.StatusCode,
		Header:  httpResp.Header,
		Body:    data,
		Request: req,
	}, nil
}
