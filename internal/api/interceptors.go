package api

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/rechart/rechart/internal/api/metrics"
	"github.com/rechart/rechart/internal/core/domain"
)

// RequestInterceptor may modify a request before it is sent. Returning an
// error rejects the request.
type RequestInterceptor func(ctx context.Context, req *Request) error

// ResponseInterceptor sees the outcome of a request: a response, or the
// error left by the transport or an earlier interceptor (resp is nil then).
// It may replace the response, turn it into an error, or recover from one.
type ResponseInterceptor func(ctx context.Context, resp *Response, err error) (*Response, error)

var mobileAgent = regexp.MustCompile(`(?i)iPhone|iPad|iPod|Android`)

// DeviceFromUserAgent returns "mobile" for phone and tablet user agents and
// "desktop" for everything else. The value is informational only.
func DeviceFromUserAgent(ua string) string {
	if mobileAgent.MatchString(ua) {
		return domain.DeviceMobile
	}
	return domain.DeviceDesktop
}

// HeaderByToken builds the credential headers for token and the current
// principal. Authorization is omitted for an empty token; workspace and tier
// before the first sign-in.
func (c *Client) HeaderByToken(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set(domain.HeaderAuthorization, token)
	}
	if ui := c.creds.CurrentUserInfo(nil); ui != nil {
		h.Set(domain.HeaderWorkspace, ui.Workspace)
		h.Set(domain.HeaderTier, ui.Tier)
	}
	h.Set(domain.HeaderApp, domain.AppName)
	h.Set(domain.HeaderDevice, c.device)
	return h
}

// credentialsInterceptor attaches the identity token and principal headers.
// Headers already on the request win over the generated ones.
func (c *Client) credentialsInterceptor(ctx context.Context, req *Request) error {
	if !req.Config.WithCredentials {
		return nil
	}

	token, err := c.creds.CurrentToken(ctx)
	if err != nil {
		metrics.TokenFetchTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("api: get auth token: %w", err)
	}
	metrics.TokenFetchTotal.WithLabelValues("ok").Inc()

	h := c.HeaderByToken(token)
	for k, vs := range req.Config.Header {
		h[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
	req.Config.Header = h
	req.Config.WithCredentials = false
	return nil
}

// classifyInterceptor passes 2xx responses through and returns every other
// status as a *ResponseError. Transport errors pass through untouched.
func (c *Client) classifyInterceptor(ctx context.Context, resp *Response, err error) (*Response, error) {
	if err != nil {
		return nil, err
	}
	class := domain.ClassifyStatus(resp.Status)
	metrics.RequestsTotal.WithLabelValues(resp.Request.Method, string(class)).Inc()

	if class == domain.ClassSuccess {
		return resp, nil
	}

	rerr := &ResponseError{Status: resp.Status, Class: class, Body: resp.Body, Response: resp}

	log := c.log.With().
		Str("method", resp.Request.Method).
		Str("url", resp.Request.URL).
		Int("status", resp.Status).
		Logger()
	switch class {
	case domain.ClassNotAuthenticated:
		log.Warn().Msg("session not authenticated")
	case domain.ClassNotAllowed:
		log.Warn().Str("message", rerr.Message()).Msg("action not allowed, changes will not be saved")
	default:
		log.Debug().Msg("request rejected by server")
	}

	if class.Handled() && c.onHandled != nil {
		c.onHandled(ctx, rerr)
	}
	return nil, rerr
}
