// Package identity is a REST client for the email-link identity provider.
// It implements ports.IdentitySDK and owns the provider's token cache.
package identity

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
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/rechart/rechart/internal/core/domain"
	"github.com/rechart/rechart/internal/core/ports"
)

// StateKey is the storage key the signed in user is persisted under.
const StateKey = "AuthState"

// earlyExpiry is how long before its expiry an ID token is refreshed.
const earlyExpiry = 5 * time.Minute

// StateStore persists the signed in user between runs. The persistence
// layer in internal/core/service satisfies it.
type StateStore interface {
	Load(ctx context.Context, key string, dst any) bool
	Write(ctx context.Context, key string, value any) any
}

// Config locates the identity provider.
type Config struct {
	BaseURL string
	APIKey  string
}

// state is what survives a restart. ID tokens are not persisted; the first
// IDToken call after a restore refreshes one.
type state struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	RefreshToken string `json:"refresh_token"`
}

var _ ports.IdentitySDK = (*Client)(nil)

// Client talks to the identity provider over HTTP.
type Client struct {
	cfg   Config
	http  *http.Client
	store StateStore
	log   zerolog.Logger
	ctx   context.Context

	mu     sync.Mutex
	user   *state
	source oauth2.TokenSource
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the http.Client used for provider calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a Client and restores a previously signed in user from store,
// if any. ctx is used for token refreshes, the way oauth2.Config.TokenSource
// uses it. store may be nil, in which case nothing is persisted.
func New(ctx context.Context, cfg Config, store StateStore, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		cfg:   cfg,
		http:  http.DefaultClient,
		store: store,
		log:   log,
		ctx:   ctx,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.restore()
	return c
}

func (c *Client) restore() {
	if c.store == nil {
		return
	}
	var st state
	if !c.store.Load(c.ctx, StateKey, &st) || st.RefreshToken == "" {
		return
	}
	c.user = &st
	c.source = oauth2.ReuseTokenSourceWithExpiry(nil, &refreshSource{c: c}, earlyExpiry)
	c.log.Debug().Str("user_id", st.UserID).Msg("identity session restored")
}

// SendSignInLink asks the provider to email a sign-in link to email.
func (c *Client) SendSignInLink(ctx context.Context, email string, settings domain.ActionCodeSettings) error {
	req := SendLinkRequest{
		Email:           email,
		ContinueURL:     settings.URL,
		HandleCodeInApp: settings.HandleCodeInApp,
		LinkDomain:      settings.LinkDomain,
	}
	var resp SendLinkResponse
	if err := c.post(ctx, "/v1/signin-links", req, &resp); err != nil {
		return err
	}
	ev := c.log.Debug().Str("email", resp.Email)
	if resp.Link != "" {
		ev = ev.Str("link", resp.Link)
	}
	ev.Msg("sign-in link requested")
	return nil
}

// IsSignInWithEmailLink reports whether link carries a sign-in code.
func (c *Client) IsSignInWithEmailLink(link string) bool {
	_, ok := oobCode(link)
	return ok
}

// SignInWithEmailLink exchanges the link's one-time code for a credential
// and makes its user the signed in user.
func (c *Client) SignInWithEmailLink(ctx context.Context, email, link string) (*domain.Credential, error) {
	code, ok := oobCode(link)
	if !ok {
		return nil, domain.ErrNotSignInLink
	}

	var resp SignInResponse
	if err := c.post(ctx, "/v1/signin", SignInRequest{Email: email, OOBCode: code}, &resp); err != nil {
		return nil, err
	}

	cred := &domain.Credential{
		UserID:       resp.UserID,
		Email:        resp.Email,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		Expiry:       expiry(resp.ExpiresIn),
		IsNewUser:    resp.IsNewUser,
	}

	initial := &oauth2.Token{
		AccessToken:  cred.IDToken,
		TokenType:    "Bearer",
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.Expiry,
	}

	c.mu.Lock()
	c.user = &state{UserID: cred.UserID, Email: cred.Email, RefreshToken: cred.RefreshToken}
	c.source = oauth2.ReuseTokenSourceWithExpiry(initial, &refreshSource{c: c}, earlyExpiry)
	c.persistLocked(ctx)
	c.mu.Unlock()

	return cred, nil
}

// IDToken returns the signed in user's ID token, or "" when nobody is
// signed in. An expired token is refreshed first, which blocks on the
// provider.
func (c *Client) IDToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	src := c.source
	c.mu.Unlock()
	if src == nil {
		return "", nil
	}

	tok, err := src.Token()
	if err != nil {
		if errors.Is(err, domain.ErrNotSignedIn) {
			c.log.Warn().Err(err).Msg("refresh token rejected, signing out")
			c.forget(ctx, src)
		}
		return "", err
	}
	return tok.AccessToken, nil
}

// SignOut forgets the signed in user.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return domain.ErrNotSignedIn
	}
	c.user = nil
	c.source = nil
	c.persistLocked(ctx)
	return nil
}

// forget drops the user unless a newer sign-in already replaced src.
func (c *Client) forget(ctx context.Context, src oauth2.TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source != src {
		return
	}
	c.user = nil
	c.source = nil
	c.persistLocked(ctx)
}

func (c *Client) persistLocked(ctx context.Context) {
	if c.store == nil {
		return
	}
	if c.user == nil {
		c.store.Write(ctx, StateKey, nil)
		return
	}
	c.store.Write(ctx, StateKey, *c.user)
}

// refreshSource mints a new ID token from the stored refresh token.
type refreshSource struct {
	c *Client
}

func (s *refreshSource) Token() (*oauth2.Token, error) {
	c := s.c

	c.mu.Lock()
	if c.user == nil {
		c.mu.Unlock()
		return nil, domain.ErrNotSignedIn
	}
	refresh := c.user.RefreshToken
	c.mu.Unlock()

	var resp TokenResponse
	req := TokenRequest{GrantType: "refresh_token", RefreshToken: refresh}
	if err := c.post(c.ctx, "/v1/token", req, &resp); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.user != nil && resp.RefreshToken != "" && resp.RefreshToken != c.user.RefreshToken {
		c.user.RefreshToken = resp.RefreshToken
		c.persistLocked(c.ctx)
	}
	c.mu.Unlock()

	c.log.Debug().Str("user_id", resp.UserID).Msg("id token refreshed")

	return &oauth2.Token{
		AccessToken:  resp.IDToken,
		TokenType:    "Bearer",
		RefreshToken: resp.RefreshToken,
		Expiry:       expiry(resp.ExpiresIn),
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("identity: encode request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if c.cfg.APIKey != "" {
		endpoint += "?key=" + url.QueryEscape(c.cfg.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("identity: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIdentityProvider, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", domain.ErrIdentityProvider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newProviderError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrIdentityProvider, err)
	}
	return nil
}

// oobCode extracts the one-time code from a sign-in link. Links wrapped by
// a link domain carry the real link in a "link" query parameter.
func oobCode(link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	q := u.Query()
	if q.Get("mode") == "signIn" && q.Get("oobCode") != "" {
		return q.Get("oobCode"), true
	}
	if inner := q.Get("link"); inner != "" && inner != link {
		return oobCode(inner)
	}
	return "", false
}

func expiry(seconds int64) time.Time {
	if seconds <= 0 {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(seconds) * time.Second)
}
