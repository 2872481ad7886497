package devserver

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/rechart/rechart/internal/core/domain"
	"github.com/rechart/rechart/internal/infrastructure/identity"
)

// pendingCode is an issued, unused sign-in code. Only its hash is kept.
type pendingCode struct {
	hash    []byte
	expires time.Time
}

type account struct {
	userID    string
	email     string
	workspace string
	tier      string
}

// identityHandler serves the email-link identity provider endpoints.
type identityHandler struct {
	opts Options
	log  zerolog.Logger
	now  func() time.Time

	mu       sync.Mutex
	pending  map[string]pendingCode // by email
	accounts map[string]*account    // by email
	refresh  map[string]string      // refresh token -> email
}

func newIdentityHandler(opts Options, log zerolog.Logger) *identityHandler {
	h := &identityHandler{
		opts:     opts,
		log:      log,
		now:      time.Now,
		pending:  make(map[string]pendingCode),
		accounts: make(map[string]*account),
		refresh:  make(map[string]string),
	}
	for email, info := range opts.Accounts {
		email = normalizeEmail(email)
		h.accounts[email] = &account{
			userID:    uuid.NewString(),
			email:     email,
			workspace: info.Workspace,
			tier:      info.Tier,
		}
	}
	return h
}

func (h *identityHandler) requireAPIKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.opts.APIKey != "" && c.QueryParam("key") != h.opts.APIKey {
			return c.JSON(http.StatusForbidden, identity.ErrorResponse{Error: "API_KEY_INVALID"})
		}
		return next(c)
	}
}

// SendSignInLink issues a one-time code for the address and builds the link
// that would be emailed.
func (h *identityHandler) SendSignInLink(c echo.Context) error {
	var req identity.SendLinkRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, identity.ErrorResponse{Error: "INVALID_PAYLOAD"})
	}
	if err := c.Validate(&req); err != nil {
		code := "INVALID_PAYLOAD"
		if strings.Contains(err.Error(), "email") {
			code = identity.CodeInvalidEmail
		}
		return c.JSON(http.StatusBadRequest, identity.ErrorResponse{Error: code})
	}

	code := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	link, err := signInLink(req.ContinueURL, code)
	if err != nil {
		return c.JSON(http.StatusBadRequest, identity.ErrorResponse{Error: "INVALID_CONTINUE_URI"})
	}

	email := normalizeEmail(req.Email)
	h.mu.Lock()
	h.pending[email] = pendingCode{hash: hash, expires: h.now().Add(h.opts.CodeTTL)}
	h.mu.Unlock()

	h.log.Info().Str("email", email).Str("link", link).Msg("sign-in link issued")
	if h.opts.OnLink != nil {
		h.opts.OnLink(email, link)
	}

	return c.JSON(http.StatusOK, identity.SendLinkResponse{Email: email, Link: link})
}

// SignIn exchanges a one-time code for an ID token and a refresh token.
func (h *identityHandler) SignIn(c echo.Context) error {
	var req identity.SignInRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, identity.ErrorResponse{Error: "INVALID_PAYLOAD"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, identity.ErrorResponse{Error: identity.CodeInvalidOOBCode})
	}

	email := normalizeEmail(req.Email)

	h.mu.Lock()
	defer h.mu.Unlock()

	pc, ok := h.pending[email]
	if !ok || bcrypt.CompareHashAndPassword(pc.hash, []byte(req.OOBCode)) != nil {
		return c.JSON(http.StatusBadRequest, identity.ErrorResponse{Error: identity.CodeInvalidOOBCode})
	}
	delete(h.pending, email)
	if h.now().After(pc.expires) {
		return c.JSON(http.StatusBadRequest, identity.ErrorResponse{Error: identity.CodeExpiredOOBCode})
	}

	acct, existing := h.accounts[email]
	if !existing {
		acct = &account{
			userID:    uuid.NewString(),
			email:     email,
			workspace: "ws-" + uuid.NewString()[:8],
			tier:      domain.TierFree,
		}
		h.accounts[email] = acct
	}

	idToken, err := h.issue(acct)
	if err != nil {
		return err
	}
	refresh := uuid.NewString()
	h.refresh[refresh] = email

	return c.JSON(http.StatusOK, identity.SignInResponse{
		UserID:       acct.userID,
		Email:        acct.email,
		IDToken:      idToken,
		RefreshToken: refresh,
		ExpiresIn:    int64(h.opts.TokenTTL / time.Second),
		IsNewUser:    !existing,
	})
}

// Token mints a fresh ID token for a refresh token.
func (h *identityHandler) Token(c echo.Context) error {
	var req identity.TokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, identity.ErrorResponse{Error: "INVALID_PAYLOAD"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, identity.ErrorResponse{Error: identity.CodeInvalidRefreshToken})
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	email, ok := h.refresh[req.RefreshToken]
	acct := h.accounts[email]
	if !ok || acct == nil {
		return c.JSON(http.StatusBadRequest, identity.ErrorResponse{Error: identity.CodeInvalidRefreshToken})
	}

	idToken, err := h.issue(acct)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, identity.TokenResponse{
		UserID:       acct.userID,
		IDToken:      idToken,
		RefreshToken: req.RefreshToken,
		ExpiresIn:    int64(h.opts.TokenTTL / time.Second),
	})
}

// issue signs an HS256 ID token for acct.
func (h *identityHandler) issue(acct *account) (string, error) {
	now := h.now()
	claims := domain.IDTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "rechart-devserver",
			Subject:   acct.userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.opts.TokenTTL)),
		},
		Email:     acct.email,
		Workspace: acct.workspace,
		Tier:      acct.tier,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.opts.JWTSecret))
}

// signInLink appends the sign-in mode and code to the continue URL.
func signInLink(continueURL, code string) (string, error) {
	u, err := url.Parse(continueURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("mode", "signIn")
	q.Set("oobCode", code)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
