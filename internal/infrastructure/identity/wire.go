package identity

import (
	"encoding/json"
	"fmt"

	"github.com/rechart/rechart/internal/core/domain"
)

// Provider error codes, carried in the "error" field of failed responses.
const (
	CodeInvalidEmail        = "INVALID_EMAIL"
	CodeInvalidOOBCode      = "INVALID_OOB_CODE"
	CodeExpiredOOBCode      = "EXPIRED_OOB_CODE"
	CodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	CodeUserDisabled        = "USER_DISABLED"
)

// SendLinkRequest asks for a sign-in link to be emailed.
type SendLinkRequest struct {
	Email           string `json:"email" validate:"required,email"`
	ContinueURL     string `json:"continue_url" validate:"required,url"`
	HandleCodeInApp bool   `json:"handle_code_in_app"`
	LinkDomain      string `json:"link_domain,omitempty"`
}

// SendLinkResponse echoes the address a link was sent to. Development
// providers also return the link itself.
type SendLinkResponse struct {
	Email string `json:"email"`
	Link  string `json:"link,omitempty"`
}

// SignInRequest exchanges a one-time code for tokens.
type SignInRequest struct {
	Email   string `json:"email" validate:"required,email"`
	OOBCode string `json:"oob_code" validate:"required"`
}

type SignInResponse struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	IsNewUser    bool   `json:"is_new_user"`
}

// TokenRequest mints a fresh ID token from a refresh token.
type TokenRequest struct {
	GrantType    string `json:"grant_type" validate:"required,eq=refresh_token"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type TokenResponse struct {
	UserID       string `json:"user_id"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// ErrorResponse is the body of a failed call.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ProviderError is a non-2xx answer from the identity provider.
type ProviderError struct {
	Status int
	Code   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider: %d %s", e.Status, e.Code)
}

// Unwrap maps provider codes to domain errors.
func (e *ProviderError) Unwrap() error {
	switch e.Code {
	case CodeInvalidEmail:
		return domain.ErrInvalidEmail
	case CodeInvalidOOBCode, CodeExpiredOOBCode:
		return domain.ErrInvalidSignIn
	case CodeInvalidRefreshToken, CodeUserDisabled:
		return domain.ErrNotSignedIn
	default:
		return domain.ErrIdentityProvider
	}
}

func newProviderError(status int, body []byte) error {
	var env ErrorResponse
	if err := json.Unmarshal(body, &env); err != nil || env.Error == "" {
		return &ProviderError{Status: status, Code: fmt.Sprintf("HTTP_%d", status)}
	}
	return &ProviderError{Status: status, Code: env.Error}
}
