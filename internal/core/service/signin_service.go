package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/rechart/rechart/internal/core/domain"
	"github.com/rechart/rechart/internal/core/ports"
)

// AttemptEmailKey is the local storage key holding the address a sign-in
// link was last sent to, so the link can be completed on the same device.
const AttemptEmailKey = "Email2SignIn"

var _ ports.SignInService = (*SignInService)(nil)

// SignInService implements passwordless email-link sign-in on top of the
// identity SDK.
type SignInService struct {
	sdk      ports.IdentitySDK
	session  *AuthSession
	local    *Store
	settings domain.ActionCodeSettings
	validate *validator.Validate
	log      zerolog.Logger
}

// NewSignInService returns a SignInService. local is where the pending
// sign-in email is remembered between sending and completing the link.
func NewSignInService(
	sdk ports.IdentitySDK,
	session *AuthSession,
	local *Store,
	settings domain.ActionCodeSettings,
	log zerolog.Logger,
) *SignInService {
	return &SignInService{
		sdk:      sdk,
		session:  session,
		local:    local,
		settings: settings,
		validate: validator.New(),
		log:      log,
	}
}

// SendLink emails a sign-in link to email and remembers the address locally.
func (s *SignInService) SendLink(ctx context.Context, email string) error {
	if err := s.validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("send sign-in link: %w", domain.ErrInvalidEmail)
	}

	if err := s.sdk.SendSignInLink(ctx, email, s.settings); err != nil {
		s.log.Error().Err(err).Str("email", email).Msg("failed to send sign in email")
		return fmt.Errorf("send sign-in link: %w", err)
	}

	s.local.Write(ctx, AttemptEmailKey, email)
	s.log.Info().Str("email", email).Msg("sign in link sent")
	return nil
}

// CompleteSignIn finishes sign-in from the link the user clicked. The email
// the link was sent to must have been remembered by SendLink on this device.
// On success the principal is stored on the session and returned.
func (s *SignInService) CompleteSignIn(ctx context.Context, link string) (*domain.AuthUserInfo, error) {
	if !s.sdk.IsSignInWithEmailLink(link) {
		return nil, domain.ErrNotSignInLink
	}

	var email string
	if !s.local.Load(ctx, AttemptEmailKey, &email) || email == "" {
		return nil, domain.ErrNoPendingSignIn
	}

	cred, err := s.sdk.SignInWithEmailLink(ctx, email, link)
	if err != nil {
		s.log.Warn().Err(err).Str("email", email).Msg("sign in with email link failed")
		return nil, fmt.Errorf("complete sign-in: %w", err)
	}

	s.local.Write(ctx, AttemptEmailKey, nil)

	info, claims, err := domain.UserInfoFromIDToken(cred.IDToken)
	if err != nil {
		return nil, fmt.Errorf("complete sign-in: %w", err)
	}
	info = s.session.CurrentUserInfo(info)

	s.log.Info().
		Str("user_id", cred.UserID).
		Str("email", claims.Email).
		Str("workspace", info.Workspace).
		Str("tier", info.Tier).
		Bool("new_user", cred.IsNewUser).
		Msg("signed in")

	return info, nil
}

// Resume restores the principal of a user already signed in with the SDK,
// e.g. after a restart. It returns domain.ErrNotSignedIn when there is none.
func (s *SignInService) Resume(ctx context.Context) (*domain.AuthUserInfo, error) {
	token, err := s.session.CurrentToken(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, domain.ErrNotSignedIn
	}

	info, _, err := domain.UserInfoFromIDToken(token)
	if err != nil {
		return nil, fmt.Errorf("resume session: %w", err)
	}
	return s.session.CurrentUserInfo(info), nil
}

// SignOut signs out of the SDK and forgets the principal.
func (s *SignInService) SignOut(ctx context.Context) error {
	s.session.Clear()
	if err := s.sdk.SignOut(ctx); err != nil && !errors.Is(err, domain.ErrNotSignedIn) {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}
