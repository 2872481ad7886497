package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rechart/rechart/internal/core/domain"
	"github.com/rechart/rechart/internal/core/ports"
)

// AuthSession holds the signed in principal and hands out identity tokens
// for credentialed requests. It is created at startup and passed to the API
// client; sign-in and sign-out replace its principal wholesale.
type AuthSession struct {
	sdk ports.IdentitySDK
	log zerolog.Logger

	mu   sync.RWMutex
	info *domain.AuthUserInfo
}

// NewAuthSession returns an AuthSession with no principal.
func NewAuthSession(sdk ports.IdentitySDK, log zerolog.Logger) *AuthSession {
	return &AuthSession{sdk: sdk, log: log}
}

// CurrentToken returns a fresh ID token from the identity SDK, or "" when
// nobody is signed in. It may block while the SDK refreshes an expired
// token. SDK errors are returned as is; there is no retry and no
// de-duplication of concurrent calls.
func (s *AuthSession) CurrentToken(ctx context.Context) (string, error) {
	return s.sdk.IDToken(ctx)
}

// CurrentUserInfo stores update as the current principal when it is non-nil
// and returns it. With a nil update it returns the last stored principal,
// which is nil before the first sign-in.
func (s *AuthSession) CurrentUserInfo(update *domain.AuthUserInfo) *domain.AuthUserInfo {
	if update != nil {
		info := *update
		s.mu.Lock()
		s.info = &info
		s.mu.Unlock()
		s.log.Debug().Str("workspace", info.Workspace).Str("tier", info.Tier).Msg("principal updated")
		return &info
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.info == nil {
		return nil
	}
	info := *s.info
	return &info
}

// Clear forgets the current principal.
func (s *AuthSession) Clear() {
	s.mu.Lock()
	s.info = nil
	s.mu.Unlock()
}
