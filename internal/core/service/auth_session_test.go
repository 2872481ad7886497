package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rechart/rechart/internal/core/domain"
)

// stubIdentitySDK is shared by the auth session and sign-in tests.
type stubIdentitySDK struct {
	mu sync.Mutex

	token    string
	tokenErr error
	calls    int

	sendErr   error
	sentTo    []string
	settings  domain.ActionCodeSettings
	isLink    bool
	cred      *domain.Credential
	signInErr error
	signedOut bool
}

func (s *stubIdentitySDK) SendSignInLink(_ context.Context, email string, settings domain.ActionCodeSettings) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sentTo = append(s.sentTo, email)
	s.settings = settings
	return nil
}

func (s *stubIdentitySDK) IsSignInWithEmailLink(string) bool { return s.isLink }

func (s *stubIdentitySDK) SignInWithEmailLink(_ context.Context, email, _ string) (*domain.Credential, error) {
	if s.signInErr != nil {
		return nil, s.signInErr
	}
	cred := *s.cred
	cred.Email = email
	return &cred, nil
}

func (s *stubIdentitySDK) IDToken(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.token, s.tokenErr
}

func (s *stubIdentitySDK) SignOut(context.Context) error {
	s.signedOut = true
	return nil
}

func TestAuthSession_CurrentUserInfo(t *testing.T) {
	s := NewAuthSession(&stubIdentitySDK{}, zerolog.Nop())

	if got := s.CurrentUserInfo(nil); got != nil {
		t.Fatalf("expected nil before sign-in, got %+v", got)
	}

	in := &domain.AuthUserInfo{Tier: "pro", Workspace: "w1"}
	if got := s.CurrentUserInfo(in); *got != *in {
		t.Fatalf("setter returned %+v", got)
	}

	// Mutating the caller's copy must not leak into the session.
	in.Workspace = "changed"
	if got := s.CurrentUserInfo(nil); got.Workspace != "w1" || got.Tier != "pro" {
		t.Fatalf("getter returned %+v", got)
	}

	s.CurrentUserInfo(&domain.AuthUserInfo{Tier: "free", Workspace: "w2"})
	if got := s.CurrentUserInfo(nil); got.Workspace != "w2" {
		t.Fatalf("expected overwrite on re-authentication, got %+v", got)
	}

	s.Clear()
	if got := s.CurrentUserInfo(nil); got != nil {
		t.Fatalf("expected nil after Clear, got %+v", got)
	}
}

func TestAuthSession_CurrentToken_Delegates(t *testing.T) {
	sdk := &stubIdentitySDK{token: "tok"}
	s := NewAuthSession(sdk, zerolog.Nop())

	for i := 0; i < 2; i++ {
		tok, err := s.CurrentToken(context.Background())
		if err != nil || tok != "tok" {
			t.Fatalf("CurrentToken = %q, %v", tok, err)
		}
	}
	if sdk.calls != 2 {
		t.Fatalf("expected one SDK call per request, got %d", sdk.calls)
	}
}

func TestAuthSession_CurrentToken_PropagatesError(t *testing.T) {
	sdkErr := errors.New("token refresh rejected")
	s := NewAuthSession(&stubIdentitySDK{tokenErr: sdkErr}, zerolog.Nop())

	if _, err := s.CurrentToken(context.Background()); !errors.Is(err, sdkErr) {
		t.Fatalf("expected SDK error, got %v", err)
	}
}

func TestAuthSession_ConcurrentAccess(t *testing.T) {
	s := NewAuthSession(&stubIdentitySDK{token: "tok"}, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.CurrentUserInfo(&domain.AuthUserInfo{Tier: "pro", Workspace: "w"})
		}()
		go func() {
			defer wg.Done()
			_ = s.CurrentUserInfo(nil)
			_, _ = s.CurrentToken(context.Background())
		}()
	}
	wg.Wait()
}
