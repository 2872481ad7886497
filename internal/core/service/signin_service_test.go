package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/rechart/rechart/internal/core/domain"
	"github.com/rechart/rechart/internal/infrastructure/codec"
)

var testSettings = domain.ActionCodeSettings{
	URL:             "https://rechart.app/signup?userId=1234",
	HandleCodeInApp: true,
	LinkDomain:      "rechart.app",
}

func signIDToken(t *testing.T, workspace, tier string) string {
	t.Helper()
	claims := domain.IDTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "uid-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email:     "alice@example.com",
		Workspace: workspace,
		Tier:      tier,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

type signInFixture struct {
	sdk     *stubIdentitySDK
	kv      *stubKV
	local   *Store
	session *AuthSession
	svc     *SignInService
}

func newSignInFixture(t *testing.T) *signInFixture {
	t.Helper()
	sdk := &stubIdentitySDK{
		isLink: true,
		cred: &domain.Credential{
			UserID:       "uid-1",
			IDToken:      signIDToken(t, "w1", "pro"),
			RefreshToken: "refresh",
		},
	}
	kv := newStubKV()
	local := NewStore(domain.NamespaceLocal, kv, codec.NewGzip(), zerolog.Nop())
	session := NewAuthSession(sdk, zerolog.Nop())
	return &signInFixture{
		sdk:     sdk,
		kv:      kv,
		local:   local,
		session: session,
		svc:     NewSignInService(sdk, session, local, testSettings, zerolog.Nop()),
	}
}

func TestSignInService_SendLink_RemembersEmail(t *testing.T) {
	f := newSignInFixture(t)
	ctx := context.Background()

	if err := f.svc.SendLink(ctx, "alice@example.com"); err != nil {
		t.Fatalf("SendLink: %v", err)
	}
	if len(f.sdk.sentTo) != 1 || f.sdk.sentTo[0] != "alice@example.com" {
		t.Fatalf("unexpected recipients: %v", f.sdk.sentTo)
	}
	if f.sdk.settings != testSettings {
		t.Fatalf("unexpected action code settings: %+v", f.sdk.settings)
	}
	if got := f.local.Read(ctx, AttemptEmailKey); got != "alice@example.com" {
		t.Fatalf("pending email = %v", got)
	}
}

func TestSignInService_SendLink_InvalidEmail(t *testing.T) {
	f := newSignInFixture(t)

	for _, email := range []string{"", "not-an-email"} {
		if err := f.svc.SendLink(context.Background(), email); !errors.Is(err, domain.ErrInvalidEmail) {
			t.Fatalf("SendLink(%q): expected ErrInvalidEmail, got %v", email, err)
		}
	}
	if len(f.sdk.sentTo) != 0 {
		t.Fatalf("SDK must not be called for invalid input")
	}
}

func TestSignInService_SendLink_SDKFailure(t *testing.T) {
	f := newSignInFixture(t)
	f.sdk.sendErr = errors.New("quota exceeded")

	if err := f.svc.SendLink(context.Background(), "alice@example.com"); !errors.Is(err, f.sdk.sendErr) {
		t.Fatalf("expected SDK error, got %v", err)
	}
	if got := f.local.Read(context.Background(), AttemptEmailKey); got != nil {
		t.Fatalf("email must not be remembered on failure, got %v", got)
	}
}

func TestSignInService_CompleteSignIn_Success(t *testing.T) {
	f := newSignInFixture(t)
	ctx := context.Background()
	f.local.Write(ctx, AttemptEmailKey, "alice@example.com")

	info, err := f.svc.CompleteSignIn(ctx, "https://rechart.app/signup?mode=signIn&oobCode=abc")
	if err != nil {
		t.Fatalf("CompleteSignIn: %v", err)
	}
	if info.Workspace != "w1" || info.Tier != "pro" {
		t.Fatalf("unexpected principal: %+v", info)
	}
	if got := f.session.CurrentUserInfo(nil); got == nil || *got != *info {
		t.Fatalf("session principal = %+v", got)
	}
	if got := f.local.Read(ctx, AttemptEmailKey); got != nil {
		t.Fatalf("pending email should be cleared, got %v", got)
	}
}

func TestSignInService_CompleteSignIn_NotALink(t *testing.T) {
	f := newSignInFixture(t)
	f.sdk.isLink = false

	if _, err := f.svc.CompleteSignIn(context.Background(), "https://rechart.app/"); !errors.Is(err, domain.ErrNotSignInLink) {
		t.Fatalf("expected ErrNotSignInLink, got %v", err)
	}
}

func TestSignInService_CompleteSignIn_NoPendingEmail(t *testing.T) {
	f := newSignInFixture(t)

	if _, err := f.svc.CompleteSignIn(context.Background(), "link"); !errors.Is(err, domain.ErrNoPendingSignIn) {
		t.Fatalf("expected ErrNoPendingSignIn, got %v", err)
	}
}

func TestSignInService_CompleteSignIn_ExpiredCode(t *testing.T) {
	f := newSignInFixture(t)
	ctx := context.Background()
	f.local.Write(ctx, AttemptEmailKey, "alice@example.com")
	f.sdk.signInErr = domain.ErrInvalidSignIn

	if _, err := f.svc.CompleteSignIn(ctx, "link"); !errors.Is(err, domain.ErrInvalidSignIn) {
		t.Fatalf("expected ErrInvalidSignIn, got %v", err)
	}
	if f.session.CurrentUserInfo(nil) != nil {
		t.Fatalf("principal must not be set on failure")
	}
	if got := f.local.Read(ctx, AttemptEmailKey); got != "alice@example.com" {
		t.Fatalf("pending email should survive a failed attempt, got %v", got)
	}
}

func TestSignInService_Resume(t *testing.T) {
	f := newSignInFixture(t)
	f.sdk.token = signIDToken(t, "w9", "")

	info, err := f.svc.Resume(context.Background())
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if info.Workspace != "w9" || info.Tier != domain.TierFree {
		t.Fatalf("unexpected principal: %+v", info)
	}
}

func TestSignInService_Resume_NotSignedIn(t *testing.T) {
	f := newSignInFixture(t)

	if _, err := f.svc.Resume(context.Background()); !errors.Is(err, domain.ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn, got %v", err)
	}
}

func TestSignInService_SignOut(t *testing.T) {
	f := newSignInFixture(t)
	f.session.CurrentUserInfo(&domain.AuthUserInfo{Tier: "pro", Workspace: "w1"})

	if err := f.svc.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if !f.sdk.signedOut {
		t.Fatalf("SDK sign-out not called")
	}
	if f.session.CurrentUserInfo(nil) != nil {
		t.Fatalf("principal should be cleared")
	}
}
