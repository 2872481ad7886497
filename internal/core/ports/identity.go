package ports

import (
	"context"

	"github.com/rechart/rechart/internal/core/domain"
)

// IdentitySDK is the external identity provider. Rechart does not implement
// the authentication protocol itself; it only drives this interface.
type IdentitySDK interface {
	// SendSignInLink emails a one-time sign-in link to email.
	SendSignInLink(ctx context.Context, email string, settings domain.ActionCodeSettings) error
	// IsSignInWithEmailLink reports whether link is a sign-in link.
	IsSignInWithEmailLink(link string) bool
	// SignInWithEmailLink exchanges the link's one-time code for a credential.
	SignInWithEmailLink(ctx context.Context, email, link string) (*domain.Credential, error)
	// IDToken returns the current user's ID token, refreshing it if expired.
	// It returns "" with a nil error when nobody is signed in.
	IDToken(ctx context.Context) (string, error)
	SignOut(ctx context.Context) error
}
