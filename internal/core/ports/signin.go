package ports

import (
	"context"

	"github.com/rechart/rechart/internal/core/domain"
)

// SignInService drives the email-link sign-in flow.
type SignInService interface {
	SendLink(ctx context.Context, email string) error
	CompleteSignIn(ctx context.Context, link string) (*domain.AuthUserInfo, error)
	SignOut(ctx context.Context) error
}
