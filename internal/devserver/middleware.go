package devserver

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/rechart/rechart/internal/core/domain"
)

const claimsKey = "claims"

// Auth validates the ID token in the Authorization header and stores its
// claims on the context. The token may be sent raw, as the Rechart client
// does, or with a "Bearer " prefix.
func Auth(jwtSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			if scheme, token, ok := strings.Cut(raw, " "); ok && strings.EqualFold(scheme, "bearer") {
				raw = strings.TrimSpace(token)
			}

			claims := &domain.IDTokenClaims{}
			tkn, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
				return []byte(jwtSecret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
			if err != nil || !tkn.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

// RequireTier lets through principals on one of tiers and answers 405 to
// everyone else, which the client treats as a handled "not allowed".
func RequireTier(tiers ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(tiers))
	for _, t := range tiers {
		allowed[t] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := ctxClaims(c)
			if err != nil {
				return err
			}
			if _, ok := allowed[tierOf(claims)]; !ok {
				return domain.ErrNotAllowed
			}
			return next(c)
		}
	}
}

// ctxClaims returns the claims stored by Auth.
func ctxClaims(c echo.Context) (*domain.IDTokenClaims, error) {
	claims, _ := c.Get(claimsKey).(*domain.IDTokenClaims)
	if claims == nil || claims.Workspace == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return claims, nil
}

func tierOf(claims *domain.IDTokenClaims) string {
	if claims.Tier == "" {
		return domain.TierFree
	}
	return claims.Tier
}
