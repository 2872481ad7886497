package devserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rechart/rechart/internal/core/domain"
)

// errorResponse is the error envelope of the dashboard API.
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that maps domain
// errors to status codes and renders {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	switch {
	case errors.Is(err, domain.ErrAppNotFound):
		return http.StatusNotFound, "app not found"
	case errors.Is(err, domain.ErrAppLimit):
		return http.StatusMethodNotAllowed, "app limit reached, upgrade to create more apps."
	case errors.Is(err, domain.ErrNotAllowed):
		return http.StatusMethodNotAllowed, "not allowed on the current tier."
	case errors.Is(err, domain.ErrNotAuthenticated), errors.Is(err, domain.ErrInvalidIDToken):
		return http.StatusUnauthorized, "session expired, please sign in again"
	}

	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
