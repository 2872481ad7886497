package devserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Liveness handles GET /health. It answers 200 as long as the process runs.
func Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
