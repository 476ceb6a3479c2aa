package apperr

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// GlobalErrorHandler maps the harness error kinds onto HTTP responses.
// Infrastructure errors are 503; a failed run keeps its stage in the body.
func GlobalErrorHandler() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var ce *ConfigurationError
		if errors.As(err, &ce) {
			_ = c.JSON(http.StatusBadRequest, map[string]string{"error": ce.Message, "title": "configuration error"})
			return
		}

		var ie *InfrastructureError
		if errors.As(err, &ie) {
			slog.Warn("Infrastructure unavailable", "path", c.Path(), "error", err)
			_ = c.JSON(http.StatusServiceUnavailable, map[string]string{"error": ie.Message, "title": "infrastructure unavailable"})
			return
		}

		var re *RunError
		if errors.As(err, &re) {
			slog.Error("Run failed", "path", c.Path(), "stage", re.Stage, "error", err)
			_ = c.JSON(http.StatusInternalServerError, map[string]string{
				"error": re.Message,
				"title": "run failed",
				"stage": string(re.Stage),
			})
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg := fmt.Sprintf("%v", he.Message)
			_ = c.JSON(he.Code, map[string]string{"error": msg})
			return
		}

		slog.Error("Unhandled error", "error", err)
		_ = c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
