package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/linkup/backend/pkg/apperror"
	"github.com/labstack/echo/v4"
)

// HealthChecker reports per-store status. *config.DB implements it.
type HealthChecker interface {
	Health(ctx context.Context) (map[string]string, error)
}

// HealthCheck returns 200 when every required store answers and 503 otherwise.
func HealthCheck(checker HealthChecker) echo.HandlerFunc {
	return func(c echo.Context) error {
		stores, err := checker.Health(c.Request().Context())
		status := "healthy"
		code := http.StatusOK
		if err != nil {
			status = "unhealthy"
			code = apperror.MapErrorToStatus(err)
		}
		return c.JSON(code, echo.Map{
			"status":  status,
			"service": "linkup-api",
			"stores":  stores,
		})
	}
}
