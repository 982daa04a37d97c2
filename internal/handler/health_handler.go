package handler

import (
	"net/http"

	"github.com/Snaxxwax/movecrm/prometheus"
	"github.com/labstack/echo/v4"
)

// HealthCheck handles the health check endpoint
func HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "healthy",
		"service": "movecrm-backend",
	})
}

// Metrics exposes the Prometheus metrics endpoint
func Metrics(c echo.Context) error {
	handler := prometheus.GetPrometheusHandler()
	handler.ServeHTTP(c.Response(), c.Request())
	return nil
}
