package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/config"
	"github.com/noah-isme/edu-center-api/internal/handler"
)

func healthOf(t *testing.T, checks ...handler.DependencyCheck) (int, handler.HealthResponse) {
	t.Helper()
	app := fiber.New()
	app.Get("/health", handler.HealthCheck(config.Config{AppName: "Edu", AppEnv: "test"}, checks...))

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Data handler.HealthResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body.Data
}

func TestHealthReportsEachDependency(t *testing.T) {
	up := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("dial tcp: connection refused") }

	status, health := healthOf(t)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "ok", health.Status)
	require.Empty(t, health.Dependencies)

	status, health = healthOf(t, handler.DependencyCheck{Name: "postgres", Check: up}, handler.DependencyCheck{Name: "redis", Check: up})
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, map[string]string{"postgres": "up", "redis": "up"}, health.Dependencies)

	status, health = healthOf(t, handler.DependencyCheck{Name: "postgres", Check: up}, handler.DependencyCheck{Name: "redis", Check: down})
	require.Equal(t, fiber.StatusServiceUnavailable, status)
	require.Equal(t, "degraded", health.Status)
	require.Equal(t, "down", health.Dependencies["redis"])
	require.Equal(t, "Edu", health.Service)
}
