package handler

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/edu-center-api/internal/config"
	"github.com/noah-isme/edu-center-api/internal/utils"
)

const healthCheckTimeout = 2 * time.Second

// DependencyCheck reports whether one backing service is reachable.
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthResponse is the payload of GET /health.
type HealthResponse struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Service      string            `json:"service"`
	Environment  string            `json:"environment"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// HealthCheck answers 200 while every dependency is reachable and 503 with
// the failing names otherwise. Failure causes stay out of the response.
func HealthCheck(cfg config.Config, checks ...DependencyCheck) fiber.Handler {
	sort.SliceStable(checks, func(i, j int) bool { return checks[i].Name < checks[j].Name })

	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}

		if len(checks) > 0 {
			ctx, cancel := context.WithTimeout(requestContext(c), healthCheckTimeout)
			defer cancel()

			payload.Dependencies = make(map[string]string, len(checks))
			for _, dependency := range checks {
				state := "up"
				if err := dependency.Check(ctx); err != nil {
					state = "down"
					payload.Status = "degraded"
				}
				payload.Dependencies[dependency.Name] = state
			}
		}

		if payload.Status != "ok" {
			return utils.SendSuccessWithStatus(c, fiber.StatusServiceUnavailable, "service degraded", payload)
		}
		return utils.SendSuccess(c, "service healthy", payload)
	}
}
