package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/service"
	"github.com/noah-isme/edu-center-api/internal/utils"
)

// SeedHandler exposes tooling endpoints for seeding reference data.
type SeedHandler struct {
	service service.SeedService
	logger  zerolog.Logger
}

// NewSeedHandler constructs a seed handler.
func NewSeedHandler(service service.SeedService, logger zerolog.Logger) *SeedHandler {
	return &SeedHandler{
		service: service,
		logger:  logger.With().Str("component", "seed_handler").Logger(),
	}
}

// Register wires seed routes. Callers guard the group with role.manage.
func (h *SeedHandler) Register(router fiber.Router) {
	router.Post("/roles", h.roles)
}

type seededRole struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

func (h *SeedHandler) roles(c *fiber.Ctx) error {
	roles, err := h.service.SeedRoles(requestContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("role seeding failed")
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "roles seeded", summarizeRoles(roles))
}

func summarizeRoles(roles []models.Role) []seededRole {
	result := make([]seededRole, 0, len(roles))
	for _, role := range roles {
		codes := make([]string, 0, len(role.Permissions))
		for _, permission := range role.Permissions {
			codes = append(codes, permission.Code)
		}
		result = append(result, seededRole{Name: role.Name, Permissions: codes})
	}
	return result
}
