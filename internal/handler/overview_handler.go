package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/service"
	"github.com/noah-isme/edu-center-api/internal/utils"
)

// OverviewHandler serves the administrator overview.
type OverviewHandler struct {
	service service.OverviewService
	logger  zerolog.Logger
}

// NewOverviewHandler constructs the overview handler.
func NewOverviewHandler(service service.OverviewService, logger zerolog.Logger) *OverviewHandler {
	return &OverviewHandler{
		service: service,
		logger:  logger.With().Str("component", "overview_handler").Logger(),
	}
}

// Register attaches the overview route to the /admin/overview group.
func (h *OverviewHandler) Register(router fiber.Router) {
	router.Get("", h.summary)
}

func (h *OverviewHandler) summary(c *fiber.Ctx) error {
	summary, err := h.service.Summary(requestContext(c), middleware.ActorFromContext(c))
	if err != nil {
		return respond(c, h.logger, err)
	}

	if summary.CacheHit {
		c.Set("X-Cache-Hit", "true")
	} else {
		c.Set("X-Cache-Hit", "false")
	}

	return utils.SendSuccess(c, "overview generated", summary)
}
