package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/service"
	"github.com/noah-isme/edu-center-api/internal/utils"
)

// ActivityHandler exposes the activity log to administrators and the
// recent activity feed to every user.
type ActivityHandler struct {
	service service.ActivityService
	feed    service.ActivityFeedService
	logger  zerolog.Logger
}

// NewActivityHandler constructs the handler.
func NewActivityHandler(service service.ActivityService, feed service.ActivityFeedService, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		feed:    feed,
		logger:  logger.With().Str("component", "activity_handler").Logger(),
	}
}

// Register attaches activity log routes to the admin router group.
func (h *ActivityHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

// RegisterFeed attaches the recent activity feed to the /activities group.
func (h *ActivityHandler) RegisterFeed(router fiber.Router) {
	router.Get("/recent", h.recent)
}

func (h *ActivityHandler) list(c *fiber.Ctx) error {
	var req dto.ActivityListRequest
	if err := parseQuery(c, &req); err != nil {
		return respond(c, h.logger, err)
	}

	since, err := parseQueryTime(c, "since")
	if err != nil {
		return respond(c, h.logger, err)
	}
	req.Since = since

	if req.PageSize > 200 {
		req.PageSize = 200
	}

	page, err := h.service.List(requestContext(c), middleware.ActorFromContext(c), req)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.OK(c, page.Items, "activity logs", page.Pagination)
}

func (h *ActivityHandler) recent(c *fiber.Ctx) error {
	var req dto.ActivityFeedRequest
	if err := parseQuery(c, &req); err != nil {
		return respond(c, h.logger, err)
	}

	result, err := h.feed.Recent(requestContext(c), middleware.ActorFromContext(c), req)
	if err != nil {
		return respond(c, h.logger, err)
	}

	if result.CacheHit {
		c.Set("X-Cache-Hit", "true")
	} else {
		c.Set("X-Cache-Hit", "false")
	}

	return utils.OK(c, result.Items, "recent activity", result.Pagination)
}
