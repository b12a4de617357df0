package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/service"
	"github.com/noah-isme/edu-center-api/internal/utils"
)

// AssignmentHandler wires assignment HTTP routes.
type AssignmentHandler struct {
	service service.AssignmentService
	logger  zerolog.Logger
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(service service.AssignmentService, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		service: service,
		logger:  logger.With().Str("component", "assignment_handler").Logger(),
	}
}

// Register attaches assignment endpoints to the router group.
func (h *AssignmentHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("", h.create)
	router.Patch("/:id", h.update)
	router.Delete("/:id", h.delete)
}

func (h *AssignmentHandler) list(c *fiber.Ctx) error {
	var req dto.AssignmentListRequest
	if err := parseQuery(c, &req); err != nil {
		return respond(c, h.logger, err)
	}

	page, err := h.service.List(requestContext(c), middleware.ActorFromContext(c), req)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.OK(c, page.Items, "assignments retrieved", page.Pagination)
}

func (h *AssignmentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	assignment, err := h.service.Get(requestContext(c), middleware.ActorFromContext(c), id, includeDeleted(c))
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assignment retrieved", assignment)
}

func (h *AssignmentHandler) create(c *fiber.Ctx) error {
	var payload dto.AssignmentCreateRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	assignment, err := h.service.Create(requestContext(c), middleware.ActorFromContext(c), payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assignment created", assignment)
}

func (h *AssignmentHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var patch dto.AssignmentPatch
	if err := parseBody(c, &patch); err != nil {
		return respond(c, h.logger, err)
	}

	assignment, err := h.service.Update(requestContext(c), middleware.ActorFromContext(c), id, patch)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assignment updated", assignment)
}

func (h *AssignmentHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	if err := h.service.Delete(requestContext(c), middleware.ActorFromContext(c), id); err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assignment deleted", fiber.Map{"id": id})
}
