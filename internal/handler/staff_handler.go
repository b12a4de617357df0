package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/service"
	"github.com/noah-isme/edu-center-api/internal/utils"
)

// StaffHandler wires staff assignment routes.
type StaffHandler struct {
	service service.StaffService
	logger  zerolog.Logger
}

// NewStaffHandler constructs the handler.
func NewStaffHandler(service service.StaffService, logger zerolog.Logger) *StaffHandler {
	return &StaffHandler{
		service: service,
		logger:  logger.With().Str("component", "staff_handler").Logger(),
	}
}

// RegisterCourseRoutes attaches the collection routes to the /courses group.
func (h *StaffHandler) RegisterCourseRoutes(router fiber.Router) {
	router.Get("/:id/staff", h.list)
	router.Post("/:id/staff", h.assign)
}

// Register attaches single-assignment routes to the /staff-assignments group.
func (h *StaffHandler) Register(router fiber.Router) {
	router.Patch("/:id", h.update)
	router.Delete("/:id", h.delete)
}

func (h *StaffHandler) list(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var query dto.ListQuery
	if err := parseQuery(c, &query); err != nil {
		return respond(c, h.logger, err)
	}

	page, err := h.service.List(requestContext(c), middleware.ActorFromContext(c), courseID, query)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.OK(c, page.Items, "staff assignments", page.Pagination)
}

func (h *StaffHandler) assign(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var payload dto.StaffAssignmentCreateRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	assignment, err := h.service.Assign(requestContext(c), middleware.ActorFromContext(c), courseID, payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "staff assigned", assignment)
}

func (h *StaffHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var patch dto.StaffAssignmentPatch
	if err := parseBody(c, &patch); err != nil {
		return respond(c, h.logger, err)
	}

	assignment, err := h.service.Update(requestContext(c), middleware.ActorFromContext(c), id, patch)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "staff assignment updated", assignment)
}

func (h *StaffHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	if err := h.service.Delete(requestContext(c), middleware.ActorFromContext(c), id); err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "staff assignment deleted", fiber.Map{"id": id})
}
