package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/service"
	"github.com/noah-isme/edu-center-api/internal/utils"
)

// EnrollmentHandler wires the enrollment request workflow.
type EnrollmentHandler struct {
	service service.EnrollmentService
	logger  zerolog.Logger
}

// NewEnrollmentHandler constructs the handler.
func NewEnrollmentHandler(service service.EnrollmentService, logger zerolog.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{
		service: service,
		logger:  logger.With().Str("component", "enrollment_handler").Logger(),
	}
}

// Register attaches the /enrollment-requests routes.
func (h *EnrollmentHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Post("/:id/decision", h.decide)
	router.Post("/:id/cancel", h.cancel)
	router.Post("/:id/assign", h.assign)
}

func (h *EnrollmentHandler) list(c *fiber.Ctx) error {
	var req dto.EnrollmentListRequest
	if err := parseQuery(c, &req); err != nil {
		return respond(c, h.logger, err)
	}

	page, err := h.service.List(requestContext(c), middleware.ActorFromContext(c), req)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.OK(c, page.Items, "enrollment requests", page.Pagination)
}

func (h *EnrollmentHandler) create(c *fiber.Ctx) error {
	var payload dto.EnrollmentCreateRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	request, err := h.service.Create(requestContext(c), middleware.ActorFromContext(c), payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "enrollment requested", request)
}

func (h *EnrollmentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	request, err := h.service.Get(requestContext(c), middleware.ActorFromContext(c), id)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "enrollment request retrieved", request)
}

func (h *EnrollmentHandler) decide(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var payload dto.EnrollmentDecisionRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	request, err := h.service.Decide(requestContext(c), middleware.ActorFromContext(c), id, payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "enrollment request decided", request)
}

func (h *EnrollmentHandler) cancel(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var payload dto.EnrollmentCancelRequest
	if err := parseOptionalBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	request, err := h.service.Cancel(requestContext(c), middleware.ActorFromContext(c), id, payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "enrollment request cancelled", request)
}

func (h *EnrollmentHandler) assign(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var payload dto.EnrollmentAssignRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	request, err := h.service.AssignHandler(requestContext(c), middleware.ActorFromContext(c), id, payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "enrollment request assigned", request)
}
