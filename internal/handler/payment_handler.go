package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/service"
	"github.com/noah-isme/edu-center-api/internal/utils"
)

// PaymentHandler wires payment records and their status transitions.
type PaymentHandler struct {
	service service.PaymentService
	logger  zerolog.Logger
}

// NewPaymentHandler constructs the handler.
func NewPaymentHandler(service service.PaymentService, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  logger.With().Str("component", "payment_handler").Logger(),
	}
}

// Register attaches the /payments routes.
func (h *PaymentHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Delete("/:id", h.delete)
	router.Post("/:id/complete", h.transition(h.service.Complete, "payment completed"))
	router.Post("/:id/fail", h.transition(h.service.Fail, "payment failed"))
	router.Post("/:id/cancel", h.transition(h.service.Cancel, "payment canceled"))
	router.Post("/:id/refund", h.transition(h.service.Refund, "payment refunded"))
}

type paymentTransition func(ctx context.Context, actor service.Actor, id uint, req dto.PaymentTransitionRequest) (models.Payment, error)

func (h *PaymentHandler) transition(apply paymentTransition, message string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseUintParam(c, "id")
		if err != nil {
			return respond(c, h.logger, err)
		}

		var payload dto.PaymentTransitionRequest
		if err := parseOptionalBody(c, &payload); err != nil {
			return respond(c, h.logger, err)
		}

		payment, err := apply(requestContext(c), middleware.ActorFromContext(c), id, payload)
		if err != nil {
			return respond(c, h.logger, err)
		}

		return utils.SendSuccess(c, message, payment)
	}
}

func (h *PaymentHandler) list(c *fiber.Ctx) error {
	var req dto.PaymentListRequest
	if err := parseQuery(c, &req); err != nil {
		return respond(c, h.logger, err)
	}

	page, err := h.service.List(requestContext(c), middleware.ActorFromContext(c), req)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.OK(c, page.Items, "payments", page.Pagination)
}

func (h *PaymentHandler) create(c *fiber.Ctx) error {
	var payload dto.PaymentCreateRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	payment, err := h.service.Create(requestContext(c), middleware.ActorFromContext(c), payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "payment recorded", payment)
}

func (h *PaymentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	payment, err := h.service.Get(requestContext(c), middleware.ActorFromContext(c), id, includeDeleted(c))
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "payment retrieved", payment)
}

func (h *PaymentHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	if err := h.service.Delete(requestContext(c), middleware.ActorFromContext(c), id); err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "payment deleted", fiber.Map{"id": id})
}
