package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/service"
	"github.com/noah-isme/edu-center-api/internal/utils"
)

// MaterialHandler wires teaching material routes. Multipart requests carrying
// a file are stored through the upload backend, anything else is a link.
type MaterialHandler struct {
	service service.MaterialService
	logger  zerolog.Logger
}

// NewMaterialHandler constructs the handler.
func NewMaterialHandler(service service.MaterialService, logger zerolog.Logger) *MaterialHandler {
	return &MaterialHandler{
		service: service,
		logger:  logger.With().Str("component", "material_handler").Logger(),
	}
}

// RegisterCourseRoutes attaches the collection routes to the /courses group.
func (h *MaterialHandler) RegisterCourseRoutes(router fiber.Router) {
	router.Get("/:id/materials", h.list)
	router.Post("/:id/materials", h.create)
}

// Register attaches single-material routes to the /materials group.
func (h *MaterialHandler) Register(router fiber.Router) {
	router.Get("/:id", h.get)
	router.Delete("/:id", h.delete)
}

func (h *MaterialHandler) list(c *fiber.Ctx) error {
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

	return utils.OK(c, page.Items, "materials", page.Pagination)
}

func (h *MaterialHandler) create(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var payload dto.MaterialCreateRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	ctx := requestContext(c)
	actor := middleware.ActorFromContext(c)

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		if file, ferr := c.FormFile("file"); ferr == nil {
			material, err := h.service.Upload(ctx, actor, courseID, payload, file)
			if err != nil {
				return respond(c, h.logger, err)
			}
			return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "material uploaded", material)
		}
	}

	material, err := h.service.CreateLink(ctx, actor, courseID, payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "material created", material)
}

func (h *MaterialHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	material, err := h.service.Get(requestContext(c), middleware.ActorFromContext(c), id, includeDeleted(c))
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "material retrieved", material)
}

func (h *MaterialHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	if err := h.service.Delete(requestContext(c), middleware.ActorFromContext(c), id); err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "material deleted", fiber.Map{"id": id})
}
