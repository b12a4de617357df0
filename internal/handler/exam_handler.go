package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/service"
	"github.com/noah-isme/edu-center-api/internal/utils"
)

// ExamHandler wires exam definitions and exam attempts.
type ExamHandler struct {
	exams    service.ExamService
	attempts service.ExamSubmissionService
	logger   zerolog.Logger
}

// NewExamHandler constructs the handler.
func NewExamHandler(exams service.ExamService, attempts service.ExamSubmissionService, logger zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		exams:    exams,
		attempts: attempts,
		logger:   logger.With().Str("component", "exam_handler").Logger(),
	}
}

// Register attaches the /exams routes.
func (h *ExamHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Patch("/:id", h.update)
	router.Patch("/:id/status", h.changeStatus)
	router.Delete("/:id", h.delete)
	router.Post("/:id/attempts", h.start)
}

// RegisterSubmissions attaches the /exam-submissions routes.
func (h *ExamHandler) RegisterSubmissions(router fiber.Router) {
	router.Get("", h.listAttempts)
	router.Get("/:id", h.getAttempt)
	router.Post("/:id/submit", h.submitAttempt)
	router.Post("/:id/grade", h.gradeAttempt)
	router.Post("/:id/regrade", h.regradeAttempt)
	router.Delete("/:id", h.deleteAttempt)
}

func (h *ExamHandler) list(c *fiber.Ctx) error {
	var req dto.ExamListRequest
	if err := parseQuery(c, &req); err != nil {
		return respond(c, h.logger, err)
	}

	page, err := h.exams.List(requestContext(c), middleware.ActorFromContext(c), req)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.OK(c, page.Items, "exams", page.Pagination)
}

func (h *ExamHandler) create(c *fiber.Ctx) error {
	var payload dto.ExamCreateRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	exam, err := h.exams.Create(requestContext(c), middleware.ActorFromContext(c), payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "exam created", exam)
}

func (h *ExamHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	exam, err := h.exams.Get(requestContext(c), middleware.ActorFromContext(c), id, includeDeleted(c))
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "exam retrieved", exam)
}

func (h *ExamHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var patch dto.ExamPatch
	if err := parseBody(c, &patch); err != nil {
		return respond(c, h.logger, err)
	}

	exam, err := h.exams.Update(requestContext(c), middleware.ActorFromContext(c), id, patch)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "exam updated", exam)
}

func (h *ExamHandler) changeStatus(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var payload dto.ExamStatusRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	exam, err := h.exams.ChangeStatus(requestContext(c), middleware.ActorFromContext(c), id, payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "exam status updated", exam)
}

func (h *ExamHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	if err := h.exams.Delete(requestContext(c), middleware.ActorFromContext(c), id); err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "exam deleted", fiber.Map{"id": id})
}

func (h *ExamHandler) start(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	attempt, err := h.attempts.Start(requestContext(c), middleware.ActorFromContext(c), examID)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "exam attempt started", attempt)
}

func (h *ExamHandler) listAttempts(c *fiber.Ctx) error {
	var req dto.ExamSubmissionListRequest
	if err := parseQuery(c, &req); err != nil {
		return respond(c, h.logger, err)
	}

	page, err := h.attempts.List(requestContext(c), middleware.ActorFromContext(c), req)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.OK(c, page.Items, "exam submissions", page.Pagination)
}

func (h *ExamHandler) getAttempt(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	attempt, err := h.attempts.Get(requestContext(c), middleware.ActorFromContext(c), id, includeDeleted(c))
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "exam submission retrieved", attempt)
}

func (h *ExamHandler) submitAttempt(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var payload dto.ExamSubmitRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	attempt, err := h.attempts.Submit(requestContext(c), middleware.ActorFromContext(c), id, payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "exam submitted", attempt)
}

func (h *ExamHandler) gradeAttempt(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var payload dto.GradeRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	attempt, err := h.attempts.Grade(requestContext(c), middleware.ActorFromContext(c), id, payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "exam submission graded", attempt)
}

func (h *ExamHandler) regradeAttempt(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var payload dto.GradeRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	attempt, err := h.attempts.Regrade(requestContext(c), middleware.ActorFromContext(c), id, payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "exam submission regraded", attempt)
}

func (h *ExamHandler) deleteAttempt(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	if err := h.attempts.Delete(requestContext(c), middleware.ActorFromContext(c), id); err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "exam submission deleted", fiber.Map{"id": id})
}
