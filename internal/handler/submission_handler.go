package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/service"
	"github.com/noah-isme/edu-center-api/internal/utils"
)

// SubmissionHandler wires the submission lifecycle and the grading endpoints.
type SubmissionHandler struct {
	submissions service.SubmissionService
	grading     service.GradingService
	logger      zerolog.Logger
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(submissions service.SubmissionService, grading service.GradingService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		submissions: submissions,
		grading:     grading,
		logger:      logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the /submissions routes.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.createDraft)
	router.Get("/:id", h.get)
	router.Patch("/:id", h.updateDraft)
	router.Delete("/:id", h.delete)
	router.Post("/:id/submit", h.submit)
	router.Post("/:id/grade", h.grade)
	router.Post("/:id/regrade", h.regrade)
	router.Get("/:id/history", h.history)
	router.Post("/:id/suggestion", h.suggest)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	var req dto.SubmissionListRequest
	if err := parseQuery(c, &req); err != nil {
		return respond(c, h.logger, err)
	}

	page, err := h.submissions.List(requestContext(c), middleware.ActorFromContext(c), req)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.OK(c, page.Items, "submissions", page.Pagination)
}

func (h *SubmissionHandler) createDraft(c *fiber.Ctx) error {
	var payload dto.SubmissionDraftRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	submission, err := h.submissions.CreateDraft(requestContext(c), middleware.ActorFromContext(c), payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "draft created", submission)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	submission, err := h.submissions.Get(requestContext(c), middleware.ActorFromContext(c), id, includeDeleted(c))
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) updateDraft(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var patch dto.SubmissionDraftPatch
	if err := parseBody(c, &patch); err != nil {
		return respond(c, h.logger, err)
	}

	submission, err := h.submissions.UpdateDraft(requestContext(c), middleware.ActorFromContext(c), id, patch)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "draft updated", submission)
}

func (h *SubmissionHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	if err := h.submissions.Delete(requestContext(c), middleware.ActorFromContext(c), id); err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submission deleted", fiber.Map{"id": id})
}

func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var payload dto.SubmitRequest
	if err := parseOptionalBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	submission, err := h.submissions.Submit(requestContext(c), middleware.ActorFromContext(c), id, payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submission handed in", submission)
}

func (h *SubmissionHandler) grade(c *fiber.Ctx) error {
	return h.applyGrade(c, false)
}

func (h *SubmissionHandler) regrade(c *fiber.Ctx) error {
	return h.applyGrade(c, true)
}

func (h *SubmissionHandler) applyGrade(c *fiber.Ctx, regrade bool) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var payload dto.GradeRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	ctx := requestContext(c)
	actor := middleware.ActorFromContext(c)

	var submission dto.SubmissionResponse
	if regrade {
		submission, err = h.grading.Regrade(ctx, actor, id, payload)
	} else {
		submission, err = h.grading.Grade(ctx, actor, id, payload)
	}
	if err != nil {
		return respond(c, h.logger, err)
	}

	requestLogger(h.logger, c).Info().
		Uint("submission_id", id).
		Uint("grader_id", actor.ID).
		Bool("regrade", regrade).
		Msg("submission graded")

	return utils.SendSuccess(c, "submission graded", submission)
}

func (h *SubmissionHandler) history(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	entries, err := h.grading.History(requestContext(c), middleware.ActorFromContext(c), id)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "grade history", entries)
}

func (h *SubmissionHandler) suggest(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	suggestion, err := h.grading.Suggest(requestContext(c), middleware.ActorFromContext(c), id)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "grading suggestion", suggestion)
}
