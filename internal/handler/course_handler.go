package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/service"
	"github.com/noah-isme/edu-center-api/internal/utils"
)

// CourseHandler wires course, lesson and member routes.
type CourseHandler struct {
	service service.CourseService
	logger  zerolog.Logger
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(service service.CourseService, logger zerolog.Logger) *CourseHandler {
	return &CourseHandler{
		service: service,
		logger:  logger.With().Str("component", "course_handler").Logger(),
	}
}

// Register attaches course endpoints to the /courses group.
func (h *CourseHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Patch("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Get("/:id/lessons", h.listLessons)
	router.Post("/:id/lessons", h.createLesson)
	router.Get("/:id/members", h.listMembers)
	router.Patch("/:id/members/:userId", h.updateMember)
	router.Delete("/:id/members/:userId", h.removeMember)
}

// RegisterUserCourses attaches membership lookups to the /users group.
func (h *CourseHandler) RegisterUserCourses(router fiber.Router) {
	router.Get("/me/courses", h.listUserCourses)
	router.Get("/:id/courses", h.listUserCourses)
}

// RegisterLessons attaches single-lesson endpoints to the /lessons group.
func (h *CourseHandler) RegisterLessons(router fiber.Router) {
	router.Get("/:id", h.getLesson)
	router.Patch("/:id", h.updateLesson)
	router.Delete("/:id", h.deleteLesson)
}

func (h *CourseHandler) list(c *fiber.Ctx) error {
	var req dto.CourseListRequest
	if err := parseQuery(c, &req); err != nil {
		return respond(c, h.logger, err)
	}

	page, err := h.service.ListCourses(requestContext(c), middleware.ActorFromContext(c), req)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.OK(c, page.Items, "courses", page.Pagination)
}

func (h *CourseHandler) create(c *fiber.Ctx) error {
	var payload dto.CourseCreateRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	course, err := h.service.CreateCourse(requestContext(c), middleware.ActorFromContext(c), payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "course created", course)
}

func (h *CourseHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	course, err := h.service.GetCourse(requestContext(c), middleware.ActorFromContext(c), id, includeDeleted(c))
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "course retrieved", course)
}

func (h *CourseHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var patch dto.CoursePatch
	if err := parseBody(c, &patch); err != nil {
		return respond(c, h.logger, err)
	}

	course, err := h.service.UpdateCourse(requestContext(c), middleware.ActorFromContext(c), id, patch)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "course updated", course)
}

func (h *CourseHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	if err := h.service.DeleteCourse(requestContext(c), middleware.ActorFromContext(c), id); err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "course deleted", fiber.Map{"id": id})
}

func (h *CourseHandler) listLessons(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var query dto.ListQuery
	if err := parseQuery(c, &query); err != nil {
		return respond(c, h.logger, err)
	}

	page, err := h.service.ListLessons(requestContext(c), middleware.ActorFromContext(c), courseID, query)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.OK(c, page.Items, "lessons", page.Pagination)
}

func (h *CourseHandler) createLesson(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var payload dto.LessonCreateRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	lesson, err := h.service.CreateLesson(requestContext(c), middleware.ActorFromContext(c), courseID, payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "lesson created", lesson)
}

func (h *CourseHandler) getLesson(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	lesson, err := h.service.GetLesson(requestContext(c), middleware.ActorFromContext(c), id, includeDeleted(c))
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "lesson retrieved", lesson)
}

func (h *CourseHandler) updateLesson(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var patch dto.LessonPatch
	if err := parseBody(c, &patch); err != nil {
		return respond(c, h.logger, err)
	}

	lesson, err := h.service.UpdateLesson(requestContext(c), middleware.ActorFromContext(c), id, patch)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "lesson updated", lesson)
}

func (h *CourseHandler) deleteLesson(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	if err := h.service.DeleteLesson(requestContext(c), middleware.ActorFromContext(c), id); err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "lesson deleted", fiber.Map{"id": id})
}

func (h *CourseHandler) listMembers(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var query dto.ListQuery
	if err := parseQuery(c, &query); err != nil {
		return respond(c, h.logger, err)
	}

	page, err := h.service.ListMembers(requestContext(c), middleware.ActorFromContext(c), courseID, query)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.OK(c, page.Items, "course members", page.Pagination)
}

func (h *CourseHandler) updateMember(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}
	userID, err := parseUintParam(c, "userId")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var payload dto.CourseMemberPatch
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	member, err := h.service.UpdateMember(requestContext(c), middleware.ActorFromContext(c), courseID, userID, payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "course member updated", member)
}

func (h *CourseHandler) removeMember(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}
	userID, err := parseUintParam(c, "userId")
	if err != nil {
		return respond(c, h.logger, err)
	}

	if err := h.service.RemoveMember(requestContext(c), middleware.ActorFromContext(c), courseID, userID); err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "course member removed", fiber.Map{"course_id": courseID, "user_id": userID})
}

// listUserCourses serves both /users/me/courses and /users/:id/courses.
func (h *CourseHandler) listUserCourses(c *fiber.Ctx) error {
	var userID uint
	if c.Params("id") != "" {
		id, err := parseUintParam(c, "id")
		if err != nil {
			return respond(c, h.logger, err)
		}
		userID = id
	}

	var query dto.ListQuery
	if err := parseQuery(c, &query); err != nil {
		return respond(c, h.logger, err)
	}

	page, err := h.service.ListUserCourses(requestContext(c), middleware.ActorFromContext(c), userID, query)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.OK(c, page.Items, "user courses", page.Pagination)
}
