package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/service"
	"github.com/noah-isme/edu-center-api/internal/utils"
)

// ForumHandler wires forum topics and posts.
type ForumHandler struct {
	service service.ForumService
	logger  zerolog.Logger
}

// NewForumHandler constructs the handler.
func NewForumHandler(service service.ForumService, logger zerolog.Logger) *ForumHandler {
	return &ForumHandler{
		service: service,
		logger:  logger.With().Str("component", "forum_handler").Logger(),
	}
}

// Register attaches topic and post routes to the /forum group.
func (h *ForumHandler) Register(router fiber.Router) {
	topics := router.Group("/topics")
	topics.Get("", h.listTopics)
	topics.Post("", h.createTopic)
	topics.Get("/:id", h.getTopic)
	topics.Patch("/:id", h.updateTopic)
	topics.Delete("/:id", h.deleteTopic)
	topics.Get("/:id/posts", h.listPosts)
	topics.Post("/:id/posts", h.createPost)

	posts := router.Group("/posts")
	posts.Patch("/:id", h.updatePost)
	posts.Delete("/:id", h.deletePost)
}

func (h *ForumHandler) listTopics(c *fiber.Ctx) error {
	var req dto.ForumTopicListRequest
	if err := parseQuery(c, &req); err != nil {
		return respond(c, h.logger, err)
	}

	page, err := h.service.ListTopics(requestContext(c), middleware.ActorFromContext(c), req)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.OK(c, page.Items, "forum topics", page.Pagination)
}

func (h *ForumHandler) createTopic(c *fiber.Ctx) error {
	var payload dto.ForumTopicCreateRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	topic, err := h.service.CreateTopic(requestContext(c), middleware.ActorFromContext(c), payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "topic created", topic)
}

func (h *ForumHandler) getTopic(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	topic, err := h.service.GetTopic(requestContext(c), middleware.ActorFromContext(c), id, includeDeleted(c))
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "topic retrieved", topic)
}

func (h *ForumHandler) updateTopic(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var patch dto.ForumTopicPatch
	if err := parseBody(c, &patch); err != nil {
		return respond(c, h.logger, err)
	}

	topic, err := h.service.UpdateTopic(requestContext(c), middleware.ActorFromContext(c), id, patch)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "topic updated", topic)
}

func (h *ForumHandler) deleteTopic(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	if err := h.service.DeleteTopic(requestContext(c), middleware.ActorFromContext(c), id); err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "topic deleted", fiber.Map{"id": id})
}

func (h *ForumHandler) listPosts(c *fiber.Ctx) error {
	topicID, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var req dto.ForumPostListRequest
	if err := parseQuery(c, &req); err != nil {
		return respond(c, h.logger, err)
	}

	page, err := h.service.ListPosts(requestContext(c), middleware.ActorFromContext(c), topicID, req)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.OK(c, page.Items, "forum posts", page.Pagination)
}

func (h *ForumHandler) createPost(c *fiber.Ctx) error {
	topicID, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var payload dto.ForumPostCreateRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	post, err := h.service.CreatePost(requestContext(c), middleware.ActorFromContext(c), topicID, payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "post created", post)
}

func (h *ForumHandler) updatePost(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var patch dto.ForumPostPatch
	if err := parseBody(c, &patch); err != nil {
		return respond(c, h.logger, err)
	}

	post, err := h.service.UpdatePost(requestContext(c), middleware.ActorFromContext(c), id, patch)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "post updated", post)
}

func (h *ForumHandler) deletePost(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	if err := h.service.DeletePost(requestContext(c), middleware.ActorFromContext(c), id); err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "post deleted", fiber.Map{"id": id})
}
