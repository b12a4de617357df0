package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/service"
	"github.com/noah-isme/edu-center-api/internal/utils"
)

// UserHandler exposes account administration and role endpoints.
type UserHandler struct {
	service service.UserService
	logger  zerolog.Logger
}

// NewUserHandler constructs the handler.
func NewUserHandler(service service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger.With().Str("component", "user_handler").Logger(),
	}
}

// Register binds the /users routes.
func (h *UserHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Patch("/:id", h.updateProfile)
	router.Put("/:id/roles", h.assignRoles)
	router.Patch("/:id/active", h.setActive)
	router.Delete("/:id", h.delete)
}

// RegisterRoles binds the /roles routes.
func (h *UserHandler) RegisterRoles(router fiber.Router) {
	router.Get("", h.listRoles)
	router.Post("", h.createRole)
	router.Patch("/:id", h.updateRole)
	router.Delete("/:id", h.deleteRole)
	router.Post("/:id/permissions", h.addRolePermission)
	router.Delete("/:id/permissions/:code", h.removeRolePermission)
}

// RegisterPermissions binds the /permissions catalog routes.
func (h *UserHandler) RegisterPermissions(router fiber.Router) {
	router.Get("", h.listPermissions)
	router.Post("", h.createPermission)
	router.Patch("/:id", h.updatePermission)
	router.Delete("/:id", h.deletePermission)
}

func (h *UserHandler) list(c *fiber.Ctx) error {
	var req dto.UserListRequest
	if err := parseQuery(c, &req); err != nil {
		return respond(c, h.logger, err)
	}

	page, err := h.service.List(requestContext(c), middleware.ActorFromContext(c), req)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.OK(c, page.Items, "users", page.Pagination)
}

func (h *UserHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	user, err := h.service.Get(requestContext(c), middleware.ActorFromContext(c), id, includeDeleted(c))
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "user retrieved", user)
}

func (h *UserHandler) updateProfile(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var patch dto.UserProfilePatch
	if err := parseBody(c, &patch); err != nil {
		return respond(c, h.logger, err)
	}

	user, err := h.service.UpdateProfile(requestContext(c), middleware.ActorFromContext(c), id, patch)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "profile updated", user)
}

func (h *UserHandler) assignRoles(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var payload dto.AssignRolesRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	user, err := h.service.AssignRoles(requestContext(c), middleware.ActorFromContext(c), id, payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "roles assigned", user)
}

func (h *UserHandler) setActive(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var payload dto.SetActiveRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	user, err := h.service.SetActive(requestContext(c), middleware.ActorFromContext(c), id, payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "account status updated", user)
}

func (h *UserHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	if err := h.service.Delete(requestContext(c), middleware.ActorFromContext(c), id); err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "user deleted", fiber.Map{"id": id})
}

func (h *UserHandler) listRoles(c *fiber.Ctx) error {
	roles, err := h.service.ListRoles(requestContext(c), middleware.ActorFromContext(c))
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "roles", roles)
}

func (h *UserHandler) createRole(c *fiber.Ctx) error {
	var payload dto.RoleCreateRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	role, err := h.service.CreateRole(requestContext(c), middleware.ActorFromContext(c), payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "role created", role)
}

func (h *UserHandler) updateRole(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var payload dto.RolePatch
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	role, err := h.service.UpdateRole(requestContext(c), middleware.ActorFromContext(c), id, payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "role updated", role)
}

func (h *UserHandler) deleteRole(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	if err := h.service.DeleteRole(requestContext(c), middleware.ActorFromContext(c), id); err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "role deleted", fiber.Map{"id": id})
}

func (h *UserHandler) addRolePermission(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var payload dto.RolePermissionRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	role, err := h.service.AddRolePermission(requestContext(c), middleware.ActorFromContext(c), id, payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "permission granted", role)
}

func (h *UserHandler) removeRolePermission(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	role, err := h.service.RemoveRolePermission(requestContext(c), middleware.ActorFromContext(c), id, c.Params("code"))
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "permission revoked", role)
}

func (h *UserHandler) listPermissions(c *fiber.Ctx) error {
	permissions, err := h.service.ListPermissions(requestContext(c), middleware.ActorFromContext(c))
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "permissions", permissions)
}

func (h *UserHandler) createPermission(c *fiber.Ctx) error {
	var payload dto.PermissionCreateRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	permission, err := h.service.CreatePermission(requestContext(c), middleware.ActorFromContext(c), payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "permission created", permission)
}

func (h *UserHandler) updatePermission(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	var payload dto.PermissionPatch
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	permission, err := h.service.UpdatePermission(requestContext(c), middleware.ActorFromContext(c), id, payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "permission updated", permission)
}

func (h *UserHandler) deletePermission(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respond(c, h.logger, err)
	}

	if err := h.service.DeletePermission(requestContext(c), middleware.ActorFromContext(c), id); err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "permission deleted", fiber.Map{"id": id})
}
