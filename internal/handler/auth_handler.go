package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/service"
	"github.com/noah-isme/edu-center-api/internal/utils"
)

// AuthHandler exposes registration, login and token lifecycle endpoints.
type AuthHandler struct {
	auth   service.AuthService
	users  service.UserService
	logger zerolog.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(auth service.AuthService, users service.UserService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		users:  users,
		logger: logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register binds the public auth routes; protected routes go through authenticate.
func (h *AuthHandler) Register(router fiber.Router, authenticate fiber.Handler) {
	router.Post("/register", h.register)
	router.Post("/login", h.login)
	router.Post("/refresh", h.refresh)
	router.Post("/logout", authenticate, h.logout)
	router.Get("/me", authenticate, h.me)
}

func (h *AuthHandler) register(c *fiber.Ctx) error {
	var payload dto.RegisterRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	user, err := h.auth.Register(requestContext(c), payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "user registered", user)
}

func (h *AuthHandler) login(c *fiber.Ctx) error {
	var payload dto.LoginRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	tokens, err := h.auth.Login(requestContext(c), payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "login successful", tokens)
}

func (h *AuthHandler) refresh(c *fiber.Ctx) error {
	var payload dto.RefreshRequest
	if err := parseBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	tokens, err := h.auth.Refresh(requestContext(c), payload)
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "token refreshed", tokens)
}

func (h *AuthHandler) logout(c *fiber.Ctx) error {
	var payload dto.RefreshRequest
	if err := parseOptionalBody(c, &payload); err != nil {
		return respond(c, h.logger, err)
	}

	accessToken, err := middleware.BearerToken(c)
	if err != nil {
		return respond(c, h.logger, err)
	}

	if err := h.auth.Logout(requestContext(c), accessToken, payload.RefreshToken); err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "logged out", nil)
}

func (h *AuthHandler) me(c *fiber.Ctx) error {
	user, err := h.users.GetMe(requestContext(c), middleware.ActorFromContext(c))
	if err != nil {
		return respond(c, h.logger, err)
	}

	return utils.SendSuccess(c, "current user", user)
}
