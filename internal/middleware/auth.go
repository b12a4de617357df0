package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/service"
	"github.com/noah-isme/edu-center-api/internal/utils"
)

// ActorLocalsKey is the request locals key holding the authenticated actor.
const ActorLocalsKey = "actor"

// Authenticator resolves a bearer credential into an actor.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (service.Actor, error)
}

// Authenticate rejects requests without a valid access token and stores the
// resolved actor in the request locals. Browsers cannot attach headers to
// EventSource or WebSocket requests, so the access_token query parameter is
// accepted as a fallback.
func Authenticate(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		credential, err := BearerToken(c)
		if err != nil {
			return utils.SendAppError(c, err)
		}

		ctx := WithCorrelation(c.UserContext(), CorrelationIDOf(c))
		actor, err := auth.Authenticate(ctx, credential)
		if err != nil {
			return utils.SendAppError(c, err)
		}

		c.Locals(ActorLocalsKey, actor)
		c.Locals("user_id", actor.ID)
		c.Locals("user_role", actor.PrimaryRole())

		return c.Next()
	}
}

// BearerToken extracts the raw token from the Authorization header.
func BearerToken(c *fiber.Ctx) (string, error) {
	authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if authorization == "" {
		if token := strings.TrimSpace(c.Query("access_token")); token != "" {
			return token, nil
		}
		return "", apperror.Unauthenticated("authorization header missing")
	}

	const bearer = "bearer "
	if len(authorization) <= len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
		return "", apperror.Unauthenticated("invalid authorization header")
	}

	token := strings.TrimSpace(authorization[len(bearer):])
	if token == "" {
		return "", apperror.Unauthenticated("invalid token")
	}
	return token, nil
}

// ActorFromContext returns the actor stored by Authenticate. The zero actor
// is returned for anonymous requests and fails authorization.
func ActorFromContext(c *fiber.Ctx) service.Actor {
	if c == nil {
		return service.Actor{}
	}
	if actor, ok := c.Locals(ActorLocalsKey).(service.Actor); ok {
		return actor
	}
	return service.Actor{}
}

// WithActor stores actor in the request locals. Tests use it in place of
// token verification.
func WithActor(actor service.Actor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(ActorLocalsKey, actor)
		c.Locals("user_id", actor.ID)
		c.Locals("user_role", actor.PrimaryRole())
		return c.Next()
	}
}
