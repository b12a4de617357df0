package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/edu-center-api/internal/service"
	"github.com/noah-isme/edu-center-api/internal/utils"
)

// Require admits the authenticated actor only when its roles or permissions
// intersect required. An empty list admits any authenticated actor.
func Require(required ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := service.Authorize(ActorFromContext(c), required...); err != nil {
			return utils.SendAppError(c, err)
		}
		return c.Next()
	}
}
