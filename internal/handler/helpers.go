package handler

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, apperror.Newf(apperror.KindValidation, "invalid %s", key)
	}
	return parsed, nil
}

func parseQueryTime(c *fiber.Ctx, key string) (*time.Time, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, apperror.Newf(apperror.KindValidation, "invalid %s timestamp", key)
	}
	return &parsed, nil
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	parsed, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || parsed == 0 {
		return 0, apperror.Validation("invalid identifier")
	}
	return uint(parsed), nil
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apperror.Wrap(apperror.KindValidation, err, "invalid payload")
	}
	return nil
}

// parseOptionalBody tolerates an empty body for endpoints whose payload is optional.
func parseOptionalBody(c *fiber.Ctx, out interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	return parseBody(c, out)
}

func parseQuery(c *fiber.Ctx, out interface{}) error {
	if err := c.QueryParser(out); err != nil {
		return apperror.Wrap(apperror.KindValidation, err, "invalid query")
	}
	return nil
}

func includeDeleted(c *fiber.Ctx) bool {
	return c.QueryBool("include_deleted", false)
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.WithCorrelation(ctx, middleware.CorrelationIDOf(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.CorrelationIDOf(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

// respond renders err through the typed error envelope. Internal failures are logged.
func respond(c *fiber.Ctx, base zerolog.Logger, err error) error {
	if apperror.KindOf(err) == apperror.KindInternal {
		requestLogger(base, c).Error().Err(err).Str("route", c.Path()).Msg("internal server error")
	}
	return utils.SendAppError(c, err)
}
