package utils_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/utils"
)

func TestOKIncludesMetaAndDefaults(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		data := map[string]string{"hello": "world"}
		meta := map[string]int{"page": 1}
		return utils.OK(c, data, "", meta)
	})

	resp := performRequest(t, app, http.MethodGet, "/")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Success bool                   `json:"success"`
		Message string                 `json:"message"`
		Data    map[string]string      `json:"data"`
		Meta    map[string]interface{} `json:"meta"`
	}
	decode(t, resp, &payload)

	require.True(t, payload.Success)
	require.Equal(t, "success", payload.Message)
	require.Equal(t, "world", payload.Data["hello"])
	require.Equal(t, float64(1), payload.Meta["page"])
}

func TestFailIncludesDetails(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		details := map[string]string{"field": "studentId"}
		return utils.Fail(c, fiber.StatusBadRequest, "invalid payload", details)
	})

	resp := performRequest(t, app, http.MethodGet, "/")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var payload struct {
		Success bool                   `json:"success"`
		Message string                 `json:"message"`
		Details map[string]string      `json:"details"`
		Data    map[string]interface{} `json:"data"`
	}
	decode(t, resp, &payload)

	require.False(t, payload.Success)
	require.Equal(t, "invalid payload", payload.Message)
	require.Equal(t, "studentId", payload.Details["field"])
	require.Nil(t, payload.Data)
}

func TestSendAppErrorMapsKinds(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
		code   string
	}{
		"unauthenticated": {apperror.Unauthenticated("token expired"), fiber.StatusUnauthorized, "unauthenticated"},
		"forbidden":       {apperror.Forbidden("insufficient permissions"), fiber.StatusForbidden, "forbidden"},
		"not found":       {apperror.NotFound("course"), fiber.StatusNotFound, "not_found"},
		"conflict":        {apperror.Conflict("course is full"), fiber.StatusConflict, "conflict"},
		"invalid state":   {apperror.InvalidState("already graded"), fiber.StatusUnprocessableEntity, "invalid_state"},
		"validation":      {apperror.Validation("bad score"), fiber.StatusBadRequest, "validation_error"},
		"unavailable":     {apperror.New(apperror.KindUnavailable, "assistant offline"), fiber.StatusServiceUnavailable, "unavailable"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				return utils.SendAppError(c, tc.err)
			})

			resp := performRequest(t, app, http.MethodGet, "/")
			require.Equal(t, tc.status, resp.StatusCode)

			var payload struct {
				Success bool   `json:"success"`
				Code    string `json:"code"`
				Message string `json:"message"`
			}
			decode(t, resp, &payload)
			require.False(t, payload.Success)
			require.Equal(t, tc.code, payload.Code)
			require.Equal(t, tc.err.Error(), payload.Message)
		})
	}
}

func TestSendAppErrorHidesInternalCause(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return utils.SendAppError(c, apperror.Internal(errors.New("pq: connection refused")))
	})

	resp := performRequest(t, app, http.MethodGet, "/")
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	var payload struct {
		Message string `json:"message"`
	}
	decode(t, resp, &payload)
	require.Equal(t, "internal server error", payload.Message)
}

func TestSendAppErrorListsValidationFields(t *testing.T) {
	type request struct {
		Email string `validate:"required,email"`
	}
	validationErr := validator.New().Struct(request{Email: "nope"})
	require.Error(t, validationErr)

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return utils.SendAppError(c, apperror.Wrap(apperror.KindValidation, validationErr, "invalid payload"))
	})

	resp := performRequest(t, app, http.MethodGet, "/")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var payload struct {
		Details []utils.FieldError `json:"details"`
	}
	decode(t, resp, &payload)
	require.Len(t, payload.Details, 1)
	require.Equal(t, "email", payload.Details[0].Field)
	require.Equal(t, "email", payload.Details[0].Rule)
}

func performRequest(t *testing.T, app *fiber.App, method, path string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}
