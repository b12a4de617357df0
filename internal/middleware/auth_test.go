package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/service"
)

type fakeAuthenticator struct {
	tokens map[string]service.Actor
	seen   string
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, credential string) (service.Actor, error) {
	f.seen = credential
	actor, ok := f.tokens[credential]
	if !ok {
		return service.Actor{}, apperror.Unauthenticated("invalid token")
	}
	return actor, nil
}

func newAuthApp(auth middleware.Authenticator) *fiber.App {
	app := fiber.New()
	app.Use(middleware.Authenticate(auth))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		actor := middleware.ActorFromContext(c)
		return c.JSON(fiber.Map{"id": actor.ID, "role": c.Locals("user_role")})
	})
	return app
}

func TestAuthenticateStoresActor(t *testing.T) {
	auth := &fakeAuthenticator{tokens: map[string]service.Actor{
		"good": {ID: 7, Roles: []string{"teacher"}},
	}}
	app := newAuthApp(auth)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer good")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "good", auth.seen)
}

func TestAuthenticateRejectsMissingAndInvalidTokens(t *testing.T) {
	app := newAuthApp(&fakeAuthenticator{tokens: map[string]service.Actor{}})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer forged")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthenticateAcceptsQueryTokenForStreams(t *testing.T) {
	auth := &fakeAuthenticator{tokens: map[string]service.Actor{
		"stream": {ID: 3, Roles: []string{"student"}},
	}}
	app := newAuthApp(auth)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/whoami?access_token=stream", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "stream", auth.seen)
}
