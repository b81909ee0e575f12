package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/atelier/internal/config"
	"github.com/example/atelier/internal/models"
	"github.com/example/atelier/internal/utils"
)

func newAuthApp(t *testing.T) (*fiber.App, string) {
	t.Helper()
	cfg := &config.Config{JWTSecret: "test-secret"}

	token, err := utils.GenerateToken(cfg.JWTSecret, uuid.New(), models.AccountTypeCustomer, time.Hour)
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/secure", AuthMiddleware(cfg), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app, token
}

func TestAuthMiddleware_BearerHeader(t *testing.T) {
	app, token := newAuthApp(t)

	req := httptest.NewRequest("GET", "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAuthMiddleware_QueryTokenRejectedOnPlainRequest(t *testing.T) {
	app, token := newAuthApp(t)

	req := httptest.NewRequest("GET", "/secure?token="+token, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthMiddleware_QueryTokenAcceptedOnUpgrade(t *testing.T) {
	app, token := newAuthApp(t)

	req := httptest.NewRequest("GET", "/secure?token="+token, nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	app, _ := newAuthApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/secure", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
