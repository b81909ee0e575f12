package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/atelier/internal/config"
	"github.com/example/atelier/internal/database"
	"github.com/example/atelier/internal/models"
	"github.com/example/atelier/internal/routes"
	"github.com/example/atelier/internal/services"
)

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		JWTSecret:    "test-secret",
		TokenExpires: time.Hour,
		OTPDevMode:   true,
	}

	app := fiber.New()
	routes.Register(app, db, cfg, routes.Deps{
		OTP:    services.NewOTPService(db, cfg, zerolog.Nop()),
		Orders: services.NewOrderService(db, zerolog.Nop()),
		Hub:    services.NewChatHub(zerolog.Nop()),
	})
	return app, db
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var parsed map[string]interface{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &parsed)
	}
	return resp, parsed
}

func login(t *testing.T, app *fiber.App, identifier string) string {
	t.Helper()
	resp, body := doJSON(t, app, http.MethodPost, "/api/auth/login", "", map[string]string{
		"identifier": identifier,
		"otp":        "000000",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func registerUser(t *testing.T, app *fiber.App, email, accountType string) string {
	t.Helper()
	resp, _ := doJSON(t, app, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":        email,
		"first_name":   "Test",
		"account_type": accountType,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return login(t, app, email)
}

func TestRegisterAndLoginFlow(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":        "amira@example.com",
		"account_type": "TAILOR",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "TAILOR", user["account_type"])

	// Duplicate registration is rejected.
	resp, _ = doJSON(t, app, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "amira@example.com",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	token := login(t, app, "amira@example.com")
	assert.NotEmpty(t, token)

	// A wrong OTP never issues a token.
	resp, _ = doJSON(t, app, http.MethodPost, "/api/auth/login", "", map[string]string{
		"identifier": "amira@example.com",
		"otp":        "123456",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestExistsEndpoint(t *testing.T) {
	app, _ := newTestApp(t)
	registerUser(t, app, "known@example.com", "CUSTOMER")

	_, body := doJSON(t, app, http.MethodGet, "/api/users/exists?identifier=known@example.com", "", nil)
	assert.Equal(t, true, body["exists"])

	_, body = doJSON(t, app, http.MethodGet, "/api/users/exists?identifier=unknown@example.com", "", nil)
	assert.Equal(t, false, body["exists"])
}

func TestDesignOwnership(t *testing.T) {
	app, db := newTestApp(t)
	tailorToken := registerUser(t, app, "tailor@example.com", "TAILOR")
	otherToken := registerUser(t, app, "other@example.com", "TAILOR")
	customerToken := registerUser(t, app, "customer@example.com", "CUSTOMER")

	// Customers cannot publish designs.
	resp, _ := doJSON(t, app, http.MethodPost, "/api/designs", customerToken, map[string]interface{}{
		"title": "Evening gown",
		"price": "150",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodPost, "/api/designs", tailorToken, map[string]interface{}{
		"title":            "Evening gown",
		"description":      "Silk, hand stitched",
		"price":            "150",
		"average_timeline": "2 weeks",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	design := body["design"].(map[string]interface{})
	designID := design["id"].(string)

	// Another tailor cannot modify it.
	resp, _ = doJSON(t, app, http.MethodPut, "/api/designs/"+designID, otherToken, map[string]interface{}{
		"title": "Stolen gown",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Unauthenticated mutation is rejected outright.
	resp, _ = doJSON(t, app, http.MethodPut, "/api/designs/"+designID, "", map[string]interface{}{
		"title": "Anonymous edit",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var count int64
	require.NoError(t, db.Model(&models.Design{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGuestOrderAndTailorDecision(t *testing.T) {
	app, db := newTestApp(t)
	tailorToken := registerUser(t, app, "tailor@example.com", "TAILOR")

	var tailor models.User
	require.NoError(t, db.First(&tailor, "email = ?", "tailor@example.com").Error)

	// Guests place orders without a session.
	resp, body := doJSON(t, app, http.MethodPost, "/api/orders", "", map[string]interface{}{
		"tailor_id":     tailor.ID.String(),
		"customer_name": "Walk-in Guest",
		"product_name":  "Linen suit",
		"price":         "220",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	order := body["order"].(map[string]interface{})
	orderID := order["id"].(string)
	assert.Equal(t, "PENDING", order["status"])
	assert.Nil(t, order["user_id"])

	resp, body = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/orders/%s/accept", orderID), tailorToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	order = body["order"].(map[string]interface{})
	assert.Equal(t, "ACCEPTED", order["status"])

	var stored models.Order
	require.NoError(t, db.First(&stored, "id = ?", orderID).Error)
	assert.True(t, stored.Price.Equal(decimal.RequireFromString("220")))
}

func TestRewardRedemptionCap(t *testing.T) {
	app, db := newTestApp(t)
	tailorToken := registerUser(t, app, "tailor@example.com", "TAILOR")
	customerToken := registerUser(t, app, "customer@example.com", "CUSTOMER")

	resp, body := doJSON(t, app, http.MethodPost, "/api/rewards", tailorToken, map[string]interface{}{
		"name":            "First order discount",
		"description":     "10% off",
		"type":            "DISCOUNT",
		"value":           "10",
		"start_date":      time.Now().Add(-time.Hour).Format(time.RFC3339),
		"end_date":        time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"max_redemptions": 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	reward := body["reward"].(map[string]interface{})
	rewardID := reward["id"].(string)

	// Only the owning tailor can modify the reward.
	otherToken := registerUser(t, app, "other@example.com", "TAILOR")
	resp, _ = doJSON(t, app, http.MethodPut, "/api/rewards/"+rewardID, otherToken, map[string]interface{}{
		"name": "Hijacked",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/rewards/"+rewardID+"/redeem", customerToken, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// The cap is one; a second redemption is refused.
	resp, _ = doJSON(t, app, http.MethodPost, "/api/rewards/"+rewardID+"/redeem", customerToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var count int64
	require.NoError(t, db.Model(&models.RewardRedemption{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// The stored counter lands exactly on the cap and agrees with the
	// redemption rows.
	var stored models.Reward
	require.NoError(t, db.First(&stored, "id = ?", rewardID).Error)
	assert.Equal(t, 1, stored.RedemptionCount)
}
