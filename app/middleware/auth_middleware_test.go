package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/orochi-mail/app/dto"
	"github.com/amirphl/orochi-mail/app/services"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-test-secret"

func newTokenService(t *testing.T, ttl time.Duration) services.TokenService {
	t.Helper()
	svc, err := services.NewTokenService(ttl, "orochi-mail", "operators", false, "", "", testSecret)
	require.NoError(t, err)
	return svc
}

func newProtectedApp(svc services.TokenService) *fiber.App {
	app := fiber.New()
	app.Get("/protected", NewAuthMiddleware(svc).Authenticate(), func(c fiber.Ctx) error {
		userID, ok := GetUserIDFromContext(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		claims, _ := GetTokenClaimsFromContext(c)
		return c.JSON(fiber.Map{"user_id": userID, "jti": claims.TokenID})
	})
	return app
}

type errorBody struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   dto.ErrorDetail `json:"error"`
}

func callProtected(t *testing.T, app *fiber.App, authHeader string) (*http.Response, errorBody) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)

	var body errorBody
	if resp.StatusCode == fiber.StatusUnauthorized {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp, body
}

func TestAuthenticate_ValidToken(t *testing.T) {
	svc := newTokenService(t, time.Hour)
	app := newProtectedApp(svc)

	token, err := svc.IssueToken(42)
	require.NoError(t, err)

	resp, _ := callProtected(t, app, "Bearer "+token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out struct {
		UserID uint   `json:"user_id"`
		JTI    string `json:"jti"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, uint(42), out.UserID)
	assert.NotEmpty(t, out.JTI)
}

func TestAuthenticate_Rejections(t *testing.T) {
	svc := newTokenService(t, time.Hour)
	app := newProtectedApp(svc)

	expiredSvc := newTokenService(t, -time.Hour)
	expired, err := expiredSvc.IssueToken(9)
	require.NoError(t, err)

	otherSvc, err := services.NewTokenService(time.Hour, "orochi-mail", "operators", false, "", "", "another-secret")
	require.NoError(t, err)
	foreign, err := otherSvc.IssueToken(9)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", "MISSING_AUTHORIZATION_HEADER"},
		{"basic scheme", "Basic dXNlcjpwYXNz", "INVALID_AUTHORIZATION_FORMAT"},
		{"garbage", "Bearer not-a-jwt", "TOKEN_INVALID"},
		{"wrong signature", "Bearer " + foreign, "TOKEN_INVALID"},
		{"expired", "Bearer " + expired, "TOKEN_EXPIRED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := callProtected(t, app, tc.header)
			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
			assert.False(t, body.Success)
			assert.Equal(t, tc.code, body.Error.Code)
		})
	}
}
