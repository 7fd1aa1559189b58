package auth_test

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-auth-gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func guardApp(state *auth.RequestState, gate fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if state != nil {
			auth.SetRequestState(c, *state)
		}
		return c.Next()
	})
	app.Get("/protected", gate, func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestGuard_RequireAuthenticated(t *testing.T) {
	guard := auth.NewGuard(newTestResponder())

	user := auth.AuthenticatedState(&auth.Principal{Subject: "alice", Authorities: []string{auth.RoleUser}})
	expired := auth.AnonymousState(auth.OutcomeExpired, auth.ReasonExpired)
	noToken := auth.AnonymousState(auth.OutcomeNoToken, auth.ReasonNone)

	cases := []struct {
		name   string
		state  *auth.RequestState
		status int
		code   string
	}{
		{"authenticated", &user, fiber.StatusOK, ""},
		{"expired", &expired, fiber.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"no token", &noToken, fiber.StatusUnauthorized, "UNAUTHORIZED"},
		{"no state", nil, fiber.StatusUnauthorized, "UNAUTHORIZED"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := guardApp(tc.state, guard.RequireAuthenticated()).
				Test(httptest.NewRequest("GET", "/protected", nil))
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)

			if tc.code != "" {
				assert.Equal(t, tc.code, decodeEnvelope(t, resp.Body).Code)
			}
		})
	}
}

func TestGuard_RequireAuthority(t *testing.T) {
	guard := auth.NewGuard(nil)

	admin := auth.AuthenticatedState(&auth.Principal{Subject: "root", Authorities: []string{auth.RoleUser, auth.RoleAdmin}})
	user := auth.AuthenticatedState(&auth.Principal{Subject: "alice", Authorities: []string{auth.RoleUser}})
	malformed := auth.AnonymousState(auth.OutcomeMalformed, auth.ReasonInvalid)

	t.Run("admin passes", func(t *testing.T) {
		resp, err := guardApp(&admin, guard.RequireAuthority(auth.RoleAdmin)).
			Test(httptest.NewRequest("GET", "/protected", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("user is forbidden", func(t *testing.T) {
		resp, err := guardApp(&user, guard.RequireAuthority(auth.RoleAdmin)).
			Test(httptest.NewRequest("GET", "/protected", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

		env := decodeEnvelope(t, resp.Body)
		assert.Equal(t, "ACCESS_DENIED", env.Code)
		assert.Equal(t, "access denied", env.Message)
		assert.Equal(t, "/protected", env.Path)
	})

	t.Run("any of several", func(t *testing.T) {
		resp, err := guardApp(&user, guard.RequireAuthority(auth.RoleAdmin, auth.RoleUser)).
			Test(httptest.NewRequest("GET", "/protected", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("anonymous gets 401 with reason", func(t *testing.T) {
		resp, err := guardApp(&malformed, guard.RequireAuthority(auth.RoleAdmin)).
			Test(httptest.NewRequest("GET", "/protected", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "TOKEN_INVALID", decodeEnvelope(t, resp.Body).Code)
	})
}
