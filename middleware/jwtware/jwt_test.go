package jwtware_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-auth-gate"
	"github.com/goliatone/go-auth-gate/middleware/jwtware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const signingKey = "test-secret"

type binderHarness struct {
	app    *fiber.App
	tokens *auth.TokenService
	states []*auth.RequestState
}

func newBinderHarness(t *testing.T, cfg jwtware.Config) *binderHarness {
	t.Helper()

	secret, err := auth.NewSecret(signingKey)
	require.NoError(t, err)

	h := &binderHarness{
		app:    fiber.New(),
		tokens: auth.NewTokenService(secret, auth.WithTokenLogger(auth.NopLogger{})),
	}

	if cfg.Decoder == nil {
		cfg.Decoder = h.tokens
	}

	h.app.Use(jwtware.New(cfg))
	h.app.Use(func(c *fiber.Ctx) error {
		if state, ok := auth.RequestStateFromCtx(c); ok {
			h.states = append(h.states, &state)
		} else {
			h.states = append(h.states, nil)
		}
		return c.SendString("reached")
	})

	return h
}

func (h *binderHarness) do(t *testing.T, path string, headers map[string]string) *auth.RequestState {
	t.Helper()

	req := httptest.NewRequest("GET", path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := h.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, "binder must never answer the request")

	require.NotEmpty(t, h.states)
	return h.states[len(h.states)-1]
}

func (h *binderHarness) issue(t *testing.T, subject string, authorities []string, issuedAt time.Time) string {
	t.Helper()
	token, err := h.tokens.IssueAt(subject, authorities, issuedAt)
	require.NoError(t, err)
	return token
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": token}
}

//--------------------------------------------------------------------------------------
// Tests
//--------------------------------------------------------------------------------------

func TestBinder_StateTable(t *testing.T) {
	h := newBinderHarness(t, jwtware.Config{})
	now := time.Now()

	valid := h.issue(t, "alice", []string{auth.RoleUser}, now)
	noAuthorities := h.issue(t, "legacy", nil, now)
	expired := h.issue(t, "alice", []string{auth.RoleUser}, now.Add(-25*time.Hour))

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":         "mallory",
		"authorities": []string{auth.RoleAdmin},
		"iat":         now.Unix(),
		"exp":         now.Add(time.Hour).Unix(),
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	cases := []struct {
		name    string
		headers map[string]string
		outcome auth.BindOutcome
		status  auth.AuthStatus
		reason  auth.FailureReason
		subject string
	}{
		{"no token", nil, auth.OutcomeNoToken, auth.StatusUnauthenticated, auth.ReasonNone, ""},
		{"valid with authorities", bearer(valid), auth.OutcomeValidWithAuth, auth.StatusAuthenticated, "", "alice"},
		{"valid in cookie", map[string]string{"Cookie": "jwt_token=" + valid[len(auth.BearerPrefix):]}, auth.OutcomeValidWithAuth, auth.StatusAuthenticated, "", "alice"},
		{"valid without authorities", bearer(noAuthorities), auth.OutcomeValidNoAuth, auth.StatusUnauthenticated, auth.ReasonNone, ""},
		{"expired", bearer(expired), auth.OutcomeExpired, auth.StatusFailed, auth.ReasonExpired, ""},
		{"garbage", bearer("Bearer not-a-jwt"), auth.OutcomeMalformed, auth.StatusFailed, auth.ReasonInvalid, ""},
		{"foreign signature", bearer("Bearer " + forged), auth.OutcomeMalformed, auth.StatusFailed, auth.ReasonInvalid, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := h.do(t, "/api/me", tc.headers)
			require.NotNil(t, state)

			assert.Equal(t, tc.outcome, state.Outcome)
			assert.Equal(t, tc.status, state.Status)
			assert.Equal(t, tc.reason, state.Reason)

			if tc.subject == "" {
				assert.Nil(t, state.Principal)
				assert.False(t, state.Authenticated())
				return
			}
			require.NotNil(t, state.Principal)
			assert.Equal(t, tc.subject, state.Principal.Subject)
			assert.Equal(t, []string{auth.RoleUser}, state.Principal.Authorities)
		})
	}
}

func TestBinder_PublicPathsAreSkipped(t *testing.T) {
	h := newBinderHarness(t, jwtware.Config{})
	valid := h.issue(t, "alice", []string{auth.RoleUser}, time.Now())

	for _, path := range []string{"/login", "/css/app.css", "/api/machinery/ping"} {
		state := h.do(t, path, bearer(valid))
		assert.Nil(t, state, "public path %q must not get a state", path)

		state = h.do(t, path, bearer("Bearer garbage"))
		assert.Nil(t, state, "public path %q must not get a state", path)
	}
}

func TestBinder_NoStateLeaksAcrossRequests(t *testing.T) {
	h := newBinderHarness(t, jwtware.Config{})
	valid := h.issue(t, "alice", []string{auth.RoleUser}, time.Now())

	first := h.do(t, "/api/me", bearer(valid))
	require.True(t, first.Authenticated())

	second := h.do(t, "/api/me", nil)
	require.NotNil(t, second)
	assert.False(t, second.Authenticated())
	assert.Nil(t, second.Principal)
	assert.Equal(t, auth.OutcomeNoToken, second.Outcome)

	third := h.do(t, "/api/me", bearer("Bearer broken"))
	assert.Equal(t, auth.ReasonInvalid, third.Reason)

	fourth := h.do(t, "/api/me", nil)
	assert.Equal(t, auth.ReasonNone, fourth.Reason)
}

func TestBinder_Filter(t *testing.T) {
	h := newBinderHarness(t, jwtware.Config{
		Filter: func(c *fiber.Ctx) bool {
			return c.Get("X-Internal") == "1"
		},
	})

	assert.Nil(t, h.do(t, "/api/me", map[string]string{"X-Internal": "1"}))
	assert.NotNil(t, h.do(t, "/api/me", nil))
}

func TestBinder_CustomClassifier(t *testing.T) {
	h := newBinderHarness(t, jwtware.Config{
		Classifier: auth.NewRouteClassifier([]string{"/health"}, nil),
	})

	assert.Nil(t, h.do(t, "/health", nil))
	assert.NotNil(t, h.do(t, "/login", nil), "custom allow-list replaces the defaults")
}

func TestBinder_Listeners(t *testing.T) {
	var seen []auth.BindOutcome
	h := newBinderHarness(t, jwtware.Config{
		Listeners: []jwtware.Listener{
			nil,
			func(_ *fiber.Ctx, state auth.RequestState) {
				seen = append(seen, state.Outcome)
			},
		},
	})

	h.do(t, "/api/me", nil)
	h.do(t, "/api/me", bearer("Bearer garbage"))
	h.do(t, "/login", nil)

	assert.Equal(t, []auth.BindOutcome{auth.OutcomeNoToken, auth.OutcomeMalformed, auth.OutcomeSkipped}, seen)
	assert.Nil(t, h.states[len(h.states)-1], "skipped requests get no state")
}

func TestBinder_WithGuard(t *testing.T) {
	secret, err := auth.NewSecret(signingKey)
	require.NoError(t, err)
	tokens := auth.NewTokenService(secret, auth.WithTokenLogger(auth.NopLogger{}))
	guard := auth.NewGuard(auth.NewFailureResponder(auth.WithResponderLogger(auth.NopLogger{})))

	app := fiber.New()
	app.Use(jwtware.New(jwtware.Config{Decoder: tokens}))
	app.Get("/api/admin/status", guard.RequireAuthority(auth.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	expired, err := tokens.IssueAt("alice", []string{auth.RoleAdmin}, time.Now().Add(-48*time.Hour))
	require.NoError(t, err)
	user, err := tokens.Issue("alice", []string{auth.RoleUser})
	require.NoError(t, err)
	admin, err := tokens.Issue("root", []string{auth.RoleAdmin})
	require.NoError(t, err)

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{"anonymous", "", fiber.StatusUnauthorized},
		{"expired admin", expired, fiber.StatusUnauthorized},
		{"user", user, fiber.StatusForbidden},
		{"admin", admin, fiber.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/admin/status", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", tc.token)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestBinder_LogsTokenWithoutAuthorities(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := newBinderHarness(t, jwtware.Config{
		Logger: auth.NewZapLogger(zap.New(core)),
	})

	token := h.issue(t, "legacy", nil, time.Now())
	state := h.do(t, "/api/me", bearer(token))
	require.NotNil(t, state)
	assert.Equal(t, auth.OutcomeValidNoAuth, state.Outcome)

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "legacy", warnings[0].ContextMap()["subject"])
	assert.Equal(t, "/api/me", warnings[0].ContextMap()["path"])
}

func TestGetDefaultConfig(t *testing.T) {
	assert.Panics(t, func() {
		jwtware.GetDefaultConfig()
	})

	secret, err := auth.NewSecret(signingKey)
	require.NoError(t, err)

	cfg := jwtware.GetDefaultConfig(jwtware.Config{Decoder: auth.NewTokenService(secret)})
	assert.NotNil(t, cfg.Classifier)
	assert.NotNil(t, cfg.Locator)
	assert.NotNil(t, cfg.Logger)
	assert.Equal(t, jwtware.DefaultTokenLookup, cfg.TokenLookup)
	assert.Equal(t, auth.BearerPrefix, cfg.AuthScheme)
}
