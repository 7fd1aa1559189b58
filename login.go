package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultCookieName is the session cookie carrying the token
const DefaultCookieName = "jwt_token"

var crlfReplacer = strings.NewReplacer("\r", "", "\n", "")

// StripCRLF removes CR and LF so a value can be placed in a header
func StripCRLF(s string) string {
	return crlfReplacer.Replace(s)
}

// LoginPayload is the form or JSON body of POST /login
type LoginPayload struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// Validate will validate the payload
func (p LoginPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Username, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Password, validation.Required, validation.Length(1, 200)),
	)
}

// LoginResult is a successful login: the bare token plus the cookie
// directive to send it with.
type LoginResult struct {
	Token           string
	Cookie          *fiber.Cookie
	SetCookieHeader string
	ExpiresAt       time.Time
}

type loginTracker interface {
	TrackSuccessfulLogin(ctx context.Context, user *User) error
}

// LoginHandler verifies credentials and issues session tokens
type LoginHandler struct {
	issuer    TokenIssuer
	store     CredentialStore
	passwords PasswordAuthenticator
	responder *FailureResponder
	sink      ActivitySink
	logger    Logger
	cfg       AuthConfig
	now       func() time.Time
}

// LoginOption configures a LoginHandler
type LoginOption func(*LoginHandler)

func WithLoginLogger(logger Logger) LoginOption {
	return func(h *LoginHandler) {
		h.logger = normalizeLogger(logger)
	}
}

func WithLoginActivitySink(sink ActivitySink) LoginOption {
	return func(h *LoginHandler) {
		h.sink = normalizeActivitySink(sink)
	}
}

func WithPasswordAuthenticator(p PasswordAuthenticator) LoginOption {
	return func(h *LoginHandler) {
		if p != nil {
			h.passwords = p
		}
	}
}

func WithLoginClock(now func() time.Time) LoginOption {
	return func(h *LoginHandler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewLoginHandler creates a LoginHandler. Empty fields of cfg take the
// DefaultConfig values.
func NewLoginHandler(issuer TokenIssuer, store CredentialStore, responder *FailureResponder, cfg AuthConfig, opts ...LoginOption) *LoginHandler {
	if responder == nil {
		responder = NewFailureResponder()
	}

	h := &LoginHandler{
		issuer:    issuer,
		store:     store,
		passwords: BcryptHasher{},
		responder: responder,
		sink:      noopActivitySink{},
		logger:    defLogger{},
		cfg:       withAuthDefaults(cfg),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

func withAuthDefaults(cfg AuthConfig) AuthConfig {
	def := DefaultConfig().Auth
	if cfg.CookieName == "" {
		cfg.CookieName = def.CookieName
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = def.LoginPath
	}
	if cfg.SuccessRedirect == "" {
		cfg.SuccessRedirect = def.SuccessRedirect
	}
	if cfg.FailureRedirect == "" {
		cfg.FailureRedirect = def.FailureRedirect
	}
	if cfg.LogoutRedirect == "" {
		cfg.LogoutRedirect = def.LogoutRedirect
	}
	return cfg
}

// Login checks username and password. Unknown users and wrong passwords
// both return ErrInvalidCredentials; lookup or hashing failures return an
// internal error.
func (h *LoginHandler) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := h.store.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			h.logger.Info("login rejected: unknown user", "username", username)
			h.record(ctx, ActivityEventLoginFailure, username, "unknown_user")
			return nil, ErrInvalidCredentials
		}
		h.logger.Error("login credential lookup failed", "username", username, "error", err)
		h.record(ctx, ActivityEventLoginFailure, username, "lookup_error")
		return nil, err
	}

	if err := h.passwords.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrMismatchedHashAndPassword) {
			h.logger.Info("login rejected: password mismatch", "username", username)
			h.record(ctx, ActivityEventLoginFailure, username, "bad_password")
			return nil, ErrInvalidCredentials
		}
		h.logger.Error("login password check failed", "username", username, "error", err)
		h.record(ctx, ActivityEventLoginFailure, username, "hash_error")
		return nil, err
	}

	issuedAt := h.now()
	token, err := h.issuer.Issue(user.Username, user.Authorities())
	if err != nil {
		h.logger.Error("login token issue failed", "username", username, "error", err)
		return nil, err
	}

	value := StripCRLF(strings.TrimPrefix(token, BearerPrefix))
	cookie := h.cookie(value, int(TokenTTL.Seconds()))

	if tracker, ok := h.store.(loginTracker); ok {
		if err := tracker.TrackSuccessfulLogin(ctx, user); err != nil {
			h.logger.Warn("failed to track successful login", "username", username, "error", err)
		}
	}

	h.record(ctx, ActivityEventLoginSuccess, user.Username, "")

	return &LoginResult{
		Token:           value,
		Cookie:          cookie,
		SetCookieHeader: FormatSetCookie(cookie),
		ExpiresAt:       tokenExpiry(value, issuedAt.Add(TokenTTL)),
	}, nil
}

// tokenExpiry reads exp from a token this handler just issued. The
// signature is not checked again. fallback is used when exp is missing.
func tokenExpiry(token string, fallback time.Time) time.Time {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fallback
	}
	if exp := claims.Expires(); !exp.IsZero() {
		return exp
	}
	return fallback
}

// HandleLogin serves POST /login. Form posts are redirected; JSON requests
// get the token in the body or a 401 envelope.
func (h *LoginHandler) HandleLogin(c *fiber.Ctx) error {
	payload := new(LoginPayload)
	if err := c.BodyParser(payload); err != nil {
		h.logger.Info("login payload parse failed", "error", err)
		return h.loginFailed(c)
	}

	if err := payload.Validate(); err != nil {
		h.logger.Info("login payload invalid", "error", err)
		return h.loginFailed(c)
	}

	res, err := h.Login(c.UserContext(), payload.Username, payload.Password)
	if err != nil {
		return h.loginFailed(c)
	}

	h.setCookie(c, res.Cookie)

	if c.Is("json") {
		return c.JSON(fiber.Map{
			"token":      res.Token,
			"token_type": strings.TrimSpace(BearerPrefix),
			"expires_in": int(TokenTTL.Seconds()),
		})
	}

	return c.Redirect(StripCRLF(h.cfg.SuccessRedirect), fiber.StatusFound)
}

// HandleLogout expires the session cookie
func (h *LoginHandler) HandleLogout(c *fiber.Ctx) error {
	subject := ""
	if p, ok := PrincipalFromCtx(c); ok {
		subject = p.Subject
	}

	cookie := h.cookie("", 0)
	cookie.Expires = time.Unix(0, 0)
	h.setCookie(c, cookie)

	h.record(c.UserContext(), ActivityEventLogout, subject, "")

	return c.Redirect(StripCRLF(h.cfg.LogoutRedirect), fiber.StatusFound)
}

func (h *LoginHandler) loginFailed(c *fiber.Ctx) error {
	if c.Is("json") {
		return h.responder.OnAuthenticationFailure(c)
	}
	return c.Redirect(StripCRLF(h.cfg.FailureRedirect), fiber.StatusFound)
}

// setCookie sets the cookie through the framework and again as an
// explicit header with the same attributes.
func (h *LoginHandler) setCookie(c *fiber.Ctx, cookie *fiber.Cookie) {
	c.Cookie(cookie)
	c.Set(fiber.HeaderSetCookie, FormatSetCookie(cookie))
}

func (h *LoginHandler) cookie(value string, maxAge int) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     StripCRLF(h.cfg.CookieName),
		Value:    StripCRLF(value),
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   h.cfg.CookieSecure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	}
}

func (h *LoginHandler) record(ctx context.Context, eventType ActivityEventType, subject, reason string) {
	event := ActivityEvent{
		EventType:  eventType,
		Subject:    subject,
		Metadata:   map[string]any{},
		OccurredAt: h.now(),
	}
	if reason != "" {
		event.Metadata["reason"] = reason
	}
	if err := h.sink.Record(ctx, event); err != nil {
		h.logger.Warn("activity sink record error", "error", err)
	}
}

// FormatSetCookie renders cookie as a Set-Cookie header value. Name and
// value are stripped of CR and LF.
func FormatSetCookie(cookie *fiber.Cookie) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s=%s; Max-Age=%d; Path=/", StripCRLF(cookie.Name), StripCRLF(cookie.Value), cookie.MaxAge)
	if cookie.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
	if cookie.Secure {
		b.WriteString("; Secure")
	}
	b.WriteString("; SameSite=Strict")
	return b.String()
}
