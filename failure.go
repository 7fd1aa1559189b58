package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

const (
	CodeTokenExpired  = "TOKEN_EXPIRED"
	CodeTokenInvalid  = "TOKEN_INVALID"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeAccessDenied  = "ACCESS_DENIED"
	MsgTokenExpired   = "token has expired"
	MsgTokenInvalid   = "token is invalid"
	MsgUnauthorized   = "not authenticated or token missing"
	MsgAccessDenied   = "access denied"
	errorUnauthorized = "Unauthorized"
	errorForbidden    = "Forbidden"
)

// ErrorEnvelope is the JSON body of every 401 and 403 response
type ErrorEnvelope struct {
	Timestamp string `json:"timestamp"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Path      string `json:"path"`
}

// FailureResponder renders authentication and authorization failures
type FailureResponder struct {
	now    func() time.Time
	logger Logger
}

// ResponderOption configures a FailureResponder
type ResponderOption func(*FailureResponder)

// WithResponderClock overrides the timestamp clock
func WithResponderClock(now func() time.Time) ResponderOption {
	return func(r *FailureResponder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithResponderLogger sets the logger
func WithResponderLogger(logger Logger) ResponderOption {
	return func(r *FailureResponder) {
		r.logger = normalizeLogger(logger)
	}
}

func NewFailureResponder(opts ...ResponderOption) *FailureResponder {
	r := &FailureResponder{
		now:    time.Now,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// AuthenticationEnvelope builds the 401 body for reason
func (r *FailureResponder) AuthenticationEnvelope(reason FailureReason, path string) ErrorEnvelope {
	code, message := CodeUnauthorized, MsgUnauthorized
	switch reason {
	case ReasonExpired:
		code, message = CodeTokenExpired, MsgTokenExpired
	case ReasonInvalid:
		code, message = CodeTokenInvalid, MsgTokenInvalid
	}
	return r.envelope(fiber.StatusUnauthorized, errorUnauthorized, code, message, path)
}

// AuthorizationEnvelope builds the 403 body. An empty cause message falls
// back to MsgAccessDenied.
func (r *FailureResponder) AuthorizationEnvelope(cause error, path string) ErrorEnvelope {
	return r.envelope(fiber.StatusForbidden, errorForbidden, CodeAccessDenied, causeMessage(cause), path)
}

// OnAuthenticationFailure writes a 401 using the reason the binder attached
func (r *FailureResponder) OnAuthenticationFailure(c *fiber.Ctx) error {
	var reason FailureReason
	if state, ok := RequestStateFromCtx(c); ok {
		reason = state.Reason
	}

	env := r.AuthenticationEnvelope(reason, c.Path())
	r.logger.Info("authentication failure", "code", env.Code, "path", env.Path)

	return c.Status(fiber.StatusUnauthorized).JSON(env)
}

// OnAuthorizationFailure writes a 403 for cause
func (r *FailureResponder) OnAuthorizationFailure(c *fiber.Ctx, cause error) error {
	env := r.AuthorizationEnvelope(cause, c.Path())

	subject := ""
	if p, ok := PrincipalFromCtx(c); ok {
		subject = p.Subject
	}
	r.logger.Info("authorization failure", "subject", subject, "message", env.Message, "path", env.Path)

	return c.Status(fiber.StatusForbidden).JSON(env)
}

// RespondAuthenticationFailure is OnAuthenticationFailure for go-router
func (r *FailureResponder) RespondAuthenticationFailure(c router.Context) error {
	var reason FailureReason
	if state, ok := RouterRequestState(c); ok {
		reason = state.Reason
	}

	env := r.AuthenticationEnvelope(reason, c.Path())
	r.logger.Info("authentication failure", "code", env.Code, "path", env.Path)

	return c.JSON(fiber.StatusUnauthorized, env)
}

// RespondAuthorizationFailure is OnAuthorizationFailure for go-router
func (r *FailureResponder) RespondAuthorizationFailure(c router.Context, cause error) error {
	env := r.AuthorizationEnvelope(cause, c.Path())

	subject := ""
	if p, ok := RouterPrincipal(c); ok {
		subject = p.Subject
	}
	r.logger.Info("authorization failure", "subject", subject, "message", env.Message, "path", env.Path)

	return c.JSON(fiber.StatusForbidden, env)
}

func (r *FailureResponder) envelope(status int, errText, code, message, path string) ErrorEnvelope {
	return ErrorEnvelope{
		Timestamp: r.now().UTC().Format(time.RFC3339Nano),
		Status:    status,
		Error:     errText,
		Code:      code,
		Message:   message,
		Path:      path,
	}
}

func causeMessage(cause error) string {
	if cause == nil {
		return MsgAccessDenied
	}

	var richErr *goerrors.Error
	if goerrors.As(cause, &richErr) && strings.TrimSpace(richErr.Message) != "" {
		return richErr.Message
	}

	if msg := strings.TrimSpace(cause.Error()); msg != "" {
		return msg
	}
	return MsgAccessDenied
}
