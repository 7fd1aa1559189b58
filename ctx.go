package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
)

// RequestStateKey is the fiber Locals key holding the RequestState
const RequestStateKey = "auth.request_state"

var requestStateCtxKey = &contextKey{"request_state"}

type contextKey struct {
	name string
}

// AuthStatus is the coarse authentication state of a request
type AuthStatus string

const (
	StatusUnauthenticated AuthStatus = "unauthenticated"
	StatusAuthenticated   AuthStatus = "authenticated"
	StatusFailed          AuthStatus = "failed"
)

// FailureReason is attached to a request whose token could not be used.
// NONE marks a request with no usable token. Authenticated requests carry
// the zero value.
type FailureReason string

const (
	ReasonNone    FailureReason = "NONE"
	ReasonExpired FailureReason = "EXPIRED"
	ReasonInvalid FailureReason = "INVALID"
)

// BindOutcome records which branch the binder took
type BindOutcome string

const (
	OutcomeSkipped       BindOutcome = "skipped"
	OutcomeNoToken       BindOutcome = "no_token"
	OutcomeValidWithAuth BindOutcome = "valid_with_auth"
	OutcomeValidNoAuth   BindOutcome = "valid_no_auth"
	OutcomeExpired       BindOutcome = "expired"
	OutcomeMalformed     BindOutcome = "malformed"
)

// RequestState is the per request authentication state. It is never
// shared across requests.
type RequestState struct {
	Status    AuthStatus
	Principal *Principal
	Reason    FailureReason
	Outcome   BindOutcome
}

// Authenticated reports whether a principal is bound
func (s RequestState) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.Principal != nil
}

// AnonymousState is the cleared state with an optional failure reason
func AnonymousState(outcome BindOutcome, reason FailureReason) RequestState {
	status := StatusUnauthenticated
	if reason == ReasonExpired || reason == ReasonInvalid {
		status = StatusFailed
	}
	return RequestState{
		Status:  status,
		Reason:  reason,
		Outcome: outcome,
	}
}

// AuthenticatedState binds principal
func AuthenticatedState(principal *Principal) RequestState {
	return RequestState{
		Status:    StatusAuthenticated,
		Principal: principal,
		Outcome:   OutcomeValidWithAuth,
	}
}

// SetRequestState stores state in the router locals and the request
// context, replacing whatever was there.
func SetRequestState(c *fiber.Ctx, state RequestState) {
	c.Locals(RequestStateKey, state)
	c.SetUserContext(WithRequestState(c.UserContext(), state))
}

// RequestStateFromCtx returns the state set by the binder
func RequestStateFromCtx(c *fiber.Ctx) (RequestState, bool) {
	state, ok := c.Locals(RequestStateKey).(RequestState)
	return state, ok
}

// SetRouterRequestState stores state in the go-router context store and
// the request context
func SetRouterRequestState(c router.Context, state RequestState) {
	c.Set(RequestStateKey, state)
	c.SetContext(WithRequestState(c.Context(), state))
}

// RouterRequestState returns the state of a go-router request. It falls
// back to the request context, where a fiber binder earlier in the chain
// leaves it.
func RouterRequestState(c router.Context) (RequestState, bool) {
	if state, ok := c.Get(RequestStateKey, nil).(RequestState); ok {
		return state, true
	}
	return RequestStateFromContext(c.Context())
}

// RouterPrincipal returns the principal bound to a go-router request
func RouterPrincipal(c router.Context) (*Principal, bool) {
	state, ok := RouterRequestState(c)
	if !ok || !state.Authenticated() {
		return nil, false
	}
	return state.Principal, true
}

// PrincipalFromCtx returns the bound principal, if any
func PrincipalFromCtx(c *fiber.Ctx) (*Principal, bool) {
	state, ok := RequestStateFromCtx(c)
	if !ok || !state.Authenticated() {
		return nil, false
	}
	return state.Principal, true
}

// WithRequestState sets the state in the given context
func WithRequestState(ctx context.Context, state RequestState) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestStateCtxKey, state)
}

// RequestStateFromContext finds the state in the standard context
func RequestStateFromContext(ctx context.Context) (RequestState, bool) {
	if ctx == nil {
		return RequestState{}, false
	}
	state, ok := ctx.Value(requestStateCtxKey).(RequestState)
	return state, ok
}

// PrincipalFromContext finds the principal in the standard context
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	state, ok := RequestStateFromContext(ctx)
	if !ok || !state.Authenticated() {
		return nil, false
	}
	return state.Principal, true
}
