package auth

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
)

// Guard gates routes on the state left by the authentication binder
type Guard struct {
	responder *FailureResponder
}

func NewGuard(responder *FailureResponder) *Guard {
	if responder == nil {
		responder = NewFailureResponder()
	}
	return &Guard{responder: responder}
}

// RequireAuthenticated rejects anonymous requests with a 401
func (g *Guard) RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromCtx(c); !ok {
			return g.responder.OnAuthenticationFailure(c)
		}
		return c.Next()
	}
}

// RequireAuthority allows the request when the principal holds any of
// authorities. Anonymous requests get a 401, under privileged ones a 403.
func (g *Guard) RequireAuthority(authorities ...string) fiber.Handler {
	required := append([]string(nil), authorities...)
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromCtx(c)
		if !ok {
			return g.responder.OnAuthenticationFailure(c)
		}
		if err := checkAuthorities(principal, required); err != nil {
			return g.responder.OnAuthorizationFailure(c, err)
		}
		return c.Next()
	}
}

// Protected is RequireAuthenticated for go-router routes
func (g *Guard) Protected() router.MiddlewareFunc {
	return g.ProtectedWith()
}

// ProtectedWith is RequireAuthority for go-router routes
func (g *Guard) ProtectedWith(authorities ...string) router.MiddlewareFunc {
	required := append([]string(nil), authorities...)
	return func(_ router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			principal, ok := RouterPrincipal(c)
			if !ok {
				return g.responder.RespondAuthenticationFailure(c)
			}
			if err := checkAuthorities(principal, required); err != nil {
				return g.responder.RespondAuthorizationFailure(c, err)
			}
			return c.Next()
		}
	}
}

func checkAuthorities(principal *Principal, required []string) error {
	if len(required) == 0 || principal.HasAnyAuthority(required...) {
		return nil
	}
	return withCause(ErrAccessDenied,
		fmt.Errorf("requires one of [%s]", strings.Join(required, ", ")),
	)
}
