package jwtware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-auth-gate"
	"github.com/goliatone/go-router"
	"github.com/valyala/fasthttp"
)

// DefaultTokenLookup checks the bearer header first, then the session cookie
var DefaultTokenLookup = "header:" + router.HeaderAuthorization + ",cookie:" + auth.DefaultCookieName

// Source is the part of a request extractors read from
type Source interface {
	Header(key string) string
	// Cookie returns the first cookie called name in header order
	Cookie(name string) (value string, ok bool)
}

// Extractor pulls a raw token from the request. ok is false when the
// source does not carry one.
type Extractor func(src Source) (token string, ok bool)

// Locator runs extractors in order and returns the first token found
type Locator struct {
	extractors []Extractor
}

func NewLocator(extractors ...Extractor) *Locator {
	filtered := make([]Extractor, 0, len(extractors))
	for _, e := range extractors {
		if e != nil {
			filtered = append(filtered, e)
		}
	}
	return &Locator{extractors: filtered}
}

// DefaultLocator reads "Authorization: Bearer <token>", falling back to
// the jwt_token cookie
func DefaultLocator() *Locator {
	return NewLocator(GetExtractors(DefaultTokenLookup, auth.BearerPrefix)...)
}

// Locate returns the raw token of a fiber request and whether one was found
func (l *Locator) Locate(c *fiber.Ctx) (string, bool) {
	return l.LocateIn(FiberSource(c))
}

// LocateRouter is Locate for a go-router context
func (l *Locator) LocateRouter(c router.Context) (string, bool) {
	return l.LocateIn(RouterSource(c))
}

func (l *Locator) LocateIn(src Source) (string, bool) {
	for _, extract := range l.extractors {
		if token, ok := extract(src); ok {
			return token, true
		}
	}
	return "", false
}

// GetExtractors parses a lookup like "header:Authorization,cookie:jwt_token".
// Unknown sources are ignored.
func GetExtractors(tokenLookup string, authScheme string) []Extractor {
	extractors := make([]Extractor, 0)

	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}
		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if name == "" {
			continue
		}

		switch source {
		case "header":
			extractors = append(extractors, FromHeader(name, authScheme))
		case "cookie":
			extractors = append(extractors, FromCookie(name))
		}
	}

	return extractors
}

// FromHeader matches prefix exactly, case included
func FromHeader(header, prefix string) Extractor {
	return func(src Source) (string, bool) {
		value := src.Header(header)
		if prefix == "" || !strings.HasPrefix(value, prefix) {
			return "", false
		}
		token := value[len(prefix):]
		if token == "" {
			return "", false
		}
		return token, true
	}
}

// FromCookie uses the first cookie called name. Duplicates after the
// first are ignored and an empty first value counts as absent.
func FromCookie(name string) Extractor {
	return func(src Source) (string, bool) {
		token, ok := src.Cookie(name)
		return token, ok && token != ""
	}
}

type fiberSource struct {
	c *fiber.Ctx
}

// FiberSource reads headers and cookies from a fiber request
func FiberSource(c *fiber.Ctx) Source {
	return fiberSource{c: c}
}

func (s fiberSource) Header(key string) string {
	return s.c.Get(key)
}

func (s fiberSource) Cookie(name string) (string, bool) {
	return firstCookie(&s.c.Request().Header, name)
}

type routerSource struct {
	c router.Context
}

// RouterSource reads a go-router context. Cookies are parsed from the
// Cookie header since the context does not expose them.
func RouterSource(c router.Context) Source {
	return routerSource{c: c}
}

func (s routerSource) Header(key string) string {
	return s.c.Header(key)
}

func (s routerSource) Cookie(name string) (string, bool) {
	raw := s.c.Header(fiber.HeaderCookie)
	if raw == "" {
		return "", false
	}
	var h fasthttp.RequestHeader
	h.Set(fiber.HeaderCookie, raw)
	return firstCookie(&h, name)
}

func firstCookie(h *fasthttp.RequestHeader, name string) (string, bool) {
	var (
		token   string
		matched bool
	)
	h.VisitAllCookie(func(key, value []byte) {
		if matched || string(key) != name {
			return
		}
		token = string(value)
		matched = true
	})
	return token, matched
}
