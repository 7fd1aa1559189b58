package jwtware

import (
	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-auth-gate"
	"github.com/goliatone/go-router"
)

// PathClassifier decides whether a path skips the gate
type PathClassifier interface {
	IsPublic(path string) bool
}

// Listener is called with the state the binder attached to the request
type Listener func(c *fiber.Ctx, state auth.RequestState)

type Config struct {
	// Filter skips the binder entirely when it returns true. It is checked
	// before Classifier.
	Filter func(*fiber.Ctx) bool
	// RouterFilter is Filter for the binder returned by NewRouter
	RouterFilter func(router.Context) bool
	// Classifier marks public paths. Defaults to auth.DefaultRouteClassifier.
	Classifier PathClassifier
	// Decoder verifies tokens and is required
	Decoder auth.TokenDecoder
	// Locator finds the raw token. Defaults to one built from TokenLookup.
	Locator     *Locator
	TokenLookup string
	AuthScheme  string
	Logger      auth.Logger
	Listeners   []Listener
}

// New returns the authentication binder. It never writes a response: it
// records an auth.RequestState and calls the next handler.
func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		if cfg.Classifier.IsPublic(c.Path()) {
			cfg.notify(c, auth.RequestState{Status: auth.StatusUnauthenticated, Outcome: auth.OutcomeSkipped})
			return c.Next()
		}

		raw, found := cfg.Locator.Locate(c)
		state := cfg.bind(c.Path(), raw, found)
		auth.SetRequestState(c, state)
		cfg.notify(c, state)

		return c.Next()
	}
}

// NewRouter is New for routes served through go-router. The state is kept
// in the router context store and the request context.
func NewRouter(config ...Config) router.MiddlewareFunc {
	cfg := GetDefaultConfig(config...)

	return func(_ router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if cfg.RouterFilter != nil && cfg.RouterFilter(c) {
				return c.Next()
			}

			if cfg.Classifier.IsPublic(c.Path()) {
				return c.Next()
			}

			raw, found := cfg.Locator.LocateRouter(c)
			auth.SetRouterRequestState(c, cfg.bind(c.Path(), raw, found))

			return c.Next()
		}
	}
}

// notify runs the listeners. Skipped requests are reported but carry no
// request state.
func (cfg Config) notify(c *fiber.Ctx, state auth.RequestState) {
	for _, listener := range cfg.Listeners {
		if listener != nil {
			listener(c, state)
		}
	}
}

func (cfg Config) bind(path, raw string, found bool) auth.RequestState {
	if !found {
		return auth.AnonymousState(auth.OutcomeNoToken, auth.ReasonNone)
	}

	res := cfg.Decoder.Decode(raw)
	switch res.Outcome {
	case auth.DecodeOK:
		principal := auth.PrincipalFromClaims(res.Claims)
		if principal == nil {
			cfg.Logger.Warn("token verified without authorities, treating request as anonymous",
				"subject", res.Claims.Subject(), "path", path)
			return auth.AnonymousState(auth.OutcomeValidNoAuth, auth.ReasonNone)
		}
		return auth.AuthenticatedState(principal)
	case auth.DecodeExpired:
		cfg.Logger.Debug("expired token", "path", path, "error", res.Err)
		return auth.AnonymousState(auth.OutcomeExpired, auth.ReasonExpired)
	default:
		cfg.Logger.Debug("invalid token", "path", path, "error", res.Err)
		return auth.AnonymousState(auth.OutcomeMalformed, auth.ReasonInvalid)
	}
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Decoder == nil {
		panic("AUTH: JWT middleware configuration: Decoder is required.")
	}

	if cfg.Classifier == nil {
		cfg.Classifier = auth.DefaultRouteClassifier()
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = DefaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = auth.BearerPrefix
	}

	if cfg.Locator == nil {
		cfg.Locator = NewLocator(GetExtractors(cfg.TokenLookup, cfg.AuthScheme)...)
	}

	if cfg.Logger == nil {
		cfg.Logger = auth.NopLogger{}
	}

	return cfg
}
