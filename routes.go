package auth

import "strings"

// DefaultPublicExact are paths that bypass authentication as exact matches
var DefaultPublicExact = []string{
	"/login",
	"/favicon.ico",
	"/api/machinery",
}

// DefaultPublicPrefixes are path prefixes that bypass authentication
var DefaultPublicPrefixes = []string{
	"/css/",
	"/js/",
	"/images/",
	"/api/machinery/",
}

// RouteClassifier decides whether a request path skips the auth gate.
// It is immutable after construction and safe for concurrent use.
type RouteClassifier struct {
	exact    map[string]struct{}
	prefixes []string
}

// NewRouteClassifier copies exact and prefixes
func NewRouteClassifier(exact, prefixes []string) *RouteClassifier {
	rc := &RouteClassifier{
		exact:    make(map[string]struct{}, len(exact)),
		prefixes: make([]string, 0, len(prefixes)),
	}
	for _, p := range exact {
		rc.exact[p] = struct{}{}
	}
	for _, p := range prefixes {
		if p != "" {
			rc.prefixes = append(rc.prefixes, p)
		}
	}
	return rc
}

// DefaultRouteClassifier uses DefaultPublicExact and DefaultPublicPrefixes
func DefaultRouteClassifier() *RouteClassifier {
	return NewRouteClassifier(DefaultPublicExact, DefaultPublicPrefixes)
}

// RouteClassifierFromConfig builds a classifier from the routes section.
// The configured login path is always public.
func RouteClassifierFromConfig(cfg *Config) *RouteClassifier {
	if cfg == nil {
		return DefaultRouteClassifier()
	}
	exact := append([]string(nil), cfg.Routes.PublicExact...)
	if cfg.Auth.LoginPath != "" {
		exact = append(exact, cfg.Auth.LoginPath)
	}
	return NewRouteClassifier(exact, cfg.Routes.PublicPrefixes)
}

// IsPublic reports whether path is on the allow-list
func (rc *RouteClassifier) IsPublic(path string) bool {
	if _, ok := rc.exact[path]; ok {
		return true
	}
	for _, p := range rc.prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
