package auth

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Authorities is the authorities claim. It decodes from a JSON array and,
// for tokens minted by older issuers, from a comma separated string.
type Authorities []string

func (a *Authorities) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*a = compactAuthorities(list)
		return nil
	}

	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return err
	}
	*a = compactAuthorities(strings.Split(joined, ","))
	return nil
}

func compactAuthorities(list []string) Authorities {
	out := make(Authorities, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Claims is the token payload: sub, authorities, iat, exp
type Claims struct {
	jwt.RegisteredClaims
	Authorities Authorities `json:"authorities,omitempty"`
}

// Subject returns the subject claim
func (c *Claims) Subject() string {
	return c.RegisteredClaims.Subject
}

// HasAuthorities reports whether the authorities claim carried any value
func (c *Claims) HasAuthorities() bool {
	return len(c.Authorities) > 0
}

// Expires returns the expiration time
func (c *Claims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *Claims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// Principal is the identity bound to an authenticated request
type Principal struct {
	Subject     string   `json:"subject"`
	Authorities []string `json:"authorities"`
}

// PrincipalFromClaims returns nil when claims carry no authorities
func PrincipalFromClaims(c *Claims) *Principal {
	if c == nil || !c.HasAuthorities() {
		return nil
	}
	return &Principal{
		Subject:     c.Subject(),
		Authorities: append([]string(nil), c.Authorities...),
	}
}

// HasAuthority checks for an exact authority match
func (p *Principal) HasAuthority(authority string) bool {
	if p == nil {
		return false
	}
	for _, a := range p.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}

// HasAnyAuthority checks if at least one of the authorities is held
func (p *Principal) HasAnyAuthority(authorities ...string) bool {
	for _, a := range authorities {
		if p.HasAuthority(a) {
			return true
		}
	}
	return false
}
