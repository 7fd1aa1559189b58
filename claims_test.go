package auth_test

import (
	"encoding/json"
	"testing"
	"time"

	auth "github.com/goliatone/go-auth-gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorities_Unmarshal(t *testing.T) {
	cases := []struct {
		name     string
		payload  string
		expected []string
	}{
		{"array", `{"authorities":["ROLE_USER","ROLE_ADMIN"]}`, []string{"ROLE_USER", "ROLE_ADMIN"}},
		{"comma string", `{"authorities":"ROLE_USER,ROLE_ADMIN"}`, []string{"ROLE_USER", "ROLE_ADMIN"}},
		{"comma string with spaces", `{"authorities":" ROLE_USER , ,ROLE_ADMIN "}`, []string{"ROLE_USER", "ROLE_ADMIN"}},
		{"single string", `{"authorities":"ROLE_USER"}`, []string{"ROLE_USER"}},
		{"empty string", `{"authorities":""}`, []string{}},
		{"missing", `{}`, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var claims auth.Claims
			require.NoError(t, json.Unmarshal([]byte(tc.payload), &claims))

			if tc.expected == nil {
				assert.Nil(t, claims.Authorities)
				return
			}
			assert.Equal(t, tc.expected, []string(claims.Authorities))
		})
	}

	t.Run("rejects numbers", func(t *testing.T) {
		var claims auth.Claims
		assert.Error(t, json.Unmarshal([]byte(`{"authorities":42}`), &claims))
	})
}

func TestPrincipalFromClaims(t *testing.T) {
	t.Run("nil claims", func(t *testing.T) {
		assert.Nil(t, auth.PrincipalFromClaims(nil))
	})

	t.Run("no authorities", func(t *testing.T) {
		claims := &auth.Claims{}
		claims.RegisteredClaims.Subject = "alice"
		assert.Nil(t, auth.PrincipalFromClaims(claims))
	})

	t.Run("copies authorities", func(t *testing.T) {
		claims := &auth.Claims{Authorities: auth.Authorities{auth.RoleUser}}
		claims.RegisteredClaims.Subject = "alice"

		p := auth.PrincipalFromClaims(claims)
		require.NotNil(t, p)
		assert.Equal(t, "alice", p.Subject)
		assert.Equal(t, []string{auth.RoleUser}, p.Authorities)

		claims.Authorities[0] = "ROLE_TAMPERED"
		assert.Equal(t, auth.RoleUser, p.Authorities[0])
	})
}

func TestPrincipal_HasAuthority(t *testing.T) {
	p := &auth.Principal{Subject: "alice", Authorities: []string{auth.RoleUser, "ROLE_SUPPORT"}}

	assert.True(t, p.HasAuthority(auth.RoleUser))
	assert.False(t, p.HasAuthority(auth.RoleAdmin))
	assert.False(t, p.HasAuthority("role_user"))
	assert.True(t, p.HasAnyAuthority(auth.RoleAdmin, "ROLE_SUPPORT"))
	assert.False(t, p.HasAnyAuthority())

	var nilPrincipal *auth.Principal
	assert.False(t, nilPrincipal.HasAuthority(auth.RoleUser))
}

func TestClaims_TimeAccessors(t *testing.T) {
	claims := &auth.Claims{}
	assert.True(t, claims.Expires().IsZero())
	assert.True(t, claims.IssuedAt().IsZero())
	assert.False(t, claims.HasAuthorities())

	var decoded auth.Claims
	require.NoError(t, json.Unmarshal([]byte(`{"sub":"alice","iat":1700000000,"exp":1700086400}`), &decoded))
	assert.Equal(t, "alice", decoded.Subject())
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), decoded.IssuedAt().UTC())
	assert.Equal(t, time.Unix(1700086400, 0).UTC(), decoded.Expires().UTC())
}

func TestUser_Authorities(t *testing.T) {
	assert.Equal(t, []string{auth.RoleUser}, (&auth.User{Role: auth.RoleUser}).Authorities())
	assert.Equal(t, []string{auth.RoleUser, auth.RoleAdmin}, (&auth.User{Role: "ROLE_USER, ROLE_ADMIN"}).Authorities())
	assert.Empty(t, (&auth.User{}).Authorities())

	var nilUser *auth.User
	assert.Nil(t, nilUser.Authorities())
}
