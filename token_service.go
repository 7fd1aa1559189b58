package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// TokenTTL is the fixed validity window of issued tokens
const TokenTTL = 24 * time.Hour

// BearerPrefix marks a token as a bearer credential
const BearerPrefix = "Bearer "

// DecodeOutcome tags the result of decoding a raw token
type DecodeOutcome int

const (
	DecodeOK DecodeOutcome = iota
	DecodeExpired
	DecodeMalformed
)

func (o DecodeOutcome) String() string {
	switch o {
	case DecodeOK:
		return "ok"
	case DecodeExpired:
		return "expired"
	default:
		return "malformed"
	}
}

// DecodeResult is what Decode returns. Claims is set only for DecodeOK;
// Err carries the underlying cause for logging otherwise.
type DecodeResult struct {
	Outcome DecodeOutcome
	Claims  *Claims
	Err     error
}

// TokenService issues and verifies HS256 session tokens
type TokenService struct {
	secret Secret
	now    func() time.Time
	logger Logger
}

// TokenServiceOption configures a TokenService
type TokenServiceOption func(*TokenService)

// WithTokenClock overrides the clock used for issuance and expiry checks
func WithTokenClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenService) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenService) {
		ts.logger = normalizeLogger(logger)
	}
}

// NewTokenService creates a new TokenService. It panics on a zero Secret,
// which can only happen if startup skipped LoadSecret.
func NewTokenService(secret Secret, opts ...TokenServiceOption) *TokenService {
	if secret.IsZero() {
		panic("AUTH: token service requires a signing secret")
	}

	ts := &TokenService{
		secret: secret,
		now:    time.Now,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}
	return ts
}

// Issue signs a token for subject valid for TokenTTL from now. The returned
// string carries the bearer prefix.
func (ts *TokenService) Issue(subject string, authorities []string) (string, error) {
	return ts.IssueAt(subject, authorities, ts.now())
}

// IssueAt signs a token as if issued at issuedAt
func (ts *TokenService) IssueAt(subject string, authorities []string, issuedAt time.Time) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", goerrors.New("token subject must not be empty", goerrors.CategoryBadInput).
			WithTextCode("EMPTY_SUBJECT")
	}

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(TokenTTL)),
		},
		Authorities: append(Authorities(nil), authorities...),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.secret.bytes())
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return BearerPrefix + signed, nil
}

// Decode verifies raw and classifies the result. A leading bearer prefix is
// accepted. Only a correctly signed token whose exp has passed is reported
// as DecodeExpired.
func (ts *TokenService) Decode(raw string) DecodeResult {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), BearerPrefix)
	if raw == "" {
		return DecodeResult{Outcome: DecodeMalformed, Err: ErrTokenMalformed}
	}

	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return ts.secret.bytes(), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return DecodeResult{Outcome: DecodeExpired, Err: withCause(ErrTokenExpired, err)}
		}
		return DecodeResult{Outcome: DecodeMalformed, Err: withCause(ErrTokenMalformed, err)}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return DecodeResult{Outcome: DecodeMalformed, Err: ErrTokenMalformed}
	}

	if claims.IssuedAt().IsZero() || !claims.Expires().After(claims.IssuedAt()) {
		return DecodeResult{
			Outcome: DecodeMalformed,
			Err:     withCause(ErrTokenMalformed, errors.New("exp must be after iat")),
		}
	}

	ts.logger.Debug("token decoded", "claims", print.MaybePrettyJSON(claims))

	return DecodeResult{Outcome: DecodeOK, Claims: claims}
}

// Validate is Decode for callers that prefer an error value
func (ts *TokenService) Validate(raw string) (*Claims, error) {
	res := ts.Decode(raw)
	if res.Outcome != DecodeOK {
		return nil, res.Err
	}
	return res.Claims, nil
}
