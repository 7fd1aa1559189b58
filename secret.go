package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// SecretEnvVar holds the signing secret at process start
const SecretEnvVar = "JWT_SECRET"

// Secret is the process wide HMAC key. It is built once at startup and
// passed to the components that sign or verify tokens.
type Secret struct {
	key []byte
}

// NewSecret wraps a raw secret value, rejecting blank input
func NewSecret(value string) (Secret, error) {
	if strings.TrimSpace(value) == "" {
		return Secret{}, ErrMissingSecret
	}
	key := make([]byte, len(value))
	copy(key, value)
	return Secret{key: key}, nil
}

// LoadSecret reads SecretEnvVar through getenv. Callers must treat an
// error as fatal.
func LoadSecret(getenv func(string) string) (Secret, error) {
	if getenv == nil {
		return Secret{}, ErrMissingSecret
	}
	s, err := NewSecret(getenv(SecretEnvVar))
	if err != nil {
		return Secret{}, withCause(ErrMissingSecret,
			goerrors.New("environment variable "+SecretEnvVar+" is empty or unset", goerrors.CategoryValidation),
		)
	}
	return s, nil
}

// IsZero reports whether the secret was never initialized
func (s Secret) IsZero() bool {
	return len(s.key) == 0
}

// String never prints the key
func (s Secret) String() string {
	return "[redacted]"
}

func (s Secret) bytes() []byte {
	return s.key
}
