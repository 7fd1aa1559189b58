package auth_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/goliatone/go-auth-gate"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// MockCredentialStore implements auth.CredentialStore
type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

// MockActivitySink records events
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event auth.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func testSecret(t *testing.T) auth.Secret {
	t.Helper()
	secret, err := auth.NewSecret("test-signing-key")
	require.NoError(t, err)
	return secret
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func hashForTest(t *testing.T, password string) string {
	t.Helper()
	hash, err := auth.BcryptHasher{Cost: bcrypt.MinCost}.HashPassword(password)
	require.NoError(t, err)
	return hash
}
