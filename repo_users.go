package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// OpenSQLite opens a bun DB on the sqlite driver
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite database")
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// Users is the bun backed CredentialStore
type Users struct {
	repository.Repository[*User]
	db     *bun.DB
	hasher PasswordAuthenticator
	now    func() time.Time
}

var (
	_ CredentialStore              = (*Users)(nil)
	_ repository.Repository[*User] = (*Users)(nil)
)

type UsersOption func(*Users)

// WithUsersHasher overrides the password hasher used by Register
func WithUsersHasher(h PasswordAuthenticator) UsersOption {
	return func(u *Users) {
		if h != nil {
			u.hasher = h
		}
	}
}

// WithUsersClock sets the clock used to stamp logins
func WithUsersClock(now func() time.Time) UsersOption {
	return func(u *Users) {
		if now != nil {
			u.now = now
		}
	}
}

func NewUsersRepository(db *bun.DB, opts ...UsersOption) *Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	u := &Users{
		Repository: repo,
		db:         db,
		hasher:     BcryptHasher{},
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(u)
		}
	}
	return u
}

// EnsureSchema creates the users table if needed
func (u *Users) EnsureSchema(ctx context.Context) error {
	_, err := u.db.NewCreateTable().
		Model((*User)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create users table")
	}
	return nil
}

// GetByUsername returns ErrIdentityNotFound when no user matches. A
// username shaped like a UUID is still matched against the username
// column.
func (u *Users) GetByUsername(ctx context.Context, username string) (*User, error) {
	user, err := u.Get(ctx, selectByUsername(username))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user")
	}
	return user, nil
}

// Register hashes password and stores a new user
func (u *Users) Register(ctx context.Context, username, password, role string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrNoEmptyString
	}

	hash, err := u.hasher.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := u.Create(ctx, &User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to register user")
	}
	return user, nil
}

// GetOrRegister returns the existing user or registers it
func (u *Users) GetOrRegister(ctx context.Context, username, password, role string) (*User, error) {
	user, err := u.GetByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrIdentityNotFound) {
		return nil, err
	}
	return u.Register(ctx, username, password, role)
}

// TrackSuccessfulLogin stamps loggedin_at
func (u *Users) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	if user == nil || user.ID == uuid.Nil {
		return ErrIdentityNotFound
	}

	now := u.now()
	user.LoggedInAt = &now

	_, err := u.Update(ctx, user, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Column("loggedin_at")
	})
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrIdentityNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to track login")
	}
	return nil
}

func selectByUsername(username string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.username = ?", username)
	}
}
