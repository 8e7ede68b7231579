package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"absensi/internal/auth"
)

// Users persists staff accounts.
type Users struct {
	db *sqlx.DB
}

var _ auth.UserStore = (*Users)(nil)

func NewUsers(db *DB) *Users {
	return &Users{db: db.Client}
}

func (r *Users) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	var u auth.User
	err := r.db.GetContext(ctx, &u, r.db.Rebind(`
		SELECT id, username, password_hash, role, created_at FROM users WHERE username = ?
	`), username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find user")
	}
	return &u, nil
}

func (r *Users) CreateUser(ctx context.Context, u auth.User) (auth.User, error) {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role, created_at)
		VALUES (:id, :username, :password_hash, :role, :created_at)
	`, u)
	if isUniqueViolation(err) {
		return auth.User{}, auth.ErrUsernameTaken
	}
	if err != nil {
		return auth.User{}, errors.Wrap(err, "insert user")
	}
	return u, nil
}

// SaveUser replaces the password and role of an existing username.
func (r *Users) SaveUser(ctx context.Context, u auth.User) (auth.User, error) {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role, created_at)
		VALUES (:id, :username, :password_hash, :role, :created_at)
		ON CONFLICT (username) DO UPDATE SET
			password_hash = excluded.password_hash,
			role = excluded.role
	`, u)
	if err != nil {
		return auth.User{}, errors.Wrap(err, "save user")
	}
	return u, nil
}
