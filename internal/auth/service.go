package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleAdmin = "admin"
	RoleGuru  = "guru"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already in use")
	ErrInvalidRole        = errors.New("role must be admin or guru")
	ErrMissingCredentials = errors.New("username and password are required")
)

// User is a staff account.
type User struct {
	ID           string    `json:"_id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// UserStore persists staff accounts.
type UserStore interface {
	// FindByUsername returns (nil, nil) when no user matches.
	FindByUsername(ctx context.Context, username string) (*User, error)
	// CreateUser returns ErrUsernameTaken on conflict.
	CreateUser(ctx context.Context, u User) (User, error)
	// SaveUser creates u or replaces the account with the same username.
	SaveUser(ctx context.Context, u User) (User, error)
}

// Service handles staff login and account creation.
type Service struct {
	users  UserStore
	issuer string
	key    string
	ttl    time.Duration
}

// NewService creates the staff account service.
func NewService(users UserStore, issuer, key string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{users: users, issuer: issuer, key: key, ttl: ttl}
}

// TTL is the session lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }

// Login checks the credentials and issues a session.
func (s *Service) Login(ctx context.Context, username, password string) (User, Session, error) {
	username = normalize(username)
	if username == "" || password == "" {
		return User{}, Session{}, ErrMissingCredentials
	}
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return User{}, Session{}, err
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, Session{}, ErrInvalidCredentials
	}
	sess, err := Issue(*u, s.issuer, s.key, s.ttl)
	if err != nil {
		return User{}, Session{}, err
	}
	return *u, sess, nil
}

// NewUser validates the input and hashes the password.
func NewUser(username, password, role string) (User, error) {
	username = normalize(username)
	if username == "" || password == "" {
		return User{}, ErrMissingCredentials
	}
	if role == "" {
		role = RoleGuru
	}
	if role != RoleAdmin && role != RoleGuru {
		return User{}, ErrInvalidRole
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Register creates a new staff account.
func (s *Service) Register(ctx context.Context, username, password, role string) (User, error) {
	u, err := NewUser(username, password, role)
	if err != nil {
		return User{}, err
	}
	return s.users.CreateUser(ctx, u)
}

func normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
