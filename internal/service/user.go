// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/taskhive/taskhive/internal/auth"
	"github.com/taskhive/taskhive/internal/metrics"
	"github.com/taskhive/taskhive/internal/model"
	"github.com/taskhive/taskhive/internal/repository"
)

// Service errors.
var (
	ErrInvalidUsername = errors.New("username is required")
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrInvalidPassword = errors.New("password is required")
	// ErrUserExists conflates username and email collisions so a caller
	// cannot tell which field is taken.
	ErrUserExists   = errors.New("username or email already in use")
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials covers both an unknown username and a wrong
	// password. The two cases must stay indistinguishable.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// UserStore is the persistence boundary for accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// IdentityInvalidator evicts cached identities. Optional.
type IdentityInvalidator interface {
	DeleteUser(ctx context.Context, username string) error
}

// TokenIssuer signs bearer tokens for authenticated subjects.
type TokenIssuer interface {
	Issue(subject string, ttl time.Duration) (string, error)
	DefaultTTL() time.Duration
}

// UserService handles registration, login and account management.
type UserService struct {
	store   UserStore
	codec   TokenIssuer
	cache   IdentityInvalidator
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewUserService creates a new UserService. cache may be nil.
func NewUserService(store UserStore, codec TokenIssuer, cache IdentityInvalidator, recorder metrics.Recorder) *UserService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &UserService{
		store:   store,
		codec:   codec,
		cache:   cache,
		metrics: recorder,
		logger:  slog.Default(),
	}
}

// WithLogger overrides the service's logger.
func (s *UserService) WithLogger(logger *slog.Logger) *UserService {
	s.logger = logger
	return s
}

// RegisterInput defines input for registering a user.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register validates the input, hashes the password and persists the
// account. Uniqueness is enforced by the store, not pre-checked, so two
// concurrent registrations of the same name cannot both succeed.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, ErrInvalidUsername
	}

	if err := validateEmail(input.Email); err != nil {
		return nil, err
	}

	if input.Password == "" {
		return nil, ErrInvalidPassword
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        input.Email,
		PasswordHash: hash,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) || errors.Is(err, repository.ErrEmailTaken) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.IncUserRegistered()

	return user, nil
}

// Login verifies the credentials and issues a signed bearer token.
// An unknown username and a wrong password produce the identical error.
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.metrics.IncLoginFailure()
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	// A malformed stored hash verifies as false, never as an error the
	// caller can distinguish from a wrong password.
	match, _ := auth.VerifyPassword(password, user.PasswordHash)
	if !match {
		s.metrics.IncLoginFailure()
		return "", ErrInvalidCredentials
	}

	token, err := s.codec.Issue(user.Username, s.codec.DefaultTTL())
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}

	s.metrics.IncLoginSuccess()

	return token, nil
}

// Get retrieves a user by ID.
func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// List retrieves all users.
func (s *UserService) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Delete removes a user and all tasks they own, then evicts the cached
// identity so outstanding tokens for the account stop resolving.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if err := s.store.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if s.cache != nil {
		// The cached identity carries its own TTL, so a failed eviction
		// leaves a bounded stale window. Record it rather than failing
		// the delete.
		if err := s.cache.DeleteUser(ctx, user.Username); err != nil {
			s.logger.Warn("failed to evict cached identity",
				slog.String("username", user.Username),
				slog.String("error", err.Error()),
			)
		}
	}

	s.metrics.IncUserDeleted()

	return nil
}

// validateEmail requires a bare, syntactically valid address.
func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}
