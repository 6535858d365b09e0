package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"timed-quiz-service/internal/domain"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

// MaxPasswordBytes is the longest password bcrypt can hash.
const MaxPasswordBytes = 72

// AccountService is the credential store: registration, login and actor lookup.
type AccountService struct {
	users UserRepository
	now   func() time.Time
	cost  int
}

func NewAccountService(users UserRepository) *AccountService {
	return &AccountService{users: users, now: time.Now, cost: bcrypt.DefaultCost}
}

// NewAccountServiceWithCost lets tests use a cheap bcrypt cost.
func NewAccountServiceWithCost(users UserRepository, cost int) *AccountService {
	s := NewAccountService(users)
	s.cost = cost
	return s
}

// Register creates an account with a bcrypt-hashed password.
func (s *AccountService) Register(ctx context.Context, username, password string, role domain.Role) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" || !role.Valid() {
		return domain.User{}, &domain.ValidationError{Fields: map[string]string{
			"form": "Please provide a username, password and select a valid role.",
		}}
	}
	if len(password) < MinPasswordLength {
		return domain.User{}, domain.NewValidationError("password", "Password must be at least 6 characters long.")
	}
	if len(password) > MaxPasswordBytes {
		return domain.User{}, domain.NewValidationError("password", "Password must be at most 72 bytes long.")
	}

	if _, err := s.users.UserByUsername(ctx, username); err == nil {
		return domain.User{}, domain.ErrDuplicateUsername
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.users.CreateUser(ctx, domain.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateUsername) {
			return domain.User{}, err
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate verifies a username and password pair.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	user, err := s.users.UserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.User{}, domain.ErrInvalidCredentials
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return user, nil
}

// User loads the actor behind a session.
func (s *AccountService) User(ctx context.Context, id int64) (domain.User, error) {
	return s.users.UserByID(ctx, id)
}
