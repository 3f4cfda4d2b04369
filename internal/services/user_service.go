package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/ledgermail/core/internal/apperrors"
	"github.com/ledgermail/core/internal/database/models"
	"github.com/ledgermail/core/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials indicates invalid login credentials
	ErrInvalidCredentials = apperrors.Authentication("Invalid username or password")
	// ErrPasswordTooShort indicates the password is too short
	ErrPasswordTooShort = apperrors.Validation("Password must be at least 6 characters", nil)
	// ErrInvalidUsername indicates a missing or malformed username
	ErrInvalidUsername = apperrors.Validation("Username must be 3 to 50 characters", nil)
	// ErrInvalidEmailAddress indicates a malformed email address
	ErrInvalidEmailAddress = apperrors.Validation("Invalid email address", nil)
)

const (
	minPasswordLength = 6
	minUsernameLength = 3
	maxUsernameLength = 50
)

// UserService handles user registration and credential checks
type UserService struct {
	store storage.Storage
}

// NewUserService creates a new UserService instance
func NewUserService(store storage.Storage) *UserService {
	return &UserService{store: store}
}

// Register creates a new user with a bcrypt hashed password
func (s *UserService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return nil, ErrInvalidUsername
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmailAddress
	}
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	if err := s.ensureAvailable(ctx, username, email); err != nil {
		return nil, err
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	return s.store.CreateUser(ctx, &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashed,
	})
}

// ensureAvailable fails with storage.ErrUserAlreadyExists when the username
// or email address is taken
func (s *UserService) ensureAvailable(ctx context.Context, username, email string) error {
	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return storage.ErrUserAlreadyExists
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		return err
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return storage.ErrUserAlreadyExists
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		return err
	}
	return nil
}

// VerifyPassword returns the user when username and password match
func (s *UserService) VerifyPassword(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !ComparePassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.store.GetUserByID(ctx, id)
}

// ListUsers returns all users
func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.store.ListUsers(ctx)
}

// IsPasswordHashed checks if a string looks like a bcrypt hash
func IsPasswordHashed(password string) bool {
	if len(password) < 4 {
		return false
	}
	return password[:4] == "$2a$" || password[:4] == "$2b$" || password[:4] == "$2y$"
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

// ComparePassword compares a password with a hash
func ComparePassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}
