package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"movierec/auth"
	"movierec/common"
	"movierec/models"
)

// UserStore is the persistence the auth service needs
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// AuthConfig configures an AuthService
type AuthConfig struct {
	Secret     []byte
	TokenTTL   time.Duration
	BcryptCost int
}

// AuthService registers users and issues login tokens
type AuthService struct {
	users UserStore
	cfg   AuthConfig
}

// NewAuthService creates a new auth service. Zero TTL and cost fall back to
// one hour and bcrypt cost 10.
func NewAuthService(users UserStore, cfg AuthConfig) *AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{users: users, cfg: cfg}
}

// Register creates a user with a hashed password. The username is checked
// before the email, so a request colliding on both reports the username.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if err := s.checkAvailable(ctx, username, email); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, common.ErrPasswordTooLong
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: string(hashed),
	}
	if err := s.users.Create(ctx, user); err != nil {
		// A concurrent registration may have won the unique constraint
		if conflict := s.checkAvailable(ctx, username, email); conflict != nil {
			return nil, conflict
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	return user, nil
}

func (s *AuthService) checkAvailable(ctx context.Context, username, email string) error {
	taken, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return err
	}
	if taken {
		return common.ErrUsernameExists
	}

	taken, err = s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return err
	}
	if taken {
		return common.ErrEmailExists
	}
	return nil
}

// Login verifies the credentials and returns a signed token. Unknown users and
// wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", common.ErrInvalidCredentials
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", common.ErrInvalidCredentials
	}

	return auth.GenerateToken(user.ID, user.Username, s.cfg.Secret, s.cfg.TokenTTL)
}

// ParseToken verifies a token issued by Login
func (s *AuthService) ParseToken(token string) (*auth.Claims, error) {
	return auth.ParseToken(token, s.cfg.Secret)
}
