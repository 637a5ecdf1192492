package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/taskora-inc/taskora-engine/pkg/crypto"
	"github.com/taskora-inc/taskora-engine/pkg/models"
	"github.com/taskora-inc/taskora-engine/pkg/repositories"
)

// UserService defines the interface for account operations.
type UserService interface {
	Signup(ctx context.Context, email, password string) (*models.User, error)
}

// userService implements UserService.
type userService struct {
	userRepo repositories.UserRepository
	logger   *zap.Logger
}

// NewUserService creates a new user service with dependencies.
func NewUserService(userRepo repositories.UserRepository, logger *zap.Logger) UserService {
	return &userService{userRepo: userRepo, logger: logger}
}

// Signup registers a new account. Emails are stored lowercase; duplicate
// registration surfaces as ErrConflict from the repository.
func (s *userService) Signup(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email %q", email)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Email: email, PasswordHash: hash}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

// Ensure userService implements UserService at compile time.
var _ UserService = (*userService)(nil)
