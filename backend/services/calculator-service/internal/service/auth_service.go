package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"gulfsolar/backend/services/calculator-service/internal/models"
	"gulfsolar/backend/services/calculator-service/internal/password"
	"gulfsolar/backend/services/calculator-service/internal/repository"
)

var (
	// ErrInvalidCredentials represents login failure.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrInvalidEmail rejects addresses net/mail cannot parse.
	ErrInvalidEmail = errors.New("invalid email")
)

// AdminRepository defines storage contract used by the auth service.
type AdminRepository interface {
	Create(ctx context.Context, admin *models.AdminUser) error
	GetByEmail(ctx context.Context, email string) (*models.AdminUser, error)
}

// AuthService creates admins and logs them in.
type AuthService struct {
	repo      AdminRepository
	hasher    password.Hasher
	tokenizer *TokenService
	logger    *zap.Logger
}

// NewAuthService builds AuthService.
func NewAuthService(repo AdminRepository, hasher password.Hasher, tokenizer *TokenService, logger *zap.Logger) *AuthService {
	return &AuthService{
		repo:      repo,
		hasher:    hasher,
		tokenizer: tokenizer,
		logger:    logger,
	}
}

// CreateAdmin registers a new admin. There is no public signup; the operator CLI calls this.
func (s *AuthService) CreateAdmin(ctx context.Context, email, pass, role string) (*models.AdminUser, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if role == "" {
		role = models.RoleAdmin
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, repository.ErrAdminExists
	} else if !errors.Is(err, repository.ErrAdminNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(pass)
	if err != nil {
		return nil, err
	}

	admin := &models.AdminUser{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		return nil, err
	}

	s.logger.Info("admin created", zap.Int64("admin_id", admin.ID), zap.String("email", admin.Email))
	return admin, nil
}

// Login authenticates an admin and produces a JWT.
func (s *AuthService) Login(ctx context.Context, email, pass string) (string, *models.AdminUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || pass == "" {
		return "", nil, ErrInvalidCredentials
	}

	admin, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if err := s.hasher.Compare(admin.PasswordHash, pass); err != nil {
		s.logger.Warn("admin login rejected", zap.Int64("admin_id", admin.ID))
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokenizer.GenerateToken(admin.ID, admin.Role)
	if err != nil {
		return "", nil, err
	}

	return token, admin, nil
}

// NormalizeEmail trims, lowercases and syntax-checks an address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: %s", ErrInvalidEmail, email)
	}
	return email, nil
}
