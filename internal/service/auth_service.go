package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/staff-service/internal/auth"
	"github.com/spec-kit/staff-service/internal/config"
	"github.com/spec-kit/staff-service/internal/domain"
	"github.com/spec-kit/staff-service/internal/repository"
	apperrors "github.com/spec-kit/staff-service/pkg/util"
)

// AuthService coordinates registration, login and credential flows.
type AuthService struct {
	users      repository.UserRepository
	resets     repository.PasswordResetRepository
	denylist   auth.Denylist
	tokenMgr   *auth.TokenManager
	validate   *validator.Validate
	logger     *zap.Logger
	bcryptCost int
	resetTTL   time.Duration
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo          repository.UserRepository
	PasswordResetRepo repository.PasswordResetRepository
	Denylist          auth.Denylist
	Validator         *validator.Validate
	Logger            *zap.Logger
}

// AuthResult is an issued access token together with its owner.
type AuthResult struct {
	User  *domain.User
	Token string
	Meta  *domain.Token
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	v := deps.Validator
	if v == nil {
		v = NewValidator()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	resetTTL := time.Duration(cfg.Auth.PasswordResetTTLMinutes) * time.Minute
	if resetTTL <= 0 {
		resetTTL = 30 * time.Minute
	}
	return &AuthService{
		users:      deps.UserRepo,
		resets:     deps.PasswordResetRepo,
		denylist:   deps.Denylist,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes, cfg.App.Name),
		validate:   v,
		logger:     logger,
		bcryptCost: cfg.Auth.BcryptCost,
		resetTTL:   resetTTL,
	}
}

type credentialsInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,staffemail"`
	Password string `json:"password" validate:"required,min=6"`
}

// Register creates a user with the default role and signs them in.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	in := credentialsInput{
		Name:     strings.TrimSpace(name),
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: password,
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, apperrors.ToDomainError(err)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         domain.UserRoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, mapUserError(err)
	}
	return s.issue(user)
}

// Login authenticates a user by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperrors.NewValidationError("please provide an email and password", nil)
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.NewInternalError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	return s.issue(user)
}

// Logout revokes the presented token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if s.denylist == nil || tokenID == "" {
		return nil
	}
	if err := s.denylist.Revoke(ctx, tokenID, expiresAt); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// Me reloads the current user.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapUserError(err)
	}
	return user, nil
}

// UpdateProfile changes the caller's own name and email; nil fields are kept.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, name, email *string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapUserError(err)
	}
	if name != nil {
		user.Name = strings.TrimSpace(*name)
	}
	if email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*email))
	}
	in := credentialsInput{Name: user.Name, Email: user.Email, Password: "unchanged"}
	if err := s.validate.Struct(in); err != nil {
		return nil, apperrors.ToDomainError(err)
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, mapUserError(err)
	}
	return user, nil
}

// ChangePassword verifies the current password before storing the new hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if len(newPassword) < auth.MinPasswordLength {
		return apperrors.NewValidationError("password must be at least 6 characters", map[string]any{"newPassword": "min=6"})
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return mapUserError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewUnauthorized("current password is incorrect")
	}
	return s.setPassword(ctx, user, newPassword)
}

// RequestPasswordReset issues a reset token for the account behind email. An
// unknown email yields a nil token and no error so callers cannot enumerate accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (*domain.PasswordResetToken, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Debug("password reset requested for unknown email")
			return nil, nil
		}
		return nil, apperrors.NewInternalError(err)
	}
	token := &domain.PasswordResetToken{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, token); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.logger.Info("password reset token issued", zap.String("user_id", user.ID))
	return token, nil
}

// ConfirmPasswordReset consumes the reset token and sets the new password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, tokenStr, newPassword string) error {
	if len(newPassword) < auth.MinPasswordLength {
		return apperrors.NewValidationError("password must be at least 6 characters", map[string]any{"password": "min=6"})
	}
	token, err := s.resets.Consume(ctx, tokenStr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewValidationError("reset token is invalid or expired", nil)
		}
		return apperrors.NewInternalError(err)
	}
	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		return mapUserError(err)
	}
	return s.setPassword(ctx, user, newPassword)
}

// SeedAdmin creates an admin account, or promotes and re-keys an existing one.
func (s *AuthService) SeedAdmin(ctx context.Context, name, email, password string) (*domain.User, error) {
	in := credentialsInput{
		Name:     strings.TrimSpace(name),
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: password,
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, apperrors.ToDomainError(err)
	}
	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		existing.Name = in.Name
		existing.Role = domain.UserRoleAdmin
		existing.PasswordHash = hash
		if err := s.users.Update(ctx, existing); err != nil {
			return nil, mapUserError(err)
		}
		return existing, nil
	case errors.Is(err, repository.ErrNotFound):
		user := &domain.User{Name: in.Name, Email: in.Email, PasswordHash: hash, Role: domain.UserRoleAdmin}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, mapUserError(err)
		}
		return user, nil
	default:
		return nil, apperrors.NewInternalError(err)
	}
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) setPassword(ctx context.Context, user *domain.User, password string) error {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return mapUserError(err)
	}
	return nil
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, meta, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &AuthResult{User: user, Token: token, Meta: meta}, nil
}

func mapUserError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("User", nil)
	case errors.Is(err, repository.ErrDuplicateEmail):
		return apperrors.NewValidationError("email already exists", map[string]any{"email": "unique"})
	default:
		return apperrors.NewInternalError(err)
	}
}
