package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/hypercore-one/bridge-monitor/internal/auth"
	"github.com/hypercore-one/bridge-monitor/internal/config"
	"github.com/hypercore-one/bridge-monitor/internal/models"
	"github.com/hypercore-one/bridge-monitor/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("user is inactive")
	ErrTokenRevoked       = errors.New("token is revoked")
	ErrTokenExpired       = errors.New("token is expired")
	ErrUsernameTaken      = errors.New("username already taken")
)

// AuthService owns login, credential resolution and user and API token
// management.
type AuthService struct {
	users  repository.UserRepository
	cache  NodeCache
	cfg    *config.AuthConfig
	ttl    time.Duration
	logger *logrus.Logger
}

// NewAuthService wires the service. cache may be nil; user lookups
// then always hit the database.
func NewAuthService(
	users repository.UserRepository,
	userCache NodeCache,
	cfg *config.AuthConfig,
	userTTL time.Duration,
	logger *logrus.Logger,
) *AuthService {
	return &AuthService{users: users, cache: userCache, cfg: cfg, ttl: userTTL, logger: logger}
}

// Login verifies a username and password and issues a session JWT.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.User, string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if err := auth.CheckPassword(password, user.PasswordHash); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, "", ErrUserInactive
	}

	token, err := auth.CreateSessionToken(s.cfg.SecretKey, user.ID, s.cfg.AccessTokenTTL())
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// ResolveCredential authenticates a bearer credential of either shape
// and returns the user behind it.
func (s *AuthService) ResolveCredential(ctx context.Context, credential string) (*models.User, error) {
	switch auth.ClassifyCredential(credential, s.cfg.APITokenPrefix) {
	case auth.CredentialAPIToken:
		return s.resolveAPIToken(ctx, credential)
	default:
		return s.resolveSessionToken(ctx, credential)
	}
}

func (s *AuthService) resolveAPIToken(ctx context.Context, credential string) (*models.User, error) {
	token, err := s.users.GetTokenByHash(ctx, auth.HashToken(credential))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if token.IsRevoked {
		return nil, ErrTokenRevoked
	}
	if token.Expired(time.Now().UTC()) {
		return nil, ErrTokenExpired
	}

	user, err := s.loadUser(ctx, token.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	// Best effort; a missed touch only skews the last-used display.
	if err := s.users.TouchToken(ctx, token.ID, time.Now().UTC()); err != nil {
		s.logger.WithError(err).Debug("failed to touch api token")
	}
	return user, nil
}

func (s *AuthService) resolveSessionToken(ctx context.Context, credential string) (*models.User, error) {
	userID, err := auth.ValidateSessionToken(s.cfg.SecretKey, credential)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return user, nil
}

func (s *AuthService) loadUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	key := "user:" + id.String()
	if s.cache != nil {
		var cached models.User
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, user, s.ttl)
	}
	return user, nil
}

func (s *AuthService) invalidateUser(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if setter, ok := s.cache.(interface {
		Delete(ctx context.Context, key string) error
	}); ok {
		_ = setter.Delete(ctx, "user:"+id.String())
	}
}

// CreateUserParams are the fields an admin supplies for a new user.
type CreateUserParams struct {
	Username           string
	Email              string
	Password           string
	IsAdmin            bool
	RateLimitPerSecond int
	RateLimitBurst     int
}

// CreateUser registers a new user with a hashed password.
func (s *AuthService) CreateUser(ctx context.Context, params CreateUserParams) (*models.User, error) {
	if _, err := s.users.GetByUsername(ctx, params.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(params.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:           params.Username,
		Email:              params.Email,
		PasswordHash:       hash,
		IsActive:           true,
		IsAdmin:            params.IsAdmin,
		RateLimitPerSecond: params.RateLimitPerSecond,
		RateLimitBurst:     params.RateLimitBurst,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUserParams are the mutable user fields; nil means unchanged.
type UpdateUserParams struct {
	Email              *string
	Password           *string
	IsActive           *bool
	IsAdmin            *bool
	RateLimitPerSecond *int
	RateLimitBurst     *int
}

// UpdateUser applies a partial update.
func (s *AuthService) UpdateUser(ctx context.Context, id uuid.UUID, params UpdateUserParams) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Email != nil {
		user.Email = *params.Email
	}
	if params.Password != nil {
		hash, err := auth.HashPassword(*params.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if params.IsActive != nil {
		user.IsActive = *params.IsActive
	}
	if params.IsAdmin != nil {
		user.IsAdmin = *params.IsAdmin
	}
	if params.RateLimitPerSecond != nil {
		user.RateLimitPerSecond = *params.RateLimitPerSecond
	}
	if params.RateLimitBurst != nil {
		user.RateLimitBurst = *params.RateLimitBurst
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	s.invalidateUser(ctx, id)
	return user, nil
}

// DeleteUser removes a user and, through the cascade, their tokens.
func (s *AuthService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateUser(ctx, id)
	return nil
}

// ListUsers pages through all users.
func (s *AuthService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, int64, error) {
	limit, offset = clampPage(limit, offset)
	return s.users.List(ctx, limit, offset)
}

// GetUser returns one user.
func (s *AuthService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// CreateAPIToken mints a token for the user. The plaintext is only
// returned here, never stored.
func (s *AuthService) CreateAPIToken(ctx context.Context, userID uuid.UUID, name string, expiresInDays int) (string, *models.APIToken, error) {
	plaintext, digest, err := auth.GenerateAPIToken(s.cfg.APITokenPrefix)
	if err != nil {
		return "", nil, err
	}

	token := &models.APIToken{
		UserID:    userID,
		TokenHash: digest,
		Name:      name,
	}
	if expiresInDays > 0 {
		expiry := time.Now().UTC().AddDate(0, 0, expiresInDays)
		token.ExpiresAt = &expiry
	}
	if err := s.users.CreateToken(ctx, token); err != nil {
		return "", nil, fmt.Errorf("failed to store api token: %w", err)
	}
	return plaintext, token, nil
}

// ListAPITokens returns the user's tokens, hashes excluded by the model.
func (s *AuthService) ListAPITokens(ctx context.Context, userID uuid.UUID) ([]models.APIToken, error) {
	return s.users.ListTokens(ctx, userID)
}

// RevokeAPIToken revokes one of the user's tokens.
func (s *AuthService) RevokeAPIToken(ctx context.Context, tokenID, userID uuid.UUID) error {
	return s.users.RevokeToken(ctx, tokenID, userID)
}
