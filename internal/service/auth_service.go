package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/qr-hub/internal/auth"
	apperrors "github.com/qr-hub/internal/errors"
	"github.com/qr-hub/internal/logging"
	"github.com/qr-hub/internal/models"
	"github.com/qr-hub/internal/storage"
)

// Session is a signed-in user with their access token
type Session struct {
	User    *models.User `json:"user"`
	Session *auth.Token  `json:"session"`
}

// AuthService manages local accounts and bearer tokens
type AuthService struct {
	users  storage.UserStore
	plans  *PlanService
	tokens *auth.TokenManager
	logger *logging.Logger
}

// NewAuthService creates an auth service
func NewAuthService(users storage.UserStore, plans *PlanService, tokens *auth.TokenManager) *AuthService {
	return &AuthService{
		users:  users,
		plans:  plans,
		tokens: tokens,
		logger: logging.GetGlobalLogger().WithField("service", "auth"),
	}
}

// Signup registers a user, gives them the free plan, and signs them in
func (s *AuthService) Signup(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewValidationError("A valid email is required")
	}
	if len(password) < auth.MinPasswordLength {
		return nil, apperrors.NewValidationError("Password should be at least 6 characters")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to hash password", err)
	}

	user := &models.User{Email: email, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			return nil, apperrors.NewValidationError("User already registered")
		}
		return nil, apperrors.NewDatabaseError("create user", err)
	}

	// The plan is created lazily on first read if this fails.
	if _, err := s.plans.Create(ctx, user.ID); err != nil {
		s.logger.WithError(err).WithField("userId", user.ID).Warn("Failed to create plan at signup")
	}

	s.logger.WithField("userId", user.ID).Info("User signed up")
	return s.issue(user)
}

// Login checks credentials and issues a new token
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewValidationError("Invalid login credentials")
		}
		return nil, apperrors.NewDatabaseError("get user", err)
	}

	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewValidationError("Invalid login credentials")
	}
	return s.issue(user)
}

// Authenticate verifies a bearer token and returns its claims
func (s *AuthService) Authenticate(token string) (*auth.Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("Unauthorized")
	}
	return claims, nil
}

// CurrentUser returns the user a token belongs to. Tokens from an external
// identity provider may name users with no local account; they are described
// from their claims.
func (s *AuthService) CurrentUser(ctx context.Context, claims *auth.Claims) (*models.User, error) {
	user, err := s.users.GetByID(ctx, claims.Subject)
	if err == nil {
		return user, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return &models.User{ID: claims.Subject, Email: claims.Email}, nil
	}
	return nil, apperrors.NewDatabaseError("get user", err)
}

func (s *AuthService) issue(user *models.User) (*Session, error) {
	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to issue token", err)
	}
	return &Session{User: user, Session: token}, nil
}
