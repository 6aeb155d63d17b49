// Package service: authentication business logic.
//
// AuthService sits between the HTTP handlers and the repository/auth
// utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
//
// KEY RESPONSIBILITIES:
//   - Self-service registration with format and uniqueness rules
//   - Email/password login that issues a session token
//   - Validating session tokens on behalf of auth.RequireAuth
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/checkfit/internal/apperror"
	"github.com/sakif/checkfit/internal/auth"
	"github.com/sakif/checkfit/internal/model"
	"github.com/sakif/checkfit/internal/repository"
)

// AuthService handles the authentication business logic.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read/write member records
//   - tokens     *auth.TokenService         → generate/validate JWTs
//   - passwords  *auth.PasswordService      → bcrypt hashing
//   - logger     *slog.Logger               → structured logging
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
	now       func() time.Time
}

// NewAuthService creates an AuthService with all required dependencies.
// Call this in server.go (or main.go) when wiring the dependency graph.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
		now:       time.Now,
	}
}

// Register creates a new member.
//
// Order of checks:
//  1. Formats: name, email, phone, CPF, password
//  2. Uniqueness: email, then CPF, then phone
//  3. Hash the password and persist with createdAt = now
//
// The first failing check is the one reported.
func (s *AuthService) Register(ctx context.Context, in UserInput) (*model.User, error) {
	user, err := createUser(ctx, s.users, s.passwords, in, s.now())
	if err != nil {
		return nil, err
	}

	s.logger.Info("member registered",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)
	return user, nil
}

// Login verifies the credentials and returns a signed token.
//
// An unknown email and a wrong password both produce
// apperror.InvalidCredentials, so the response does not reveal which
// addresses are registered.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", apperror.InvalidCredentials()
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Info("login rejected", slog.String("reason", "unknown email"))
			return "", apperror.InvalidCredentials()
		}
		return "", fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Info("login rejected",
				slog.String("userID", user.ID),
				slog.String("reason", "wrong password"),
			)
			return "", apperror.InvalidCredentials()
		}
		return "", fmt.Errorf("service/auth: verifying password for %s: %w", user.ID, err)
	}

	token, err := s.tokens.Generate(user.Email)
	if err != nil {
		return "", fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("member logged in", slog.String("userID", user.ID))
	return token, nil
}

// AuthService is what the server hands to auth.RequireAuth.
var _ auth.TokenValidator = (*AuthService)(nil)

// ValidateToken returns the email a token was issued to, or "" if the token
// is malformed, tampered with, issued by someone else, or expired. It never
// returns an error: callers only need to know "who" or "nobody".
func (s *AuthService) ValidateToken(tokenStr string) string {
	return s.tokens.Subject(tokenStr)
}
