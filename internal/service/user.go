package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/checkfit/internal/apperror"
	"github.com/sakif/checkfit/internal/auth"
	"github.com/sakif/checkfit/internal/model"
	"github.com/sakif/checkfit/internal/repository"
)

// UserService manages member records on behalf of authenticated callers.
// Self-service registration lives on AuthService and shares the same rules.
type UserService struct {
	repo      repository.UserRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
	now       func() time.Time
}

func NewUserService(repo repository.UserRepository, passwords *auth.PasswordService, logger *slog.Logger) *UserService {
	return &UserService{
		repo:      repo,
		passwords: passwords,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return user, nil
}

// Create applies exactly the registration rules.
func (s *UserService) Create(ctx context.Context, in UserInput) (*model.User, error) {
	user, err := createUser(ctx, s.repo, s.passwords, in, s.now())
	if err != nil {
		return nil, err
	}

	s.logger.Info("user created",
		slog.String("id", user.ID),
		slog.String("email", user.Email),
	)
	return user, nil
}

// Update replaces the profile of user id. Uniqueness is checked against the
// other users only, so resubmitting your own email is fine. An empty
// Password keeps the current hash.
func (s *UserService) Update(ctx context.Context, id string, in UserInput) (*model.User, error) {
	in.normalize()
	if err := in.validate(false); err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	if err := checkUnique(ctx, s.repo, in, id); err != nil {
		return nil, err
	}

	user.Name = in.Name
	user.Email = in.Email
	user.Phone = in.Phone
	user.CPF = in.CPF
	user.DateBirth = in.DateBirth
	if in.Password != "" {
		hash, err := s.passwords.Hash(in.Password)
		if err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
		user.PasswordHash = hash
	}

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}

	s.logger.Info("user updated", slog.String("id", id))
	return user, nil
}

// Delete removes user id. Unlike activities, deleting a missing user is an
// error (404).
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	s.logger.Info("user deleted", slog.String("id", id))
	return nil
}

// createUser is the write path shared by registration and admin creation:
// formats first, then uniqueness (email, CPF, phone), then hash and insert.
func createUser(
	ctx context.Context,
	repo repository.UserRepository,
	passwords *auth.PasswordService,
	in UserInput,
	now time.Time,
) (*model.User, error) {
	in.normalize()
	if err := in.validate(true); err != nil {
		return nil, err
	}
	if err := checkUnique(ctx, repo, in, ""); err != nil {
		return nil, err
	}

	hash, err := passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &model.User{
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		CPF:          in.CPF,
		DateBirth:    in.DateBirth,
		PasswordHash: hash,
		CreatedAt:    now,
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		// A concurrent registration can slip past checkUnique; the UNIQUE
		// constraint still rejects it and the store reports which field.
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

// checkUnique reports the first taken field in the order email, CPF, phone.
func checkUnique(ctx context.Context, repo repository.UserRepository, in UserInput, excludeID string) error {
	checks := []struct {
		field, label, value string
		exists              func(context.Context, string, string) (bool, error)
	}{
		{"email", "Email", in.Email, repo.ExistsByEmail},
		{"cpf", "CPF", in.CPF, repo.ExistsByCPF},
		{"phone", "Phone", in.Phone, repo.ExistsByPhone},
	}

	for _, c := range checks {
		taken, err := c.exists(ctx, c.value, excludeID)
		if err != nil {
			return fmt.Errorf("checking %s uniqueness: %w", c.field, err)
		}
		if taken {
			return apperror.AlreadyRegistered(c.field, c.label)
		}
	}
	return nil
}
