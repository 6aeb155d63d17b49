// Package repository declares the storage contracts the services depend on.
// internal/repository/sqlite provides the implementation; service tests use
// in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/sakif/checkfit/internal/model"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	DeleteUser(ctx context.Context, id string) error

	// ExistsBy* answer uniqueness questions. excludeID lets an update ignore
	// the row being updated; pass "" on create.
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	ExistsByPhone(ctx context.Context, phone, excludeID string) (bool, error)
	ExistsByCPF(ctx context.Context, cpf, excludeID string) (bool, error)
}

type ActivityRepository interface {
	CreateActivity(ctx context.Context, activity *model.Activity) error
	GetActivityByID(ctx context.Context, id string) (*model.Activity, error)
	ListActivities(ctx context.Context) ([]model.Activity, error)
	UpdateActivity(ctx context.Context, activity *model.Activity) error
	DeleteActivity(ctx context.Context, id string) error
}

type CheckinRepository interface {
	CreateCheckin(ctx context.Context, checkin *model.Checkin) error
	GetCheckinByID(ctx context.Context, id string) (*model.Checkin, error)
	ListCheckins(ctx context.Context) ([]model.Checkin, error)
	UpdateCheckinTime(ctx context.Context, id string, at time.Time) error
	DeleteCheckin(ctx context.Context, id string) error

	CountByActivity(ctx context.Context, activityID string) (int, error)
	ExistsByUserAndActivity(ctx context.Context, userID, activityID string) (bool, error)
	// ExistsByUserBetween reports a check-in by userID with from <= time < to.
	ExistsByUserBetween(ctx context.Context, userID string, from, to time.Time) (bool, error)
	// HistoryByUser returns the user's check-ins joined with user and
	// activity data, most recent first.
	HistoryByUser(ctx context.Context, userID string) ([]model.CheckinView, error)
}
