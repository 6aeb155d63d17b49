// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take repository interfaces, never *sqlite.DB, so their tests run
// against the in-memory fakes in fakes_test.go.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/checkfit/internal/apperror"
	"github.com/sakif/checkfit/internal/model"
	"github.com/sakif/checkfit/internal/repository"
)

const MaxDescriptionLength = 200

// ActivityInput is what a client supplies to create or replace an activity.
type ActivityInput struct {
	Description string
	StartTime   model.DateTime
	FinishTime  model.DateTime
	LimitPeople int
}

func (in *ActivityInput) validate() error {
	in.Description = strings.TrimSpace(in.Description)

	if in.Description == "" {
		return apperror.ValidationFailed("description", "description is required")
	}
	if len(in.Description) > MaxDescriptionLength {
		return apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}
	if in.StartTime.IsZero() {
		return apperror.ValidationFailed("startTime", "startTime is required")
	}
	if in.FinishTime.IsZero() {
		return apperror.ValidationFailed("finishTime", "finishTime is required")
	}
	if !in.FinishTime.After(in.StartTime.Time) {
		return apperror.ValidationFailed("finishTime", "finishTime must be after startTime")
	}
	if in.LimitPeople < 1 {
		return apperror.ValidationFailed("limitPeople", "limitPeople must be at least 1")
	}
	return nil
}

// ActivityService handles scheduling of gym activities.
type ActivityService struct {
	activities repository.ActivityRepository
	checkins   repository.CheckinRepository
	logger     *slog.Logger
}

func NewActivityService(
	activities repository.ActivityRepository,
	checkins repository.CheckinRepository,
	logger *slog.Logger,
) *ActivityService {
	return &ActivityService{
		activities: activities,
		checkins:   checkins,
		logger:     logger,
	}
}

func (s *ActivityService) Create(ctx context.Context, in ActivityInput) (*model.Activity, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	activity := &model.Activity{
		Description: in.Description,
		StartTime:   in.StartTime,
		FinishTime:  in.FinishTime,
		LimitPeople: in.LimitPeople,
	}
	if err := s.activities.CreateActivity(ctx, activity); err != nil {
		s.logger.Error("failed to create activity",
			slog.String("description", in.Description),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating activity: %w", err)
	}

	s.logger.Info("activity created",
		slog.String("id", activity.ID),
		slog.String("description", activity.Description),
		slog.Int("limitPeople", activity.LimitPeople),
	)
	return activity, nil
}

func (s *ActivityService) Get(ctx context.Context, id string) (*model.Activity, error) {
	activity, err := s.activities.GetActivityByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting activity: %w", err)
	}
	return activity, nil
}

func (s *ActivityService) List(ctx context.Context) ([]model.Activity, error) {
	activities, err := s.activities.ListActivities(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}
	return activities, nil
}

// Update replaces every field of activity id. Lowering limitPeople below the
// current check-in count is allowed; availability then reports zero slots.
func (s *ActivityService) Update(ctx context.Context, id string, in ActivityInput) (*model.Activity, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	activity := &model.Activity{
		ID:          id,
		Description: in.Description,
		StartTime:   in.StartTime,
		FinishTime:  in.FinishTime,
		LimitPeople: in.LimitPeople,
	}
	if err := s.activities.UpdateActivity(ctx, activity); err != nil {
		return nil, fmt.Errorf("updating activity: %w", err)
	}

	s.logger.Info("activity updated", slog.String("id", id))
	return activity, nil
}

// Delete removes activity id. Deleting an activity that does not exist is
// not an error. Check-ins that reference it are kept.
func (s *ActivityService) Delete(ctx context.Context, id string) error {
	err := s.activities.DeleteActivity(ctx, id)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("deleting activity: %w", err)
	}

	s.logger.Info("activity deleted", slog.String("id", id))
	return nil
}

// Availability reports how many slots of activity id are still free.
func (s *ActivityService) Availability(ctx context.Context, id string) (*model.Availability, error) {
	activity, err := s.activities.GetActivityByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting activity: %w", err)
	}

	count, err := s.checkins.CountByActivity(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("counting checkins for activity %s: %w", id, err)
	}

	availability := model.NewAvailability(activity, count)
	return &availability, nil
}
