package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/checkfit/internal/apperror"
	"github.com/sakif/checkfit/internal/metrics"
	"github.com/sakif/checkfit/internal/model"
	"github.com/sakif/checkfit/internal/repository"
)

// Admission outcomes, as recorded in the checkfit_admissions_total metric.
const (
	OutcomeAdmitted         = "admitted"
	OutcomeActivityNotFound = "activity_not_found"
	OutcomeUserNotFound     = "user_not_found"
	OutcomeError            = "error"
)

// errUserLookup marks failures resolving the caller, so a missing member
// and a missing activity can be told apart in metrics.
var errUserLookup = errors.New("resolving member")

// CheckinService owns the admission engine: the rules deciding whether a
// member may check in to an activity.
//
// SERIALIZATION:
// The rules are a read-then-write sequence (count, look for duplicates,
// insert). Without serialize, two requests for the last slot can both pass
// the count check and both insert. With serialize, the steps from the
// capacity check to the insert run under in-process locks keyed on the
// activity and the member. That is enough for a single instance; several
// instances sharing one database would need the database to arbitrate.
type CheckinService struct {
	users      repository.UserRepository
	activities repository.ActivityRepository
	checkins   repository.CheckinRepository
	recorder   metrics.AdmissionRecorder
	logger     *slog.Logger

	serialize bool
	locks     *keyLocker
}

// CheckinOption configures optional CheckinService behaviour.
type CheckinOption func(*CheckinService)

// WithSerializedAdmission makes capacity, duplicate and daily-limit checks
// atomic with the insert for requests served by this process.
func WithSerializedAdmission(enabled bool) CheckinOption {
	return func(s *CheckinService) { s.serialize = enabled }
}

// WithAdmissionRecorder counts admission outcomes. The default discards them.
func WithAdmissionRecorder(r metrics.AdmissionRecorder) CheckinOption {
	return func(s *CheckinService) { s.recorder = r }
}

func NewCheckinService(
	users repository.UserRepository,
	activities repository.ActivityRepository,
	checkins repository.CheckinRepository,
	logger *slog.Logger,
	opts ...CheckinOption,
) *CheckinService {
	s := &CheckinService{
		users:      users,
		activities: activities,
		checkins:   checkins,
		recorder:   metrics.Nop{},
		logger:     logger,
		locks:      newKeyLocker(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestCheckin admits the member identified by email to activity
// activityID at instant now.
//
// The rules run in this order and the first failure is returned; nothing
// is written on failure:
//
//  1. the activity exists                      → apperror.ErrNotFound
//  2. the member exists                        → apperror.ErrNotFound
//  3. the activity has not finished (finish >= now)           → expired
//  4. check-ins for the activity are below limitPeople        → capacity_exceeded
//  5. the member has no check-in for this activity            → duplicate_checkin
//  6. the member has no check-in today (business zone)        → daily_limit_exceeded
//
// On success the check-in is stored with checkinTime = now and the result
// carries it together with the member's full history, newest first.
func (s *CheckinService) RequestCheckin(ctx context.Context, email, activityID string, now time.Time) (*model.CheckinResult, error) {
	result, err := s.admit(ctx, email, activityID, now)
	s.recorder.RecordAdmission(outcomeOf(err))

	if err != nil {
		s.logger.Info("checkin rejected",
			slog.String("activityID", activityID),
			slog.String("email", email),
			slog.String("outcome", outcomeOf(err)),
		)
		return nil, err
	}

	s.logger.Info("checkin admitted",
		slog.String("checkinID", result.Current.ID),
		slog.String("activityID", activityID),
		slog.String("email", email),
	)
	return result, nil
}

func (s *CheckinService) admit(ctx context.Context, email, activityID string, now time.Time) (*model.CheckinResult, error) {
	activity, err := s.activities.GetActivityByID(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("getting activity: %w", err)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errUserLookup, err)
	}

	if activity.FinishTime.Before(now) {
		return nil, apperror.AdmissionDenied(apperror.ReasonExpired,
			"activity has already finished")
	}

	if s.serialize {
		unlock := s.locks.Lock("activity:"+activity.ID, "user:"+user.ID)
		defer unlock()
	}

	count, err := s.checkins.CountByActivity(ctx, activity.ID)
	if err != nil {
		return nil, fmt.Errorf("counting checkins for activity %s: %w", activity.ID, err)
	}
	if count >= activity.LimitPeople {
		return nil, apperror.AdmissionDenied(apperror.ReasonCapacityExceeded,
			"activity has reached its limit of people")
	}

	dup, err := s.checkins.ExistsByUserAndActivity(ctx, user.ID, activity.ID)
	if err != nil {
		return nil, fmt.Errorf("checking duplicate checkin: %w", err)
	}
	if dup {
		return nil, apperror.AdmissionDenied(apperror.ReasonDuplicateCheckin,
			"user already checked in to this activity")
	}

	dayStart := model.StartOfDay(now)
	today, err := s.checkins.ExistsByUserBetween(ctx, user.ID, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("checking daily checkin: %w", err)
	}
	if today {
		return nil, apperror.AdmissionDenied(apperror.ReasonDailyLimit,
			"user already checked in today")
	}

	checkin := &model.Checkin{
		UserID:      user.ID,
		ActivityID:  activity.ID,
		CheckinTime: model.NewDateTime(now),
	}
	if err := s.checkins.CreateCheckin(ctx, checkin); err != nil {
		return nil, fmt.Errorf("creating checkin: %w", err)
	}

	history, err := s.checkins.HistoryByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("loading checkin history: %w", err)
	}

	return &model.CheckinResult{
		Current: model.CheckinView{
			ID:                  checkin.ID,
			Name:                user.Name,
			ActivityID:          activity.ID,
			ActivityDescription: activity.Description,
			CheckinTime:         checkin.CheckinTime,
		},
		History: history,
	}, nil
}

// outcomeOf names an admission result for metrics and logs.
func outcomeOf(err error) string {
	if err == nil {
		return OutcomeAdmitted
	}
	if reason := apperror.ReasonOf(err); reason != "" {
		return string(reason)
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) && errors.Is(appErr.Err, apperror.ErrNotFound) {
		if errors.Is(err, errUserLookup) {
			return OutcomeUserNotFound
		}
		return OutcomeActivityNotFound
	}
	return OutcomeError
}

func (s *CheckinService) List(ctx context.Context) ([]model.Checkin, error) {
	checkins, err := s.checkins.ListCheckins(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing checkins: %w", err)
	}
	return checkins, nil
}

func (s *CheckinService) Get(ctx context.Context, id string) (*model.Checkin, error) {
	checkin, err := s.checkins.GetCheckinByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting checkin: %w", err)
	}
	return checkin, nil
}

// UpdateTime moves check-in id to a new time. Admission rules are not
// re-checked, so an update can produce two check-ins on one day.
func (s *CheckinService) UpdateTime(ctx context.Context, id string, at model.DateTime) (*model.Checkin, error) {
	if at.IsZero() {
		return nil, apperror.ValidationFailed("checkinTime", "checkinTime is required")
	}

	if err := s.checkins.UpdateCheckinTime(ctx, id, at.Time); err != nil {
		return nil, fmt.Errorf("updating checkin: %w", err)
	}

	s.logger.Info("checkin time updated", slog.String("id", id))
	return s.Get(ctx, id)
}

func (s *CheckinService) Delete(ctx context.Context, id string) error {
	if err := s.checkins.DeleteCheckin(ctx, id); err != nil {
		return fmt.Errorf("deleting checkin: %w", err)
	}
	s.logger.Info("checkin deleted", slog.String("id", id))
	return nil
}

// History returns the check-ins of the member identified by email, newest
// first. A token whose member was deleted yields apperror.ErrNotFound.
func (s *CheckinService) History(ctx context.Context, email string) ([]model.CheckinView, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}

	history, err := s.checkins.HistoryByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("loading checkin history: %w", err)
	}
	return history, nil
}
