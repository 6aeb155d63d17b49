package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/checkfit/internal/apperror"
	"github.com/sakif/checkfit/internal/model"
	"github.com/sakif/checkfit/internal/repository"
)

var _ repository.ActivityRepository = (*DB)(nil)

const activityColumns = `id, description, start_time, finish_time, limit_people`

func scanActivity(row rowScanner) (*model.Activity, error) {
	var (
		a             model.Activity
		start, finish time.Time
	)
	if err := row.Scan(&a.ID, &a.Description, &start, &finish, &a.LimitPeople); err != nil {
		return nil, err
	}
	a.StartTime = model.NewDateTime(start)
	a.FinishTime = model.NewDateTime(finish)
	return &a, nil
}

// CreateActivity inserts a new activity and sets its ID.
func (db *DB) CreateActivity(ctx context.Context, activity *model.Activity) error {
	activity.ID = xid.New().String()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO activities (`+activityColumns+`) VALUES (?, ?, ?, ?, ?)`,
		activity.ID,
		activity.Description,
		utc(activity.StartTime.Time),
		utc(activity.FinishTime.Time),
		activity.LimitPeople,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting activity: %w", err)
	}
	return nil
}

// GetActivityByID returns apperror.ErrNotFound if the activity does not exist.
func (db *DB) GetActivityByID(ctx context.Context, id string) (*model.Activity, error) {
	a, err := scanActivity(db.conn.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("activity", id)
		}
		return nil, fmt.Errorf("sqlite: getting activity %s: %w", id, err)
	}
	return a, nil
}

// ListActivities returns every activity ordered by start time.
func (db *DB) ListActivities(ctx context.Context) ([]model.Activity, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+activityColumns+` FROM activities ORDER BY start_time, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing activities: %w", err)
	}
	defer rows.Close()

	activities := []model.Activity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning activity row: %w", err)
		}
		activities = append(activities, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating activity rows: %w", err)
	}
	return activities, nil
}

// UpdateActivity replaces every field of an existing activity.
func (db *DB) UpdateActivity(ctx context.Context, activity *model.Activity) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE activities
		 SET description = ?, start_time = ?, finish_time = ?, limit_people = ?
		 WHERE id = ?`,
		activity.Description,
		utc(activity.StartTime.Time),
		utc(activity.FinishTime.Time),
		activity.LimitPeople,
		activity.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating activity %s: %w", activity.ID, err)
	}
	return expectOneRow(result, "activity", activity.ID)
}

// DeleteActivity removes an activity. Check-ins that reference it are kept.
func (db *DB) DeleteActivity(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM activities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting activity %s: %w", id, err)
	}
	return expectOneRow(result, "activity", id)
}
