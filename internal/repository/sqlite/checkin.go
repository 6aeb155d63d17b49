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

var _ repository.CheckinRepository = (*DB)(nil)

const checkinColumns = `id, user_id, activity_id, checkin_time`

func scanCheckin(row rowScanner) (*model.Checkin, error) {
	var (
		c  model.Checkin
		at time.Time
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.ActivityID, &at); err != nil {
		return nil, err
	}
	c.CheckinTime = model.NewDateTime(at)
	return &c, nil
}

// CreateCheckin inserts a check-in and sets its ID. A zero CheckinTime is
// replaced with the current time.
//
// No rule is checked here: capacity, duplicates and the daily limit belong
// to the admission engine in the service layer.
func (db *DB) CreateCheckin(ctx context.Context, checkin *model.Checkin) error {
	checkin.ID = xid.New().String()
	if checkin.CheckinTime.IsZero() {
		checkin.CheckinTime = model.NewDateTime(time.Now())
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO checkins (`+checkinColumns+`) VALUES (?, ?, ?, ?)`,
		checkin.ID,
		checkin.UserID,
		checkin.ActivityID,
		utc(checkin.CheckinTime.Time),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting checkin (user=%s activity=%s): %w",
			checkin.UserID, checkin.ActivityID, err)
	}
	return nil
}

func (db *DB) GetCheckinByID(ctx context.Context, id string) (*model.Checkin, error) {
	c, err := scanCheckin(db.conn.QueryRowContext(ctx,
		`SELECT `+checkinColumns+` FROM checkins WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("checkin", id)
		}
		return nil, fmt.Errorf("sqlite: getting checkin %s: %w", id, err)
	}
	return c, nil
}

func (db *DB) ListCheckins(ctx context.Context) ([]model.Checkin, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+checkinColumns+` FROM checkins ORDER BY checkin_time DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing checkins: %w", err)
	}
	defer rows.Close()

	checkins := []model.Checkin{}
	for rows.Next() {
		c, err := scanCheckin(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning checkin row: %w", err)
		}
		checkins = append(checkins, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating checkin rows: %w", err)
	}
	return checkins, nil
}

// UpdateCheckinTime moves an existing check-in to a new time.
func (db *DB) UpdateCheckinTime(ctx context.Context, id string, at time.Time) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE checkins SET checkin_time = ? WHERE id = ?`, utc(at), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating checkin %s: %w", id, err)
	}
	return expectOneRow(result, "checkin", id)
}

func (db *DB) DeleteCheckin(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM checkins WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting checkin %s: %w", id, err)
	}
	return expectOneRow(result, "checkin", id)
}

// CountByActivity returns how many check-ins reference the activity.
func (db *DB) CountByActivity(ctx context.Context, activityID string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM checkins WHERE activity_id = ?`, activityID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting checkins for activity %s: %w", activityID, err)
	}
	return n, nil
}

func (db *DB) ExistsByUserAndActivity(ctx context.Context, userID, activityID string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM checkins WHERE user_id = ? AND activity_id = ?)`,
		userID, activityID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking checkin (user=%s activity=%s): %w", userID, activityID, err)
	}
	return exists, nil
}

// ExistsByUserBetween is a half-open range: from <= checkin_time < to.
func (db *DB) ExistsByUserBetween(ctx context.Context, userID string, from, to time.Time) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM checkins
			WHERE user_id = ? AND checkin_time >= ? AND checkin_time < ?
		)`,
		userID, utc(from), utc(to),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking checkins of user %s in range: %w", userID, err)
	}
	return exists, nil
}

// HistoryByUser joins check-ins with their user and activity.
//
// LEFT JOIN on activities: a deleted activity leaves its check-ins behind,
// and those rows still belong in the member's history (with an empty
// description) rather than silently vanishing.
func (db *DB) HistoryByUser(ctx context.Context, userID string) ([]model.CheckinView, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT c.id, u.name, c.activity_id, COALESCE(a.description, ''), c.checkin_time
		 FROM checkins c
		 JOIN users u ON u.id = c.user_id
		 LEFT JOIN activities a ON a.id = c.activity_id
		 WHERE c.user_id = ?
		 ORDER BY c.checkin_time DESC, c.id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading history of user %s: %w", userID, err)
	}
	defer rows.Close()

	history := []model.CheckinView{}
	for rows.Next() {
		var (
			v  model.CheckinView
			at time.Time
		)
		if err := rows.Scan(&v.ID, &v.Name, &v.ActivityID, &v.ActivityDescription, &at); err != nil {
			return nil, fmt.Errorf("sqlite: scanning history row: %w", err)
		}
		v.CheckinTime = model.NewDateTime(at)
		history = append(history, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating history rows: %w", err)
	}
	return history, nil
}
