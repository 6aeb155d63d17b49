package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/checkfit/internal/apperror"
	"github.com/sakif/checkfit/internal/model"
	"github.com/sakif/checkfit/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, name, email, phone, cpf, date_birth, password_hash, created_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows, so one scan
// function serves single-row and multi-row queries.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u         model.User
		dateBirth sql.NullString
	)
	if err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Phone,
		&u.CPF,
		&dateBirth,
		&u.PasswordHash,
		&u.CreatedAt,
	); err != nil {
		return nil, err
	}
	if dateBirth.Valid && dateBirth.String != "" {
		d, err := model.ParseDate(dateBirth.String)
		if err != nil {
			return nil, fmt.Errorf("decoding date_birth of user %s: %w", u.ID, err)
		}
		u.DateBirth = &d
	}
	return &u, nil
}

func dateBirthValue(d *model.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

// CreateUser inserts a new user, filling in ID and CreatedAt (unless the
// caller already set CreatedAt).
//
// A UNIQUE violation on email, phone or CPF is reported as
// apperror.AlreadyRegistered for that field.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.Phone,
		user.CPF,
		dateBirthValue(user.DateBirth),
		user.PasswordHash,
		utc(user.CreatedAt),
	)
	if err != nil {
		if conflict := uniqueViolation(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}

	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail is the login and token-subject lookup.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email %s: %w", email, err)
	}
	return u, nil
}

// ListUsers returns all users, oldest first.
func (db *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating user rows: %w", err)
	}
	return users, nil
}

// UpdateUser replaces every mutable field of an existing user.
// CreatedAt is never changed.
func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET name = ?, email = ?, phone = ?, cpf = ?, date_birth = ?, password_hash = ?
		 WHERE id = ?`,
		user.Name,
		user.Email,
		user.Phone,
		user.CPF,
		dateBirthValue(user.DateBirth),
		user.PasswordHash,
		user.ID,
	)
	if err != nil {
		if conflict := uniqueViolation(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}
	return expectOneRow(result, "user", user.ID)
}

// DeleteUser removes a user. Their check-ins are left untouched.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}
	return expectOneRow(result, "user", id)
}

func (db *DB) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	return db.userExists(ctx, "email", email, excludeID)
}

func (db *DB) ExistsByPhone(ctx context.Context, phone, excludeID string) (bool, error) {
	return db.userExists(ctx, "phone", phone, excludeID)
}

func (db *DB) ExistsByCPF(ctx context.Context, cpf, excludeID string) (bool, error) {
	return db.userExists(ctx, "cpf", cpf, excludeID)
}

// userExists backs the ExistsBy* methods. column is always one of our own
// constants, never user input, so building the SQL with it is safe.
func (db *DB) userExists(ctx context.Context, column, value, excludeID string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE `+column+` = ? AND id <> ?)`,
		value, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking user %s: %w", column, err)
	}
	return exists, nil
}

// uniqueViolation translates a SQLite UNIQUE constraint failure on the users
// table into the matching AlreadyRegistered error. It returns nil for any
// other error.
//
// SQLite reports the offending column in the message, e.g.
// "UNIQUE constraint failed: users.cpf".
func uniqueViolation(err error) error {
	var sqliteErr *moderncsqlite.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return nil
	}
	msg := sqliteErr.Error()
	switch {
	case strings.Contains(msg, "users.email"):
		return apperror.AlreadyRegistered("email", "Email")
	case strings.Contains(msg, "users.cpf"):
		return apperror.AlreadyRegistered("cpf", "CPF")
	case strings.Contains(msg, "users.phone"):
		return apperror.AlreadyRegistered("phone", "Phone")
	}
	return apperror.Conflict("user", "")
}

// expectOneRow turns "0 rows affected" into apperror.NotFound.
func expectOneRow(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected for %s %s: %w", resource, id, err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
