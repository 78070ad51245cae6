package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, username, first_name, last_name, password_hash, avatar, github_id, created_at`

// CreateUser inserts a new account and fills in ID and CreatedAt.
//
// A duplicate email or username comes back as a validation error on that
// field, so the handler can answer 400 with the field name.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.CreatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (email, username, first_name, last_name, password_hash, avatar, github_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Email,
		user.Username,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.Avatar,
		user.GitHubID,
		user.CreatedAt,
	)
	if err != nil {
		if field, ok := uniqueViolation(err); ok {
			return apperror.ValidationFailed(field, fmt.Sprintf("A user with that %s already exists.", field))
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Email, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new user id: %w", err)
	}
	user.ID = id
	return nil
}

// GetUserByID retrieves a user by id.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := db.conn.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return &u, nil
}

// GetUserByEmail is used by token login. Email comparison is exact; the
// service lower-cases addresses before they reach storage.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := db.conn.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return &u, nil
}

// ListUsers returns one page of users ordered by id, plus the total count.
func (db *DB) ListUsers(ctx context.Context, opts repository.ListOptions) ([]model.User, int, error) {
	limit, offset := clampList(opts)

	var total int
	if err := db.conn.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting users: %w", err)
	}

	users := []model.User{}
	err := db.conn.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users ORDER BY id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing users: %w", err)
	}
	return users, total, nil
}

func (db *DB) UpdatePassword(ctx context.Context, id int64, hash string) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
	if err != nil {
		return fmt.Errorf("sqlite: updating password for user %d: %w", id, err)
	}
	return expectOneRow(res, "user", id)
}

// SetAvatar stores the avatar URL, or clears it when avatar is nil.
func (db *DB) SetAvatar(ctx context.Context, id int64, avatar *string) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE users SET avatar = ? WHERE id = ?`, avatar, id)
	if err != nil {
		return fmt.Errorf("sqlite: updating avatar for user %d: %w", id, err)
	}
	return expectOneRow(res, "user", id)
}

// UpsertGitHubUser resolves a GitHub sign-in to a local account.
//
// Lookup order:
//  1. a user already linked to this github_id is returned unchanged
//  2. a user with the same email gets github_id attached
//  3. otherwise a new password-less user is inserted
//
// On return *user holds the stored row.
func (db *DB) UpsertGitHubUser(ctx context.Context, user *model.User) error {
	if user.GitHubID == nil {
		return apperror.ValidationFailed("github_id", "GitHub id is required.")
	}

	var existing model.User
	err := db.conn.GetContext(ctx, &existing,
		`SELECT `+userColumns+` FROM users WHERE github_id = ?`, *user.GitHubID)
	switch {
	case err == nil:
		*user = existing
		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", *user.GitHubID, err)
	}

	if user.Email != "" {
		err = db.conn.GetContext(ctx, &existing,
			`SELECT `+userColumns+` FROM users WHERE email = ?`, user.Email)
		switch {
		case err == nil:
			_, err = db.conn.ExecContext(ctx,
				`UPDATE users SET github_id = ? WHERE id = ?`, *user.GitHubID, existing.ID)
			if err != nil {
				return fmt.Errorf("sqlite: linking github_id to user %d: %w", existing.ID, err)
			}
			existing.GitHubID = user.GitHubID
			*user = existing
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("sqlite: looking up user by email: %w", err)
		}
	}

	return db.CreateUser(ctx, user)
}

// uniqueViolation reports whether err is a UNIQUE constraint failure and,
// if so, the offending column ("UNIQUE constraint failed: users.email").
func uniqueViolation(err error) (string, bool) {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return "", false
	}
	msg := se.Error()
	code := se.Code()
	if code != sqlite3.SQLITE_CONSTRAINT_UNIQUE &&
		!(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(msg, "UNIQUE")) {
		return "", false
	}
	i := strings.LastIndex(msg, ".")
	if i < 0 || i == len(msg)-1 {
		return "", true
	}
	field := msg[i+1:]
	if j := strings.IndexAny(field, " ,)"); j >= 0 {
		field = field[:j]
	}
	return field, true
}

func expectOneRow(res sql.Result, resource string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: reading rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, strconv.FormatInt(id, 10))
	}
	return nil
}
