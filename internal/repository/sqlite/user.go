package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/socialgraph/internal/apperror"
	"github.com/sakif/socialgraph/internal/model"
)

var errUsernameTaken = &apperror.AppError{
	Err:     apperror.ErrConflict,
	Message: "username already taken",
	Field:   "username",
}

const userColumns = `id, username, password, name, surname, is_private, picture_url, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.Name,
		&u.Surname,
		&u.IsPrivate,
		&u.PictureURL,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new account. ID and CreatedAt are assigned here.
func (q *queries) CreateUser(ctx context.Context, u *model.User) error {
	u.CreatedAt = time.Now().UTC()

	res, err := q.db.ExecContext(ctx,
		`INSERT INTO users (username, password, name, surname, is_private, picture_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Username,
		u.PasswordHash,
		u.Name,
		u.Surname,
		u.IsPrivate,
		u.PictureURL,
		u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errUsernameTaken
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", u.Username, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new user id: %w", err)
	}
	u.ID = id
	return nil
}

// GetUserByID returns apperror.ErrNotFound if no user has that ID.
func (q *queries) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(q.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return u, nil
}

func (q *queries) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(q.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqlite: getting user %q: %w", username, err)
	}
	return u, nil
}

func (q *queries) GetUsersByIDs(ctx context.Context, ids []int64) (map[int64]*model.User, error) {
	users := make(map[int64]*model.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	marks, args := inClause(ids)
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id IN (`+marks+`)`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: batch loading users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user: %w", err)
		}
		users[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, nil
}

// UpdateUsername yields apperror.ErrConflict when the name is taken.
func (q *queries) UpdateUsername(ctx context.Context, id int64, username string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE users SET username = ? WHERE id = ?`, username, id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errUsernameTaken
		}
		return fmt.Errorf("sqlite: updating username of user %d: %w", id, err)
	}
	return requireAffected(res, "user", id)
}

func (q *queries) UpdatePrivacy(ctx context.Context, id int64, isPrivate bool) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE users SET is_private = ? WHERE id = ?`, isPrivate, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating privacy of user %d: %w", id, err)
	}
	return requireAffected(res, "user", id)
}

func (q *queries) UpdatePicture(ctx context.Context, id int64, pictureURL string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE users SET picture_url = ? WHERE id = ?`, pictureURL, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating picture of user %d: %w", id, err)
	}
	return requireAffected(res, "user", id)
}

// SearchUsersByPrefix matches usernames by prefix. Display names are not
// searched.
// LIKE wildcards in the prefix are matched literally.
func (q *queries) SearchUsersByPrefix(ctx context.Context, prefix string, limit int) ([]model.User, error) {
	pattern := escapeLike(prefix) + "%"
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE username LIKE ? ESCAPE '\'
		 ORDER BY username ASC
		 LIMIT ?`,
		pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching users by %q: %w", prefix, err)
	}
	return collectUsers(rows)
}

func (q *queries) ListNewestUsers(ctx context.Context, excludeID int64, limit int) ([]model.User, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE id <> ?
		 ORDER BY id DESC
		 LIMIT ?`,
		excludeID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing newest users: %w", err)
	}
	return collectUsers(rows)
}

func collectUsers(rows *sql.Rows) ([]model.User, error) {
	defer rows.Close()

	// Non-nil so an empty result encodes as [] rather than null.
	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// requireAffected turns a zero-row UPDATE into apperror.ErrNotFound.
func requireAffected(res sql.Result, resource string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
