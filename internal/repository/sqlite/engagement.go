package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/socialgraph/internal/apperror"
	"github.com/sakif/socialgraph/internal/model"
	"github.com/sakif/socialgraph/internal/repository"
)

// FindOrCreateLike follows the same insert-then-reread shape as
// FindOrCreateFollow, keyed on UNIQUE(user_id, post_id).
func (q *queries) FindOrCreateLike(ctx context.Context, userID, postID int64, status bool) (*model.Like, repository.Outcome, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO likes (user_id, post_id, status) VALUES (?, ?, ?)`,
		userID, postID, status,
	)
	if err == nil {
		id, err := res.LastInsertId()
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: reading new like id: %w", err)
		}
		return &model.Like{ID: id, UserID: userID, PostID: postID, Status: status}, repository.Created, nil
	}
	if !isUniqueViolation(err) {
		return nil, 0, fmt.Errorf("sqlite: inserting like user=%d post=%d: %w", userID, postID, err)
	}

	var l model.Like
	err = q.db.QueryRowContext(ctx,
		`SELECT id, user_id, post_id, status FROM likes WHERE user_id = ? AND post_id = ?`,
		userID, postID,
	).Scan(&l.ID, &l.UserID, &l.PostID, &l.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, apperror.Conflict("like", fmt.Sprintf("user=%d post=%d", userID, postID))
		}
		return nil, 0, fmt.Errorf("sqlite: reading like user=%d post=%d: %w", userID, postID, err)
	}
	return &l, repository.AlreadyExisted, nil
}

func (q *queries) UpdateLikeStatus(ctx context.Context, id int64, status bool) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE likes SET status = ? WHERE id = ?`, status, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating like %d: %w", id, err)
	}
	return requireAffected(res, "like", id)
}

func (q *queries) CountActiveLikes(ctx context.Context, postID int64) (int, error) {
	return q.count(ctx, `SELECT COUNT(*) FROM likes WHERE post_id = ? AND status = 1`, postID)
}

func (q *queries) ListActiveLikes(ctx context.Context, postIDs []int64) (map[int64][]model.Like, error) {
	likes := make(map[int64][]model.Like, len(postIDs))
	if len(postIDs) == 0 {
		return likes, nil
	}

	marks, args := inClause(postIDs)
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, user_id, post_id, status FROM likes
		 WHERE status = 1 AND post_id IN (`+marks+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing likes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l model.Like
		if err := rows.Scan(&l.ID, &l.UserID, &l.PostID, &l.Status); err != nil {
			return nil, fmt.Errorf("sqlite: scanning like: %w", err)
		}
		likes[l.PostID] = append(likes[l.PostID], l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating likes: %w", err)
	}
	return likes, nil
}

func (q *queries) CreateComment(ctx context.Context, c *model.Comment) error {
	c.CreatedAt = time.Now().UTC()

	res, err := q.db.ExecContext(ctx,
		`INSERT INTO comments (user_id, post_id, text, created_at) VALUES (?, ?, ?, ?)`,
		c.UserID, c.PostID, c.Text, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting comment on post %d: %w", c.PostID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new comment id: %w", err)
	}
	c.ID = id
	return nil
}

// ListComments orders by id, which is monotonic, so timestamp ties cannot
// reorder comments.
func (q *queries) ListComments(ctx context.Context, postID int64) ([]model.Comment, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, user_id, post_id, text, created_at FROM comments
		 WHERE post_id = ?
		 ORDER BY id DESC`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments of post %d: %w", postID, err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.UserID, &c.PostID, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}
	return comments, nil
}

func (q *queries) CountComments(ctx context.Context, postIDs []int64) (map[int64]int, error) {
	counts := make(map[int64]int, len(postIDs))
	if len(postIDs) == 0 {
		return counts, nil
	}

	marks, args := inClause(postIDs)
	rows, err := q.db.QueryContext(ctx,
		`SELECT post_id, COUNT(*) FROM comments
		 WHERE post_id IN (`+marks+`)
		 GROUP BY post_id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: counting comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment count: %w", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comment counts: %w", err)
	}
	return counts, nil
}
