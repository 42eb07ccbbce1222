package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/socialgraph/internal/apperror"
	"github.com/sakif/socialgraph/internal/model"
	"github.com/sakif/socialgraph/internal/repository"
)

const followColumns = `id, follower_id, following_id, status`

func scanFollow(row rowScanner) (*model.FollowEdge, error) {
	var e model.FollowEdge
	var status string
	if err := row.Scan(&e.ID, &e.FollowerID, &e.FollowingID, &status); err != nil {
		return nil, err
	}
	e.Status = model.FollowStatus(status)
	return &e, nil
}

// FindOrCreateFollow inserts the edge with the given status, or returns the
// existing one when the pair is already present.
//
// The insert goes first and the UNIQUE(follower_id, following_id) constraint
// decides the race. On a duplicate the row is read back in the same
// transaction. Under _txlock=immediate the colliding row is committed and
// visible, so the Conflict below only fires if it was deleted in between;
// the caller may retry.
func (q *queries) FindOrCreateFollow(ctx context.Context, followerID, followingID int64, status model.FollowStatus) (*model.FollowEdge, repository.Outcome, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO follows (follower_id, following_id, status) VALUES (?, ?, ?)`,
		followerID, followingID, string(status),
	)
	if err == nil {
		id, err := res.LastInsertId()
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: reading new follow id: %w", err)
		}
		return &model.FollowEdge{
			ID:          id,
			FollowerID:  followerID,
			FollowingID: followingID,
			Status:      status,
		}, repository.Created, nil
	}
	if !isUniqueViolation(err) {
		return nil, 0, fmt.Errorf("sqlite: inserting follow %d->%d: %w", followerID, followingID, err)
	}

	edge, err := q.LookupFollow(ctx, followerID, followingID)
	if err != nil {
		return nil, 0, err
	}
	if edge == nil {
		return nil, 0, apperror.Conflict("follow", fmt.Sprintf("%d->%d", followerID, followingID))
	}
	return edge, repository.AlreadyExisted, nil
}

func (q *queries) GetFollowByID(ctx context.Context, id int64) (*model.FollowEdge, error) {
	edge, err := scanFollow(q.db.QueryRowContext(ctx,
		`SELECT `+followColumns+` FROM follows WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("follow request", id)
		}
		return nil, fmt.Errorf("sqlite: getting follow %d: %w", id, err)
	}
	return edge, nil
}

func (q *queries) LookupFollow(ctx context.Context, followerID, followingID int64) (*model.FollowEdge, error) {
	edge, err := scanFollow(q.db.QueryRowContext(ctx,
		`SELECT `+followColumns+` FROM follows WHERE follower_id = ? AND following_id = ?`,
		followerID, followingID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: looking up follow %d->%d: %w", followerID, followingID, err)
	}
	return edge, nil
}

func (q *queries) UpdateFollowStatus(ctx context.Context, id int64, status model.FollowStatus) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE follows SET status = ? WHERE id = ?`, string(status), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating follow %d: %w", id, err)
	}
	return requireAffected(res, "follow request", id)
}

// ListIncomingRequests is ordered oldest request first.
func (q *queries) ListIncomingRequests(ctx context.Context, followingID int64) ([]model.FollowEdge, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+followColumns+` FROM follows
		 WHERE following_id = ? AND status = ?
		 ORDER BY id ASC`,
		followingID, string(model.StatusRequested),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing requests for user %d: %w", followingID, err)
	}
	defer rows.Close()

	edges := []model.FollowEdge{}
	for rows.Next() {
		e, err := scanFollow(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning follow: %w", err)
		}
		edges = append(edges, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating follows: %w", err)
	}
	return edges, nil
}

func (q *queries) ListFollowerIDs(ctx context.Context, userID int64) ([]int64, error) {
	return q.listIDs(ctx,
		`SELECT follower_id FROM follows WHERE following_id = ? AND status = ? ORDER BY id ASC`,
		userID, string(model.StatusFollowed),
	)
}

func (q *queries) ListFollowingIDs(ctx context.Context, userID int64) ([]int64, error) {
	return q.listIDs(ctx,
		`SELECT following_id FROM follows WHERE follower_id = ? AND status = ? ORDER BY id ASC`,
		userID, string(model.StatusFollowed),
	)
}

func (q *queries) CountFollowers(ctx context.Context, userID int64) (int, error) {
	return q.count(ctx,
		`SELECT COUNT(*) FROM follows WHERE following_id = ? AND status = ?`,
		userID, string(model.StatusFollowed),
	)
}

func (q *queries) CountFollowings(ctx context.Context, userID int64) (int, error) {
	return q.count(ctx,
		`SELECT COUNT(*) FROM follows WHERE follower_id = ? AND status = ?`,
		userID, string(model.StatusFollowed),
	)
}

func (q *queries) FollowStatusesFrom(ctx context.Context, followerID int64, followingIDs []int64) (map[int64]model.FollowStatus, error) {
	statuses := make(map[int64]model.FollowStatus, len(followingIDs))
	if len(followingIDs) == 0 {
		return statuses, nil
	}

	marks, args := inClause(followingIDs)
	rows, err := q.db.QueryContext(ctx,
		`SELECT following_id, status FROM follows
		 WHERE follower_id = ? AND following_id IN (`+marks+`)`,
		append([]any{followerID}, args...)...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading follow statuses for user %d: %w", followerID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, fmt.Errorf("sqlite: scanning follow status: %w", err)
		}
		statuses[id] = model.FollowStatus(status)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating follow statuses: %w", err)
	}
	return statuses, nil
}

func (q *queries) listIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating ids: %w", err)
	}
	return ids, nil
}

func (q *queries) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting: %w", err)
	}
	return n, nil
}
