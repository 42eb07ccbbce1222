package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/socialgraph/internal/apperror"
	"github.com/sakif/socialgraph/internal/model"
)

const postColumns = `id, user_id, title, description, created_at`

func scanPost(row rowScanner) (*model.Post, error) {
	var p model.Post
	if err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Description, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (q *queries) CreatePost(ctx context.Context, p *model.Post) error {
	p.CreatedAt = time.Now().UTC()

	res, err := q.db.ExecContext(ctx,
		`INSERT INTO posts (user_id, title, description, created_at) VALUES (?, ?, ?, ?)`,
		p.UserID, p.Title, p.Description, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting post for user %d: %w", p.UserID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new post id: %w", err)
	}
	p.ID = id
	return nil
}

func (q *queries) AddPostImages(ctx context.Context, postID int64, imageURLs []string) error {
	for _, url := range imageURLs {
		_, err := q.db.ExecContext(ctx,
			`INSERT INTO post_images (post_id, image_url) VALUES (?, ?)`, postID, url,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting image for post %d: %w", postID, err)
		}
	}
	return nil
}

func (q *queries) GetPostByID(ctx context.Context, id int64) (*model.Post, error) {
	p, err := scanPost(q.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: getting post %d: %w", id, err)
	}
	return p, nil
}

func (q *queries) ListPostsByUser(ctx context.Context, userID int64) ([]model.Post, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE user_id = ? ORDER BY id DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts of user %d: %w", userID, err)
	}
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning post: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}
	return posts, nil
}

func (q *queries) CountPostsByUser(ctx context.Context, userID int64) (int, error) {
	return q.count(ctx, `SELECT COUNT(*) FROM posts WHERE user_id = ?`, userID)
}

// ListPostImages groups images by post, each group in upload order.
func (q *queries) ListPostImages(ctx context.Context, postIDs []int64) (map[int64][]model.PostImage, error) {
	images := make(map[int64][]model.PostImage, len(postIDs))
	if len(postIDs) == 0 {
		return images, nil
	}

	marks, args := inClause(postIDs)
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, post_id, image_url FROM post_images
		 WHERE post_id IN (`+marks+`)
		 ORDER BY id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing post images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var img model.PostImage
		if err := rows.Scan(&img.ID, &img.PostID, &img.ImageURL); err != nil {
			return nil, fmt.Errorf("sqlite: scanning post image: %w", err)
		}
		images[img.PostID] = append(images[img.PostID], img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating post images: %w", err)
	}
	return images, nil
}
