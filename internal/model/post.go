package model

import "time"

// Post belongs to exactly one author. Images are written with the post in a
// single transaction and never added afterwards.
type Post struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PostImage is a stored file reference attached to a post.
type PostImage struct {
	ID       int64  `json:"-"`
	PostID   int64  `json:"-"`
	ImageURL string `json:"imageUrl"`
}

// Like is unique per (user, post). Unliking sets Status to false; the row stays.
type Like struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"userId"`
	PostID int64 `json:"postId"`
	Status bool  `json:"status"`
}

// Comment is append-only. IDs are monotonic, so ordering by ID is ordering
// by insertion.
type Comment struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	PostID    int64     `json:"postId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}
