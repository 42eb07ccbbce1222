// Package repository declares the storage contract of the social graph.
//
// Services depend only on these interfaces. The sqlite package implements
// them; tests may substitute anything else that satisfies Store.
//
// TRANSACTIONS:
// Store.WithinTx runs a function against a transaction-scoped Queries. If the
// function returns an error (or panics) every write made through that Queries
// is rolled back. Services never see *sql.Tx.
package repository

import (
	"context"

	"github.com/sakif/socialgraph/internal/model"
)

// Outcome tells a find-or-create caller which branch was taken.
type Outcome int

const (
	// Created means the row did not exist and was inserted with the defaults.
	Created Outcome = iota + 1
	// AlreadyExisted means a row for the key was found; the defaults were ignored.
	AlreadyExisted
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case AlreadyExisted:
		return "already_existed"
	}
	return "unknown"
}

type UserRepository interface {
	// CreateUser inserts u and fills in its ID and CreatedAt.
	// A taken username yields apperror.ErrConflict.
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	// GetUsersByIDs returns the users that exist; missing ids are simply absent.
	GetUsersByIDs(ctx context.Context, ids []int64) (map[int64]*model.User, error)
	UpdateUsername(ctx context.Context, id int64, username string) error
	UpdatePrivacy(ctx context.Context, id int64, isPrivate bool) error
	UpdatePicture(ctx context.Context, id int64, pictureURL string) error
	SearchUsersByPrefix(ctx context.Context, prefix string, limit int) ([]model.User, error)
	// ListNewestUsers returns users other than excludeID, newest account first.
	ListNewestUsers(ctx context.Context, excludeID int64, limit int) ([]model.User, error)
}

type FollowRepository interface {
	// FindOrCreateFollow returns the edge for (followerID, followingID),
	// inserting it with status when absent.
	FindOrCreateFollow(ctx context.Context, followerID, followingID int64, status model.FollowStatus) (*model.FollowEdge, Outcome, error)
	GetFollowByID(ctx context.Context, id int64) (*model.FollowEdge, error)
	// LookupFollow is a point lookup that returns (nil, nil) when no edge exists.
	LookupFollow(ctx context.Context, followerID, followingID int64) (*model.FollowEdge, error)
	UpdateFollowStatus(ctx context.Context, id int64, status model.FollowStatus) error
	// ListIncomingRequests returns edges addressed to followingID with status requested.
	ListIncomingRequests(ctx context.Context, followingID int64) ([]model.FollowEdge, error)
	ListFollowerIDs(ctx context.Context, userID int64) ([]int64, error)
	ListFollowingIDs(ctx context.Context, userID int64) ([]int64, error)
	CountFollowers(ctx context.Context, userID int64) (int, error)
	CountFollowings(ctx context.Context, userID int64) (int, error)
	// FollowStatusesFrom returns the status of every existing edge from
	// followerID to one of followingIDs.
	FollowStatusesFrom(ctx context.Context, followerID int64, followingIDs []int64) (map[int64]model.FollowStatus, error)
}

type PostRepository interface {
	CreatePost(ctx context.Context, p *model.Post) error
	AddPostImages(ctx context.Context, postID int64, imageURLs []string) error
	GetPostByID(ctx context.Context, id int64) (*model.Post, error)
	// ListPostsByUser returns the user's posts, newest first.
	ListPostsByUser(ctx context.Context, userID int64) ([]model.Post, error)
	CountPostsByUser(ctx context.Context, userID int64) (int, error)
	ListPostImages(ctx context.Context, postIDs []int64) (map[int64][]model.PostImage, error)
}

type LikeRepository interface {
	FindOrCreateLike(ctx context.Context, userID, postID int64, status bool) (*model.Like, Outcome, error)
	UpdateLikeStatus(ctx context.Context, id int64, status bool) error
	// CountActiveLikes counts rows with status=true for the post.
	CountActiveLikes(ctx context.Context, postID int64) (int, error)
	ListActiveLikes(ctx context.Context, postIDs []int64) (map[int64][]model.Like, error)
}

type CommentRepository interface {
	CreateComment(ctx context.Context, c *model.Comment) error
	// ListComments returns the post's comments, newest first.
	ListComments(ctx context.Context, postID int64) ([]model.Comment, error)
	CountComments(ctx context.Context, postIDs []int64) (map[int64]int, error)
}

// Queries is every repository operation, bound either to the connection pool
// or to one transaction.
type Queries interface {
	UserRepository
	FollowRepository
	PostRepository
	LikeRepository
	CommentRepository
}

// Store is Queries on the pool plus the ability to open a transaction.
type Store interface {
	Queries
	WithinTx(ctx context.Context, fn func(q Queries) error) error
}
