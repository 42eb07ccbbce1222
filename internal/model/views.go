package model

import "time"

// FollowResult is returned by a follow toggle.
type FollowResult struct {
	Status     FollowStatus `json:"status"`
	TargetUser AccountUser  `json:"targetUser"`
}

// RequestResult is returned when a pending request is accepted or declined.
type RequestResult struct {
	Status      FollowStatus `json:"status"`
	FollowerID  int64        `json:"followerId"`
	FollowingID int64        `json:"followingId"`
}

// FollowRequest is one entry of the requests inbox. ID is the edge id that
// accept/decline expects.
type FollowRequest struct {
	ID          int64        `json:"id"`
	FollowerID  int64        `json:"followerId"`
	FollowingID int64        `json:"followingId"`
	Status      FollowStatus `json:"status"`
	Sender      PublicUser   `json:"sender"`
}

// GraphListing is a followers/followings list. When Locked is true the
// viewer may not see the owner's graph and Users is empty.
type GraphListing struct {
	Locked bool         `json:"locked"`
	Users  []PublicUser `json:"users"`
}

// ProfileCounts are derived from followed edges and posts.
type ProfileCounts struct {
	Followers  int `json:"followers"`
	Followings int `json:"followings"`
	Posts      int `json:"posts"`
}

// Profile is another user's account page as seen by the viewer.
type Profile struct {
	PublicUser
	IsPrivate    bool          `json:"isPrivate"`
	Counts       ProfileCounts `json:"counts"`
	FollowStatus FollowStatus  `json:"followStatus"`
}

// LikeResult is returned by a like toggle.
type LikeResult struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likesCount"`
}

// CommentView is a comment with its author projected at read time.
type CommentView struct {
	ID        int64      `json:"id"`
	Text      string     `json:"text"`
	UserID    int64      `json:"userId"`
	PostID    int64      `json:"postId"`
	CreatedAt time.Time  `json:"createdAt"`
	Author    PublicUser `json:"author"`
}

// PostSummary is a post in a listing.
type PostSummary struct {
	ID            int64       `json:"id"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Images        []PostImage `json:"images"`
	Author        PublicUser  `json:"author"`
	Liked         bool        `json:"liked"`
	LikesCount    int         `json:"likesCount"`
	CommentsCount int         `json:"commentsCount"`
}

// PostDetail is the fully denormalized single-post view.
type PostDetail struct {
	PostSummary
	Comments []CommentView `json:"comments"`
}

// PostListing is a user's posts. Locked mirrors GraphListing.
type PostListing struct {
	Locked bool          `json:"locked"`
	Posts  []PostSummary `json:"posts"`
}

// RecommendedUser is a candidate annotated with the viewer's follow status.
type RecommendedUser struct {
	PublicUser
	IsPrivate    bool         `json:"isPrivate"`
	FollowStatus FollowStatus `json:"followStatus"`
}

// Recommendation is the recommendation response.
type Recommendation struct {
	Users []RecommendedUser `json:"users"`
	Count int               `json:"count"`
}
