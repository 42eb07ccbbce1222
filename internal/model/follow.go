package model

// FollowStatus is the state of a directed follow edge, seen from the follower.
type FollowStatus string

const (
	// StatusUnfollowed is the initial state; a missing edge is equivalent to it.
	StatusUnfollowed FollowStatus = "unfollowed"
	// StatusRequested is a pending request to a private account.
	StatusRequested FollowStatus = "requested"
	// StatusFollowed is an established follow.
	StatusFollowed FollowStatus = "followed"
)

// Valid reports whether s is one of the three known states.
func (s FollowStatus) Valid() bool {
	switch s {
	case StatusUnfollowed, StatusRequested, StatusFollowed:
		return true
	}
	return false
}

// Engaged reports whether s is one of the two non-unfollowed states.
func (s FollowStatus) Engaged() bool {
	return s == StatusRequested || s == StatusFollowed
}

// FollowEdge is the single row kept per ordered (follower, following) pair.
// Rows are never deleted; unfollowing is a status change.
type FollowEdge struct {
	ID          int64        `json:"id"`
	FollowerID  int64        `json:"followerId"`
	FollowingID int64        `json:"followingId"`
	Status      FollowStatus `json:"status"`
}

// EngagedStatusFor is the state a follower enters when engaging with a target:
// a request for a private account, a direct follow otherwise.
func EngagedStatusFor(target *User) FollowStatus {
	if target.IsPrivate {
		return StatusRequested
	}
	return StatusFollowed
}

// NextFollowStatus is the toggle transition table applied to an existing edge.
// Privacy only matters when moving into engagement.
//
//	unfollowed -> requested | followed
//	requested  -> unfollowed
//	followed   -> unfollowed
func NextFollowStatus(current FollowStatus, target *User) FollowStatus {
	if current.Engaged() {
		return StatusUnfollowed
	}
	return EngagedStatusFor(target)
}
