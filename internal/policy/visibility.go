// Package policy decides who may read whose content.
//
// The functions here are pure: callers look up the owner's privacy flag and
// the viewer->owner follow edge, then ask the policy. Keeping I/O out of this
// package lets the same rule gate single-post reads (which fail with
// Forbidden) and aggregate listings (which return a locked signal).
package policy

import "github.com/sakif/socialgraph/internal/model"

// CanView reports whether viewerID may read content owned by ownerID.
//
//   - owners always see their own content
//   - public accounts are visible to everyone
//   - private accounts are visible only through a followed edge
//
// status is the viewer->owner edge state; pass StatusUnfollowed when no edge exists.
func CanView(viewerID, ownerID int64, ownerIsPrivate bool, status model.FollowStatus) bool {
	if viewerID == ownerID {
		return true
	}
	if !ownerIsPrivate {
		return true
	}
	return status == model.StatusFollowed
}

// FollowStatusOf is the display status of an edge; nil means no edge.
func FollowStatusOf(edge *model.FollowEdge) model.FollowStatus {
	if edge == nil || !edge.Status.Valid() {
		return model.StatusUnfollowed
	}
	return edge.Status
}
