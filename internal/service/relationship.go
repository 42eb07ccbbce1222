package service

import (
	"context"
	"log/slog"

	"github.com/sakif/socialgraph/internal/apperror"
	"github.com/sakif/socialgraph/internal/metrics"
	"github.com/sakif/socialgraph/internal/model"
	"github.com/sakif/socialgraph/internal/policy"
	"github.com/sakif/socialgraph/internal/repository"
)

// Decision is the owner's answer to a pending follow request.
type Decision int

const (
	Accept Decision = iota + 1
	Decline
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case Decline:
		return "decline"
	}
	return "unknown"
}

func (d Decision) status() model.FollowStatus {
	if d == Accept {
		return model.StatusFollowed
	}
	return model.StatusUnfollowed
}

// RelationshipService is the only writer of follow edges.
//
// STATE MACHINE (one row per ordered pair, never deleted):
//
//	unfollowed → requested   (target private)
//	unfollowed → followed    (target public)
//	requested  → followed    (owner accepts)
//	requested  → unfollowed  (owner declines, or follower toggles again)
//	followed   → unfollowed  (follower toggles again)
type RelationshipService struct {
	store   repository.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewRelationshipService(store repository.Store, logger *slog.Logger, m *metrics.Metrics) *RelationshipService {
	return &RelationshipService{
		store:   store,
		logger:  logger,
		metrics: m,
	}
}

// ToggleFollow moves the viewer's edge to target one step around the state
// machine, creating it on first contact.
func (s *RelationshipService) ToggleFollow(ctx context.Context, viewerID, targetID int64) (*model.FollowResult, error) {
	if viewerID == targetID {
		return nil, apperror.InvalidOperation("You cannot follow yourself")
	}

	var result model.FollowResult
	err := s.store.WithinTx(ctx, func(q repository.Queries) error {
		target, err := q.GetUserByID(ctx, targetID)
		if err != nil {
			return err
		}

		edge, outcome, err := q.FindOrCreateFollow(ctx, viewerID, targetID, model.EngagedStatusFor(target))
		if err != nil {
			return err
		}

		if outcome == repository.AlreadyExisted {
			next := model.NextFollowStatus(edge.Status, target)
			if err := q.UpdateFollowStatus(ctx, edge.ID, next); err != nil {
				return err
			}
			edge.Status = next
		}

		result = model.FollowResult{
			Status:     edge.Status,
			TargetUser: model.AccountUserOf(target),
		}
		return nil
	})
	if err != nil {
		return nil, unexpected(s.logger, "toggle follow", err,
			slog.Int64("viewerID", viewerID),
			slog.Int64("targetID", targetID),
		)
	}

	s.metrics.FollowTransition(string(result.Status))
	s.logger.Info("follow toggled",
		slog.Int64("viewerID", viewerID),
		slog.Int64("targetID", targetID),
		slog.String("status", string(result.Status)),
	)
	return &result, nil
}

// RespondToRequest accepts or declines a pending request addressed to the
// viewer. requestID is the follow edge id.
func (s *RelationshipService) RespondToRequest(ctx context.Context, viewerID, requestID int64, decision Decision) (*model.RequestResult, error) {
	if decision != Accept && decision != Decline {
		return nil, apperror.InvalidOperation("unknown decision")
	}

	var result model.RequestResult
	err := s.store.WithinTx(ctx, func(q repository.Queries) error {
		edge, err := q.GetFollowByID(ctx, requestID)
		if err != nil {
			return err
		}
		if edge.FollowingID != viewerID {
			return apperror.Forbidden("You can only respond to requests sent to you")
		}
		if edge.Status != model.StatusRequested {
			return apperror.InvalidState("request", string(model.StatusRequested), string(edge.Status))
		}

		next := decision.status()
		if err := q.UpdateFollowStatus(ctx, edge.ID, next); err != nil {
			return err
		}

		result = model.RequestResult{
			Status:      next,
			FollowerID:  edge.FollowerID,
			FollowingID: edge.FollowingID,
		}
		return nil
	})
	if err != nil {
		return nil, unexpected(s.logger, "respond to request", err,
			slog.Int64("viewerID", viewerID),
			slog.Int64("requestID", requestID),
			slog.String("decision", decision.String()),
		)
	}

	s.metrics.RequestResponse(decision.String())
	s.logger.Info("follow request answered",
		slog.Int64("requestID", requestID),
		slog.String("decision", decision.String()),
	)
	return &result, nil
}

// PendingRequests lists requests addressed to the viewer, oldest first.
func (s *RelationshipService) PendingRequests(ctx context.Context, viewerID int64) ([]model.FollowRequest, error) {
	edges, err := s.store.ListIncomingRequests(ctx, viewerID)
	if err != nil {
		return nil, unexpected(s.logger, "list requests", err, slog.Int64("viewerID", viewerID))
	}

	ids := make([]int64, len(edges))
	for i, e := range edges {
		ids[i] = e.FollowerID
	}
	senders, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, unexpected(s.logger, "list requests", err, slog.Int64("viewerID", viewerID))
	}

	requests := make([]model.FollowRequest, 0, len(edges))
	for _, e := range edges {
		requests = append(requests, model.FollowRequest{
			ID:          e.ID,
			FollowerID:  e.FollowerID,
			FollowingID: e.FollowingID,
			Status:      e.Status,
			Sender:      model.PublicUserOrStub(senders, e.FollowerID),
		})
	}
	return requests, nil
}

// Followers lists who follows owner, or a locked listing when the viewer may
// not see owner's graph.
func (s *RelationshipService) Followers(ctx context.Context, viewerID, ownerID int64) (*model.GraphListing, error) {
	return s.graphListing(ctx, "list followers", viewerID, ownerID, s.store.ListFollowerIDs)
}

// Followings lists who owner follows, gated the same way as Followers.
func (s *RelationshipService) Followings(ctx context.Context, viewerID, ownerID int64) (*model.GraphListing, error) {
	return s.graphListing(ctx, "list followings", viewerID, ownerID, s.store.ListFollowingIDs)
}

func (s *RelationshipService) graphListing(
	ctx context.Context,
	op string,
	viewerID, ownerID int64,
	listIDs func(context.Context, int64) ([]int64, error),
) (*model.GraphListing, error) {
	fail := func(err error) (*model.GraphListing, error) {
		return nil, unexpected(s.logger, op, err,
			slog.Int64("viewerID", viewerID),
			slog.Int64("ownerID", ownerID),
		)
	}

	owner, err := s.store.GetUserByID(ctx, ownerID)
	if err != nil {
		return fail(err)
	}
	status, err := viewerStatus(ctx, s.store, viewerID, ownerID)
	if err != nil {
		return fail(err)
	}
	if !policy.CanView(viewerID, ownerID, owner.IsPrivate, status) {
		return &model.GraphListing{Locked: true, Users: []model.PublicUser{}}, nil
	}

	ids, err := listIDs(ctx, ownerID)
	if err != nil {
		return fail(err)
	}
	users, err := projectUsers(ctx, s.store, ids)
	if err != nil {
		return fail(err)
	}
	return &model.GraphListing{Users: users}, nil
}

// Profile is owner's account page with counts and the viewer's follow status.
func (s *RelationshipService) Profile(ctx context.Context, viewerID, ownerID int64) (*model.Profile, error) {
	fail := func(err error) (*model.Profile, error) {
		return nil, unexpected(s.logger, "get profile", err,
			slog.Int64("viewerID", viewerID),
			slog.Int64("ownerID", ownerID),
		)
	}

	owner, err := s.store.GetUserByID(ctx, ownerID)
	if err != nil {
		return fail(err)
	}

	var counts model.ProfileCounts
	if counts.Followers, err = s.store.CountFollowers(ctx, ownerID); err != nil {
		return fail(err)
	}
	if counts.Followings, err = s.store.CountFollowings(ctx, ownerID); err != nil {
		return fail(err)
	}
	if counts.Posts, err = s.store.CountPostsByUser(ctx, ownerID); err != nil {
		return fail(err)
	}

	status, err := viewerStatus(ctx, s.store, viewerID, ownerID)
	if err != nil {
		return fail(err)
	}

	return &model.Profile{
		PublicUser:   model.PublicUserOf(owner),
		IsPrivate:    owner.IsPrivate,
		Counts:       counts,
		FollowStatus: status,
	}, nil
}
