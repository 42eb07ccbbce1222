package service

import (
	"context"
	"log/slog"

	"github.com/sakif/socialgraph/internal/model"
	"github.com/sakif/socialgraph/internal/repository"
)

const (
	DefaultRecommendLimit = 20
	MaxRecommendLimit     = 50
)

// RecommendationService ranks accounts for the viewer. It is read-only.
type RecommendationService struct {
	store  repository.Store
	logger *slog.Logger
}

func NewRecommendationService(store repository.Store, logger *slog.Logger) *RecommendationService {
	return &RecommendationService{store: store, logger: logger}
}

// Recommend returns the newest accounts other than the viewer. Existing
// relationships do not filter candidates; they only set FollowStatus.
//
// limit ≤ 0 means DefaultRecommendLimit; anything above MaxRecommendLimit is
// capped.
func (s *RecommendationService) Recommend(ctx context.Context, viewerID int64, limit int) (*model.Recommendation, error) {
	if limit <= 0 {
		limit = DefaultRecommendLimit
	}
	if limit > MaxRecommendLimit {
		limit = MaxRecommendLimit
	}

	fail := func(err error) (*model.Recommendation, error) {
		return nil, unexpected(s.logger, "recommend", err,
			slog.Int64("viewerID", viewerID),
			slog.Int("limit", limit),
		)
	}

	candidates, err := s.store.ListNewestUsers(ctx, viewerID, limit)
	if err != nil {
		return fail(err)
	}

	ids := make([]int64, len(candidates))
	for i, u := range candidates {
		ids[i] = u.ID
	}
	statuses, err := s.store.FollowStatusesFrom(ctx, viewerID, ids)
	if err != nil {
		return fail(err)
	}

	users := make([]model.RecommendedUser, len(candidates))
	for i := range candidates {
		u := &candidates[i]
		status, ok := statuses[u.ID]
		if !ok || !status.Valid() {
			status = model.StatusUnfollowed
		}
		users[i] = model.RecommendedUser{
			PublicUser:   model.PublicUserOf(u),
			IsPrivate:    u.IsPrivate,
			FollowStatus: status,
		}
	}

	return &model.Recommendation{Users: users, Count: len(users)}, nil
}
