// Package service contains the business logic of the social graph.
//
// THE LAYERS:
//
//	Handler (HTTP)       → parses requests, writes responses
//	Service (this pkg)   → validates, enforces graph rules, owns transactions
//	Repository (storage) → reads/writes rows
//
// Services hold a repository.Store interface, never *sqlite.DB, so tests can
// run them against an in-memory database or a store that fails on demand.
//
// ERRORS:
// Expected conditions come back as *apperror.AppError and pass through
// untouched. Anything else is logged here with the operation and ids, then
// returned wrapped with %w; the handler renders it as an opaque 500.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/socialgraph/internal/apperror"
	"github.com/sakif/socialgraph/internal/model"
	"github.com/sakif/socialgraph/internal/policy"
	"github.com/sakif/socialgraph/internal/repository"
)

// FileRemover deletes a previously uploaded file by its public path.
// upload.Store satisfies it.
type FileRemover interface {
	Remove(path string) error
}

// unexpected logs err unless it is an expected AppError, and wraps it with op.
func unexpected(logger *slog.Logger, op string, err error, attrs ...any) error {
	if apperror.Is(err) {
		return err
	}
	logger.Error(op+" failed", append(attrs, slog.String("error", err.Error()))...)
	return fmt.Errorf("%s: %w", op, err)
}

// removeFiles is compensating cleanup. Failures are logged and dropped.
func removeFiles(logger *slog.Logger, files FileRemover, paths []string) {
	if files == nil {
		return
	}
	for _, p := range paths {
		if err := files.Remove(p); err != nil {
			logger.Warn("failed to remove uploaded file",
				slog.String("path", p),
				slog.String("error", err.Error()),
			)
		}
	}
}

// viewerStatus is the viewer→owner edge status. Looking at yourself is always
// unfollowed and needs no lookup.
func viewerStatus(ctx context.Context, q repository.Queries, viewerID, ownerID int64) (model.FollowStatus, error) {
	if viewerID == ownerID {
		return model.StatusUnfollowed, nil
	}
	edge, err := q.LookupFollow(ctx, viewerID, ownerID)
	if err != nil {
		return "", err
	}
	return policy.FollowStatusOf(edge), nil
}

// projectUsers loads ids in one query and projects them in the given order,
// dropping users that no longer exist.
func projectUsers(ctx context.Context, q repository.Queries, ids []int64) ([]model.PublicUser, error) {
	users, err := q.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]model.PublicUser, 0, len(ids))
	for _, id := range ids {
		if u, ok := users[id]; ok {
			out = append(out, model.PublicUserOf(u))
		}
	}
	return out, nil
}
