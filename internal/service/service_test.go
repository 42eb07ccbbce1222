package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/socialgraph/internal/auth"
	"github.com/sakif/socialgraph/internal/model"
	"github.com/sakif/socialgraph/internal/repository"
	"github.com/sakif/socialgraph/internal/repository/sqlite"
)

// =========================================================================
// FAKES
// =========================================================================

// recordingRemover remembers every path it was asked to remove.
type recordingRemover struct {
	mu      sync.Mutex
	removed []string
	err     error
}

func (r *recordingRemover) Remove(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, path)
	return r.err
}

func (r *recordingRemover) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.removed...)
}

var errStoreDown = errors.New("sqlite: disk I/O error")

// brokenStore wraps a working store but fails every transaction and every
// user lookup, the way an unavailable database would.
type brokenStore struct {
	repository.Store
}

func (brokenStore) WithinTx(context.Context, func(repository.Queries) error) error {
	return errStoreDown
}

func (brokenStore) GetUserByID(context.Context, int64) (*model.User, error) {
	return nil, errStoreDown
}

func (brokenStore) ListNewestUsers(context.Context, int64, int) ([]model.User, error) {
	return nil, errStoreDown
}

// vanishingUserStore hides one user from batch lookups, as if the account
// was deleted between reading a post and resolving the people around it.
type vanishingUserStore struct {
	repository.Store
	gone int64
}

func (s vanishingUserStore) GetUsersByIDs(ctx context.Context, ids []int64) (map[int64]*model.User, error) {
	users, err := s.Store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	delete(users, s.gone)
	return users, nil
}

// =========================================================================
// FIXTURE
// =========================================================================

type fixture struct {
	db        *sqlite.DB
	files     *recordingRemover
	relations *RelationshipService
	posts     *EngagementService
	recommend *RecommendationService
	accounts  *AccountService
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.New(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return newFixtureWithStore(t, db, db)
}

func newFixtureWithStore(t *testing.T, db *sqlite.DB, store repository.Store) *fixture {
	t.Helper()

	tokens, err := auth.NewTokenService("service-test-secret-0123456789", 0)
	require.NoError(t, err)

	files := &recordingRemover{}
	logger := quietLogger()

	return &fixture{
		db:        db,
		files:     files,
		relations: NewRelationshipService(store, logger, nil),
		posts:     NewEngagementService(store, files, logger, nil),
		recommend: NewRecommendationService(store, logger),
		accounts:  NewAccountService(store, tokens, auth.NewPasswordServiceWithCost(bcrypt.MinCost), files, logger, nil),
	}
}

// user inserts an account directly, bypassing signup validation and hashing.
func (f *fixture) user(t *testing.T, username string, private bool) *model.User {
	t.Helper()
	u := &model.User{Username: username, PasswordHash: "x", Name: username, IsPrivate: private}
	require.NoError(t, f.db.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) post(t *testing.T, owner *model.User, images ...string) int64 {
	t.Helper()
	p, err := f.posts.CreatePost(context.Background(), owner.ID, "title", "description", images)
	require.NoError(t, err)
	return p.ID
}

func (f *fixture) edge(t *testing.T, follower, following *model.User) *model.FollowEdge {
	t.Helper()
	e, err := f.db.LookupFollow(context.Background(), follower.ID, following.ID)
	require.NoError(t, err)
	return e
}
