package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/socialgraph/internal/apperror"
	"github.com/sakif/socialgraph/internal/model"
)

// newTestDB returns a fresh in-memory database closed at test end.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(MemoryPath)
	if err != nil {
		t.Fatalf("New(%q) error = %v", MemoryPath, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser creates a user and fails the test if it errors.
func createTestUser(t *testing.T, db *DB, username string, private bool) *model.User {
	t.Helper()
	u := &model.User{
		Username:     username,
		PasswordHash: "$2a$04$notarealhash",
		Name:         username,
		IsPrivate:    private,
	}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%q) error = %v", username, err)
	}
	return u
}

// =========================================================================
// CREATE / GET
// =========================================================================

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)

	u := createTestUser(t, db, "alice", true)

	if u.ID == 0 {
		t.Error("CreateUser() did not set ID")
	}
	if u.CreatedAt.IsZero() {
		t.Error("CreateUser() did not set CreatedAt")
	}

	got, err := db.GetUserByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if got.Username != "alice" || !got.IsPrivate {
		t.Errorf("GetUserByID() = %+v, want alice/private", got)
	}
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice", false)

	err := db.CreateUser(context.Background(), &model.User{Username: "alice", PasswordHash: "x"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("CreateUser() duplicate error = %v, want ErrConflict", err)
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByID(context.Background(), 999)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}

func TestGetUserByUsername(t *testing.T) {
	db := newTestDB(t)
	want := createTestUser(t, db, "bob", false)

	got, err := db.GetUserByUsername(context.Background(), "bob")
	if err != nil {
		t.Fatalf("GetUserByUsername() error = %v", err)
	}
	if got.ID != want.ID {
		t.Errorf("GetUserByUsername() id = %d, want %d", got.ID, want.ID)
	}

	if _, err := db.GetUserByUsername(context.Background(), "nobody"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByUsername(nobody) error = %v, want ErrNotFound", err)
	}
}

func TestGetUsersByIDs_SkipsMissing(t *testing.T) {
	db := newTestDB(t)
	a := createTestUser(t, db, "alice", false)
	b := createTestUser(t, db, "bob", false)

	users, err := db.GetUsersByIDs(context.Background(), []int64{a.ID, b.ID, 424242})
	if err != nil {
		t.Fatalf("GetUsersByIDs() error = %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("GetUsersByIDs() returned %d users, want 2", len(users))
	}
	if users[b.ID].Username != "bob" {
		t.Errorf("users[%d] = %+v, want bob", b.ID, users[b.ID])
	}

	empty, err := db.GetUsersByIDs(context.Background(), nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("GetUsersByIDs(nil) = %v, %v; want empty map", empty, err)
	}
}

// =========================================================================
// UPDATES
// =========================================================================

func TestUpdateUsername(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice", false)
	createTestUser(t, db, "bob", false)

	if err := db.UpdateUsername(ctx, alice.ID, "alice_renamed"); err != nil {
		t.Fatalf("UpdateUsername() error = %v", err)
	}
	got, _ := db.GetUserByID(ctx, alice.ID)
	if got.Username != "alice_renamed" {
		t.Errorf("username = %q, want alice_renamed", got.Username)
	}

	if err := db.UpdateUsername(ctx, alice.ID, "bob"); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("UpdateUsername(taken) error = %v, want ErrConflict", err)
	}
	if err := db.UpdateUsername(ctx, 999, "ghost"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateUsername(missing) error = %v, want ErrNotFound", err)
	}
}

func TestUpdatePrivacyAndPicture(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "alice", false)

	if err := db.UpdatePrivacy(ctx, u.ID, true); err != nil {
		t.Fatalf("UpdatePrivacy() error = %v", err)
	}
	if err := db.UpdatePicture(ctx, u.ID, "/uploads/a.png"); err != nil {
		t.Fatalf("UpdatePicture() error = %v", err)
	}

	got, _ := db.GetUserByID(ctx, u.ID)
	if !got.IsPrivate {
		t.Error("IsPrivate = false after UpdatePrivacy(true)")
	}
	if got.PictureURL != "/uploads/a.png" {
		t.Errorf("PictureURL = %q, want /uploads/a.png", got.PictureURL)
	}
}

// =========================================================================
// LISTING
// =========================================================================

func TestSearchUsersByPrefix(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "alice", false)
	createTestUser(t, db, "alina", false)
	createTestUser(t, db, "bob", false)
	createTestUser(t, db, "a_b", false)
	carol := &model.User{Username: "carol", PasswordHash: "$2a$04$notarealhash", Name: "Alison"}
	if err := db.CreateUser(ctx, carol); err != nil {
		t.Fatalf("CreateUser(carol) error = %v", err)
	}

	got, err := db.SearchUsersByPrefix(ctx, "ali", 20)
	if err != nil {
		t.Fatalf("SearchUsersByPrefix() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("SearchUsersByPrefix(ali) returned %d, want 2", len(got))
	}
	for _, u := range got {
		if u.ID == carol.ID {
			t.Errorf("SearchUsersByPrefix(ali) matched display name %q", u.Name)
		}
	}

	// "_" must not act as a wildcard.
	got, _ = db.SearchUsersByPrefix(ctx, "a_", 20)
	if len(got) != 1 || got[0].Username != "a_b" {
		t.Errorf("SearchUsersByPrefix(a_) = %+v, want only a_b", got)
	}

	got, _ = db.SearchUsersByPrefix(ctx, "zzz", 20)
	if got == nil || len(got) != 0 {
		t.Errorf("SearchUsersByPrefix(zzz) = %#v, want empty non-nil slice", got)
	}
}

func TestListNewestUsers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := createTestUser(t, db, "alice", false)
	b := createTestUser(t, db, "bob", false)
	c := createTestUser(t, db, "carol", false)

	got, err := db.ListNewestUsers(ctx, b.ID, 10)
	if err != nil {
		t.Fatalf("ListNewestUsers() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != c.ID || got[1].ID != a.ID {
		t.Errorf("ListNewestUsers() = %+v, want [carol alice]", got)
	}

	got, _ = db.ListNewestUsers(ctx, b.ID, 1)
	if len(got) != 1 {
		t.Errorf("ListNewestUsers(limit=1) returned %d", len(got))
	}
}
