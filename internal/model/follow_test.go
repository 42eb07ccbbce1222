package model

import "testing"

func TestNextFollowStatus(t *testing.T) {
	public := &User{ID: 2}
	private := &User{ID: 3, IsPrivate: true}

	tests := []struct {
		name    string
		current FollowStatus
		target  *User
		want    FollowStatus
	}{
		{"unfollowed to followed on public", StatusUnfollowed, public, StatusFollowed},
		{"unfollowed to requested on private", StatusUnfollowed, private, StatusRequested},
		{"requested cancels", StatusRequested, private, StatusUnfollowed},
		{"requested cancels after target went public", StatusRequested, public, StatusUnfollowed},
		{"followed unfollows", StatusFollowed, public, StatusUnfollowed},
		{"followed unfollows on private", StatusFollowed, private, StatusUnfollowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextFollowStatus(tt.current, tt.target); got != tt.want {
				t.Errorf("NextFollowStatus(%s) = %s, want %s", tt.current, got, tt.want)
			}
		})
	}
}

func TestFollowStatusValid(t *testing.T) {
	for _, s := range []FollowStatus{StatusUnfollowed, StatusRequested, StatusFollowed} {
		if !s.Valid() {
			t.Errorf("%q.Valid() = false", s)
		}
	}
	if FollowStatus("pending").Valid() {
		t.Error(`"pending".Valid() = true`)
	}
}

func TestPublicUserOrStub(t *testing.T) {
	users := map[int64]*User{1: {ID: 1, Username: "alice", PasswordHash: "secret"}}

	if got := PublicUserOrStub(users, 1); got.Username != "alice" {
		t.Errorf("Username = %q, want alice", got.Username)
	}
	if got := PublicUserOrStub(users, 9); got != (PublicUser{ID: 9}) {
		t.Errorf("stub = %+v, want only the id", got)
	}
}
