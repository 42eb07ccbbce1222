package model

// PublicUser is the display projection of a User. It is the only user shape
// that appears in post details, comments, likes, follow requests, follower
// lists, search results and recommendations.
type PublicUser struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Name       string `json:"name"`
	Surname    string `json:"surname"`
	PictureURL string `json:"pictureUrl"`
}

// PublicUserOf projects u. A nil user projects to the zero value.
func PublicUserOf(u *User) PublicUser {
	if u == nil {
		return PublicUser{}
	}
	return PublicUser{
		ID:         u.ID,
		Username:   u.Username,
		Name:       u.Name,
		Surname:    u.Surname,
		PictureURL: u.PictureURL,
	}
}

// PublicUserOrStub projects the user with the given id from users, or returns
// a stub carrying only the id when the user is gone.
func PublicUserOrStub(users map[int64]*User, id int64) PublicUser {
	if u, ok := users[id]; ok {
		return PublicUserOf(u)
	}
	return PublicUser{ID: id}
}

// AccountUser is the self view of a user: the public fields plus the
// privacy flag. Returned by signup, login and account settings.
type AccountUser struct {
	PublicUser
	IsPrivate bool `json:"isPrivate"`
}

// AccountUserOf projects u for its owner.
func AccountUserOf(u *User) AccountUser {
	return AccountUser{PublicUser: PublicUserOf(u), IsPrivate: u.IsPrivate}
}
