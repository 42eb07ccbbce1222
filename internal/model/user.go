// Package model defines the records of the social graph and the public
// shapes they are projected into before leaving the core.
package model

import "time"

// User is an identity record. PasswordHash never leaves the core: every
// outward-facing shape is built with PublicUserOf or ProfileUserOf.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Surname      string    `json:"surname"`
	IsPrivate    bool      `json:"isPrivate"`
	PictureURL   string    `json:"pictureUrl,omitempty"` // empty when no avatar is set
	CreatedAt    time.Time `json:"createdAt"`
}
