// Package domain contains core concepts of the chat system.
// This file defines user identities and their public projection.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"strconv"
	"time"
)

// UserID is owned by the authentication collaborator and only used as a lookup key here.
type UserID int64

func (u UserID) String() string {
	return strconv.FormatInt(int64(u), 10)
}

// ParseUserID accepts strictly positive decimal identifiers.
func ParseUserID(s string) (UserID, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return UserID(id), true
}

// Profile is the public projection of a user embedded in every delivered message.
type Profile struct {
	ID          UserID    `json:"id"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	PhoneNumber *string   `json:"phone_number"`
	CreatedAt   time.Time `json:"created_at"`
}
