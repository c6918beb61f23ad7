// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"unicode/utf8"
)

// MaxUsernameLen bounds display names shown to other members.
const MaxUsernameLen = 64

var (
	ErrUserIDEmpty   = errors.New("user id empty")
	ErrUsernameEmpty = errors.New("username empty")
)

type UserID string

// User is the canonical identity returned by the account service.
type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
// Avatar may be empty; id and username may not. Long usernames are clipped.
func NewUser(id, username, avatar string) (*User, error) {
	if len(id) == 0 {
		return nil, ErrUserIDEmpty
	}
	if len(username) == 0 {
		return nil, ErrUsernameEmpty
	}
	return &User{ID: UserID(id), Username: ClipUsername(username), Avatar: avatar}, nil
}

// ClipUsername shortens a display name to MaxUsernameLen bytes without
// splitting a rune.
func ClipUsername(name string) string {
	if len(name) <= MaxUsernameLen {
		return name
	}
	name = name[:MaxUsernameLen]
	for len(name) > 0 && !utf8.ValidString(name) {
		name = name[:len(name)-1]
	}
	return name
}
