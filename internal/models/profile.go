package models

import (
	"fmt"
	"net/url"
)

// UserProfile is the cached display info of a chat participant, resolved from
// the platform user directory.
type UserProfile struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// PlaceholderProfile builds the deterministic fallback profile used when a
// directory lookup fails. One unreachable profile must never block the rest
// of the conversation list from rendering.
func PlaceholderProfile(userID string) UserProfile {
	prefix := userID
	if len(prefix) > 6 {
		prefix = prefix[:6]
	}
	name := fmt.Sprintf("User %s", prefix)
	return UserProfile{
		ID:     userID,
		Name:   name,
		Avatar: "https://ui-avatars.com/api/?name=" + url.QueryEscape(name),
	}
}
