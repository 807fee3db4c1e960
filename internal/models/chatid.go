package models

import (
	"fmt"
	"strings"
)

// chatIDSeparator joins the two participant ids inside a chat id. User ids
// must never contain it; NewChatID trims surrounding whitespace but does not
// rewrite ids.
const chatIDSeparator = "_"

// NewChatID derives the deterministic id of the 1:1 conversation between two
// users. The pair is sorted lexicographically, so NewChatID(a, b) ==
// NewChatID(b, a) and concurrent "start chat" calls from either side converge
// on the same conversation document.
func NewChatID(userA, userB string) string {
	a := strings.TrimSpace(userA)
	b := strings.TrimSpace(userB)
	if a > b {
		a, b = b, a
	}
	return a + chatIDSeparator + b
}

// SplitChatID recovers the two participant ids encoded in a chat id.
func SplitChatID(chatID string) (string, string, error) {
	parts := strings.SplitN(chatID, chatIDSeparator, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed chat id %q", chatID)
	}
	return parts[0], parts[1], nil
}

// OtherParticipant returns the participant of chatID that is not userID.
func OtherParticipant(chatID, userID string) (string, error) {
	a, b, err := SplitChatID(chatID)
	if err != nil {
		return "", err
	}
	switch userID {
	case a:
		return b, nil
	case b:
		return a, nil
	}
	return "", fmt.Errorf("user %q is not a participant of chat %q", userID, chatID)
}

// IsParticipant reports whether userID is encoded in chatID.
func IsParticipant(chatID, userID string) bool {
	a, b, err := SplitChatID(chatID)
	if err != nil {
		return false
	}
	return userID == a || userID == b
}
