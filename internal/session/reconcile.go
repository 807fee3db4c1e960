// Package session owns the per-user conversation aggregation: it merges raw
// conversation snapshots with resolved user profiles into a display-ready
// sorted list, tracks deltas to detect new inbound messages exactly once, and
// manages the selected-conversation lifecycle.
package session

import (
	"sort"
	"strings"
	"time"

	"github.com/ahmedit-11/artfolio-chat/internal/models"
)

// Baseline is the delta-tracking state carried between snapshots: the unread
// counter and a composite last-message key per conversation, as last observed.
// Unread increments and last-message content updates are independent backend
// writes that can arrive as separate snapshot events, so both signals are
// tracked; relying on one alone misses or duplicates notifications.
type Baseline struct {
	Initialized bool
	Unread      map[string]int
	LastKeys    map[string]string
}

// NewBaseline returns the empty pre-first-snapshot baseline.
func NewBaseline() Baseline {
	return Baseline{
		Unread:   make(map[string]int),
		LastKeys: make(map[string]string),
	}
}

// ReconcileResult is the outcome of folding one snapshot over the baseline.
type ReconcileResult struct {
	Views         []models.ConversationView
	Notifications []models.Notification
	Baseline      Baseline
}

// lastMessageKey builds the composite change-detection key for a
// conversation's denormalized last message. The read flag is deliberately
// excluded so marking a message read does not look like a content change.
func lastMessageKey(lm *models.LastMessage) string {
	if lm == nil {
		return ""
	}
	ts := ""
	if lm.CreatedAt != nil {
		ts = lm.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return lm.SenderID + "|" + lm.Text + "|" + ts
}

// effectiveTime is the sort timestamp of a view. A conversation without a
// parseable last-message time sorts as oldest, never as "now".
func effectiveTime(lm *models.LastMessage) time.Time {
	if lm == nil || lm.CreatedAt == nil {
		return time.Time{}
	}
	return *lm.CreatedAt
}

// Reconcile folds one raw conversation snapshot over the previous baseline.
// It is a pure function of its inputs: replaying an identical snapshot yields
// the same views and no notifications, which makes subscription callbacks
// idempotent under replays.
//
// A notification is emitted for a conversation when either delta signal fires
// (unread counter grew, or the composite last-message key changed) and the
// message is inbound (not sent by the local user), the conversation is not
// the one currently open, and the text is non-empty. The very first snapshot
// after subscribing never notifies, regardless of existing unread counts.
func Reconcile(base Baseline, snapshot []models.Conversation, profiles map[string]models.UserProfile, localUserID, selectedChatID string) ReconcileResult {
	next := NewBaseline()
	next.Initialized = true

	views := make([]models.ConversationView, 0, len(snapshot))
	var notifications []models.Notification

	for _, conv := range snapshot {
		other := conv.Other(localUserID)
		profile, ok := profiles[other]
		if !ok {
			profile = models.PlaceholderProfile(other)
		}

		unread := conv.UnreadFor(localUserID)
		key := lastMessageKey(conv.LastMessage)
		next.Unread[conv.ID] = unread
		next.LastKeys[conv.ID] = key

		viewUnread := unread
		if conv.ID == selectedChatID {
			// The open conversation is read by definition; the backend
			// round-trip catches up on its own.
			viewUnread = 0
		}
		views = append(views, models.ConversationView{
			ID:          conv.ID,
			OtherUser:   profile,
			LastMessage: conv.LastMessage,
			UnreadCount: viewUnread,
			UpdatedAt:   conv.UpdatedAt,
		})

		if !base.Initialized {
			continue
		}
		unreadGrew := unread > base.Unread[conv.ID]
		keyChanged := key != "" && key != base.LastKeys[conv.ID]
		if !unreadGrew && !keyChanged {
			continue
		}
		lm := conv.LastMessage
		if lm == nil || lm.SenderID == localUserID || conv.ID == selectedChatID {
			continue
		}
		if strings.TrimSpace(lm.Text) == "" {
			continue
		}
		notifications = append(notifications, models.Notification{
			ChatID:     conv.ID,
			SenderID:   lm.SenderID,
			SenderName: profile.Name,
			Text:       lm.Text,
			SentAt:     lm.CreatedAt,
		})
	}

	sort.SliceStable(views, func(i, j int) bool {
		return effectiveTime(views[i].LastMessage).After(effectiveTime(views[j].LastMessage))
	})

	return ReconcileResult{Views: views, Notifications: notifications, Baseline: next}
}
