package session

import (
	"context"
	"sync"

	"github.com/ahmedit-11/artfolio-chat/internal/chat"
)

// Manager hands out at most one live session per user, refcounted across the
// user's open connections. The session is created on first acquire and torn
// down when the last holder releases it.
type Manager struct {
	svc      *chat.Service
	profiles ProfileResolver
	sink     Sink
	notifier Notifier

	mu       sync.Mutex
	sessions map[string]*managedSession
}

type managedSession struct {
	session *Session
	refs    int
}

// NewManager builds a Manager.
func NewManager(svc *chat.Service, profiles ProfileResolver, sink Sink, notifier Notifier) *Manager {
	return &Manager{
		svc:      svc,
		profiles: profiles,
		sink:     sink,
		notifier: notifier,
		sessions: make(map[string]*managedSession),
	}
}

// Acquire returns the user's session, starting one if needed. Every Acquire
// must be paired with a Release. The session starts outside the lock: Start
// resolves profiles over the network and must not stall other users.
func (m *Manager) Acquire(ctx context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	if entry, ok := m.sessions[userID]; ok {
		entry.refs++
		m.mu.Unlock()
		return entry.session, nil
	}
	m.mu.Unlock()

	sess := NewSession(userID, m.svc, m.profiles, m.sink, m.notifier)
	if err := sess.Start(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if entry, ok := m.sessions[userID]; ok {
		// Another Acquire for the same user won the race while we started.
		entry.refs++
		m.mu.Unlock()
		sess.Close()
		return entry.session, nil
	}
	m.sessions[userID] = &managedSession{session: sess, refs: 1}
	m.mu.Unlock()
	return sess, nil
}

// Release drops one reference; the last release closes the session and
// disposes its subscriptions.
func (m *Manager) Release(userID string) {
	m.mu.Lock()
	entry, ok := m.sessions[userID]
	if !ok {
		m.mu.Unlock()
		return
	}
	entry.refs--
	if entry.refs > 0 {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, userID)
	m.mu.Unlock()

	entry.session.Close()
}

// ActiveSessions reports the number of live sessions.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
