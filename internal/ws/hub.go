package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ahmedit-11/artfolio-chat/internal/models"
	"github.com/ahmedit-11/artfolio-chat/internal/observability"
)

// client is one registered connection. Its mutex serializes every write to
// the connection: state and notifications arrive from multiple subscription
// goroutines, and gorilla/websocket forbids concurrent writers.
type client struct {
	mu   sync.Mutex
	info ConnInfo
}

// Hub maintains the websocket connections of each user and fans session
// state and notifications out to all of them. It is the session layer's
// Sink.
type Hub struct {
	rooms map[string]map[*websocket.Conn]*client
	mu    sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*websocket.Conn]*client),
	}
}

// AddClient registers a websocket connection for a user.
func (h *Hub) AddClient(userID string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[userID]; !ok {
		h.rooms[userID] = make(map[*websocket.Conn]*client)
	}
	h.rooms[userID][conn] = &client{info: info}
}

// RemoveClient removes a user's websocket connection.
func (h *Hub) RemoveClient(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, userID)
		}
	}
}

// StateChanged pushes the aggregated chat state to all of the user's clients.
func (h *Hub) StateChanged(userID string, ev models.ChatEvent) {
	h.broadcast(userID, ev)
}

// Notify pushes a new-message notification to all of the user's clients.
func (h *Hub) Notify(userID string, n models.Notification) {
	h.broadcast(userID, models.ChatEvent{Type: "notification", Notification: &n})
}

// WriteTo pushes one event to a single connection, serialized against
// concurrent broadcasts to it. A connection no longer registered is skipped.
func (h *Hub) WriteTo(userID string, conn *websocket.Conn, ev models.ChatEvent) error {
	h.mu.RLock()
	cl := h.rooms[userID][conn]
	h.mu.RUnlock()
	if cl == nil {
		return nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (h *Hub) broadcast(userID string, ev models.ChatEvent) {
	type target struct {
		conn *websocket.Conn
		cl   *client
	}
	h.mu.RLock()
	targets := make([]target, 0, len(h.rooms[userID]))
	for conn, cl := range h.rooms[userID] {
		targets = append(targets, target{conn: conn, cl: cl})
	}
	h.mu.RUnlock()

	payload, _ := json.Marshal(ev)
	for _, tg := range targets {
		tg.cl.mu.Lock()
		err := tg.conn.WriteMessage(websocket.TextMessage, payload)
		tg.cl.mu.Unlock()
		if err != nil {
			log.Printf("websocket write error: %v", err)
			tg.conn.Close()
			h.publishWSError(tg.cl.info, err)
			h.RemoveClient(userID, tg.conn)
		}
	}
}

func (h *Hub) publishWSError(info ConnInfo, err error) {
	observability.IncWSEvent("session", "ws_error")
	_ = observability.PublishEvent(context.Background(), "ws_events.chat", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       "ws_error",
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      err.Error(),
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	})
}

func (h *Hub) getConnInfo(userID string, conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if cl, ok := h.rooms[userID][conn]; ok {
		return cl.info, true
	}
	return ConnInfo{}, false
}

// ClientCount reports the number of open connections for a user.
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}
