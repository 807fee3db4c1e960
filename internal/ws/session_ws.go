package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"github.com/ahmedit-11/artfolio-chat/internal/directory"
	"github.com/ahmedit-11/artfolio-chat/internal/observability"
	"github.com/ahmedit-11/artfolio-chat/internal/session"
)

// SessionWebSocketHandler upgrades chat clients and binds each connection to
// the user's aggregation session.
type SessionWebSocketHandler struct {
	hub        *Hub
	manager    *session.Manager
	authClient *directory.AuthClient
}

// NewSessionWebSocketHandler constructs a SessionWebSocketHandler.
func NewSessionWebSocketHandler(hub *Hub, manager *session.Manager, authClient *directory.AuthClient) *SessionWebSocketHandler {
	return &SessionWebSocketHandler{hub: hub, manager: manager, authClient: authClient}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientCommand is what a connected client may send: conversation selection
// and typing flags. Everything else flows through the REST surface.
type clientCommand struct {
	Action   string `json:"action"`
	ChatID   string `json:"chat_id,omitempty"`
	IsTyping bool   `json:"is_typing,omitempty"`
}

// Handle upgrades the connection, acquires the user's session and streams
// state updates until the client disconnects.
func (h *SessionWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("artfolio-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	userID, err := h.authClient.ValidateToken(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	sess, err := h.manager.Acquire(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start chat session"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.manager.Release(userID)
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(userID, conn, info)

	observability.IncWSActive("session")
	observability.IncWSEvent("session", "ws_connect")
	observability.SetActiveSessions(h.manager.ActiveSessions())
	_ = observability.PublishEvent(ctx, "ws_events.chat", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload:   wsEventPayload("ws_connect", info, 0, ""),
	})

	// The session may have been running for another connection; catch this
	// client up with the current state. The write goes through the hub so it
	// serializes with any broadcast already in flight.
	if err := h.hub.WriteTo(userID, conn, sess.State()); err != nil {
		log.Printf("initial state write failed for %s: %v", userID, err)
	}

	go h.readLoop(ctx, conn, sess, info)
}

func (h *SessionWebSocketHandler) readLoop(ctx context.Context, conn *websocket.Conn, sess *session.Session, info ConnInfo) {
	userID := info.UserID
	var closeReason string
	defer func() {
		h.hub.RemoveClient(userID, conn)
		h.manager.Release(userID)
		observability.DecWSActive("session")
		observability.IncWSEvent("session", "ws_disconnect")
		observability.SetActiveSessions(h.manager.ActiveSessions())
		_ = observability.PublishEvent(ctx, "ws_events.chat", observability.EventEnvelope{
			EventType: "ws_events",
			EventName: "ws_disconnect",
			Payload:   wsEventPayload("ws_disconnect", info, time.Since(info.ConnectedAt).Milliseconds(), closeReason),
		})
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("session", "ws_error")
			}
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			log.Printf("discarding malformed ws command from %s: %v", userID, err)
			continue
		}
		h.apply(ctx, sess, cmd)
	}
}

func (h *SessionWebSocketHandler) apply(ctx context.Context, sess *session.Session, cmd clientCommand) {
	switch cmd.Action {
	case "select":
		if err := sess.Select(ctx, cmd.ChatID); err != nil {
			log.Printf("select %s failed for %s: %v", cmd.ChatID, sess.UserID(), err)
		}
	case "deselect":
		sess.Deselect()
	case "typing":
		if err := sess.SetTyping(ctx, cmd.IsTyping); err != nil {
			log.Printf("set typing failed for %s: %v", sess.UserID(), err)
		}
	default:
		log.Printf("unknown ws command %q from %s", cmd.Action, sess.UserID())
	}
}

func wsEventPayload(event string, info ConnInfo, durationMS int64, reason string) map[string]interface{} {
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": durationMS,
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && header[:7] == "Bearer " {
		return header[7:]
	}
	return c.Query("token")
}
