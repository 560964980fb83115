package events

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/blrlabs/codelab/internal/identity"
)

const anonymousUser = "anonymous"

// WebSocketHandler streams turn events to the presentation layer over a
// WebSocket connection, one subscription per connection.
type WebSocketHandler struct {
	hub           *Hub
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket event handler.
func NewWebSocketHandler(hub *Hub, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, allowedOrigin: allowedOrigin, isDev: isDev}
}

// Key returns the hub key for a request identity. Events are scoped to one
// client session, never to a bare username: an anonymous identity without a
// session key yields "" and must not be published or subscribed to, or every
// anonymous learner would share one stream.
func Key(username, sessionKey string) string {
	if sessionKey == "" {
		return ""
	}
	if username == "" {
		username = anonymousUser
	}
	return username + ":" + sessionKey
}

// ServeHTTP upgrades the connection and forwards events until the client
// disconnects.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	username := identity.UsernameFromContext(r.Context())
	key := Key(username, identity.SessionKeyFromContext(r.Context()))
	if key == "" {
		http.Error(w, "session_id query parameter required", http.StatusBadRequest)
		return
	}

	opts := &websocket.AcceptOptions{}
	if h.isDev {
		opts.OriginPatterns = []string{"*"}
	} else if h.allowedOrigin != "" {
		opts.OriginPatterns = []string{h.allowedOrigin}
	}

	ws, err := websocket.Accept(w, r, opts)
	if err != nil {
		slog.Error("Failed to accept event WebSocket", "error", err, "username", username)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close event websocket", "error", closeErr)
		}
	}()

	ch, unsubscribe := h.hub.Subscribe(key)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reads are only used to observe disconnects; clients never send.
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, ws, ev); err != nil {
				slog.Debug("Event write failed, dropping subscriber", "error", err, "key", key)
				return
			}
		}
	}
}
