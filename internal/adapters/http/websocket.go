package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/raycross/internal/adapters/nats"
	"github.com/samirrijal/raycross/internal/pkg/metrics"
)

// wsMessage is sent from client to follow or stop following a session.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Session string `json:"session"` // session id
}

// WebSocketHandler returns a handler that relays session events from NATS to
// the browser map. The ?session= query parameter subscribes on connect;
// clients may follow more sessions with {"action":"subscribe","session":"<id>"}.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr)

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // session id -> subscription

		// Helper: thread-safe write
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		if deps.NATS == nil {
			_ = writeJSON(map[string]string{"error": "event relay not configured"})
			return
		}

		subscribe := func(sessionID string) {
			if sessionID == "" {
				_ = writeJSON(map[string]string{"error": "session is required"})
				return
			}
			if _, exists := subs[sessionID]; exists {
				_ = writeJSON(map[string]string{"status": "already subscribed", "session": sessionID})
				return
			}
			if deps.Sessions != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				_, err := deps.Sessions.GetSession(ctx, sessionID)
				cancel()
				if err != nil {
					_ = writeJSON(map[string]string{"error": "unknown session: " + sessionID})
					return
				}
			}
			s, err := deps.NATS.Subscribe(natsadapter.SessionWildcard(sessionID), func(msg *nats.Msg) {
				_ = writeJSON(json.RawMessage(msg.Data))
			})
			if err != nil {
				_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
				return
			}
			subs[sessionID] = s
			_ = writeJSON(map[string]string{"status": "subscribed", "session": sessionID})
		}

		if sid, _ := c.Locals("session").(string); sid != "" {
			subscribe(sid)
		}

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		// Read client messages for subscribe/unsubscribe
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			switch m.Action {
			case "subscribe":
				subscribe(m.Session)

			case "unsubscribe":
				if s, exists := subs[m.Session]; exists {
					_ = s.Unsubscribe()
					delete(subs, m.Session)
					_ = writeJSON(map[string]string{"status": "unsubscribed", "session": m.Session})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + m.Session})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		// Cleanup
		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		slog.Info("ws client disconnected", "remote", remoteAddr)
	}
}
