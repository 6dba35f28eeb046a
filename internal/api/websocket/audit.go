// Package websocket streams live audit events to owners.
package websocket

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"panel-dash/internal/api/middleware"
	"panel-dash/internal/audit"
	"panel-dash/internal/authz"
	"panel-dash/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// sessionCheckPeriod is how often an open feed re-reads its session.
var sessionCheckPeriod = 15 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts requests without an Origin header and those whose
// Origin host matches the request host. The session cookie alone must not
// let another site open the feed.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// Message is one frame sent to the client.
type Message struct {
	Type  string `json:"type"`
	Event any    `json:"event,omitempty"`
}

// AuditHandler upgrades the connection and forwards every event published on
// hub until the client disconnects. The feed is closed once the session is
// gone or no longer grants ViewAudit.
func AuditHandler(hub *audit.Hub, sessions *session.Manager, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := middleware.MustSession(c)

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("audit websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		events, cancel := hub.Subscribe()
		defer cancel()
		log.Info("audit feed opened", zap.String("user_id", s.UserID))

		done := make(chan struct{})
		go readPump(conn, done)

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		check := time.NewTicker(sessionCheckPeriod)
		defer check.Stop()

		if err := write(conn, Message{Type: "hello"}); err != nil {
			return
		}
		for {
			select {
			case <-done:
				log.Info("audit feed closed", zap.String("user_id", s.UserID))
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := write(conn, Message{Type: "audit", Event: ev}); err != nil {
					return
				}
			case <-check.C:
				cur, err := sessions.Get(s.ID)
				if err != nil || !authz.Allow(cur.Subject(), authz.ViewAudit) {
					log.Info("audit feed revoked", zap.String("user_id", s.UserID))
					conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session ended"),
						time.Now().Add(writeWait))
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}

func write(conn *websocket.Conn, m Message) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(m)
}

// readPump discards client frames and closes done when the peer goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
