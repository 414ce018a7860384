package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"responseready/db"
	"responseready/models"
	"responseready/policy"
	"responseready/realtime"
	"responseready/service"
	"responseready/session"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxClientMessage = 512
)

// StreamHandler pushes live query snapshots to dashboards over WebSocket.
// Every frame carries the full ordered result set; clients replace what they
// display on each one.
type StreamHandler struct {
	svc      *service.Service
	sessions *session.Provider
	registry *realtime.Registry
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewStreamHandler(svc *service.Service, sessions *session.Provider, registry *realtime.Registry, allowedOrigins []string, logger zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		svc:      svc,
		sessions: sessions,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		log: logger.With().Str("handler", "stream").Logger(),
	}
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

type streamFrame struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(frame streamFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(frame)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *wsConn) close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	c.conn.Close()
}

// Incidents streams the incident board.
func (h *StreamHandler) Incidents(w http.ResponseWriter, r *http.Request) {
	serveStream(h, w, r, policy.ViewIncidents, "incidents", h.svc.WatchIncidents)
}

// MyReports streams the caller's own filings.
func (h *StreamHandler) MyReports(w http.ResponseWriter, r *http.Request) {
	serveStream(h, w, r, policy.ViewOwnReports, "incidents/mine", h.svc.WatchMyReports)
}

// Comms streams the communications channel.
func (h *StreamHandler) Comms(w http.ResponseWriter, r *http.Request) {
	serveStream(h, w, r, policy.ViewComms, "comms", h.svc.WatchComms)
}

func serveStream[T any](h *StreamHandler, w http.ResponseWriter, r *http.Request, action policy.Action, name string, open func(context.Context, *models.UserProfile) (db.Feed[T], error)) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.svc.Authorize(caller, action); err != nil {
		handleServiceError(w, h.log, err, "stream "+name)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("feed", name).Msg("⚠️ WebSocket upgrade failed")
		return
	}
	conn := &wsConn{conn: ws}
	log := h.log.With().Str("feed", name).Str("user_id", caller.UID).Logger()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var (
		once        sync.Once
		closeCode   = websocket.CloseNormalClosure
		closeReason = "stream closed"
	)
	end := func(code int, reason string) {
		once.Do(func() {
			closeCode, closeReason = code, reason
			cancel()
		})
	}

	unsubscribe := h.sessions.Subscribe(caller.UID, func(ev session.Event) {
		switch ev.Kind {
		case session.LoggedOut:
			end(websocket.ClosePolicyViolation, "logged out")
		case session.ProfileChanged:
			if ev.Profile == nil || !policy.Allowed(ev.Profile.Role, action) {
				end(websocket.ClosePolicyViolation, "access revoked")
			}
		}
	})
	defer unsubscribe()

	sub, err := realtime.Subscribe(ctx, h.registry, name,
		func(ctx context.Context) (db.Feed[T], error) {
			return open(ctx, caller)
		},
		func(snapshot []T) {
			if snapshot == nil {
				snapshot = []T{}
			}
			if err := conn.send(streamFrame{Type: "snapshot", Data: snapshot}); err != nil {
				end(websocket.CloseGoingAway, "write failed")
			}
		},
	)
	if err != nil {
		_, message := errorStatus(err)
		log.Error().Err(err).Msg("❌ Failed to open realtime feed")
		conn.send(streamFrame{Type: "error", Error: message})
		conn.close(websocket.CloseInternalServerErr, "feed unavailable")
		return
	}
	log.Info().Msg("📡 Stream opened")

	go func() {
		ws.SetReadLimit(maxClientMessage)
		ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				end(websocket.CloseNormalClosure, "client closed")
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-sub.Done():
			if err := sub.Err(); err != nil {
				_, message := errorStatus(err)
				conn.send(streamFrame{Type: "error", Error: message})
				end(websocket.CloseInternalServerErr, "feed failed")
			} else {
				end(websocket.CloseGoingAway, "server shutting down")
			}
			break loop
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				end(websocket.CloseGoingAway, "ping failed")
				break loop
			}
		}
	}

	sub.Close()
	// Seal the close fields against late end calls.
	once.Do(func() {})
	conn.close(closeCode, closeReason)
	log.Info().Str("reason", closeReason).Msg("📴 Stream closed")
}
