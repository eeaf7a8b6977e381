// AngelaMos | 2026
// hub.go

package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/rzkfyn/ujikom-app-be/internal/config"
	"github.com/rzkfyn/ujikom-app-be/internal/middleware"
)

const presenceTimeout = 5 * time.Second

// Hub owns the websocket connections of this instance. Signals arrive from
// the bus and are fanned out to local clients; presence is tracked per user
// across all of that user's connections.
type Hub struct {
	bus      Bus
	relay    *Relay
	verifier middleware.TokenVerifier
	presence PresenceStore
	cfg      config.RealtimeConfig
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	online  map[string]int
	closed  bool
}

func NewHub(
	bus Bus,
	verifier middleware.TokenVerifier,
	presence PresenceStore,
	cfg config.RealtimeConfig,
	allowedOrigins []string,
) *Hub {
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}

	return &Hub{
		bus:      bus,
		relay:    NewRelay(bus),
		verifier: verifier,
		presence: presence,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		clients: make(map[*client]struct{}),
		online:  make(map[string]int),
	}
}

func (h *Hub) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.ServeHTTP)
}

// Run subscribes the hub to the bus. Delivery stops when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	return h.bus.Subscribe(ctx, h.dispatch)
}

// ServeHTTP upgrades the request. A valid ?token= identifies the connection
// immediately; otherwise it stays anonymous until a userconnect message.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := ""
	if token := r.URL.Query().Get("token"); token != "" {
		userID = h.verify(r.Context(), token)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.DebugContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	c := newClient(h, conn, h.cfg.SendBuffer)
	if !h.register(c) {
		_ = conn.Close() //nolint:errcheck // hub is shutting down
		return
	}

	ctx := context.WithoutCancel(r.Context())
	if userID != "" {
		h.identify(ctx, c, userID)
	}

	go c.writePump()
	c.readPump(ctx)

	h.unregister(ctx, c)
}

// Close disconnects every client. Further upgrades are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// OnlineCount is the number of distinct identified users.
func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.online)
}

func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.online[userID] > 0
}

func (h *Hub) dispatch(ctx context.Context, s Signal) {
	frame, err := s.encodeFrame()
	if err != nil {
		slog.WarnContext(ctx, "encode frame failed", "type", s.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if s.Type == SignalNotificationChange && c.userID != s.UserID {
			continue
		}
		c.enqueue(frame)
	}
}

func (h *Hub) verify(ctx context.Context, token string) string {
	claims, err := h.verifier.VerifyAccessToken(ctx, token)
	if err != nil {
		slog.DebugContext(ctx, "websocket token rejected", "error", err)
		return ""
	}
	return claims.UserID
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

// identify binds c to userID. A connection is identified at most once.
func (h *Hub) identify(ctx context.Context, c *client, userID string) {
	h.mu.Lock()
	if c.userID != "" {
		h.mu.Unlock()
		return
	}
	c.userID = userID
	h.online[userID]++
	first := h.online[userID] == 1
	h.mu.Unlock()

	if !first {
		return
	}

	pctx, cancel := context.WithTimeout(ctx, presenceTimeout)
	defer cancel()

	if err := h.presence.SetOnline(pctx, userID); err != nil {
		slog.WarnContext(ctx, "set presence online failed",
			"user_id", userID,
			"error", err,
		)
	}
	h.relay.PresenceChanged(ctx, userID)
}

func (h *Hub) unregister(ctx context.Context, c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	userID := c.userID
	last := false
	if userID != "" {
		h.online[userID]--
		if h.online[userID] <= 0 {
			delete(h.online, userID)
			last = true
		}
	}
	h.mu.Unlock()

	c.close()

	if !last {
		return
	}

	pctx, cancel := context.WithTimeout(ctx, presenceTimeout)
	defer cancel()

	if err := h.presence.SetOffline(pctx, userID, time.Now()); err != nil {
		slog.WarnContext(ctx, "set presence offline failed",
			"user_id", userID,
			"error", err,
		)
	}
	h.relay.PresenceChanged(ctx, userID)
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}
