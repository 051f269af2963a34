package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/gofiber/websocket/v2"

	"fraatlas/internal/middleware"
)

const (
	defaultMaxConnsPerUser = 12
	defaultMaxTotalConns   = 10000
)

// Connection limit errors returned by Register.
var (
	ErrServerFull  = errors.New("server connection limit reached")
	ErrUserFull    = errors.New("user connection limit reached")
	ErrHubShutdown = errors.New("hub is shutting down")
)

// HubOptions bounds the number of live connections.
type HubOptions struct {
	MaxConnsPerUser int
	MaxTotalConns   int
}

// Hub is a websocket hub that maps userID -> set of Clients.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	maxPerUser int
	maxTotal   int
	closed     bool
	logger     *slog.Logger
}

// NewHub creates a hub with the given limits. Zero values fall back to
// 12 connections per user and 10000 in total.
func NewHub(opts HubOptions) *Hub {
	if opts.MaxConnsPerUser <= 0 {
		opts.MaxConnsPerUser = defaultMaxConnsPerUser
	}
	if opts.MaxTotalConns <= 0 {
		opts.MaxTotalConns = defaultMaxTotalConns
	}
	return &Hub{
		conns:      make(map[uint]map[*Client]struct{}),
		maxPerUser: opts.MaxConnsPerUser,
		maxTotal:   opts.MaxTotalConns,
		logger:     middleware.Component("notification_hub"),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "notification hub" }

// Register a connection for a given userID. Returns the Client or error if limits exceeded.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubShutdown
	}
	if h.totalConns >= h.maxTotal {
		return nil, ErrServerFull
	}

	m, ok := h.conns[userID]
	if len(m) >= h.maxPerUser {
		return nil, ErrUserFull
	}
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}

	client := NewClient(h, conn, userID)
	m[client] = struct{}{}
	h.totalConns++
	middleware.ActiveWebSockets.Inc()

	return client, nil
}

// UnregisterClient removes client from the hub. Calling it twice is a no-op.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.conns[client.UserID]
	if !ok {
		return
	}
	if _, exists := m[client]; exists {
		delete(m, client)
		h.totalConns--
		middleware.ActiveWebSockets.Dec()
	}
	if len(m) == 0 {
		delete(h.conns, client.UserID)
	}
}

// Broadcast sends message to all connections for userID
func (h *Hub) Broadcast(userID uint, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.conns[userID]; ok {
		data := []byte(message)
		for c := range clients {
			c.TrySend(data)
		}
	}
}

// ConnectionCount returns the number of live connections for userID.
func (h *Hub) ConnectionCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// TotalConnections returns the number of live connections.
func (h *Hub) TotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// StartWiring connects the Notifier to this hub: it subscribes to Redis pattern and
// forwards messages to matching userID connections.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, func(channel, payload string) {
		userID, ok := ParseUserChannel(channel)
		if !ok {
			h.logger.Warn("invalid notification channel", slog.String("channel", channel))
			return
		}
		h.Broadcast(userID, payload)
	})
}

// Shutdown gracefully closes all websocket connections
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	for userID, userConns := range h.conns {
		for client := range userConns {
			middleware.ActiveWebSockets.Dec()
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				h.logger.Debug("write close frame failed", slog.Uint64("user_id", uint64(userID)), slog.Any("error", err))
			}
			if err := client.Conn.Close(); err != nil {
				h.logger.Debug("close websocket failed", slog.Uint64("user_id", uint64(userID)), slog.Any("error", err))
			}
		}
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0

	return nil
}
