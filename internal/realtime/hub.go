package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/rs/xid"

	"invoiceapi/internal/metrics"
	"invoiceapi/internal/model"
)

// Conn is the part of a websocket connection the hub needs.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type deadlineSetter interface {
	SetWriteDeadline(t time.Time) error
}

// Notifier pushes to and terminates client channels by connection handle.
// Every method is best effort: a channel that is already gone yields false, never an error.
type Notifier interface {
	Send(ctx context.Context, connectionID string, payload any) bool
	SendStatus(ctx context.Context, transactionID, connectionID string, status model.Status) bool
	Terminate(ctx context.Context, connectionID string) bool
}

type session struct {
	// mu serializes writes; websocket connections allow one concurrent writer.
	mu   sync.Mutex
	conn Conn
}

// Hub is the in-process registry of live realtime connections.
type Hub struct {
	mu           sync.RWMutex
	sessions     map[string]*session
	writeTimeout time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

var _ Notifier = (*Hub)(nil)

// NewHub creates an empty hub. m may be nil.
func NewHub(logger *slog.Logger, m *metrics.Metrics, writeTimeout time.Duration) *Hub {
	return &Hub{
		sessions:     make(map[string]*session),
		writeTimeout: writeTimeout,
		logger:       logger.With("component", "realtime"),
		metrics:      m,
	}
}

// Register adds conn and returns its connection handle.
func (h *Hub) Register(conn Conn) string {
	id := xid.New().String()
	h.mu.Lock()
	h.sessions[id] = &session{conn: conn}
	h.mu.Unlock()
	h.metrics.ConnectionOpened()
	return id
}

// Unregister forgets the handle without closing the connection. Unknown handles are ignored.
func (h *Hub) Unregister(connectionID string) {
	if h.remove(connectionID) != nil {
		h.metrics.ConnectionClosed()
	}
}

// Len reports the number of registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) Send(ctx context.Context, connectionID string, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.ErrorContext(ctx, "push_encode_failed", "connection_id", connectionID, "error", err)
		return false
	}
	ok := h.write(ctx, connectionID, data)
	h.metrics.Push("data", ok)
	return ok
}

func (h *Hub) SendStatus(ctx context.Context, transactionID, connectionID string, status model.Status) bool {
	data, err := json.Marshal(model.StatusMessage{TransactionID: transactionID, Status: status})
	if err != nil {
		h.logger.ErrorContext(ctx, "push_encode_failed", "connection_id", connectionID, "error", err)
		return false
	}
	ok := h.write(ctx, connectionID, data)
	h.metrics.Push("status", ok)
	return ok
}

// Terminate closes the connection and removes it from the hub.
func (h *Hub) Terminate(ctx context.Context, connectionID string) bool {
	s := h.remove(connectionID)
	if s == nil {
		h.logger.DebugContext(ctx, "terminate_unknown_connection", "connection_id", connectionID)
		return false
	}
	h.metrics.ConnectionClosed()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.Close(); err != nil {
		h.logger.DebugContext(ctx, "terminate_failed", "connection_id", connectionID, "error", err)
		return false
	}
	return true
}

func (h *Hub) write(ctx context.Context, connectionID string, data []byte) bool {
	h.mu.RLock()
	s := h.sessions[connectionID]
	h.mu.RUnlock()
	if s == nil {
		h.logger.DebugContext(ctx, "push_unknown_connection", "connection_id", connectionID)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.conn.(deadlineSetter); ok && h.writeTimeout > 0 {
		_ = d.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.DebugContext(ctx, "push_failed", "connection_id", connectionID, "error", err)
		return false
	}
	return true
}

func (h *Hub) remove(connectionID string) *session {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[connectionID]
	if !ok {
		return nil
	}
	delete(h.sessions, connectionID)
	return s
}
