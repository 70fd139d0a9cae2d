package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"invoiceapi/internal/model"
)

const (
	ErrCodeUnknownAction = "UNKNOWN_ACTION"
	ErrCodeBadRequest    = "BAD_REQUEST"
)

// Request is one client message routed to an action handler.
type Request struct {
	ConnectionID  string
	RequestID     string
	TransactionID string
}

// ActionHandler processes a routed message. It reports outcomes to the client itself.
type ActionHandler func(ctx context.Context, req Request)

type errorReply struct {
	Action string `json:"action,omitempty"`
	Error  string `json:"error"`
}

// Router selects a handler by the message's action field.
// Every message runs in its own goroutine bounded by timeout, independent of the connection's lifetime.
type Router struct {
	notifier Notifier
	logger   *slog.Logger
	timeout  time.Duration
	handlers map[string]ActionHandler
	wg       sync.WaitGroup
}

func NewRouter(n Notifier, logger *slog.Logger, timeout time.Duration) *Router {
	return &Router{
		notifier: n,
		logger:   logger.With("component", "router"),
		timeout:  timeout,
		handlers: make(map[string]ActionHandler),
	}
}

// Handle registers h for action. It must be called before Dispatch.
func (r *Router) Handle(action string, h ActionHandler) {
	r.handlers[action] = h
}

// Dispatch decodes raw and starts the matching handler.
func (r *Router) Dispatch(connectionID string, raw []byte) {
	ctx := context.Background()

	var msg model.ClientRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.logger.WarnContext(ctx, "ws_message_invalid", "connection_id", connectionID, "error", err)
		r.notifier.Send(ctx, connectionID, errorReply{Error: ErrCodeBadRequest})
		return
	}

	h, ok := r.handlers[msg.Action]
	if !ok {
		r.logger.WarnContext(ctx, "ws_unknown_action", "connection_id", connectionID, "action", msg.Action)
		r.notifier.Send(ctx, connectionID, errorReply{Action: msg.Action, Error: ErrCodeUnknownAction})
		return
	}

	req := Request{
		ConnectionID:  connectionID,
		RequestID:     uuid.NewString(),
		TransactionID: msg.TransactionID,
	}
	r.logger.InfoContext(ctx, "ws_message_received",
		"connection_id", connectionID, "request_id", req.RequestID, "action", msg.Action)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx := context.Background()
		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		h(ctx, req)
	}()
}

// Wait blocks until every dispatched handler has returned.
func (r *Router) Wait() {
	r.wg.Wait()
}
