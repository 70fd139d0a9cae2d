package handler

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"invoiceapi/internal/database"
	"invoiceapi/internal/realtime"
	"invoiceapi/internal/storage"
)

// ObjectEventProcessor consumes storage-completion records.
type ObjectEventProcessor interface {
	HandleObjectEvents(ctx context.Context, events []storage.ObjectEvent) error
}

// Deps are the collaborators the HTTP surface is wired to.
type Deps struct {
	DB             *sql.DB
	Hub            *realtime.Hub
	Router         *realtime.Router
	Processor      ObjectEventProcessor
	WebhookToken   string
	HandlerTimeout time.Duration
	Gatherer       prometheus.Gatherer
	Logger         *slog.Logger
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())

	if d.Gatherer != nil {
		app.Get("/metrics", Metrics(d.Gatherer))
	}

	app.Post("/events/storage", StorageEvents(d.Processor, d.WebhookToken, d.HandlerTimeout, d.Logger))

	app.Use("/ws", RequireUpgrade())
	app.Get("/ws", WebSocket(d.Hub, d.Router, d.Logger))
}

// HealthCheck checks DB connectivity only.
//
// @Summary Readiness probe
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} errorPayload
// @Router /health [get]
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if db == nil || database.Ping(c.UserContext(), db, 2*time.Second) != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe answers 200 while the process is up.
//
// @Summary Liveness probe
// @Success 200
// @Router /healthz [get]
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// Metrics exposes the registry in the Prometheus text format.
func Metrics(g prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

// StorageEvents accepts S3 event-notification documents from bucket webhooks.
// It answers once every record is processed; a 503 asks the sender to redeliver.
//
// @Summary Storage completion webhook
// @Accept json
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Success 202 {object} map[string]int
// @Failure 400 {object} errorPayload
// @Failure 401 {object} errorPayload
// @Failure 503 {object} errorPayload
// @Router /events/storage [post]
func StorageEvents(p ObjectEventProcessor, token string, timeout time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token != "" && !bearerMatches(c.Get(fiber.HeaderAuthorization), token) {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing token")
		}

		events, err := storage.ParseNotification(c.Body())
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_NOTIFICATION", "malformed event notification")
		}

		ctx := c.UserContext()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		if err := p.HandleObjectEvents(ctx, events); err != nil {
			logger.ErrorContext(ctx, "storage_events_failed",
				"request_id", requestIDFromCtx(c), "records", len(events), "error", err)
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "processing failed, retry later")
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"records": len(events)})
	}
}

func bearerMatches(header, token string) bool {
	got, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}

// RequireUpgrade rejects plain HTTP requests to the realtime endpoint.
func RequireUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	}
}

// WebSocket serves the realtime channel: every connection gets a handle in hub
// and every text message is routed by its action field.
//
// @Summary Realtime channel
// @Description Upgrade to a WebSocket. Send {"action":"getImportUrl"} or {"action":"cancelImport","transactionId":"..."}.
// @Failure 426 {object} errorPayload
// @Router /ws [get]
func WebSocket(hub *realtime.Hub, router *realtime.Router, logger *slog.Logger) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		id := hub.Register(conn)
		logger.Info("ws_connected", "connection_id", id, "remote_addr", conn.RemoteAddr().String())
		defer func() {
			hub.Unregister(id)
			logger.Info("ws_disconnected", "connection_id", id)
		}()

		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Warn("ws_read_failed", "connection_id", id, "error", err)
				}
				return
			}
			if mt != websocket.TextMessage {
				continue
			}
			router.Dispatch(id, msg)
		}
	})
}
