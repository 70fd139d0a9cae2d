package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"invoiceapi/internal/http/middleware"
)

// errorPayload is the body of every non-2xx JSON response.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusCodes maps the statuses Fiber itself produces to safe codes and messages.
// Anything else is reported as INTERNAL_ERROR.
var statusCodes = map[int]errorEnvelope{
	fiber.StatusBadRequest:            {"BAD_REQUEST", "bad request"},
	fiber.StatusUnauthorized:          {"UNAUTHORIZED", "unauthorized"},
	fiber.StatusNotFound:              {"NOT_FOUND", "resource not found"},
	fiber.StatusMethodNotAllowed:      {"METHOD_NOT_ALLOWED", "method not allowed"},
	fiber.StatusRequestEntityTooLarge: {"PAYLOAD_TOO_LARGE", "request body too large"},
	fiber.StatusUpgradeRequired:       {"UPGRADE_REQUIRED", "websocket upgrade required"},
	fiber.StatusServiceUnavailable:    {"SERVICE_UNAVAILABLE", "service unavailable"},
}

var internalError = errorEnvelope{"INTERNAL_ERROR", "internal server error"}

func requestIDFromCtx(c *fiber.Ctx) string {
	s, _ := c.Locals(middleware.RequestIDLocalKey).(string)
	return s
}

// writeError never echoes internal error text to the client.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorPayload{
		RequestID: requestIDFromCtx(c),
		Error:     errorEnvelope{Code: code, Message: message},
	})
}

// ErrorHandler is the app-wide Fiber error handler.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		env, ok := statusCodes[status]
		if !ok {
			env = internalError
		}
		return writeError(c, status, env.Code, env.Message)
	}
}
