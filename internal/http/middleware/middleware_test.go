package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/echo", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(RequestIDLocalKey).(string))
	})

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "generated when absent"},
		{name: "webhook delivery id kept", incoming: "storage-webhook.42", keep: true},
		{name: "uuid kept", incoming: "0b7c6f1e-2f55-4f9b-9a55-3d3f3a0c2d11", keep: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/echo", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)

			header := resp.Header.Get(RequestIDHeader)
			body, _ := io.ReadAll(resp.Body)
			assert.Equal(t, header, string(body), "locals and header must agree")
			if tt.keep {
				assert.Equal(t, tt.incoming, header)
				return
			}
			_, err = uuid.Parse(header)
			assert.NoError(t, err)
		})
	}
}

func TestRequestID_ReplacesUnsafeValues(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/test", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	for _, bad := range []string{"has space", `quote"d`, strings.Repeat("a", 129)} {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, bad)
		resp, _ := app.Test(req)

		got := resp.Header.Get(RequestIDHeader)
		assert.NotEqual(t, bad, got)
		_, err := uuid.Parse(got)
		assert.NoError(t, err, "replacement for %q should be a uuid", bad)
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(RequestID())
	app.Use(LoggerWithWriter(&buf, time.UTC))
	app.Post("/events/storage", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})

	req := httptest.NewRequest("POST", "/events/storage", nil)
	req.Header.Set(RequestIDHeader, "minio-1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	var line struct {
		TS        string  `json:"ts"`
		Level     string  `json:"level"`
		Msg       string  `json:"msg"`
		RequestID string  `json:"request_id"`
		Method    string  `json:"method"`
		Path      string  `json:"path"`
		Status    int     `json:"status"`
		Latency   float64 `json:"latency"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "http_request", line.Msg)
	assert.Equal(t, "info", line.Level)
	assert.Equal(t, "minio-1", line.RequestID)
	assert.Equal(t, "POST", line.Method)
	assert.Equal(t, "/events/storage", line.Path)
	assert.Equal(t, fiber.StatusAccepted, line.Status)
	assert.GreaterOrEqual(t, line.Latency, 0.0)
	assert.True(t, strings.HasSuffix(line.TS, "Z"), "ts %q should be UTC", line.TS)
}

func TestLogger_ErrorStatus(t *testing.T) {
	var buf bytes.Buffer
	loc := time.FixedZone("WIB", 7*60*60)
	app := fiber.New()
	app.Use(LoggerWithWriter(&buf, loc))

	app.Post("/events/storage", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	})

	req := httptest.NewRequest("POST", "/events/storage", nil)
	_, _ = app.Test(req)

	var logData map[string]any
	assert.NoError(t, json.Unmarshal(buf.Bytes(), &logData))
	assert.Equal(t, float64(fiber.StatusUnauthorized), logData["status"])
	assert.Equal(t, "", logData["request_id"])

	ts, err := time.Parse(time.RFC3339Nano, logData["ts"].(string))
	assert.NoError(t, err)
	_, offset := ts.Zone()
	assert.Equal(t, 7*60*60, offset)
}
