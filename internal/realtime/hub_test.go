package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoiceapi/internal/model"
)

type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
	writeErr error
	deadline time.Time
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("use of closed connection")
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	c.messages = append(c.messages, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("already closed")
	}
	c.closed = true
	return nil
}

func (c *fakeConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	c.deadline = t
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.messages...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestHub_RegisterSendTerminate(t *testing.T) {
	hub := NewHub(discardLogger(), nil, time.Second)
	conn := &fakeConn{}
	ctx := context.Background()

	id := hub.Register(conn)
	require.NotEmpty(t, id)
	assert.Equal(t, 1, hub.Len())

	assert.True(t, hub.SendStatus(ctx, "T1", id, model.StatusProcessed))
	assert.True(t, hub.Send(ctx, id, model.UploadTarget{URL: "http://u", Expires: 300, TransactionID: "T1"}))
	assert.False(t, conn.deadline.IsZero())

	msgs := conn.sent()
	require.Len(t, msgs, 2)
	assert.JSONEq(t, `{"transactionId":"T1","status":"PROCESSED"}`, string(msgs[0]))
	assert.JSONEq(t, `{"url":"http://u","expires":300,"transactionId":"T1"}`, string(msgs[1]))

	assert.True(t, hub.Terminate(ctx, id))
	assert.True(t, conn.closed)
	assert.Equal(t, 0, hub.Len())

	// A terminated channel swallows every later call.
	assert.False(t, hub.SendStatus(ctx, "T1", id, model.StatusTimeout))
	assert.False(t, hub.Terminate(ctx, id))
}

func TestHub_UnknownConnection(t *testing.T) {
	hub := NewHub(discardLogger(), nil, 0)
	ctx := context.Background()

	assert.False(t, hub.Send(ctx, "missing", map[string]string{"a": "b"}))
	assert.False(t, hub.SendStatus(ctx, "T1", "", model.StatusNotFound))
	assert.False(t, hub.Terminate(ctx, ""))
}

func TestHub_WriteFailureIsSwallowed(t *testing.T) {
	hub := NewHub(discardLogger(), nil, 0)
	conn := &fakeConn{writeErr: errors.New("broken pipe")}
	id := hub.Register(conn)

	assert.False(t, hub.SendStatus(context.Background(), "T1", id, model.StatusReceived))
	// The connection stays registered until terminated or unregistered.
	assert.Equal(t, 1, hub.Len())

	hub.Unregister(id)
	hub.Unregister(id)
	assert.Equal(t, 0, hub.Len())
}

func TestHub_UnencodablePayload(t *testing.T) {
	hub := NewHub(discardLogger(), nil, 0)
	conn := &fakeConn{}
	id := hub.Register(conn)

	assert.False(t, hub.Send(context.Background(), id, make(chan int)))
	assert.Empty(t, conn.sent())
}

func TestHub_ConcurrentWritesAreSerialized(t *testing.T) {
	hub := NewHub(discardLogger(), nil, 0)
	conn := &fakeConn{}
	id := hub.Register(conn)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.SendStatus(ctx, "T1", id, model.StatusReceived)
		}()
	}
	wg.Wait()

	msgs := conn.sent()
	assert.Len(t, msgs, 50)
	for _, m := range msgs {
		var sm model.StatusMessage
		require.NoError(t, json.Unmarshal(m, &sm))
		assert.Equal(t, model.StatusReceived, sm.Status)
	}
}
