package realtime

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoiceapi/internal/model"
)

func TestRouter_Dispatch(t *testing.T) {
	hub := NewHub(discardLogger(), nil, 0)
	conn := &fakeConn{}
	id := hub.Register(conn)

	router := NewRouter(hub, discardLogger(), time.Second)

	var (
		got   Request
		calls atomic.Int32
	)
	router.Handle(model.ActionCancelImport, func(ctx context.Context, req Request) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		got = req
		calls.Add(1)
	})

	router.Dispatch(id, []byte(`{"action":"cancelImport","transactionId":"T1"}`))
	router.Wait()

	require.Equal(t, int32(1), calls.Load())
	assert.Equal(t, id, got.ConnectionID)
	assert.Equal(t, "T1", got.TransactionID)
	assert.NotEmpty(t, got.RequestID)
	assert.Empty(t, conn.sent())
}

func TestRouter_ZeroTimeoutMeansNoDeadline(t *testing.T) {
	hub := NewHub(discardLogger(), nil, 0)
	id := hub.Register(&fakeConn{})
	router := NewRouter(hub, discardLogger(), 0)

	var (
		ctxErr      error
		hasDeadline bool
	)
	router.Handle(model.ActionGetImportURL, func(ctx context.Context, req Request) {
		_, hasDeadline = ctx.Deadline()
		ctxErr = ctx.Err()
	})

	router.Dispatch(id, []byte(`{"action":"getImportUrl"}`))
	router.Wait()

	assert.False(t, hasDeadline)
	assert.NoError(t, ctxErr)
}

func TestRouter_UnknownAction(t *testing.T) {
	hub := NewHub(discardLogger(), nil, 0)
	conn := &fakeConn{}
	id := hub.Register(conn)

	router := NewRouter(hub, discardLogger(), time.Second)
	router.Dispatch(id, []byte(`{"action":"deleteEverything"}`))
	router.Wait()

	msgs := conn.sent()
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"action":"deleteEverything","error":"UNKNOWN_ACTION"}`, string(msgs[0]))
}

func TestRouter_InvalidJSON(t *testing.T) {
	hub := NewHub(discardLogger(), nil, 0)
	conn := &fakeConn{}
	id := hub.Register(conn)

	router := NewRouter(hub, discardLogger(), time.Second)
	router.Dispatch(id, []byte(`not json`))

	msgs := conn.sent()
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"error":"BAD_REQUEST"}`, string(msgs[0]))
}
