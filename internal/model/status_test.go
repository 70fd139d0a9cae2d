package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("PROCESSED")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, st)

	_, err = ParseStatus("INVOICE_PROCESSED")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestStatusJSON(t *testing.T) {
	b, err := json.Marshal(StatusMessage{TransactionID: "T1", Status: StatusTimeout})
	require.NoError(t, err)
	assert.JSONEq(t, `{"transactionId":"T1","status":"TIMEOUT"}`, string(b))

	var msg StatusMessage
	assert.Error(t, json.Unmarshal([]byte(`{"transactionId":"T1","status":"BOGUS"}`), &msg))
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusGenerated, StatusReceived, true},
		{StatusGenerated, StatusCancelled, true},
		{StatusGenerated, StatusTimeout, true},
		{StatusReceived, StatusProcessed, true},
		{StatusReceived, StatusNonValid, true},
		{StatusGenerated, StatusProcessed, false},
		{StatusReceived, StatusCancelled, false},
		{StatusProcessed, StatusCancelled, false},
		{StatusCancelled, StatusReceived, false},
		{StatusTimeout, StatusReceived, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, StatusGenerated.IsTerminal())
	assert.False(t, StatusReceived.IsTerminal())
	for _, st := range []Status{StatusProcessed, StatusCancelled, StatusTimeout, StatusNonValid} {
		assert.True(t, st.IsTerminal(), st)
	}
}

func TestTransactionExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tx := &Transaction{ExpiresAt: now.Add(2 * time.Minute)}

	assert.False(t, tx.Expired(now))
	assert.True(t, tx.Expired(now.Add(2*time.Minute)))
}
