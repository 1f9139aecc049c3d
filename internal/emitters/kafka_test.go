package emitters

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdc-transfer/internal/models"
)

type mockWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func TestKafkaEmitter_WritesEvent(t *testing.T) {
	w := &mockWriter{}
	k := NewKafkaEmitterWithWriter(w)

	event := models.TransferEvent{ID: "id-1", TxHash: "0xabc", Status: models.StatusConfirmed, ChainID: 51, Amount: "1.5"}
	require.NoError(t, k.EmitEvent(event))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "id-1", string(msg.Key))

	var decoded models.TransferEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "0xabc", decoded.TxHash)
	assert.Equal(t, "1.5", decoded.Amount)
	assert.Equal(t, kafka.Header{Key: "chain_id", Value: []byte("51")}, msg.Headers[1])
}

func TestKafkaEmitter_WriteError(t *testing.T) {
	boom := errors.New("leader not available")
	k := NewKafkaEmitterWithWriter(&mockWriter{err: boom})

	err := k.EmitEvent(models.TransferEvent{ID: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestKafkaEmitter_Close(t *testing.T) {
	w := &mockWriter{}
	k := NewKafkaEmitterWithWriter(w)

	require.NoError(t, k.Close())
	assert.True(t, w.closed)
	assert.NoError(t, k.Close())
	assert.Error(t, k.EmitEvent(models.TransferEvent{ID: "late"}))
}
