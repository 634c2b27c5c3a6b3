package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"notification-workers/internal/common/logger"
	"notification-workers/internal/models"
	"notification-workers/internal/notification/dispatcher"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockReader serves queued messages, then blocks until cancelled.
type MockReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (m *MockReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	if len(m.messages) > 0 {
		msg := m.messages[0]
		m.messages = m.messages[1:]
		m.mu.Unlock()
		return msg, nil
	}
	m.mu.Unlock()
	m.cancel()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *MockReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		m.committed = append(m.committed, msg.Offset)
	}
	return nil
}

func (m *MockReader) Close() error { return nil }

type MockDispatcher struct {
	events []models.ChangeEvent
}

func (m *MockDispatcher) Handle(ctx context.Context, event models.ChangeEvent) dispatcher.Report {
	m.events = append(m.events, event)
	return dispatcher.Report{Outcome: dispatcher.OutcomeDispatched}
}

func TestConsumer_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &MockReader{
		cancel: cancel,
		messages: []kafka.Message{
			{Topic: "cdc", Partition: 0, Offset: 10, Value: []byte(`{"eventId":"evt-1","entityKind":"job","entityId":"J1","before":{"status":"a"},"after":{"status":"b"}}`)},
			{Topic: "cdc", Partition: 0, Offset: 11, Value: []byte(`{garbage`)},
			{Topic: "cdc", Partition: 2, Offset: 12, Value: []byte(`{"entityKind":"listing","entityId":"L1","after":{"status":"active"}}`)},
		},
	}
	d := &MockDispatcher{}
	consumer := NewConsumer(reader, d, logger.NewTestLogger(t))

	require.NoError(t, consumer.Run(ctx))

	require.Len(t, d.events, 2)
	assert.Equal(t, "evt-1", d.events[0].EventID)
	assert.Equal(t, "cdc-2-12", d.events[1].EventID)
	assert.True(t, d.events[1].IsCreate())
	assert.Equal(t, []int64{10, 11, 12}, reader.committed)
}

type failingReader struct {
	MockReader
	failures int
}

func (f *failingReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if f.failures > 0 {
		f.failures--
		return kafka.Message{}, errors.New("broker not available")
	}
	return f.MockReader.FetchMessage(ctx)
}

func TestConsumer_Run_RetriesFetchErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &failingReader{
		MockReader: MockReader{
			cancel:   cancel,
			messages: []kafka.Message{{Topic: "cdc", Offset: 1, Value: []byte(`{"entityKind":"user","entityId":"U1","before":{},"after":{"status":"approved"}}`)}},
		},
		failures: 1,
	}
	d := &MockDispatcher{}

	require.NoError(t, NewConsumer(reader, d, logger.NewTestLogger(t)).Run(ctx))
	assert.Len(t, d.events, 1)
}
