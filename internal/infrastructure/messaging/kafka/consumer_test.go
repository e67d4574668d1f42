package kafka

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/padel-featurizer/internal/testutil"
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// mockKafkaReader serves queued messages, then blocks until cancelled.
type mockKafkaReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (m *mockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	if len(m.queue) > 0 {
		msg := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return msg, nil
	}
	m.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockKafkaReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed = append(m.committed, msgs...)
	return nil
}

func (m *mockKafkaReader) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockKafkaReader) committedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.committed)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*ProducerMessage
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, msg *ProducerMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) published() []*ProducerMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*ProducerMessage(nil), p.msgs...)
}

func newTestConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers: []string{"localhost:9092"},
		GroupID: "padel-featurizer",
		Topics:  []string{"padel.featurize.requests"},
		RetryConfig: RetryConfig{
			MaxRetries:      2,
			RetryBackoff:    time.Millisecond,
			DeadLetterTopic: "padel.featurize.dlq",
		},
	}
}

func TestValidateConsumerConfig(t *testing.T) {
	assert.NoError(t, ValidateConsumerConfig(newTestConsumerConfig()))

	tests := []struct {
		name   string
		mutate func(*ConsumerConfig)
	}{
		{"no brokers", func(c *ConsumerConfig) { c.Brokers = nil }},
		{"no group", func(c *ConsumerConfig) { c.GroupID = "" }},
		{"no topics", func(c *ConsumerConfig) { c.Topics = nil }},
		{"bad offset reset", func(c *ConsumerConfig) { c.AutoOffsetReset = "middle" }},
		{"negative retries", func(c *ConsumerConfig) { c.RetryConfig.MaxRetries = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConsumerConfig()
			tt.mutate(&cfg)
			assert.True(t, errors.IsCode(ValidateConsumerConfig(cfg), errors.ErrCodeValidation))
		})
	}
}

func TestConsumer_StartTwice(t *testing.T) {
	c := newConsumer(&mockKafkaReader{}, newTestConsumerConfig(), nil, nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()
	assert.Equal(t, ErrAlreadyRunning, c.Start(context.Background()))
}

func TestConsumer_HandlesAndCommits(t *testing.T) {
	reader := &mockKafkaReader{queue: []kafka.Message{
		{Topic: "padel.featurize.requests", Value: []byte("a"), Headers: []kafka.Header{{Key: "trace_id", Value: []byte("t1")}}},
		{Topic: "other", Value: []byte("b")},
	}}
	c := newConsumer(reader, newTestConsumerConfig(), nil, nil)

	got := make(chan *Message, 1)
	c.Subscribe("padel.featurize.requests", func(_ context.Context, msg *Message) error {
		got <- msg
		return nil
	})
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	select {
	case msg := <-got:
		assert.Equal(t, "a", string(msg.Value))
		assert.Equal(t, "t1", msg.Headers["trace_id"])
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
	// Unrouted messages are committed too.
	assert.Eventually(t, func() bool { return reader.committedCount() == 2 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return c.Stats().Processed == 1 }, time.Second, 5*time.Millisecond)
}

func TestProcessMessage_RetrySuccess(t *testing.T) {
	c := newConsumer(&mockKafkaReader{}, newTestConsumerConfig(), nil, nil)

	attempts := 0
	err := c.processMessage(context.Background(), &Message{}, func(context.Context, *Message) error {
		attempts++
		if attempts < 2 {
			return assert.AnError
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, int64(1), c.Stats().Retried)
	assert.Equal(t, int64(1), c.Stats().Processed)
}

func TestProcessMessage_ExhaustedGoesToDeadLetter(t *testing.T) {
	dlq := &recordingPublisher{}
	log := testutil.NewMockLogger()
	c := newConsumer(&mockKafkaReader{}, newTestConsumerConfig(), dlq, log)

	attempts := 0
	msg := &Message{Topic: "padel.featurize.requests", Key: []byte("job-1"), Value: []byte("{}"), Headers: map[string]string{"trace_id": "t1"}}
	err := c.processMessage(context.Background(), msg, func(context.Context, *Message) error {
		attempts++
		return errors.New(errors.ErrCodePadelExecutionFailed, "java exited 1")
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	sent := dlq.published()
	require.Len(t, sent, 1)
	assert.Equal(t, "padel.featurize.dlq", sent[0].Topic)
	assert.Equal(t, "job-1", string(sent[0].Key))
	assert.Equal(t, "padel.featurize.requests", sent[0].Headers[HeaderOriginalTopic])
	assert.Equal(t, "PADEL_001", sent[0].Headers[HeaderErrorCode])
	assert.Equal(t, "3", sent[0].Headers[HeaderAttempts])
	assert.Equal(t, "t1", sent[0].Headers["trace_id"])
	_, mutated := msg.Headers[HeaderOriginalTopic]
	assert.False(t, mutated)

	assert.Equal(t, int64(1), c.Stats().DeadLettered)
	assert.True(t, log.HasMessage("error", "Message processing failed"))
}

func TestProcessMessage_PermanentSkipsRetries(t *testing.T) {
	dlq := &recordingPublisher{}
	c := newConsumer(&mockKafkaReader{}, newTestConsumerConfig(), dlq, nil)

	attempts := 0
	err := c.processMessage(context.Background(), &Message{Value: []byte("x")}, func(context.Context, *Message) error {
		attempts++
		return Permanent(assert.AnError)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Len(t, dlq.published(), 1)
	assert.Equal(t, int64(0), c.Stats().Retried)
}

func TestProcessMessage_DeadLetterFailureIsLogged(t *testing.T) {
	log := testutil.NewMockLogger()
	c := newConsumer(&mockKafkaReader{}, newTestConsumerConfig(), &recordingPublisher{err: assert.AnError}, log)

	err := c.processMessage(context.Background(), &Message{}, func(context.Context, *Message) error {
		return Permanent(assert.AnError)
	})
	assert.NoError(t, err)
	assert.True(t, log.HasMessage("error", "Failed to send to dead letter topic"))
	assert.Equal(t, int64(0), c.Stats().DeadLettered)
}

func TestProcessMessage_CancelledDuringBackoff(t *testing.T) {
	cfg := newTestConsumerConfig()
	cfg.RetryConfig.RetryBackoff = time.Hour
	c := newConsumer(&mockKafkaReader{}, cfg, &recordingPublisher{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	err := c.processMessage(ctx, &Message{}, func(context.Context, *Message) error {
		cancel()
		return assert.AnError
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))
	err := Permanent(assert.AnError)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, IsPermanent(assert.AnError))
}

func TestConsumer_Close(t *testing.T) {
	reader := &mockKafkaReader{}
	c := newConsumer(reader, newTestConsumerConfig(), nil, nil)
	assert.NoError(t, c.Close())
	assert.False(t, reader.closed)

	require.NoError(t, c.Start(context.Background()))
	assert.NoError(t, c.Close())
	assert.True(t, reader.closed)
}
