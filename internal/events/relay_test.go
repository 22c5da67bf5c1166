package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/imageshop/internal/model"
)

type memOutbox struct {
	mu      sync.Mutex
	events  []model.OrderEvent
	sent    map[int64]bool
	markErr error
}

func (m *memOutbox) FetchPendingEvents(ctx context.Context, limit int) ([]model.OrderEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res []model.OrderEvent
	for _, e := range m.events {
		if !m.sent[e.ID] && len(res) < limit {
			res = append(res, e)
		}
	}
	return res, nil
}

func (m *memOutbox) MarkEventsSent(ctx context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.markErr != nil {
		return m.markErr
	}
	for _, id := range ids {
		m.sent[id] = true
	}
	return nil
}

func (m *memOutbox) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type stubPublisher struct {
	mu        sync.Mutex
	published []model.OrderEvent
	err       error
}

func (p *stubPublisher) Publish(ctx context.Context, batch []model.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, batch...)
	return nil
}

func newOutbox(n int) *memOutbox {
	o := &memOutbox{sent: make(map[int64]bool)}
	for i := 1; i <= n; i++ {
		o.events = append(o.events, model.OrderEvent{
			ID:       int64(i),
			OrderID:  uuid.New(),
			UserID:   42,
			Status:   model.OrderStatusCompleted,
			Amount:   999,
			Currency: "USD",
		})
	}
	return o
}

func TestRelayFlush(t *testing.T) {
	outbox := newOutbox(3)
	pub := &stubPublisher{}
	relay := NewRelay(outbox, pub, time.Second, nil)

	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, pub.published, 3)
	assert.Equal(t, 3, outbox.sentCount())

	n, err = relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRelayFlush_PublishErrorKeepsEvents(t *testing.T) {
	outbox := newOutbox(2)
	pub := &stubPublisher{err: errors.New("broker down")}
	relay := NewRelay(outbox, pub, time.Second, nil)

	_, err := relay.Flush(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, outbox.sentCount())

	pub.err = nil
	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRelayRun_DrainsBacklog(t *testing.T) {
	outbox := newOutbox(relayBatchSize + 5)
	pub := &stubPublisher{}
	relay := NewRelay(outbox, pub, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.Eventually(t, func() bool {
		return outbox.sentCount() == relayBatchSize+5
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestEncodeEvent(t *testing.T) {
	e := model.OrderEvent{
		ID:        7,
		OrderID:   uuid.MustParse("8f1c2f4e-4d7b-4c52-9a57-3a1f1d0f6b11"),
		UserID:    42,
		Status:    model.OrderStatusFailed,
		Amount:    4999,
		Currency:  "USD",
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	msg, err := EncodeEvent(e)
	require.NoError(t, err)
	assert.Equal(t, "8f1c2f4e-4d7b-4c52-9a57-3a1f1d0f6b11", string(msg.Key))

	var got Message
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, Message{
		OrderID:    e.OrderID.String(),
		UserID:     42,
		Status:     "failed",
		Amount:     4999,
		Currency:   "USD",
		OccurredAt: e.CreatedAt,
	}, got)
}

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, ParseBrokers(" a:9092, ,b:9092 "))
	assert.Nil(t, ParseBrokers(""))
}
