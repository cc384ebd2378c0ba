package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CeeFeS/TinyPlanvas/internal/domain/model"
	domainRepo "github.com/CeeFeS/TinyPlanvas/internal/domain/repository"
	"github.com/CeeFeS/TinyPlanvas/pkg/logger"
	"github.com/CeeFeS/TinyPlanvas/pkg/messaging"
)

// fakeRedis is an in-process stand-in for the pub/sub client.
type fakeRedis struct {
	mu       sync.Mutex
	channels map[string]chan messaging.Message
	err      error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{channels: make(map[string]chan messaging.Message)}
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	f.mu.Lock()
	ch := f.channels[channel]
	f.mu.Unlock()
	if ch != nil {
		ch <- messaging.Message{Channel: channel, Payload: payload, Time: time.Now()}
	}
	return nil
}

func (f *fakeRedis) Subscribe(ctx context.Context, channel string) (<-chan messaging.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan messaging.Message, 16)
	f.channels[channel] = ch
	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.channels[channel] == ch {
			delete(f.channels, channel)
			close(ch)
		}
	}()
	return ch, nil
}

func (f *fakeRedis) Close() error { return nil }

func TestRedisSourceDeliversEvents(t *testing.T) {
	broker := newFakeRedis()
	source := NewRedisSource(broker, logger.DefaultZapLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := source.Subscribe(ctx, model.CollectionAllocations)
	require.NoError(t, err)

	record, _ := json.Marshal(map[string]any{"id": "a1", "resource_id": "r1", "date": "2024-03", "percentage": 50})
	require.NoError(t, broker.Publish(ctx, "realtime.allocations", map[string]any{
		"action": "create",
		"record": json.RawMessage(record),
	}))

	select {
	case ev := <-events:
		assert.Equal(t, model.CollectionAllocations, ev.Collection)
		assert.Equal(t, domainRepo.ActionCreate, ev.Action)
		var allocation model.Allocation
		require.NoError(t, json.Unmarshal(ev.Record, &allocation))
		assert.Equal(t, "a1", allocation.ID.String())
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestRedisSourceSkipsMalformedPayloads(t *testing.T) {
	broker := newFakeRedis()
	source := NewRedisSource(broker, logger.DefaultZapLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := source.Subscribe(ctx, model.CollectionTasks)
	require.NoError(t, err)

	broker.mu.Lock()
	ch := broker.channels["realtime.tasks"]
	broker.mu.Unlock()
	ch <- messaging.Message{Channel: "realtime.tasks", Payload: []byte("not json")}
	require.NoError(t, broker.Publish(ctx, "realtime.tasks", map[string]any{
		"action": "delete",
		"record": json.RawMessage(`{"id":"t1"}`),
	}))

	select {
	case ev := <-events:
		assert.Equal(t, domainRepo.ActionDelete, ev.Action)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestRedisSourcePropagatesSubscribeError(t *testing.T) {
	broker := newFakeRedis()
	broker.err = assert.AnError
	source := NewRedisSource(broker, logger.DefaultZapLogger())

	_, err := source.Subscribe(context.Background(), model.CollectionTasks)
	assert.Error(t, err)
}
