package realtime

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/CeeFeS/TinyPlanvas/internal/domain/model"
	domainRepo "github.com/CeeFeS/TinyPlanvas/internal/domain/repository"
	"github.com/CeeFeS/TinyPlanvas/pkg/messaging"
)

// Channel prefix for realtime change events on Redis.
const channelPrefix = "realtime."

// RedisSource delivers change events over Redis pub/sub, for deployments
// where the record store publishes changes to a broker instead of (or in
// addition to) its own event stream.
type RedisSource struct {
	client messaging.RedisClient
	logger *zap.Logger
}

// NewRedisSource creates a Redis-backed event source.
func NewRedisSource(client messaging.RedisClient, logger *zap.Logger) *RedisSource {
	return &RedisSource{client: client, logger: logger}
}

// wireEvent is the payload published per change.
type wireEvent struct {
	Action domainRepo.Action `json:"action"`
	Record json.RawMessage   `json:"record"`
}

// Subscribe consumes the collection's channel until the context ends.
func (s *RedisSource) Subscribe(ctx context.Context, collection model.Collection) (<-chan domainRepo.Event, error) {
	messages, err := s.client.Subscribe(ctx, channelPrefix+string(collection))
	if err != nil {
		return nil, err
	}

	ch := make(chan domainRepo.Event)
	go func() {
		defer close(ch)
		for msg := range messages {
			var wire wireEvent
			if err := json.Unmarshal(msg.Payload, &wire); err != nil {
				s.logger.Warn("failed to decode realtime payload",
					zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			select {
			case ch <- domainRepo.Event{
				Collection: collection,
				Action:     wire.Action,
				Record:     wire.Record,
			}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
