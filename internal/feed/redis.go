package feed

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// Redis fans change notices out through Redis Pub/Sub so every service
// instance observes writes made by any other.
type Redis struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedis builds a Pub/Sub feed using channel names prefix+collection.
func NewRedis(client *redis.Client, prefix string, logger *zap.Logger) *Redis {
	return &Redis{client: client, prefix: prefix, logger: logger}
}

func (r *Redis) channel(collection domain.Collection) string {
	return r.prefix + string(collection)
}

// Notify publishes a change notice.
func (r *Redis) Notify(ctx context.Context, collection domain.Collection) error {
	return r.client.Publish(ctx, r.channel(collection), "changed").Err()
}

// Watch subscribes to the collection channel. go-redis resubscribes after
// connection loss; notices published while disconnected are missed and the
// observer keeps its previous snapshot until the next one.
func (r *Redis) Watch(ctx context.Context, collection domain.Collection) (<-chan struct{}, error) {
	sub := r.client.Subscribe(ctx, r.channel(collection))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer sub.Close() //nolint:errcheck
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					r.logger.Warn("feed channel closed", zap.String("collection", string(collection)))
					return
				}
				signal(out)
			}
		}
	}()
	return out, nil
}
