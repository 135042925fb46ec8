package relay

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"victim-support/backend/pkg/logger"
	sharedredis "victim-support/backend/shared/redis"
)

// RedisRelay uses redis pub/sub, one channel per room
type RedisRelay struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisRelay connects to addr (host:port or a redis:// URL)
func NewRedisRelay(addr string, log *logger.Logger) (*RedisRelay, error) {
	return &RedisRelay{
		client: sharedredis.NewClient(addr),
		log:    log,
	}, nil
}

func (r *RedisRelay) Name() string { return "redis" }

func (r *RedisRelay) Publish(ctx context.Context, env Envelope) error {
	data, err := encode(env)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, subject(env.RoomID), data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (r *RedisRelay) Subscribe(ctx context.Context, handler Handler) error {
	pubsub := r.client.PSubscribe(ctx, SubjectPrefix+".*")
	// wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				env, err := decode([]byte(msg.Payload))
				if err != nil {
					r.log.LogError(err, "Dropping malformed relay frame", "channel", msg.Channel)
					continue
				}
				if env.RoomID == "" {
					env.RoomID = roomFromSubject(msg.Channel)
				}
				handler(env)
			}
		}
	}()
	return nil
}

func (r *RedisRelay) Ping(ctx context.Context) error {
	return sharedredis.Ping(ctx, r.client)
}

func (r *RedisRelay) Close() error {
	return r.client.Close()
}
