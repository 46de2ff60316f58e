package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "ecograd:events"

type envelope struct {
	UserIDs []uint64        `json:"user_ids"`
	Event   json.RawMessage `json:"event"`
}

// RedisRelay fans events out through Redis pub/sub so every API instance
// delivers them to its own connections.
type RedisRelay struct {
	rdb     *redis.Client
	hub     *Hub
	channel string
	logger  *slog.Logger
	live    atomic.Bool
}

func NewRedisRelay(rdb *redis.Client, hub *Hub, channel string, logger *slog.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRelay{rdb: rdb, hub: hub, channel: channel, logger: logger}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func encodeEnvelope(userIDs []uint64, ev Event) ([]byte, error) {
	frame, err := encode(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{UserIDs: userIDs, Event: frame})
}

func decodeEnvelope(payload string) ([]uint64, []byte, error) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return nil, nil, err
	}
	return env.UserIDs, env.Event, nil
}

// Publish sends ev through Redis while the subscription is live. Otherwise,
// or when Redis rejects the publish, it delivers to local connections only.
func (r *RedisRelay) Publish(ctx context.Context, userIDs []uint64, ev Event) error {
	if !r.live.Load() {
		return r.hub.Publish(ctx, userIDs, ev)
	}
	b, err := encodeEnvelope(userIDs, ev)
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, r.channel, b).Err(); err != nil {
		r.logger.Warn("relay publish failed, delivering locally", "channel", r.channel, "err", err)
		return r.hub.Publish(ctx, userIDs, ev)
	}
	return nil
}

// Start subscribes to the relay channel and forwards messages to the hub
// until ctx is done. It fails when the subscription cannot be confirmed.
func (r *RedisRelay) Start(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.Info("push relay subscribed", "channel", r.channel)
	r.live.Store(true)
	go r.forward(ctx, sub)
	return nil
}

func (r *RedisRelay) forward(ctx context.Context, sub *redis.PubSub) {
	defer func() {
		r.live.Store(false)
		_ = sub.Close()
	}()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				r.logger.Warn("push relay channel closed, delivering locally", "channel", r.channel)
				return
			}
			ids, frame, err := decodeEnvelope(msg.Payload)
			if err != nil {
				r.logger.Warn("bad relay payload", "err", err)
				continue
			}
			r.hub.Deliver(ids, frame)
		}
	}
}

// Live reports whether events currently travel through Redis.
func (r *RedisRelay) Live() bool {
	return r.live.Load()
}

var _ Publisher = (*RedisRelay)(nil)
