package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKVStore はRedisを使用するKVStore。
// ttlが0より大きい場合、書き込みのたびに有効期限を延長する。
type RedisKVStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisKVStore はRedisKVStoreを生成する。
func NewRedisKVStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisKVStore {
	return &RedisKVStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Get は指定キーの値を取得する。
func (s *RedisKVStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

// Set は指定キーに値を書き込む。
func (s *RedisKVStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete は指定キーを削除する。
func (s *RedisKVStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.prefix + k
	}
	if err := s.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Touch は指定キーの有効期限をttlだけ延長する。ttlが0以下の場合は何もしない。
func (s *RedisKVStore) Touch(ctx context.Context, keys ...string) error {
	if s.ttl <= 0 || len(keys) == 0 {
		return nil
	}
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			pipe.Expire(ctx, s.prefix+k, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis expire: %w", err)
	}
	return nil
}

// RedisChangeNotifier はRedis Pub/Subで変更を通知するChangeNotifier。
type RedisChangeNotifier struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
}

// NewRedisChangeNotifier はRedisChangeNotifierを生成する。
func NewRedisChangeNotifier(client redis.UniversalClient, channel string, logger *slog.Logger) *RedisChangeNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisChangeNotifier{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

// Publish は変更をチャネルに発行する。
func (n *RedisChangeNotifier) Publish(ctx context.Context, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe はチャネルを購読し、受信した変更を返すチャネルを返す。
func (n *RedisChangeNotifier) Subscribe(ctx context.Context) (<-chan Change, error) {
	pubsub := n.client.Subscribe(ctx, n.channel)
	// 購読確立を待つ
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan Change)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					n.logger.Warn("discarding malformed change notification",
						slog.String("channel", n.channel),
						slog.String("error", err.Error()),
					)
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// compile-time interface check
var (
	_ KVStore        = (*RedisKVStore)(nil)
	_ Toucher        = (*RedisKVStore)(nil)
	_ ChangeNotifier = (*RedisChangeNotifier)(nil)
)
