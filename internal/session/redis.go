package session

import (
	"context"
	"fmt"
	"time"

	"github.com/amoylab/boom/internal/common/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore implements Store with one hash per session plus an index set
// of stored ids, used by Init to wipe the key space.
type RedisStore struct {
	logger *zap.Logger
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis-based session store. The connection is checked by Init.
func NewRedisStore(logger *zap.Logger, cfg *config.StoreConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return &RedisStore{
		logger: logger.Named("session.store.redis"),
		client: client,
		prefix: cfg.Redis.Prefix + ":" + cfg.Table,
	}
}

func (s *RedisStore) key(id string) string { return s.prefix + ":" + id }

func (s *RedisStore) indexKey() string { return s.prefix + ":ids" }

// Init pings the server and removes every session left by a previous run
func (s *RedisStore) Init(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to list stale sessions: %w", err)
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.key(id))
	}
	keys = append(keys, s.indexKey())
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to reset sessions: %w", err)
	}

	s.logger.Info("session key space ready",
		zap.String("prefix", s.prefix),
		zap.Int("stale", len(ids)))
	return nil
}

func (s *RedisStore) Create(ctx context.Context, snap *Snapshot) error {
	data, err := encodeData(snap.Data)
	if err != nil {
		return err
	}
	key := s.key(snap.ID)
	ok, err := s.client.HSetNX(ctx, key, "id", snap.ID).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionExists, snap.ID)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "data", data, "created_at", now, "updated_at", now)
		pipe.SAdd(ctx, s.indexKey(), snap.ID)
		return nil
	})
	return err
}

func (s *RedisStore) Read(ctx context.Context, id string) (*Record, error) {
	fields, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrSessionNotFound
	}
	data, err := decodeData(fields["data"])
	if err != nil {
		return nil, err
	}
	rec := &Record{ID: id, Data: data}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return rec, nil
}

func (s *RedisStore) Update(ctx context.Context, snap *Snapshot) error {
	data, err := encodeData(snap.Data)
	if err != nil {
		return err
	}
	key := s.key(snap.ID)
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return s.client.HSet(ctx, key, "data", data, "updated_at", time.Now().UTC().Format(time.RFC3339Nano)).Err()
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(id))
		pipe.SRem(ctx, s.indexKey(), id)
		return nil
	})
	return err
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
