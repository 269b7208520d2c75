package idempotency

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"

	keyPrefix = "idempotency:"
)

// Record is the stored state of one update key.
type Record struct {
	Status    string
	Response  []byte
	UpdatedAt time.Time
}

// Store persists idempotency records and their locks.
// Lock returns an owner token, empty when another worker holds the key;
// ReleaseLock only removes a lock still owned by that token.
type Store interface {
	Lock(ctx context.Context, key string, lockTTL time.Duration) (string, error)
	Get(ctx context.Context, key string) (*Record, error)
	Set(ctx context.Context, key string, record *Record, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	ReleaseLock(ctx context.Context, key, token string) error
}

// compare-and-delete so an expired lock taken over by another worker survives
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisStore struct {
	client *redis.Client
	now    func() time.Time
	log    *slog.Logger
}

func NewRedisStore(client *redis.Client, log *slog.Logger) Store {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{client: client, now: time.Now, log: log}
}

func (s *RedisStore) Lock(ctx context.Context, key string, lockTTL time.Duration) (string, error) {
	token := uuid.NewString()
	acquired, err := s.client.SetNX(ctx, lockKey(key), token, lockTTL).Result()
	if err != nil {
		s.log.Error("failed to acquire idempotency lock", slog.String("key", key), slog.Any("error", err))
		return "", err
	}
	if !acquired {
		return "", nil
	}
	return token, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	fields, err := s.client.HGetAll(ctx, recordKey(key)).Result()
	if err != nil {
		s.log.Error("failed to fetch idempotency record", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	record := &Record{Status: fields["status"], Response: []byte(fields["response"])}
	if ms, err := strconv.ParseInt(fields["updated_at"], 10, 64); err == nil {
		record.UpdatedAt = time.UnixMilli(ms)
	}
	return record, nil
}

// Set writes the fields and the expiry in one transaction.
func (s *RedisStore) Set(ctx context.Context, key string, record *Record, ttl time.Duration) error {
	if record == nil {
		return nil
	}

	rk := recordKey(key)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, rk,
			"status", record.Status,
			"response", string(record.Response),
			"updated_at", s.now().UnixMilli(),
		)
		pipe.Expire(ctx, rk, ttl)
		return nil
	})
	if err != nil {
		s.log.Error("failed to store idempotency record",
			slog.String("key", key),
			slog.String("status", record.Status),
			slog.Any("error", err),
		)
		return err
	}

	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, recordKey(key)).Err(); err != nil {
		s.log.Error("failed to delete idempotency record", slog.String("key", key), slog.Any("error", err))
		return err
	}
	return nil
}

func (s *RedisStore) ReleaseLock(ctx context.Context, key, token string) error {
	if token == "" {
		return nil
	}

	released, err := releaseScript.Run(ctx, s.client, []string{lockKey(key)}, token).Int()
	if err != nil {
		s.log.Error("failed to release idempotency lock", slog.String("key", key), slog.Any("error", err))
		return err
	}
	if released == 0 {
		s.log.Warn("idempotency lock expired before release", slog.String("key", key))
	}
	return nil
}

func recordKey(key string) string {
	return keyPrefix + key
}

func lockKey(key string) string {
	return keyPrefix + key + ":lock"
}
