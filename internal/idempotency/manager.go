package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
)

// ErrRequestInProgress is returned when another worker holds the key.
var ErrRequestInProgress = errors.New("request with this key is already in progress")

const (
	defaultLockTTL = 5 * time.Minute
	pollInterval   = 100 * time.Millisecond
)

type Operation func(ctx context.Context) (interface{}, error)

type Result struct {
	Response  interface{}
	FromCache bool
}

// Manager runs an operation at most once per key within the TTL.
type Manager interface {
	Execute(
		ctx context.Context,
		key string,
		ttl time.Duration,
		fn Operation,
	) (*Result, error)
}

type manager struct {
	store   Store
	lockTTL time.Duration
	log     *slog.Logger
}

func NewManager(store Store, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		store:   store,
		lockTTL: defaultLockTTL,
		log:     log,
	}
}

// Execute runs fn unless a completed record exists for key. A failed fn leaves no record,
// so a redelivered update is processed again.
func (m *manager) Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if fn == nil {
		return nil, errors.New("operation fn cannot be nil")
	}

	for {
		record, err := m.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if record != nil && record.Status == StatusCompleted {
			return cachedResult(record)
		}

		token, err := m.store.Lock(ctx, key, m.lockTTL)
		if err != nil {
			return nil, err
		}
		if token != "" {
			return m.run(ctx, key, token, ttl, fn)
		}

		if record != nil && record.Status == StatusProcessing {
			return nil, ErrRequestInProgress
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (m *manager) run(ctx context.Context, key, token string, ttl time.Duration, fn Operation) (*Result, error) {
	defer func() {
		if err := m.store.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
			m.log.Warn("idempotency lock not released", slog.String("key", key), slog.Any("error", err))
		}
	}()

	if err := m.store.Set(ctx, key, &Record{Status: StatusProcessing}, m.lockTTL); err != nil {
		return nil, err
	}

	result, err := fn(ctx)
	if err != nil {
		if delErr := m.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			m.log.Warn("idempotency record not cleared", slog.String("key", key), slog.Any("error", delErr))
		}
		return nil, err
	}

	responseBytes, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	if err := m.store.Set(ctx, key, &Record{
		Status:   StatusCompleted,
		Response: responseBytes,
	}, ttl); err != nil {
		return nil, err
	}

	return &Result{Response: result, FromCache: false}, nil
}

func cachedResult(record *Record) (*Result, error) {
	var response interface{}
	if len(record.Response) > 0 {
		if err := json.Unmarshal(record.Response, &response); err != nil {
			return nil, err
		}
	}
	return &Result{Response: response, FromCache: true}, nil
}
