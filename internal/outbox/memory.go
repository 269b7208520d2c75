package outbox

import (
	"context"
	"log/slog"
	"sync"

	apperrors "github.com/Proton-105/savos-bot/internal/errors"
	"github.com/Proton-105/savos-bot/pkg/metrics"
)

// MemoryOutbox is a bounded in-process queue drained by a fixed set of workers.
// Pending changes are lost when the process exits.
type MemoryOutbox struct {
	queue     chan Change
	deliverer Deliverer
	policy    apperrors.RetryPolicy
	log       *slog.Logger

	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ Outbox = (*MemoryOutbox)(nil)

// NewMemoryOutbox starts workers goroutines delivering through deliverer.
func NewMemoryOutbox(deliverer Deliverer, workers, queueSize int, policy apperrors.RetryPolicy, log *slog.Logger) *MemoryOutbox {
	if log == nil {
		log = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &MemoryOutbox{
		queue:     make(chan Change, queueSize),
		deliverer: deliverer,
		policy:    policy,
		log:       log.With(slog.String("component", "outbox")),
		ctx:       ctx,
		cancel:    cancel,
	}

	for i := 0; i < workers; i++ {
		o.wg.Add(1)
		go o.run()
	}

	return o
}

// Enqueue never blocks: a full queue drops the change and returns ErrFull.
func (o *MemoryOutbox) Enqueue(_ context.Context, change Change) error {
	if err := change.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error())
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return ErrClosed
	}

	select {
	case o.queue <- change:
		metrics.RecordOutboxEnqueued(string(change.Kind))
		return nil
	default:
		metrics.RecordOutboxDropped(string(change.Kind))
		o.log.Warn("outbox full, change dropped",
			slog.String("change_id", change.ID),
			slog.String("kind", string(change.Kind)),
		)
		return ErrFull
	}
}

// Close stops accepting changes and waits for queued ones to be delivered.
// When ctx expires first, in-flight retries are cancelled and the rest is discarded.
func (o *MemoryOutbox) Close(ctx context.Context) error {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.cancel()
		return nil
	case <-ctx.Done():
		o.cancel()
		<-done
		return ctx.Err()
	}
}

func (o *MemoryOutbox) run() {
	defer o.wg.Done()

	for change := range o.queue {
		if o.ctx.Err() != nil {
			metrics.RecordOutboxDropped(string(change.Kind))
			continue
		}
		o.deliver(change)
	}
}

func (o *MemoryOutbox) deliver(change Change) {
	err := o.policy.Do(o.ctx, func() error {
		return o.deliverer.Deliver(o.ctx, change)
	})
	metrics.RecordOutboxDelivery(string(change.Kind), err)

	if err != nil {
		o.log.Warn("outbox delivery failed",
			slog.String("change_id", change.ID),
			slog.String("kind", string(change.Kind)),
			slog.Any("error", err),
		)
		return
	}

	o.log.Debug("outbox change delivered",
		slog.String("change_id", change.ID),
		slog.String("kind", string(change.Kind)),
	)
}
