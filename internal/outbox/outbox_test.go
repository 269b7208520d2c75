package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/savos-bot/internal/domain"
	apperrors "github.com/Proton-105/savos-bot/internal/errors"
	"github.com/Proton-105/savos-bot/internal/jobs"
	"github.com/Proton-105/savos-bot/internal/website"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingDeliverer struct {
	mu      sync.Mutex
	changes []Change
	fail    func(attempt int) error
	calls   atomic.Int32
	block   chan struct{}
}

func (d *recordingDeliverer) Deliver(_ context.Context, change Change) error {
	attempt := int(d.calls.Add(1))
	if d.block != nil {
		<-d.block
	}
	if d.fail != nil {
		if err := d.fail(attempt); err != nil {
			return err
		}
	}

	d.mu.Lock()
	d.changes = append(d.changes, change)
	d.mu.Unlock()
	return nil
}

func (d *recordingDeliverer) delivered() []Change {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Change(nil), d.changes...)
}

func fastPolicy(attempts int) apperrors.RetryPolicy {
	return apperrors.RetryPolicy{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func TestMemoryOutbox_DeliversAndDrainsOnClose(t *testing.T) {
	d := &recordingDeliverer{}
	ob := NewMemoryOutbox(d, 2, 16, fastPolicy(1), testLogger())

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, ob.Enqueue(context.Background(), UserChange(&domain.User{ID: i})))
	}

	require.NoError(t, ob.Close(context.Background()))
	assert.Len(t, d.delivered(), 5)

	err := ob.Enqueue(context.Background(), UserChange(&domain.User{ID: 6}))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryOutbox_RetriesRetryableErrors(t *testing.T) {
	d := &recordingDeliverer{fail: func(attempt int) error {
		if attempt < 3 {
			return apperrors.NewExternalAPIError("push_user", 503, nil)
		}
		return nil
	}}
	ob := NewMemoryOutbox(d, 1, 4, fastPolicy(3), testLogger())

	require.NoError(t, ob.Enqueue(context.Background(), UserChange(&domain.User{ID: 1})))
	require.NoError(t, ob.Close(context.Background()))

	assert.Equal(t, int32(3), d.calls.Load())
	assert.Len(t, d.delivered(), 1)
}

func TestMemoryOutbox_DoesNotRetryClientErrors(t *testing.T) {
	d := &recordingDeliverer{fail: func(int) error {
		return apperrors.NewExternalAPIError("push_user", 400, nil)
	}}
	ob := NewMemoryOutbox(d, 1, 4, fastPolicy(5), testLogger())

	require.NoError(t, ob.Enqueue(context.Background(), UserChange(&domain.User{ID: 1})))
	require.NoError(t, ob.Close(context.Background()))

	assert.Equal(t, int32(1), d.calls.Load())
	assert.Empty(t, d.delivered())
}

func TestMemoryOutbox_DropsWhenFull(t *testing.T) {
	d := &recordingDeliverer{block: make(chan struct{})}
	ob := NewMemoryOutbox(d, 1, 1, fastPolicy(1), testLogger())

	require.NoError(t, ob.Enqueue(context.Background(), UserChange(&domain.User{ID: 1})))
	require.Eventually(t, func() bool { return d.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, ob.Enqueue(context.Background(), UserChange(&domain.User{ID: 2})))
	err := ob.Enqueue(context.Background(), UserChange(&domain.User{ID: 3}))
	assert.ErrorIs(t, err, ErrFull)

	close(d.block)
	require.NoError(t, ob.Close(context.Background()))
	assert.Len(t, d.delivered(), 2)
}

func TestMemoryOutbox_RejectsEmptyPayload(t *testing.T) {
	ob := NewMemoryOutbox(&recordingDeliverer{}, 1, 1, fastPolicy(1), testLogger())
	defer ob.Close(context.Background())

	err := ob.Enqueue(context.Background(), Change{Kind: KindUser})
	assert.Error(t, err)

	err = ob.Enqueue(context.Background(), Change{Kind: "bogus"})
	assert.Error(t, err)
}

type fakeRemote struct {
	calls []string
}

func (f *fakeRemote) PushUser(context.Context, *domain.User) (website.Result, error) {
	f.calls = append(f.calls, "push_user")
	return nil, nil
}

func (f *fakeRemote) UpdateUser(context.Context, *domain.User) (website.Result, error) {
	f.calls = append(f.calls, "update_user")
	return nil, nil
}

func (f *fakeRemote) PushStats(context.Context, *domain.Statistics) (website.Result, error) {
	f.calls = append(f.calls, "push_stats")
	return nil, nil
}

func (f *fakeRemote) PushSettings(context.Context, *domain.Settings) (website.Result, error) {
	f.calls = append(f.calls, "push_settings")
	return nil, nil
}

func (f *fakeRemote) Notify(context.Context, *domain.Notification) (website.Result, error) {
	f.calls = append(f.calls, "notify")
	return nil, nil
}

func TestWebsiteDeliverer_RoutesByKind(t *testing.T) {
	tests := []struct {
		name   string
		change Change
		want   string
	}{
		{name: "user", change: UserChange(&domain.User{ID: 1}), want: "push_user"},
		{name: "user update", change: UserUpdateChange(&domain.User{ID: 1}), want: "update_user"},
		{name: "stats", change: StatsChange(&domain.Statistics{}), want: "push_stats"},
		{name: "settings", change: SettingsChange(&domain.Settings{BotName: "x"}), want: "push_settings"},
		{name: "notification", change: NotificationChange(domain.Notification{Type: domain.NotificationSync}), want: "notify"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			remote := &fakeRemote{}
			require.NoError(t, NewWebsiteDeliverer(remote).Deliver(context.Background(), tc.change))
			assert.Equal(t, []string{tc.want}, remote.calls)
		})
	}
}

type fakeManager struct {
	tasks  []*asynq.Task
	err    error
	closed bool
}

func (m *fakeManager) Enqueue(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.tasks = append(m.tasks, task)
	return &asynq.TaskInfo{ID: "1"}, nil
}

func (m *fakeManager) Close() error {
	m.closed = true
	return nil
}

func TestAsynqOutbox_EncodesChange(t *testing.T) {
	mgr := &fakeManager{}
	ob := NewAsynqOutbox(mgr, 3, testLogger())

	change := UserChange(&domain.User{ID: 9, FirstName: "Ivan"})
	require.NoError(t, ob.Enqueue(context.Background(), change))
	require.Len(t, mgr.tasks, 1)
	assert.Equal(t, jobs.TaskTypeDeliver, mgr.tasks[0].Type())

	decoded, err := DecodeChange(mgr.tasks[0].Payload())
	require.NoError(t, err)
	assert.Equal(t, change.ID, decoded.ID)
	assert.Equal(t, "Ivan", decoded.User.FirstName)

	require.NoError(t, ob.Close(context.Background()))
	assert.True(t, mgr.closed)
}

func TestAsynqOutbox_EnqueueFailure(t *testing.T) {
	mgr := &fakeManager{err: errors.New("redis down")}
	ob := NewAsynqOutbox(mgr, 1, testLogger())

	err := ob.Enqueue(context.Background(), StatsChange(&domain.Statistics{}))
	assert.Error(t, err)
}

type staticStats struct{ stats *domain.Statistics }

func (s staticStats) Stats(context.Context) (*domain.Statistics, error) { return s.stats, nil }

func TestRunPeriodicStats(t *testing.T) {
	d := &recordingDeliverer{}
	ob := NewMemoryOutbox(d, 1, 8, fastPolicy(1), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunPeriodicStats(ctx, 10*time.Millisecond, staticStats{stats: &domain.Statistics{TotalUsers: 4}}, ob, testLogger())
		close(done)
	}()

	require.Eventually(t, func() bool { return len(d.delivered()) >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	require.NoError(t, ob.Close(context.Background()))

	for _, change := range d.delivered() {
		assert.Equal(t, KindStats, change.Kind)
		assert.Equal(t, 4, change.Stats.TotalUsers)
	}
}
