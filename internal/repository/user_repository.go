package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Proton-105/savos-bot/internal/domain"
	apperrors "github.com/Proton-105/savos-bot/internal/errors"
)

// ErrUserNotFound is returned when no record exists for the identifier.
var ErrUserNotFound = errors.New("user not found")

// UpdateFunc mutates u in place. all is the full, read-only list of stored records.
// Returning an error aborts the update without writing.
type UpdateFunc func(u *domain.User, all []*domain.User) error

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Get(ctx context.Context, id int64) (*domain.User, error)
	Upsert(ctx context.Context, patch *domain.User) (*domain.User, bool, error)
	Update(ctx context.Context, id int64, fn UpdateFunc) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	Stats(ctx context.Context) (*domain.Statistics, error)
	Init(ctx context.Context) error
	HealthCheck(ctx context.Context) error
}

type userRepository struct {
	mu        sync.Mutex
	dir       string
	usersPath string
	statsPath string
	log       *slog.Logger
	now       func() time.Time
}

// Option customises a file repository.
type Option func(*userRepository)

// WithClock overrides the time source used for timestamps and "today".
func WithClock(now func() time.Time) Option {
	return func(r *userRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewUserRepository creates a repository over <dir>/users.json. Every call re-reads the file and
// every mutation rewrites it; calls within the process are serialised.
func NewUserRepository(dir string, log *slog.Logger, opts ...Option) UserRepository {
	if log == nil {
		log = slog.Default()
	}

	r := &userRepository{
		dir:       dir,
		usersPath: filepath.Join(dir, usersFileName),
		statsPath: filepath.Join(dir, statisticsFileName),
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Init creates the data directory and empty users and statistics files when missing.
func (r *userRepository) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return apperrors.NewStorageError("create data dir", err)
	}

	exists, err := fileExists(r.usersPath)
	if err != nil {
		return apperrors.NewStorageError("stat users file", err)
	}
	if !exists {
		if err := writeJSON(ctx, r.usersPath, []*domain.User{}); err != nil {
			return apperrors.NewStorageError("init users file", err)
		}
		r.log.Info("created users file", slog.String("path", r.usersPath))
	}

	exists, err = fileExists(r.statsPath)
	if err != nil {
		return apperrors.NewStorageError("stat statistics file", err)
	}
	if !exists {
		if err := writeJSON(ctx, r.statsPath, domain.ComputeStatistics(nil, r.now())); err != nil {
			return apperrors.NewStorageError("init statistics file", err)
		}
	}

	return nil
}

// Get returns a copy of the record for id or ErrUserNotFound.
func (r *userRepository) Get(ctx context.Context, id int64) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	users := r.loadForRead()
	r.mu.Unlock()

	if idx := indexOf(users, id); idx >= 0 {
		return users[idx], nil
	}

	return nil, ErrUserNotFound
}

// List returns copies of all records in file order.
func (r *userRepository) List(ctx context.Context) ([]*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.loadForRead(), nil
}

// Stats recomputes the snapshot from the records.
func (r *userRepository) Stats(ctx context.Context) (*domain.Statistics, error) {
	users, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	return domain.ComputeStatistics(users, r.now()), nil
}

// Upsert merges patch onto the record with the same id or appends it. updated_at is always stamped;
// a created record also gets joined_at and created_at.
func (r *userRepository) Upsert(ctx context.Context, patch *domain.User) (*domain.User, bool, error) {
	if patch == nil || patch.ID == 0 {
		return nil, false, apperrors.NewValidationError("user id is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.loadForWrite()
	if err != nil {
		return nil, false, err
	}

	now := domain.NewTimestamp(r.now())

	var (
		stored  *domain.User
		created bool
	)
	if idx := indexOf(users, patch.ID); idx >= 0 {
		stored = users[idx]
		stored.Merge(patch)
	} else {
		stored = patch.Clone()
		if stored.JoinedAt.IsZero() {
			stored.JoinedAt = now
		}
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
		users = append(users, stored)
		created = true
	}
	stored.UpdatedAt = now

	if err := r.save(ctx, users); err != nil {
		return nil, false, err
	}

	if created {
		r.log.Info("user saved", slog.Int64("user_id", stored.ID))
	} else {
		r.log.Debug("user updated", slog.Int64("user_id", stored.ID))
	}

	return stored.Clone(), created, nil
}

// Update runs fn against the record for id inside the repository lock and persists the result.
func (r *userRepository) Update(ctx context.Context, id int64, fn UpdateFunc) (*domain.User, error) {
	if fn == nil {
		return nil, errors.New("update func cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.loadForWrite()
	if err != nil {
		return nil, err
	}

	idx := indexOf(users, id)
	if idx < 0 {
		return nil, ErrUserNotFound
	}

	working := users[idx].Clone()
	if err := fn(working, users); err != nil {
		return nil, err
	}

	working.ID = id
	working.UpdatedAt = domain.NewTimestamp(r.now())
	users[idx] = working

	if err := r.save(ctx, users); err != nil {
		return nil, err
	}

	return working.Clone(), nil
}

// HealthCheck verifies that the data directory is reachable.
func (r *userRepository) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Stat(r.dir)
	if err != nil {
		return fmt.Errorf("data dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data dir %s is not a directory", r.dir)
	}

	return nil
}

// loadForRead returns the stored records, treating a missing or unreadable file as empty.
func (r *userRepository) loadForRead() []*domain.User {
	users, err := r.load()
	if err != nil {
		r.log.Error("failed to read users file, treating store as empty",
			slog.String("path", r.usersPath),
			slog.Any("error", err),
		)
		return nil
	}

	return users
}

// loadForWrite refuses to continue on an unreadable file so it is never overwritten.
func (r *userRepository) loadForWrite() ([]*domain.User, error) {
	users, err := r.load()
	if err != nil {
		r.log.Error("failed to read users file", slog.String("path", r.usersPath), slog.Any("error", err))
		return nil, apperrors.NewStorageError("read users", err)
	}

	return users, nil
}

func (r *userRepository) load() ([]*domain.User, error) {
	var users []*domain.User
	if err := readJSON(r.usersPath, &users); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	compacted := users[:0]
	for _, u := range users {
		if u != nil {
			compacted = append(compacted, u)
		}
	}

	return compacted, nil
}

func (r *userRepository) save(ctx context.Context, users []*domain.User) error {
	if users == nil {
		users = []*domain.User{}
	}

	if err := writeJSON(ctx, r.usersPath, users); err != nil {
		r.log.Error("failed to write users file", slog.String("path", r.usersPath), slog.Any("error", err))
		return apperrors.NewStorageError("write users", err)
	}

	stats := domain.ComputeStatistics(users, r.now())
	if err := writeJSON(ctx, r.statsPath, stats); err != nil {
		r.log.Warn("failed to write statistics file", slog.String("path", r.statsPath), slog.Any("error", err))
	}

	return nil
}

func indexOf(users []*domain.User, id int64) int {
	for i, u := range users {
		if u.ID == id {
			return i
		}
	}
	return -1
}
