package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Proton-105/savos-bot/internal/domain"
	apperrors "github.com/Proton-105/savos-bot/internal/errors"
	"github.com/Proton-105/savos-bot/internal/outbox"
	"github.com/Proton-105/savos-bot/internal/repository"
	"github.com/Proton-105/savos-bot/internal/state"
)

var (
	// ErrInvalidPhone is returned for free text that is not a usable phone number.
	ErrInvalidPhone = errors.New("invalid phone number")
	// ErrForeignContact is returned when a shared contact belongs to someone else.
	ErrForeignContact = errors.New("contact belongs to another user")
	// ErrNotStarted is returned when a phone arrives before /start.
	ErrNotStarted = errors.New("user has not started the bot")
	// ErrAlreadyRegistered is returned when a registered user submits a phone again.
	ErrAlreadyRegistered = errors.New("user already registered")
)

// Profile is the chat-platform view of a user attached to every update.
type Profile struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
	PhotoURL     string
}

func (p Profile) patch() *domain.User {
	u := &domain.User{
		ID:           p.ID,
		Username:     p.Username,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		LanguageCode: p.LanguageCode,
		ProfileLink:  domain.ProfileLinkFor(p.Username),
	}
	if p.PhotoURL != "" {
		u.PhotoURL = domain.Ptr(p.PhotoURL)
	}
	return u
}

// StartResult describes the outcome of /start.
type StartResult struct {
	User    *domain.User
	State   state.State
	Created bool
}

// SyncReport counts what /sync queued for delivery.
type SyncReport struct {
	Users          int
	UsersQueued    int
	UsersFailed    int
	StatsQueued    bool
	SettingsQueued bool
}

// SettingsSource provides the current bot settings.
type SettingsSource interface {
	Get(ctx context.Context) (*domain.Settings, error)
}

// Service implements the onboarding flow on top of the record store.
// Local writes always complete before anything is handed to the outbox.
type Service struct {
	repo     repository.UserRepository
	settings SettingsSource
	outbox   outbox.Outbox
	log      *slog.Logger
}

// NewService constructs a new Service instance.
func NewService(repo repository.UserRepository, settings SettingsSource, ob outbox.Outbox, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{repo: repo, settings: settings, outbox: ob, log: log}
}

// Get returns the stored record.
func (s *Service) Get(ctx context.Context, id int64) (*domain.User, error) {
	return s.repo.Get(ctx, id)
}

// State returns the conversation state of id; unknown when no record exists.
func (s *Service) State(ctx context.Context, id int64) (state.State, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return state.StateUnknown, nil
		}
		return state.StateUnknown, err
	}

	return u.ConversationState(), nil
}

// Stats returns the current statistics snapshot.
func (s *Service) Stats(ctx context.Context) (*domain.Statistics, error) {
	return s.repo.Stats(ctx)
}

// Start handles /start. New users get a bare record awaiting a phone number and nothing is pushed;
// known users have their names refreshed.
func (s *Service) Start(ctx context.Context, p Profile) (*StartResult, error) {
	existing, err := s.repo.Get(ctx, p.ID)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	patch := p.patch()

	if existing != nil {
		current := existing.ConversationState()
		patch.State = current

		stored, _, err := s.repo.Upsert(ctx, patch)
		if err != nil {
			s.logError("start.refresh", p.ID, err)
			return nil, err
		}

		return &StartResult{User: stored, State: current}, nil
	}

	if err := s.checkCapacity(ctx); err != nil {
		return nil, err
	}

	if err := state.Transition(state.StateUnknown, state.StateAwaitingPhone); err != nil {
		return nil, apperrors.NewStateError(err.Error())
	}

	patch.IsActive = domain.Ptr(true)
	patch.State = state.StateAwaitingPhone

	stored, created, err := s.repo.Upsert(ctx, patch)
	if err != nil {
		s.logError("start.create", p.ID, err)
		return nil, err
	}

	s.log.Info("user started onboarding", slog.Int64("user_id", p.ID))

	return &StartResult{User: stored, State: state.StateAwaitingPhone, Created: created}, nil
}

// RegisterPhone validates free-text input and completes registration.
func (s *Service) RegisterPhone(ctx context.Context, id int64, raw string) (*domain.User, error) {
	phone, err := NormalizePhone(raw)
	if err != nil {
		return nil, err
	}

	return s.register(ctx, id, phone)
}

// RegisterContact completes registration with a shared contact. ownerID is the Telegram user the
// contact belongs to; zero means unknown.
func (s *Service) RegisterContact(ctx context.Context, id, ownerID int64, phone string) (*domain.User, error) {
	if ownerID != 0 && ownerID != id {
		return nil, ErrForeignContact
	}

	digits := DigitsOnly(phone)
	if digits == "" {
		return nil, ErrInvalidPhone
	}

	return s.register(ctx, id, digits)
}

func (s *Service) register(ctx context.Context, id int64, phone string) (*domain.User, error) {
	var from state.State

	updated, err := s.repo.Update(ctx, id, func(u *domain.User, all []*domain.User) error {
		from = u.ConversationState()
		if from == state.StateRegistered {
			return ErrAlreadyRegistered
		}
		if !state.IsTransitionAllowed(from, state.StateRegistered) {
			return apperrors.NewStateError(fmt.Sprintf("cannot register from %s", from))
		}

		u.Phone = domain.Ptr(phone)
		if u.InternalID == nil {
			u.InternalID = domain.Ptr(phonedCount(all) + 1)
		}
		u.State = state.StateRegistered

		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNotStarted
		}
		if !errors.Is(err, ErrAlreadyRegistered) {
			s.logError("register", id, err)
		}
		return nil, err
	}

	_ = state.Transition(from, state.StateRegistered)

	s.log.Info("user registered",
		slog.Int64("user_id", id),
		slog.Int("internal_id", domain.Deref(updated.InternalID)),
	)

	s.enqueue(ctx, outbox.UserChange(updated))
	s.enqueue(ctx, outbox.NotificationChange(domain.Notification{
		Type:    domain.NotificationNewRegistration,
		UserID:  updated.ID,
		Message: fmt.Sprintf("Новый пользователь зарегистрирован: %s", displayName(updated)),
		Data: map[string]any{
			"internal_id": domain.Deref(updated.InternalID),
			"username":    updated.Username,
		},
	}))

	return updated, nil
}

// Touch refreshes names of a known user when they changed. Unknown users are ignored.
func (s *Service) Touch(ctx context.Context, p Profile) error {
	existing, err := s.repo.Get(ctx, p.ID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return err
	}

	if existing.Username == p.Username && existing.FirstName == p.FirstName && existing.LastName == p.LastName {
		return nil
	}

	patch := &domain.User{
		ID:          p.ID,
		Username:    p.Username,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		ProfileLink: domain.ProfileLinkFor(p.Username),
	}
	if _, _, err := s.repo.Upsert(ctx, patch); err != nil {
		s.logError("touch", p.ID, err)
		return err
	}

	return nil
}

// SyncAll queues every phone-verified user, the statistics snapshot and the settings.
func (s *Service) SyncAll(ctx context.Context) (*SyncReport, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &SyncReport{}
	for _, u := range users {
		if !u.HasPhone() {
			continue
		}
		report.Users++
		if s.enqueue(ctx, outbox.UserChange(u)) {
			report.UsersQueued++
		} else {
			report.UsersFailed++
		}
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		s.logError("sync.stats", 0, err)
	} else {
		report.StatsQueued = s.enqueue(ctx, outbox.StatsChange(stats))
	}

	if s.settings != nil {
		settings, err := s.settings.Get(ctx)
		switch {
		case err == nil:
			report.SettingsQueued = s.enqueue(ctx, outbox.SettingsChange(settings))
		case !errors.Is(err, repository.ErrSettingsNotFound):
			s.logError("sync.settings", 0, err)
		}
	}

	s.log.Info("sync queued",
		slog.Int("users", report.Users),
		slog.Int("queued", report.UsersQueued),
		slog.Int("failed", report.UsersFailed),
	)

	return report, nil
}

func (s *Service) checkCapacity(ctx context.Context) error {
	if s.settings == nil {
		return nil
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		// no settings means no limit
		return nil
	}
	if settings.MaxUsers <= 0 {
		return nil
	}

	users, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	if settings.CapacityReached(len(users)) {
		s.log.Warn("user limit reached", slog.Int("max_users", settings.MaxUsers))
		return apperrors.NewCapacityError(settings.MaxUsers)
	}

	return nil
}

// enqueue hands a change to the outbox. Failures are logged and never surface to the caller.
func (s *Service) enqueue(ctx context.Context, change outbox.Change) bool {
	if s.outbox == nil {
		return false
	}

	if err := s.outbox.Enqueue(ctx, change); err != nil {
		s.log.Warn("failed to enqueue change",
			slog.String("kind", string(change.Kind)),
			slog.String("change_id", change.ID),
			slog.Any("error", err),
		)
		return false
	}

	return true
}

func (s *Service) logError(operation string, userID int64, err error) {
	if err == nil {
		return
	}

	s.log.Error("user service operation failed",
		slog.String("operation", operation),
		slog.Int64("user_id", userID),
		slog.Any("error", err),
	)
}

func phonedCount(users []*domain.User) int {
	count := 0
	for _, u := range users {
		if u.HasPhone() {
			count++
		}
	}
	return count
}

func displayName(u *domain.User) string {
	if name := u.FullName(); name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return fmt.Sprintf("id%d", u.ID)
}
