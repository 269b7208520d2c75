package bot

import (
	"context"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/savos-bot/internal/usercache"
)

type photoAPI interface {
	ProfilePhotosOf(user *telebot.User) ([]telebot.Photo, error)
	FileByID(fileID string) (telebot.File, error)
}

// PhotoResolver finds the Bot API file path of a user's latest profile photo, e.g. "photos/file_1.jpg".
// The download URL embeds the bot token, so only the path is stored and pushed to the website.
// Answers, including "no photo", are cached.
type PhotoResolver struct {
	api   photoAPI
	cache usercache.Cache
	log   *slog.Logger
}

// NewPhotoResolver uses tb for lookups. cache may be nil.
func NewPhotoResolver(tb *telebot.Bot, cache usercache.Cache, log *slog.Logger) *PhotoResolver {
	return newPhotoResolver(tb, cache, log)
}

func newPhotoResolver(api photoAPI, cache usercache.Cache, log *slog.Logger) *PhotoResolver {
	if log == nil {
		log = slog.Default()
	}

	return &PhotoResolver{api: api, cache: cache, log: log}
}

// PhotoPath returns "" when the user has no photo or the lookup fails.
func (r *PhotoResolver) PhotoPath(ctx context.Context, user *telebot.User) string {
	if user == nil {
		return ""
	}

	if r.cache != nil {
		if path, ok, err := r.cache.Get(ctx, user.ID); err == nil && ok {
			return path
		} else if err != nil {
			r.log.Warn("photo cache read failed", slog.Int64("user_id", user.ID), slog.Any("error", err))
		}
	}

	path, err := r.lookup(user)
	if err != nil {
		r.log.Warn("failed to fetch profile photo", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return ""
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, user.ID, path); err != nil {
			r.log.Warn("photo cache write failed", slog.Int64("user_id", user.ID), slog.Any("error", err))
		}
	}

	return path
}

func (r *PhotoResolver) lookup(user *telebot.User) (string, error) {
	photos, err := r.api.ProfilePhotosOf(user)
	if err != nil {
		return "", err
	}
	if len(photos) == 0 || photos[0].FileID == "" {
		return "", nil
	}

	file, err := r.api.FileByID(photos[0].FileID)
	if err != nil {
		return "", err
	}
	return file.FilePath, nil
}
