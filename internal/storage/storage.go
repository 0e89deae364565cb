// Package storage persists bot users, their reader settings, reading
// progress and global counters.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IshaanNene/NovelGoat/internal/config"
	"github.com/IshaanNene/NovelGoat/internal/types"
)

// Counter keys used with IncrStat.
const (
	StatTotalUsers    = "total_users"
	StatNovelsScraped = "novels_scraped"
	StatChaptersSent  = "chapters_sent"
)

// Setting keys accepted by UpdateSetting.
const (
	SettingReadingMode     = "reading_mode"
	SettingAutoNext        = "auto_next"
	SettingSendCover       = "send_cover"
	SettingDownloadButtons = "download_buttons"
)

// Reading modes.
const (
	ModeTelegram = "telegram"
	ModeFile     = "file"
)

// Store is the interface for all storage backends.
type Store interface {
	// AddUser registers a user, or refreshes last_seen and first_name if
	// the user already exists. It reports whether the user was new.
	AddUser(ctx context.Context, id int64, firstName string) (bool, error)

	// GetUser returns types.ErrNotFound for unknown users.
	GetUser(ctx context.Context, id int64) (*User, error)

	TouchUser(ctx context.Context, id int64) error

	// Settings returns the user's settings, or the defaults for unknown users.
	Settings(ctx context.Context, id int64) (Settings, error)
	UpdateSetting(ctx context.Context, id int64, key string, value any) error

	SaveProgress(ctx context.Context, id int64, novelURL string, chapter int) error
	Progress(ctx context.Context, id int64) (string, int, error)

	IncrStat(ctx context.Context, key string, n int64) error
	Stats(ctx context.Context) (Stats, error)
	TotalUsers(ctx context.Context) (int64, error)
	ActiveSince(ctx context.Context, since time.Time) (int64, error)

	// Close releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// Settings are the per-user reader preferences.
type Settings struct {
	ReadingMode     string `bson:"reading_mode"     json:"reading_mode"`
	AutoNext        bool   `bson:"auto_next"        json:"auto_next"`
	SendCover       bool   `bson:"send_cover"       json:"send_cover"`
	DownloadButtons bool   `bson:"download_buttons" json:"download_buttons"`
}

// DefaultSettings returns the settings given to new users.
func DefaultSettings() Settings {
	return Settings{
		ReadingMode:     ModeTelegram,
		AutoNext:        true,
		SendCover:       true,
		DownloadButtons: true,
	}
}

// Set assigns value to the setting named key.
func (s *Settings) Set(key string, value any) error {
	switch key {
	case SettingReadingMode:
		mode, ok := value.(string)
		if !ok || (mode != ModeTelegram && mode != ModeFile) {
			return fmt.Errorf("invalid reading mode %v", value)
		}
		s.ReadingMode = mode
		return nil
	case SettingAutoNext, SettingSendCover, SettingDownloadButtons:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("setting %s expects a bool, got %T", key, value)
		}
		switch key {
		case SettingAutoNext:
			s.AutoNext = b
		case SettingSendCover:
			s.SendCover = b
		default:
			s.DownloadButtons = b
		}
		return nil
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
}

// Toggled returns the value key would take after a toggle: reading mode
// flips between telegram and file, booleans are negated.
func (s Settings) Toggled(key string) (any, error) {
	switch key {
	case SettingReadingMode:
		if s.ReadingMode == ModeFile {
			return ModeTelegram, nil
		}
		return ModeFile, nil
	case SettingAutoNext:
		return !s.AutoNext, nil
	case SettingSendCover:
		return !s.SendCover, nil
	case SettingDownloadButtons:
		return !s.DownloadButtons, nil
	default:
		return nil, fmt.Errorf("unknown setting %q", key)
	}
}

// User is a registered bot user.
type User struct {
	ID           int64     `bson:"_id"            json:"id"`
	FirstName    string    `bson:"first_name"     json:"first_name"`
	Joined       time.Time `bson:"joined"         json:"joined"`
	LastSeen     time.Time `bson:"last_seen"      json:"last_seen"`
	LastNovelURL string    `bson:"last_novel_url" json:"last_novel_url,omitempty"`
	LastChapter  int       `bson:"last_chapter"   json:"last_chapter"`
	Settings     Settings  `bson:"settings"       json:"settings"`
}

func newUser(id int64, firstName string, now time.Time) *User {
	return &User{
		ID:        id,
		FirstName: firstName,
		Joined:    now,
		LastSeen:  now,
		Settings:  DefaultSettings(),
	}
}

// Stats is the /stats summary.
type Stats struct {
	TotalUsers    int64 `json:"total_users"`
	ActiveToday   int64 `json:"active_today"`
	NovelsScraped int64 `json:"novels_scraped"`
	ChaptersSent  int64 `json:"chapters_sent"`
}

// startOfDay returns midnight UTC of t's day.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// New creates the backend named by cfg.Type.
func New(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "mongodb", "mongo":
		return NewMongoStore(ctx, cfg.URI, cfg.Database, logger)
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.Path, logger)
	default:
		return nil, &types.StorageError{Backend: cfg.Type, Err: fmt.Errorf("unknown storage type")}
	}
}
