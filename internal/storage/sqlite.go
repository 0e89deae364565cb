package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/IshaanNene/NovelGoat/internal/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY,
	first_name TEXT NOT NULL DEFAULT '',
	joined INTEGER NOT NULL,
	last_seen INTEGER NOT NULL,
	last_novel_url TEXT NOT NULL DEFAULT '',
	last_chapter INTEGER NOT NULL DEFAULT 0,
	settings TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_users_last_seen ON users(last_seen);

CREATE TABLE IF NOT EXISTS stats (
	key TEXT PRIMARY KEY,
	value INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteStore keeps users and counters in a single SQLite file. Times are
// stored as Unix nanoseconds and settings as JSON.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &types.StorageError{Backend: "sqlite", Err: fmt.Errorf("create dir: %w", err)}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &types.StorageError{Backend: "sqlite", Err: fmt.Errorf("open database: %w", err)}
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, &types.StorageError{Backend: "sqlite", Err: fmt.Errorf("init schema: %w", err)}
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger.With("component", "sqlite_store"),
		now:    time.Now,
	}
	s.logger.Info("sqlite store opened", "path", path)
	return s, nil
}

func (s *SQLiteStore) Name() string { return "sqlite" }

func (s *SQLiteStore) wrap(op string, err error) error {
	return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("%s: %w", op, err)}
}

func (s *SQLiteStore) AddUser(ctx context.Context, id int64, firstName string) (bool, error) {
	now := s.now().UnixNano()
	settings, err := json.Marshal(DefaultSettings())
	if err != nil {
		return false, s.wrap("add user", err)
	}

	res, err := s.db.ExecContext(ctx, `
	INSERT INTO users (id, first_name, joined, last_seen, settings)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING`, id, firstName, now, now, string(settings))
	if err != nil {
		return false, s.wrap("add user", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		if err := s.IncrStat(ctx, StatTotalUsers, 1); err != nil {
			return true, err
		}
		s.logger.Debug("user registered", "user_id", id)
		return true, nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET first_name = ?, last_seen = ? WHERE id = ?`, firstName, now, id)
	if err != nil {
		return false, s.wrap("refresh user", err)
	}
	return false, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*User, error) {
	var (
		user             User
		joined, lastSeen int64
		raw              string
	)
	err := s.db.QueryRowContext(ctx, `
	SELECT id, first_name, joined, last_seen, last_novel_url, last_chapter, settings
	FROM users WHERE id = ?`, id).Scan(
		&user.ID, &user.FirstName, &joined, &lastSeen, &user.LastNovelURL, &user.LastChapter, &raw,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, s.wrap("get user", err)
	}
	user.Settings = DefaultSettings()
	if err := json.Unmarshal([]byte(raw), &user.Settings); err != nil {
		return nil, s.wrap("decode settings", err)
	}
	user.Joined = time.Unix(0, joined).UTC()
	user.LastSeen = time.Unix(0, lastSeen).UTC()
	return &user, nil
}

// ensureUser creates a default record for id if there is none.
func (s *SQLiteStore) ensureUser(ctx context.Context, q execer, id int64, now int64) error {
	settings, err := json.Marshal(DefaultSettings())
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
	INSERT INTO users (id, joined, last_seen, settings) VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING`, id, now, now, string(settings))
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) TouchUser(ctx context.Context, id int64) error {
	now := s.now().UnixNano()
	if err := s.ensureUser(ctx, s.db, id, now); err != nil {
		return s.wrap("touch user", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET last_seen = ? WHERE id = ?`, now, id); err != nil {
		return s.wrap("touch user", err)
	}
	return nil
}

func (s *SQLiteStore) Settings(ctx context.Context, id int64) (Settings, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT settings FROM users WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, s.wrap("get settings", err)
	}

	settings := DefaultSettings()
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return Settings{}, s.wrap("decode settings", err)
	}
	return settings, nil
}

func (s *SQLiteStore) UpdateSetting(ctx context.Context, id int64, key string, value any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap("begin", err)
	}
	defer tx.Rollback()

	if err := s.ensureUser(ctx, tx, id, s.now().UnixNano()); err != nil {
		return s.wrap("update setting", err)
	}

	var raw string
	if err := tx.QueryRowContext(ctx, `SELECT settings FROM users WHERE id = ?`, id).Scan(&raw); err != nil {
		return s.wrap("update setting", err)
	}
	settings := DefaultSettings()
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return s.wrap("decode settings", err)
	}
	if err := settings.Set(key, value); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}

	encoded, err := json.Marshal(settings)
	if err != nil {
		return s.wrap("update setting", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET settings = ? WHERE id = ?`, string(encoded), id); err != nil {
		return s.wrap("update setting", err)
	}
	if err := tx.Commit(); err != nil {
		return s.wrap("commit", err)
	}
	return nil
}

func (s *SQLiteStore) SaveProgress(ctx context.Context, id int64, novelURL string, chapter int) error {
	if err := s.ensureUser(ctx, s.db, id, s.now().UnixNano()); err != nil {
		return s.wrap("save progress", err)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_novel_url = ?, last_chapter = ? WHERE id = ?`, novelURL, chapter, id)
	if err != nil {
		return s.wrap("save progress", err)
	}
	return nil
}

func (s *SQLiteStore) Progress(ctx context.Context, id int64) (string, int, error) {
	var (
		url     string
		chapter int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT last_novel_url, last_chapter FROM users WHERE id = ?`, id).Scan(&url, &chapter)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, s.wrap("get progress", err)
	}
	return url, chapter, nil
}

func (s *SQLiteStore) IncrStat(ctx context.Context, key string, n int64) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO stats (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = value + excluded.value`, key, n)
	if err != nil {
		return s.wrap("incr stat", err)
	}
	return nil
}

func (s *SQLiteStore) stat(ctx context.Context, key string) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM stats WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return v, err
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	total, err := s.TotalUsers(ctx)
	if err != nil {
		return Stats{}, err
	}
	active, err := s.ActiveSince(ctx, startOfDay(s.now()))
	if err != nil {
		return Stats{}, err
	}
	novels, err := s.stat(ctx, StatNovelsScraped)
	if err != nil {
		return Stats{}, s.wrap("get stats", err)
	}
	chapters, err := s.stat(ctx, StatChaptersSent)
	if err != nil {
		return Stats{}, s.wrap("get stats", err)
	}
	return Stats{
		TotalUsers:    total,
		ActiveToday:   active,
		NovelsScraped: novels,
		ChaptersSent:  chapters,
	}, nil
}

func (s *SQLiteStore) TotalUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, s.wrap("count users", err)
	}
	return n, nil
}

func (s *SQLiteStore) ActiveSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE last_seen >= ?`, since.UnixNano()).Scan(&n)
	if err != nil {
		return 0, s.wrap("count active users", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
