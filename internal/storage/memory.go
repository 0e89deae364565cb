package storage

import (
	"context"
	"sync"
	"time"

	"github.com/IshaanNene/NovelGoat/internal/types"
)

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[int64]*User
	stats map[string]int64
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[int64]*User),
		stats: make(map[string]int64),
		now:   time.Now,
	}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) AddUser(_ context.Context, id int64, firstName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if u, ok := s.users[id]; ok {
		u.LastSeen = now
		u.FirstName = firstName
		return false, nil
	}
	s.users[id] = newUser(id, firstName, now)
	s.stats[StatTotalUsers]++
	return true, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id int64) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) TouchUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsert(id).LastSeen = s.now()
	return nil
}

func (s *MemoryStore) Settings(_ context.Context, id int64) (Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.users[id]; ok {
		return u.Settings, nil
	}
	return DefaultSettings(), nil
}

func (s *MemoryStore) UpdateSetting(_ context.Context, id int64, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.upsert(id)
	settings := u.Settings
	if err := settings.Set(key, value); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	u.Settings = settings
	return nil
}

func (s *MemoryStore) SaveProgress(_ context.Context, id int64, novelURL string, chapter int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.upsert(id)
	u.LastNovelURL = novelURL
	u.LastChapter = chapter
	return nil
}

func (s *MemoryStore) Progress(_ context.Context, id int64) (string, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return "", 0, nil
	}
	return u.LastNovelURL, u.LastChapter, nil
}

func (s *MemoryStore) IncrStat(_ context.Context, key string, n int64) error {
	s.mu.Lock()
	s.stats[key] += n
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	total, _ := s.TotalUsers(ctx)
	active, _ := s.ActiveSince(ctx, startOfDay(s.now()))

	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		TotalUsers:    total,
		ActiveToday:   active,
		NovelsScraped: s.stats[StatNovelsScraped],
		ChaptersSent:  s.stats[StatChaptersSent],
	}, nil
}

func (s *MemoryStore) TotalUsers(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

func (s *MemoryStore) ActiveSince(_ context.Context, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, u := range s.users {
		if !u.LastSeen.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Close() error { return nil }

// upsert returns the user, creating a default record if needed. The caller
// must hold the write lock.
func (s *MemoryStore) upsert(id int64) *User {
	u, ok := s.users[id]
	if !ok {
		u = newUser(id, "", s.now())
		s.users[id] = u
	}
	return u
}
