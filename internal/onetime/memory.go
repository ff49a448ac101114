package onetime

import (
	"context"
	"errors"
	"sync"
	"time"
)

type memoryEntry struct {
	payload   string
	expiresAt time.Time
}

// MemoryStore はプロセス内メモリに保持するStore。
// 期限切れエントリは参照時に破棄され、加えてバックグラウンドで定期的に掃除される。
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore はMemoryStoreを生成し、sweepInterval間隔の掃除を開始する。
// sweepIntervalが0以下の場合は定期掃除を行わない。
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	if sweepInterval > 0 {
		go s.sweepLoop(sweepInterval)
	}
	return s
}

// Issue はpayloadに紐づくトークンを発行する。
func (s *MemoryStore) Issue(_ context.Context, payload string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}
	token, err := newToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.entries[token] = memoryEntry{payload: payload, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()

	return token, nil
}

// Consume はトークンを消費してpayloadを返す。
func (s *MemoryStore) Consume(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[token]
	if !ok {
		return "", ErrNotFound
	}
	delete(s.entries, token)
	if !s.now().Before(e.expiresAt) {
		return "", ErrNotFound
	}
	return e.payload, nil
}

// Len は保持中のエントリ数を返す。期限切れで未掃除のものも含む。
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stop は定期掃除を停止する。
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for token, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, token)
		}
	}
}
