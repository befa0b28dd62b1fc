package otp

import (
	"context"
	"sync"
	"time"
)

// MemoryStore хранит коды в памяти процесса
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]Entry       // destination -> Entry
	sends    map[string][]time.Time // destination -> отправки за последнюю минуту
	failures map[string]int         // destination -> неверные попытки для текущего кода
	now      func() time.Time
}

// NewMemoryStore создаёт пустое хранилище
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:  make(map[string]Entry),
		sends:    make(map[string][]time.Time),
		failures: make(map[string]int),
		now:      time.Now,
	}
}

// Put заменяет предыдущий код для адреса
func (s *MemoryStore) Put(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.Destination] = entry
	delete(s.failures, entry.Destination)
	return nil
}

// Get истёкшая запись удаляется при чтении
func (s *MemoryStore) Get(_ context.Context, destination string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[destination]
	if !ok {
		return nil, nil
	}
	if entry.Expired(s.now()) {
		delete(s.entries, destination)
		delete(s.failures, destination)
		return nil, nil
	}
	return &entry, nil
}

func (s *MemoryStore) Delete(_ context.Context, destination string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, destination)
	delete(s.failures, destination)
	return nil
}

func (s *MemoryStore) RecordFailure(_ context.Context, destination string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[destination]++
	if s.failures[destination] < MaxVerifyAttempts {
		return false, nil
	}
	delete(s.entries, destination)
	delete(s.failures, destination)
	return true, nil
}

// Allow скользящее окно в одну минуту
func (s *MemoryStore) Allow(_ context.Context, destination string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	recent := s.recentSends(destination, now)
	if len(recent) >= SendsPerMinute {
		s.sends[destination] = recent
		return false, nil
	}
	s.sends[destination] = append(recent, now)
	return true, nil
}

func (s *MemoryStore) recentSends(destination string, now time.Time) []time.Time {
	var recent []time.Time
	for _, at := range s.sends[destination] {
		if now.Sub(at) < time.Minute {
			recent = append(recent, at)
		}
	}
	return recent
}

// Sweep удаляет истёкшие коды, возвращает сколько удалено
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for dest, entry := range s.entries {
		if entry.Expired(now) {
			delete(s.entries, dest)
			removed++
		}
	}
	for dest := range s.failures {
		if _, ok := s.entries[dest]; !ok {
			delete(s.failures, dest)
		}
	}
	for dest := range s.sends {
		if recent := s.recentSends(dest, now); len(recent) == 0 {
			delete(s.sends, dest)
		} else {
			s.sends[dest] = recent
		}
	}
	return removed
}

// Run периодически чистит хранилище до отмены ctx
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-ctx.Done():
			return
		}
	}
}
