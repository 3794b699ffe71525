package attempts

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	cfg      Config
	items    map[string]Record
	mutex    sync.Mutex
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemory builds a process-local store. A positive GC interval drops
// windows that have already passed, which is indistinguishable from a reset.
func NewMemory(cfg Config) Store {
	s := &memoryStore{
		cfg:   cfg,
		items: make(map[string]Record),
		stop:  make(chan struct{}),
	}
	if cfg.Memory != nil && cfg.Memory.GCInterval > 0 {
		go s.gcLoop(cfg.Memory.GCInterval)
	}
	return s
}

func (s *memoryStore) gcLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = s.CleanupExpired(context.Background())
		case <-s.stop:
			return
		}
	}
}

func (s *memoryStore) Hit(_ context.Context, key string, limit int, window time.Duration) (Record, bool, error) {
	now := s.cfg.now()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	rec, allowed := apply(s.items[key], now, limit, window)
	rec.Key = key
	s.items[key] = rec
	return rec, allowed, nil
}

func (s *memoryStore) Get(_ context.Context, key string) (Record, error) {
	s.mutex.Lock()
	rec, ok := s.items[key]
	s.mutex.Unlock()
	if !ok {
		return Record{Key: key}, nil
	}
	return rec, nil
}

func (s *memoryStore) Reset(_ context.Context, key string) error {
	s.mutex.Lock()
	delete(s.items, key)
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) CleanupExpired(_ context.Context) error {
	now := s.cfg.now()
	s.mutex.Lock()
	for key, rec := range s.items {
		if now.After(rec.WindowResetAt) {
			delete(s.items, key)
		}
	}
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Stats(_ context.Context) (map[string]any, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return map[string]any{
		"type":  DriverMemory,
		"total": len(s.items),
	}, nil
}

func (s *memoryStore) Close(_ context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	return nil
}
