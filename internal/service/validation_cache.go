package service

import (
	"context"
	"sync"
	"time"
)

// ValidationCacheStore caches positive session validations keyed by token
// hash, with a TTL strictly shorter than the session TTL. It is explicitly
// invalidated on logout; negative results are never cached, so the store can
// only shave load, never extend a session's life past the cache TTL.
type ValidationCacheStore interface {
	Get(ctx context.Context, tokenHash string) (uint, bool, error)
	Set(ctx context.Context, tokenHash string, userID uint, ttl time.Duration) error
	Invalidate(ctx context.Context, tokenHash string) error
}

type NoopValidationCacheStore struct{}

func NewNoopValidationCacheStore() *NoopValidationCacheStore { return &NoopValidationCacheStore{} }

func (s *NoopValidationCacheStore) Get(context.Context, string) (uint, bool, error) {
	return 0, false, nil
}

func (s *NoopValidationCacheStore) Set(context.Context, string, uint, time.Duration) error {
	return nil
}

func (s *NoopValidationCacheStore) Invalidate(context.Context, string) error { return nil }

type cachedValidation struct {
	userID    uint
	expiresAt time.Time
}

type InMemoryValidationCacheStore struct {
	mu         sync.RWMutex
	store      map[string]cachedValidation
	maxEntries int
}

func NewInMemoryValidationCacheStore(maxEntries int) *InMemoryValidationCacheStore {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	return &InMemoryValidationCacheStore{
		store:      make(map[string]cachedValidation),
		maxEntries: maxEntries,
	}
}

func (s *InMemoryValidationCacheStore) Get(_ context.Context, tokenHash string) (uint, bool, error) {
	now := time.Now().UTC()
	s.mu.RLock()
	entry, ok := s.store[tokenHash]
	s.mu.RUnlock()
	if !ok {
		return 0, false, nil
	}
	if now.After(entry.expiresAt) {
		s.mu.Lock()
		if current, ok := s.store[tokenHash]; ok && now.After(current.expiresAt) {
			delete(s.store, tokenHash)
		}
		s.mu.Unlock()
		return 0, false, nil
	}
	return entry.userID, true, nil
}

func (s *InMemoryValidationCacheStore) Set(_ context.Context, tokenHash string, userID uint, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.store) >= s.maxEntries {
		for k, v := range s.store {
			if now.After(v.expiresAt) {
				delete(s.store, k)
			}
		}
		// Still full after pruning: skip the insert rather than grow unbounded.
		if len(s.store) >= s.maxEntries {
			return nil
		}
	}
	s.store[tokenHash] = cachedValidation{userID: userID, expiresAt: now.Add(ttl)}
	return nil
}

func (s *InMemoryValidationCacheStore) Invalidate(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store, tokenHash)
	return nil
}
