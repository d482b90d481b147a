package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/forgeyard/forge_api/model"
)

// ErrTokenNotFound covers missing, expired, exhausted and revoked tokens
// alike. Callers must not be able to tell these apart.
var ErrTokenNotFound = errors.New("token not found")

// TokenStore is the durable jti -> record mapping behind the issuer and the
// auth middleware. Consume is the security-critical operation: it must be
// race-free for concurrent calls with the same jti.
type TokenStore interface {
	Put(ctx context.Context, record *model.TokenRecord) error
	Consume(ctx context.Context, tokenID string) (*model.TokenRecord, error)
	Revoke(ctx context.Context, tokenID string) error
	Count(ctx context.Context) (int64, error)
}

type tokenEntry struct {
	mu      sync.Mutex
	record  model.TokenRecord
	deleted bool
}

// MemoryTokenStore keeps records in a map guarded by a structural RWMutex,
// with a per-entry mutex around the consume critical section so concurrent
// consumption of different tokens never contends.
type MemoryTokenStore struct {
	mu      sync.RWMutex
	entries map[string]*tokenEntry

	now func() time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		entries: make(map[string]*tokenEntry),
		now:     time.Now,
	}
}

func (s *MemoryTokenStore) Put(_ context.Context, record *model.TokenRecord) error {
	entry := &tokenEntry{record: *record}

	s.mu.Lock()
	s.entries[record.ID] = entry
	s.mu.Unlock()

	return nil
}

// Consume decrements the remaining-use budget and returns the post-decrement
// record. When the budget reaches zero the entry is flagged deleted inside
// the same critical section as the decrement, so no later caller can observe
// a present-but-exhausted record.
func (s *MemoryTokenStore) Consume(_ context.Context, tokenID string) (*model.TokenRecord, error) {
	s.mu.RLock()
	entry := s.entries[tokenID]
	s.mu.RUnlock()

	if entry == nil {
		return nil, ErrTokenNotFound
	}

	entry.mu.Lock()

	if entry.deleted {
		entry.mu.Unlock()
		return nil, ErrTokenNotFound
	}

	if entry.record.Expired(s.now()) || entry.record.RemainingUses <= 0 {
		entry.deleted = true
		entry.mu.Unlock()
		s.unlink(tokenID, entry)
		return nil, ErrTokenNotFound
	}

	entry.record.RemainingUses--
	record := entry.record
	exhausted := record.RemainingUses == 0
	if exhausted {
		entry.deleted = true
	}

	entry.mu.Unlock()

	if exhausted {
		s.unlink(tokenID, entry)
	}

	return &record, nil
}

func (s *MemoryTokenStore) Revoke(_ context.Context, tokenID string) error {
	s.mu.Lock()
	entry := s.entries[tokenID]
	delete(s.entries, tokenID)
	s.mu.Unlock()

	if entry != nil {
		entry.mu.Lock()
		entry.deleted = true
		entry.mu.Unlock()
	}

	return nil
}

func (s *MemoryTokenStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries)), nil
}

// SweepExpired drops entries past their expiry so abandoned tokens do not
// accumulate over the service's lifetime. Eligibility is decided under the
// structural lock; the deleted flag keeps in-flight consumers consistent.
func (s *MemoryTokenStore) SweepExpired() int {
	now := s.now()

	s.mu.Lock()
	var stale []*tokenEntry
	for id, entry := range s.entries {
		if entry.record.Expired(now) {
			stale = append(stale, entry)
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()

	for _, entry := range stale {
		entry.mu.Lock()
		entry.deleted = true
		entry.mu.Unlock()
	}

	return len(stale)
}

// unlink removes the entry only if it is still the one we consumed from, so a
// concurrently re-issued jti (however unlikely) is never clobbered.
func (s *MemoryTokenStore) unlink(tokenID string, entry *tokenEntry) {
	s.mu.Lock()
	if s.entries[tokenID] == entry {
		delete(s.entries, tokenID)
	}
	s.mu.Unlock()
}
