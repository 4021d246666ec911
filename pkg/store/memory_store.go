package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store intended for tests and examples. Every
// save gets a fresh SnapshotID and ETag.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	now     func() time.Time
}

type memoryRecord struct {
	raw  string
	meta Meta
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// MemoryWithClock overrides the clock used for Meta.UpdatedAt.
func MemoryWithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		records: map[string]memoryRecord{},
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, ref Ref) (string, Meta, bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return "", Meta{}, false, err
	}

	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return "", Meta{}, false, nil
	}
	return record.raw, cloneMeta(record.meta), true, nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, ref Ref, raw string, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.records[key]
	if meta.ETag != current.meta.ETag {
		if !exists {
			return Meta{}, fmt.Errorf("%w: %s does not exist", ErrETagMismatch, key)
		}
		return Meta{}, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, current.meta.ETag)
	}

	saved := cloneMeta(meta)
	saved.SnapshotID = uuid.NewString()
	saved.ETag = uuid.NewString()
	saved.UpdatedAt = s.now()
	s.records[key] = memoryRecord{raw: raw, meta: saved}
	return cloneMeta(saved), nil
}

// Put stores raw without an ETag check, e.g. to seed legacy blobs.
func (s *MemoryStore) Put(ref Ref, raw string) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	meta := Meta{
		SnapshotID: uuid.NewString(),
		ETag:       uuid.NewString(),
		UpdatedAt:  s.now(),
	}
	s.mu.Lock()
	s.records[key] = memoryRecord{raw: raw, meta: meta}
	s.mu.Unlock()
	return cloneMeta(meta), nil
}
