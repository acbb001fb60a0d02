// Package memory provides an in-memory ItemStore used by tests and local
// development. Semantics match the Postgres implementation.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jeffreymoya/photoeditor-sub011/internal/storage"
)

var _ storage.ItemStore = (*Store)(nil)

// Store is a mutex-guarded map of items.
type Store struct {
	mu    sync.RWMutex
	items map[string]*storage.Item
}

// NewStore creates an empty in-memory item store.
func NewStore() *Store {
	return &Store{items: make(map[string]*storage.Item)}
}

func (s *Store) PutIfAbsent(ctx context.Context, item *storage.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.Key]; ok {
		return storage.ErrAlreadyExists
	}

	now := time.Now().UTC()
	stored := &storage.Item{
		Key:       item.Key,
		IndexKey:  item.IndexKey,
		Version:   1,
		Payload:   append([]byte(nil), item.Payload...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.items[item.Key] = stored
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (*storage.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyItem(item), nil
}

func (s *Store) UpdateConditional(ctx context.Context, key string, expectedVersion int64, payload []byte) (*storage.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if item.Version != expectedVersion {
		return nil, storage.ErrPreconditionFailed
	}

	item.Payload = append([]byte(nil), payload...)
	item.Version++
	item.UpdatedAt = time.Now().UTC()
	return copyItem(item), nil
}

func (s *Store) QueryByIndex(ctx context.Context, indexKey string) ([]*storage.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.Item
	for _, item := range s.items {
		if item.IndexKey != "" && item.IndexKey == indexKey {
			out = append(out, copyItem(item))
		}
	}
	return out, nil
}

func copyItem(item *storage.Item) *storage.Item {
	cp := *item
	cp.Payload = append([]byte(nil), item.Payload...)
	return &cp
}
