package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/jeffreymoya/photoeditor-sub011/internal/storage"
)

func TestPutIfAbsent_RejectsDuplicateKey(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.PutIfAbsent(ctx, &storage.Item{Key: "job:1", Payload: []byte(`{"a":1}`)}); err != nil {
		t.Fatalf("first put failed: %v", err)
	}
	err := s.PutIfAbsent(ctx, &storage.Item{Key: "job:1", Payload: []byte(`{"a":2}`)})
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	// First write must be untouched.
	item, err := s.Get(ctx, "job:1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(item.Payload) != `{"a":1}` {
		t.Errorf("payload overwritten: %s", item.Payload)
	}
	if item.Version != 1 {
		t.Errorf("expected version 1, got %d", item.Version)
	}
}

func TestUpdateConditional_VersionGuard(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.PutIfAbsent(ctx, &storage.Item{Key: "batch:1", Payload: []byte(`{"n":0}`)}); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	updated, err := s.UpdateConditional(ctx, "batch:1", 1, []byte(`{"n":1}`))
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("expected version 2, got %d", updated.Version)
	}

	// Stale version loses.
	if _, err := s.UpdateConditional(ctx, "batch:1", 1, []byte(`{"n":9}`)); !errors.Is(err, storage.ErrPreconditionFailed) {
		t.Errorf("expected ErrPreconditionFailed, got %v", err)
	}

	// Missing key is NotFound, not a precondition failure.
	if _, err := s.UpdateConditional(ctx, "batch:missing", 1, nil); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryByIndex(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	for _, item := range []*storage.Item{
		{Key: "job:1", IndexKey: "batch-jobs:b1", Payload: []byte(`1`)},
		{Key: "job:2", IndexKey: "batch-jobs:b1", Payload: []byte(`2`)},
		{Key: "job:3", IndexKey: "batch-jobs:b2", Payload: []byte(`3`)},
		{Key: "job:4", Payload: []byte(`4`)},
	} {
		if err := s.PutIfAbsent(ctx, item); err != nil {
			t.Fatalf("put %s failed: %v", item.Key, err)
		}
	}

	items, err := s.QueryByIndex(ctx, "batch-jobs:b1")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 items, got %d", len(items))
	}

	empty, err := s.QueryByIndex(ctx, "batch-jobs:none")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty result, got %d items", len(empty))
	}
}

func TestGet_ReturnsCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.PutIfAbsent(ctx, &storage.Item{Key: "job:1", Payload: []byte(`abc`)}); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	item, _ := s.Get(ctx, "job:1")
	item.Payload[0] = 'X'

	again, _ := s.Get(ctx, "job:1")
	if string(again.Payload) != "abc" {
		t.Errorf("stored payload mutated through returned copy: %s", again.Payload)
	}
}
