// Package storage defines the conditional key-value contract every persisted
// entity goes through. Implementations must distinguish existence and
// precondition outcomes (the caller decides what to do) from transient store
// faults (retryable by the caller's own policy).
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAlreadyExists is returned by PutIfAbsent when the key is taken.
	ErrAlreadyExists = errors.New("storage: item already exists")

	// ErrNotFound is returned when no item exists under the key.
	ErrNotFound = errors.New("storage: item not found")

	// ErrPreconditionFailed is returned by UpdateConditional when the stored
	// version no longer matches the expected one.
	ErrPreconditionFailed = errors.New("storage: precondition failed")
)

// Item is one versioned row. Version starts at 1 and is bumped by the store on
// every successful conditional update; callers never set it directly.
type Item struct {
	Key       string
	IndexKey  string // optional secondary index value, immutable once set
	Version   int64
	Payload   []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ItemStore is a key-value store with conditional writes.
//
// Get must be strongly consistent: a Get following a successful write observes
// that write. Any error other than the sentinels above is a transient store
// fault.
type ItemStore interface {
	// PutIfAbsent creates the item only if the key is free.
	PutIfAbsent(ctx context.Context, item *Item) error

	// Get returns the item stored under key.
	Get(ctx context.Context, key string) (*Item, error)

	// UpdateConditional replaces the payload only if the stored version equals
	// expectedVersion, and returns the updated item.
	UpdateConditional(ctx context.Context, key string, expectedVersion int64, payload []byte) (*Item, error)

	// QueryByIndex returns all items whose IndexKey equals indexKey. A missing
	// index value yields an empty slice, not an error.
	QueryByIndex(ctx context.Context, indexKey string) ([]*Item, error)
}
