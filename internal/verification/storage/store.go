// Package storage persists verification records and uploaded document bytes.
//
// Records (jobs, results, document metadata) go through Store, which has an
// in-memory and a PostgreSQL implementation. Every read-modify-write goes
// through Update so that one record is never written by two callers at once.
// Document bytes go through DocumentStore (local filesystem or S3).
package storage

import (
	"context"
	"time"
)

// Record kinds
const (
	KindJob      = "job"
	KindResult   = "result"
	KindDocument = "document"
)

// Store persists records of a single kind keyed by id.
// Returned values are copies; mutating them does not change the store.
type Store[T any] interface {
	Get(ctx context.Context, id string) (*T, error)
	Put(ctx context.Context, id string, value *T) error
	// Update applies fn to the stored record atomically. When fn returns an
	// error the record is left unchanged.
	Update(ctx context.Context, id string, fn func(*T) error) (*T, error)
	Delete(ctx context.Context, id string) error
}

// Purger removes records not written since cutoff
type Purger interface {
	Purge(ctx context.Context, cutoff time.Time) (int, error)
}
