// Package store persists reduced entities over a pluggable key/value backend.
//
// Every value is a JSON document. Writes are collected in a Tx and handed to the
// backend in one Commit, which must apply all of them or none.
package store

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by point lookups on the read side when a key is absent.
var ErrNotFound = errors.New("store: not found")

// ErrImmutable is returned when a ledger row would be overwritten.
var ErrImmutable = errors.New("store: ledger entry already exists")

// KV is one key/value pair returned by a scan.
type KV struct {
	Key   string
	Value []byte
}

// Write is a pending upsert.
type Write struct {
	Key   string
	Value []byte
}

// Kind returns the entity kind encoded in the key prefix ("user", "rwa_pool", ...).
func (w Write) Kind() string {
	if i := strings.IndexByte(w.Key, '/'); i > 0 {
		return w.Key[:i]
	}
	return w.Key
}

// Backend is the storage engine underneath the store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Scan returns keys with the given prefix in byte order, or reversed. limit <= 0 means no limit.
	Scan(ctx context.Context, prefix string, reverse bool, limit int) ([]KV, error)
	// Commit applies all writes atomically.
	Commit(ctx context.Context, writes []Write) error
	Ping(ctx context.Context) error
	Close() error
}
