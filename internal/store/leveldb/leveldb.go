// Package leveldb is the embedded on-disk store backend.
package leveldb

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"musdScope/internal/store"
)

// Backend is a store.Backend over a LevelDB directory.
type Backend struct {
	db *leveldb.DB
}

// Open creates or opens a LevelDB database at path.
func Open(path string) (*Backend, error) {
	if path == "" {
		return nil, fmt.Errorf("leveldb path is required")
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &Backend{db: db}, nil
}

func (b *Backend) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, err := b.db.Get([]byte(key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

func (b *Backend) Scan(ctx context.Context, prefix string, reverse bool, limit int) ([]store.KV, error) {
	it := b.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer it.Release()

	next := it.Next
	ok := it.First()
	if reverse {
		next = it.Prev
		ok = it.Last()
	}

	var out []store.KV
	for ; ok; ok = next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, store.KV{
			Key:   string(it.Key()),
			Value: append([]byte(nil), it.Value()...),
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", prefix, err)
	}
	return out, nil
}

// Commit writes all entries in one synced batch.
func (b *Backend) Commit(ctx context.Context, writes []store.Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	for _, w := range writes {
		batch.Put([]byte(w.Key), w.Value)
	}
	return b.db.Write(batch, &opt.WriteOptions{Sync: true})
}

func (b *Backend) Ping(context.Context) error {
	_, err := b.db.GetProperty("leveldb.stats")
	return err
}

func (b *Backend) Close() error {
	return b.db.Close()
}
