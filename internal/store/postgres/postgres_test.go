package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"musdScope/internal/store"
)

// Runs against a live database only when INDEXER_TEST_PG_DSN is set.
func TestBackendRoundTrip(t *testing.T) {
	dsn := os.Getenv("INDEXER_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("INDEXER_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	b, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer b.Close()

	prefix := "test_" + t.Name() + "/"
	require.NoError(t, b.Commit(ctx, []store.Write{
		{Key: prefix + "1", Value: []byte(`{"v":"123456789012345678901234567890"}`)},
		{Key: prefix + "2", Value: []byte(`"id-2"`)},
	}))

	v, found, err := b.Get(ctx, prefix+"2")
	require.NoError(t, err)
	require.True(t, found)
	require.JSONEq(t, `"id-2"`, string(v))

	kvs, err := b.Scan(ctx, prefix, true, 1)
	require.NoError(t, err)
	require.Len(t, kvs, 1)
	require.Equal(t, prefix+"2", kvs[0].Key)
}
