package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func runFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.String("rpc", "", "")
	fs.String("musd", "", "")
	fs.StringSlice("pool", nil, "")
	fs.Uint64("batch-size", 2000, "")
	fs.Bool("follow", false, "")
	fs.String("store", BackendLevelDB, "")
	return fs
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "indexer.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
rpc: http://file:8545
musd: "0x00000000000000000000000000000000000000aa"
confirmations: 12
poll-interval: 2s
store: memory
`), 0o644))

	t.Setenv("INDEXER_RPC", "http://env:8545")
	t.Setenv("INDEXER_NATS_URL", "nats://env:4222")

	fs := runFlags()
	require.NoError(t, fs.Parse([]string{"--batch-size=50", "--pool=0x01, 0x02", "--follow"}))

	cfg, err := Load(cfgFile, fs)
	require.NoError(t, err)
	require.Equal(t, "http://env:8545", cfg.RPCURL)
	require.Equal(t, "nats://env:4222", cfg.NATSURL)
	require.Equal(t, uint64(50), cfg.BatchSize)
	require.Equal(t, uint64(12), cfg.Confirmations)
	require.Equal(t, 2*time.Second, cfg.PollInterval)
	require.Equal(t, []string{"0x01", "0x02"}, cfg.Pools)
	require.True(t, cfg.Follow)
	require.True(t, cfg.Dedup)
	require.Equal(t, BackendMemory, cfg.Store.Backend)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	base := Config{RPCURL: "http://x", MUSDAddress: "0x1", BatchSize: 1, Store: StoreConfig{Backend: BackendMemory}}
	require.NoError(t, base.Validate())

	noRPC := base
	noRPC.RPCURL = ""
	require.Error(t, noRPC.Validate())

	noContracts := base
	noContracts.MUSDAddress = ""
	require.Error(t, noContracts.Validate())

	badRange := base
	badRange.FromBlock, badRange.ToBlock = 10, 5
	require.Error(t, badRange.Validate())

	pg := base
	pg.Store = StoreConfig{Backend: BackendPostgres}
	require.Error(t, pg.Validate())
	pg.Store.PGDSN = "postgres://localhost/musd"
	require.NoError(t, pg.Validate())

	unknown := base
	unknown.Store = StoreConfig{Backend: "sqlite"}
	require.Error(t, unknown.Validate())
}

func TestLoadReduceRequiresInput(t *testing.T) {
	fs := pflag.NewFlagSet("reduce", pflag.ContinueOnError)
	fs.String("in", "", "")
	require.NoError(t, fs.Parse(nil))
	_, err := LoadReduce("", fs)
	require.Error(t, err)

	require.NoError(t, fs.Parse([]string{"--in=events.jsonl"}))
	cfg, err := LoadReduce("", fs)
	require.NoError(t, err)
	require.Equal(t, "events.jsonl", cfg.In)
	require.Equal(t, BackendLevelDB, cfg.Store.Backend)
	require.Equal(t, "./data/state", cfg.Store.Path)
	require.Equal(t, 5, cfg.MaxRetries)
}

func TestLoadQueryDefaults(t *testing.T) {
	cfg, err := LoadQuery("", nil)
	require.NoError(t, err)
	require.Equal(t, 50, cfg.Limit)
	require.Equal(t, "warn", cfg.LogLevel)
}
