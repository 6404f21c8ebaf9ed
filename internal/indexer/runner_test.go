package indexer

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"musdScope/internal/contracts"
	"musdScope/internal/engine"
	"musdScope/internal/model"
	"musdScope/internal/store"
)

var (
	musdAddr    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	factoryAddr = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	poolAddress = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	rwaAddr     = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	alice       = common.HexToAddress("0x00000000000000000000000000000000000000d1")
)

type fakeChain struct {
	latest  uint64
	logs    []types.Log
	queries [][]common.Address
}

func (f *fakeChain) GetChainID(context.Context) (*big.Int, error) { return big.NewInt(5003), nil }

func (f *fakeChain) LatestBlockNumber(context.Context) (uint64, error) { return f.latest, nil }

func (f *fakeChain) BlockTimestamps(_ context.Context, numbers []uint64) (map[uint64]uint64, error) {
	out := make(map[uint64]uint64, len(numbers))
	for _, n := range numbers {
		out[n] = 1700000000 + n
	}
	return out, nil
}

func (f *fakeChain) FilterLogs(_ context.Context, from, to uint64, addrs []common.Address, topic0 []common.Hash) ([]types.Log, error) {
	f.queries = append(f.queries, addrs)
	var out []types.Log
	for _, l := range f.logs {
		if l.BlockNumber < from || l.BlockNumber > to {
			continue
		}
		if !containsAddr(addrs, l.Address) || !containsHash(topic0, l.Topics[0]) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func containsAddr(list []common.Address, a common.Address) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}

func containsHash(list []common.Hash, h common.Hash) bool {
	for _, x := range list {
		if x == h {
			return true
		}
	}
	return false
}

func addrTopic(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}

func mustABI(t *testing.T, load func() (abi.ABI, error)) abi.ABI {
	t.Helper()
	parsed, err := load()
	require.NoError(t, err)
	return parsed
}

func eventLog(t *testing.T, parsed abi.ABI, name string, addr common.Address, block uint64, index uint, indexed []common.Hash, values ...interface{}) types.Log {
	t.Helper()
	ev := parsed.Events[name]
	data, err := ev.Inputs.NonIndexed().Pack(values...)
	require.NoError(t, err)
	return types.Log{
		Address:     addr,
		Topics:      append([]common.Hash{ev.ID}, indexed...),
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block*1000 + uint64(index))),
		Index:       index,
	}
}

type runnerHarness struct {
	chain   *fakeChain
	store   *store.Store
	sources *Sources
	runner  *Runner
}

func newRunnerHarness(t *testing.T, cfg RunConfig, logs ...types.Log) *runnerHarness {
	t.Helper()
	decoder, err := contracts.NewDecoder()
	require.NoError(t, err)

	st := store.New(store.NewMemoryBackend())
	sources := NewSources([]common.Address{musdAddr, factoryAddr}, factoryAddr)
	eng := engine.New(st, engine.Config{Registry: sources})
	fc := &fakeChain{latest: 20, logs: logs}

	r, err := NewRunner(cfg, Deps{Chain: fc, Decoder: decoder, Engine: eng, Store: st, Sources: sources})
	require.NoError(t, err)
	return &runnerHarness{chain: fc, store: st, sources: sources, runner: r}
}

func protocolLogs(t *testing.T) []types.Log {
	musd := mustABI(t, contracts.MUSDABI)
	factory := mustABI(t, contracts.FactoryABI)
	pool := mustABI(t, contracts.PoolABI)

	created := eventLog(t, factory, model.EventPoolCreated, factoryAddr, 10, 0,
		[]common.Hash{addrTopic(poolAddress), addrTopic(musdAddr), addrTopic(rwaAddr)},
		common.HexToAddress("0x00000000000000000000000000000000000000e1"), [32]byte{1})
	locked := eventLog(t, musd, model.EventCollateralLocked, musdAddr, 11, 3,
		[]common.Hash{addrTopic(alice)}, big.NewInt(1000), big.NewInt(500))
	added := eventLog(t, pool, model.EventLiquidityAdded, poolAddress, 12, 1,
		[]common.Hash{addrTopic(alice)}, big.NewInt(70), big.NewInt(30))
	removed := eventLog(t, musd, model.EventCollateralLocked, musdAddr, 12, 2,
		[]common.Hash{addrTopic(alice)}, big.NewInt(999), big.NewInt(999))
	removed.Removed = true

	return []types.Log{added, locked, removed, created}
}

func TestRunnerDiscoversPoolsInSameBatch(t *testing.T) {
	h := newRunnerHarness(t, RunConfig{BatchSize: 100, Confirmations: 2}, protocolLogs(t)...)
	ctx := context.Background()

	require.NoError(t, h.runner.Run(ctx))

	stats, err := h.store.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), stats.TotalPools)
	require.Equal(t, "1000", stats.TotalCollateral.String())
	require.Equal(t, uint64(1), stats.ActiveUsers)

	pool, err := h.store.Pool(ctx, "0x00000000000000000000000000000000000000b1")
	require.NoError(t, err)
	require.Equal(t, "100", pool.TotalVolume.String())
	require.Equal(t, uint64(10), pool.CreatedAtBlock)
	require.Equal(t, uint64(1700000010), pool.CreatedAtTimestamp)

	require.True(t, h.sources.Tracks(poolAddress))

	last, ok, err := h.store.LoadCheckpoint(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(18), last)

	cursor, ok, err := h.store.Cursor(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(12), cursor.BlockNumber)
	require.Equal(t, uint64(1), cursor.LogIndex)
}

func TestRunnerResumesFromCheckpoint(t *testing.T) {
	h := newRunnerHarness(t, RunConfig{BatchSize: 5}, protocolLogs(t)...)
	ctx := context.Background()
	require.NoError(t, h.store.SaveCheckpoint(ctx, 10))

	require.NoError(t, h.runner.Run(ctx))

	// The PoolCreated at block 10 was before the resume point.
	stats, err := h.store.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(0), stats.TotalPools)
	require.Equal(t, "1000", stats.TotalCollateral.String())
	require.False(t, h.sources.Tracks(poolAddress))

	for _, q := range h.chain.queries {
		require.NotContains(t, q, poolAddress)
	}
}

func TestRunnerFollowsStoredPoolsAfterRestart(t *testing.T) {
	logs := protocolLogs(t)
	h := newRunnerHarness(t, RunConfig{BatchSize: 100, ToBlock: 11}, logs...)
	ctx := context.Background()
	require.NoError(t, h.runner.Run(ctx))

	// Second process over the same store picks up the pool from storage.
	decoder, err := contracts.NewDecoder()
	require.NoError(t, err)
	sources := NewSources([]common.Address{musdAddr, factoryAddr}, factoryAddr)
	eng := engine.New(h.store, engine.Config{Registry: sources})
	fc := &fakeChain{latest: 20, logs: logs}
	r, err := NewRunner(RunConfig{BatchSize: 100}, Deps{Chain: fc, Decoder: decoder, Engine: eng, Store: h.store, Sources: sources})
	require.NoError(t, err)
	require.NoError(t, r.Run(ctx))

	require.True(t, sources.Tracks(poolAddress))
	pool, err := h.store.Pool(ctx, "0x00000000000000000000000000000000000000b1")
	require.NoError(t, err)
	require.Equal(t, "100", pool.TotalVolume.String())
}

func TestRunnerStrictModeResumesInterruptedRange(t *testing.T) {
	ctx := context.Background()
	decoder, err := contracts.NewDecoder()
	require.NoError(t, err)
	st := store.New(store.NewMemoryBackend())

	run := func(cfg RunConfig, logs []types.Log) error {
		sources := NewSources([]common.Address{musdAddr, factoryAddr}, factoryAddr)
		eng := engine.New(st, engine.Config{Registry: sources, RejectReplays: true})
		r, err := NewRunner(cfg, Deps{Chain: &fakeChain{latest: 20, logs: logs}, Decoder: decoder, Engine: eng, Store: st, Sources: sources})
		require.NoError(t, err)
		return r.Run(ctx)
	}

	logs := protocolLogs(t)
	require.NoError(t, run(RunConfig{BatchSize: 100, ToBlock: 12}, logs))

	// Events through 12/1 are committed but the range checkpoint was lost.
	require.NoError(t, st.SaveCheckpoint(ctx, 0))

	later := eventLog(t, mustABI(t, contracts.MUSDABI), model.EventCollateralLocked, musdAddr, 15, 0,
		[]common.Hash{addrTopic(alice)}, big.NewInt(200), big.NewInt(100))
	require.NoError(t, run(RunConfig{BatchSize: 100}, append(logs, later)))

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), stats.TotalPools)
	require.Equal(t, "1200", stats.TotalCollateral.String())

	pool, err := st.Pool(ctx, "0x00000000000000000000000000000000000000b1")
	require.NoError(t, err)
	require.Equal(t, "100", pool.TotalVolume.String())

	cursor, ok, err := st.Cursor(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(15), cursor.BlockNumber)
}

func TestRunnerRejectsEngineWithoutHandlers(t *testing.T) {
	decoder, err := contracts.NewDecoder()
	require.NoError(t, err)
	st := store.New(store.NewMemoryBackend())
	sources := NewSources([]common.Address{musdAddr}, factoryAddr)
	eng := partialApplier{Engine: engine.New(st, engine.Config{}), missing: model.EventSwap}

	_, err = NewRunner(RunConfig{BatchSize: 1}, Deps{Chain: &fakeChain{}, Decoder: decoder, Engine: eng, Store: st, Sources: sources})
	require.ErrorContains(t, err, model.EventSwap)
}

type partialApplier struct {
	*engine.Engine
	missing string
}

func (p partialApplier) Handles(name string) bool {
	return name != p.missing && p.Engine.Handles(name)
}

func TestRunnerWaitsForConfirmations(t *testing.T) {
	h := newRunnerHarness(t, RunConfig{BatchSize: 10, Confirmations: 50}, protocolLogs(t)...)
	require.NoError(t, h.runner.Run(context.Background()))
	require.Empty(t, h.chain.queries)
}

func TestRunnerRequiresAddresses(t *testing.T) {
	decoder, err := contracts.NewDecoder()
	require.NoError(t, err)
	st := store.New(store.NewMemoryBackend())
	sources := NewSources(nil, common.Address{})
	r, err := NewRunner(RunConfig{BatchSize: 1}, Deps{Chain: &fakeChain{}, Decoder: decoder, Engine: engine.New(st, engine.Config{}), Store: st, Sources: sources})
	require.NoError(t, err)
	require.Error(t, r.Run(context.Background()))
}

func TestMergeLogsOrdersAndDedupes(t *testing.T) {
	a := types.Log{BlockNumber: 5, Index: 2}
	b := types.Log{BlockNumber: 5, Index: 1}
	c := types.Log{BlockNumber: 4, Index: 9}
	gone := types.Log{BlockNumber: 3, Index: 0, Removed: true}

	got := mergeLogs([]types.Log{a, c, gone}, []types.Log{b, a})
	require.Len(t, got, 3)
	require.Equal(t, c, got[0])
	require.Equal(t, b, got[1])
	require.Equal(t, a, got[2])
}

func TestSourcesKeepEarliestBlock(t *testing.T) {
	s := NewSources([]common.Address{musdAddr}, factoryAddr)
	s.RegisterPool(poolAddress.Hex(), 20)
	s.RegisterPool(poolAddress.Hex(), 10)
	s.RegisterPool(poolAddress.Hex(), 30)
	s.RegisterPool("not-an-address", 1)

	require.Equal(t, 1, s.PoolCount())
	require.Len(t, s.Addresses(), 2)
	require.Equal(t, []common.Address{musdAddr}, s.AddressesUpTo(9))
	require.Len(t, s.AddressesUpTo(10), 2)
	require.True(t, s.Tracks(musdAddr))
	require.False(t, s.Tracks(rwaAddr))
}

func TestParseAddresses(t *testing.T) {
	got, err := ParseAddresses([]string{" 0x00000000000000000000000000000000000000aA ", "", "  "})
	require.NoError(t, err)
	require.Equal(t, []common.Address{common.HexToAddress("0xaa")}, got)

	_, err = ParseAddresses([]string{"0x1234"})
	require.Error(t, err)
}
