package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"musdScope/internal/model"
	"musdScope/internal/store"
)

const (
	musdToken  = "0x00000000000000000000000000000000000000aa"
	stakeAddr  = "0x00000000000000000000000000000000000000bb"
	factory    = "0x00000000000000000000000000000000000000cc"
	rwaToken   = "0x00000000000000000000000000000000000000dd"
	verifier   = "0x00000000000000000000000000000000000000ee"
	poolAddr   = "0x1000000000000000000000000000000000000001"
	userA      = "0xa000000000000000000000000000000000000001"
	userB      = "0xb000000000000000000000000000000000000002"
	policyHash = "0xcc8d9e54ea35adb5416485e372c5db1928bb4cc60b93e494ad227c50ef5b1082"
)

type poolState struct {
	reserveMUSD    *big.Int
	reserveRWA     *big.Int
	totalLiquidity *big.Int
	balances       map[string]*big.Int
}

type fakeReader struct {
	pools   map[string]*poolState
	symbols map[string]string
	reads   int
}

func newFakeReader() *fakeReader {
	return &fakeReader{pools: make(map[string]*poolState), symbols: make(map[string]string)}
}

var errReverted = errors.New("execution reverted")

func (f *fakeReader) pool(addr string) *poolState {
	p, ok := f.pools[addr]
	if !ok {
		p = &poolState{balances: make(map[string]*big.Int)}
		f.pools[addr] = p
	}
	return p
}

func orRevert(v *big.Int) (*big.Int, error) {
	if v == nil {
		return nil, errReverted
	}
	return new(big.Int).Set(v), nil
}

func (f *fakeReader) ReserveMUSD(_ context.Context, pool string, _ uint64) (*big.Int, error) {
	f.reads++
	return orRevert(f.pool(pool).reserveMUSD)
}

func (f *fakeReader) ReserveRWA(_ context.Context, pool string, _ uint64) (*big.Int, error) {
	f.reads++
	return orRevert(f.pool(pool).reserveRWA)
}

func (f *fakeReader) TotalLiquidity(_ context.Context, pool string, _ uint64) (*big.Int, error) {
	f.reads++
	return orRevert(f.pool(pool).totalLiquidity)
}

func (f *fakeReader) LiquidityBalance(_ context.Context, pool, user string, _ uint64) (*big.Int, error) {
	f.reads++
	return orRevert(f.pool(pool).balances[user])
}

func (f *fakeReader) TokenSymbol(_ context.Context, token string, _ uint64) (string, error) {
	f.reads++
	s, ok := f.symbols[token]
	if !ok {
		return "", errReverted
	}
	return s, nil
}

type fakeRegistry struct {
	pools map[string]uint64
}

func (r *fakeRegistry) RegisterPool(pool string, from uint64) {
	r.pools[pool] = from
}

type fakeSink struct {
	events []string
	writes [][]store.Write
	err    error
}

func (s *fakeSink) Publish(_ context.Context, ev model.TypedEventRecord, writes []store.Write) error {
	s.events = append(s.events, ev.EventName)
	s.writes = append(s.writes, writes)
	return s.err
}

type failingCommit struct {
	*store.MemoryBackend
	fail    bool
	failGet string
}

func (f *failingCommit) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.failGet != "" && strings.HasSuffix(key, f.failGet) {
		return nil, false, errors.New("backend read failed")
	}
	return f.MemoryBackend.Get(ctx, key)
}

func (f *failingCommit) Commit(ctx context.Context, writes []store.Write) error {
	if f.fail {
		return errors.New("backend unavailable")
	}
	return f.MemoryBackend.Commit(ctx, writes)
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	backend  *failingCommit
	store    *store.Store
	engine   *Engine
	reader   *fakeReader
	registry *fakeRegistry
	sink     *fakeSink
	block    uint64
	logIndex uint64
	txSeq    int
}

func newHarness(t *testing.T, mutate ...func(*Config)) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		ctx:      context.Background(),
		backend:  &failingCommit{MemoryBackend: store.NewMemoryBackend()},
		reader:   newFakeReader(),
		registry: &fakeRegistry{pools: make(map[string]uint64)},
		sink:     &fakeSink{},
		block:    100,
	}
	h.store = store.New(h.backend)
	cfg := Config{Reader: h.reader, Registry: h.registry, Sink: h.sink}
	for _, m := range mutate {
		m(&cfg)
	}
	h.engine = New(h.store, cfg)
	return h
}

// record builds the next event in chain order: a new block every third event.
func (h *harness) record(name, address string, payload interface{}) model.TypedEventRecord {
	h.t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(h.t, err)
	h.txSeq++
	if h.txSeq%3 == 0 {
		h.block++
		h.logIndex = 0
	} else {
		h.logIndex++
	}
	return model.TypedEventRecord{
		ChainID:     5003,
		BlockNumber: h.block,
		TxHash:      fmt.Sprintf("0x%064x", h.txSeq),
		LogIndex:    h.logIndex,
		Address:     address,
		EventName:   name,
		Timestamp:   1700000000 + h.block*2,
		Decoded:     data,
	}
}

func (h *harness) apply(name, address string, payload interface{}) model.TypedEventRecord {
	h.t.Helper()
	rec := h.record(name, address, payload)
	applied, err := h.engine.Apply(h.ctx, rec)
	require.NoError(h.t, err)
	require.True(h.t, applied)
	return rec
}

func (h *harness) stats() *model.ProtocolStats {
	h.t.Helper()
	s, err := h.store.Stats(h.ctx)
	require.NoError(h.t, err)
	return s
}

func (h *harness) user(id string) *model.User {
	h.t.Helper()
	u, err := h.store.User(h.ctx, id)
	require.NoError(h.t, err)
	return u
}

func lock(account string, collateral, minted int64) model.CollateralLockedData {
	return model.CollateralLockedData{Account: account, CollateralAmount: big.NewInt(collateral).String(), MintedAmount: big.NewInt(minted).String()}
}

func unlock(account string, collateral, burned int64) model.CollateralUnlockedData {
	return model.CollateralUnlockedData{Account: account, CollateralAmount: big.NewInt(collateral).String(), BurnedAmount: big.NewInt(burned).String()}
}

func liquidate(account string, seized, burned int64) model.PositionLiquidatedData {
	return model.PositionLiquidatedData{Account: account, CollateralSeized: big.NewInt(seized).String(), DebtBurned: big.NewInt(burned).String()}
}

func TestApplySkipsReplays(t *testing.T) {
	h := newHarness(t)
	rec := h.apply(model.EventCollateralLocked, musdToken, lock(userA, 10, 5))

	applied, err := h.engine.Apply(h.ctx, rec)
	require.NoError(t, err)
	require.False(t, applied)

	u := h.user(userA)
	require.Equal(t, "10", u.CollateralBalance.String())
	require.Equal(t, "5", h.stats().TotalDebt.String())

	// An older position is also a replay.
	older := rec
	older.BlockNumber--
	applied, err = h.engine.Apply(h.ctx, older)
	require.NoError(t, err)
	require.False(t, applied)
}

func TestApplyRejectsOutOfOrderWhenStrict(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.RejectReplays = true })
	rec := h.apply(model.EventCollateralLocked, musdToken, lock(userA, 10, 5))

	_, err := h.engine.Apply(h.ctx, rec)
	require.ErrorIs(t, err, ErrOutOfOrder)
}

func TestApplyMalformedPayloadCommitsNothing(t *testing.T) {
	h := newHarness(t)
	h.apply(model.EventCollateralLocked, musdToken, lock(userA, 10, 5))
	before := h.backend.Len()
	cursor, _, err := h.store.Cursor(h.ctx)
	require.NoError(t, err)

	bad := h.record(model.EventCollateralLocked, musdToken, model.CollateralLockedData{Account: userB, CollateralAmount: "12x", MintedAmount: "1"})
	_, err = h.engine.Apply(h.ctx, bad)
	require.ErrorIs(t, err, ErrMalformed)

	badAddr := h.record(model.EventCollateralUnlocked, musdToken, model.CollateralUnlockedData{Account: "nope", CollateralAmount: "1", BurnedAmount: "1"})
	_, err = h.engine.Apply(h.ctx, badAddr)
	require.ErrorIs(t, err, ErrMalformed)

	negative := h.record(model.EventCollateralLocked, musdToken, model.CollateralLockedData{Account: userB, CollateralAmount: "-1", MintedAmount: "1"})
	_, err = h.engine.Apply(h.ctx, negative)
	require.ErrorIs(t, err, ErrMalformed)

	require.Equal(t, before, h.backend.Len())
	after, _, err := h.store.Cursor(h.ctx)
	require.NoError(t, err)
	require.Equal(t, cursor, after)
	_, err = h.store.User(h.ctx, userB)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestApplyCommitFailureIsAllOrNothing(t *testing.T) {
	h := newHarness(t)
	h.reader.symbols[rwaToken] = "TBILL"
	h.backend.fail = true

	rec := h.record(model.EventPoolCreated, factory, model.PoolCreatedData{Pool: poolAddr, MUSD: musdToken, RWAToken: rwaToken, Verifier: verifier, ImageID: policyHash})
	_, err := h.engine.Apply(h.ctx, rec)
	require.Error(t, err)
	require.Equal(t, 0, h.backend.Len())
	require.Empty(t, h.registry.pools, "pool must not be followed when its creation was not committed")
	require.Empty(t, h.sink.events)

	h.backend.fail = false
	applied, err := h.engine.Apply(h.ctx, rec)
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, uint64(1), h.stats().TotalPools)
}

func TestApplyBackendReadFailureCommitsNothing(t *testing.T) {
	for _, key := range []string{"/cursor", model.StatsID} {
		t.Run(key, func(t *testing.T) {
			h := newHarness(t)
			h.apply(model.EventCollateralLocked, musdToken, lock(userA, 10, 5))
			before := h.backend.Len()

			h.backend.failGet = key
			rec := h.record(model.EventCollateralLocked, musdToken, lock(userB, 4, 2))
			_, err := h.engine.Apply(h.ctx, rec)
			require.Error(t, err)
			require.Equal(t, before, h.backend.Len())
			require.Len(t, h.sink.events, 1)

			h.backend.failGet = ""
			applied, err := h.engine.Apply(h.ctx, rec)
			require.NoError(t, err)
			require.True(t, applied)
			require.Equal(t, "14", h.stats().TotalCollateral.String())
		})
	}
}

func TestApplyCancelledContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := h.record(model.EventCollateralLocked, musdToken, lock(userA, 10, 5))
	_, err := h.engine.Apply(ctx, rec)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, h.backend.Len())
}

func TestApplyUnknownEvent(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Apply(h.ctx, h.record("Transfer", musdToken, map[string]string{}))
	require.ErrorIs(t, err, ErrUnknownEvent)
	require.False(t, h.engine.Handles("Transfer"))
	require.True(t, h.engine.Handles(model.EventSwap))
}

func TestApplyPublishesWritesAndSurvivesSinkErrors(t *testing.T) {
	rec := &countingRecorder{}
	h := newHarness(t, func(c *Config) { c.Recorder = rec })
	h.sink.err = errors.New("nats down")
	h.apply(model.EventCollateralLocked, musdToken, lock(userA, 10, 5))
	require.Equal(t, 1, rec.publishFailures)

	require.Equal(t, []string{model.EventCollateralLocked}, h.sink.events)
	kinds := map[string]bool{}
	for _, w := range h.sink.writes[0] {
		kinds[w.Kind()] = true
	}
	require.True(t, kinds[store.KindUser])
	require.True(t, kinds[store.KindMUSDPosition])
	require.True(t, kinds[store.KindProtocolStats])
}

func TestStatsStampedByEveryEvent(t *testing.T) {
	h := newHarness(t)
	rec := h.apply(model.EventMintPercentageUpdated, musdToken, model.MintPercentageUpdatedData{Bps: "8000"})
	s := h.stats()
	require.Equal(t, rec.BlockNumber, s.UpdatedAtBlock)
	require.Equal(t, rec.Timestamp, s.UpdatedAtTimestamp)
	require.Equal(t, "8000", s.MintPercentageBps.String())

	rec = h.apply(model.EventMaxLoopsUpdated, stakeAddr, model.MaxLoopsUpdatedData{MaxLoops: "5"})
	s = h.stats()
	require.Equal(t, rec.BlockNumber, s.UpdatedAtBlock)
	require.Equal(t, "5", s.SuperStakeMaxLoops.String())
}

type countingRecorder struct {
	applied, skipped, readFailures, publishFailures int
	lastBlock                                       uint64
}

func (c *countingRecorder) EventApplied(string, time.Duration) { c.applied++ }
func (c *countingRecorder) EventSkipped(string, string)        { c.skipped++ }
func (c *countingRecorder) ReadFailed(string)                  { c.readFailures++ }
func (c *countingRecorder) CursorAdvanced(b uint64)            { c.lastBlock = b }
func (c *countingRecorder) PublishFailed()                     { c.publishFailures++ }

func TestRecorderIsNotified(t *testing.T) {
	rec := &countingRecorder{}
	h := newHarness(t, func(c *Config) { c.Recorder = rec })

	ev := h.apply(model.EventLiquidityAdded, poolAddr, model.LiquidityEventData{Provider: userA, AmountMUSD: "1", AmountRWA: "1"})
	_, err := h.engine.Apply(h.ctx, ev)
	require.NoError(t, err)

	require.Equal(t, 1, rec.applied)
	require.Equal(t, 1, rec.skipped)
	require.Equal(t, 4, rec.readFailures)
	require.Equal(t, ev.BlockNumber, rec.lastBlock)
}
