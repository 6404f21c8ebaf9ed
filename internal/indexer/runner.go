// Package indexer fetches protocol logs from the chain and feeds them, in order,
// through the decoder into the reduction engine.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"musdScope/internal/chain"
	"musdScope/internal/contracts"
	"musdScope/internal/model"
	"musdScope/internal/storage"
	"musdScope/internal/store"
)

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	FromBlock     uint64
	ToBlock       uint64
	BatchSize     uint64
	Confirmations uint64
	Follow        bool
	PollInterval  time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration
}

// LogSource is the chain surface the runner needs. *chain.Client satisfies it.
type LogSource interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamps(ctx context.Context, numbers []uint64) (map[uint64]uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// Applier reduces one typed event. *engine.Engine satisfies it.
type Applier interface {
	Apply(ctx context.Context, rec model.TypedEventRecord) (bool, error)
	Handles(name string) bool
}

// Metrics receives per-range progress.
type Metrics interface {
	RangeProcessed(to uint64, logs int, took time.Duration)
	PoolsTracked(n int)
}

// Deps wires the runner's collaborators. Tee and Metrics are optional.
type Deps struct {
	Chain   LogSource
	Decoder *contracts.Decoder
	Engine  Applier
	Store   *store.Store
	Sources *Sources
	Tee     storage.Storage
	Metrics Metrics
	Logger  *zap.Logger
}

// Runner streams logs from the chain into the engine.
type Runner struct {
	cfg     RunConfig
	chain   LogSource
	decoder *contracts.Decoder
	engine  Applier
	store   *store.Store
	sources *Sources
	tee     storage.Storage
	metrics Metrics
	logger  *zap.Logger

	topics      []common.Hash
	poolCreated common.Hash
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, deps Deps) (*Runner, error) {
	if deps.Chain == nil {
		return nil, errors.New("chain client is nil")
	}
	if deps.Decoder == nil || deps.Engine == nil || deps.Store == nil || deps.Sources == nil {
		return nil, errors.New("decoder, engine, store and sources are required")
	}
	if cfg.BatchSize == 0 {
		return nil, errors.New("batch size must be greater than zero")
	}
	if deps.Tee == nil {
		deps.Tee = storage.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	for _, name := range deps.Decoder.EventNames() {
		if !deps.Engine.Handles(name) {
			return nil, fmt.Errorf("engine has no handler for decoded event %s", name)
		}
	}
	poolCreated, ok := deps.Decoder.EventTopic(model.EventPoolCreated)
	if !ok {
		return nil, errors.New("decoder does not know PoolCreated")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}

	return &Runner{
		cfg:         cfg,
		chain:       deps.Chain,
		decoder:     deps.Decoder,
		engine:      deps.Engine,
		store:       deps.Store,
		sources:     deps.Sources,
		tee:         deps.Tee,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		topics:      deps.Decoder.Topics(),
		poolCreated: poolCreated,
	}, nil
}

// Run syncs from the resume point to the confirmed head. In follow mode it then
// keeps polling for new blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	chainID, err := r.chain.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()

	if len(r.sources.Addresses()) == 0 {
		return errors.New("at least one contract address is required")
	}

	loaded, err := r.sources.LoadPools(ctx, r.store)
	if err != nil {
		return fmt.Errorf("load pools: %w", err)
	}
	r.trackPools()

	from := r.cfg.FromBlock
	last, ok, err := r.store.LoadCheckpoint(ctx)
	if err != nil {
		return err
	}
	if ok && last >= from {
		from = last + 1
	}
	r.logger.Info("resume", zap.Uint64("from", from), zap.Bool("checkpoint", ok), zap.Int("pools", loaded))

	for {
		latest, err := r.latestBlock(ctx)
		if err != nil {
			return err
		}

		if window, ok := SyncWindow(from, latest, r.cfg.Confirmations, r.cfg.ToBlock); ok {
			if err := r.syncRange(ctx, chainIDValue, window); err != nil {
				if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
					return nil
				}
				return err
			}
			from = window.To + 1
		} else {
			r.logger.Debug("nothing to sync", zap.Uint64("from", from), zap.Uint64("latest", latest))
		}

		if !r.cfg.Follow || (r.cfg.ToBlock != 0 && from > r.cfg.ToBlock) {
			return nil
		}

		timer := time.NewTimer(r.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (r *Runner) latestBlock(ctx context.Context) (uint64, error) {
	var latest uint64
	err := chain.WithRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		latest, err = r.chain.LatestBlockNumber(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("get latest block: %w", err)
	}
	return latest, nil
}

func (r *Runner) syncRange(ctx context.Context, chainID uint64, window BlockRange) error {
	ranges, err := SplitRange(window.From, window.To, r.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, blockRange := range ranges {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.processRange(ctx, chainID, blockRange); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) processRange(ctx context.Context, chainID uint64, br BlockRange) error {
	start := time.Now()
	r.logger.Info("fetch logs", zap.Stringer("range", br), zap.Uint64("blocks", br.Len()))

	logs, err := r.filterLogs(ctx, br.From, br.To, r.sources.AddressesUpTo(br.To))
	if err != nil {
		return fmt.Errorf("filter logs: %w", err)
	}
	extra, err := r.fetchDiscoveredPools(ctx, chainID, logs, br.To)
	if err != nil {
		return err
	}
	merged := mergeLogs(logs, extra)

	timestamps, err := r.blockTimestamps(ctx, merged)
	if err != nil {
		return fmt.Errorf("block timestamps: %w", err)
	}
	ingestedAt := time.Now().UTC()
	records := make([]model.LogRecord, 0, len(merged))
	for _, l := range merged {
		ts, ok := timestamps[l.BlockNumber]
		if !ok {
			return fmt.Errorf("no timestamp for block %d", l.BlockNumber)
		}
		records = append(records, buildLogRecord(chainID, l, ts, ingestedAt))
	}
	if err := r.tee.PutLogBatch(records); err != nil {
		return fmt.Errorf("store logs: %w", err)
	}

	// Events committed before an interrupted range are already reduced; only
	// the tail after the cursor reaches the engine.
	cursor, haveCursor, err := r.store.Cursor(ctx)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}

	applied, replayed := 0, 0
	for _, rec := range records {
		if haveCursor && !cursor.Before(rec.BlockNumber, rec.LogIndex) {
			replayed++
			continue
		}
		ok, err := r.apply(ctx, rec)
		if err != nil {
			return err
		}
		if ok {
			applied++
		}
	}

	if err := r.store.SaveCheckpoint(ctx, br.To); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	r.trackPools()
	if r.metrics != nil {
		r.metrics.RangeProcessed(br.To, len(records), time.Since(start))
	}

	r.logger.Info("batch complete",
		zap.Int("logs", len(records)),
		zap.Int("applied", applied),
		zap.Int("already_applied", replayed),
		zap.Int("new_pool_logs", len(extra)),
		zap.Uint64("from", br.From),
		zap.Uint64("to", br.To),
	)
	return nil
}

func (r *Runner) apply(ctx context.Context, rec model.LogRecord) (bool, error) {
	if !r.decoder.CanDecode(rec.Topic0()) {
		r.logger.Debug("skip unsupported log", zap.String("topic0", rec.Topic0()), zap.String("address", rec.Address))
		return false, nil
	}
	typed, err := r.decoder.Decode(rec)
	if err != nil {
		return false, fmt.Errorf("decode log %s-%d: %w", rec.TxHash, rec.LogIndex, err)
	}
	ev, err := typed.Record()
	if err != nil {
		return false, err
	}
	return r.engine.Apply(ctx, ev)
}

// fetchDiscoveredPools finds PoolCreated logs in the batch for pools not yet
// followed and fetches those pools' logs up to toBlock, so activity in the
// creation batch is not missed.
func (r *Runner) fetchDiscoveredPools(ctx context.Context, chainID uint64, logs []types.Log, toBlock uint64) ([]types.Log, error) {
	factory := r.sources.Factory()
	var (
		newPools []common.Address
		from     uint64
	)
	seen := make(map[common.Address]struct{})
	for _, l := range logs {
		if l.Removed || l.Address != factory || len(l.Topics) == 0 || l.Topics[0] != r.poolCreated {
			continue
		}
		typed, err := r.decoder.Decode(buildLogRecord(chainID, l, 0, time.Time{}))
		if err != nil {
			return nil, fmt.Errorf("decode PoolCreated %s: %w", l.TxHash.Hex(), err)
		}
		data, ok := typed.Decoded.(model.PoolCreatedData)
		if !ok || !common.IsHexAddress(data.Pool) {
			continue
		}
		pool := common.HexToAddress(data.Pool)
		if _, dup := seen[pool]; dup || r.sources.Tracks(pool) {
			continue
		}
		seen[pool] = struct{}{}
		if len(newPools) == 0 || l.BlockNumber < from {
			from = l.BlockNumber
		}
		newPools = append(newPools, pool)
	}
	if len(newPools) == 0 {
		return nil, nil
	}

	r.logger.Info("discovered pools", zap.Int("count", len(newPools)), zap.Uint64("from", from), zap.Uint64("to", toBlock))
	logs, err := r.filterLogs(ctx, from, toBlock, newPools)
	if err != nil {
		return nil, fmt.Errorf("filter new pool logs: %w", err)
	}
	return logs, nil
}

func (r *Runner) trackPools() {
	if r.metrics != nil {
		r.metrics.PoolsTracked(r.sources.PoolCount())
	}
}

func (r *Runner) filterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address) ([]types.Log, error) {
	var logs []types.Log
	err := chain.WithRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.chain.FilterLogs(ctx, fromBlock, toBlock, addresses, r.topics)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (r *Runner) blockTimestamps(ctx context.Context, logs []types.Log) (map[uint64]uint64, error) {
	if len(logs) == 0 {
		return nil, nil
	}
	numbers := make([]uint64, 0, len(logs))
	for _, l := range logs {
		numbers = append(numbers, l.BlockNumber)
	}
	var out map[uint64]uint64
	err := chain.WithRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		out, err = r.chain.BlockTimestamps(ctx, numbers)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Int("logs", len(logs)))
		}
		return err
	})
	return out, err
}
