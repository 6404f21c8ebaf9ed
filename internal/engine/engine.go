// Package engine folds decoded protocol events into the entity store.
//
// Events are applied one at a time in chain order. Each event runs in its own
// store.Tx: the handler's writes, the ProtocolStats stamp and the cursor are
// committed together or not at all.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"musdScope/internal/model"
	"musdScope/internal/store"
)

var (
	// ErrOutOfOrder is returned for an event at or before the stored cursor when replays are rejected.
	ErrOutOfOrder = errors.New("engine: event out of order")
	// ErrUnknownEvent is returned for event names no handler is registered for.
	ErrUnknownEvent = errors.New("engine: unknown event")
	// ErrMalformed wraps payloads that cannot be parsed. Nothing is committed for them.
	ErrMalformed = errors.New("engine: malformed payload")
)

// ChainReader performs the authoritative pool and token reads. Each call may fail;
// the handler then keeps the previously stored value.
type ChainReader interface {
	ReserveMUSD(ctx context.Context, pool string, block uint64) (*big.Int, error)
	ReserveRWA(ctx context.Context, pool string, block uint64) (*big.Int, error)
	TotalLiquidity(ctx context.Context, pool string, block uint64) (*big.Int, error)
	LiquidityBalance(ctx context.Context, pool, user string, block uint64) (*big.Int, error)
	TokenSymbol(ctx context.Context, token string, block uint64) (string, error)
}

// SourceRegistry is told about pools created by the factory so their logs get fetched.
type SourceRegistry interface {
	RegisterPool(pool string, fromBlock uint64)
}

// Sink receives the writes of every committed event.
type Sink interface {
	Publish(ctx context.Context, ev model.TypedEventRecord, writes []store.Write) error
}

// Recorder collects engine metrics.
type Recorder interface {
	EventApplied(name string, took time.Duration)
	EventSkipped(name, reason string)
	ReadFailed(method string)
	CursorAdvanced(block uint64)
	PublishFailed()
}

// Config wires the engine's collaborators. Only the store is mandatory.
type Config struct {
	Reader   ChainReader
	Registry SourceRegistry
	Sink     Sink
	Recorder Recorder
	Logger   *zap.Logger

	// RejectReplays turns events at or before the cursor into ErrOutOfOrder instead of skipping them.
	RejectReplays bool
	// ResetOpenOnReopen restamps openedAt when a closed SuperStake position is opened again.
	ResetOpenOnReopen bool
}

// Engine is the event reducer.
type Engine struct {
	store    *store.Store
	reader   ChainReader
	registry SourceRegistry
	sink     Sink
	recorder Recorder
	logger   *zap.Logger
	cfg      Config
	handlers map[string]handlerFunc
}

type handlerFunc func(ev *event) error

func New(st *store.Store, cfg Config) *Engine {
	e := &Engine{
		store:    st,
		reader:   cfg.Reader,
		registry: cfg.Registry,
		sink:     cfg.Sink,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
		cfg:      cfg,
	}
	if e.reader == nil {
		e.reader = NopReader{}
	}
	if e.recorder == nil {
		e.recorder = nopRecorder{}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}

	e.handlers = map[string]handlerFunc{
		model.EventCollateralLocked:       e.handleCollateralLocked,
		model.EventCollateralUnlocked:     e.handleCollateralUnlocked,
		model.EventPositionLiquidated:     e.handlePositionLiquidated,
		model.EventCollateralAssetUpdated: e.handleCollateralAssetUpdated,
		model.EventMintPercentageUpdated:  e.handleMintPercentageUpdated,
		model.EventCollateralPriceUpdated: e.handleCollateralPriceUpdated,
		model.EventMinHealthFactorUpdated: e.handleMinHealthFactorUpdated,

		model.EventPoolCreated:      e.handlePoolCreated,
		model.EventLiquidityAdded:   e.handleLiquidityAdded,
		model.EventLiquidityRemoved: e.handleLiquidityRemoved,
		model.EventSwap:             e.handleSwap,

		model.EventPositionOpened:   e.handlePositionOpened,
		model.EventPositionClosed:   e.handlePositionClosed,
		model.EventTokensConfigured: e.handleTokensConfigured,
		model.EventSwapperUpdated:   e.handleSwapperUpdated,
		model.EventMaxLoopsUpdated:  e.handleMaxLoopsUpdated,
	}
	return e
}

// Handles reports whether the engine has a handler for the event name.
func (e *Engine) Handles(name string) bool {
	_, ok := e.handlers[name]
	return ok
}

// Apply reduces one event. It returns false without error when the event was
// skipped as a re-delivery.
func (e *Engine) Apply(ctx context.Context, rec model.TypedEventRecord) (bool, error) {
	start := time.Now()

	handler, ok := e.handlers[rec.EventName]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownEvent, rec.EventName)
	}

	tx := e.store.Begin()
	cursor, found, err := tx.Cursor(ctx)
	if err != nil {
		tx.Discard()
		return false, err
	}
	if found && !cursor.Before(rec.BlockNumber, rec.LogIndex) {
		tx.Discard()
		if e.cfg.RejectReplays {
			return false, fmt.Errorf("%w: %s at %d/%d, cursor at %d/%d", ErrOutOfOrder,
				rec.EventName, rec.BlockNumber, rec.LogIndex, cursor.BlockNumber, cursor.LogIndex)
		}
		e.recorder.EventSkipped(rec.EventName, "replay")
		e.logger.Debug("skip replayed event",
			zap.String("event", rec.EventName),
			zap.Uint64("block", rec.BlockNumber),
			zap.Uint64("log_index", rec.LogIndex),
		)
		return false, nil
	}

	stats, err := tx.LoadStats(ctx)
	if err != nil {
		tx.Discard()
		return false, err
	}

	ev := &event{ctx: ctx, tx: tx, stats: stats, rec: rec}
	if err := handler(ev); err != nil {
		tx.Discard()
		return false, fmt.Errorf("apply %s %s: %w", rec.EventName, rec.EventID(), err)
	}
	if err := ctx.Err(); err != nil {
		tx.Discard()
		return false, fmt.Errorf("apply %s %s: %w", rec.EventName, rec.EventID(), err)
	}

	stampStats(stats, rec)
	if err := tx.SaveStats(stats); err != nil {
		tx.Discard()
		return false, fmt.Errorf("apply %s %s: %w", rec.EventName, rec.EventID(), err)
	}
	if err := tx.SetCursor(model.Cursor{BlockNumber: rec.BlockNumber, LogIndex: rec.LogIndex, TxHash: rec.TxHash}); err != nil {
		tx.Discard()
		return false, fmt.Errorf("apply %s %s: %w", rec.EventName, rec.EventID(), err)
	}
	writes := tx.Writes()
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("apply %s %s: %w", rec.EventName, rec.EventID(), err)
	}

	if e.registry != nil {
		for _, pool := range ev.newPools {
			e.registry.RegisterPool(pool, rec.BlockNumber)
		}
	}
	if e.sink != nil {
		if err := e.sink.Publish(ctx, rec, writes); err != nil {
			e.recorder.PublishFailed()
			e.logger.Warn("publish failed", zap.String("event", rec.EventName), zap.String("id", rec.EventID()), zap.Error(err))
		}
	}

	e.recorder.EventApplied(rec.EventName, time.Since(start))
	e.recorder.CursorAdvanced(rec.BlockNumber)
	return true, nil
}

// NopReader fails every read, so reconciled fields keep their stored values.
type NopReader struct{}

var errNoReader = errors.New("no chain reader configured")

func (NopReader) ReserveMUSD(context.Context, string, uint64) (*big.Int, error) {
	return nil, errNoReader
}

func (NopReader) ReserveRWA(context.Context, string, uint64) (*big.Int, error) {
	return nil, errNoReader
}

func (NopReader) TotalLiquidity(context.Context, string, uint64) (*big.Int, error) {
	return nil, errNoReader
}

func (NopReader) LiquidityBalance(context.Context, string, string, uint64) (*big.Int, error) {
	return nil, errNoReader
}

func (NopReader) TokenSymbol(context.Context, string, uint64) (string, error) {
	return "", errNoReader
}

type nopRecorder struct{}

func (nopRecorder) EventApplied(string, time.Duration) {}
func (nopRecorder) EventSkipped(string, string)        {}
func (nopRecorder) ReadFailed(string)                  {}
func (nopRecorder) CursorAdvanced(uint64)              {}
func (nopRecorder) PublishFailed()                     {}
