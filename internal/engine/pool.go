package engine

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"musdScope/internal/calc"
	"musdScope/internal/model"
)

// handlePoolCreated (re)initialises the pool record and starts following the pool's logs.
func (e *Engine) handlePoolCreated(ev *event) error {
	var p model.PoolCreatedData
	if err := ev.payload(&p); err != nil {
		return err
	}
	poolID, err := parseAddress("pool", p.Pool)
	if err != nil {
		return err
	}
	musd, err := parseAddress("musd", p.MUSD)
	if err != nil {
		return err
	}
	rwaToken, err := parseAddress("rwa_token", p.RWAToken)
	if err != nil {
		return err
	}
	verifier, err := parseAddress("verifier", p.Verifier)
	if err != nil {
		return err
	}

	_, existed, err := ev.tx.LoadPool(ev.ctx, poolID)
	if err != nil {
		return err
	}

	pool := model.NewRWAPool(poolID)
	pool.MUSD = musd
	pool.RWAToken = rwaToken
	pool.Verifier = verifier
	if p.ImageID != "" {
		pool.PolicyID = p.ImageID
	}
	pool.CreatedAtBlock = ev.rec.BlockNumber
	pool.CreatedAtTimestamp = ev.rec.Timestamp

	symbol, err := e.reader.TokenSymbol(ev.ctx, rwaToken, ev.rec.BlockNumber)
	if err != nil {
		e.readFailed(ev, "symbol", rwaToken, err)
	} else {
		pool.AssetSymbol = symbol
	}

	if err := ev.tx.SavePool(pool); err != nil {
		return err
	}
	if !existed {
		ev.stats.TotalPools++
	}
	ev.newPools = append(ev.newPools, poolID)
	return nil
}

func (e *Engine) handleLiquidityAdded(ev *event) error {
	p, pool, err := e.liquidityEvent(ev)
	if err != nil {
		return err
	}
	amountMUSD, err := parseAmount("amount_musd", p.AmountMUSD)
	if err != nil {
		return err
	}
	amountRWA, err := parseAmount("amount_rwa", p.AmountRWA)
	if err != nil {
		return err
	}

	e.syncPool(ev, pool)
	pool.TotalVolume = calc.Add(pool.TotalVolume, calc.Add(amountMUSD, amountRWA))
	if err := ev.tx.SavePool(pool); err != nil {
		return err
	}
	return e.updateLiquidityPosition(ev, pool, p.Provider)
}

func (e *Engine) handleLiquidityRemoved(ev *event) error {
	p, pool, err := e.liquidityEvent(ev)
	if err != nil {
		return err
	}
	amountMUSD, err := parseAmount("amount_musd", p.AmountMUSD)
	if err != nil {
		return err
	}
	amountRWA, err := parseAmount("amount_rwa", p.AmountRWA)
	if err != nil {
		return err
	}

	e.syncPool(ev, pool)
	pool.ReserveMUSD = calc.SaturatingSub(pool.ReserveMUSD, amountMUSD)
	pool.ReserveRWA = calc.SaturatingSub(pool.ReserveRWA, amountRWA)
	if err := ev.tx.SavePool(pool); err != nil {
		return err
	}
	return e.updateLiquidityPosition(ev, pool, p.Provider)
}

func (e *Engine) handleSwap(ev *event) error {
	var p model.SwapEventData
	if err := ev.payload(&p); err != nil {
		return err
	}
	user, err := parseAddress("user", p.User)
	if err != nil {
		return err
	}
	tokenIn, err := parseAddress("token_in", p.TokenIn)
	if err != nil {
		return err
	}
	tokenOut, err := parseAddress("token_out", p.TokenOut)
	if err != nil {
		return err
	}
	amountIn, err := parseAmount("amount_in", p.AmountIn)
	if err != nil {
		return err
	}
	amountOut, err := parseAmount("amount_out", p.AmountOut)
	if err != nil {
		return err
	}
	pool, err := e.loadEventPool(ev)
	if err != nil {
		return err
	}

	e.syncPool(ev, pool)
	pool.TotalVolume = calc.Add(pool.TotalVolume, amountIn)
	pool.TotalSwaps++
	if err := ev.tx.SavePool(pool); err != nil {
		return err
	}
	if err := ev.ensureUser(user); err != nil {
		return err
	}

	swap := &model.RWASwap{
		ID:          ev.id(),
		Pool:        pool.ID,
		User:        user,
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		AmountIn:    amountIn,
		AmountOut:   amountOut,
		TxHash:      ev.rec.TxHash,
		BlockNumber: ev.rec.BlockNumber,
		LogIndex:    ev.rec.LogIndex,
		Timestamp:   ev.rec.Timestamp,
	}
	if err := ev.tx.AppendSwap(ev.ctx, swap); err != nil {
		return err
	}

	// Global counters are the sum over all pools, not a copy of this pool's counters.
	ev.stats.TotalVolume = calc.Add(ev.stats.TotalVolume, amountIn)
	ev.stats.TotalSwaps++
	return nil
}

func (e *Engine) liquidityEvent(ev *event) (model.LiquidityEventData, *model.RWAPool, error) {
	var p model.LiquidityEventData
	if err := ev.payload(&p); err != nil {
		return p, nil, err
	}
	provider, err := parseAddress("provider", p.Provider)
	if err != nil {
		return p, nil, err
	}
	p.Provider = provider
	pool, err := e.loadEventPool(ev)
	if err != nil {
		return p, nil, err
	}
	return p, pool, nil
}

// loadEventPool loads the emitting pool, zero-valued if its creation was never seen.
func (e *Engine) loadEventPool(ev *event) (*model.RWAPool, error) {
	poolID, err := parseAddress("address", ev.rec.Address)
	if err != nil {
		return nil, err
	}
	pool, found, err := ev.tx.LoadPool(ev.ctx, poolID)
	if err != nil {
		return nil, err
	}
	if !found {
		e.logger.Warn("event for unknown pool", zap.String("pool", poolID), zap.String("event", ev.rec.EventName))
	}
	return pool, nil
}

// syncPool pulls reserves and total liquidity from the pool contract. Each field
// is read independently and keeps its stored value when the read fails.
func (e *Engine) syncPool(ev *event, pool *model.RWAPool) {
	block := ev.rec.BlockNumber
	if v, ok := e.readUint(ev, "reserveMUSD", pool.ID, func(ctx context.Context) (*big.Int, error) {
		return e.reader.ReserveMUSD(ctx, pool.ID, block)
	}); ok {
		pool.ReserveMUSD = v
	}
	if v, ok := e.readUint(ev, "reserveRWA", pool.ID, func(ctx context.Context) (*big.Int, error) {
		return e.reader.ReserveRWA(ctx, pool.ID, block)
	}); ok {
		pool.ReserveRWA = v
	}
	if v, ok := e.readUint(ev, "totalLiquidity", pool.ID, func(ctx context.Context) (*big.Int, error) {
		return e.reader.TotalLiquidity(ctx, pool.ID, block)
	}); ok {
		pool.TotalLiquidity = v
	}
}

// updateLiquidityPosition reconciles the provider's share and recomputes its claim on the reserves.
func (e *Engine) updateLiquidityPosition(ev *event, pool *model.RWAPool, provider string) error {
	if err := ev.ensureUser(provider); err != nil {
		return err
	}
	lp, err := ev.tx.LoadLiquidityPosition(ev.ctx, pool.ID, provider)
	if err != nil {
		return err
	}
	if v, ok := e.readUint(ev, "liquidityBalances", pool.ID, func(ctx context.Context) (*big.Int, error) {
		return e.reader.LiquidityBalance(ctx, pool.ID, provider, ev.rec.BlockNumber)
	}); ok {
		lp.LiquidityProvided = v
	}
	lp.AmountMUSD, lp.AmountRWA = calc.PoolShare(lp.LiquidityProvided, pool.TotalLiquidity, pool.ReserveMUSD, pool.ReserveRWA)
	lp.BlockNumber = ev.rec.BlockNumber
	lp.Timestamp = ev.rec.Timestamp
	return ev.tx.SaveLiquidityPosition(lp)
}

func (e *Engine) readUint(ev *event, method, target string, read func(context.Context) (*big.Int, error)) (*big.Int, bool) {
	v, err := read(ev.ctx)
	if err != nil {
		e.readFailed(ev, method, target, err)
		return nil, false
	}
	if v == nil || v.Sign() < 0 {
		e.readFailed(ev, method, target, errInvalidRead)
		return nil, false
	}
	return v, true
}

func (e *Engine) readFailed(ev *event, method, target string, err error) {
	e.recorder.ReadFailed(method)
	e.logger.Warn("chain read failed, keeping stored value",
		zap.String("method", method),
		zap.String("target", target),
		zap.Uint64("block", ev.rec.BlockNumber),
		zap.Error(err),
	)
}
