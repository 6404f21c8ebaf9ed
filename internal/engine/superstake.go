package engine

import (
	"math/big"

	"musdScope/internal/calc"
	"musdScope/internal/model"
)

// handlePositionOpened adds to the user's leveraged position. loopsExecuted
// replaces the stored loop count.
func (e *Engine) handlePositionOpened(ev *event) error {
	var p model.PositionOpenedData
	if err := ev.payload(&p); err != nil {
		return err
	}
	userID, err := parseAddress("user", p.User)
	if err != nil {
		return err
	}
	collateral, err := parseAmount("collateral_locked", p.CollateralLocked)
	if err != nil {
		return err
	}
	debt, err := parseAmount("total_debt_minted", p.TotalDebtMinted)
	if err != nil {
		return err
	}
	loops, err := parseAmount("loops_executed", p.LoopsExecuted)
	if err != nil {
		return err
	}

	user, _, err := ev.tx.LoadUser(ev.ctx, userID)
	if err != nil {
		return err
	}
	pos, _, err := ev.tx.LoadSuperStakePosition(ev.ctx, userID)
	if err != nil {
		return err
	}

	kind := model.StakeDeposit
	reopening := !pos.Active && pos.ClosedAtBlock != nil
	if pos.OpenedAtBlock == 0 || (reopening && e.cfg.ResetOpenOnReopen) {
		pos.OpenedAtBlock = ev.rec.BlockNumber
		pos.OpenedAtTimestamp = ev.rec.Timestamp
		kind = model.StakeOpen
	}

	pos.CollateralLocked = calc.Add(pos.CollateralLocked, collateral)
	pos.TotalDebtMinted = calc.Add(pos.TotalDebtMinted, debt)
	pos.Loops = loops
	pos.Active = true
	pos.UpdatedAtBlock = ev.rec.BlockNumber
	pos.UpdatedAtTimestamp = ev.rec.Timestamp
	pos.ClosedAtBlock = nil
	pos.ClosedAtTimestamp = nil
	if err := ev.tx.SaveSuperStakePosition(pos); err != nil {
		return err
	}

	user.SuperStakePosition = pos.ID
	if err := ev.tx.SaveUser(user); err != nil {
		return err
	}
	return ev.tx.AppendSuperStakeHistory(ev.ctx, stakeHistory(ev, pos, collateral, debt, kind))
}

// handlePositionClosed unwinds part or all of a position. The position goes
// inactive once no collateral is left.
func (e *Engine) handlePositionClosed(ev *event) error {
	var p model.PositionClosedData
	if err := ev.payload(&p); err != nil {
		return err
	}
	userID, err := parseAddress("user", p.User)
	if err != nil {
		return err
	}
	released, err := parseAmount("collateral_released", p.CollateralReleased)
	if err != nil {
		return err
	}
	burned, err := parseAmount("debt_burned", p.DebtBurned)
	if err != nil {
		return err
	}

	if err := ev.ensureUser(userID); err != nil {
		return err
	}
	pos, _, err := ev.tx.LoadSuperStakePosition(ev.ctx, userID)
	if err != nil {
		return err
	}

	pos.CollateralLocked = calc.SaturatingSub(pos.CollateralLocked, released)
	pos.TotalDebtMinted = calc.SaturatingSub(pos.TotalDebtMinted, burned)
	pos.UpdatedAtBlock = ev.rec.BlockNumber
	pos.UpdatedAtTimestamp = ev.rec.Timestamp

	kind := model.StakeWithdraw
	if pos.CollateralLocked.Sign() == 0 {
		block, ts := ev.rec.BlockNumber, ev.rec.Timestamp
		pos.Active = false
		pos.ClosedAtBlock = &block
		pos.ClosedAtTimestamp = &ts
		kind = model.StakeClose
	}
	if err := ev.tx.SaveSuperStakePosition(pos); err != nil {
		return err
	}
	return ev.tx.AppendSuperStakeHistory(ev.ctx, stakeHistory(ev, pos, calc.Neg(released), calc.Neg(burned), kind))
}

func stakeHistory(ev *event, pos *model.SuperStakePosition, collateralChange, debtChange *big.Int, kind string) *model.SuperStakePositionHistory {
	return &model.SuperStakePositionHistory{
		ID:               ev.id(),
		Position:         pos.ID,
		User:             pos.User,
		CollateralLocked: new(big.Int).Set(pos.CollateralLocked),
		TotalDebtMinted:  new(big.Int).Set(pos.TotalDebtMinted),
		CollateralChange: collateralChange,
		DebtChange:       debtChange,
		Loops:            calc.Add(pos.Loops, nil),
		EventType:        kind,
		BlockNumber:      ev.rec.BlockNumber,
		LogIndex:         ev.rec.LogIndex,
		Timestamp:        ev.rec.Timestamp,
		TxHash:           ev.rec.TxHash,
	}
}

func (e *Engine) handleTokensConfigured(ev *event) error {
	var p model.TokensConfiguredData
	if err := ev.payload(&p); err != nil {
		return err
	}
	musd, err := parseAddress("musd", p.MUSD)
	if err != nil {
		return err
	}
	meth, err := parseAddress("meth", p.METH)
	if err != nil {
		return err
	}
	ev.stats.SuperStakeMUSD = musd
	ev.stats.SuperStakeMETH = meth
	return nil
}

func (e *Engine) handleSwapperUpdated(ev *event) error {
	var p model.SwapperUpdatedData
	if err := ev.payload(&p); err != nil {
		return err
	}
	swapper, err := parseAddress("swapper", p.Swapper)
	if err != nil {
		return err
	}
	ev.stats.SuperStakeSwapper = swapper
	return nil
}

func (e *Engine) handleMaxLoopsUpdated(ev *event) error {
	var p model.MaxLoopsUpdatedData
	if err := ev.payload(&p); err != nil {
		return err
	}
	maxLoops, err := parseAmount("max_loops", p.MaxLoops)
	if err != nil {
		return err
	}
	ev.stats.SuperStakeMaxLoops = maxLoops
	return nil
}
