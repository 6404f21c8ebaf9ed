package engine

import (
	"math/big"

	"musdScope/internal/calc"
	"musdScope/internal/model"
)

func (e *Engine) handleCollateralLocked(ev *event) error {
	var p model.CollateralLockedData
	if err := ev.payload(&p); err != nil {
		return err
	}
	account, err := parseAddress("account", p.Account)
	if err != nil {
		return err
	}
	collateral, err := parseAmount("collateral_amount", p.CollateralAmount)
	if err != nil {
		return err
	}
	minted, err := parseAmount("minted_amount", p.MintedAmount)
	if err != nil {
		return err
	}

	user, _, err := ev.tx.LoadUser(ev.ctx, account)
	if err != nil {
		return err
	}
	wasActive := user.Active()
	user.CollateralBalance = calc.Add(user.CollateralBalance, collateral)
	user.DebtBalance = calc.Add(user.DebtBalance, minted)
	user.MUSDBalance = calc.Add(user.MUSDBalance, minted)
	user.HealthFactor = calc.HealthFactor(user.CollateralBalance, user.DebtBalance, ev.stats.CollateralPriceUSD)

	ev.stats.TotalCollateral = calc.Add(ev.stats.TotalCollateral, collateral)
	ev.stats.TotalDebt = calc.Add(ev.stats.TotalDebt, minted)
	ev.stats.TotalSupply = calc.Add(ev.stats.TotalSupply, minted)
	trackActive(ev.stats, wasActive, user.Active())

	if err := ev.tx.SaveUser(user); err != nil {
		return err
	}
	return ev.tx.AppendMUSDPosition(ev.ctx, positionSnapshot(ev, user, collateral, minted, model.PositionLock))
}

func (e *Engine) handleCollateralUnlocked(ev *event) error {
	var p model.CollateralUnlockedData
	if err := ev.payload(&p); err != nil {
		return err
	}
	account, err := parseAddress("account", p.Account)
	if err != nil {
		return err
	}
	collateral, err := parseAmount("collateral_amount", p.CollateralAmount)
	if err != nil {
		return err
	}
	burned, err := parseAmount("burned_amount", p.BurnedAmount)
	if err != nil {
		return err
	}

	user, _, err := ev.tx.LoadUser(ev.ctx, account)
	if err != nil {
		return err
	}
	wasActive := user.Active()
	user.CollateralBalance = calc.SaturatingSub(user.CollateralBalance, collateral)
	user.DebtBalance = calc.SaturatingSub(user.DebtBalance, burned)
	user.MUSDBalance = calc.SaturatingSub(user.MUSDBalance, burned)
	user.HealthFactor = calc.HealthFactor(user.CollateralBalance, user.DebtBalance, ev.stats.CollateralPriceUSD)

	ev.stats.TotalCollateral = calc.SaturatingSub(ev.stats.TotalCollateral, collateral)
	ev.stats.TotalDebt = calc.SaturatingSub(ev.stats.TotalDebt, burned)
	ev.stats.TotalSupply = calc.SaturatingSub(ev.stats.TotalSupply, burned)
	trackActive(ev.stats, wasActive, user.Active())

	if err := ev.tx.SaveUser(user); err != nil {
		return err
	}
	return ev.tx.AppendMUSDPosition(ev.ctx, positionSnapshot(ev, user, calc.Neg(collateral), calc.Neg(burned), model.PositionUnlock))
}

// handlePositionLiquidated seizes collateral and burns debt. The user's mUSD
// balance is left alone: the liquidator pays the debt, not the user.
func (e *Engine) handlePositionLiquidated(ev *event) error {
	var p model.PositionLiquidatedData
	if err := ev.payload(&p); err != nil {
		return err
	}
	account, err := parseAddress("account", p.Account)
	if err != nil {
		return err
	}
	seized, err := parseAmount("collateral_seized", p.CollateralSeized)
	if err != nil {
		return err
	}
	burned, err := parseAmount("debt_burned", p.DebtBurned)
	if err != nil {
		return err
	}

	user, _, err := ev.tx.LoadUser(ev.ctx, account)
	if err != nil {
		return err
	}
	wasActive := user.Active()
	user.CollateralBalance = calc.SaturatingSub(user.CollateralBalance, seized)
	user.DebtBalance = calc.SaturatingSub(user.DebtBalance, burned)
	user.HealthFactor = calc.HealthFactor(user.CollateralBalance, user.DebtBalance, ev.stats.CollateralPriceUSD)

	ev.stats.TotalCollateral = calc.SaturatingSub(ev.stats.TotalCollateral, seized)
	ev.stats.TotalDebt = calc.SaturatingSub(ev.stats.TotalDebt, burned)
	ev.stats.TotalSupply = calc.SaturatingSub(ev.stats.TotalSupply, burned)
	trackActive(ev.stats, wasActive, user.Active())

	if err := ev.tx.SaveUser(user); err != nil {
		return err
	}
	return ev.tx.AppendMUSDPosition(ev.ctx, positionSnapshot(ev, user, calc.Neg(seized), calc.Neg(burned), model.PositionLiquidation))
}

func positionSnapshot(ev *event, user *model.User, collateralChange, debtChange *big.Int, kind string) *model.MUSDPosition {
	return &model.MUSDPosition{
		ID:               ev.id(),
		User:             user.ID,
		Collateral:       new(big.Int).Set(user.CollateralBalance),
		Debt:             new(big.Int).Set(user.DebtBalance),
		CollateralChange: collateralChange,
		DebtChange:       debtChange,
		EventType:        kind,
		HealthFactor:     user.HealthFactor,
		BlockNumber:      ev.rec.BlockNumber,
		LogIndex:         ev.rec.LogIndex,
		Timestamp:        ev.rec.Timestamp,
		TxHash:           ev.rec.TxHash,
	}
}

func (e *Engine) handleCollateralAssetUpdated(ev *event) error {
	var p model.CollateralAssetUpdatedData
	if err := ev.payload(&p); err != nil {
		return err
	}
	asset, err := parseAddress("asset", p.Asset)
	if err != nil {
		return err
	}
	ev.stats.CollateralAsset = asset
	return nil
}

func (e *Engine) handleMintPercentageUpdated(ev *event) error {
	var p model.MintPercentageUpdatedData
	if err := ev.payload(&p); err != nil {
		return err
	}
	bps, err := parseAmount("bps", p.Bps)
	if err != nil {
		return err
	}
	ev.stats.MintPercentageBps = bps
	return nil
}

func (e *Engine) handleCollateralPriceUpdated(ev *event) error {
	var p model.CollateralPriceUpdatedData
	if err := ev.payload(&p); err != nil {
		return err
	}
	price, err := parseAmount("price", p.Price)
	if err != nil {
		return err
	}
	ev.stats.CollateralPriceUSD = price
	return nil
}

func (e *Engine) handleMinHealthFactorUpdated(ev *event) error {
	var p model.MinHealthFactorUpdatedData
	if err := ev.payload(&p); err != nil {
		return err
	}
	factor, err := parseAmount("new_factor", p.NewFactor)
	if err != nil {
		return err
	}
	ev.stats.MinHealthFactor = factor
	return nil
}
