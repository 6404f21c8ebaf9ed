package contracts

import (
	"fmt"

	"musdScope/internal/model"
)

func buildCollateralLocked(args map[string]interface{}) (interface{}, error) {
	account, err := argAddress(args, "account")
	if err != nil {
		return nil, err
	}
	collateral, err := argAmount(args, "collateralAmount")
	if err != nil {
		return nil, err
	}
	minted, err := argAmount(args, "mintedAmount")
	if err != nil {
		return nil, err
	}
	return model.CollateralLockedData{Account: account, CollateralAmount: collateral, MintedAmount: minted}, nil
}

func buildCollateralUnlocked(args map[string]interface{}) (interface{}, error) {
	account, err := argAddress(args, "account")
	if err != nil {
		return nil, err
	}
	collateral, err := argAmount(args, "collateralAmount")
	if err != nil {
		return nil, err
	}
	burned, err := argAmount(args, "burnedAmount")
	if err != nil {
		return nil, err
	}
	return model.CollateralUnlockedData{Account: account, CollateralAmount: collateral, BurnedAmount: burned}, nil
}

func buildPositionLiquidated(args map[string]interface{}) (interface{}, error) {
	account, err := argAddress(args, "account")
	if err != nil {
		return nil, err
	}
	seized, err := argAmount(args, "collateralSeized")
	if err != nil {
		return nil, err
	}
	burned, err := argAmount(args, "debtBurned")
	if err != nil {
		return nil, err
	}
	return model.PositionLiquidatedData{Account: account, CollateralSeized: seized, DebtBurned: burned}, nil
}

func buildCollateralAssetUpdated(args map[string]interface{}) (interface{}, error) {
	asset, err := argAddress(args, "asset")
	if err != nil {
		return nil, err
	}
	return model.CollateralAssetUpdatedData{Asset: asset}, nil
}

func buildMintPercentageUpdated(args map[string]interface{}) (interface{}, error) {
	bps, err := argAmount(args, "bps")
	if err != nil {
		return nil, err
	}
	return model.MintPercentageUpdatedData{Bps: bps}, nil
}

func buildCollateralPriceUpdated(args map[string]interface{}) (interface{}, error) {
	price, err := argAmount(args, "price")
	if err != nil {
		return nil, err
	}
	return model.CollateralPriceUpdatedData{Price: price}, nil
}

func buildMinHealthFactorUpdated(args map[string]interface{}) (interface{}, error) {
	factor, err := argAmount(args, "newFactor")
	if err != nil {
		return nil, err
	}
	return model.MinHealthFactorUpdatedData{NewFactor: factor}, nil
}

func buildPoolCreated(args map[string]interface{}) (interface{}, error) {
	out := model.PoolCreatedData{}
	var err error
	if out.Pool, err = argAddress(args, "pool"); err != nil {
		return nil, err
	}
	if out.MUSD, err = argAddress(args, "mUSD"); err != nil {
		return nil, err
	}
	if out.RWAToken, err = argAddress(args, "rwaToken"); err != nil {
		return nil, err
	}
	if out.Verifier, err = argAddress(args, "verifier"); err != nil {
		return nil, err
	}
	if out.ImageID, err = argBytes32(args, "imageId"); err != nil {
		return nil, err
	}
	return out, nil
}

func buildLiquidity(args map[string]interface{}) (interface{}, error) {
	provider, err := argAddress(args, "provider")
	if err != nil {
		return nil, err
	}
	amountMUSD, err := argAmount(args, "amountMUSD")
	if err != nil {
		return nil, err
	}
	amountRWA, err := argAmount(args, "amountRWA")
	if err != nil {
		return nil, err
	}
	return model.LiquidityEventData{Provider: provider, AmountMUSD: amountMUSD, AmountRWA: amountRWA}, nil
}

func buildSwap(args map[string]interface{}) (interface{}, error) {
	out := model.SwapEventData{}
	var err error
	if out.User, err = argAddress(args, "user"); err != nil {
		return nil, err
	}
	if out.TokenIn, err = argAddress(args, "tokenIn"); err != nil {
		return nil, err
	}
	if out.TokenOut, err = argAddress(args, "tokenOut"); err != nil {
		return nil, err
	}
	if out.AmountIn, err = argAmount(args, "amountIn"); err != nil {
		return nil, err
	}
	if out.AmountOut, err = argAmount(args, "amountOut"); err != nil {
		return nil, err
	}
	return out, nil
}

func buildPositionOpened(args map[string]interface{}) (interface{}, error) {
	user, err := argAddress(args, "user")
	if err != nil {
		return nil, err
	}
	collateral, err := argAmount(args, "collateralLocked")
	if err != nil {
		return nil, err
	}
	debt, err := argAmount(args, "totalDebtMinted")
	if err != nil {
		return nil, err
	}
	loops, err := argAmount(args, "loopsExecuted")
	if err != nil {
		return nil, err
	}
	return model.PositionOpenedData{User: user, CollateralLocked: collateral, TotalDebtMinted: debt, LoopsExecuted: loops}, nil
}

func buildPositionClosed(args map[string]interface{}) (interface{}, error) {
	user, err := argAddress(args, "user")
	if err != nil {
		return nil, err
	}
	released, err := argAmount(args, "collateralReleased")
	if err != nil {
		return nil, err
	}
	burned, err := argAmount(args, "debtBurned")
	if err != nil {
		return nil, err
	}
	return model.PositionClosedData{User: user, CollateralReleased: released, DebtBurned: burned}, nil
}

func buildTokensConfigured(args map[string]interface{}) (interface{}, error) {
	musd, err := argAddress(args, "mUsd")
	if err != nil {
		return nil, err
	}
	meth, err := argAddress(args, "mEth")
	if err != nil {
		return nil, err
	}
	return model.TokensConfiguredData{MUSD: musd, METH: meth}, nil
}

func buildSwapperUpdated(args map[string]interface{}) (interface{}, error) {
	swapper, err := argAddress(args, "swapper")
	if err != nil {
		return nil, err
	}
	return model.SwapperUpdatedData{Swapper: swapper}, nil
}

func buildMaxLoopsUpdated(args map[string]interface{}) (interface{}, error) {
	maxLoops, err := argAmount(args, "maxLoops")
	if err != nil {
		return nil, err
	}
	return model.MaxLoopsUpdatedData{MaxLoops: maxLoops}, nil
}

func arg(args map[string]interface{}, name string) (interface{}, error) {
	v, ok := args[name]
	if !ok {
		return nil, fmt.Errorf("missing argument %s", name)
	}
	return v, nil
}
