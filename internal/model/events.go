package model

// Event names emitted by the mUSD, RWAPoolFactory, RWAPool and SuperStake contracts.
const (
	EventCollateralLocked       = "CollateralLocked"
	EventCollateralUnlocked     = "CollateralUnlocked"
	EventPositionLiquidated     = "PositionLiquidated"
	EventCollateralAssetUpdated = "CollateralAssetUpdated"
	EventMintPercentageUpdated  = "MintPercentageUpdated"
	EventCollateralPriceUpdated = "CollateralPriceUpdated"
	EventMinHealthFactorUpdated = "MinHealthFactorUpdated"

	EventPoolCreated      = "PoolCreated"
	EventLiquidityAdded   = "LiquidityAdded"
	EventLiquidityRemoved = "LiquidityRemoved"
	EventSwap             = "Swap"

	EventPositionOpened   = "PositionOpened"
	EventPositionClosed   = "PositionClosed"
	EventTokensConfigured = "TokensConfigured"
	EventSwapperUpdated   = "SwapperUpdated"
	EventMaxLoopsUpdated  = "MaxLoopsUpdated"
)

// CollateralLockedData is the decoded CollateralLocked payload.
type CollateralLockedData struct {
	Account          string `json:"account"`
	CollateralAmount string `json:"collateral_amount"`
	MintedAmount     string `json:"minted_amount"`
}

// CollateralUnlockedData is the decoded CollateralUnlocked payload.
type CollateralUnlockedData struct {
	Account          string `json:"account"`
	CollateralAmount string `json:"collateral_amount"`
	BurnedAmount     string `json:"burned_amount"`
}

// PositionLiquidatedData is the decoded PositionLiquidated payload.
type PositionLiquidatedData struct {
	Account          string `json:"account"`
	CollateralSeized string `json:"collateral_seized"`
	DebtBurned       string `json:"debt_burned"`
}

type CollateralAssetUpdatedData struct {
	Asset string `json:"asset"`
}

type MintPercentageUpdatedData struct {
	Bps string `json:"bps"`
}

type CollateralPriceUpdatedData struct {
	Price string `json:"price"`
}

type MinHealthFactorUpdatedData struct {
	NewFactor string `json:"new_factor"`
}

// PoolCreatedData is the decoded RWAPoolFactory PoolCreated payload.
type PoolCreatedData struct {
	Pool     string `json:"pool"`
	MUSD     string `json:"musd"`
	RWAToken string `json:"rwa_token"`
	Verifier string `json:"verifier"`
	ImageID  string `json:"image_id"`
}

// LiquidityEventData is shared by LiquidityAdded and LiquidityRemoved.
type LiquidityEventData struct {
	Provider   string `json:"provider"`
	AmountMUSD string `json:"amount_musd"`
	AmountRWA  string `json:"amount_rwa"`
}

// SwapEventData is the decoded RWAPool Swap payload.
type SwapEventData struct {
	User      string `json:"user"`
	TokenIn   string `json:"token_in"`
	TokenOut  string `json:"token_out"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
}

// PositionOpenedData is the decoded SuperStake PositionOpened payload.
type PositionOpenedData struct {
	User             string `json:"user"`
	CollateralLocked string `json:"collateral_locked"`
	TotalDebtMinted  string `json:"total_debt_minted"`
	LoopsExecuted    string `json:"loops_executed"`
}

// PositionClosedData is the decoded SuperStake PositionClosed payload.
type PositionClosedData struct {
	User               string `json:"user"`
	CollateralReleased string `json:"collateral_released"`
	DebtBurned         string `json:"debt_burned"`
}

type TokensConfiguredData struct {
	MUSD string `json:"musd"`
	METH string `json:"meth"`
}

type SwapperUpdatedData struct {
	Swapper string `json:"swapper"`
}

type MaxLoopsUpdatedData struct {
	MaxLoops string `json:"max_loops"`
}
