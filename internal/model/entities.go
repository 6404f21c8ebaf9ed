package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// StatsID is the key of the ProtocolStats singleton.
const StatsID = "global"

// Snapshot kinds written to the immutable ledgers.
const (
	PositionLock        = "LOCK"
	PositionUnlock      = "UNLOCK"
	PositionLiquidation = "LIQUIDATION"

	StakeOpen     = "OPEN"
	StakeDeposit  = "DEPOSIT"
	StakeWithdraw = "WITHDRAW"
	StakeClose    = "CLOSE"
)

// User is the per-account mUSD balance sheet.
type User struct {
	ID                 string          `json:"id"`
	MUSDBalance        *big.Int        `json:"musd_balance"`
	DebtBalance        *big.Int        `json:"debt_balance"`
	CollateralBalance  *big.Int        `json:"collateral_balance"`
	HealthFactor       decimal.Decimal `json:"health_factor"`
	SuperStakePosition string          `json:"superstake_position,omitempty"`
}

func NewUser(id string) *User {
	return &User{
		ID:                id,
		MUSDBalance:       new(big.Int),
		DebtBalance:       new(big.Int),
		CollateralBalance: new(big.Int),
		HealthFactor:      decimal.Zero,
	}
}

// Active reports whether the user holds collateral or owes debt.
func (u *User) Active() bool {
	return u.CollateralBalance.Sign() > 0 || u.DebtBalance.Sign() > 0
}

// ProtocolStats is the protocol-wide aggregate.
type ProtocolStats struct {
	ID                 string   `json:"id"`
	TotalSupply        *big.Int `json:"total_supply"`
	TotalDebt          *big.Int `json:"total_debt"`
	TotalCollateral    *big.Int `json:"total_collateral"`
	ActiveUsers        uint64   `json:"active_users"`
	TotalPools         uint64   `json:"total_pools"`
	TotalVolume        *big.Int `json:"total_volume"`
	TotalSwaps         uint64   `json:"total_swaps"`
	CollateralAsset    string   `json:"collateral_asset"`
	MintPercentageBps  *big.Int `json:"mint_percentage_bps"`
	CollateralPriceUSD *big.Int `json:"collateral_price_usd"`
	MinHealthFactor    *big.Int `json:"min_health_factor"`
	SuperStakeMUSD     string   `json:"superstake_musd"`
	SuperStakeMETH     string   `json:"superstake_meth"`
	SuperStakeSwapper  string   `json:"superstake_swapper"`
	SuperStakeMaxLoops *big.Int `json:"superstake_max_loops"`
	UpdatedAtBlock     uint64   `json:"updated_at_block"`
	UpdatedAtTimestamp uint64   `json:"updated_at_timestamp"`
}

func NewProtocolStats() *ProtocolStats {
	return &ProtocolStats{
		ID:                 StatsID,
		TotalSupply:        new(big.Int),
		TotalDebt:          new(big.Int),
		TotalCollateral:    new(big.Int),
		TotalVolume:        new(big.Int),
		MintPercentageBps:  new(big.Int),
		CollateralPriceUSD: new(big.Int),
		MinHealthFactor:    new(big.Int),
		SuperStakeMaxLoops: new(big.Int),
		CollateralAsset:    ZeroAddress,
		SuperStakeMUSD:     ZeroAddress,
		SuperStakeMETH:     ZeroAddress,
		SuperStakeSwapper:  ZeroAddress,
	}
}

// MUSDPosition is an immutable snapshot taken after a lock, unlock or liquidation.
type MUSDPosition struct {
	ID               string          `json:"id"`
	User             string          `json:"user"`
	Collateral       *big.Int        `json:"collateral"`
	Debt             *big.Int        `json:"debt"`
	CollateralChange *big.Int        `json:"collateral_change"`
	DebtChange       *big.Int        `json:"debt_change"`
	EventType        string          `json:"event_type"`
	HealthFactor     decimal.Decimal `json:"health_factor"`
	BlockNumber      uint64          `json:"block_number"`
	LogIndex         uint64          `json:"log_index"`
	Timestamp        uint64          `json:"timestamp"`
	TxHash           string          `json:"tx_hash"`
}

// RWAPool mirrors one RWA/mUSD AMM pool.
type RWAPool struct {
	ID                 string   `json:"id"`
	MUSD               string   `json:"musd"`
	RWAToken           string   `json:"rwa_token"`
	AssetSymbol        string   `json:"asset_symbol"`
	Verifier           string   `json:"verifier"`
	PolicyID           string   `json:"policy_id"`
	ReserveMUSD        *big.Int `json:"reserve_musd"`
	ReserveRWA         *big.Int `json:"reserve_rwa"`
	TotalLiquidity     *big.Int `json:"total_liquidity"`
	TotalVolume        *big.Int `json:"total_volume"`
	TotalSwaps         uint64   `json:"total_swaps"`
	CreatedAtBlock     uint64   `json:"created_at_block"`
	CreatedAtTimestamp uint64   `json:"created_at_timestamp"`
}

func NewRWAPool(id string) *RWAPool {
	return &RWAPool{
		ID:             id,
		MUSD:           ZeroAddress,
		RWAToken:       ZeroAddress,
		Verifier:       ZeroAddress,
		PolicyID:       ZeroHash,
		ReserveMUSD:    new(big.Int),
		ReserveRWA:     new(big.Int),
		TotalLiquidity: new(big.Int),
		TotalVolume:    new(big.Int),
	}
}

// LiquidityPosition is a provider's share of one pool.
type LiquidityPosition struct {
	ID                string   `json:"id"`
	User              string   `json:"user"`
	Pool              string   `json:"pool"`
	LiquidityProvided *big.Int `json:"liquidity_provided"`
	AmountMUSD        *big.Int `json:"amount_musd"`
	AmountRWA         *big.Int `json:"amount_rwa"`
	BlockNumber       uint64   `json:"block_number"`
	Timestamp         uint64   `json:"timestamp"`
}

// LiquidityPositionID is "{pool}-{user}".
func LiquidityPositionID(pool, user string) string {
	return pool + "-" + user
}

func NewLiquidityPosition(pool, user string) *LiquidityPosition {
	return &LiquidityPosition{
		ID:                LiquidityPositionID(pool, user),
		User:              user,
		Pool:              pool,
		LiquidityProvided: new(big.Int),
		AmountMUSD:        new(big.Int),
		AmountRWA:         new(big.Int),
	}
}

// RWASwap is an immutable trade record.
type RWASwap struct {
	ID          string   `json:"id"`
	Pool        string   `json:"pool"`
	User        string   `json:"user"`
	TokenIn     string   `json:"token_in"`
	TokenOut    string   `json:"token_out"`
	AmountIn    *big.Int `json:"amount_in"`
	AmountOut   *big.Int `json:"amount_out"`
	TxHash      string   `json:"tx_hash"`
	BlockNumber uint64   `json:"block_number"`
	LogIndex    uint64   `json:"log_index"`
	Timestamp   uint64   `json:"timestamp"`
}

// SuperStakePosition is a user's leveraged staking position. Close fields are nil while open.
type SuperStakePosition struct {
	ID                 string   `json:"id"`
	User               string   `json:"user"`
	CollateralLocked   *big.Int `json:"collateral_locked"`
	TotalDebtMinted    *big.Int `json:"total_debt_minted"`
	Loops              *big.Int `json:"loops"`
	Active             bool     `json:"active"`
	OpenedAtBlock      uint64   `json:"opened_at_block"`
	OpenedAtTimestamp  uint64   `json:"opened_at_timestamp"`
	UpdatedAtBlock     uint64   `json:"updated_at_block"`
	UpdatedAtTimestamp uint64   `json:"updated_at_timestamp"`
	ClosedAtBlock      *uint64  `json:"closed_at_block"`
	ClosedAtTimestamp  *uint64  `json:"closed_at_timestamp"`
}

func NewSuperStakePosition(user string) *SuperStakePosition {
	return &SuperStakePosition{
		ID:               user,
		User:             user,
		CollateralLocked: new(big.Int),
		TotalDebtMinted:  new(big.Int),
		Loops:            new(big.Int),
	}
}

// SuperStakePositionHistory is an immutable record of one open/close event.
type SuperStakePositionHistory struct {
	ID               string   `json:"id"`
	Position         string   `json:"position"`
	User             string   `json:"user"`
	CollateralLocked *big.Int `json:"collateral_locked"`
	TotalDebtMinted  *big.Int `json:"total_debt_minted"`
	CollateralChange *big.Int `json:"collateral_change"`
	DebtChange       *big.Int `json:"debt_change"`
	Loops            *big.Int `json:"loops"`
	EventType        string   `json:"event_type"`
	BlockNumber      uint64   `json:"block_number"`
	LogIndex         uint64   `json:"log_index"`
	Timestamp        uint64   `json:"timestamp"`
	TxHash           string   `json:"tx_hash"`
}
