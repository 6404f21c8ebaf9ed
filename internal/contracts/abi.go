package contracts

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const musdABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "account", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "collateralAmount", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "mintedAmount", "type": "uint256"}
    ],
    "name": "CollateralLocked",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "account", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "collateralAmount", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "burnedAmount", "type": "uint256"}
    ],
    "name": "CollateralUnlocked",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "account", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "collateralSeized", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "debtBurned", "type": "uint256"}
    ],
    "name": "PositionLiquidated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "asset", "type": "address"}
    ],
    "name": "CollateralAssetUpdated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "bps", "type": "uint256"}
    ],
    "name": "MintPercentageUpdated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "price", "type": "uint256"}
    ],
    "name": "CollateralPriceUpdated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "newFactor", "type": "uint256"}
    ],
    "name": "MinHealthFactorUpdated",
    "type": "event"
  }
]`

const factoryABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "pool", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "mUSD", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "rwaToken", "type": "address"},
      {"indexed": false, "internalType": "address", "name": "verifier", "type": "address"},
      {"indexed": false, "internalType": "bytes32", "name": "imageId", "type": "bytes32"}
    ],
    "name": "PoolCreated",
    "type": "event"
  }
]`

const poolABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "provider", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amountMUSD", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amountRWA", "type": "uint256"}
    ],
    "name": "LiquidityAdded",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "provider", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amountMUSD", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amountRWA", "type": "uint256"}
    ],
    "name": "LiquidityRemoved",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "tokenIn", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "tokenOut", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amountIn", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amountOut", "type": "uint256"}
    ],
    "name": "Swap",
    "type": "event"
  },
  {
    "inputs": [],
    "name": "reserveMUSD",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "reserveRWA",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "totalLiquidity",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "address", "name": "", "type": "address"}],
    "name": "liquidityBalances",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const superStakeABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "collateralLocked", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "totalDebtMinted", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "loopsExecuted", "type": "uint256"}
    ],
    "name": "PositionOpened",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "collateralReleased", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "debtBurned", "type": "uint256"}
    ],
    "name": "PositionClosed",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "address", "name": "mUsd", "type": "address"},
      {"indexed": false, "internalType": "address", "name": "mEth", "type": "address"}
    ],
    "name": "TokensConfigured",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "address", "name": "swapper", "type": "address"}
    ],
    "name": "SwapperUpdated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "maxLoops", "type": "uint256"}
    ],
    "name": "MaxLoopsUpdated",
    "type": "event"
  }
]`

type lazyABI struct {
	json   string
	once   sync.Once
	parsed abi.ABI
	err    error
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.parsed, l.err = abi.JSON(strings.NewReader(l.json))
	})
	return l.parsed, l.err
}

var (
	musdABI       = &lazyABI{json: musdABIJSON}
	factoryABI    = &lazyABI{json: factoryABIJSON}
	poolABI       = &lazyABI{json: poolABIJSON}
	superStakeABI = &lazyABI{json: superStakeABIJSON}
)

// MUSDABI returns the parsed mUSD token ABI.
func MUSDABI() (abi.ABI, error) { return musdABI.get() }

// FactoryABI returns the parsed RWAPoolFactory ABI.
func FactoryABI() (abi.ABI, error) { return factoryABI.get() }

// PoolABI returns the parsed RWAPool ABI.
func PoolABI() (abi.ABI, error) { return poolABI.get() }

// SuperStakeABI returns the parsed SuperStake ABI.
func SuperStakeABI() (abi.ABI, error) { return superStakeABI.get() }
