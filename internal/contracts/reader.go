package contracts

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"musdScope/internal/chain"
)

// Caller is the eth_call surface Reader needs. *chain.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ReaderConfig tunes transport retries. Reverts are never retried.
type ReaderConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

// Reader performs the pool and token view calls used to reconcile stored state.
type Reader struct {
	caller Caller
	cfg    ReaderConfig
	logger *zap.Logger
}

func NewReader(caller Caller, cfg ReaderConfig, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{caller: caller, cfg: cfg, logger: logger}
}

// ReserveMUSD reads pool.reserveMUSD() at block.
func (r *Reader) ReserveMUSD(ctx context.Context, pool string, block uint64) (*big.Int, error) {
	return r.poolUint(ctx, pool, block, "reserveMUSD")
}

// ReserveRWA reads pool.reserveRWA() at block.
func (r *Reader) ReserveRWA(ctx context.Context, pool string, block uint64) (*big.Int, error) {
	return r.poolUint(ctx, pool, block, "reserveRWA")
}

// TotalLiquidity reads pool.totalLiquidity() at block.
func (r *Reader) TotalLiquidity(ctx context.Context, pool string, block uint64) (*big.Int, error) {
	return r.poolUint(ctx, pool, block, "totalLiquidity")
}

// LiquidityBalance reads pool.liquidityBalances(user) at block.
func (r *Reader) LiquidityBalance(ctx context.Context, pool, user string, block uint64) (*big.Int, error) {
	if !common.IsHexAddress(user) {
		return nil, fmt.Errorf("invalid user address: %s", user)
	}
	return r.poolUint(ctx, pool, block, "liquidityBalances", common.HexToAddress(user))
}

// TokenSymbol reads symbol(), falling back to the bytes32 variant some tokens use.
func (r *Reader) TokenSymbol(ctx context.Context, token string, block uint64) (string, error) {
	if !common.IsHexAddress(token) {
		return "", fmt.Errorf("invalid token address: %s", token)
	}
	addr := common.HexToAddress(token)

	stringABI, err := erc20ABIString.get()
	if err != nil {
		return "", fmt.Errorf("parse erc20 string abi: %w", err)
	}
	values, err := r.call(ctx, addr, stringABI, block, "symbol")
	if err == nil {
		if symbol, ok := values[0].(string); ok {
			return symbol, nil
		}
	}

	bytes32ABI, abiErr := erc20ABIBytes32.get()
	if abiErr != nil {
		return "", fmt.Errorf("parse erc20 bytes32 abi: %w", abiErr)
	}
	values, err = r.call(ctx, addr, bytes32ABI, block, "symbol")
	if err != nil {
		r.logger.Debug("symbol call failed", zap.String("token", token), zap.Error(err))
		return "", err
	}
	symbol, ok := bytes32ToString(values[0])
	if !ok {
		return "", fmt.Errorf("unexpected symbol type %T", values[0])
	}
	return symbol, nil
}

func (r *Reader) poolUint(ctx context.Context, pool string, block uint64, method string, args ...interface{}) (*big.Int, error) {
	if !common.IsHexAddress(pool) {
		return nil, fmt.Errorf("invalid pool address: %s", pool)
	}
	parsed, err := PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := r.call(ctx, common.HexToAddress(pool), parsed, block, method, args...)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

func (r *Reader) call(ctx context.Context, to common.Address, parsed abi.ABI, block uint64, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	var blockPtr *big.Int
	if block > 0 {
		blockPtr = new(big.Int).SetUint64(block)
	}

	var resp []byte
	err = chain.WithRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryDelay, func(ctx context.Context) error {
		out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, blockPtr)
		if err != nil {
			return err
		}
		resp = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return values, nil
}
