package contracts

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

type fakeCaller struct {
	calls     int
	responses map[string][]byte
	failures  map[string]error
	blocks    []*big.Int
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.calls++
	f.blocks = append(f.blocks, block)
	selector := common.Bytes2Hex(msg.Data[:4])
	if err, ok := f.failures[selector]; ok {
		return nil, err
	}
	return f.responses[selector], nil
}

func selectorOf(t *testing.T, parsed abi.ABI, method string) string {
	t.Helper()
	return common.Bytes2Hex(parsed.Methods[method].ID)
}

func TestReaderPoolReads(t *testing.T) {
	parsed, err := PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	reserve, _ := parsed.Methods["reserveMUSD"].Outputs.Pack(big.NewInt(100))
	balance, _ := parsed.Methods["liquidityBalances"].Outputs.Pack(big.NewInt(10))

	caller := &fakeCaller{
		responses: map[string][]byte{
			selectorOf(t, parsed, "reserveMUSD"):       reserve,
			selectorOf(t, parsed, "liquidityBalances"): balance,
		},
		failures: map[string]error{
			selectorOf(t, parsed, "reserveRWA"): errors.New("execution reverted"),
		},
	}
	reader := NewReader(caller, ReaderConfig{MaxRetries: 3, RetryDelay: time.Millisecond}, nil)
	ctx := context.Background()
	pool := "0x2222222222222222222222222222222222222222"

	got, err := reader.ReserveMUSD(ctx, pool, 77)
	if err != nil || got.Int64() != 100 {
		t.Fatalf("reserveMUSD: %v %v", got, err)
	}
	if caller.blocks[0].Uint64() != 77 {
		t.Fatalf("read should target the event block, got %v", caller.blocks[0])
	}

	got, err = reader.LiquidityBalance(ctx, pool, "0x6666666666666666666666666666666666666666", 77)
	if err != nil || got.Int64() != 10 {
		t.Fatalf("liquidityBalances: %v %v", got, err)
	}

	before := caller.calls
	if _, err := reader.ReserveRWA(ctx, pool, 77); err == nil {
		t.Fatalf("expected revert error")
	}
	if caller.calls-before != 1 {
		t.Fatalf("revert must not be retried, got %d calls", caller.calls-before)
	}

	if _, err := reader.TotalLiquidity(ctx, "not-an-address", 1); err == nil {
		t.Fatalf("expected invalid address error")
	}
}

func TestReaderTokenSymbolFallsBackToBytes32(t *testing.T) {
	stringABI, _ := erc20ABIString.get()
	bytes32ABI, _ := erc20ABIBytes32.get()

	var raw [32]byte
	copy(raw[:], "TBILL")
	packed, err := bytes32ABI.Methods["symbol"].Outputs.Pack(raw)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	// Both ABIs share the selector; a bytes32 payload fails string decoding.
	caller := &fakeCaller{responses: map[string][]byte{selectorOf(t, stringABI, "symbol"): packed}}
	reader := NewReader(caller, ReaderConfig{}, nil)

	symbol, err := reader.TokenSymbol(context.Background(), "0x4444444444444444444444444444444444444444", 0)
	if err != nil {
		t.Fatalf("symbol: %v", err)
	}
	if symbol != "TBILL" {
		t.Fatalf("unexpected symbol %q", symbol)
	}
	if caller.blocks[0] != nil {
		t.Fatalf("block 0 should read latest state")
	}
}
