package calc

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func bi(v int64) *big.Int { return big.NewInt(v) }

func e18(v int64) *big.Int { return new(big.Int).Mul(big.NewInt(v), PriceScale) }

func TestSaturatingSub(t *testing.T) {
	require.Equal(t, "7", SaturatingSub(bi(10), bi(3)).String())
	require.Equal(t, "0", SaturatingSub(bi(3), bi(10)).String())
	require.Equal(t, "0", SaturatingSub(bi(5), bi(5)).String())
	require.Equal(t, "0", SaturatingSub(nil, bi(1)).String())
	require.Equal(t, "4", SaturatingSub(bi(4), nil).String())

	a := bi(10)
	SaturatingSub(a, bi(3))
	require.Equal(t, "10", a.String(), "argument must not be mutated")
}

func TestHealthFactorZeroCases(t *testing.T) {
	require.True(t, HealthFactor(bi(1000), bi(0), e18(2000)).IsZero())
	require.True(t, HealthFactor(bi(1000), bi(500), bi(0)).IsZero())
	require.True(t, HealthFactor(bi(0), bi(500), e18(2000)).IsZero())
	// 1 wei at a sub-unit price rounds the collateral value down to zero.
	require.True(t, HealthFactor(bi(1), bi(500), bi(1)).IsZero())
	require.True(t, HealthFactor(bi(1), nil, nil).IsZero())
}

func TestHealthFactor(t *testing.T) {
	// (1000 * 2000e18 / 1e18) * 100 / 500
	hf := HealthFactor(bi(1000), bi(500), e18(2000))
	require.True(t, hf.Equal(decimal.NewFromInt(400000)), hf.String())

	// 150 / 100 collateral at 1.0 keeps the fractional part.
	hf = HealthFactor(bi(150), bi(101), e18(1))
	want, err := decimal.NewFromString("148.514851485148514851")
	require.NoError(t, err)
	require.True(t, hf.Equal(want), hf.String())
}

func TestPoolShare(t *testing.T) {
	m, r := PoolShare(bi(10), bi(10), bi(100), bi(50))
	require.Equal(t, "100", m.String())
	require.Equal(t, "50", r.String())

	m, r = PoolShare(bi(1), bi(3), bi(100), bi(50))
	require.Equal(t, "33", m.String())
	require.Equal(t, "16", r.String())

	m, r = PoolShare(bi(0), bi(3), bi(100), bi(50))
	require.Equal(t, "0", m.String())
	require.Equal(t, "0", r.String())

	m, r = PoolShare(bi(5), bi(0), bi(100), bi(50))
	require.Equal(t, "0", m.String())
	require.Equal(t, "0", r.String())
}

func TestPoolShareIdempotent(t *testing.T) {
	m1, r1 := PoolShare(bi(7), bi(13), bi(1001), bi(997))
	m2, r2 := PoolShare(bi(7), bi(13), bi(1001), bi(997))
	require.Equal(t, 0, m1.Cmp(m2))
	require.Equal(t, 0, r1.Cmp(r2))
}

func TestToPercentage(t *testing.T) {
	require.True(t, ToPercentage(bi(0)).IsZero())
	require.True(t, ToPercentage(bi(15000)).Equal(decimal.NewFromInt(150)))
	require.True(t, ToPercentage(bi(125)).Equal(decimal.RequireFromString("1.25")))
}

func TestParseAmount(t *testing.T) {
	v, ok := ParseAmount("123456789012345678901234567890")
	require.True(t, ok)
	require.Equal(t, "123456789012345678901234567890", v.String())

	for _, in := range []string{"", "-1", "0x10", "1.5", "abc"} {
		_, ok := ParseAmount(in)
		require.False(t, ok, in)
	}
}
