package pricing

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"clscope/internal/fixedpoint"
	"clscope/internal/model"
	"clscope/internal/store"
)

const (
	base   = "0x00000000000000000000000000000000000000b1"
	stable = "0x00000000000000000000000000000000000000c1"
	other  = "0x00000000000000000000000000000000000000d1"
)

func newOracle() *Oracle {
	return NewOracle(Config{BaseToken: base, Stablecoins: []string{stable}}, nil)
}

// addPool registers a pool with token0Price = price and both lookups.
func addPool(s *store.Store, id, token0, token1 string, spacing int32, sqrtMultiple int64, liquidity int64) model.Pool {
	pool := model.NewPool(id, token0, token1, spacing, 3000)
	pool.SqrtPriceX96 = model.NewBigInt(new(big.Int).Mul(fixedpoint.Q96, big.NewInt(sqrtMultiple)))
	pool.Liquidity = model.NewBigInt(big.NewInt(liquidity))
	pool.Token0Price, pool.Token1Price = fixedpoint.SqrtPriceToTokenPrices(pool.SqrtPriceX96.Int, 18, 18)
	s.Pools.Put(id, pool)
	s.PoolLookups.Put(model.PoolLookupID(token0, token1, spacing), model.PoolLookup{ID: model.PoolLookupID(token0, token1, spacing), Pool: id})
	s.PoolLookups.Put(model.PoolLookupID(token1, token0, spacing), model.PoolLookup{ID: model.PoolLookupID(token1, token0, spacing), Pool: id})
	return pool
}

func TestBasePriceUSDNoPool(t *testing.T) {
	s := store.New()
	assert.True(t, newOracle().BasePriceUSD(s).IsZero())
}

func TestBasePriceUSDPicksDeepestPool(t *testing.T) {
	s := store.New()
	// base is token0: price = token0Price
	addPool(s, "0xp1", base, stable, 60, 2, 100)   // 4 USD
	addPool(s, "0xp2", base, stable, 200, 3, 5000) // 9 USD, deeper

	price := newOracle().BasePriceUSD(s)
	assert.True(t, price.Equal(decimal.NewFromInt(9)), "got %s", price)
}

func TestBasePriceUSDBaseAsToken1(t *testing.T) {
	s := store.New()
	// stable is token0 at price 4 base per stable -> base = 0.25 USD
	addPool(s, "0xp1", stable, base, 10, 2, 100)

	price := newOracle().BasePriceUSD(s)
	assert.True(t, price.Equal(decimal.RequireFromString("0.25")), "got %s", price)
}

func TestBasePriceUSDSkipsUninitializedPool(t *testing.T) {
	s := store.New()
	addPool(s, "0xp1", base, stable, 60, 0, 1000)
	assert.True(t, newOracle().BasePriceUSD(s).IsZero())
}

func TestTokenPriceUSD(t *testing.T) {
	s := store.New()
	o := newOracle()

	bundle := s.Bundle()
	bundle.EthPrice = decimal.NewFromInt(2)
	s.Bundles.Put(bundle.ID, bundle)

	pool := addPool(s, "0xp1", other, base, 60, 2, 100) // 1 other = 4 base

	assert.True(t, o.TokenPriceUSD(s, stable, pool).Equal(decimal.NewFromInt(1)))
	assert.True(t, o.TokenPriceUSD(s, base, pool).Equal(decimal.NewFromInt(2)))
	assert.True(t, o.TokenPriceUSD(s, other, pool).Equal(decimal.NewFromInt(8)))
}

func TestTokenPriceUSDHonestZero(t *testing.T) {
	s := store.New()
	o := newOracle()

	unpriced := "0x00000000000000000000000000000000000000e1"
	s.Tokens.Put(unpriced, model.NewToken(unpriced))
	pool := addPool(s, "0xp1", other, unpriced, 60, 2, 100)

	assert.True(t, o.TokenPriceUSD(s, other, pool).IsZero())
	assert.True(t, o.TokenPriceUSD(s, unpriced, pool).IsZero())
}

func TestTrackedVolumeUSD(t *testing.T) {
	d := decimal.NewFromInt
	tests := []struct {
		name   string
		a0, p0 decimal.Decimal
		a1, p1 decimal.Decimal
		want   decimal.Decimal
	}{
		{name: "both priced", a0: d(10), p0: d(2), a1: d(-5), p1: d(6), want: d(25)},
		{name: "token0 only", a0: d(10), p0: d(2), a1: d(-5), p1: decimal.Zero, want: d(20)},
		{name: "token1 only", a0: d(10), p0: decimal.Zero, a1: d(-5), p1: d(6), want: d(30)},
		{name: "neither", a0: d(10), p0: decimal.Zero, a1: d(-5), p1: decimal.Zero, want: decimal.Zero},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrackedVolumeUSD(tt.a0, tt.p0, tt.a1, tt.p1)
			assert.True(t, got.Equal(tt.want), "got %s want %s", got, tt.want)
		})
	}
}

func TestDerivedETH(t *testing.T) {
	s := store.New()
	o := newOracle()
	assert.True(t, o.DerivedETH(s, decimal.NewFromInt(5)).IsZero())

	b := s.Bundle()
	b.EthPrice = decimal.NewFromInt(2)
	s.Bundles.Put(b.ID, b)
	assert.True(t, o.DerivedETH(s, decimal.NewFromInt(5)).Equal(decimal.RequireFromString("2.5")))
}
