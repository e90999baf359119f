package pricing

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"clscope/internal/fixedpoint"
	"clscope/internal/model"
	"clscope/internal/store"
)

// Default anchors of the deployment the indexer was first written for.
const (
	DefaultBaseToken  = "0xe30fedd158a2e3b13e9badaeabafc5516e95e8c7"
	DefaultStablecoin = "0xe15fc38f6d8c56af07bbcbe3baf5708a2bf42392"
)

var half = decimal.New(5, -1)

// DefaultTickSpacings are scanned for base/stablecoin pools.
var DefaultTickSpacings = []int32{1, 10, 50, 60, 100, 200}

// Config lists the price anchors.
type Config struct {
	BaseToken    string
	Stablecoins  []string
	TickSpacings []int32
}

// Oracle derives USD prices from anchor tokens and pool ratios. A price is
// only reported when it can be traced back to an anchor; otherwise it is zero.
type Oracle struct {
	base         string
	stables      map[string]struct{}
	stableList   []string
	tickSpacings []int32
	logger       *zap.Logger
}

// NewOracle builds an Oracle, filling unset fields with defaults.
func NewOracle(cfg Config, logger *zap.Logger) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseToken == "" {
		cfg.BaseToken = DefaultBaseToken
	}
	if len(cfg.Stablecoins) == 0 {
		cfg.Stablecoins = []string{DefaultStablecoin}
	}
	if len(cfg.TickSpacings) == 0 {
		cfg.TickSpacings = DefaultTickSpacings
	}

	o := &Oracle{
		base:         model.NormalizeAddress(cfg.BaseToken),
		stables:      make(map[string]struct{}, len(cfg.Stablecoins)),
		tickSpacings: cfg.TickSpacings,
		logger:       logger,
	}
	for _, s := range cfg.Stablecoins {
		addr := model.NormalizeAddress(s)
		if _, ok := o.stables[addr]; ok {
			continue
		}
		o.stables[addr] = struct{}{}
		o.stableList = append(o.stableList, addr)
	}
	return o
}

// BaseToken returns the base token address.
func (o *Oracle) BaseToken() string {
	return o.base
}

// IsStablecoin reports whether token is pegged to 1 USD.
func (o *Oracle) IsStablecoin(token string) bool {
	_, ok := o.stables[model.NormalizeAddress(token)]
	return ok
}

// BasePriceUSD returns the base token price from the deepest base/stablecoin
// pool among the known tick spacings, or zero when none is priced.
func (o *Oracle) BasePriceUSD(s *store.Store) decimal.Decimal {
	var (
		best  model.Pool
		found bool
	)
	for _, stable := range o.stableList {
		for _, spacing := range o.tickSpacings {
			lookup, ok := s.PoolLookups.Get(model.PoolLookupID(o.base, stable, spacing))
			if !ok {
				continue
			}
			pool, ok := s.Pools.Get(lookup.Pool)
			if !ok || pool.SqrtPriceX96.Big().Sign() == 0 {
				continue
			}
			if !found || pool.Liquidity.Big().Cmp(best.Liquidity.Big()) > 0 {
				best = pool
				found = true
			}
		}
	}
	if !found {
		return decimal.Zero
	}
	if best.Token0 == o.base {
		return best.Token0Price
	}
	return best.Token1Price
}

// RefreshBundle recomputes the base price and stores it in the bundle.
func (o *Oracle) RefreshBundle(s *store.Store, timestamp uint64) model.Bundle {
	bundle := s.Bundle()
	bundle.EthPrice = o.BasePriceUSD(s)
	bundle.LastUpdated = timestamp
	s.Bundles.Put(bundle.ID, bundle)
	return bundle
}

// TokenPriceUSD prices token through pool: stablecoins are 1, the base token
// uses the bundle, anything else is the counter token's price times the pool ratio.
func (o *Oracle) TokenPriceUSD(s *store.Store, token string, pool model.Pool) decimal.Decimal {
	token = model.NormalizeAddress(token)
	if o.IsStablecoin(token) {
		return decimal.NewFromInt(1)
	}
	if token == o.base {
		return s.Bundle().EthPrice
	}

	switch token {
	case pool.Token0:
		other := o.KnownPriceUSD(s, pool.Token1)
		if other.Sign() <= 0 {
			return decimal.Zero
		}
		return pool.Token0Price.Mul(other)
	case pool.Token1:
		other := o.KnownPriceUSD(s, pool.Token0)
		if other.Sign() <= 0 {
			return decimal.Zero
		}
		return pool.Token1Price.Mul(other)
	default:
		o.logger.Debug("token not in pool", zap.String("token", token), zap.String("pool", pool.ID))
		return decimal.Zero
	}
}

// DerivedETH converts a USD price into base token units.
func (o *Oracle) DerivedETH(s *store.Store, priceUSD decimal.Decimal) decimal.Decimal {
	return fixedpoint.SafeDiv(priceUSD, s.Bundle().EthPrice)
}

// TrackedVolumeUSD values a swap from whichever side is priced: the average
// when both are, the single priced side otherwise, or zero.
func TrackedVolumeUSD(amount0, price0, amount1, price1 decimal.Decimal) decimal.Decimal {
	usd0 := amount0.Abs().Mul(price0)
	usd1 := amount1.Abs().Mul(price1)
	known0 := price0.Sign() > 0
	known1 := price1.Sign() > 0

	switch {
	case known0 && known1:
		return usd0.Add(usd1).Mul(half)
	case known0:
		return usd0
	case known1:
		return usd1
	default:
		return decimal.Zero
	}
}

// ValueUSD sums amount*price over both tokens; unpriced sides count as zero.
func ValueUSD(amount0, price0, amount1, price1 decimal.Decimal) decimal.Decimal {
	return amount0.Mul(price0).Add(amount1.Mul(price1))
}

// KnownPriceUSD returns the anchor price of token or its last derived price.
func (o *Oracle) KnownPriceUSD(s *store.Store, token string) decimal.Decimal {
	token = model.NormalizeAddress(token)
	if o.IsStablecoin(token) {
		return decimal.NewFromInt(1)
	}
	if token == o.base {
		return s.Bundle().EthPrice
	}
	t, ok := s.Tokens.Get(token)
	if !ok {
		return decimal.Zero
	}
	return t.PriceUSD
}
