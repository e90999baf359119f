package model

import "github.com/shopspring/decimal"

// Token is an ERC20 referenced by at least one pool.
type Token struct {
	ID             string          `json:"id"`
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name"`
	Decimals       uint8           `json:"decimals"`
	TotalSupply    BigInt          `json:"total_supply"`
	TradeVolume    decimal.Decimal `json:"trade_volume"`
	TradeVolumeUSD decimal.Decimal `json:"trade_volume_usd"`
	PriceUSD       decimal.Decimal `json:"price_usd"`
	DerivedETH     decimal.Decimal `json:"derived_eth"`
	TotalLiquidity decimal.Decimal `json:"total_liquidity"`
	TxCount        uint64          `json:"tx_count"`
	PoolCount      uint64          `json:"pool_count"`
}

// Pool is a concentrated-liquidity pool. Token ordering is fixed at creation.
type Pool struct {
	ID                     string          `json:"id"`
	Token0                 string          `json:"token0"`
	Token1                 string          `json:"token1"`
	TickSpacing            int32           `json:"tick_spacing"`
	FeeTier                uint32          `json:"fee_tier"`
	SqrtPriceX96           BigInt          `json:"sqrt_price_x96"`
	Tick                   int32           `json:"tick"`
	Liquidity              BigInt          `json:"liquidity"`
	Token0Price            decimal.Decimal `json:"token0_price"`
	Token1Price            decimal.Decimal `json:"token1_price"`
	VolumeToken0           decimal.Decimal `json:"volume_token0"`
	VolumeToken1           decimal.Decimal `json:"volume_token1"`
	VolumeUSD              decimal.Decimal `json:"volume_usd"`
	FeesToken0             decimal.Decimal `json:"fees_token0"`
	FeesToken1             decimal.Decimal `json:"fees_token1"`
	FeesUSD                decimal.Decimal `json:"fees_usd"`
	CollectedFeesToken0    decimal.Decimal `json:"collected_fees_token0"`
	CollectedFeesToken1    decimal.Decimal `json:"collected_fees_token1"`
	TotalValueLockedToken0 decimal.Decimal `json:"total_value_locked_token0"`
	TotalValueLockedToken1 decimal.Decimal `json:"total_value_locked_token1"`
	TotalValueLockedUSD    decimal.Decimal `json:"total_value_locked_usd"`
	TxCount                uint64          `json:"tx_count"`
	LiquidityProviderCount uint64          `json:"liquidity_provider_count"`
	GaugeAddress           string          `json:"gauge_address,omitempty"`
	CreatedAtTimestamp     uint64          `json:"created_at_timestamp"`
	CreatedAtBlock         uint64          `json:"created_at_block"`
}

// PoolLookup maps token0-token1-tickSpacing (either ordering) to a pool.
type PoolLookup struct {
	ID   string `json:"id"`
	Pool string `json:"pool"`
}

// Bundle holds the USD price of the base token.
type Bundle struct {
	ID          string          `json:"id"`
	EthPrice    decimal.Decimal `json:"eth_price"`
	LastUpdated uint64          `json:"last_updated"`
}

// Protocol holds protocol-wide totals.
type Protocol struct {
	ID                  string          `json:"id"`
	TotalPools          uint64          `json:"total_pools"`
	TotalVolumeUSD      decimal.Decimal `json:"total_volume_usd"`
	TotalFeesUSD        decimal.Decimal `json:"total_fees_usd"`
	TotalValueLockedUSD decimal.Decimal `json:"total_value_locked_usd"`
	TxCount             uint64          `json:"tx_count"`
	TotalVotingWeight   BigInt          `json:"total_voting_weight"`
	ActivePeriod        uint64          `json:"active_period"`
	EpochCount          uint64          `json:"epoch_count"`
}

// LiquidityProvider records that an owner has minted into a pool.
type LiquidityProvider struct {
	ID        string `json:"id"`
	Pool      string `json:"pool"`
	Owner     string `json:"owner"`
	CreatedAt uint64 `json:"created_at"`
}

// PoolRollup is an hourly or daily pool bucket.
type PoolRollup struct {
	ID           string          `json:"id"`
	Pool         string          `json:"pool"`
	PeriodStart  uint64          `json:"period_start"`
	Liquidity    BigInt          `json:"liquidity"`
	SqrtPriceX96 BigInt          `json:"sqrt_price_x96"`
	Tick         int32           `json:"tick"`
	Token0Price  decimal.Decimal `json:"token0_price"`
	Token1Price  decimal.Decimal `json:"token1_price"`
	VolumeToken0 decimal.Decimal `json:"volume_token0"`
	VolumeToken1 decimal.Decimal `json:"volume_token1"`
	VolumeUSD    decimal.Decimal `json:"volume_usd"`
	FeesUSD      decimal.Decimal `json:"fees_usd"`
	TVLUSD       decimal.Decimal `json:"tvl_usd"`
	TxCount      uint64          `json:"tx_count"`
	SwapCount    uint64          `json:"swap_count"`
	Open         decimal.Decimal `json:"open"`
	High         decimal.Decimal `json:"high"`
	Low          decimal.Decimal `json:"low"`
	Close        decimal.Decimal `json:"close"`
}

// Transaction groups the immutable event records of one transaction.
type Transaction struct {
	ID          string `json:"id"`
	BlockNumber uint64 `json:"block_number"`
	Timestamp   uint64 `json:"timestamp"`
	From        string `json:"from,omitempty"`
}

// Swap is an immutable swap record.
type Swap struct {
	ID           string          `json:"id"`
	Transaction  string          `json:"transaction"`
	Pool         string          `json:"pool"`
	Token0       string          `json:"token0"`
	Token1       string          `json:"token1"`
	Sender       string          `json:"sender"`
	Recipient    string          `json:"recipient"`
	Origin       string          `json:"origin,omitempty"`
	Amount0      decimal.Decimal `json:"amount0"`
	Amount1      decimal.Decimal `json:"amount1"`
	AmountUSD    decimal.Decimal `json:"amount_usd"`
	FeeAmount0   decimal.Decimal `json:"fee_amount0"`
	FeeAmount1   decimal.Decimal `json:"fee_amount1"`
	SqrtPriceX96 BigInt          `json:"sqrt_price_x96"`
	Tick         int32           `json:"tick"`
	LogIndex     uint64          `json:"log_index"`
	Timestamp    uint64          `json:"timestamp"`
}

// LiquidityChange is an immutable pool Mint or Burn record.
type LiquidityChange struct {
	ID          string          `json:"id"`
	Transaction string          `json:"transaction"`
	Pool        string          `json:"pool"`
	Owner       string          `json:"owner"`
	Sender      string          `json:"sender,omitempty"`
	Origin      string          `json:"origin,omitempty"`
	Amount      BigInt          `json:"amount"`
	Amount0     decimal.Decimal `json:"amount0"`
	Amount1     decimal.Decimal `json:"amount1"`
	AmountUSD   decimal.Decimal `json:"amount_usd"`
	TickLower   int32           `json:"tick_lower"`
	TickUpper   int32           `json:"tick_upper"`
	LogIndex    uint64          `json:"log_index"`
	Timestamp   uint64          `json:"timestamp"`
}

// NewToken returns a token with zeroed counters.
func NewToken(id string) Token {
	return Token{ID: id, TotalSupply: NewBigInt(nil)}
}

// NewPool returns a pool with zeroed state.
func NewPool(id, token0, token1 string, tickSpacing int32, feeTier uint32) Pool {
	return Pool{
		ID:           id,
		Token0:       token0,
		Token1:       token1,
		TickSpacing:  tickSpacing,
		FeeTier:      feeTier,
		SqrtPriceX96: NewBigInt(nil),
		Liquidity:    NewBigInt(nil),
	}
}

// NewProtocol returns the protocol singleton.
func NewProtocol() Protocol {
	return Protocol{ID: ProtocolID, TotalVotingWeight: NewBigInt(nil)}
}

// NewBundle returns the bundle singleton.
func NewBundle() Bundle {
	return Bundle{ID: BundleID}
}

// NewPoolRollup returns an empty bucket for pool starting at periodStart.
func NewPoolRollup(id, pool string, periodStart uint64) PoolRollup {
	return PoolRollup{
		ID:           id,
		Pool:         pool,
		PeriodStart:  periodStart,
		Liquidity:    NewBigInt(nil),
		SqrtPriceX96: NewBigInt(nil),
	}
}
