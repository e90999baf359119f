package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Position is a position-manager NFT. Liquidity may reach zero; positions are never removed.
type Position struct {
	ID                       string          `json:"id"`
	Owner                    string          `json:"owner"`
	Pool                     string          `json:"pool"`
	Token0                   string          `json:"token0"`
	Token1                   string          `json:"token1"`
	TickLower                int32           `json:"tick_lower"`
	TickUpper                int32           `json:"tick_upper"`
	Liquidity                BigInt          `json:"liquidity"`
	DepositedToken0          decimal.Decimal `json:"deposited_token0"`
	DepositedToken1          decimal.Decimal `json:"deposited_token1"`
	WithdrawnToken0          decimal.Decimal `json:"withdrawn_token0"`
	WithdrawnToken1          decimal.Decimal `json:"withdrawn_token1"`
	CollectedToken0          decimal.Decimal `json:"collected_token0"`
	CollectedToken1          decimal.Decimal `json:"collected_token1"`
	Amount0                  decimal.Decimal `json:"amount0"`
	Amount1                  decimal.Decimal `json:"amount1"`
	AmountUSD                decimal.Decimal `json:"amount_usd"`
	FeeGrowthInside0LastX128 BigInt          `json:"fee_growth_inside0_last_x128"`
	FeeGrowthInside1LastX128 BigInt          `json:"fee_growth_inside1_last_x128"`
	UncollectedFees0         decimal.Decimal `json:"uncollected_fees0"`
	UncollectedFees1         decimal.Decimal `json:"uncollected_fees1"`
	Staked                   bool            `json:"staked"`
	StakedGauge              string          `json:"staked_gauge,omitempty"`
	Transaction              string          `json:"transaction"`
	CreatedAt                uint64          `json:"created_at"`
	UpdatedAt                uint64          `json:"updated_at"`
}

// PositionSnapshot is a point-in-time copy of a position after a liquidity change.
type PositionSnapshot struct {
	ID                       string          `json:"id"`
	Position                 string          `json:"position"`
	Owner                    string          `json:"owner"`
	Pool                     string          `json:"pool"`
	Liquidity                BigInt          `json:"liquidity"`
	DepositedToken0          decimal.Decimal `json:"deposited_token0"`
	DepositedToken1          decimal.Decimal `json:"deposited_token1"`
	WithdrawnToken0          decimal.Decimal `json:"withdrawn_token0"`
	WithdrawnToken1          decimal.Decimal `json:"withdrawn_token1"`
	CollectedToken0          decimal.Decimal `json:"collected_token0"`
	CollectedToken1          decimal.Decimal `json:"collected_token1"`
	Amount0                  decimal.Decimal `json:"amount0"`
	Amount1                  decimal.Decimal `json:"amount1"`
	AmountUSD                decimal.Decimal `json:"amount_usd"`
	FeeGrowthInside0LastX128 BigInt          `json:"fee_growth_inside0_last_x128"`
	FeeGrowthInside1LastX128 BigInt          `json:"fee_growth_inside1_last_x128"`
	BlockNumber              uint64          `json:"block_number"`
	Timestamp                uint64          `json:"timestamp"`
}

// PositionFees is the cumulative fee-collection aggregate of a position.
type PositionFees struct {
	ID              string          `json:"id"`
	Position        string          `json:"position"`
	CollectedToken0 decimal.Decimal `json:"collected_token0"`
	CollectedToken1 decimal.Decimal `json:"collected_token1"`
	CollectedUSD    decimal.Decimal `json:"collected_usd"`
	CollectCount    uint64          `json:"collect_count"`
	LastCollectedAt uint64          `json:"last_collected_at"`
}

// Collect is an immutable fee-collection record of a position.
type Collect struct {
	ID          string          `json:"id"`
	Transaction string          `json:"transaction"`
	Position    string          `json:"position"`
	Pool        string          `json:"pool"`
	Owner       string          `json:"owner"`
	Recipient   string          `json:"recipient"`
	Amount0     decimal.Decimal `json:"amount0"`
	Amount1     decimal.Decimal `json:"amount1"`
	AmountUSD   decimal.Decimal `json:"amount_usd"`
	LogIndex    uint64          `json:"log_index"`
	Timestamp   uint64          `json:"timestamp"`
}

// User aggregates per-address activity.
type User struct {
	ID                     string          `json:"id"`
	TotalPositions         uint64          `json:"total_positions"`
	VeNFTCount             uint64          `json:"ve_nft_count"`
	TotalRewardsClaimedUSD decimal.Decimal `json:"total_rewards_claimed_usd"`
	FirstActivity          uint64          `json:"first_activity"`
	LastActivity           uint64          `json:"last_activity"`
}

// PositionInfo is the position-manager positions(tokenId) view.
type PositionInfo struct {
	Token0                   string
	Token1                   string
	TickSpacing              int32
	TickLower                int32
	TickUpper                int32
	Liquidity                *big.Int
	FeeGrowthInside0LastX128 *big.Int
	FeeGrowthInside1LastX128 *big.Int
	TokensOwed0              *big.Int
	TokensOwed1              *big.Int
}

// NewPosition returns an empty position.
func NewPosition(id string) Position {
	return Position{
		ID:                       id,
		Liquidity:                NewBigInt(nil),
		FeeGrowthInside0LastX128: NewBigInt(nil),
		FeeGrowthInside1LastX128: NewBigInt(nil),
	}
}
