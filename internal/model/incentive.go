package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Gauge types.
const (
	GaugeTypeCL = "CL"
	GaugeTypeV2 = "V2"
)

// Voting reward source types.
const (
	RewardTypeFee   = "fee"
	RewardTypeBribe = "bribe"
)

// Gauge distributes emissions to stakers of one pool.
type Gauge struct {
	ID                      string          `json:"id"`
	Pool                    string          `json:"pool"`
	GaugeType               string          `json:"gauge_type"`
	FeeRewardAddress        string          `json:"fee_reward_address,omitempty"`
	BribeRewardAddress      string          `json:"bribe_reward_address,omitempty"`
	TotalStaked             decimal.Decimal `json:"total_staked"`
	InvestorCount           uint64          `json:"investor_count"`
	RewardRate              BigInt          `json:"reward_rate"`
	CurrentRewardRate       decimal.Decimal `json:"current_reward_rate"`
	PeriodFinish            uint64          `json:"period_finish"`
	LastUpdateTime          uint64          `json:"last_update_time"`
	TotalRewardsDistributed decimal.Decimal `json:"total_rewards_distributed"`
	TotalRewardsClaimed     decimal.Decimal `json:"total_rewards_claimed"`
	EstimatedAPR            decimal.Decimal `json:"estimated_apr"`
	Weight                  BigInt          `json:"weight"`
	CreatedAt               uint64          `json:"created_at"`
}

// GaugeStakedPosition is a user's stake in a gauge, per token id for CL gauges.
type GaugeStakedPosition struct {
	ID        string          `json:"id"`
	User      string          `json:"user"`
	Gauge     string          `json:"gauge"`
	TokenID   string          `json:"token_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Earned    decimal.Decimal `json:"earned"`
	Claimed   decimal.Decimal `json:"claimed"`
	IsActive  bool            `json:"is_active"`
	CreatedAt uint64          `json:"created_at"`
	UpdatedAt uint64          `json:"updated_at"`
}

// GaugeEpochData aggregates one gauge over one epoch.
type GaugeEpochData struct {
	ID              string          `json:"id"`
	Gauge           string          `json:"gauge"`
	Epoch           uint64          `json:"epoch"`
	EpochStart      uint64          `json:"epoch_start"`
	VotingWeight    BigInt          `json:"voting_weight"`
	FeeRewardToken0 decimal.Decimal `json:"fee_reward_token0"`
	FeeRewardToken1 decimal.Decimal `json:"fee_reward_token1"`
	TotalBribesUSD  decimal.Decimal `json:"total_bribes_usd"`
	Emissions       decimal.Decimal `json:"emissions"`
}

// GaugeEpochReward aggregates one reward token of one gauge over one epoch.
type GaugeEpochReward struct {
	ID          string          `json:"id"`
	Gauge       string          `json:"gauge"`
	Epoch       uint64          `json:"epoch"`
	Token       string          `json:"token"`
	RewardType  string          `json:"reward_type"`
	Notified    decimal.Decimal `json:"notified"`
	NotifiedUSD decimal.Decimal `json:"notified_usd"`
	Claimed     decimal.Decimal `json:"claimed"`
	ClaimedUSD  decimal.Decimal `json:"claimed_usd"`
}

// VotingRewardSource maps a fee or bribe reward contract to its gauge and pool.
type VotingRewardSource struct {
	ID         string `json:"id"`
	Gauge      string `json:"gauge"`
	Pool       string `json:"pool"`
	RewardType string `json:"reward_type"`
}

// VotingRewardDeposit is an immutable fee or bribe deposit.
type VotingRewardDeposit struct {
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	Gauge       string          `json:"gauge"`
	Pool        string          `json:"pool"`
	RewardType  string          `json:"reward_type"`
	Token       string          `json:"token"`
	From        string          `json:"from"`
	Amount      decimal.Decimal `json:"amount"`
	AmountUSD   decimal.Decimal `json:"amount_usd"`
	Epoch       uint64          `json:"epoch"`
	RewardEpoch string          `json:"reward_epoch"`
	BlockNumber uint64          `json:"block_number"`
	Timestamp   uint64          `json:"timestamp"`
	Transaction string          `json:"transaction"`
}

// VotingRewardClaim is an immutable fee or bribe claim.
type VotingRewardClaim struct {
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	Gauge       string          `json:"gauge"`
	Pool        string          `json:"pool"`
	RewardType  string          `json:"reward_type"`
	Token       string          `json:"token"`
	User        string          `json:"user"`
	Amount      decimal.Decimal `json:"amount"`
	AmountUSD   decimal.Decimal `json:"amount_usd"`
	Epoch       uint64          `json:"epoch"`
	BlockNumber uint64          `json:"block_number"`
	Timestamp   uint64          `json:"timestamp"`
	Transaction string          `json:"transaction"`
}

// VeNFT is a vote-escrow lock.
type VeNFT struct {
	ID           string          `json:"id"`
	Owner        string          `json:"owner"`
	LockedAmount decimal.Decimal `json:"locked_amount"`
	LockEnd      uint64          `json:"lock_end"`
	IsPermanent  bool            `json:"is_permanent"`
	VotingPower  decimal.Decimal `json:"voting_power"`
	TotalClaimed decimal.Decimal `json:"total_claimed"`
	HasVoted     bool            `json:"has_voted"`
	LastVoted    uint64          `json:"last_voted"`
	CreatedAt    uint64          `json:"created_at"`
	UpdatedAt    uint64          `json:"updated_at"`
}

// VeVote is the current allocation of a veNFT to a pool.
type VeVote struct {
	ID        string `json:"id"`
	VeNFT     string `json:"ve_nft"`
	Pool      string `json:"pool"`
	Voter     string `json:"voter"`
	Weight    BigInt `json:"weight"`
	Epoch     uint64 `json:"epoch"`
	Active    bool   `json:"active"`
	Timestamp uint64 `json:"timestamp"`
}

// VoteSnapshot is a veNFT's total allocation in one epoch.
type VoteSnapshot struct {
	ID          string   `json:"id"`
	VeNFT       string   `json:"ve_nft"`
	Epoch       uint64   `json:"epoch"`
	TotalWeight BigInt   `json:"total_weight"`
	Pools       []string `json:"pools"`
	Timestamp   uint64   `json:"timestamp"`
}

// PoolVote is a veNFT's allocation to one pool in one epoch.
type PoolVote struct {
	ID         string          `json:"id"`
	Snapshot   string          `json:"snapshot"`
	VeNFT      string          `json:"ve_nft"`
	Pool       string          `json:"pool"`
	Epoch      uint64          `json:"epoch"`
	Weight     BigInt          `json:"weight"`
	Percentage decimal.Decimal `json:"percentage"`
}

// VeNFTRewards records rebase claims of a veNFT for one distributor epoch.
type VeNFTRewards struct {
	ID         string          `json:"id"`
	VeNFT      string          `json:"ve_nft"`
	EpochStart uint64          `json:"epoch_start"`
	EpochEnd   uint64          `json:"epoch_end"`
	Amount     decimal.Decimal `json:"amount"`
	Timestamp  uint64          `json:"timestamp"`
}

// LockedBalance is the escrow locked(tokenId) view.
type LockedBalance struct {
	Amount      *big.Int
	End         uint64
	IsPermanent bool
}

// NewGauge returns a gauge with zeroed accumulators.
func NewGauge(id, pool, gaugeType string) Gauge {
	return Gauge{
		ID:         id,
		Pool:       pool,
		GaugeType:  gaugeType,
		RewardRate: NewBigInt(nil),
		Weight:     NewBigInt(nil),
	}
}

// NewGaugeEpochData returns an empty epoch bucket.
func NewGaugeEpochData(gauge string, epoch, epochStart uint64) GaugeEpochData {
	return GaugeEpochData{
		ID:           GaugeEpochID(gauge, epoch),
		Gauge:        gauge,
		Epoch:        epoch,
		EpochStart:   epochStart,
		VotingWeight: NewBigInt(nil),
	}
}
