package model

// Event names emitted by the decoder and routed by the engine.
const (
	EventPoolCreated        = "PoolCreated"
	EventSwap               = "Swap"
	EventMint               = "Mint"
	EventBurn               = "Burn"
	EventCollect            = "Collect"
	EventIncreaseLiquidity  = "IncreaseLiquidity"
	EventDecreaseLiquidity  = "DecreaseLiquidity"
	EventPositionCollect    = "PositionCollect"
	EventPositionTransfer   = "PositionTransfer"
	EventGaugeCreated       = "GaugeCreated"
	EventVoted              = "Voted"
	EventAbstained          = "Abstained"
	EventGaugeDeposit       = "GaugeDeposit"
	EventGaugeWithdraw      = "GaugeWithdraw"
	EventCLGaugeDeposit     = "CLGaugeDeposit"
	EventCLGaugeWithdraw    = "CLGaugeWithdraw"
	EventGaugeClaimRewards  = "GaugeClaimRewards"
	EventGaugeNotifyReward  = "GaugeNotifyReward"
	EventRewardNotify       = "VotingRewardNotify"
	EventRewardClaim        = "VotingRewardClaim"
	EventEscrowDeposit      = "EscrowDeposit"
	EventEscrowWithdraw     = "EscrowWithdraw"
	EventEscrowTransfer     = "EscrowTransfer"
	EventLockPermanent      = "LockPermanent"
	EventMinterMint         = "MinterMint"
	EventDistributorClaimed = "DistributorClaimed"
)

// SwapEventData is the decoded Swap event payload.
type SwapEventData struct {
	Sender       string `json:"sender"`
	Recipient    string `json:"recipient"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Liquidity    string `json:"liquidity"`
	Tick         int32  `json:"tick"`
}

// MintEventData is the decoded Mint event payload.
type MintEventData struct {
	Sender    string `json:"sender"`
	Owner     string `json:"owner"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount    string `json:"amount"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// BurnEventData is the decoded Burn event payload.
type BurnEventData struct {
	Owner     string `json:"owner"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount    string `json:"amount"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// CollectEventData is the decoded pool Collect event payload.
type CollectEventData struct {
	Owner     string `json:"owner"`
	Recipient string `json:"recipient"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// PoolCreatedEventData is emitted by the pool factory.
type PoolCreatedEventData struct {
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	TickSpacing int32  `json:"tick_spacing"`
	Pool        string `json:"pool"`
}

// LiquidityEventData covers IncreaseLiquidity and DecreaseLiquidity.
type LiquidityEventData struct {
	TokenID   string `json:"token_id"`
	Liquidity string `json:"liquidity"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// PositionCollectEventData is the position manager Collect payload.
type PositionCollectEventData struct {
	TokenID   string `json:"token_id"`
	Recipient string `json:"recipient"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// TransferEventData is an ERC721 transfer.
type TransferEventData struct {
	From    string `json:"from"`
	To      string `json:"to"`
	TokenID string `json:"token_id"`
}

// GaugeCreatedEventData is emitted by the voter when a gauge factory deploys a gauge.
type GaugeCreatedEventData struct {
	PoolFactory          string `json:"pool_factory"`
	VotingRewardsFactory string `json:"voting_rewards_factory"`
	GaugeFactory         string `json:"gauge_factory"`
	Pool                 string `json:"pool"`
	BribeVotingReward    string `json:"bribe_voting_reward"`
	FeeVotingReward      string `json:"fee_voting_reward"`
	Gauge                string `json:"gauge"`
	Creator              string `json:"creator"`
}

// VoteEventData covers Voted and Abstained.
type VoteEventData struct {
	Voter       string `json:"voter"`
	Pool        string `json:"pool"`
	TokenID     string `json:"token_id"`
	Weight      string `json:"weight"`
	TotalWeight string `json:"total_weight"`
	Timestamp   uint64 `json:"timestamp"`
}

// StakeEventData covers V2 and CL gauge deposits and withdrawals.
// TokenID is empty for V2 gauges.
type StakeEventData struct {
	User    string `json:"user"`
	TokenID string `json:"token_id,omitempty"`
	Amount  string `json:"amount"`
}

// GaugeClaimEventData is a gauge ClaimRewards payload. TokenID is filled
// when the claiming transaction input carries it.
type GaugeClaimEventData struct {
	From    string `json:"from"`
	Amount  string `json:"amount"`
	TokenID string `json:"token_id,omitempty"`
}

// GaugeNotifyEventData is a gauge NotifyReward payload.
type GaugeNotifyEventData struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

// RewardNotifyEventData is a fee or bribe voting reward NotifyReward payload.
type RewardNotifyEventData struct {
	From   string `json:"from"`
	Token  string `json:"token"`
	Epoch  string `json:"epoch"`
	Amount string `json:"amount"`
}

// RewardClaimEventData is a fee or bribe voting reward ClaimRewards payload.
type RewardClaimEventData struct {
	Recipient string `json:"recipient"`
	Token     string `json:"token"`
	Amount    string `json:"amount"`
}

// EscrowDepositEventData is a VotingEscrow Deposit payload.
type EscrowDepositEventData struct {
	Provider    string `json:"provider"`
	TokenID     string `json:"token_id"`
	DepositType uint8  `json:"deposit_type"`
	Value       string `json:"value"`
	Locktime    uint64 `json:"locktime"`
	Ts          uint64 `json:"ts"`
}

// EscrowWithdrawEventData is a VotingEscrow Withdraw payload.
type EscrowWithdrawEventData struct {
	Provider string `json:"provider"`
	TokenID  string `json:"token_id"`
	Value    string `json:"value"`
	Ts       uint64 `json:"ts"`
}

// LockPermanentEventData is a VotingEscrow LockPermanent payload.
type LockPermanentEventData struct {
	Owner   string `json:"owner"`
	TokenID string `json:"token_id"`
	Amount  string `json:"amount"`
	Ts      uint64 `json:"ts"`
}

// MinterMintEventData is the minter's weekly emission payload.
type MinterMintEventData struct {
	Sender            string `json:"sender"`
	Weekly            string `json:"weekly"`
	CirculatingSupply string `json:"circulating_supply"`
	Timestamp         uint64 `json:"timestamp"`
}

// DistributorClaimedEventData is a rewards distributor Claimed payload.
type DistributorClaimedEventData struct {
	TokenID    string `json:"token_id"`
	EpochStart uint64 `json:"epoch_start"`
	EpochEnd   uint64 `json:"epoch_end"`
	Amount     string `json:"amount"`
}
