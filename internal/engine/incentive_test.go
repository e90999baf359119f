package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clscope/internal/model"
)

func setupGauge(t *testing.T, h *harness) {
	t.Helper()
	h.createPool(poolAddr, stableToken, baseToken)
	h.apply(model.EventGaugeCreated, voterAddr, 1100, model.GaugeCreatedEventData{
		Pool:              poolAddr,
		Gauge:             gaugeAddr,
		FeeVotingReward:   feeReward,
		BribeVotingReward: bribeReward,
	})
}

func vote(h *harness, name, pool, weight string, ts uint64) []model.EntityChange {
	return h.apply(name, voterAddr, ts, model.VoteEventData{
		Voter: alice, Pool: pool, TokenID: "7", Weight: weight, Timestamp: ts,
	})
}

func TestGaugeCreated(t *testing.T) {
	h := newHarness(t, Config{})
	setupGauge(t, h)

	gauge, ok := h.state().Gauges.Get(gaugeAddr)
	require.True(t, ok)
	assert.Equal(t, model.GaugeTypeCL, gauge.GaugeType)
	assert.Equal(t, gaugeAddr, h.pool(poolAddr).GaugeAddress)

	fee, ok := h.state().RewardSources.Get(feeReward)
	require.True(t, ok)
	assert.Equal(t, model.RewardTypeFee, fee.RewardType)
	assert.Equal(t, gaugeAddr, fee.Gauge)

	bribe, ok := h.state().RewardSources.Get(bribeReward)
	require.True(t, ok)
	assert.Equal(t, model.RewardTypeBribe, bribe.RewardType)

	h.apply(model.EventGaugeCreated, voterAddr, 1200, model.GaugeCreatedEventData{Pool: pool2Addr, Gauge: v2GaugeAddr})
	v2, ok := h.state().Gauges.Get(v2GaugeAddr)
	require.True(t, ok)
	assert.Equal(t, model.GaugeTypeV2, v2.GaugeType)
}

func TestRevoteInSameEpochReplacesWeight(t *testing.T) {
	h := newHarness(t, Config{})
	setupGauge(t, h)
	ts := EpochStart(10) + 100

	vote(h, model.EventVoted, poolAddr, "100", ts)
	vote(h, model.EventVoted, poolAddr, "60", ts+10)

	assert.Equal(t, "60", h.state().Protocol().TotalVotingWeight.String())
	gauge, _ := h.state().Gauges.Get(gaugeAddr)
	assert.Equal(t, "60", gauge.Weight.String())
	epoch, ok := h.state().GaugeEpochs.Get(model.GaugeEpochID(gaugeAddr, 10))
	require.True(t, ok)
	assert.Equal(t, "60", epoch.VotingWeight.String())

	snap, ok := h.state().VoteSnapshots.Get(model.VoteSnapshotID("7", 10))
	require.True(t, ok)
	assert.Equal(t, "60", snap.TotalWeight.String())
	pv, ok := h.state().PoolVotes.Get(model.PoolVoteID("7", 10, poolAddr))
	require.True(t, ok)
	assertDecEqual(t, "100", pv.Percentage)

	// a second pool shares the snapshot; percentages are recomputed for all
	vote(h, model.EventVoted, pool2Addr, "40", ts+20)
	snap, _ = h.state().VoteSnapshots.Get(model.VoteSnapshotID("7", 10))
	assert.Equal(t, "100", snap.TotalWeight.String())
	pv1, _ := h.state().PoolVotes.Get(model.PoolVoteID("7", 10, poolAddr))
	pv2, _ := h.state().PoolVotes.Get(model.PoolVoteID("7", 10, pool2Addr))
	assertDecEqual(t, "60", pv1.Percentage)
	assertDecEqual(t, "40", pv2.Percentage)
	assert.Equal(t, "100", h.state().Protocol().TotalVotingWeight.String())
}

func TestAbstainReversesVote(t *testing.T) {
	h := newHarness(t, Config{})
	setupGauge(t, h)
	ts := EpochStart(10) + 100

	vote(h, model.EventVoted, poolAddr, "60", ts)
	vote(h, model.EventVoted, pool2Addr, "40", ts)
	vote(h, model.EventAbstained, poolAddr, "60", ts+50)

	assert.Equal(t, "40", h.state().Protocol().TotalVotingWeight.String())
	gauge, _ := h.state().Gauges.Get(gaugeAddr)
	assert.Equal(t, 0, gauge.Weight.Sign())
	epoch, _ := h.state().GaugeEpochs.Get(model.GaugeEpochID(gaugeAddr, 10))
	assert.Equal(t, 0, epoch.VotingWeight.Sign())

	snap, _ := h.state().VoteSnapshots.Get(model.VoteSnapshotID("7", 10))
	assert.Equal(t, "40", snap.TotalWeight.String())
	pv1, _ := h.state().PoolVotes.Get(model.PoolVoteID("7", 10, poolAddr))
	pv2, _ := h.state().PoolVotes.Get(model.PoolVoteID("7", 10, pool2Addr))
	assert.Equal(t, 0, pv1.Weight.Sign())
	assertDecEqual(t, "0", pv1.Percentage)
	assertDecEqual(t, "100", pv2.Percentage)

	v, ok := h.state().VeVotes.Get(model.VeVoteID("7", poolAddr))
	require.True(t, ok)
	assert.False(t, v.Active)

	// nothing left to reverse
	assert.Empty(t, vote(h, model.EventAbstained, poolAddr, "60", ts+60))
}

func TestRevoteInLaterEpochKeepsOldEpoch(t *testing.T) {
	h := newHarness(t, Config{})
	setupGauge(t, h)

	vote(h, model.EventVoted, poolAddr, "100", EpochStart(10)+1)
	vote(h, model.EventVoted, poolAddr, "80", EpochStart(11)+1)

	assert.Equal(t, "80", h.state().Protocol().TotalVotingWeight.String())
	gauge, _ := h.state().Gauges.Get(gaugeAddr)
	assert.Equal(t, "80", gauge.Weight.String())

	old, _ := h.state().GaugeEpochs.Get(model.GaugeEpochID(gaugeAddr, 10))
	cur, _ := h.state().GaugeEpochs.Get(model.GaugeEpochID(gaugeAddr, 11))
	assert.Equal(t, "100", old.VotingWeight.String())
	assert.Equal(t, "80", cur.VotingWeight.String())

	oldSnap, _ := h.state().VoteSnapshots.Get(model.VoteSnapshotID("7", 10))
	curSnap, _ := h.state().VoteSnapshots.Get(model.VoteSnapshotID("7", 11))
	assert.Equal(t, "100", oldSnap.TotalWeight.String())
	assert.Equal(t, "80", curSnap.TotalWeight.String())
}

func TestGaugeNotifyRewardAPR(t *testing.T) {
	h := newHarness(t, Config{RewardToken: stableToken})
	setupGauge(t, h)

	s := h.state()
	pool := h.pool(poolAddr)
	pool.TotalValueLockedUSD = dec("31536000")
	s.Pools.Put(pool.ID, pool)
	_, err := s.Commit(model.Cursor{BlockNumber: 1})
	require.NoError(t, err)

	ts := EpochStart(20) + 5
	h.apply(model.EventGaugeNotifyReward, gaugeAddr, ts, model.GaugeNotifyEventData{From: voterAddr, Amount: units(604800)})

	gauge, _ := s.Gauges.Get(gaugeAddr)
	assertDecEqual(t, "1", gauge.CurrentRewardRate)
	assert.Equal(t, one.String(), gauge.RewardRate.String())
	assertDecEqual(t, "100", gauge.EstimatedAPR)
	assert.Equal(t, ts+EpochSeconds, gauge.PeriodFinish)
	assertDecEqual(t, "604800", gauge.TotalRewardsDistributed)

	bucket, ok := s.GaugeEpochs.Get(model.GaugeEpochID(gaugeAddr, 20))
	require.True(t, ok)
	assertDecEqual(t, "604800", bucket.Emissions)
}

func TestGaugeAPRFallsBackToTokenRatio(t *testing.T) {
	h := newHarness(t, Config{RewardToken: otherToken})
	h.apply(model.EventGaugeCreated, voterAddr, 1200, model.GaugeCreatedEventData{Pool: pool2Addr, Gauge: v2GaugeAddr})
	h.apply(model.EventGaugeDeposit, v2GaugeAddr, 1300, model.StakeEventData{User: alice, Amount: units(31536000)})

	h.apply(model.EventGaugeNotifyReward, v2GaugeAddr, 1400, model.GaugeNotifyEventData{Amount: units(604800)})
	gauge, _ := h.state().Gauges.Get(v2GaugeAddr)
	assertDecEqual(t, "100", gauge.EstimatedAPR)
}

func TestGaugeAPRZeroWithoutStakedValue(t *testing.T) {
	h := newHarness(t, Config{RewardToken: stableToken})
	setupGauge(t, h)

	h.apply(model.EventGaugeNotifyReward, gaugeAddr, 1400, model.GaugeNotifyEventData{Amount: units(604800)})
	gauge, _ := h.state().Gauges.Get(gaugeAddr)
	assert.True(t, gauge.EstimatedAPR.IsZero())
}

func TestV2StakeLifecycle(t *testing.T) {
	h := newHarness(t, Config{RewardToken: stableToken})
	h.apply(model.EventGaugeCreated, voterAddr, 1200, model.GaugeCreatedEventData{Pool: pool2Addr, Gauge: v2GaugeAddr})

	h.apply(model.EventGaugeDeposit, v2GaugeAddr, 1300, model.StakeEventData{User: alice, Amount: units(10)})
	h.apply(model.EventGaugeDeposit, v2GaugeAddr, 1310, model.StakeEventData{User: alice, Amount: units(5)})
	gauge, _ := h.state().Gauges.Get(v2GaugeAddr)
	assert.Equal(t, uint64(1), gauge.InvestorCount)
	assertDecEqual(t, "15", gauge.TotalStaked)

	h.apply(model.EventGaugeClaimRewards, v2GaugeAddr, 1320, model.GaugeClaimEventData{From: alice, Amount: units(3)})
	sp, ok := h.state().StakedPositions.Get(model.StakedPositionID(alice, v2GaugeAddr, ""))
	require.True(t, ok)
	assertDecEqual(t, "3", sp.Claimed)
	user, _ := h.state().Users.Get(alice)
	assertDecEqual(t, "3", user.TotalRewardsClaimedUSD)

	h.apply(model.EventGaugeWithdraw, v2GaugeAddr, 1330, model.StakeEventData{User: alice, Amount: units(15)})
	gauge, _ = h.state().Gauges.Get(v2GaugeAddr)
	assert.Equal(t, uint64(0), gauge.InvestorCount)
	assert.True(t, gauge.TotalStaked.IsZero())
	assertDecEqual(t, "3", gauge.TotalRewardsClaimed)
	sp, _ = h.state().StakedPositions.Get(model.StakedPositionID(alice, v2GaugeAddr, ""))
	assert.False(t, sp.IsActive)
}

func TestCLStakeMarksPosition(t *testing.T) {
	h := newHarness(t, Config{})
	setupPosition(t, h)
	h.apply(model.EventGaugeCreated, voterAddr, 1600, model.GaugeCreatedEventData{Pool: poolAddr, Gauge: gaugeAddr})
	h.apply(model.EventIncreaseLiquidity, managerAddr, 2000, model.LiquidityEventData{
		TokenID: "1", Liquidity: units(10), Amount0: units(5), Amount1: units(5),
	})

	h.apply(model.EventCLGaugeDeposit, gaugeAddr, 2100, model.StakeEventData{User: alice, TokenID: "1", Amount: units(10)})
	pos, _ := h.state().Positions.Get("1")
	assert.True(t, pos.Staked)
	assert.Equal(t, gaugeAddr, pos.StakedGauge)
	assert.True(t, h.state().StakedPositions.Has(model.StakedPositionID(alice, gaugeAddr, "1")))

	h.apply(model.EventCLGaugeWithdraw, gaugeAddr, 2200, model.StakeEventData{User: alice, TokenID: "1", Amount: units(10)})
	pos, _ = h.state().Positions.Get("1")
	assert.False(t, pos.Staked)
	assert.Equal(t, "", pos.StakedGauge)
}

func TestVotingRewards(t *testing.T) {
	h := newHarness(t, Config{})
	setupGauge(t, h)
	ts := EpochStart(30) + 10

	h.apply(model.EventRewardNotify, feeReward, ts, model.RewardNotifyEventData{
		From: alice, Token: stableToken, Epoch: "30", Amount: units(4),
	})
	h.apply(model.EventRewardNotify, bribeReward, ts+1, model.RewardNotifyEventData{
		From: alice, Token: stableToken, Amount: units(6),
	})

	bucket, ok := h.state().GaugeEpochs.Get(model.GaugeEpochID(gaugeAddr, 30))
	require.True(t, ok)
	assertDecEqual(t, "4", bucket.FeeRewardToken0)
	assertDecEqual(t, "0", bucket.FeeRewardToken1)
	assertDecEqual(t, "6", bucket.TotalBribesUSD)
	assert.Equal(t, 2, h.state().RewardDeposits.Len())

	h.apply(model.EventRewardClaim, bribeReward, ts+2, model.RewardClaimEventData{
		Recipient: bob, Token: stableToken, Amount: units(2),
	})
	assert.Equal(t, 2, h.state().GaugeEpochRewards.Len())
	fee, ok := h.state().GaugeEpochRewards.Get(model.GaugeEpochRewardID(gaugeAddr, 30, model.RewardTypeFee, stableToken))
	require.True(t, ok)
	assert.Equal(t, model.RewardTypeFee, fee.RewardType)
	assertDecEqual(t, "4", fee.Notified)
	assertDecEqual(t, "0", fee.Claimed)
	bribe, ok := h.state().GaugeEpochRewards.Get(model.GaugeEpochRewardID(gaugeAddr, 30, model.RewardTypeBribe, stableToken))
	require.True(t, ok)
	assert.Equal(t, model.RewardTypeBribe, bribe.RewardType)
	assertDecEqual(t, "6", bribe.Notified)
	assertDecEqual(t, "2", bribe.Claimed)
	assertDecEqual(t, "2", bribe.ClaimedUSD)

	user, _ := h.state().Users.Get(bob)
	assertDecEqual(t, "2", user.TotalRewardsClaimedUSD)

	assert.Empty(t, h.apply(model.EventRewardClaim, "0x00000000000000000000000000000000000000ff", ts+3, model.RewardClaimEventData{
		Recipient: bob, Token: stableToken, Amount: units(2),
	}))
}

func TestEscrowLifecycle(t *testing.T) {
	h := newHarness(t, Config{})
	h.reader.owners["5"] = alice
	h.reader.locked["5"] = model.LockedBalance{Amount: bigUnits(100), End: 9999}
	h.reader.power["5"] = bigUnits(50)

	h.apply(model.EventEscrowDeposit, escrowAddr, 1000, model.EscrowDepositEventData{
		Provider: alice, TokenID: "5", DepositType: 1, Value: units(100), Locktime: 9999, Ts: 1000,
	})
	nft, ok := h.state().VeNFTs.Get("5")
	require.True(t, ok)
	assert.Equal(t, alice, nft.Owner)
	assertDecEqual(t, "100", nft.LockedAmount)
	assertDecEqual(t, "50", nft.VotingPower)
	assert.Equal(t, uint64(9999), nft.LockEnd)
	user, _ := h.state().Users.Get(alice)
	assert.Equal(t, uint64(1), user.VeNFTCount)

	h.apply(model.EventEscrowTransfer, escrowAddr, 1100, model.TransferEventData{From: alice, To: bob, TokenID: "5"})
	nft, _ = h.state().VeNFTs.Get("5")
	assert.Equal(t, bob, nft.Owner)
	bobUser, _ := h.state().Users.Get(bob)
	assert.Equal(t, uint64(1), bobUser.VeNFTCount)

	h.apply(model.EventLockPermanent, escrowAddr, 1200, model.LockPermanentEventData{Owner: bob, TokenID: "5", Amount: units(100)})
	nft, _ = h.state().VeNFTs.Get("5")
	assert.True(t, nft.IsPermanent)
	assert.Equal(t, uint64(0), nft.LockEnd)
	assertDecEqual(t, "100", nft.VotingPower)

	for i := 0; i < 2; i++ {
		h.apply(model.EventDistributorClaimed, escrowAddr, 1300, model.DistributorClaimedEventData{
			TokenID: "5", EpochStart: 604800, EpochEnd: 1209600, Amount: units(1),
		})
	}
	rewards, ok := h.state().VeNFTRewards.Get(model.VeNFTRewardsID("5", 604800))
	require.True(t, ok)
	assertDecEqual(t, "2", rewards.Amount)
	nft, _ = h.state().VeNFTs.Get("5")
	assertDecEqual(t, "2", nft.TotalClaimed)

	h.apply(model.EventEscrowWithdraw, escrowAddr, 1400, model.EscrowWithdrawEventData{Provider: bob, TokenID: "5", Value: units(100)})
	nft, _ = h.state().VeNFTs.Get("5")
	assert.True(t, nft.LockedAmount.IsZero())
	assert.True(t, nft.VotingPower.IsZero())
	assert.False(t, nft.IsPermanent)
}

func TestEscrowDepositWithoutReader(t *testing.T) {
	h := newHarness(t, Config{})
	h.apply(model.EventEscrowDeposit, escrowAddr, 1000, model.EscrowDepositEventData{
		Provider: alice, TokenID: "6", Value: units(7), Locktime: 5000,
	})
	nft, ok := h.state().VeNFTs.Get("6")
	require.True(t, ok)
	assert.Equal(t, "", nft.Owner)
	assertDecEqual(t, "7", nft.LockedAmount)
	assertDecEqual(t, "7", nft.VotingPower)
	assert.Equal(t, uint64(5000), nft.LockEnd)
}

func TestVoteMarksVeNFT(t *testing.T) {
	h := newHarness(t, Config{})
	h.reader.owners["7"] = alice
	h.apply(model.EventEscrowDeposit, escrowAddr, 1000, model.EscrowDepositEventData{TokenID: "7", Value: units(1)})

	vote(h, model.EventVoted, poolAddr, "10", 2000)
	nft, _ := h.state().VeNFTs.Get("7")
	assert.True(t, nft.HasVoted)
	assert.Equal(t, uint64(2000), nft.LastVoted)
	assert.Equal(t, "10", h.state().Protocol().TotalVotingWeight.String())
}

func TestMinterMintAdvancesPeriod(t *testing.T) {
	h := newHarness(t, Config{})
	h.apply(model.EventMinterMint, "0x0000000000000000000000000000000000000e04", 1209601, model.MinterMintEventData{
		Weekly: units(1000), Timestamp: 1209600,
	})
	p := h.state().Protocol()
	assert.Equal(t, uint64(1209600), p.ActivePeriod)
	assert.Equal(t, uint64(1), p.EpochCount)
}
