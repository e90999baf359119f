package engine

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"clscope/internal/fixedpoint"
	"clscope/internal/model"
)

var hundred = decimal.NewFromInt(100)

func (e *Engine) handleGaugeCreated(_ context.Context, ev model.TypedEventRecord) error {
	data, err := decodePayload[model.GaugeCreatedEventData](ev)
	if err != nil {
		return err
	}
	gaugeID := model.NormalizeAddress(data.Gauge)
	poolID := model.NormalizeAddress(data.Pool)
	if e.store.Gauges.Has(gaugeID) {
		e.skip(ev, "gauge already exists", zap.String("gauge", gaugeID))
		return nil
	}

	gaugeType := model.GaugeTypeV2
	pool, poolKnown := e.store.Pools.Get(poolID)
	if _, ok := e.clFactories[model.NormalizeAddress(data.GaugeFactory)]; ok || poolKnown {
		gaugeType = model.GaugeTypeCL
	}

	gauge := model.NewGauge(gaugeID, poolID, gaugeType)
	gauge.FeeRewardAddress = model.NormalizeAddress(data.FeeVotingReward)
	gauge.BribeRewardAddress = model.NormalizeAddress(data.BribeVotingReward)
	gauge.CreatedAt = ev.Timestamp
	e.store.Gauges.Put(gauge.ID, gauge)

	if poolKnown {
		pool.GaugeAddress = gaugeID
		e.store.Pools.Put(pool.ID, pool)
	}

	for _, src := range []struct{ addr, kind string }{
		{gauge.FeeRewardAddress, model.RewardTypeFee},
		{gauge.BribeRewardAddress, model.RewardTypeBribe},
	} {
		if src.addr == "" || src.addr == model.ZeroAddress {
			continue
		}
		e.store.RewardSources.Put(src.addr, model.VotingRewardSource{
			ID:         src.addr,
			Gauge:      gaugeID,
			Pool:       poolID,
			RewardType: src.kind,
		})
	}
	return nil
}

// handleVoted records a veNFT allocation. A re-vote replaces the previous
// weight: protocol and gauge totals move by the difference from the last
// active vote, epoch aggregates by the difference only when that vote was
// cast in the same epoch.
func (e *Engine) handleVoted(_ context.Context, ev model.TypedEventRecord) error {
	data, err := decodePayload[model.VoteEventData](ev)
	if err != nil {
		return err
	}
	tokenID, err := parseBigInt(data.TokenID)
	if err != nil {
		return err
	}
	weight, err := parseBigInt(data.Weight)
	if err != nil {
		return err
	}
	nftID := tokenID.String()
	poolID := model.NormalizeAddress(data.Pool)
	voter := model.NormalizeAddress(data.Voter)
	epoch := Epoch(ev.Timestamp)

	voteID := model.VeVoteID(nftID, poolID)
	prevGlobal := new(big.Int)
	prevEpoch := new(big.Int)
	if vote, ok := e.store.VeVotes.Get(voteID); ok && vote.Active {
		prevGlobal = copyBig(vote.Weight.Int)
		if vote.Epoch == epoch {
			prevEpoch = copyBig(vote.Weight.Int)
		}
	}
	deltaGlobal := new(big.Int).Sub(weight, prevGlobal)
	deltaEpoch := new(big.Int).Sub(weight, prevEpoch)

	e.updateProtocol(func(p *model.Protocol) {
		p.TotalVotingWeight = clampAdd(p.TotalVotingWeight, deltaGlobal)
	})
	e.applyGaugeVote(poolID, epoch, deltaGlobal, deltaEpoch)

	snapshot := e.voteSnapshot(nftID, epoch)
	snapshot.TotalWeight = clampAdd(snapshot.TotalWeight, deltaEpoch)
	snapshot.Timestamp = ev.Timestamp
	if !containsString(snapshot.Pools, poolID) {
		snapshot.Pools = append(append([]string(nil), snapshot.Pools...), poolID)
	}
	e.store.VoteSnapshots.Put(snapshot.ID, snapshot)

	pvID := model.PoolVoteID(nftID, epoch, poolID)
	e.store.PoolVotes.Put(pvID, model.PoolVote{
		ID:       pvID,
		Snapshot: snapshot.ID,
		VeNFT:    nftID,
		Pool:     poolID,
		Epoch:    epoch,
		Weight:   model.NewBigInt(copyBig(weight)),
	})
	e.recomputePercentages(snapshot)

	e.store.VeVotes.Put(voteID, model.VeVote{
		ID:        voteID,
		VeNFT:     nftID,
		Pool:      poolID,
		Voter:     voter,
		Weight:    model.NewBigInt(copyBig(weight)),
		Epoch:     epoch,
		Active:    true,
		Timestamp: ev.Timestamp,
	})

	if nft, ok := e.store.VeNFTs.Get(nftID); ok {
		nft.HasVoted = true
		nft.LastVoted = ev.Timestamp
		nft.UpdatedAt = ev.Timestamp
		e.store.VeNFTs.Put(nft.ID, nft)
	}
	if voter != "" {
		user := e.touchUser(voter, ev.Timestamp)
		e.store.Users.Put(user.ID, user)
	}
	return nil
}

// handleAbstained reverses the active vote's contribution in the epoch it was cast.
func (e *Engine) handleAbstained(_ context.Context, ev model.TypedEventRecord) error {
	data, err := decodePayload[model.VoteEventData](ev)
	if err != nil {
		return err
	}
	tokenID, err := parseBigInt(data.TokenID)
	if err != nil {
		return err
	}
	nftID := tokenID.String()
	poolID := model.NormalizeAddress(data.Pool)

	voteID := model.VeVoteID(nftID, poolID)
	vote, ok := e.store.VeVotes.Get(voteID)
	if !ok || !vote.Active {
		e.skip(ev, "abstain without active vote", zap.String("vote", voteID))
		return nil
	}
	removed := new(big.Int).Neg(vote.Weight.Big())

	e.updateProtocol(func(p *model.Protocol) {
		p.TotalVotingWeight = clampAdd(p.TotalVotingWeight, removed)
	})
	e.applyGaugeVote(poolID, vote.Epoch, removed, removed)

	snapshot := e.voteSnapshot(nftID, vote.Epoch)
	snapshot.TotalWeight = clampAdd(snapshot.TotalWeight, removed)
	snapshot.Timestamp = ev.Timestamp
	e.store.VoteSnapshots.Put(snapshot.ID, snapshot)

	pvID := model.PoolVoteID(nftID, vote.Epoch, poolID)
	if pv, ok := e.store.PoolVotes.Get(pvID); ok {
		pv.Weight = model.NewBigInt(nil)
		e.store.PoolVotes.Put(pv.ID, pv)
	}
	e.recomputePercentages(snapshot)

	vote.Active = false
	vote.Timestamp = ev.Timestamp
	e.store.VeVotes.Put(vote.ID, vote)
	return nil
}

// applyGaugeVote moves the weight of the pool's gauge and its epoch bucket.
// Pools without a gauge back-reference only affect protocol totals.
func (e *Engine) applyGaugeVote(poolID string, epoch uint64, deltaGlobal, deltaEpoch *big.Int) {
	pool, ok := e.store.Pools.Get(poolID)
	if !ok || pool.GaugeAddress == "" {
		return
	}
	gauge, ok := e.store.Gauges.Get(pool.GaugeAddress)
	if !ok {
		return
	}
	gauge.Weight = clampAdd(gauge.Weight, deltaGlobal)
	e.store.Gauges.Put(gauge.ID, gauge)

	data := e.gaugeEpoch(gauge.ID, epoch)
	data.VotingWeight = clampAdd(data.VotingWeight, deltaEpoch)
	e.store.GaugeEpochs.Put(data.ID, data)
}

func (e *Engine) gaugeEpoch(gauge string, epoch uint64) model.GaugeEpochData {
	data, _ := e.store.GaugeEpochs.GetOrInsertWith(model.GaugeEpochID(gauge, epoch), func() model.GaugeEpochData {
		return model.NewGaugeEpochData(gauge, epoch, EpochStart(epoch))
	})
	return data
}

func (e *Engine) voteSnapshot(nftID string, epoch uint64) model.VoteSnapshot {
	id := model.VoteSnapshotID(nftID, epoch)
	snapshot, _ := e.store.VoteSnapshots.GetOrInsertWith(id, func() model.VoteSnapshot {
		return model.VoteSnapshot{ID: id, VeNFT: nftID, Epoch: epoch, TotalWeight: model.NewBigInt(nil)}
	})
	return snapshot
}

// recomputePercentages sets every pool vote of the snapshot to its share of
// the snapshot total.
func (e *Engine) recomputePercentages(snapshot model.VoteSnapshot) {
	total := decimal.NewFromBigInt(copyBig(snapshot.TotalWeight.Int), 0)
	for _, poolID := range snapshot.Pools {
		pv, ok := e.store.PoolVotes.Get(model.PoolVoteID(snapshot.VeNFT, snapshot.Epoch, poolID))
		if !ok {
			continue
		}
		pct := fixedpoint.SafeDiv(decimal.NewFromBigInt(copyBig(pv.Weight.Int), 0), total).Mul(hundred)
		if pct.Equal(pv.Percentage) {
			continue
		}
		pv.Percentage = pct
		e.store.PoolVotes.Put(pv.ID, pv)
	}
}

// clampAdd returns max(a+delta, 0).
func clampAdd(a model.BigInt, delta *big.Int) model.BigInt {
	out := addBig(a.Int, delta)
	if out.Sign() < 0 {
		out.SetInt64(0)
	}
	return model.NewBigInt(out)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
