package engine

import (
	"context"

	"clscope/internal/model"
)

func (e *Engine) handleRewardNotify(_ context.Context, ev model.TypedEventRecord) error {
	data, err := decodePayload[model.RewardNotifyEventData](ev)
	if err != nil {
		return err
	}
	raw, err := parseBigInt(data.Amount)
	if err != nil {
		return err
	}
	src, ok := e.store.RewardSources.Get(model.NormalizeAddress(ev.Address))
	if !ok {
		e.skip(ev, "notify from unknown reward contract")
		return nil
	}

	token := model.NormalizeAddress(data.Token)
	amount := e.convert(token, raw)
	usd := amount.Mul(e.oracle.KnownPriceUSD(e.store, token))
	epoch := Epoch(ev.Timestamp)

	bucket := e.gaugeEpoch(src.Gauge, epoch)
	switch src.RewardType {
	case model.RewardTypeFee:
		if pool, ok := e.store.Pools.Get(src.Pool); ok {
			switch token {
			case pool.Token0:
				bucket.FeeRewardToken0 = bucket.FeeRewardToken0.Add(amount)
			case pool.Token1:
				bucket.FeeRewardToken1 = bucket.FeeRewardToken1.Add(amount)
			}
		}
	case model.RewardTypeBribe:
		bucket.TotalBribesUSD = bucket.TotalBribesUSD.Add(usd)
	}
	e.store.GaugeEpochs.Put(bucket.ID, bucket)

	reward := e.epochReward(src, epoch, token)
	reward.Notified = reward.Notified.Add(amount)
	reward.NotifiedUSD = reward.NotifiedUSD.Add(usd)
	e.store.GaugeEpochRewards.Put(reward.ID, reward)

	tx := e.touchTransaction(ev)
	id := ev.EventID()
	e.store.RewardDeposits.Put(id, model.VotingRewardDeposit{
		ID:          id,
		Source:      src.ID,
		Gauge:       src.Gauge,
		Pool:        src.Pool,
		RewardType:  src.RewardType,
		Token:       token,
		From:        model.NormalizeAddress(data.From),
		Amount:      amount,
		AmountUSD:   usd,
		Epoch:       epoch,
		RewardEpoch: data.Epoch,
		BlockNumber: ev.BlockNumber,
		Timestamp:   ev.Timestamp,
		Transaction: tx.ID,
	})
	return nil
}

func (e *Engine) handleRewardClaim(_ context.Context, ev model.TypedEventRecord) error {
	data, err := decodePayload[model.RewardClaimEventData](ev)
	if err != nil {
		return err
	}
	raw, err := parseBigInt(data.Amount)
	if err != nil {
		return err
	}
	src, ok := e.store.RewardSources.Get(model.NormalizeAddress(ev.Address))
	if !ok {
		e.skip(ev, "claim from unknown reward contract")
		return nil
	}

	token := model.NormalizeAddress(data.Token)
	recipient := model.NormalizeAddress(data.Recipient)
	amount := e.convert(token, raw)
	usd := amount.Mul(e.oracle.KnownPriceUSD(e.store, token))
	epoch := Epoch(ev.Timestamp)

	reward := e.epochReward(src, epoch, token)
	reward.Claimed = reward.Claimed.Add(amount)
	reward.ClaimedUSD = reward.ClaimedUSD.Add(usd)
	e.store.GaugeEpochRewards.Put(reward.ID, reward)

	tx := e.touchTransaction(ev)
	id := ev.EventID()
	e.store.RewardClaims.Put(id, model.VotingRewardClaim{
		ID:          id,
		Source:      src.ID,
		Gauge:       src.Gauge,
		Pool:        src.Pool,
		RewardType:  src.RewardType,
		Token:       token,
		User:        recipient,
		Amount:      amount,
		AmountUSD:   usd,
		Epoch:       epoch,
		BlockNumber: ev.BlockNumber,
		Timestamp:   ev.Timestamp,
		Transaction: tx.ID,
	})

	u := e.touchUser(recipient, ev.Timestamp)
	u.TotalRewardsClaimedUSD = u.TotalRewardsClaimedUSD.Add(usd)
	e.store.Users.Put(u.ID, u)
	return nil
}

func (e *Engine) epochReward(src model.VotingRewardSource, epoch uint64, token string) model.GaugeEpochReward {
	id := model.GaugeEpochRewardID(src.Gauge, epoch, src.RewardType, token)
	reward, _ := e.store.GaugeEpochRewards.GetOrInsertWith(id, func() model.GaugeEpochReward {
		return model.GaugeEpochReward{
			ID:         id,
			Gauge:      src.Gauge,
			Epoch:      epoch,
			Token:      token,
			RewardType: src.RewardType,
		}
	})
	return reward
}
