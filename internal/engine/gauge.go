package engine

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"clscope/internal/fixedpoint"
	"clscope/internal/model"
)

var (
	epochSecondsDec = decimal.NewFromInt(int64(EpochSeconds))
	yearSecondsDec  = decimal.NewFromInt(SecondsPerYear)
)

// handleStake returns the handler for gauge deposits (true) or withdrawals.
// V2 stakes are keyed by (user, gauge); CL stakes also carry the position id.
func (e *Engine) handleStake(deposit bool) handlerFunc {
	return func(_ context.Context, ev model.TypedEventRecord) error {
		data, err := decodePayload[model.StakeEventData](ev)
		if err != nil {
			return err
		}
		raw, err := parseBigInt(data.Amount)
		if err != nil {
			return err
		}
		tokenID := ""
		if data.TokenID != "" {
			id, err := parseBigInt(data.TokenID)
			if err != nil {
				return err
			}
			tokenID = id.String()
		}

		gauge, ok := e.store.Gauges.Get(model.NormalizeAddress(ev.Address))
		if !ok {
			e.skip(ev, "stake on unknown gauge")
			return nil
		}
		user := model.NormalizeAddress(data.User)
		amount := fixedpoint.ConvertTokenToDecimal(raw, defaultDecimals)

		spID := model.StakedPositionID(user, gauge.ID, tokenID)
		sp, _ := e.store.StakedPositions.GetOrInsertWith(spID, func() model.GaugeStakedPosition {
			return model.GaugeStakedPosition{
				ID:        spID,
				User:      user,
				Gauge:     gauge.ID,
				TokenID:   tokenID,
				CreatedAt: ev.Timestamp,
			}
		})

		if deposit {
			if !sp.IsActive {
				sp.IsActive = true
				gauge.InvestorCount++
			}
			sp.Amount = sp.Amount.Add(amount)
			gauge.TotalStaked = gauge.TotalStaked.Add(amount)
		} else {
			sp.Amount = floorZero(sp.Amount.Sub(amount))
			gauge.TotalStaked = floorZero(gauge.TotalStaked.Sub(amount))
			if sp.IsActive && sp.Amount.IsZero() {
				sp.IsActive = false
				gauge.InvestorCount = decUint(gauge.InvestorCount)
			}
		}
		sp.UpdatedAt = ev.Timestamp
		e.store.StakedPositions.Put(sp.ID, sp)
		e.store.Gauges.Put(gauge.ID, gauge)

		if tokenID != "" {
			if pos, ok := e.store.Positions.Get(tokenID); ok {
				pos.Staked = sp.IsActive
				pos.StakedGauge = ""
				if sp.IsActive {
					pos.StakedGauge = gauge.ID
				}
				pos.UpdatedAt = ev.Timestamp
				e.store.Positions.Put(pos.ID, pos)
			}
		}

		u := e.touchUser(user, ev.Timestamp)
		e.store.Users.Put(u.ID, u)
		return nil
	}
}

func (e *Engine) handleGaugeClaim(_ context.Context, ev model.TypedEventRecord) error {
	data, err := decodePayload[model.GaugeClaimEventData](ev)
	if err != nil {
		return err
	}
	raw, err := parseBigInt(data.Amount)
	if err != nil {
		return err
	}
	gauge, ok := e.store.Gauges.Get(model.NormalizeAddress(ev.Address))
	if !ok {
		e.skip(ev, "claim on unknown gauge")
		return nil
	}

	user := model.NormalizeAddress(data.From)
	amount := e.convert(e.rewardToken, raw)
	usd := amount.Mul(e.oracle.KnownPriceUSD(e.store, e.rewardToken))

	gauge.TotalRewardsClaimed = gauge.TotalRewardsClaimed.Add(amount)
	e.store.Gauges.Put(gauge.ID, gauge)

	tokenID := ""
	if data.TokenID != "" {
		id, err := parseBigInt(data.TokenID)
		if err != nil {
			return err
		}
		tokenID = id.String()
	}
	if gauge.GaugeType == model.GaugeTypeV2 || tokenID != "" {
		if sp, ok := e.store.StakedPositions.Get(model.StakedPositionID(user, gauge.ID, tokenID)); ok {
			sp.Earned = sp.Earned.Add(amount)
			sp.Claimed = sp.Claimed.Add(amount)
			sp.UpdatedAt = ev.Timestamp
			e.store.StakedPositions.Put(sp.ID, sp)
		}
	}

	u := e.touchUser(user, ev.Timestamp)
	u.TotalRewardsClaimedUSD = u.TotalRewardsClaimedUSD.Add(usd)
	e.store.Users.Put(u.ID, u)
	return nil
}

// handleGaugeNotify starts a new emission period: the reward is spread over
// one epoch and the APR estimate is refreshed.
func (e *Engine) handleGaugeNotify(_ context.Context, ev model.TypedEventRecord) error {
	data, err := decodePayload[model.GaugeNotifyEventData](ev)
	if err != nil {
		return err
	}
	raw, err := parseBigInt(data.Amount)
	if err != nil {
		return err
	}
	gauge, ok := e.store.Gauges.Get(model.NormalizeAddress(ev.Address))
	if !ok {
		e.skip(ev, "notify on unknown gauge")
		return nil
	}

	reward := e.convert(e.rewardToken, raw)
	rate := reward.DivRound(epochSecondsDec, fixedpoint.PricePrecision)

	gauge.CurrentRewardRate = rate
	gauge.RewardRate = model.NewBigInt(rate.Shift(18).Truncate(0).BigInt())
	gauge.LastUpdateTime = ev.Timestamp
	gauge.PeriodFinish = ev.Timestamp + EpochSeconds
	gauge.TotalRewardsDistributed = gauge.TotalRewardsDistributed.Add(reward)
	gauge.EstimatedAPR = e.estimateAPR(gauge, rate)
	e.store.Gauges.Put(gauge.ID, gauge)

	bucket := e.gaugeEpoch(gauge.ID, Epoch(ev.Timestamp))
	bucket.Emissions = bucket.Emissions.Add(reward)
	e.store.GaugeEpochs.Put(bucket.ID, bucket)
	return nil
}

// estimateAPR annualizes rate against the staked value in USD. Without a
// reward price it falls back to a token ratio against TotalStaked; a zero
// staked value yields zero.
func (e *Engine) estimateAPR(gauge model.Gauge, rate decimal.Decimal) decimal.Decimal {
	yearly := rate.Mul(yearSecondsDec)
	rewardPrice := e.oracle.KnownPriceUSD(e.store, e.rewardToken)
	if rewardPrice.Sign() <= 0 {
		return fixedpoint.SafeDiv(yearly, gauge.TotalStaked).Mul(hundred)
	}

	stakedUSD := decimal.Zero
	if pool, ok := e.store.Pools.Get(gauge.Pool); ok {
		stakedUSD = pool.TotalValueLockedUSD
	}
	if stakedUSD.Sign() <= 0 {
		e.logger.Debug("gauge has no staked value", zap.String("gauge", gauge.ID))
		return decimal.Zero
	}
	return yearly.Mul(rewardPrice).DivRound(stakedUSD, fixedpoint.PricePrecision).Mul(hundred)
}
