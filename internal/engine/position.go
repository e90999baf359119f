package engine

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"clscope/internal/fixedpoint"
	"clscope/internal/model"
	"clscope/internal/pricing"
)

func (e *Engine) handleIncreaseLiquidity(ctx context.Context, ev model.TypedEventRecord) error {
	data, err := decodePayload[model.LiquidityEventData](ev)
	if err != nil {
		return err
	}
	tokenID, err := parseBigInt(data.TokenID)
	if err != nil {
		return err
	}
	liquidity, err := parseBigInt(data.Liquidity)
	if err != nil {
		return err
	}
	raw0, err := parseBigInt(data.Amount0)
	if err != nil {
		return err
	}
	raw1, err := parseBigInt(data.Amount1)
	if err != nil {
		return err
	}

	pos, ok := e.store.Positions.Get(tokenID.String())
	if !ok {
		pos, ok, err = e.newPosition(ctx, ev, tokenID)
		if err != nil || !ok {
			return err
		}
	}

	pool, token0, token1, ok := e.poolWithTokens(pos.Pool)
	if !ok {
		e.skip(ev, "position pool missing", zap.String("position", pos.ID))
		return nil
	}

	pos.Liquidity = model.NewBigInt(addBig(pos.Liquidity.Int, liquidity))
	pos.DepositedToken0 = pos.DepositedToken0.Add(fixedpoint.ConvertTokenToDecimal(raw0, token0.Decimals))
	pos.DepositedToken1 = pos.DepositedToken1.Add(fixedpoint.ConvertTokenToDecimal(raw1, token1.Decimals))
	return e.finishPositionUpdate(ctx, ev, tokenID, pos, pool, token0, token1, true)
}

func (e *Engine) handleDecreaseLiquidity(ctx context.Context, ev model.TypedEventRecord) error {
	data, err := decodePayload[model.LiquidityEventData](ev)
	if err != nil {
		return err
	}
	tokenID, err := parseBigInt(data.TokenID)
	if err != nil {
		return err
	}
	liquidity, err := parseBigInt(data.Liquidity)
	if err != nil {
		return err
	}
	raw0, err := parseBigInt(data.Amount0)
	if err != nil {
		return err
	}
	raw1, err := parseBigInt(data.Amount1)
	if err != nil {
		return err
	}

	pos, ok := e.store.Positions.Get(tokenID.String())
	if !ok {
		e.skip(ev, "decrease for unknown position", zap.String("position", tokenID.String()))
		return nil
	}
	pool, token0, token1, ok := e.poolWithTokens(pos.Pool)
	if !ok {
		e.skip(ev, "position pool missing", zap.String("position", pos.ID))
		return nil
	}

	pos.Liquidity = model.NewBigInt(subBigFloor(pos.Liquidity.Int, liquidity))
	pos.WithdrawnToken0 = pos.WithdrawnToken0.Add(fixedpoint.ConvertTokenToDecimal(raw0, token0.Decimals))
	pos.WithdrawnToken1 = pos.WithdrawnToken1.Add(fixedpoint.ConvertTokenToDecimal(raw1, token1.Decimals))
	return e.finishPositionUpdate(ctx, ev, tokenID, pos, pool, token0, token1, true)
}

func (e *Engine) handlePositionCollect(ctx context.Context, ev model.TypedEventRecord) error {
	data, err := decodePayload[model.PositionCollectEventData](ev)
	if err != nil {
		return err
	}
	tokenID, err := parseBigInt(data.TokenID)
	if err != nil {
		return err
	}
	raw0, err := parseBigInt(data.Amount0)
	if err != nil {
		return err
	}
	raw1, err := parseBigInt(data.Amount1)
	if err != nil {
		return err
	}

	pos, ok := e.store.Positions.Get(tokenID.String())
	if !ok {
		e.skip(ev, "collect for unknown position", zap.String("position", tokenID.String()))
		return nil
	}
	pool, token0, token1, ok := e.poolWithTokens(pos.Pool)
	if !ok {
		e.skip(ev, "position pool missing", zap.String("position", pos.ID))
		return nil
	}

	amount0 := fixedpoint.ConvertTokenToDecimal(raw0, token0.Decimals)
	amount1 := fixedpoint.ConvertTokenToDecimal(raw1, token1.Decimals)
	amountUSD := pricing.ValueUSD(amount0, token0.PriceUSD, amount1, token1.PriceUSD)
	pos.CollectedToken0 = pos.CollectedToken0.Add(amount0)
	pos.CollectedToken1 = pos.CollectedToken1.Add(amount1)

	tx := e.touchTransaction(ev)
	collectID := ev.EventID()
	e.store.Collects.Put(collectID, model.Collect{
		ID:          collectID,
		Transaction: tx.ID,
		Position:    pos.ID,
		Pool:        pos.Pool,
		Owner:       pos.Owner,
		Recipient:   model.NormalizeAddress(data.Recipient),
		Amount0:     amount0,
		Amount1:     amount1,
		AmountUSD:   amountUSD,
		LogIndex:    ev.LogIndex,
		Timestamp:   ev.Timestamp,
	})

	fees, _ := e.store.PositionFees.GetOrInsertWith(pos.ID, func() model.PositionFees {
		return model.PositionFees{ID: pos.ID, Position: pos.ID}
	})
	fees.CollectedToken0 = fees.CollectedToken0.Add(amount0)
	fees.CollectedToken1 = fees.CollectedToken1.Add(amount1)
	fees.CollectedUSD = fees.CollectedUSD.Add(amountUSD)
	fees.CollectCount++
	fees.LastCollectedAt = ev.Timestamp
	e.store.PositionFees.Put(fees.ID, fees)

	return e.finishPositionUpdate(ctx, ev, tokenID, pos, pool, token0, token1, false)
}

func (e *Engine) handlePositionTransfer(_ context.Context, ev model.TypedEventRecord) error {
	data, err := decodePayload[model.TransferEventData](ev)
	if err != nil {
		return err
	}
	tokenID, err := parseBigInt(data.TokenID)
	if err != nil {
		return err
	}
	from := model.NormalizeAddress(data.From)
	to := model.NormalizeAddress(data.To)
	if from == model.ZeroAddress || to == model.ZeroAddress {
		// mints are picked up by IncreaseLiquidity, burns keep the last owner
		return nil
	}

	pos, ok := e.store.Positions.Get(tokenID.String())
	if !ok {
		e.skip(ev, "transfer of unknown position", zap.String("position", tokenID.String()))
		return nil
	}
	if pos.Owner == to {
		return nil
	}

	if pos.Owner != "" {
		prev := e.touchUser(pos.Owner, ev.Timestamp)
		prev.TotalPositions = decUint(prev.TotalPositions)
		e.store.Users.Put(prev.ID, prev)
	}
	next := e.touchUser(to, ev.Timestamp)
	next.TotalPositions++
	e.store.Users.Put(next.ID, next)

	pos.Owner = to
	pos.UpdatedAt = ev.Timestamp
	e.store.Positions.Put(pos.ID, pos)
	return nil
}

// newPosition resolves a position from the manager at first sight. It
// returns false when its pool cannot be identified.
func (e *Engine) newPosition(ctx context.Context, ev model.TypedEventRecord, tokenID *big.Int) (model.Position, bool, error) {
	info, err := e.reader.Position(ctx, ev.Address, tokenID, ev.BlockNumber)
	if err != nil {
		e.skip(ev, "position unavailable", zap.String("position", tokenID.String()), zap.Error(err))
		return model.Position{}, false, nil
	}
	lookup, ok := e.store.PoolLookups.Get(model.PoolLookupID(info.Token0, info.Token1, info.TickSpacing))
	if !ok {
		e.skip(ev, "position pool not indexed", zap.String("position", tokenID.String()))
		return model.Position{}, false, nil
	}
	if err := checkTick(info.TickLower); err != nil {
		return model.Position{}, false, err
	}
	if err := checkTick(info.TickUpper); err != nil {
		return model.Position{}, false, err
	}
	pool, ok := e.store.Pools.Get(lookup.Pool)
	if !ok {
		return model.Position{}, false, nil
	}

	pos := model.NewPosition(tokenID.String())
	pos.Pool = pool.ID
	pos.Token0 = pool.Token0
	pos.Token1 = pool.Token1
	pos.TickLower = info.TickLower
	pos.TickUpper = info.TickUpper
	pos.Transaction = normalizeHash(ev.TxHash)
	pos.CreatedAt = ev.Timestamp

	owner, err := e.reader.OwnerOf(ctx, ev.Address, tokenID, ev.BlockNumber)
	if err != nil {
		e.skip(ev, "position owner unavailable", zap.String("position", pos.ID), zap.Error(err))
	} else {
		pos.Owner = model.NormalizeAddress(owner)
		user := e.touchUser(pos.Owner, ev.Timestamp)
		user.TotalPositions++
		e.store.Users.Put(user.ID, user)
	}
	return pos, true, nil
}

// finishPositionUpdate recomputes the position's token amounts from its
// liquidity at the pool's current price, refreshes fee checkpoints and
// stores the position with an optional snapshot.
func (e *Engine) finishPositionUpdate(
	ctx context.Context,
	ev model.TypedEventRecord,
	tokenID *big.Int,
	pos model.Position,
	pool model.Pool,
	token0, token1 model.Token,
	snapshot bool,
) error {
	lower, err := fixedpoint.SqrtRatioAtTick(pos.TickLower)
	if err != nil {
		return err
	}
	upper, err := fixedpoint.SqrtRatioAtTick(pos.TickUpper)
	if err != nil {
		return err
	}
	raw0, raw1 := fixedpoint.AmountsForLiquidity(pool.SqrtPriceX96.Big(), lower, upper, pos.Liquidity.Big())
	pos.Amount0 = fixedpoint.ConvertTokenToDecimal(raw0, token0.Decimals)
	pos.Amount1 = fixedpoint.ConvertTokenToDecimal(raw1, token1.Decimals)
	pos.AmountUSD = pricing.ValueUSD(pos.Amount0, token0.PriceUSD, pos.Amount1, token1.PriceUSD)

	info, err := e.reader.Position(ctx, ev.Address, tokenID, ev.BlockNumber)
	if err != nil {
		e.skip(ev, "fee checkpoints unavailable", zap.String("position", pos.ID), zap.Error(err))
	} else {
		pos.FeeGrowthInside0LastX128 = model.NewBigInt(copyBig(info.FeeGrowthInside0LastX128))
		pos.FeeGrowthInside1LastX128 = model.NewBigInt(copyBig(info.FeeGrowthInside1LastX128))
		pos.UncollectedFees0 = fixedpoint.ConvertTokenToDecimal(info.TokensOwed0, token0.Decimals)
		pos.UncollectedFees1 = fixedpoint.ConvertTokenToDecimal(info.TokensOwed1, token1.Decimals)
	}
	pos.UpdatedAt = ev.Timestamp
	e.store.Positions.Put(pos.ID, pos)

	if snapshot {
		id := model.PositionSnapshotID(pos.ID, ev.Timestamp)
		e.store.PositionSnapshots.Put(id, model.PositionSnapshot{
			ID:                       id,
			Position:                 pos.ID,
			Owner:                    pos.Owner,
			Pool:                     pos.Pool,
			Liquidity:                model.NewBigInt(copyBig(pos.Liquidity.Int)),
			DepositedToken0:          pos.DepositedToken0,
			DepositedToken1:          pos.DepositedToken1,
			WithdrawnToken0:          pos.WithdrawnToken0,
			WithdrawnToken1:          pos.WithdrawnToken1,
			CollectedToken0:          pos.CollectedToken0,
			CollectedToken1:          pos.CollectedToken1,
			Amount0:                  pos.Amount0,
			Amount1:                  pos.Amount1,
			AmountUSD:                pos.AmountUSD,
			FeeGrowthInside0LastX128: model.NewBigInt(copyBig(pos.FeeGrowthInside0LastX128.Int)),
			FeeGrowthInside1LastX128: model.NewBigInt(copyBig(pos.FeeGrowthInside1LastX128.Int)),
			BlockNumber:              ev.BlockNumber,
			Timestamp:                ev.Timestamp,
		})
	}
	return nil
}

