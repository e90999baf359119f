package engine

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"clscope/internal/fixedpoint"
	"clscope/internal/model"
	"clscope/internal/pricing"
)

func (e *Engine) handlePoolCreated(ctx context.Context, ev model.TypedEventRecord) error {
	data, err := decodePayload[model.PoolCreatedEventData](ev)
	if err != nil {
		return err
	}

	poolID := model.NormalizeAddress(data.Pool)
	if e.store.Pools.Has(poolID) {
		e.skip(ev, "pool already exists", zap.String("pool", poolID))
		return nil
	}
	token0ID := model.NormalizeAddress(data.Token0)
	token1ID := model.NormalizeAddress(data.Token1)

	for _, id := range []string{token0ID, token1ID} {
		token := e.getOrCreateToken(ctx, id)
		token.PoolCount++
		e.store.Tokens.Put(token.ID, token)
	}

	pool := model.NewPool(poolID, token0ID, token1ID, data.TickSpacing, FeeTierForTickSpacing(data.TickSpacing))
	pool.CreatedAtTimestamp = ev.Timestamp
	pool.CreatedAtBlock = ev.BlockNumber
	e.store.Pools.Put(pool.ID, pool)

	for _, id := range []string{
		model.PoolLookupID(token0ID, token1ID, data.TickSpacing),
		model.PoolLookupID(token1ID, token0ID, data.TickSpacing),
	} {
		e.store.PoolLookups.Put(id, model.PoolLookup{ID: id, Pool: poolID})
	}

	e.updateProtocol(func(p *model.Protocol) {
		p.TotalPools++
	})
	return nil
}

// poolWithTokens loads a pool and both of its tokens.
func (e *Engine) poolWithTokens(address string) (model.Pool, model.Token, model.Token, bool) {
	pool, ok := e.store.Pools.Get(model.NormalizeAddress(address))
	if !ok {
		return model.Pool{}, model.Token{}, model.Token{}, false
	}
	token0, ok0 := e.store.Tokens.Get(pool.Token0)
	token1, ok1 := e.store.Tokens.Get(pool.Token1)
	if !ok0 || !ok1 {
		return model.Pool{}, model.Token{}, model.Token{}, false
	}
	return pool, token0, token1, true
}

// recomputePoolTVL prices the pool's token balances at current token prices.
func recomputePoolTVL(pool *model.Pool, token0, token1 model.Token) {
	pool.TotalValueLockedUSD = pricing.ValueUSD(
		pool.TotalValueLockedToken0, token0.PriceUSD,
		pool.TotalValueLockedToken1, token1.PriceUSD,
	)
}

func (e *Engine) handleSwap(_ context.Context, ev model.TypedEventRecord) error {
	data, err := decodePayload[model.SwapEventData](ev)
	if err != nil {
		return err
	}
	pool, token0, token1, ok := e.poolWithTokens(ev.Address)
	if !ok {
		e.skip(ev, "swap for unknown pool")
		return nil
	}
	if err := checkTick(data.Tick); err != nil {
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
	sqrtPrice, err := parseBigInt(data.SqrtPriceX96)
	if err != nil {
		return err
	}
	liquidity, err := parseBigInt(data.Liquidity)
	if err != nil {
		return err
	}

	amount0 := fixedpoint.ConvertTokenToDecimal(raw0, token0.Decimals)
	amount1 := fixedpoint.ConvertTokenToDecimal(raw1, token1.Decimals)
	oldTVL := pool.TotalValueLockedUSD

	pool.SqrtPriceX96 = model.NewBigInt(sqrtPrice)
	pool.Tick = data.Tick
	pool.Liquidity = model.NewBigInt(liquidity)
	pool.Token0Price, pool.Token1Price = fixedpoint.SqrtPriceToTokenPrices(sqrtPrice, token0.Decimals, token1.Decimals)
	e.store.Pools.Put(pool.ID, pool)

	e.oracle.RefreshBundle(e.store, ev.Timestamp)
	price0 := e.oracle.TokenPriceUSD(e.store, token0.ID, pool)
	price1 := e.oracle.TokenPriceUSD(e.store, token1.ID, pool)
	token0.PriceUSD, token0.DerivedETH = price0, e.oracle.DerivedETH(e.store, price0)
	token1.PriceUSD, token1.DerivedETH = price1, e.oracle.DerivedETH(e.store, price1)

	volumeUSD := pricing.TrackedVolumeUSD(amount0, price0, amount1, price1)
	rate := feeRate(pool.FeeTier)
	feesUSD := volumeUSD.Mul(rate)
	// only the input side pays the fee
	fee0, fee1 := decimal.Zero, decimal.Zero
	if amount0.Sign() > 0 {
		fee0 = amount0.Mul(rate)
	}
	if amount1.Sign() > 0 {
		fee1 = amount1.Mul(rate)
	}

	pool.VolumeToken0 = pool.VolumeToken0.Add(amount0.Abs())
	pool.VolumeToken1 = pool.VolumeToken1.Add(amount1.Abs())
	pool.VolumeUSD = pool.VolumeUSD.Add(volumeUSD)
	pool.FeesToken0 = pool.FeesToken0.Add(fee0)
	pool.FeesToken1 = pool.FeesToken1.Add(fee1)
	pool.FeesUSD = pool.FeesUSD.Add(feesUSD)
	pool.TotalValueLockedToken0 = floorZero(pool.TotalValueLockedToken0.Add(amount0))
	pool.TotalValueLockedToken1 = floorZero(pool.TotalValueLockedToken1.Add(amount1))
	recomputePoolTVL(&pool, token0, token1)
	pool.TxCount++
	e.store.Pools.Put(pool.ID, pool)

	for _, side := range []struct {
		token  *model.Token
		amount decimal.Decimal
	}{{&token0, amount0}, {&token1, amount1}} {
		side.token.TradeVolume = side.token.TradeVolume.Add(side.amount.Abs())
		side.token.TradeVolumeUSD = side.token.TradeVolumeUSD.Add(volumeUSD)
		side.token.TotalLiquidity = floorZero(side.token.TotalLiquidity.Add(side.amount))
		side.token.TxCount++
		e.store.Tokens.Put(side.token.ID, *side.token)
	}

	e.updateProtocol(func(p *model.Protocol) {
		p.TotalVolumeUSD = p.TotalVolumeUSD.Add(volumeUSD)
		p.TotalFeesUSD = p.TotalFeesUSD.Add(feesUSD)
		p.TotalValueLockedUSD = floorZero(p.TotalValueLockedUSD.Add(pool.TotalValueLockedUSD.Sub(oldTVL)))
		p.TxCount++
	})

	tx := e.touchTransaction(ev)
	swapID := ev.EventID()
	e.store.Swaps.Put(swapID, model.Swap{
		ID:           swapID,
		Transaction:  tx.ID,
		Pool:         pool.ID,
		Token0:       token0.ID,
		Token1:       token1.ID,
		Sender:       model.NormalizeAddress(data.Sender),
		Recipient:    model.NormalizeAddress(data.Recipient),
		Origin:       tx.From,
		Amount0:      amount0,
		Amount1:      amount1,
		AmountUSD:    volumeUSD,
		FeeAmount0:   fee0,
		FeeAmount1:   fee1,
		SqrtPriceX96: model.NewBigInt(copyBig(sqrtPrice)),
		Tick:         data.Tick,
		LogIndex:     ev.LogIndex,
		Timestamp:    ev.Timestamp,
	})

	e.updateRollups(pool, ev.Timestamp, &swapObservation{
		amount0:   amount0.Abs(),
		amount1:   amount1.Abs(),
		volumeUSD: volumeUSD,
		feesUSD:   feesUSD,
	})
	return nil
}

type liquidityDelta struct {
	owner     string
	sender    string
	tickLower int32
	tickUpper int32
	amount    *big.Int
	amount0   *big.Int
	amount1   *big.Int
}

func (e *Engine) handleMint(_ context.Context, ev model.TypedEventRecord) error {
	data, err := decodePayload[model.MintEventData](ev)
	if err != nil {
		return err
	}
	delta, err := parseLiquidityDelta(data.Owner, data.Sender, data.TickLower, data.TickUpper, data.Amount, data.Amount0, data.Amount1)
	if err != nil {
		return err
	}
	return e.applyLiquidity(ev, delta, true)
}

func (e *Engine) handleBurn(_ context.Context, ev model.TypedEventRecord) error {
	data, err := decodePayload[model.BurnEventData](ev)
	if err != nil {
		return err
	}
	delta, err := parseLiquidityDelta(data.Owner, "", data.TickLower, data.TickUpper, data.Amount, data.Amount0, data.Amount1)
	if err != nil {
		return err
	}
	return e.applyLiquidity(ev, delta, false)
}

func parseLiquidityDelta(owner, sender string, tickLower, tickUpper int32, amount, amount0, amount1 string) (liquidityDelta, error) {
	if err := checkTick(tickLower); err != nil {
		return liquidityDelta{}, err
	}
	if err := checkTick(tickUpper); err != nil {
		return liquidityDelta{}, err
	}
	liq, err := parseBigInt(amount)
	if err != nil {
		return liquidityDelta{}, err
	}
	a0, err := parseBigInt(amount0)
	if err != nil {
		return liquidityDelta{}, err
	}
	a1, err := parseBigInt(amount1)
	if err != nil {
		return liquidityDelta{}, err
	}
	return liquidityDelta{
		owner:     model.NormalizeAddress(owner),
		sender:    model.NormalizeAddress(sender),
		tickLower: tickLower,
		tickUpper: tickUpper,
		amount:    liq,
		amount0:   a0,
		amount1:   a1,
	}, nil
}

// applyLiquidity moves pool balances for a Mint (add) or Burn (!add). Active
// liquidity only changes when the current tick lies inside the range.
func (e *Engine) applyLiquidity(ev model.TypedEventRecord, d liquidityDelta, add bool) error {
	pool, token0, token1, ok := e.poolWithTokens(ev.Address)
	if !ok {
		e.skip(ev, "liquidity change for unknown pool")
		return nil
	}

	amount0 := fixedpoint.ConvertTokenToDecimal(d.amount0, token0.Decimals)
	amount1 := fixedpoint.ConvertTokenToDecimal(d.amount1, token1.Decimals)
	signed0, signed1 := amount0, amount1
	if !add {
		signed0, signed1 = amount0.Neg(), amount1.Neg()
	}

	oldTVL := pool.TotalValueLockedUSD
	pool.TotalValueLockedToken0 = floorZero(pool.TotalValueLockedToken0.Add(signed0))
	pool.TotalValueLockedToken1 = floorZero(pool.TotalValueLockedToken1.Add(signed1))
	recomputePoolTVL(&pool, token0, token1)

	if d.tickLower <= pool.Tick && pool.Tick < d.tickUpper {
		if add {
			pool.Liquidity = model.NewBigInt(addBig(pool.Liquidity.Int, d.amount))
		} else {
			pool.Liquidity = model.NewBigInt(subBigFloor(pool.Liquidity.Int, d.amount))
		}
	}
	pool.TxCount++

	if add && d.owner != "" {
		lpID := model.LiquidityProviderID(pool.ID, d.owner)
		if _, created := e.store.LiquidityProviders.GetOrInsertWith(lpID, func() model.LiquidityProvider {
			return model.LiquidityProvider{ID: lpID, Pool: pool.ID, Owner: d.owner, CreatedAt: ev.Timestamp}
		}); created {
			pool.LiquidityProviderCount++
		}
	}
	e.store.Pools.Put(pool.ID, pool)

	for _, side := range []struct {
		token  *model.Token
		amount decimal.Decimal
	}{{&token0, signed0}, {&token1, signed1}} {
		side.token.TotalLiquidity = floorZero(side.token.TotalLiquidity.Add(side.amount))
		side.token.TxCount++
		e.store.Tokens.Put(side.token.ID, *side.token)
	}

	e.updateProtocol(func(p *model.Protocol) {
		p.TotalValueLockedUSD = floorZero(p.TotalValueLockedUSD.Add(pool.TotalValueLockedUSD.Sub(oldTVL)))
		p.TxCount++
	})

	tx := e.touchTransaction(ev)
	record := model.LiquidityChange{
		ID:          ev.EventID(),
		Transaction: tx.ID,
		Pool:        pool.ID,
		Owner:       d.owner,
		Sender:      d.sender,
		Origin:      tx.From,
		Amount:      model.NewBigInt(copyBig(d.amount)),
		Amount0:     amount0,
		Amount1:     amount1,
		AmountUSD:   pricing.ValueUSD(amount0, token0.PriceUSD, amount1, token1.PriceUSD),
		TickLower:   d.tickLower,
		TickUpper:   d.tickUpper,
		LogIndex:    ev.LogIndex,
		Timestamp:   ev.Timestamp,
	}
	if add {
		e.store.Mints.Put(record.ID, record)
	} else {
		e.store.Burns.Put(record.ID, record)
	}

	e.updateRollups(pool, ev.Timestamp, nil)
	return nil
}

// handlePoolCollect only tracks collected amounts; balances move on Burn.
func (e *Engine) handlePoolCollect(_ context.Context, ev model.TypedEventRecord) error {
	data, err := decodePayload[model.CollectEventData](ev)
	if err != nil {
		return err
	}
	pool, token0, token1, ok := e.poolWithTokens(ev.Address)
	if !ok {
		e.skip(ev, "collect for unknown pool")
		return nil
	}
	raw0, err := parseBigInt(data.Amount0)
	if err != nil {
		return err
	}
	raw1, err := parseBigInt(data.Amount1)
	if err != nil {
		return err
	}

	pool.CollectedFeesToken0 = pool.CollectedFeesToken0.Add(fixedpoint.ConvertTokenToDecimal(raw0, token0.Decimals))
	pool.CollectedFeesToken1 = pool.CollectedFeesToken1.Add(fixedpoint.ConvertTokenToDecimal(raw1, token1.Decimals))
	pool.TxCount++
	e.store.Pools.Put(pool.ID, pool)
	return nil
}
