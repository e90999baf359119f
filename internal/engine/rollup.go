package engine

import (
	"github.com/shopspring/decimal"

	"clscope/internal/model"
	"clscope/internal/store"
)

type swapObservation struct {
	amount0   decimal.Decimal
	amount1   decimal.Decimal
	volumeUSD decimal.Decimal
	feesUSD   decimal.Decimal
}

// updateRollups refreshes the hour and day buckets containing timestamp with
// the pool's post-event state. Swaps also add volume and move the OHLC price.
func (e *Engine) updateRollups(pool model.Pool, timestamp uint64, swap *swapObservation) {
	for _, r := range []struct {
		table  *store.Table[model.PoolRollup]
		period uint64
	}{
		{e.store.PoolHourData, HourSeconds},
		{e.store.PoolDayData, DaySeconds},
	} {
		bucket := timestamp / r.period
		id := model.RollupID(pool.ID, bucket)
		rollup, _ := r.table.GetOrInsertWith(id, func() model.PoolRollup {
			return model.NewPoolRollup(id, pool.ID, bucket*r.period)
		})

		rollup.Liquidity = model.NewBigInt(copyBig(pool.Liquidity.Int))
		rollup.SqrtPriceX96 = model.NewBigInt(copyBig(pool.SqrtPriceX96.Int))
		rollup.Tick = pool.Tick
		rollup.Token0Price = pool.Token0Price
		rollup.Token1Price = pool.Token1Price
		rollup.TVLUSD = pool.TotalValueLockedUSD
		rollup.TxCount++

		if swap != nil {
			rollup.VolumeToken0 = rollup.VolumeToken0.Add(swap.amount0)
			rollup.VolumeToken1 = rollup.VolumeToken1.Add(swap.amount1)
			rollup.VolumeUSD = rollup.VolumeUSD.Add(swap.volumeUSD)
			rollup.FeesUSD = rollup.FeesUSD.Add(swap.feesUSD)

			price := pool.Token0Price
			if rollup.SwapCount == 0 {
				rollup.Open, rollup.High, rollup.Low = price, price, price
			} else {
				if price.GreaterThan(rollup.High) {
					rollup.High = price
				}
				if price.LessThan(rollup.Low) {
					rollup.Low = price
				}
			}
			rollup.Close = price
			rollup.SwapCount++
		}
		r.table.Put(id, rollup)
	}
}
