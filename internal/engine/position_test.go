package engine

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clscope/internal/model"
)

func bigUnits(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), one)
}

func setupPosition(t *testing.T, h *harness) {
	t.Helper()
	h.createPool(poolAddr, stableToken, baseToken)
	h.swapAtParity(poolAddr, 1500, "0", "0")

	h.reader.positions["1"] = model.PositionInfo{
		Token0:                   stableToken,
		Token1:                   baseToken,
		TickSpacing:              60,
		TickLower:                -60,
		TickUpper:                60,
		Liquidity:                bigUnits(10),
		FeeGrowthInside0LastX128: big.NewInt(11),
		FeeGrowthInside1LastX128: big.NewInt(22),
		TokensOwed0:              bigUnits(2),
		TokensOwed1:              new(big.Int),
	}
	h.reader.owners["1"] = alice
}

func TestPositionLifecycle(t *testing.T) {
	h := newHarness(t, Config{})
	setupPosition(t, h)

	h.apply(model.EventIncreaseLiquidity, managerAddr, 2000, model.LiquidityEventData{
		TokenID: "1", Liquidity: units(10), Amount0: units(5), Amount1: units(5),
	})

	pos, ok := h.state().Positions.Get("1")
	require.True(t, ok)
	assert.Equal(t, alice, pos.Owner)
	assert.Equal(t, poolAddr, pos.Pool)
	assert.Equal(t, units(10), pos.Liquidity.String())
	assertDecEqual(t, "5", pos.DepositedToken0)
	assertDecEqual(t, "2", pos.UncollectedFees0)
	assert.Equal(t, "11", pos.FeeGrowthInside0LastX128.String())
	assert.Equal(t, 1, pos.Amount0.Sign())
	assert.Equal(t, 1, pos.Amount1.Sign())
	assert.True(t, h.state().PositionSnapshots.Has(model.PositionSnapshotID("1", 2000)))

	user, ok := h.state().Users.Get(alice)
	require.True(t, ok)
	assert.Equal(t, uint64(1), user.TotalPositions)

	h.apply(model.EventPositionTransfer, managerAddr, 2100, model.TransferEventData{From: alice, To: bob, TokenID: "1"})
	pos, _ = h.state().Positions.Get("1")
	assert.Equal(t, bob, pos.Owner)
	aliceUser, _ := h.state().Users.Get(alice)
	bobUser, _ := h.state().Users.Get(bob)
	assert.Equal(t, uint64(0), aliceUser.TotalPositions)
	assert.Equal(t, uint64(1), bobUser.TotalPositions)

	h.apply(model.EventDecreaseLiquidity, managerAddr, 2200, model.LiquidityEventData{
		TokenID: "1", Liquidity: units(10), Amount0: units(5), Amount1: units(5),
	})
	pos, ok = h.state().Positions.Get("1")
	require.True(t, ok, "positions are never removed")
	assert.Equal(t, 0, pos.Liquidity.Sign())
	assert.True(t, pos.Amount0.IsZero())
	assert.True(t, pos.Amount1.IsZero())
	assertDecEqual(t, "5", pos.WithdrawnToken0)

	h.apply(model.EventPositionCollect, managerAddr, 2300, model.PositionCollectEventData{
		TokenID: "1", Recipient: bob, Amount0: units(1), Amount1: units(2),
	})
	fees, ok := h.state().PositionFees.Get("1")
	require.True(t, ok)
	assert.Equal(t, uint64(1), fees.CollectCount)
	assertDecEqual(t, "1", fees.CollectedToken0)
	assertDecEqual(t, "3", fees.CollectedUSD)
	assert.Equal(t, 1, h.state().Collects.Len())

	pos, _ = h.state().Positions.Get("1")
	assertDecEqual(t, "2", pos.CollectedToken1)
}

func TestPositionMintTransferIsIgnored(t *testing.T) {
	h := newHarness(t, Config{})
	setupPosition(t, h)

	changes := h.apply(model.EventPositionTransfer, managerAddr, 1900, model.TransferEventData{
		From: model.ZeroAddress, To: alice, TokenID: "1",
	})
	assert.Empty(t, changes)
}

func TestPositionUnavailableIsSkipped(t *testing.T) {
	h := newHarness(t, Config{})
	setupPosition(t, h)

	changes := h.apply(model.EventIncreaseLiquidity, managerAddr, 2000, model.LiquidityEventData{
		TokenID: "2", Liquidity: units(1), Amount0: units(1), Amount1: units(1),
	})
	assert.Empty(t, changes)
	assert.False(t, h.state().Positions.Has("2"))
}

func TestPositionOwnerUnavailable(t *testing.T) {
	h := newHarness(t, Config{})
	setupPosition(t, h)
	delete(h.reader.owners, "1")

	h.apply(model.EventIncreaseLiquidity, managerAddr, 2000, model.LiquidityEventData{
		TokenID: "1", Liquidity: units(1), Amount0: units(1), Amount1: units(1),
	})
	pos, ok := h.state().Positions.Get("1")
	require.True(t, ok)
	assert.Equal(t, "", pos.Owner)
	assert.Equal(t, 0, h.state().Users.Len())
}
