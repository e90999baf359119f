package engine

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"clscope/internal/fixedpoint"
	"clscope/internal/model"
	"clscope/internal/pricing"
	"clscope/internal/store"
)

const (
	baseToken   = "0x00000000000000000000000000000000000000b1"
	stableToken = "0x00000000000000000000000000000000000000c1"
	otherToken  = "0x00000000000000000000000000000000000000d1"
	poolAddr    = "0x0000000000000000000000000000000000000a01"
	pool2Addr   = "0x0000000000000000000000000000000000000a02"
	factoryAddr = "0x0000000000000000000000000000000000000f01"
	managerAddr = "0x0000000000000000000000000000000000000e01"
	voterAddr   = "0x0000000000000000000000000000000000000e02"
	escrowAddr  = "0x0000000000000000000000000000000000000e03"
	gaugeAddr   = "0x0000000000000000000000000000000000000901"
	v2GaugeAddr = "0x0000000000000000000000000000000000000902"
	feeReward   = "0x0000000000000000000000000000000000000801"
	bribeReward = "0x0000000000000000000000000000000000000802"
	alice       = "0x00000000000000000000000000000000000a11ce"
	bob         = "0x0000000000000000000000000000000000000b0b"
)

// 1e18
var one = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func units(n int64) string {
	return new(big.Int).Mul(big.NewInt(n), one).String()
}

type fakeReader struct {
	positions map[string]model.PositionInfo
	owners    map[string]string
	tokens    map[string]model.TokenMeta
	locked    map[string]model.LockedBalance
	power     map[string]*big.Int
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		positions: make(map[string]model.PositionInfo),
		owners:    make(map[string]string),
		tokens:    make(map[string]model.TokenMeta),
		locked:    make(map[string]model.LockedBalance),
		power:     make(map[string]*big.Int),
	}
}

func (f *fakeReader) Position(_ context.Context, _ string, tokenID *big.Int, _ uint64) (model.PositionInfo, error) {
	info, ok := f.positions[tokenID.String()]
	if !ok {
		return model.PositionInfo{}, ErrUnavailable
	}
	return info, nil
}

func (f *fakeReader) OwnerOf(_ context.Context, _ string, tokenID *big.Int, _ uint64) (string, error) {
	owner, ok := f.owners[tokenID.String()]
	if !ok {
		return "", ErrUnavailable
	}
	return owner, nil
}

func (f *fakeReader) TokenMeta(_ context.Context, token string) (model.TokenMeta, error) {
	meta, ok := f.tokens[token]
	if !ok {
		return model.TokenMeta{}, ErrUnavailable
	}
	return meta, nil
}

func (f *fakeReader) Locked(_ context.Context, _ string, tokenID *big.Int, _ uint64) (model.LockedBalance, error) {
	l, ok := f.locked[tokenID.String()]
	if !ok {
		return model.LockedBalance{}, ErrUnavailable
	}
	return l, nil
}

func (f *fakeReader) BalanceOfNFT(_ context.Context, _ string, tokenID *big.Int, _ uint64) (*big.Int, error) {
	p, ok := f.power[tokenID.String()]
	if !ok {
		return nil, ErrUnavailable
	}
	return p, nil
}

type harness struct {
	t      *testing.T
	eng    *Engine
	reader *fakeReader
	block  uint64
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	if cfg.Pricing.BaseToken == "" {
		cfg.Pricing = pricing.Config{BaseToken: baseToken, Stablecoins: []string{stableToken}}
	}
	reader := newFakeReader()
	for _, tok := range []struct{ addr, sym string }{
		{baseToken, "WSEI"}, {stableToken, "USDC"}, {otherToken, "OTH"},
	} {
		reader.tokens[tok.addr] = model.TokenMeta{Address: tok.addr, Symbol: tok.sym, Name: tok.sym, Decimals: 18, TotalSupply: "1000"}
	}
	return &harness{t: t, eng: New(cfg, store.New(), reader, nil), reader: reader, block: 100}
}

func (h *harness) state() *store.Store {
	return h.eng.Store()
}

func (h *harness) record(name, address string, ts uint64, payload any) model.TypedEventRecord {
	h.t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(h.t, err)
	h.block++
	return model.TypedEventRecord{
		ChainID:     1329,
		BlockNumber: h.block,
		TxHash:      "0xTX" + new(big.Int).SetUint64(h.block).Text(16),
		TxFrom:      alice,
		LogIndex:    0,
		Address:     address,
		EventName:   name,
		Timestamp:   ts,
		Decoded:     raw,
	}
}

func (h *harness) apply(name, address string, ts uint64, payload any) []model.EntityChange {
	h.t.Helper()
	changes, err := h.eng.Apply(context.Background(), h.record(name, address, ts, payload))
	require.NoError(h.t, err)
	return changes
}

func (h *harness) applyErr(name, address string, ts uint64, payload any) error {
	h.t.Helper()
	_, err := h.eng.Apply(context.Background(), h.record(name, address, ts, payload))
	return err
}

// createPool registers token0/token1 at tick spacing 60 under address.
func (h *harness) createPool(address, token0, token1 string) {
	h.apply(model.EventPoolCreated, factoryAddr, 1000, model.PoolCreatedEventData{
		Token0: token0, Token1: token1, TickSpacing: 60, Pool: address,
	})
}

// swapAtParity swaps at sqrtPrice = Q96 (price 1) with tick 0.
func (h *harness) swapAtParity(address string, ts uint64, amount0, amount1 string) {
	h.apply(model.EventSwap, address, ts, model.SwapEventData{
		Sender:       alice,
		Recipient:    alice,
		Amount0:      amount0,
		Amount1:      amount1,
		SqrtPriceX96: fixedpoint.Q96.String(),
		Liquidity:    units(1000),
		Tick:         0,
	})
}

func (h *harness) mint(address string, ts uint64, amount, amount0, amount1 string) {
	h.apply(model.EventMint, address, ts, model.MintEventData{
		Sender: managerAddr, Owner: managerAddr, TickLower: -60, TickUpper: 60,
		Amount: amount, Amount0: amount0, Amount1: amount1,
	})
}

func (h *harness) pool(address string) model.Pool {
	h.t.Helper()
	p, ok := h.state().Pools.Get(address)
	require.True(h.t, ok, "pool %s", address)
	return p
}
