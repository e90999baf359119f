package engine

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"clscope/internal/fixedpoint"
)

// Epoch and bucket lengths in seconds.
const (
	EpochSeconds    uint64 = 7 * 24 * 60 * 60
	HourSeconds     uint64 = 60 * 60
	DaySeconds      uint64 = 24 * 60 * 60
	SecondsPerYear  int64  = 365 * 24 * 60 * 60
	defaultDecimals uint8  = 18
)

// Epoch returns the weekly epoch number of timestamp.
func Epoch(timestamp uint64) uint64 {
	return timestamp / EpochSeconds
}

// EpochStart returns the first second of epoch.
func EpochStart(epoch uint64) uint64 {
	return epoch * EpochSeconds
}

// tick spacing -> fee in hundredths of a bip
var feeTiers = map[int32]uint32{
	1:   100,
	10:  500,
	50:  2500,
	60:  3000,
	100: 5000,
	200: 10000,
}

const defaultFeeTier uint32 = 3000

// FeeTierForTickSpacing maps a tick spacing to its fee tier, 3000 when unknown.
func FeeTierForTickSpacing(tickSpacing int32) uint32 {
	if fee, ok := feeTiers[tickSpacing]; ok {
		return fee
	}
	return defaultFeeTier
}

// feeRate returns tier / 1e6 exactly.
func feeRate(tier uint32) decimal.Decimal {
	return decimal.New(int64(tier), -6)
}

func parseBigInt(value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return new(big.Int), nil
	}
	out, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("%w: invalid integer %q", ErrMalformedEvent, value)
	}
	return out, nil
}

func checkTick(tick int32) error {
	if tick < fixedpoint.MinTick || tick > fixedpoint.MaxTick {
		return fmt.Errorf("tick %d: %w", tick, fixedpoint.ErrTickOutOfRange)
	}
	return nil
}

// addBig returns a+b as a fresh value; stored big.Ints are never mutated.
func addBig(a, b *big.Int) *big.Int {
	out := new(big.Int)
	if a != nil {
		out.Set(a)
	}
	if b != nil {
		out.Add(out, b)
	}
	return out
}

// subBigFloor returns max(a-b, 0).
func subBigFloor(a, b *big.Int) *big.Int {
	out := new(big.Int)
	if a != nil {
		out.Set(a)
	}
	if b != nil {
		out.Sub(out, b)
	}
	if out.Sign() < 0 {
		out.SetInt64(0)
	}
	return out
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.Sign() < 0 {
		return decimal.Zero
	}
	return d
}

func decUint(v uint64) uint64 {
	if v == 0 {
		return 0
	}
	return v - 1
}
