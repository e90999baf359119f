package model

import (
	"fmt"
	"math/big"
	"strconv"
)

// BigInt is an arbitrary-precision integer that encodes to JSON as a
// decimal string, so consumers parsing numbers as float64 keep every digit.
type BigInt struct {
	*big.Int
}

// NewBigInt wraps v; nil becomes zero.
func NewBigInt(v *big.Int) BigInt {
	if v == nil {
		v = new(big.Int)
	}
	return BigInt{Int: v}
}

// Big returns the wrapped value, or zero when unset.
func (b BigInt) Big() *big.Int {
	if b.Int == nil {
		return new(big.Int)
	}
	return b.Int
}

func (b BigInt) String() string {
	return b.Big().String()
}

func (b BigInt) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(b.Big().String())), nil
}

// UnmarshalJSON accepts quoted decimal strings and bare JSON numbers.
func (b *BigInt) UnmarshalJSON(data []byte) error {
	text := string(data)
	if text == "null" {
		b.Int = nil
		return nil
	}
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = unquoted
	}
	v, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return fmt.Errorf("invalid integer %q", text)
	}
	b.Int = v
	return nil
}
