package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogRecordTopic0(t *testing.T) {
	assert.Equal(t, "", LogRecord{}.Topic0())
	assert.Equal(t, "0xaaa", LogRecord{Topics: []string{"0xaaa", "0xbbb"}}.Topic0())
}

func TestNewDecodeError(t *testing.T) {
	record := LogRecord{
		ChainID:     1329,
		BlockNumber: 36000000,
		TxHash:      "0xdef456",
		LogIndex:    12,
		Address:     "0x1111111111111111111111111111111111111111",
		Topics:      []string{"0xaaa"},
	}
	got := NewDecodeError(7, record, errors.New("bad data"))
	assert.Equal(t, DecodeError{
		Line:        7,
		ChainID:     1329,
		BlockNumber: 36000000,
		TxHash:      "0xdef456",
		LogIndex:    12,
		Address:     "0x1111111111111111111111111111111111111111",
		Topic0:      "0xaaa",
		Error:       "bad data",
	}, got)
}

func TestLogRecordOmitsEmptyTransactionFields(t *testing.T) {
	b, err := json.Marshal(LogRecord{TxHash: "0x1"})
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &fields))
	assert.NotContains(t, fields, "tx_from")
	assert.NotContains(t, fields, "tx_input")
	assert.Contains(t, fields, "tx_hash")
}
