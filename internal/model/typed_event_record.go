package model

import "encoding/json"

// TypedEventRecord is the JSON representation consumed by the engine.
type TypedEventRecord struct {
	ChainID     uint64          `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	BlockHash   string          `json:"block_hash"`
	TxHash      string          `json:"tx_hash"`
	TxFrom      string          `json:"tx_from,omitempty"`
	LogIndex    uint64          `json:"log_index"`
	Address     string          `json:"address"`
	Contract    string          `json:"contract"`
	EventName   string          `json:"event_name"`
	Timestamp   uint64          `json:"timestamp"`
	Decoded     json.RawMessage `json:"decoded"`
	Raw         *RawLogRef      `json:"raw,omitempty"`
}

// EventID returns the txHash-logIndex key shared by immutable event records.
func (r TypedEventRecord) EventID() string {
	return EventID(r.TxHash, r.LogIndex)
}

// Cursor marks the last applied event position.
type Cursor struct {
	BlockNumber uint64 `json:"block_number"`
	LogIndex    uint64 `json:"log_index"`
	Timestamp   uint64 `json:"timestamp"`
}

// Covers reports whether the event at (block, logIndex) was already applied.
func (c Cursor) Covers(r TypedEventRecord) bool {
	if c.BlockNumber == 0 && c.LogIndex == 0 && c.Timestamp == 0 {
		return false
	}
	if r.BlockNumber != c.BlockNumber {
		return r.BlockNumber < c.BlockNumber
	}
	return r.LogIndex <= c.LogIndex
}
