package model

import "encoding/json"

// EntityChange is a full snapshot of one entity written by one event.
type EntityChange struct {
	Entity      string          `json:"entity"`
	ID          string          `json:"id"`
	BlockNumber uint64          `json:"block_number"`
	LogIndex    uint64          `json:"log_index"`
	Timestamp   uint64          `json:"timestamp"`
	Data        json.RawMessage `json:"data"`
}

// Key returns entity:id, used by key-value sinks.
func (c EntityChange) Key() string {
	return c.Entity + ":" + c.ID
}
