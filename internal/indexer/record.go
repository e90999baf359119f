package indexer

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"clscope/internal/chain"
	"clscope/internal/model"
)

// buildLogRecord flattens a fetched log plus its block time and transaction
// into the raw JSONL record the decode stage reads.
func buildLogRecord(chainID uint64, log types.Log, timestamp uint64, tx chain.TxInfo, ingestedAt time.Time) model.LogRecord {
	return model.LogRecord{
		ChainID:     chainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash.Hex(),
		TxHash:      log.TxHash.Hex(),
		TxIndex:     uint64(log.TxIndex),
		TxFrom:      tx.From.Hex(),
		TxInput:     hexutil.Encode(tx.Input),
		LogIndex:    uint64(log.Index),
		Address:     log.Address.Hex(),
		Topics:      hexTopics(log.Topics),
		Data:        hexutil.Encode(log.Data),
		Removed:     log.Removed,
		Timestamp:   timestamp,
		IngestedAt:  ingestedAt.UTC().Format(time.RFC3339Nano),
	}
}

func hexTopics(topics []common.Hash) []string {
	out := make([]string, len(topics))
	for i, topic := range topics {
		out[i] = topic.Hex()
	}
	return out
}
