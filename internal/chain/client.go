package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

const timestampCacheSize = 4096

// Client is the RPC surface used by the fetcher and the contract reader.
type Client struct {
	rpc        *rpc.Client
	eth        *ethclient.Client
	timestamps *lru.Cache[uint64, uint64]
}

// TxInfo carries the transaction fields attached to every log record.
type TxInfo struct {
	From  common.Address
	Input []byte
}

// NewClient dials rpcURL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return &Client{
		rpc:        rpcClient,
		eth:        ethclient.NewClient(rpcClient),
		timestamps: lru.NewCache[uint64, uint64](timestampCacheSize),
	}, nil
}

func (c *Client) Close() {
	if c.rpc != nil {
		c.rpc.Close()
	}
}

func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	return c.eth.ChainID(ctx)
}

func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.eth.BlockNumber(ctx)
}

// BlockTimestamp returns a block's timestamp. Recent lookups are cached
// since consecutive logs usually share a block.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	if ts, ok := c.timestamps.Get(number); ok {
		return ts, nil
	}
	header, err := c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, err
	}
	c.timestamps.Add(number, header.Time)
	return header.Time, nil
}

// FilterLogs runs eth_getLogs over [fromBlock, toBlock]. Topic0 values are
// OR-ed; an empty address list matches every emitter.
func (c *Client) FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}
	return c.eth.FilterLogs(ctx, query)
}

// CallContract implements dex.Caller.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.eth.CallContract(ctx, msg, blockNumber)
}

// TransactionInfo returns the sender and calldata of the transaction that
// emitted a log.
func (c *Client) TransactionInfo(ctx context.Context, txHash, blockHash common.Hash, txIndex uint) (TxInfo, error) {
	tx, _, err := c.eth.TransactionByHash(ctx, txHash)
	if err != nil {
		return TxInfo{}, fmt.Errorf("get transaction: %w", err)
	}
	from, err := c.eth.TransactionSender(ctx, tx, blockHash, txIndex)
	if err != nil {
		return TxInfo{}, fmt.Errorf("get sender: %w", err)
	}
	return TxInfo{From: from, Input: tx.Data()}, nil
}
