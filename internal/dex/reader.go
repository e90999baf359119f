package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"clscope/internal/model"
)

// Caller performs read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ChainReader answers contract-state questions at a block height with
// eth_call. Every error means the value is unavailable.
type ChainReader struct {
	caller Caller
	tokens *TokenMetaCache
	logger *zap.Logger
}

// NewChainReader builds a ChainReader.
func NewChainReader(caller Caller, tokens *TokenMetaCache, logger *zap.Logger) *ChainReader {
	if tokens == nil {
		tokens = NewTokenMetaCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainReader{caller: caller, tokens: tokens, logger: logger}
}

// Position reads positions(tokenId) from a position manager.
func (r *ChainReader) Position(ctx context.Context, manager string, tokenID *big.Int, block uint64) (model.PositionInfo, error) {
	values, err := r.call(ctx, ContractPositionManager, manager, "positions", block, tokenID)
	if err != nil {
		return model.PositionInfo{}, err
	}
	if len(values) != 12 {
		return model.PositionInfo{}, fmt.Errorf("unexpected positions values: %d", len(values))
	}

	token0, err := asAddress(values[2])
	if err != nil {
		return model.PositionInfo{}, fmt.Errorf("token0: %w", err)
	}
	token1, err := asAddress(values[3])
	if err != nil {
		return model.PositionInfo{}, fmt.Errorf("token1: %w", err)
	}
	ticks := make([]int32, 3)
	for i := range ticks {
		n, err := asBigInt(values[4+i])
		if err != nil {
			return model.PositionInfo{}, err
		}
		if ticks[i], err = int24FromBig(n); err != nil {
			return model.PositionInfo{}, err
		}
	}
	ints := make([]*big.Int, 5)
	for i := range ints {
		if ints[i], err = asBigInt(values[7+i]); err != nil {
			return model.PositionInfo{}, err
		}
	}

	return model.PositionInfo{
		Token0:                   token0.Hex(),
		Token1:                   token1.Hex(),
		TickSpacing:              ticks[0],
		TickLower:                ticks[1],
		TickUpper:                ticks[2],
		Liquidity:                ints[0],
		FeeGrowthInside0LastX128: ints[1],
		FeeGrowthInside1LastX128: ints[2],
		TokensOwed0:              ints[3],
		TokensOwed1:              ints[4],
	}, nil
}

// OwnerOf reads ownerOf(tokenId) from a position manager or voting escrow.
func (r *ChainReader) OwnerOf(ctx context.Context, nft string, tokenID *big.Int, block uint64) (string, error) {
	values, err := r.call(ctx, ContractPositionManager, nft, "ownerOf", block, tokenID)
	if err != nil {
		return "", err
	}
	owner, err := asAddress(values[0])
	if err != nil {
		return "", fmt.Errorf("owner: %w", err)
	}
	return owner.Hex(), nil
}

// TokenMeta reads ERC20 metadata, caching successful reads.
func (r *ChainReader) TokenMeta(ctx context.Context, token string) (model.TokenMeta, error) {
	if !common.IsHexAddress(token) {
		return model.TokenMeta{}, fmt.Errorf("invalid token address: %s", token)
	}
	if meta, ok := r.tokens.Get(token); ok {
		return meta, nil
	}
	meta, err := r.fetchTokenMeta(ctx, token)
	if err != nil {
		return model.TokenMeta{}, err
	}
	r.tokens.Set(token, meta)
	return meta, nil
}

// Locked reads locked(tokenId) from a voting escrow.
func (r *ChainReader) Locked(ctx context.Context, escrow string, tokenID *big.Int, block uint64) (model.LockedBalance, error) {
	values, err := r.call(ctx, ContractVotingEscrow, escrow, "locked", block, tokenID)
	if err != nil {
		return model.LockedBalance{}, err
	}
	converted, ok := abi.ConvertType(values[0], new(lockedBalance)).(*lockedBalance)
	if !ok || converted.Amount == nil || converted.End == nil {
		return model.LockedBalance{}, fmt.Errorf("unexpected locked value %T", values[0])
	}
	if !converted.End.IsUint64() {
		return model.LockedBalance{}, fmt.Errorf("lock end overflow: %s", converted.End)
	}
	amount := new(big.Int).Set(converted.Amount)
	if amount.Sign() < 0 {
		amount.SetInt64(0)
	}
	return model.LockedBalance{
		Amount:      amount,
		End:         converted.End.Uint64(),
		IsPermanent: converted.IsPermanent,
	}, nil
}

type lockedBalance struct {
	Amount      *big.Int
	End         *big.Int
	IsPermanent bool
}

// BalanceOfNFT reads the current voting power of a veNFT.
func (r *ChainReader) BalanceOfNFT(ctx context.Context, escrow string, tokenID *big.Int, block uint64) (*big.Int, error) {
	values, err := r.call(ctx, ContractVotingEscrow, escrow, "balanceOfNFT", block, tokenID)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

func (r *ChainReader) call(ctx context.Context, kind, contract, method string, block uint64, args ...interface{}) ([]interface{}, error) {
	if r.caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if !common.IsHexAddress(contract) {
		return nil, fmt.Errorf("invalid contract address: %s", contract)
	}
	parsed, err := ContractABI(kind)
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	var blockPtr *big.Int
	if block > 0 {
		blockPtr = new(big.Int).SetUint64(block)
	}
	to := common.HexToAddress(contract)
	resp, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, blockPtr)
	if err != nil {
		r.logger.Debug("contract call failed", zap.String("contract", contract), zap.String("method", method), zap.Error(err))
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return values, nil
}
