package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"clscope/internal/model"
	"clscope/internal/pricing"
	"clscope/internal/store"
)

// ErrMalformedEvent marks a record whose payload cannot be parsed.
var ErrMalformedEvent = errors.New("malformed event")

// ErrUnavailable is returned by readers that cannot answer a contract call.
var ErrUnavailable = errors.New("contract value unavailable")

// ContractReader answers the contract view calls handlers depend on. Any
// error is treated as "value unavailable" and the dependent update is skipped.
type ContractReader interface {
	Position(ctx context.Context, manager string, tokenID *big.Int, blockNumber uint64) (model.PositionInfo, error)
	OwnerOf(ctx context.Context, nft string, tokenID *big.Int, blockNumber uint64) (string, error)
	TokenMeta(ctx context.Context, token string) (model.TokenMeta, error)
	Locked(ctx context.Context, escrow string, tokenID *big.Int, blockNumber uint64) (model.LockedBalance, error)
	BalanceOfNFT(ctx context.Context, escrow string, tokenID *big.Int, blockNumber uint64) (*big.Int, error)
}

// Config controls engine behavior.
type Config struct {
	Pricing pricing.Config
	// RewardToken is the gauge emission token; the base token is used when empty.
	RewardToken string
	// CLGaugeFactories classify gauges as CL regardless of pool presence.
	CLGaugeFactories []string
}

type handlerFunc func(ctx context.Context, ev model.TypedEventRecord) error

// Engine applies typed events to the entity store one at a time.
type Engine struct {
	cfg         Config
	store       *store.Store
	oracle      *pricing.Oracle
	reader      ContractReader
	logger      *zap.Logger
	rewardToken string
	clFactories map[string]struct{}
	handlers    map[string]handlerFunc
}

// New builds an Engine over s. A nil reader makes every contract call unavailable.
func New(cfg Config, s *store.Store, reader ContractReader, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reader == nil {
		reader = unavailableReader{}
	}
	if s == nil {
		s = store.New()
	}

	oracle := pricing.NewOracle(cfg.Pricing, logger)
	e := &Engine{
		cfg:         cfg,
		store:       s,
		oracle:      oracle,
		reader:      reader,
		logger:      logger,
		rewardToken: model.NormalizeAddress(cfg.RewardToken),
		clFactories: make(map[string]struct{}, len(cfg.CLGaugeFactories)),
	}
	if e.rewardToken == "" {
		e.rewardToken = oracle.BaseToken()
	}
	for _, f := range cfg.CLGaugeFactories {
		e.clFactories[model.NormalizeAddress(f)] = struct{}{}
	}

	e.handlers = map[string]handlerFunc{
		model.EventPoolCreated:        e.handlePoolCreated,
		model.EventSwap:               e.handleSwap,
		model.EventMint:               e.handleMint,
		model.EventBurn:               e.handleBurn,
		model.EventCollect:            e.handlePoolCollect,
		model.EventIncreaseLiquidity:  e.handleIncreaseLiquidity,
		model.EventDecreaseLiquidity:  e.handleDecreaseLiquidity,
		model.EventPositionCollect:    e.handlePositionCollect,
		model.EventPositionTransfer:   e.handlePositionTransfer,
		model.EventGaugeCreated:       e.handleGaugeCreated,
		model.EventVoted:              e.handleVoted,
		model.EventAbstained:          e.handleAbstained,
		model.EventGaugeDeposit:       e.handleStake(true),
		model.EventGaugeWithdraw:      e.handleStake(false),
		model.EventCLGaugeDeposit:     e.handleStake(true),
		model.EventCLGaugeWithdraw:    e.handleStake(false),
		model.EventGaugeClaimRewards:  e.handleGaugeClaim,
		model.EventGaugeNotifyReward:  e.handleGaugeNotify,
		model.EventRewardNotify:       e.handleRewardNotify,
		model.EventRewardClaim:        e.handleRewardClaim,
		model.EventEscrowDeposit:      e.handleEscrowDeposit,
		model.EventEscrowWithdraw:     e.handleEscrowWithdraw,
		model.EventEscrowTransfer:     e.handleEscrowTransfer,
		model.EventLockPermanent:      e.handleLockPermanent,
		model.EventMinterMint:         e.handleMinterMint,
		model.EventDistributorClaimed: e.handleDistributorClaimed,
	}
	return e
}

// Store returns the underlying entity store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Apply runs the handler for rec and commits its writes. On error nothing
// written by the event is kept.
func (e *Engine) Apply(ctx context.Context, rec model.TypedEventRecord) ([]model.EntityChange, error) {
	h, ok := e.handlers[rec.EventName]
	if !ok {
		e.logger.Debug("unrouted event", zap.String("event", rec.EventName), zap.String("address", rec.Address))
		return nil, nil
	}

	if err := h(ctx, rec); err != nil {
		e.store.Rollback()
		return nil, fmt.Errorf("%s %s: %w", rec.EventName, rec.EventID(), err)
	}

	changes, err := e.store.Commit(model.Cursor{
		BlockNumber: rec.BlockNumber,
		LogIndex:    rec.LogIndex,
		Timestamp:   rec.Timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", rec.EventID(), err)
	}
	return changes, nil
}

func decodePayload[T any](rec model.TypedEventRecord) (T, error) {
	var out T
	if len(rec.Decoded) == 0 {
		return out, fmt.Errorf("%w: empty payload", ErrMalformedEvent)
	}
	if err := json.Unmarshal(rec.Decoded, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return out, nil
}

func (e *Engine) skip(ev model.TypedEventRecord, reason string, fields ...zap.Field) {
	fields = append(fields,
		zap.String("event", ev.EventName),
		zap.String("address", ev.Address),
		zap.Uint64("block", ev.BlockNumber),
		zap.Uint64("log_index", ev.LogIndex),
	)
	e.logger.Debug(reason, fields...)
}

type unavailableReader struct{}

func (unavailableReader) Position(context.Context, string, *big.Int, uint64) (model.PositionInfo, error) {
	return model.PositionInfo{}, ErrUnavailable
}

func (unavailableReader) OwnerOf(context.Context, string, *big.Int, uint64) (string, error) {
	return "", ErrUnavailable
}

func (unavailableReader) TokenMeta(context.Context, string) (model.TokenMeta, error) {
	return model.TokenMeta{}, ErrUnavailable
}

func (unavailableReader) Locked(context.Context, string, *big.Int, uint64) (model.LockedBalance, error) {
	return model.LockedBalance{}, ErrUnavailable
}

func (unavailableReader) BalanceOfNFT(context.Context, string, *big.Int, uint64) (*big.Int, error) {
	return nil, ErrUnavailable
}
