package dex

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"clscope/internal/model"
)

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	// Contracts maps contract addresses to contract kinds. It is consulted
	// when several contract kinds share a topic0, as ERC721 Transfer does.
	Contracts map[string]string
	// Topic0Map maps extra topic0 hashes to event names.
	Topic0Map map[string]string
}

type eventDef struct {
	contract string
	event    string
	name     string
	build    func(r *argReader, log model.LogRecord) interface{}
}

var eventDefs = []eventDef{
	{ContractFactory, "PoolCreated", model.EventPoolCreated, buildPoolCreated},
	{ContractPool, "Swap", model.EventSwap, buildSwap},
	{ContractPool, "Mint", model.EventMint, buildMint},
	{ContractPool, "Burn", model.EventBurn, buildBurn},
	{ContractPool, "Collect", model.EventCollect, buildPoolCollect},
	{ContractPositionManager, "IncreaseLiquidity", model.EventIncreaseLiquidity, buildLiquidity},
	{ContractPositionManager, "DecreaseLiquidity", model.EventDecreaseLiquidity, buildLiquidity},
	{ContractPositionManager, "Collect", model.EventPositionCollect, buildPositionCollect},
	{ContractPositionManager, "Transfer", model.EventPositionTransfer, buildTransfer},
	{ContractVoter, "GaugeCreated", model.EventGaugeCreated, buildGaugeCreated},
	{ContractVoter, "Voted", model.EventVoted, buildVote},
	{ContractVoter, "Abstained", model.EventAbstained, buildVote},
	{ContractGauge, "Deposit", model.EventGaugeDeposit, buildGaugeDeposit},
	{ContractGauge, "Withdraw", model.EventGaugeWithdraw, buildGaugeWithdraw},
	{ContractGauge, "ClaimRewards", model.EventGaugeClaimRewards, buildGaugeClaim},
	{ContractGauge, "NotifyReward", model.EventGaugeNotifyReward, buildGaugeNotify},
	{ContractCLGauge, "Deposit", model.EventCLGaugeDeposit, buildCLStake},
	{ContractCLGauge, "Withdraw", model.EventCLGaugeWithdraw, buildCLStake},
	{ContractVotingReward, "NotifyReward", model.EventRewardNotify, buildRewardNotify},
	{ContractVotingReward, "ClaimRewards", model.EventRewardClaim, buildRewardClaim},
	{ContractVotingEscrow, "Deposit", model.EventEscrowDeposit, buildEscrowDeposit},
	{ContractVotingEscrow, "Withdraw", model.EventEscrowWithdraw, buildEscrowWithdraw},
	{ContractVotingEscrow, "LockPermanent", model.EventLockPermanent, buildLockPermanent},
	{ContractVotingEscrow, "Transfer", model.EventEscrowTransfer, buildTransfer},
	{ContractMinter, "Mint", model.EventMinterMint, buildMinterMint},
	{ContractRewardsDistributor, "Claimed", model.EventDistributorClaimed, buildDistributorClaimed},
}

type boundEvent struct {
	eventDef
	abiEvent abi.Event
}

// EventDecoder decodes pool, factory, position manager, voter, gauge,
// voting reward, escrow, minter and distributor events.
type EventDecoder struct {
	byTopic   map[string][]boundEvent
	contracts map[string]string
}

// NewEventDecoder builds an EventDecoder.
func NewEventDecoder(cfg DecoderConfig) (*EventDecoder, error) {
	byTopic := make(map[string][]boundEvent)
	byName := make(map[string]boundEvent, len(eventDefs))
	for _, def := range eventDefs {
		parsed, err := ContractABI(def.contract)
		if err != nil {
			return nil, err
		}
		event, ok := parsed.Events[def.event]
		if !ok {
			return nil, fmt.Errorf("%s abi has no %s event", def.contract, def.event)
		}
		bound := boundEvent{eventDef: def, abiEvent: event}
		topic := strings.ToLower(event.ID.Hex())
		byTopic[topic] = append(byTopic[topic], bound)
		byName[strings.ToLower(def.name)] = bound
	}

	for topic0, name := range cfg.Topic0Map {
		bound, ok := byName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", name)
		}
		if topic0 == "" {
			continue
		}
		topic := strings.ToLower(topic0)
		byTopic[topic] = append(byTopic[topic], bound)
	}

	contracts := make(map[string]string, len(cfg.Contracts))
	for address, kind := range cfg.Contracts {
		if !common.IsHexAddress(address) {
			return nil, fmt.Errorf("invalid contract address: %s", address)
		}
		if _, err := ContractABI(kind); err != nil {
			return nil, err
		}
		contracts[model.NormalizeAddress(address)] = kind
	}

	return &EventDecoder{byTopic: byTopic, contracts: contracts}, nil
}

// CanDecode checks if the topic0 is supported.
func (d *EventDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.byTopic[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *EventDecoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	candidates, ok := d.byTopic[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid contract address: %s", log.Address)
	}

	def, err := d.resolve(candidates, log.Address)
	if err != nil {
		return nil, err
	}

	args, err := unpackEvent(def.abiEvent, log)
	if err != nil {
		return nil, err
	}
	reader := &argReader{args: args}
	decoded := def.build(reader, log)
	if reader.err != nil {
		return nil, fmt.Errorf("%s: %w", def.name, reader.err)
	}

	return &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		TxFrom:      log.TxFrom,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		Contract:    def.contract,
		EventName:   def.name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		Raw:         &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data},
	}, nil
}

func (d *EventDecoder) resolve(candidates []boundEvent, address string) (boundEvent, error) {
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	kind, ok := d.contracts[model.NormalizeAddress(address)]
	if ok {
		for _, c := range candidates {
			if c.contract == kind {
				return c, nil
			}
		}
	}
	return boundEvent{}, fmt.Errorf("event %s from unregistered contract %s", candidates[0].event, address)
}

func unpackEvent(event abi.Event, log model.LogRecord) (map[string]interface{}, error) {
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return nil, err
	}
	args := make(map[string]interface{}, len(event.Inputs))
	if err := abi.ParseTopicsIntoMap(args, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}

	var data []byte
	if log.Data != "" {
		data, err = hexutil.Decode(log.Data)
		if err != nil {
			return nil, fmt.Errorf("invalid data: %w", err)
		}
	}
	if err := event.Inputs.UnpackIntoMap(args, data); err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return args, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

// argReader reads named event arguments and keeps the first error.
type argReader struct {
	args map[string]interface{}
	err  error
}

func (r *argReader) value(name string) (interface{}, bool) {
	if r.err != nil {
		return nil, false
	}
	v, ok := r.args[name]
	if !ok {
		r.err = fmt.Errorf("missing argument %s", name)
		return nil, false
	}
	return v, true
}

func (r *argReader) address(name string) string {
	v, ok := r.value(name)
	if !ok {
		return ""
	}
	addr, err := asAddress(v)
	if err != nil {
		r.err = fmt.Errorf("%s: %w", name, err)
		return ""
	}
	return addr.Hex()
}

func (r *argReader) bigInt(name string) *big.Int {
	v, ok := r.value(name)
	if !ok {
		return nil
	}
	n, err := asBigInt(v)
	if err != nil {
		r.err = fmt.Errorf("%s: %w", name, err)
		return nil
	}
	return n
}

func (r *argReader) number(name string) string {
	n := r.bigInt(name)
	if n == nil {
		return ""
	}
	return n.String()
}

func (r *argReader) uint64(name string) uint64 {
	n := r.bigInt(name)
	if n == nil {
		return 0
	}
	if !n.IsUint64() {
		r.err = fmt.Errorf("%s does not fit in uint64: %s", name, n)
		return 0
	}
	return n.Uint64()
}

func (r *argReader) int24(name string) int32 {
	n := r.bigInt(name)
	if n == nil {
		return 0
	}
	v, err := int24FromBig(n)
	if err != nil {
		r.err = fmt.Errorf("%s: %w", name, err)
		return 0
	}
	return v
}

func buildPoolCreated(r *argReader, _ model.LogRecord) interface{} {
	return model.PoolCreatedEventData{
		Token0:      r.address("token0"),
		Token1:      r.address("token1"),
		TickSpacing: r.int24("tickSpacing"),
		Pool:        r.address("pool"),
	}
}

func buildSwap(r *argReader, _ model.LogRecord) interface{} {
	return model.SwapEventData{
		Sender:       r.address("sender"),
		Recipient:    r.address("recipient"),
		Amount0:      r.number("amount0"),
		Amount1:      r.number("amount1"),
		SqrtPriceX96: r.number("sqrtPriceX96"),
		Liquidity:    r.number("liquidity"),
		Tick:         r.int24("tick"),
	}
}

func buildMint(r *argReader, _ model.LogRecord) interface{} {
	return model.MintEventData{
		Sender:    r.address("sender"),
		Owner:     r.address("owner"),
		TickLower: r.int24("tickLower"),
		TickUpper: r.int24("tickUpper"),
		Amount:    r.number("amount"),
		Amount0:   r.number("amount0"),
		Amount1:   r.number("amount1"),
	}
}

func buildBurn(r *argReader, _ model.LogRecord) interface{} {
	return model.BurnEventData{
		Owner:     r.address("owner"),
		TickLower: r.int24("tickLower"),
		TickUpper: r.int24("tickUpper"),
		Amount:    r.number("amount"),
		Amount0:   r.number("amount0"),
		Amount1:   r.number("amount1"),
	}
}

func buildPoolCollect(r *argReader, _ model.LogRecord) interface{} {
	return model.CollectEventData{
		Owner:     r.address("owner"),
		Recipient: r.address("recipient"),
		TickLower: r.int24("tickLower"),
		TickUpper: r.int24("tickUpper"),
		Amount0:   r.number("amount0"),
		Amount1:   r.number("amount1"),
	}
}

func buildLiquidity(r *argReader, _ model.LogRecord) interface{} {
	return model.LiquidityEventData{
		TokenID:   r.number("tokenId"),
		Liquidity: r.number("liquidity"),
		Amount0:   r.number("amount0"),
		Amount1:   r.number("amount1"),
	}
}

func buildPositionCollect(r *argReader, _ model.LogRecord) interface{} {
	return model.PositionCollectEventData{
		TokenID:   r.number("tokenId"),
		Recipient: r.address("recipient"),
		Amount0:   r.number("amount0"),
		Amount1:   r.number("amount1"),
	}
}

func buildTransfer(r *argReader, _ model.LogRecord) interface{} {
	return model.TransferEventData{
		From:    r.address("from"),
		To:      r.address("to"),
		TokenID: r.number("tokenId"),
	}
}

func buildGaugeCreated(r *argReader, _ model.LogRecord) interface{} {
	return model.GaugeCreatedEventData{
		PoolFactory:          r.address("poolFactory"),
		VotingRewardsFactory: r.address("votingRewardsFactory"),
		GaugeFactory:         r.address("gaugeFactory"),
		Pool:                 r.address("pool"),
		BribeVotingReward:    r.address("bribeVotingReward"),
		FeeVotingReward:      r.address("feeVotingReward"),
		Gauge:                r.address("gauge"),
		Creator:              r.address("creator"),
	}
}

func buildVote(r *argReader, _ model.LogRecord) interface{} {
	return model.VoteEventData{
		Voter:       r.address("voter"),
		Pool:        r.address("pool"),
		TokenID:     r.number("tokenId"),
		Weight:      r.number("weight"),
		TotalWeight: r.number("totalWeight"),
		Timestamp:   r.uint64("timestamp"),
	}
}

func buildGaugeDeposit(r *argReader, _ model.LogRecord) interface{} {
	return model.StakeEventData{
		User:   r.address("to"),
		Amount: r.number("amount"),
	}
}

func buildGaugeWithdraw(r *argReader, _ model.LogRecord) interface{} {
	return model.StakeEventData{
		User:   r.address("from"),
		Amount: r.number("amount"),
	}
}

func buildCLStake(r *argReader, _ model.LogRecord) interface{} {
	return model.StakeEventData{
		User:    r.address("user"),
		TokenID: r.number("tokenId"),
		Amount:  r.number("liquidityToStake"),
	}
}

func buildGaugeClaim(r *argReader, log model.LogRecord) interface{} {
	return model.GaugeClaimEventData{
		From:    r.address("from"),
		Amount:  r.number("amount"),
		TokenID: claimTokenID(log.TxInput),
	}
}

func buildGaugeNotify(r *argReader, _ model.LogRecord) interface{} {
	return model.GaugeNotifyEventData{
		From:   r.address("from"),
		Amount: r.number("amount"),
	}
}

func buildRewardNotify(r *argReader, _ model.LogRecord) interface{} {
	return model.RewardNotifyEventData{
		From:   r.address("from"),
		Token:  r.address("reward"),
		Epoch:  r.number("epoch"),
		Amount: r.number("amount"),
	}
}

func buildRewardClaim(r *argReader, _ model.LogRecord) interface{} {
	return model.RewardClaimEventData{
		Recipient: r.address("from"),
		Token:     r.address("reward"),
		Amount:    r.number("amount"),
	}
}

func buildEscrowDeposit(r *argReader, _ model.LogRecord) interface{} {
	return model.EscrowDepositEventData{
		Provider:    r.address("provider"),
		TokenID:     r.number("tokenId"),
		DepositType: uint8(r.uint64("depositType")),
		Value:       r.number("value"),
		Locktime:    r.uint64("locktime"),
		Ts:          r.uint64("ts"),
	}
}

func buildEscrowWithdraw(r *argReader, _ model.LogRecord) interface{} {
	return model.EscrowWithdrawEventData{
		Provider: r.address("provider"),
		TokenID:  r.number("tokenId"),
		Value:    r.number("value"),
		Ts:       r.uint64("ts"),
	}
}

func buildLockPermanent(r *argReader, _ model.LogRecord) interface{} {
	return model.LockPermanentEventData{
		Owner:   r.address("owner"),
		TokenID: r.number("tokenId"),
		Amount:  r.number("amount"),
		Ts:      r.uint64("ts"),
	}
}

func buildMinterMint(r *argReader, _ model.LogRecord) interface{} {
	return model.MinterMintEventData{
		Sender:            r.address("sender"),
		Weekly:            r.number("weekly"),
		CirculatingSupply: r.number("circulatingSupply"),
		Timestamp:         r.uint64("timestamp"),
	}
}

func buildDistributorClaimed(r *argReader, _ model.LogRecord) interface{} {
	return model.DistributorClaimedEventData{
		TokenID:    r.number("tokenId"),
		EpochStart: r.uint64("epochStart"),
		EpochEnd:   r.uint64("epochEnd"),
		Amount:     r.number("amount"),
	}
}

// claimTokenID extracts the tokenId argument of a getReward(uint256) call.
// Claims routed through other entry points yield an empty id.
func claimTokenID(input string) string {
	if len(input) < 2+36*2 {
		return ""
	}
	data, err := hexutil.Decode(input)
	if err != nil || len(data) < 36 {
		return ""
	}
	parsed, err := ContractABI(ContractCLGauge)
	if err != nil {
		return ""
	}
	if !bytes.Equal(data[:4], parsed.Methods["getReward"].ID) {
		return ""
	}
	return new(big.Int).SetBytes(data[4:36]).String()
}
