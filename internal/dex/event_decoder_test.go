package dex

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clscope/internal/model"
)

var (
	testPool    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testManager = common.HexToAddress("0x4444444444444444444444444444444444444444")
	testEscrow  = common.HexToAddress("0x5555555555555555555555555555555555555555")
	testGauge   = common.HexToAddress("0x6666666666666666666666666666666666666666")
	testAlice   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testBob     = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func newTestDecoder(t *testing.T) *EventDecoder {
	t.Helper()
	decoder, err := NewEventDecoder(DecoderConfig{Contracts: map[string]string{
		testManager.Hex(): ContractPositionManager,
		testEscrow.Hex():  ContractVotingEscrow,
	}})
	require.NoError(t, err)
	return decoder
}

func TestDecodeSwap(t *testing.T) {
	decoder := newTestDecoder(t)
	poolABI, err := ContractABI(ContractPool)
	require.NoError(t, err)

	data, err := poolABI.Events["Swap"].Inputs.NonIndexed().Pack(
		big.NewInt(-1000),
		big.NewInt(2000),
		big.NewInt(123456789),
		big.NewInt(987654321),
		big.NewInt(-15),
	)
	require.NoError(t, err)

	log := buildLogRecord(testPool, poolABI.Events["Swap"].ID, data, []common.Hash{
		topicFromAddress(testAlice),
		topicFromAddress(testBob),
	})
	require.True(t, decoder.CanDecode(log.Topics[0]))

	event, err := decoder.Decode(log)
	require.NoError(t, err)
	assert.Equal(t, model.EventSwap, event.EventName)
	assert.Equal(t, ContractPool, event.Contract)
	assert.Equal(t, log.TxFrom, event.TxFrom)

	swap, ok := event.Decoded.(model.SwapEventData)
	require.True(t, ok)
	assert.Equal(t, "-1000", swap.Amount0)
	assert.Equal(t, "2000", swap.Amount1)
	assert.Equal(t, "123456789", swap.SqrtPriceX96)
	assert.Equal(t, int32(-15), swap.Tick)
	assert.Equal(t, testAlice.Hex(), swap.Sender)
	assert.Equal(t, testBob.Hex(), swap.Recipient)
}

func TestDecodeMintBurnCollect(t *testing.T) {
	decoder := newTestDecoder(t)
	poolABI, err := ContractABI(ContractPool)
	require.NoError(t, err)

	mintData, err := poolABI.Events["Mint"].Inputs.NonIndexed().Pack(
		testAlice, big.NewInt(5000), big.NewInt(100), big.NewInt(200),
	)
	require.NoError(t, err)
	mintEvent, err := decoder.Decode(buildLogRecord(testPool, poolABI.Events["Mint"].ID, mintData, []common.Hash{
		topicFromAddress(testBob), topicFromInt24(-120), topicFromInt24(120),
	}))
	require.NoError(t, err)
	mint := mintEvent.Decoded.(model.MintEventData)
	assert.Equal(t, int32(-120), mint.TickLower)
	assert.Equal(t, int32(120), mint.TickUpper)
	assert.Equal(t, "5000", mint.Amount)
	assert.Equal(t, testAlice.Hex(), mint.Sender)

	burnData, err := poolABI.Events["Burn"].Inputs.NonIndexed().Pack(
		big.NewInt(7000), big.NewInt(300), big.NewInt(400),
	)
	require.NoError(t, err)
	burnEvent, err := decoder.Decode(buildLogRecord(testPool, poolABI.Events["Burn"].ID, burnData, []common.Hash{
		topicFromAddress(testBob), topicFromInt24(-60), topicFromInt24(60),
	}))
	require.NoError(t, err)
	assert.Equal(t, "7000", burnEvent.Decoded.(model.BurnEventData).Amount)

	collectData, err := poolABI.Events["Collect"].Inputs.NonIndexed().Pack(
		testAlice, big.NewInt(900), big.NewInt(1000),
	)
	require.NoError(t, err)
	collectEvent, err := decoder.Decode(buildLogRecord(testPool, poolABI.Events["Collect"].ID, collectData, []common.Hash{
		topicFromAddress(testBob), topicFromInt24(-10), topicFromInt24(10),
	}))
	require.NoError(t, err)
	assert.Equal(t, model.EventCollect, collectEvent.EventName)
	collect := collectEvent.Decoded.(model.CollectEventData)
	assert.Equal(t, "900", collect.Amount0)
	assert.Equal(t, testAlice.Hex(), collect.Recipient)
}

func TestDecodeTransferUsesContractRegistry(t *testing.T) {
	decoder := newTestDecoder(t)
	managerABI, err := ContractABI(ContractPositionManager)
	require.NoError(t, err)
	transfer := managerABI.Events["Transfer"]
	topics := []common.Hash{topicFromAddress(testAlice), topicFromAddress(testBob), common.BigToHash(big.NewInt(42))}

	event, err := decoder.Decode(buildLogRecord(testManager, transfer.ID, nil, topics))
	require.NoError(t, err)
	assert.Equal(t, model.EventPositionTransfer, event.EventName)
	assert.Equal(t, "42", event.Decoded.(model.TransferEventData).TokenID)

	event, err = decoder.Decode(buildLogRecord(testEscrow, transfer.ID, nil, topics))
	require.NoError(t, err)
	assert.Equal(t, model.EventEscrowTransfer, event.EventName)
	assert.Equal(t, ContractVotingEscrow, event.Contract)

	_, err = decoder.Decode(buildLogRecord(testPool, transfer.ID, nil, topics))
	assert.Error(t, err)
}

func TestDecodeGaugeClaimReadsTokenIDFromInput(t *testing.T) {
	decoder := newTestDecoder(t)
	gaugeABI, err := ContractABI(ContractGauge)
	require.NoError(t, err)
	clGaugeABI, err := ContractABI(ContractCLGauge)
	require.NoError(t, err)

	claim := gaugeABI.Events["ClaimRewards"]
	data, err := claim.Inputs.NonIndexed().Pack(big.NewInt(77))
	require.NoError(t, err)
	log := buildLogRecord(testGauge, claim.ID, data, []common.Hash{topicFromAddress(testAlice)})

	input, err := clGaugeABI.Pack("getReward", big.NewInt(9))
	require.NoError(t, err)
	log.TxInput = hexutil.Encode(input)

	event, err := decoder.Decode(log)
	require.NoError(t, err)
	got := event.Decoded.(model.GaugeClaimEventData)
	assert.Equal(t, "77", got.Amount)
	assert.Equal(t, "9", got.TokenID)

	log.TxInput = "0xdeadbeef"
	event, err = decoder.Decode(log)
	require.NoError(t, err)
	assert.Empty(t, event.Decoded.(model.GaugeClaimEventData).TokenID)
}

func TestDecodeCLGaugeDepositAllIndexed(t *testing.T) {
	decoder := newTestDecoder(t)
	clGaugeABI, err := ContractABI(ContractCLGauge)
	require.NoError(t, err)

	deposit := clGaugeABI.Events["Deposit"]
	event, err := decoder.Decode(buildLogRecord(testGauge, deposit.ID, nil, []common.Hash{
		topicFromAddress(testAlice), common.BigToHash(big.NewInt(5)), common.BigToHash(big.NewInt(1000)),
	}))
	require.NoError(t, err)
	assert.Equal(t, model.EventCLGaugeDeposit, event.EventName)
	stake := event.Decoded.(model.StakeEventData)
	assert.Equal(t, "5", stake.TokenID)
	assert.Equal(t, "1000", stake.Amount)
	assert.Equal(t, testAlice.Hex(), stake.User)
}

func TestDecodeEscrowDeposit(t *testing.T) {
	decoder := newTestDecoder(t)
	escrowABI, err := ContractABI(ContractVotingEscrow)
	require.NoError(t, err)

	deposit := escrowABI.Events["Deposit"]
	data, err := deposit.Inputs.NonIndexed().Pack(big.NewInt(500), big.NewInt(1800000000), big.NewInt(1700000000))
	require.NoError(t, err)
	event, err := decoder.Decode(buildLogRecord(testEscrow, deposit.ID, data, []common.Hash{
		topicFromAddress(testAlice), common.BigToHash(big.NewInt(3)), common.BigToHash(big.NewInt(1)),
	}))
	require.NoError(t, err)

	got := event.Decoded.(model.EscrowDepositEventData)
	assert.Equal(t, "3", got.TokenID)
	assert.Equal(t, uint8(1), got.DepositType)
	assert.Equal(t, "500", got.Value)
	assert.Equal(t, uint64(1800000000), got.Locktime)
}

func TestDecodeVoted(t *testing.T) {
	decoder := newTestDecoder(t)
	voterABI, err := ContractABI(ContractVoter)
	require.NoError(t, err)

	voted := voterABI.Events["Voted"]
	data, err := voted.Inputs.NonIndexed().Pack(big.NewInt(10), big.NewInt(100), big.NewInt(1700000000))
	require.NoError(t, err)
	event, err := decoder.Decode(buildLogRecord(common.HexToAddress("0x7777777777777777777777777777777777777777"), voted.ID, data, []common.Hash{
		topicFromAddress(testAlice), topicFromAddress(testPool), common.BigToHash(big.NewInt(3)),
	}))
	require.NoError(t, err)
	vote := event.Decoded.(model.VoteEventData)
	assert.Equal(t, testPool.Hex(), vote.Pool)
	assert.Equal(t, "10", vote.Weight)
	assert.Equal(t, uint64(1700000000), vote.Timestamp)
}

func TestDecodeErrors(t *testing.T) {
	decoder := newTestDecoder(t)
	poolABI, err := ContractABI(ContractPool)
	require.NoError(t, err)

	tests := map[string]model.LogRecord{
		"no topics":     {Address: testPool.Hex()},
		"unknown topic": buildLogRecord(testPool, common.HexToHash("0x01"), nil, nil),
		"topic count":   buildLogRecord(testPool, poolABI.Events["Swap"].ID, nil, nil),
		"bad address": func() model.LogRecord {
			log := buildLogRecord(testPool, poolABI.Events["Burn"].ID, nil, nil)
			log.Address = "pool"
			return log
		}(),
	}
	for name, log := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := decoder.Decode(log)
			assert.Error(t, err)
		})
	}
	assert.False(t, decoder.CanDecode(""))
}

func TestTopic0MapAliases(t *testing.T) {
	alias := "0x00000000000000000000000000000000000000000000000000000000000000aa"
	decoder, err := NewEventDecoder(DecoderConfig{Topic0Map: map[string]string{alias: "minterMint"}})
	require.NoError(t, err)
	assert.True(t, decoder.CanDecode(alias))

	_, err = NewEventDecoder(DecoderConfig{Topic0Map: map[string]string{alias: "Sync"}})
	assert.Error(t, err)

	_, err = NewEventDecoder(DecoderConfig{Contracts: map[string]string{testPool.Hex(): "router"}})
	assert.Error(t, err)
}

func buildLogRecord(address common.Address, topic0 common.Hash, data []byte, indexed []common.Hash) model.LogRecord {
	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, topic0.Hex())
	for _, topic := range indexed {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:     1329,
		BlockNumber: 12345,
		BlockHash:   "0xabc",
		TxHash:      "0xdef",
		TxFrom:      testAlice.Hex(),
		LogIndex:    1,
		Address:     address.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(data),
		Timestamp:   1700000000,
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func topicFromInt24(value int32) common.Hash {
	bigVal := big.NewInt(int64(value))
	if value < 0 {
		bigVal = new(big.Int).Add(bigVal, new(big.Int).Lsh(big.NewInt(1), 256))
	}
	return common.BigToHash(bigVal)
}
