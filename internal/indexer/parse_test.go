package indexer

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddresses(t *testing.T) {
	addrs, err := ParseAddresses([]string{
		"0x1111111111111111111111111111111111111111",
		" ",
		"0x1111111111111111111111111111111111111111",
		"0x2222222222222222222222222222222222222222",
	})
	require.NoError(t, err)
	assert.Len(t, addrs, 2)

	_, err = ParseAddresses([]string{"0x12"})
	assert.Error(t, err)
}

func TestParseTopic0(t *testing.T) {
	transfer := crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

	topics, err := ParseTopic0([]string{
		"Transfer(address,address,uint256)",
		transfer.Hex(),
		"0x0000000000000000000000000000000000000000000000000000000000000001",
	})
	require.NoError(t, err)
	assert.Equal(t, []common.Hash{transfer, common.BigToHash(common.Big1)}, topics)

	for _, bad := range []string{"0x1234", "nothex", "Transfer(address, address)", "Transfer(address"} {
		_, err := ParseTopic0([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestFilterFingerprintIgnoresOrder(t *testing.T) {
	a := common.HexToAddress("0x1111111111111111111111111111111111111111")
	b := common.HexToAddress("0x2222222222222222222222222222222222222222")
	topic := common.HexToHash("0xaa")

	assert.Equal(t,
		FilterFingerprint([]common.Address{a, b}, []common.Hash{topic}),
		FilterFingerprint([]common.Address{b, a}, []common.Hash{topic}),
	)
	assert.NotEqual(t,
		FilterFingerprint([]common.Address{a}, nil),
		FilterFingerprint(nil, []common.Hash{topic}),
	)
}
