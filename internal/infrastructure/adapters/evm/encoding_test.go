package evm

import (
	"encoding/hex"
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bridge-service/bridge_service/internal/domain/entities"
)

func TestEncodeERC20Approve(t *testing.T) {
	spender := ethcommon.HexToAddress("0x8FE6B999Dc680CcFDD5Bf7EB0974218be2542DAA")
	data := encodeERC20Approve(spender, big.NewInt(1000000))

	// Selector for approve(address,uint256)
	assert.Equal(t, "095ea7b3", hex.EncodeToString(data[:4]))
	require.Len(t, data, 4+32+32)
	assert.Equal(t, spender.Bytes(), data[4+12:4+32])
	assert.Equal(t, big.NewInt(1000000), new(big.Int).SetBytes(data[4+32:]))
}

func TestEncodeDepositForBurn(t *testing.T) {
	recipient := ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")
	burnToken := ethcommon.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")
	amount := big.NewInt(2500000)
	maxFee := big.NewInt(500)

	data := encodeDepositForBurn(amount, 2, recipient, burnToken, maxFee)

	require.Len(t, data, 4+7*32)
	assert.Equal(t, methodID("depositForBurn(uint256,uint32,bytes32,address,bytes32,uint256,uint32)"), data[:4])

	word := func(i int) []byte { return data[4+i*32 : 4+(i+1)*32] }
	assert.Equal(t, amount, new(big.Int).SetBytes(word(0)))
	assert.Equal(t, big.NewInt(2), new(big.Int).SetBytes(word(1)))
	assert.Equal(t, recipient.Bytes(), word(2)[12:])
	assert.Equal(t, burnToken.Bytes(), word(3)[12:])
	assert.Equal(t, make([]byte, 32), word(4), "destinationCaller must be zero")
	assert.Equal(t, maxFee, new(big.Int).SetBytes(word(5)))
	assert.Equal(t, big.NewInt(int64(minFinalityThresholdStandard)), new(big.Int).SetBytes(word(6)))
}

func TestEncodeReceiveMessage(t *testing.T) {
	message := []byte("payload that is longer than one word to exercise padding")
	attestation := []byte{0xde, 0xad, 0xbe, 0xef}

	data := encodeReceiveMessage(message, attestation)

	assert.Equal(t, methodID("receiveMessage(bytes,bytes)"), data[:4])

	body := data[4:]
	messageOffset := new(big.Int).SetBytes(body[:32]).Int64()
	attestationOffset := new(big.Int).SetBytes(body[32:64]).Int64()
	assert.Equal(t, int64(64), messageOffset)

	messageLen := new(big.Int).SetBytes(body[messageOffset : messageOffset+32]).Int64()
	assert.Equal(t, int64(len(message)), messageLen)
	assert.Equal(t, message, body[messageOffset+32:messageOffset+32+messageLen])

	attestationLen := new(big.Int).SetBytes(body[attestationOffset : attestationOffset+32]).Int64()
	assert.Equal(t, int64(len(attestation)), attestationLen)
	assert.Equal(t, attestation, body[attestationOffset+32:attestationOffset+32+attestationLen])

	// Both dynamic sections end on a word boundary
	assert.Zero(t, len(body)%32)
}

func TestToBaseUnits(t *testing.T) {
	t.Run("whole and fractional amounts", func(t *testing.T) {
		units, err := toBaseUnits(BurnParams{Amount: decimal.RequireFromString("1.00")})
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(1000000), units)

		units, err = toBaseUnits(BurnParams{Amount: decimal.RequireFromString("0.000001")})
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(1), units)
	})

	t.Run("rejects too many decimal places", func(t *testing.T) {
		_, err := toBaseUnits(BurnParams{Amount: decimal.RequireFromString("1.0000001")})
		assert.Error(t, err)
	})

	t.Run("rejects zero and negative", func(t *testing.T) {
		_, err := toBaseUnits(BurnParams{Amount: decimal.Zero})
		assert.Error(t, err)

		_, err = toBaseUnits(BurnParams{Amount: decimal.RequireFromString("-5")})
		assert.Error(t, err)
	})
}

func TestKeystore(t *testing.T) {
	// Well-known anvil test key
	const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	const testAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

	t.Run("register and resolve", func(t *testing.T) {
		ks := NewKeystore()
		require.NoError(t, ks.Register("primary", testKey))

		key, addr, err := ks.Resolve("primary")
		require.NoError(t, err)
		assert.NotNil(t, key)
		assert.Equal(t, testAddr, addr.Hex())
		assert.True(t, ks.Has("primary"))
	})

	t.Run("accepts 0x prefix", func(t *testing.T) {
		ks := NewKeystore()
		require.NoError(t, ks.Register("primary", "0x"+testKey))

		_, addr, err := ks.Resolve("primary")
		require.NoError(t, err)
		assert.Equal(t, testAddr, addr.Hex())
	})

	t.Run("unknown credential", func(t *testing.T) {
		ks := NewKeystore()
		_, _, err := ks.Resolve("missing")
		assert.Error(t, err)
		assert.False(t, ks.Has("missing"))
	})

	t.Run("rejects malformed key", func(t *testing.T) {
		ks := NewKeystore()
		assert.Error(t, ks.Register("bad", "not-a-key"))
		assert.Error(t, ks.Register("", testKey))
	})

	t.Run("credential type round trip", func(t *testing.T) {
		ks := NewKeystore()
		cred := entities.SigningCredential("default")
		require.NoError(t, ks.Register(cred, testKey))
		assert.True(t, ks.Has(cred))
	})
}
