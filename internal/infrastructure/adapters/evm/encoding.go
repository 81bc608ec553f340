package evm

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Standard transfer finality threshold for depositForBurn. Fast transfers
// use 1000; we always request full finality.
const minFinalityThresholdStandard uint32 = 2000

func methodID(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

// encodeERC20Approve encodes approve(address,uint256)
func encodeERC20Approve(spender ethcommon.Address, amount *big.Int) []byte {
	data := methodID("approve(address,uint256)")
	data = append(data, ethcommon.LeftPadBytes(spender.Bytes(), 32)...)
	data = append(data, ethcommon.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}

// encodeDepositForBurn encodes the TokenMessenger v2 call
// depositForBurn(uint256,uint32,bytes32,address,bytes32,uint256,uint32).
// destinationCaller is left zero so anyone may complete the mint.
func encodeDepositForBurn(amount *big.Int, destinationDomain uint32, mintRecipient, burnToken ethcommon.Address, maxFee *big.Int) []byte {
	data := methodID("depositForBurn(uint256,uint32,bytes32,address,bytes32,uint256,uint32)")
	data = append(data, ethcommon.LeftPadBytes(amount.Bytes(), 32)...)
	data = append(data, ethcommon.LeftPadBytes(big.NewInt(int64(destinationDomain)).Bytes(), 32)...)
	data = append(data, ethcommon.LeftPadBytes(mintRecipient.Bytes(), 32)...)
	data = append(data, ethcommon.LeftPadBytes(burnToken.Bytes(), 32)...)
	data = append(data, make([]byte, 32)...) // destinationCaller
	data = append(data, ethcommon.LeftPadBytes(maxFee.Bytes(), 32)...)
	data = append(data, ethcommon.LeftPadBytes(big.NewInt(int64(minFinalityThresholdStandard)).Bytes(), 32)...)
	return data
}

// encodeReceiveMessage encodes the MessageTransmitter call
// receiveMessage(bytes,bytes) with its two dynamic arguments.
func encodeReceiveMessage(message, attestation []byte) []byte {
	messageWord := padRight32(message)
	messageOffset := int64(64)
	attestationOffset := messageOffset + 32 + int64(len(messageWord))

	data := methodID("receiveMessage(bytes,bytes)")
	data = append(data, ethcommon.LeftPadBytes(big.NewInt(messageOffset).Bytes(), 32)...)
	data = append(data, ethcommon.LeftPadBytes(big.NewInt(attestationOffset).Bytes(), 32)...)
	data = append(data, ethcommon.LeftPadBytes(big.NewInt(int64(len(message))).Bytes(), 32)...)
	data = append(data, messageWord...)
	data = append(data, ethcommon.LeftPadBytes(big.NewInt(int64(len(attestation))).Bytes(), 32)...)
	data = append(data, padRight32(attestation)...)
	return data
}

func padRight32(b []byte) []byte {
	padding := (32 - len(b)%32) % 32
	out := make([]byte, len(b)+padding)
	copy(out, b)
	return out
}
