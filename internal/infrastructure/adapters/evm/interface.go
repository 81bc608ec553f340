package evm

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/bridge-service/bridge_service/internal/domain/entities"
)

// BurnParams carries everything needed to burn USDC on the source chain
type BurnParams struct {
	SourceChain      entities.Chain
	DestinationChain entities.Chain
	Recipient        string
	Amount           decimal.Decimal
	Credential       entities.SigningCredential
	MaxFee           *big.Int // base units; zero for standard transfers
}

// BurnResult is the outcome of a successful burn
type BurnResult struct {
	TxHash        string
	WalletAddress string
}

// Burner burns USDC on a source chain via the bridge's token messenger
type Burner interface {
	Burn(ctx context.Context, params BurnParams) (*BurnResult, error)
}

// Minter completes a transfer on the destination chain by submitting the
// attested burn message to the message transmitter
type Minter interface {
	Mint(ctx context.Context, chain entities.Chain, messageHex, attestationHex string, credential entities.SigningCredential) (string, error)
}

// Ensure Adapter implements both chain-side interfaces
var (
	_ Burner = (*Adapter)(nil)
	_ Minter = (*Adapter)(nil)
)
