package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/bridge-service/bridge_service/internal/domain/entities"
	"github.com/bridge-service/bridge_service/internal/infrastructure/config"
)

const (
	receiptPollInterval = 2 * time.Second
	receiptWaitTimeout  = 3 * time.Minute
	gasLimitBufferPct   = 20
)

// Adapter executes burn and mint transactions on the configured EVM chains
type Adapter struct {
	chains   map[string]config.ChainConfig
	keystore *Keystore
	clients  *ClientCache
	logger   *zap.Logger
}

// NewAdapter creates a chain adapter over the configured chain table
func NewAdapter(chains map[string]config.ChainConfig, keystore *Keystore, clients *ClientCache, logger *zap.Logger) *Adapter {
	return &Adapter{
		chains:   chains,
		keystore: keystore,
		clients:  clients,
		logger:   logger,
	}
}

// Burn approves the token messenger for the transfer amount and calls
// depositForBurn on the source chain. It blocks until both transactions are
// mined and returns the burn transaction hash.
func (a *Adapter) Burn(ctx context.Context, params BurnParams) (*BurnResult, error) {
	source, err := a.chainConfig(params.SourceChain)
	if err != nil {
		return nil, err
	}
	dest, err := a.chainConfig(params.DestinationChain)
	if err != nil {
		return nil, err
	}

	privateKey, from, err := a.keystore.Resolve(params.Credential)
	if err != nil {
		return nil, err
	}

	if !ethcommon.IsHexAddress(params.Recipient) {
		return nil, fmt.Errorf("invalid recipient address %q", params.Recipient)
	}
	recipient := ethcommon.HexToAddress(params.Recipient)

	amountUnits, err := toBaseUnits(params)
	if err != nil {
		return nil, err
	}
	maxFee := params.MaxFee
	if maxFee == nil {
		maxFee = big.NewInt(0)
	}

	usdc := ethcommon.HexToAddress(source.USDCAddress)
	tokenMessenger := ethcommon.HexToAddress(source.TokenMessenger)

	a.logger.Info("submitting approval",
		zap.String("chain", string(params.SourceChain)),
		zap.String("wallet", from.Hex()),
		zap.String("amount", amountUnits.String()))

	approveHash, err := a.submitAndWait(ctx, params.SourceChain, privateKey, from, usdc,
		encodeERC20Approve(tokenMessenger, amountUnits))
	if err != nil {
		return nil, fmt.Errorf("approve failed: %w", err)
	}
	a.logger.Info("approval mined", zap.String("tx_hash", approveHash))

	burnData := encodeDepositForBurn(amountUnits, dest.Domain, recipient, usdc, maxFee)
	burnHash, err := a.submitAndWait(ctx, params.SourceChain, privateKey, from, tokenMessenger, burnData)
	if err != nil {
		return nil, fmt.Errorf("depositForBurn failed: %w", err)
	}

	a.logger.Info("burn mined",
		zap.String("chain", string(params.SourceChain)),
		zap.String("tx_hash", burnHash))

	return &BurnResult{TxHash: burnHash, WalletAddress: from.Hex()}, nil
}

// Mint submits the attested burn message to the destination chain's message
// transmitter and blocks until the transaction is mined.
func (a *Adapter) Mint(ctx context.Context, chain entities.Chain, messageHex, attestationHex string, credential entities.SigningCredential) (string, error) {
	cc, err := a.chainConfig(chain)
	if err != nil {
		return "", err
	}

	privateKey, from, err := a.keystore.Resolve(credential)
	if err != nil {
		return "", err
	}

	message := ethcommon.FromHex(messageHex)
	attestation := ethcommon.FromHex(attestationHex)
	if len(message) == 0 || len(attestation) == 0 {
		return "", fmt.Errorf("message and attestation payloads are required")
	}

	transmitter := ethcommon.HexToAddress(cc.MessageTransmitter)
	txHash, err := a.submitAndWait(ctx, chain, privateKey, from, transmitter,
		encodeReceiveMessage(message, attestation))
	if err != nil {
		return "", fmt.Errorf("receiveMessage failed: %w", err)
	}

	a.logger.Info("mint mined",
		zap.String("chain", string(chain)),
		zap.String("tx_hash", txHash))
	return txHash, nil
}

func (a *Adapter) chainConfig(chain entities.Chain) (config.ChainConfig, error) {
	cc, ok := a.chains[string(chain)]
	if !ok {
		return config.ChainConfig{}, fmt.Errorf("chain %s is not configured", chain)
	}
	return cc, nil
}

// toBaseUnits converts a decimal USDC amount to 6-decimal base units
func toBaseUnits(params BurnParams) (*big.Int, error) {
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive, got %s", params.Amount)
	}
	units := params.Amount.Shift(entities.USDCDecimals)
	if !units.IsInteger() {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", params.Amount, entities.USDCDecimals)
	}
	return units.BigInt(), nil
}

// submitAndWait signs, sends and waits for one transaction to be mined
func (a *Adapter) submitAndWait(ctx context.Context, chain entities.Chain, privateKey *ecdsa.PrivateKey, from, to ethcommon.Address, data []byte) (string, error) {
	client, err := a.clients.Get(chain)
	if err != nil {
		return "", err
	}
	cc, err := a.chainConfig(chain)
	if err != nil {
		return "", err
	}

	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("get nonce: %w", err)
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("suggest gas price: %w", err)
	}

	gasLimit, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &to,
		Data: data,
	})
	if err != nil {
		return "", fmt.Errorf("estimate gas: %w", err)
	}
	gasLimit += gasLimit * gasLimitBufferPct / 100

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(cc.ChainID)), privateKey)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}

	txHash := signedTx.Hash()
	if err := a.waitMined(ctx, chain, txHash); err != nil {
		return "", err
	}
	return txHash.Hex(), nil
}

// waitMined polls for the transaction receipt until mined or timed out
func (a *Adapter) waitMined(ctx context.Context, chain entities.Chain, txHash ethcommon.Hash) error {
	client, err := a.clients.Get(chain)
	if err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, receiptWaitTimeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(waitCtx, txHash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("transaction %s reverted", txHash.Hex())
			}
			return nil
		}

		select {
		case <-waitCtx.Done():
			return fmt.Errorf("waiting for transaction %s: %w", txHash.Hex(), waitCtx.Err())
		case <-ticker.C:
		}
	}
}
