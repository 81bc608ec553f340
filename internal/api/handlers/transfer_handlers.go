package handlers

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bridge-service/bridge_service/internal/domain/entities"
	"github.com/bridge-service/bridge_service/internal/domain/services/transfer"
	"github.com/bridge-service/bridge_service/internal/events"
	"github.com/bridge-service/bridge_service/internal/infrastructure/repositories"
	"github.com/bridge-service/bridge_service/pkg/logger"
)

// TransferHandlers handles cross-chain transfer operations
type TransferHandlers struct {
	transferService *transfer.Service
	bus             *events.Bus
	credential      entities.SigningCredential
	validator       *validator.Validate
	logger          *logger.Logger
}

// NewTransferHandlers creates a new TransferHandlers instance
func NewTransferHandlers(transferService *transfer.Service, bus *events.Bus, credential entities.SigningCredential, logger *logger.Logger) *TransferHandlers {
	return &TransferHandlers{
		transferService: transferService,
		bus:             bus,
		credential:      credential,
		validator:       validator.New(),
		logger:          logger,
	}
}

// CreateTransfer handles POST /api/v1/transfers
//
// The transfer is accepted and orchestrated in the background; clients
// follow progress via GET /api/v1/transfers/:id or the event stream.
func (h *TransferHandlers) CreateTransfer(c *gin.Context) {
	var req entities.CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request format", map[string]interface{}{"error": err.Error()})
		return
	}

	sourceChain := entities.Chain(strings.ToLower(req.SourceChain))
	destinationChain := entities.Chain(strings.ToLower(req.DestinationChain))

	if !sourceChain.IsSupported() {
		respondBadRequest(c, "Unsupported source chain", map[string]interface{}{
			"chain":     req.SourceChain,
			"supported": entities.SupportedChains(),
		})
		return
	}
	if !destinationChain.IsSupported() {
		respondBadRequest(c, "Unsupported destination chain", map[string]interface{}{
			"chain":     req.DestinationChain,
			"supported": entities.SupportedChains(),
		})
		return
	}
	if sourceChain == destinationChain {
		respondBadRequest(c, "Source and destination chains must differ")
		return
	}
	if err := h.validator.Var(req.Recipient, "required,eth_addr"); err != nil {
		respondBadRequest(c, "Invalid recipient address")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		respondBadRequest(c, "Amount must be a positive decimal string")
		return
	}

	transferReq := entities.TransferRequest{
		ID:               uuid.New(),
		SourceChain:      sourceChain,
		DestinationChain: destinationChain,
		Recipient:        req.Recipient,
		Amount:           amount,
		Credential:       h.credential,
	}

	requestID := getRequestID(c)
	go func() {
		outcome, err := h.transferService.Execute(context.Background(), transferReq)
		if err != nil {
			h.logger.Error("Transfer orchestration failed",
				"error", err,
				"transfer_id", transferReq.ID,
				"request_id", requestID)
			return
		}
		h.logger.Info("Transfer orchestration finished",
			"transfer_id", transferReq.ID,
			"outcome", outcome.Status)
	}()

	respondAccepted(c, entities.TransferAcceptedResponse{
		ID:     transferReq.ID,
		Status: entities.TransferStatusBurning,
	})
}

// GetTransfer handles GET /api/v1/transfers/:id
func (h *TransferHandlers) GetTransfer(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "Invalid transfer ID")
		return
	}

	record, err := h.transferService.GetTransfer(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrTransferNotFound) {
			respondNotFound(c, "Transfer not found")
			return
		}
		h.logger.Error("Failed to get transfer", "error", err, "transfer_id", id)
		respondInternalError(c, "Failed to retrieve transfer")
		return
	}

	respondSuccess(c, entities.NewTransferResponse(record))
}

// GetAttestation handles GET /api/v1/attestations
func (h *TransferHandlers) GetAttestation(c *gin.Context) {
	txHash := c.Query("transactionHash")
	if txHash == "" {
		respondBadRequest(c, "transactionHash query parameter is required")
		return
	}

	sourceChain := entities.Chain(strings.ToLower(c.Query("sourceChain")))
	if sourceChain == "" {
		respondBadRequest(c, "sourceChain query parameter is required")
		return
	}

	record, err := h.transferService.LookupAttestation(c.Request.Context(), sourceChain, txHash)
	if err != nil {
		if errors.Is(err, transfer.ErrUnsupportedChain) {
			respondBadRequest(c, "Unsupported source chain", map[string]interface{}{
				"chain":     c.Query("sourceChain"),
				"supported": entities.SupportedChains(),
			})
			return
		}
		h.logger.Error("Attestation lookup failed", "error", err, "tx_hash", txHash)
		respondInternalError(c, "Failed to look up attestation")
		return
	}

	resp := entities.AttestationResponse{
		Status:      record.Status,
		Message:     record.Message,
		Attestation: record.Attestation,
	}

	// Best effort: tie the burn back to a transfer when it is ours.
	if owned, err := h.transferService.GetTransferByBurnTxHash(c.Request.Context(), txHash); err == nil && owned != nil {
		resp.TransferID = &owned.ID
	}

	respondSuccess(c, resp)
}

// StreamEvents handles GET /api/v1/transfers/events
//
// Streams per-chain step events as server-sent events. An optional
// wallet query parameter narrows the stream to one wallet address.
func (h *TransferHandlers) StreamEvents(c *gin.Context) {
	sub, err := h.bus.Subscribe(events.TopicChainStep)
	if err != nil {
		respondError(c, 503, "SUBSCRIBER_LIMIT", "Too many event stream subscribers", nil)
		return
	}
	defer h.bus.Unsubscribe(sub)

	wallet := c.Query("wallet")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				return false
			}
			if wallet != "" && !strings.EqualFold(event.WalletAddress, wallet) {
				return true
			}
			c.SSEvent("chain-step", event)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
