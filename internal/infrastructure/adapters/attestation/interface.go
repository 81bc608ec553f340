package attestation

import (
	"context"
	"time"

	"github.com/bridge-service/bridge_service/internal/domain/entities"
)

// Retriever defines the attestation operations the orchestrator depends on
type Retriever interface {
	// RetrieveAttestation polls until complete or the timeout elapses
	RetrieveAttestation(ctx context.Context, sourceDomain uint32, txHash string, timeout time.Duration) (*entities.AttestationRecord, error)

	// Lookup performs a single attestation check without polling
	Lookup(ctx context.Context, sourceDomain uint32, txHash string) (*entities.AttestationRecord, error)

	// GetFees retrieves current fees for a transfer between domains
	GetFees(ctx context.Context, sourceDomain, destDomain uint32) (*FeesResponse, error)
}

// Ensure Client implements Retriever interface
var _ Retriever = (*Client)(nil)
