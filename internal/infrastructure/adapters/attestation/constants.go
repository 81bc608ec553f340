package attestation

import "github.com/bridge-service/bridge_service/internal/domain/entities"

const (
	// API Hosts
	IrisMainnetURL = "https://iris-api.circle.com"
	IrisSandboxURL = "https://iris-api-sandbox.circle.com"

	// Domain IDs - only chains we support
	DomainEthereumSepolia uint32 = 0
	DomainAvalancheFuji   uint32 = 1
	DomainOptimismSepolia uint32 = 2
	DomainArbitrumSepolia uint32 = 3
	DomainBaseSepolia     uint32 = 6

	// Rate limiting
	MaxRequestsPerSecond = 35

	// Attestation statuses as reported by the service
	StatusPending  = "pending"
	StatusComplete = "complete"
)

// ChainDomains maps supported chains to attestation service domain IDs.
var ChainDomains = map[entities.Chain]uint32{
	entities.ChainEthereumSepolia: DomainEthereumSepolia,
	entities.ChainAvalancheFuji:   DomainAvalancheFuji,
	entities.ChainOptimismSepolia: DomainOptimismSepolia,
	entities.ChainArbitrumSepolia: DomainArbitrumSepolia,
	entities.ChainBaseSepolia:     DomainBaseSepolia,
}

// DomainNames maps domain IDs to human-readable names for logging.
var DomainNames = map[uint32]string{
	DomainEthereumSepolia: "Ethereum Sepolia",
	DomainAvalancheFuji:   "Avalanche Fuji",
	DomainOptimismSepolia: "Optimism Sepolia",
	DomainArbitrumSepolia: "Arbitrum Sepolia",
	DomainBaseSepolia:     "Base Sepolia",
}
