package evm

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/bridge-service/bridge_service/internal/domain/entities"
	"github.com/bridge-service/bridge_service/internal/infrastructure/config"
)

// ClientCache lazily dials and caches one RPC client per chain
type ClientCache struct {
	mu      sync.Mutex
	chains  map[string]config.ChainConfig
	clients map[entities.Chain]*ethclient.Client
}

// NewClientCache creates a client cache over the configured chain table
func NewClientCache(chains map[string]config.ChainConfig) *ClientCache {
	return &ClientCache{
		chains:  chains,
		clients: make(map[entities.Chain]*ethclient.Client),
	}
}

// Get returns the RPC client for a chain, dialing it on first use
func (c *ClientCache) Get(chain entities.Chain) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[chain]; ok {
		return client, nil
	}

	cc, ok := c.chains[string(chain)]
	if !ok {
		return nil, fmt.Errorf("chain %s is not configured", chain)
	}

	client, err := ethclient.Dial(cc.RPC)
	if err != nil {
		return nil, fmt.Errorf("dial rpc for %s: %w", chain, err)
	}
	c.clients[chain] = client
	return client, nil
}

// Close closes all dialed clients
func (c *ClientCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, client := range c.clients {
		client.Close()
	}
	c.clients = make(map[entities.Chain]*ethclient.Client)
}
