package evm

import (
	"crypto/ecdsa"
	"fmt"
	"strings"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/bridge-service/bridge_service/internal/domain/entities"
)

// Keystore resolves opaque signing credential references to private keys.
// The API layer only ever handles references; raw key material stays here.
type Keystore struct {
	mu   sync.RWMutex
	keys map[entities.SigningCredential]*ecdsa.PrivateKey
}

// NewKeystore creates an empty keystore
func NewKeystore() *Keystore {
	return &Keystore{keys: make(map[entities.SigningCredential]*ecdsa.PrivateKey)}
}

// Register parses a hex-encoded private key and stores it under the given
// credential reference
func (k *Keystore) Register(ref entities.SigningCredential, privateKeyHex string) error {
	if ref == "" {
		return fmt.Errorf("credential reference is required")
	}
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return fmt.Errorf("parse private key: %w", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[ref] = privateKey
	return nil
}

// Resolve returns the private key and derived address for a credential
func (k *Keystore) Resolve(ref entities.SigningCredential) (*ecdsa.PrivateKey, ethcommon.Address, error) {
	k.mu.RLock()
	privateKey, ok := k.keys[ref]
	k.mu.RUnlock()
	if !ok {
		return nil, ethcommon.Address{}, fmt.Errorf("unknown signing credential %q", ref)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, ethcommon.Address{}, fmt.Errorf("invalid public key for credential %q", ref)
	}
	return privateKey, crypto.PubkeyToAddress(*publicKey), nil
}

// Address returns only the derived address for a credential
func (k *Keystore) Address(ref entities.SigningCredential) (string, error) {
	_, addr, err := k.Resolve(ref)
	if err != nil {
		return "", err
	}
	return addr.Hex(), nil
}

// Has reports whether a credential is registered
func (k *Keystore) Has(ref entities.SigningCredential) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.keys[ref]
	return ok
}
