package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

const (
	// DefaultTTL is how long a stored response stays replayable
	DefaultTTL = 24 * time.Hour

	minKeyLength = 8
	maxKeyLength = 128
)

// Response is a captured handler response
type Response struct {
	Status int
	Body   []byte
}

// ValidateKey checks an idempotency key's shape before accepting it
func ValidateKey(key string) error {
	if len(key) < minKeyLength {
		return fmt.Errorf("idempotency key must be at least %d characters", minKeyLength)
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("idempotency key must be at most %d characters", maxKeyLength)
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_':
		default:
			return fmt.Errorf("idempotency key contains invalid character %q", r)
		}
	}
	return nil
}

// ReadBody reads at most maxSize bytes of a request body
func ReadBody(body io.Reader, maxSize int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxSize)
	}
	return data, nil
}

// HashRequest returns a stable fingerprint of a request body
func HashRequest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// ShouldReturnCached decides whether a stored response may be replayed for a
// repeated key. A key reused with a different request body is a conflict,
// not a replay.
func ShouldReturnCached(cached *Response, requestHash, storedHash string) (bool, string) {
	if requestHash != storedHash {
		return false, "idempotency key was already used with a different request body"
	}
	if cached.Status >= 500 {
		return false, "previous attempt failed with a server error; retry is allowed"
	}
	return true, ""
}
