package transfer

import "errors"

var (
	// ErrUnsupportedChain is returned when a request references a chain
	// outside the configured set.
	ErrUnsupportedChain = errors.New("unsupported chain")

	// ErrSameChain is returned when source and destination are equal.
	ErrSameChain = errors.New("source and destination chain must differ")

	// ErrBurnFailed wraps a source-chain burn rejection. No funds moved;
	// resubmitting the request is safe.
	ErrBurnFailed = errors.New("burn failed")

	// ErrMintFailed wraps a destination-chain mint rejection after a valid
	// attestation was obtained. The attestation stays valid; retrying the
	// mint with the same message is safe.
	ErrMintFailed = errors.New("mint failed")
)
