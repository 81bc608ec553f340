package attestation

import "fmt"

// ErrorResponse represents an attestation API error response
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("attestation API error [%d]: %s (code: %s)", e.StatusCode, e.Message, e.Code)
}

func (e *ErrorResponse) IsNotFound() bool {
	return e.StatusCode == 404
}

func (e *ErrorResponse) IsRateLimited() bool {
	return e.StatusCode == 429
}

// ErrTimeout indicates the polling window elapsed before the attestation
// reached complete status. The burn is still valid; the lookup is safe to
// retry later with the same transaction hash.
var ErrTimeout = fmt.Errorf("attestation polling timed out")

// ErrNoMessages indicates no messages found for the transaction
var ErrNoMessages = fmt.Errorf("no messages found for transaction")
