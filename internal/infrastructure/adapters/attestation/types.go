package attestation

// MessagesResponse represents the response from the attestation API
type MessagesResponse struct {
	Messages []Message `json:"messages"`
}

// Message represents a single bridged message with its attestation
type Message struct {
	Status         string `json:"status"`
	Attestation    string `json:"attestation"`
	Message        string `json:"message"`
	EventNonce     string `json:"eventNonce"`
	CCTPVersion    int    `json:"cctpVersion"`
	DecodedMessage any    `json:"decodedMessage,omitempty"`
	DelayReason    string `json:"delayReason,omitempty"`
}

// FeesResponse represents the fees for a cross-chain transfer
type FeesResponse struct {
	SourceDomain      uint32 `json:"sourceDomain"`
	DestinationDomain uint32 `json:"destinationDomain"`
	FastTransferFee   Fee    `json:"fastTransferFee"`
	StandardFee       Fee    `json:"standardFee"`
}

// Fee represents fee details
type Fee struct {
	MinimumFee uint64 `json:"minimumFee"` // in basis points
}
