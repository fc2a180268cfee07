package models

// Endpoint describes one side of a payment intent: an address holding
// (or receiving) a specific token on a specific chain.
type Endpoint struct {
	Address string `json:"address" validate:"required"`
	Token   string `json:"token" validate:"required"`
	ChainID int    `json:"chain_id" validate:"required,gt=0"`
	// Amount is an integer string in the token's smallest unit. Required
	// on the sender side; on the recipient side ExpectedAmount is optional.
	Amount         string `json:"amount,omitempty" validate:"omitempty,number"`
	ExpectedAmount string `json:"expected_amount,omitempty" validate:"omitempty,number"`
	// Balance is a hint from the caller's balance layer, not read by the engine.
	Balance string `json:"balance,omitempty"`
}

// IntentMetadata carries optional caller-supplied annotations
type IntentMetadata struct {
	Message   string `json:"message,omitempty"`
	Reference string `json:"reference,omitempty"`
	Memo      string `json:"memo,omitempty"`
}

// PaymentIntent is the caller's request to move value. It is constructed
// once by the caller and treated as immutable for the duration of one
// aggregation and execution cycle.
type PaymentIntent struct {
	Sender    Endpoint        `json:"sender" validate:"required"`
	Recipient Endpoint        `json:"recipient" validate:"required"`
	Metadata  *IntentMetadata `json:"metadata,omitempty"`
}

// SameChain reports whether the intent stays on a single chain
func (pi PaymentIntent) SameChain() bool {
	return pi.Sender.ChainID == pi.Recipient.ChainID
}
