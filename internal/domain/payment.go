package domain

import "fmt"

// PayloadKind tags the variant held by a PaymentPayload.
type PayloadKind string

const (
	// PayloadAddressOnly is a profile/identity code carrying only an address.
	PayloadAddressOnly PayloadKind = "address_only"
	// PayloadPaymentRequest is a payment demand carrying an address and amount.
	PayloadPaymentRequest PayloadKind = "payment_request"
)

// PaymentPayload is the decoded content of a scannable payment code.
// Values are only built through NewAddressOnly and NewPaymentRequest so the
// address and amount invariants always hold.
type PaymentPayload struct {
	Kind    PayloadKind   `json:"kind"`
	Address WalletAddress `json:"wallet_address"`
	Amount  Amount        `json:"coin_amount,omitempty"`
}

// NewAddressOnly builds an address-only payload.
func NewAddressOnly(address string) (PaymentPayload, error) {
	if !IsWalletAddress(address) {
		return PaymentPayload{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return PaymentPayload{Kind: PayloadAddressOnly, Address: WalletAddress(address)}, nil
}

// NewPaymentRequest builds a payment-request payload. The amount must be usable.
func NewPaymentRequest(address string, amount Amount) (PaymentPayload, error) {
	if !IsWalletAddress(address) {
		return PaymentPayload{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	if !amount.Usable() {
		return PaymentPayload{}, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return PaymentPayload{Kind: PayloadPaymentRequest, Address: WalletAddress(address), Amount: amount}, nil
}

// IsPaymentRequest reports whether the payload demands a specific amount.
func (p PaymentPayload) IsPaymentRequest() bool {
	return p.Kind == PayloadPaymentRequest
}
