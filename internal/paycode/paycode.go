// Package paycode encodes and decodes the text carried by scannable payment codes.
//
// A code is either a JSON object
//
//	{"wallet_address":"0x…","coin_amount":"12.5"}
//
// or, for decoding only, a bare wallet address.
package paycode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/transfa/wallet-service/internal/domain"
)

type wirePayload struct {
	WalletAddress string `json:"wallet_address"`
	CoinAmount    string `json:"coin_amount,omitempty"`
}

// Encode renders the payment code for address. The amount is only included when
// it is usable, so a zero or empty amount yields an identity code.
func Encode(address domain.WalletAddress, amount domain.Amount) (string, error) {
	if !address.Valid() {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidAddress, address)
	}
	payload := wirePayload{WalletAddress: address.String()}
	if amount.Usable() {
		payload.CoinAmount = amount.String()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Decode parses scanned text. JSON objects are tried first; anything else is
// checked as a bare address before the text is rejected.
func Decode(text string) (domain.PaymentPayload, error) {
	fields, isObject := parseObject(text)
	if isObject {
		return decodeObject(fields)
	}

	candidate := strings.TrimSpace(text)
	if domain.IsWalletAddress(candidate) {
		return domain.NewAddressOnly(candidate)
	}
	return domain.PaymentPayload{}, domain.ErrInvalidPayload
}

func parseObject(text string) (map[string]json.RawMessage, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return nil, false
	}
	return fields, true
}

func decodeObject(fields map[string]json.RawMessage) (domain.PaymentPayload, error) {
	var address string
	if raw, ok := fields["wallet_address"]; ok {
		if err := json.Unmarshal(raw, &address); err != nil {
			return domain.PaymentPayload{}, fmt.Errorf("%w: wallet_address is not a string", domain.ErrInvalidAddress)
		}
	}
	if !domain.IsWalletAddress(address) {
		return domain.PaymentPayload{}, fmt.Errorf("%w: %q", domain.ErrInvalidAddress, address)
	}

	amount, present, err := decodeAmount(fields["coin_amount"])
	if err != nil {
		return domain.PaymentPayload{}, err
	}
	if !present {
		return domain.NewAddressOnly(address)
	}
	return domain.NewPaymentRequest(address, amount)
}

// decodeAmount accepts a JSON string or number. null, "", a numeric zero and a
// missing field all mean "no amount". The string "0" is an invalid amount.
func decodeAmount(raw json.RawMessage) (domain.Amount, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false, nil
	}

	var text string
	switch raw[0] {
	case '"':
		if err := json.Unmarshal(raw, &text); err != nil {
			return "", false, fmt.Errorf("%w: %s", domain.ErrInvalidAmount, raw)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return "", false, nil
		}
	default:
		var number json.Number
		if err := json.Unmarshal(raw, &number); err != nil {
			return "", false, fmt.Errorf("%w: %s", domain.ErrInvalidAmount, raw)
		}
		text = number.String()
		if value, err := decimal.NewFromString(text); err == nil && value.IsZero() {
			return "", false, nil
		}
	}

	amount := domain.Amount(text)
	if !amount.Usable() {
		return "", false, fmt.Errorf("%w: %q", domain.ErrInvalidAmount, text)
	}
	return amount, true, nil
}
