/**
 * @description
 * This file defines the wallet-level value types shared by every component of the
 * wallet-service: wallet addresses, token amounts and the storage keys used to
 * persist them in the client's key-value store.
 *
 * @notes
 * - Amounts are kept as the decimal string the user typed (or the payee encoded).
 *   They are only parsed for validation so round-trips through a QR payload are exact.
 * - The "0x" placeholder means "identity unknown". It is a boundary value only; the
 *   resolver tracks resolution with an explicit flag.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum/common: hex address validation.
 * - github.com/shopspring/decimal: exact decimal parsing of amounts.
 */

package domain

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Storage keys written by the wallet client and read by this service.
const (
	KeyWalletAddress       = "WALLET_ADDRESS"
	KeyPrivateKey          = "PRIVATE_KEY"
	KeySendingAmount       = "SENDING_AMOUNT"
	KeySenderWalletAddress = "SENDER_WALLET_ADDRESS"
)

// PlaceholderAddress is surfaced when the wallet identity could not be resolved.
const PlaceholderAddress WalletAddress = "0x"

// WalletAddress is a 0x-prefixed, 40 hex character account address.
type WalletAddress string

// IsWalletAddress reports whether s is a 0x-prefixed 20 byte hex address.
func IsWalletAddress(s string) bool {
	if len(s) != 42 || !(strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		return false
	}
	return common.IsHexAddress(s)
}

// Valid reports whether the address passes the wallet address format check.
func (a WalletAddress) Valid() bool {
	return IsWalletAddress(string(a))
}

// IsPlaceholder reports whether a is the unresolved-identity sentinel.
func (a WalletAddress) IsPlaceholder() bool {
	return a == PlaceholderAddress
}

func (a WalletAddress) String() string {
	return string(a)
}

// Short renders an address as 0x1234…abcd for log lines.
func (a WalletAddress) Short() string {
	s := string(a)
	if len(s) <= 12 {
		return s
	}
	return s[:6] + "…" + s[len(s)-4:]
}

var amountPattern = regexp.MustCompile(`^\d*(\.\d*)?$`)

// Amount is a non-negative decimal quantity kept in its textual form.
type Amount string

// Valid reports whether the amount matches the accepted input grammar.
// The empty string is valid input but never usable.
func (a Amount) Valid() bool {
	return amountPattern.MatchString(string(a))
}

// Decimal parses the amount. Inputs such as "5." and ".5" are accepted.
func (a Amount) Decimal() (decimal.Decimal, error) {
	s := string(a)
	if !a.Valid() || s == "" || s == "." {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	s = strings.TrimSuffix(s, ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// Usable reports whether the amount is valid and strictly greater than zero.
func (a Amount) Usable() bool {
	d, err := a.Decimal()
	if err != nil {
		return false
	}
	return d.IsPositive()
}

func (a Amount) String() string {
	return string(a)
}
