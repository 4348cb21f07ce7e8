/**
 * @description
 * Domain models for an outgoing transfer as it moves across the wallet screens:
 * the persisted draft, the orchestrator session and the receipt returned by the
 * chain relay, plus the notices surfaced to the user.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// DraftTransaction is the unsent transfer the sender is about to confirm.
// Absent fields are empty strings, mirroring the key-value store.
type DraftTransaction struct {
	Recipient WalletAddress `json:"recipient_address"`
	Amount    Amount        `json:"amount"`
}

// Empty reports whether neither field is set.
func (d DraftTransaction) Empty() bool {
	return d.Recipient == "" && d.Amount == ""
}

// Usable reports whether the draft can be confirmed. A missing or malformed
// recipient, or an empty/zero amount, means "no usable draft", not an empty transaction.
func (d DraftTransaction) Usable() bool {
	return d.Recipient.Valid() && d.Amount.Usable()
}

// Phase is the orchestrator state of a transfer session.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseDrafting   Phase = "drafting"
	PhaseConfirming Phase = "confirming"
	PhaseSubmitting Phase = "submitting"
	PhaseSettled    Phase = "settled"
	PhaseFailed     Phase = "failed"
)

// Terminal reports whether the phase waits for an explicit reset.
func (p Phase) Terminal() bool {
	return p == PhaseSettled || p == PhaseFailed
}

// Receipt is what the chain relay returns for an accepted transfer.
type Receipt struct {
	TxHash      string `json:"tx_hash"`
	Status      string `json:"status,omitempty"`
	BlockNumber uint64 `json:"block_number,omitempty"`
}

// BridgeReadiness describes one address resolution chain. It is never persisted.
type BridgeReadiness struct {
	Attempts int  `json:"attempts"`
	Ready    bool `json:"ready"`
}

// NoticeKind identifies a user-visible notification.
type NoticeKind string

const (
	NoticeBridgeUnavailable NoticeKind = "bridge_unavailable"
	NoticeInvalidCode       NoticeKind = "invalid_code"
	NoticeInvalidAddress    NoticeKind = "invalid_address"
	NoticeInvalidAmount     NoticeKind = "invalid_amount"
	NoticePaymentRequest    NoticeKind = "payment_request_loaded"
	NoticeRecipientAdded    NoticeKind = "recipient_added"
	NoticeNoDraft           NoticeKind = "no_draft"
	NoticeTransferSettled   NoticeKind = "transfer_settled"
	NoticeTransferFailed    NoticeKind = "transfer_failed"
)

// Notice levels.
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// Notice is a message destined for the user of a session (toast/alert).
type Notice struct {
	Kind      NoticeKind        `json:"kind"`
	Level     string            `json:"level"`
	Message   string            `json:"message"`
	SessionID uuid.UUID         `json:"session_id"`
	Draft     *DraftTransaction `json:"draft,omitempty"`
	Receipt   *Receipt          `json:"receipt,omitempty"`
	At        time.Time         `json:"at"`
}

// Session is the working state of one transfer orchestrator.
type Session struct {
	ID        uuid.UUID        `json:"id"`
	Phase     Phase            `json:"phase"`
	Draft     DraftTransaction `json:"draft"`
	Sender    WalletAddress    `json:"sender_address,omitempty"`
	Receipt   *Receipt         `json:"receipt,omitempty"`
	LastError string           `json:"last_error,omitempty"`
	Notice    *Notice          `json:"notice,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}
