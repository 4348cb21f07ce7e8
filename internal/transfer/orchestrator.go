/**
 * @description
 * The Orchestrator drives one client's outgoing transfer through
 * Idle -> Drafting -> Confirming -> Submitting -> Settled | Failed.
 *
 * Every step except the relay call runs under a step lock, so steps of one
 * session never interleave. Confirm and Retry move the session to Submitting
 * inside that lock and release it before calling the relay. A second Confirm
 * therefore sees Submitting and is rejected instead of waiting its turn.
 *
 * @dependencies
 * - internal/bridge: readiness check before submission.
 * - internal/paycode: decoding of scanned payment codes.
 * - github.com/google/uuid: session identifiers.
 */

package transfer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/transfa/wallet-service/internal/bridge"
	"github.com/transfa/wallet-service/internal/domain"
	"github.com/transfa/wallet-service/internal/paycode"
)

// DefaultSubmitTimeout bounds one relay submission.
const DefaultSubmitTimeout = 30 * time.Second

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("transfer session closed")

var errEmptyReceipt = errors.New("relay returned no receipt")

// Submitter hands a transfer to the chain relay. A nil receipt means the relay
// did not accept the transfer.
type Submitter interface {
	SubmitTransfer(ctx context.Context, recipient domain.WalletAddress, amount domain.Amount) (*domain.Receipt, error)
}

// Notifier receives user-facing notices. Implementations must not block for long.
type Notifier interface {
	Notify(ctx context.Context, notice domain.Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, notice domain.Notice)

func (f NotifierFunc) Notify(ctx context.Context, notice domain.Notice) { f(ctx, notice) }

// AddressResolver resolves the sender's own wallet address.
type AddressResolver interface {
	Resolve(ctx context.Context) (domain.WalletAddress, domain.BridgeReadiness, error)
	Close()
}

// DraftStore persists the single draft slot.
type DraftStore interface {
	Save(ctx context.Context, draft domain.DraftTransaction) error
	Load(ctx context.Context) domain.DraftTransaction
	Reset(ctx context.Context) error
}

// Deps are the collaborators of an Orchestrator. Gate and Notifier are optional.
type Deps struct {
	Drafts        DraftStore
	Resolver      AddressResolver
	Gate          bridge.Gate
	Submitter     Submitter
	Notifier      Notifier
	SubmitTimeout time.Duration
}

// Orchestrator is the transfer state machine of one wallet client.
type Orchestrator struct {
	drafts        DraftStore
	resolver      AddressResolver
	gate          bridge.Gate
	submitter     Submitter
	notifier      Notifier
	submitTimeout time.Duration

	step sync.Mutex

	mu      sync.Mutex
	session domain.Session
	closed  bool
	// settled is a draft that was submitted successfully but is still persisted.
	settled domain.DraftTransaction
}

func New(deps Deps) *Orchestrator {
	gate := deps.Gate
	if gate == nil {
		gate = bridge.Always
	}
	timeout := deps.SubmitTimeout
	if timeout <= 0 {
		timeout = DefaultSubmitTimeout
	}
	return &Orchestrator{
		drafts:        deps.Drafts,
		resolver:      deps.Resolver,
		gate:          gate,
		submitter:     deps.Submitter,
		notifier:      deps.Notifier,
		submitTimeout: timeout,
		session:       domain.Session{Phase: domain.PhaseIdle, UpdatedAt: time.Now().UTC()},
	}
}

// Snapshot returns a copy of the current session.
func (o *Orchestrator) Snapshot() domain.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// Begin records a new draft and enters Drafting. It is also the path taken when
// the user edits the draft before confirming.
func (o *Orchestrator) Begin(ctx context.Context, recipient domain.WalletAddress, amount domain.Amount) (domain.Session, error) {
	o.step.Lock()
	defer o.step.Unlock()

	if err := o.guard("begin", domain.PhaseIdle, domain.PhaseDrafting); err != nil {
		return o.Snapshot(), err
	}
	if err := o.begin(ctx, recipient, amount); err != nil {
		return o.Snapshot(), err
	}
	return o.Snapshot(), nil
}

// Restore resumes a draft persisted by an earlier session.
func (o *Orchestrator) Restore(ctx context.Context) (domain.Session, error) {
	o.step.Lock()
	defer o.step.Unlock()

	if err := o.guard("restore", domain.PhaseIdle); err != nil {
		return o.Snapshot(), err
	}
	draft := o.loadDraft(ctx)
	if !draft.Usable() {
		o.notify(ctx, domain.NoticeNoDraft, domain.LevelInfo, "There is no saved transfer to continue.", nil)
		return o.Snapshot(), domain.ErrNoDraftPresent
	}

	o.mu.Lock()
	o.session = domain.Session{ID: uuid.New(), Phase: domain.PhaseDrafting, Draft: draft}
	o.touch()
	o.mu.Unlock()

	log.Printf("level=info component=transfer msg=\"draft restored\" session_id=%s recipient=%s", o.Snapshot().ID, draft.Recipient.Short())
	return o.Snapshot(), nil
}

// Review reloads the persisted draft, resolves the sender identity and enters
// Confirming. An unresolved sender is shown as the placeholder.
func (o *Orchestrator) Review(ctx context.Context) (domain.Session, error) {
	o.step.Lock()
	defer o.step.Unlock()

	if err := o.guard("review", domain.PhaseDrafting, domain.PhaseConfirming); err != nil {
		return o.Snapshot(), err
	}
	err := o.review(ctx)
	return o.Snapshot(), err
}

// ApplyScan decodes scanned text. A payment request starts a draft and moves
// straight to review; an address-only code is returned for prefilling the form.
func (o *Orchestrator) ApplyScan(ctx context.Context, text string) (domain.PaymentPayload, domain.Session, error) {
	o.step.Lock()
	defer o.step.Unlock()

	if err := o.guard("scan", domain.PhaseIdle, domain.PhaseDrafting); err != nil {
		return domain.PaymentPayload{}, o.Snapshot(), err
	}

	payload, err := paycode.Decode(text)
	if err != nil {
		o.rejectScan(ctx, err)
		return domain.PaymentPayload{}, o.Snapshot(), err
	}

	if !payload.IsPaymentRequest() {
		o.notify(ctx, domain.NoticeRecipientAdded, domain.LevelInfo, "Recipient address added.", nil)
		return payload, o.Snapshot(), nil
	}

	if err := o.begin(ctx, payload.Address, payload.Amount); err != nil {
		return payload, o.Snapshot(), err
	}
	o.notify(ctx, domain.NoticePaymentRequest, domain.LevelInfo,
		fmt.Sprintf("Payment request for %s loaded.", payload.Amount), nil)
	err = o.review(ctx)
	return payload, o.Snapshot(), err
}

// Scan waits for exactly one result from scanner and applies it.
func (o *Orchestrator) Scan(ctx context.Context, scanner Scanner) (domain.PaymentPayload, domain.Session, error) {
	if err := o.guard("scan", domain.PhaseIdle, domain.PhaseDrafting); err != nil {
		return domain.PaymentPayload{}, o.Snapshot(), err
	}
	text, err := scanner.Scan(ctx)
	if err != nil {
		return domain.PaymentPayload{}, o.Snapshot(), err
	}
	return o.ApplyScan(ctx, text)
}

// Confirm submits the reviewed draft.
func (o *Orchestrator) Confirm(ctx context.Context) (domain.Session, error) {
	o.step.Lock()
	if err := o.guard("confirm", domain.PhaseConfirming); err != nil {
		o.step.Unlock()
		return o.Snapshot(), err
	}
	o.mu.Lock()
	draft := o.session.Draft
	o.enterSubmitting()
	o.mu.Unlock()
	o.step.Unlock()

	return o.submit(ctx, draft)
}

// Retry resubmits the persisted draft after a failure.
func (o *Orchestrator) Retry(ctx context.Context) (domain.Session, error) {
	o.step.Lock()
	if err := o.guard("retry", domain.PhaseFailed); err != nil {
		o.step.Unlock()
		return o.Snapshot(), err
	}
	draft := o.loadDraft(ctx)
	if !draft.Usable() {
		o.step.Unlock()
		o.notify(ctx, domain.NoticeNoDraft, domain.LevelInfo, "There is no saved transfer to retry.", nil)
		return o.Snapshot(), domain.ErrNoDraftPresent
	}
	o.mu.Lock()
	o.session.Draft = draft
	o.enterSubmitting()
	o.mu.Unlock()
	o.step.Unlock()

	return o.submit(ctx, draft)
}

// Cancel discards the draft and returns to Idle. An in-flight submission cannot be cancelled.
func (o *Orchestrator) Cancel(ctx context.Context) (domain.Session, error) {
	o.step.Lock()
	defer o.step.Unlock()

	if err := o.guard("cancel", domain.PhaseIdle, domain.PhaseDrafting, domain.PhaseConfirming, domain.PhaseFailed); err != nil {
		return o.Snapshot(), err
	}
	if err := o.drafts.Reset(ctx); err != nil {
		log.Printf("level=warn component=transfer msg=\"draft reset failed\" op=cancel err=%v", err)
	}
	o.toIdle()
	return o.Snapshot(), nil
}

// Reset acknowledges a settled or failed transfer. The persisted draft is left as is.
func (o *Orchestrator) Reset(ctx context.Context) (domain.Session, error) {
	o.step.Lock()
	defer o.step.Unlock()

	if err := o.guard("reset", domain.PhaseIdle, domain.PhaseSettled, domain.PhaseFailed); err != nil {
		return o.Snapshot(), err
	}
	if o.Snapshot().Phase.Terminal() {
		o.toIdle()
	}
	return o.Snapshot(), nil
}

// Close tears the session down and abandons pending address lookups.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	if o.resolver != nil {
		o.resolver.Close()
	}
}

// Logout runs clear and discards the draft while holding the step lock, so no
// confirmation can start until the session is closed. It is refused while a
// transfer is being submitted.
func (o *Orchestrator) Logout(ctx context.Context, clear func(context.Context) error) error {
	o.step.Lock()
	defer o.step.Unlock()

	if err := o.guard("logout", domain.PhaseIdle, domain.PhaseDrafting, domain.PhaseConfirming, domain.PhaseSettled, domain.PhaseFailed); err != nil {
		return err
	}
	if clear != nil {
		if err := clear(ctx); err != nil {
			return err
		}
	}
	if err := o.drafts.Reset(ctx); err != nil {
		log.Printf("level=warn component=transfer msg=\"draft reset failed\" op=logout err=%v", err)
	}
	o.toIdle()
	o.Close()
	return nil
}

// loadDraft reads the persisted draft. A draft left behind by a settled transfer
// reads as absent, and clearing it is attempted again.
func (o *Orchestrator) loadDraft(ctx context.Context) domain.DraftTransaction {
	draft := o.drafts.Load(ctx)

	o.mu.Lock()
	settled := o.settled
	o.mu.Unlock()
	if settled.Empty() || draft != settled {
		return draft
	}

	if err := o.drafts.Reset(ctx); err != nil {
		log.Printf("level=warn component=transfer msg=\"draft reset failed\" op=reload err=%v", err)
	} else {
		o.mu.Lock()
		o.settled = domain.DraftTransaction{}
		o.mu.Unlock()
	}
	return domain.DraftTransaction{}
}

func (o *Orchestrator) begin(ctx context.Context, recipient domain.WalletAddress, amount domain.Amount) error {
	if !recipient.Valid() {
		o.notify(ctx, domain.NoticeInvalidAddress, domain.LevelError, "Please enter a valid wallet address.", nil)
		return fmt.Errorf("%w: %q", domain.ErrInvalidAddress, recipient)
	}
	if !amount.Usable() {
		o.notify(ctx, domain.NoticeInvalidAmount, domain.LevelError, "Please enter a valid amount.", nil)
		return fmt.Errorf("%w: %q", domain.ErrInvalidAmount, amount)
	}

	draft := domain.DraftTransaction{Recipient: recipient, Amount: amount}
	if err := o.drafts.Save(ctx, draft); err != nil {
		log.Printf("level=error component=transfer msg=\"draft save failed\" err=%v", err)
		return fmt.Errorf("save draft: %w", err)
	}

	o.mu.Lock()
	o.settled = domain.DraftTransaction{}
	if o.session.Phase == domain.PhaseIdle {
		o.session = domain.Session{ID: uuid.New()}
	}
	o.session.Phase = domain.PhaseDrafting
	o.session.Draft = draft
	o.session.Sender = ""
	o.touch()
	id := o.session.ID
	o.mu.Unlock()

	log.Printf("level=info component=transfer msg=\"draft saved\" session_id=%s recipient=%s amount=%s", id, recipient.Short(), amount)
	return nil
}

func (o *Orchestrator) review(ctx context.Context) error {
	draft := o.loadDraft(ctx)
	if !draft.Usable() {
		o.mu.Lock()
		o.session.Phase = domain.PhaseDrafting
		o.touch()
		o.mu.Unlock()
		o.notify(ctx, domain.NoticeNoDraft, domain.LevelInfo, "There is no transfer to confirm.", nil)
		return domain.ErrNoDraftPresent
	}

	sender, readiness, err := o.resolver.Resolve(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrBridgeUnavailable) {
			o.mu.Lock()
			o.session.Phase = domain.PhaseDrafting
			o.session.Draft = draft
			o.session.LastError = err.Error()
			o.touch()
			o.mu.Unlock()
			o.notify(ctx, domain.NoticeBridgeUnavailable, domain.LevelError, "Wallet is not ready yet. Please try again.", nil)
		}
		return err
	}

	o.mu.Lock()
	o.session.Phase = domain.PhaseConfirming
	o.session.Draft = draft
	o.session.Sender = sender
	o.session.LastError = ""
	o.touch()
	id := o.session.ID
	o.mu.Unlock()

	log.Printf("level=info component=transfer msg=\"transfer ready for confirmation\" session_id=%s sender=%s attempts=%d", id, sender.Short(), readiness.Attempts)
	return nil
}

func (o *Orchestrator) submit(ctx context.Context, draft domain.DraftTransaction) (domain.Session, error) {
	// The relay call outlives the caller's request; only the submit timeout bounds it.
	submitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.submitTimeout)
	defer cancel()

	id := o.Snapshot().ID
	log.Printf("level=info component=transfer msg=\"submitting transfer\" session_id=%s recipient=%s amount=%s", id, draft.Recipient.Short(), draft.Amount)

	ready, err := o.gate.AwaitReady(submitCtx)
	if err != nil {
		return o.fail(ctx, err)
	}
	if !ready {
		return o.fail(ctx, domain.ErrBridgeUnavailable)
	}

	receipt, err := o.submitter.SubmitTransfer(submitCtx, draft.Recipient, draft.Amount)
	if err != nil {
		return o.fail(ctx, err)
	}
	if receipt == nil || receipt.TxHash == "" {
		return o.fail(ctx, errEmptyReceipt)
	}

	var lastError string
	resetErr := o.drafts.Reset(submitCtx)
	if resetErr != nil {
		log.Printf("level=warn component=transfer msg=\"draft reset failed\" op=settle session_id=%s err=%v", id, resetErr)
		lastError = fmt.Sprintf("transfer settled but saved draft was not cleared: %v", resetErr)
	}

	o.mu.Lock()
	o.session.Phase = domain.PhaseSettled
	o.session.Receipt = receipt
	o.session.Draft = domain.DraftTransaction{}
	o.session.LastError = lastError
	if resetErr != nil {
		o.settled = draft
	}
	o.touch()
	o.mu.Unlock()

	log.Printf("level=info component=transfer msg=\"transfer settled\" session_id=%s tx_hash=%s", id, receipt.TxHash)
	o.notify(ctx, domain.NoticeTransferSettled, domain.LevelInfo, "Transfer completed.", receipt)
	return o.Snapshot(), nil
}

func (o *Orchestrator) fail(ctx context.Context, cause error) (domain.Session, error) {
	err := fmt.Errorf("%w: %w", domain.ErrTransferFailed, cause)

	o.mu.Lock()
	o.session.Phase = domain.PhaseFailed
	o.session.LastError = err.Error()
	o.touch()
	id := o.session.ID
	o.mu.Unlock()

	log.Printf("level=error component=transfer msg=\"transfer failed\" session_id=%s err=%v", id, cause)
	o.notify(ctx, domain.NoticeTransferFailed, domain.LevelError, "Transfer failed. Your draft was kept so you can retry.", nil)
	return o.Snapshot(), err
}

func (o *Orchestrator) rejectScan(ctx context.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAddress):
		o.notify(ctx, domain.NoticeInvalidAddress, domain.LevelError, "The code contains an invalid wallet address.", nil)
	case errors.Is(err, domain.ErrInvalidAmount):
		o.notify(ctx, domain.NoticeInvalidAmount, domain.LevelError, "The code contains an invalid amount.", nil)
	default:
		o.notify(ctx, domain.NoticeInvalidCode, domain.LevelError, "Invalid QR code format.", nil)
	}
}

// guard rejects an operation that is not allowed in the current phase.
func (o *Orchestrator) guard(op string, allowed ...domain.Phase) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	current := o.session.Phase
	for _, phase := range allowed {
		if current == phase {
			return nil
		}
	}
	if current == domain.PhaseSubmitting && (op == "confirm" || op == "retry" || op == "cancel" || op == "logout") {
		return domain.ErrTransferAlreadyInFlight
	}
	return fmt.Errorf("%w: cannot %s while %s", domain.ErrInvalidTransition, op, current)
}

// enterSubmitting must be called with mu held.
func (o *Orchestrator) enterSubmitting() {
	o.session.Phase = domain.PhaseSubmitting
	o.session.Receipt = nil
	o.session.LastError = ""
	o.touch()
}

func (o *Orchestrator) toIdle() {
	o.mu.Lock()
	o.session = domain.Session{Phase: domain.PhaseIdle}
	o.touch()
	o.mu.Unlock()
}

// touch must be called with mu held.
func (o *Orchestrator) touch() {
	o.session.UpdatedAt = time.Now().UTC()
}

func (o *Orchestrator) notify(ctx context.Context, kind domain.NoticeKind, level, message string, receipt *domain.Receipt) {
	o.mu.Lock()
	draft := o.session.Draft
	notice := domain.Notice{
		Kind:      kind,
		Level:     level,
		Message:   message,
		SessionID: o.session.ID,
		Receipt:   receipt,
		At:        time.Now().UTC(),
	}
	if !draft.Empty() {
		notice.Draft = &draft
	}
	o.session.Notice = &notice
	o.mu.Unlock()

	if o.notifier != nil {
		o.notifier.Notify(context.WithoutCancel(ctx), notice)
	}
}
