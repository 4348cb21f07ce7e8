/**
 * @description
 * This file contains the HTTP handlers for the wallet-service's API endpoints.
 * Handlers parse the request, call the application service or the caller's
 * transfer session, and write the JSON response. Domain errors are mapped onto
 * HTTP statuses in one place (`statusFor`).
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/transfer: service logic and models.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/transfa/wallet-service/internal/app"
	"github.com/transfa/wallet-service/internal/domain"
	"github.com/transfa/wallet-service/internal/resolver"
	"github.com/transfa/wallet-service/internal/transfer"
)

// WalletHandlers holds the application service that handlers will use.
type WalletHandlers struct {
	service *app.Service
}

// NewWalletHandlers creates a new WalletHandlers instance.
func NewWalletHandlers(service *app.Service) *WalletHandlers {
	return &WalletHandlers{service: service}
}

type walletAddressResponse struct {
	WalletAddress domain.WalletAddress `json:"wallet_address"`
	Resolved      bool                 `json:"resolved"`
	Attempts      int                  `json:"attempts"`
}

type bindWalletRequest struct {
	WalletAddress domain.WalletAddress `json:"wallet_address"`
}

type encodePaymentCodeRequest struct {
	CoinAmount *domain.Amount `json:"coin_amount"`
}

type encodePaymentCodeResponse struct {
	Payload string `json:"payload"`
}

type scanRequest struct {
	Text string `json:"text"`
}

type draftRequest struct {
	RecipientAddress domain.WalletAddress `json:"recipient_address"`
	Amount           domain.Amount        `json:"amount"`
}

type sessionResponse struct {
	Session domain.Session         `json:"session"`
	Payload *domain.PaymentPayload `json:"payload,omitempty"`
}

// GetWalletAddressHandler resolves the caller's own wallet address.
func (h *WalletHandlers) GetWalletAddressHandler(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	address, readiness, err := h.service.ResolveAddress(r.Context(), clientID)
	if err != nil {
		h.fail(w, "get_wallet_address", clientID, err)
		return
	}
	h.writeJSON(w, http.StatusOK, walletAddressResponse{
		WalletAddress: address,
		Resolved:      !address.IsPlaceholder(),
		Attempts:      readiness.Attempts,
	})
}

// BindWalletHandler stores the caller's wallet address.
func (h *WalletHandlers) BindWalletHandler(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	var req bindWalletRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	if err := h.service.BindWallet(r.Context(), clientID, req.WalletAddress); err != nil {
		h.fail(w, "bind_wallet", clientID, err)
		return
	}
	h.writeJSON(w, http.StatusOK, walletAddressResponse{WalletAddress: req.WalletAddress, Resolved: true})
}

// ForgetWalletHandler logs the caller out.
func (h *WalletHandlers) ForgetWalletHandler(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	if err := h.service.ForgetWallet(r.Context(), clientID); err != nil {
		h.fail(w, "forget_wallet", clientID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EncodePaymentCodeHandler renders the caller's payment code.
func (h *WalletHandlers) EncodePaymentCodeHandler(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	var req encodePaymentCodeRequest
	if !h.decode(w, r, &req, true) {
		return
	}
	payload, err := h.service.EncodePaymentCode(r.Context(), clientID, req.CoinAmount)
	if err != nil {
		h.fail(w, "encode_payment_code", clientID, err)
		return
	}
	h.writeJSON(w, http.StatusOK, encodePaymentCodeResponse{Payload: payload})
}

// DecodePaymentCodeHandler parses scanned text without changing the session.
func (h *WalletHandlers) DecodePaymentCodeHandler(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	var req scanRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	payload, err := h.service.DecodePaymentCode(req.Text)
	if err != nil {
		h.fail(w, "decode_payment_code", clientID, err)
		return
	}
	h.writeJSON(w, http.StatusOK, payload)
}

// GetSessionHandler returns the caller's transfer session.
func (h *WalletHandlers) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, "get_session", func(o *transfer.Orchestrator, _ context.Context) (domain.Session, error) {
		return o.Snapshot(), nil
	})
}

// GetPrefillHandler returns the persisted draft for refilling the send form.
func (h *WalletHandlers) GetPrefillHandler(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	draft, err := h.service.Prefill(r.Context(), clientID)
	if err != nil {
		h.fail(w, "get_prefill", clientID, err)
		return
	}
	h.writeJSON(w, http.StatusOK, draft)
}

// BeginTransferHandler saves a new draft.
func (h *WalletHandlers) BeginTransferHandler(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	h.withSession(w, r, "begin_transfer", func(o *transfer.Orchestrator, ctx context.Context) (domain.Session, error) {
		return o.Begin(ctx, req.RecipientAddress, req.Amount)
	})
}

func (h *WalletHandlers) RestoreTransferHandler(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, "restore_transfer", (*transfer.Orchestrator).Restore)
}

func (h *WalletHandlers) ReviewTransferHandler(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, "review_transfer", (*transfer.Orchestrator).Review)
}

func (h *WalletHandlers) ConfirmTransferHandler(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, "confirm_transfer", (*transfer.Orchestrator).Confirm)
}

func (h *WalletHandlers) RetryTransferHandler(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, "retry_transfer", (*transfer.Orchestrator).Retry)
}

func (h *WalletHandlers) CancelTransferHandler(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, "cancel_transfer", (*transfer.Orchestrator).Cancel)
}

func (h *WalletHandlers) ResetTransferHandler(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, "reset_transfer", (*transfer.Orchestrator).Reset)
}

// ScanHandler applies scanned text to the caller's session.
func (h *WalletHandlers) ScanHandler(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	var req scanRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	orchestrator, err := h.service.Transfers(clientID)
	if err != nil {
		h.fail(w, "scan", clientID, err)
		return
	}

	payload, session, err := orchestrator.Scan(r.Context(), transfer.StaticScanner(req.Text))
	if err != nil {
		h.fail(w, "scan", clientID, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sessionResponse{Session: session, Payload: &payload})
}

func (h *WalletHandlers) withSession(w http.ResponseWriter, r *http.Request, endpoint string, op func(*transfer.Orchestrator, context.Context) (domain.Session, error)) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	orchestrator, err := h.service.Transfers(clientID)
	if err != nil {
		h.fail(w, endpoint, clientID, err)
		return
	}
	session, err := op(orchestrator, r.Context())
	if err != nil {
		h.fail(w, endpoint, clientID, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sessionResponse{Session: session})
}

func (h *WalletHandlers) clientID(w http.ResponseWriter, r *http.Request) (string, bool) {
	clientID, ok := GetClientID(r.Context())
	if !ok || clientID == "" {
		h.writeError(w, http.StatusUnauthorized, "Could not get client ID from context")
		return "", false
	}
	return clientID, true
}

// decode reads a JSON body into dst. An empty body is accepted when optional is set.
func (h *WalletHandlers) decode(w http.ResponseWriter, r *http.Request, dst interface{}, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	h.writeError(w, http.StatusBadRequest, "Invalid request body")
	return false
}

func (h *WalletHandlers) fail(w http.ResponseWriter, endpoint, clientID string, err error) {
	status := statusFor(err)
	level := "warn"
	if status >= http.StatusInternalServerError {
		level = "error"
	}
	log.Printf("level=%s component=api endpoint=%s outcome=failed client_id=%s status=%d err=%v", level, endpoint, clientID, status, err)
	h.writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrTransferFailed):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrInvalidPayload),
		errors.Is(err, domain.ErrInvalidAddress),
		errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoDraftPresent):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrBridgeUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrTransferAlreadyInFlight),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, app.ErrIdentityUnresolved),
		errors.Is(err, transfer.ErrClosed),
		errors.Is(err, resolver.ErrResolutionSuperseded),
		errors.Is(err, resolver.ErrResolverClosed):
		return http.StatusConflict
	case errors.Is(err, app.ErrMissingClientID):
		return http.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *WalletHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *WalletHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
