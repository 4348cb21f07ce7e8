package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/transfa/wallet-service/internal/app"
	"github.com/transfa/wallet-service/internal/domain"
	"github.com/transfa/wallet-service/internal/resolver"
	"github.com/transfa/wallet-service/internal/store"
)

const (
	testWallet    = "0x52908400098527886E0F7030069857D2E4169EE7"
	testRecipient = "0x8617E340B3D01FA5F11F306F4090FD50E238070D"
)

type relayStub struct {
	err error
}

func (s *relayStub) SubmitTransfer(ctx context.Context, to domain.WalletAddress, amount domain.Amount) (*domain.Receipt, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Receipt{TxHash: "0xabc", Status: "success"}, nil
}

func newTestRouter(t *testing.T, relay *relayStub, secret string) http.Handler {
	t.Helper()
	if relay == nil {
		relay = &relayStub{}
	}
	svc := app.NewService(store.NewMemoryStorage(), nil, relay, nil, app.Options{
		ResolvePolicy: resolver.Policy{MaxAttempts: 1, Interval: time.Millisecond},
		SubmitTimeout: time.Second,
	})
	t.Cleanup(svc.Close)
	return NewRouter(NewWalletHandlers(svc), RouterOptions{AllowedOrigins: []string{"*"}, JWTAssertionSecret: secret})
}

func signAssertion(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func doRequest(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set(JWTAssertionHeader, token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) sessionResponse {
	t.Helper()
	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestHealthIsPublic(t *testing.T) {
	h := newTestRouter(t, nil, "")
	rec := doRequest(t, h, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestClientIDMiddleware(t *testing.T) {
	h := newTestRouter(t, nil, "")

	if rec := doRequest(t, h, http.MethodGet, "/wallet-service/transfers/session", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", rec.Code)
	}

	noClient := signAssertion(t, jwt.MapClaims{"sub": "someone"}, "x")
	if rec := doRequest(t, h, http.MethodGet, "/wallet-service/transfers/session", noClient, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without clientId claim, got %d", rec.Code)
	}

	if rec := doRequest(t, h, http.MethodGet, "/wallet-service/transfers/session", "not-a-jwt", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for malformed token, got %d", rec.Code)
	}

	ok := signAssertion(t, jwt.MapClaims{"clientId": "client-a"}, "any")
	if rec := doRequest(t, h, http.MethodGet, "/wallet-service/transfers/session", ok, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with clientId claim, got %d", rec.Code)
	}
}

func TestClientIDMiddleware_VerifiesSignatureWhenSecretSet(t *testing.T) {
	h := newTestRouter(t, nil, "shared-secret")

	forged := signAssertion(t, jwt.MapClaims{"clientId": "client-a"}, "other-secret")
	if rec := doRequest(t, h, http.MethodGet, "/wallet-service/transfers/session", forged, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", rec.Code)
	}

	valid := signAssertion(t, jwt.MapClaims{"clientId": "client-a"}, "shared-secret")
	if rec := doRequest(t, h, http.MethodGet, "/wallet-service/transfers/session", valid, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for valid signature, got %d", rec.Code)
	}
}

func TestTransferFlow(t *testing.T) {
	h := newTestRouter(t, nil, "")
	token := signAssertion(t, jwt.MapClaims{"clientId": "client-a"}, "k")

	if rec := doRequest(t, h, http.MethodPut, "/wallet-service/wallet", token, bindWalletRequest{WalletAddress: testWallet}); rec.Code != http.StatusOK {
		t.Fatalf("bind wallet: expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	rec := doRequest(t, h, http.MethodPost, "/wallet-service/transfers/draft", token, draftRequest{RecipientAddress: testRecipient, Amount: "10"})
	if rec.Code != http.StatusOK {
		t.Fatalf("draft: expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if phase := decodeSession(t, rec).Session.Phase; phase != domain.PhaseDrafting {
		t.Fatalf("expected drafting, got %s", phase)
	}

	rec = doRequest(t, h, http.MethodGet, "/wallet-service/transfers/prefill", token, nil)
	var prefill domain.DraftTransaction
	_ = json.Unmarshal(rec.Body.Bytes(), &prefill)
	if prefill.Recipient != testRecipient || prefill.Amount != "10" {
		t.Fatalf("unexpected prefill %+v", prefill)
	}

	rec = doRequest(t, h, http.MethodPost, "/wallet-service/transfers/review", token, nil)
	resp := decodeSession(t, rec)
	if rec.Code != http.StatusOK || resp.Session.Phase != domain.PhaseConfirming || resp.Session.Sender != testWallet {
		t.Fatalf("review: unexpected response %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodPost, "/wallet-service/transfers/confirm", token, nil)
	resp = decodeSession(t, rec)
	if rec.Code != http.StatusOK || resp.Session.Phase != domain.PhaseSettled {
		t.Fatalf("confirm: unexpected response %d %s", rec.Code, rec.Body.String())
	}
	if resp.Session.Receipt == nil || resp.Session.Receipt.TxHash != "0xabc" {
		t.Fatalf("expected receipt, got %+v", resp.Session.Receipt)
	}

	if rec := doRequest(t, h, http.MethodPost, "/wallet-service/transfers/confirm", token, nil); rec.Code != http.StatusConflict {
		t.Fatalf("second confirm: expected 409, got %d", rec.Code)
	}
}

func TestConfirmFailureMapsToBadGateway(t *testing.T) {
	h := newTestRouter(t, &relayStub{err: errors.New("relay down")}, "")
	token := signAssertion(t, jwt.MapClaims{"clientId": "client-b"}, "k")

	doRequest(t, h, http.MethodPost, "/wallet-service/transfers/draft", token, draftRequest{RecipientAddress: testRecipient, Amount: "1"})
	doRequest(t, h, http.MethodPost, "/wallet-service/transfers/review", token, nil)

	if rec := doRequest(t, h, http.MethodPost, "/wallet-service/transfers/confirm", token, nil); rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d body=%s", rec.Code, rec.Body.String())
	}
	rec := doRequest(t, h, http.MethodGet, "/wallet-service/transfers/session", token, nil)
	if phase := decodeSession(t, rec).Session.Phase; phase != domain.PhaseFailed {
		t.Fatalf("expected failed session, got %s", phase)
	}
}

func TestScanAndDecodeEndpoints(t *testing.T) {
	h := newTestRouter(t, nil, "")
	token := signAssertion(t, jwt.MapClaims{"clientId": "client-c"}, "k")

	if rec := doRequest(t, h, http.MethodPost, "/wallet-service/transfers/scan", token, scanRequest{Text: "not json and not an address"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid code, got %d", rec.Code)
	}

	rec := doRequest(t, h, http.MethodPost, "/wallet-service/payment-codes/decode", token, scanRequest{Text: testRecipient})
	if rec.Code != http.StatusOK {
		t.Fatalf("decode: expected 200, got %d", rec.Code)
	}
	var payload domain.PaymentPayload
	_ = json.Unmarshal(rec.Body.Bytes(), &payload)
	if payload.Kind != domain.PayloadAddressOnly || payload.Address != testRecipient {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestEncodePaymentCodeEndpoint(t *testing.T) {
	h := newTestRouter(t, nil, "")
	token := signAssertion(t, jwt.MapClaims{"clientId": "client-d"}, "k")

	if rec := doRequest(t, h, http.MethodPost, "/wallet-service/payment-codes", token, nil); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for unresolved identity, got %d", rec.Code)
	}

	doRequest(t, h, http.MethodPut, "/wallet-service/wallet", token, bindWalletRequest{WalletAddress: testWallet})
	amount := domain.Amount("3")
	rec := doRequest(t, h, http.MethodPost, "/wallet-service/payment-codes", token, encodePaymentCodeRequest{CoinAmount: &amount})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp encodePaymentCodeResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Payload != `{"wallet_address":"`+testWallet+`","coin_amount":"3"}` {
		t.Fatalf("unexpected payload %s", resp.Payload)
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		domain.ErrInvalidAmount:           http.StatusBadRequest,
		domain.ErrNoDraftPresent:          http.StatusNotFound,
		domain.ErrBridgeUnavailable:       http.StatusServiceUnavailable,
		domain.ErrTransferAlreadyInFlight: http.StatusConflict,
		domain.ErrInvalidTransition:       http.StatusConflict,
		app.ErrIdentityUnresolved:         http.StatusConflict,
		errors.New("boom"):                http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := statusFor(err); got != want {
			t.Fatalf("statusFor(%v) = %d, want %d", err, got, want)
		}
	}

	wrapped := errors.Join(domain.ErrTransferFailed, domain.ErrBridgeUnavailable)
	if got := statusFor(wrapped); got != http.StatusBadGateway {
		t.Fatalf("expected failed transfer to win over bridge error, got %d", got)
	}
}
