/**
 * @description
 * This package provides a client for the chain relay that signs and broadcasts
 * token transfers on behalf of a wallet. The wallet-service only hands over the
 * recipient and the amount; key custody stays with the relay.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package chainclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/transfa/wallet-service/internal/domain"
)

// Client is a client for the chain relay API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new chain relay client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// TransferRequest is the payload of a token transfer.
type TransferRequest struct {
	RecipientAddress string `json:"recipient_address"`
	Amount           string `json:"amount"`
}

// TransferResponse is the relay's answer to an accepted transfer.
type TransferResponse struct {
	TxHash      string `json:"tx_hash"`
	Status      string `json:"status"`
	BlockNumber uint64 `json:"block_number"`
}

// ErrorResponse represents an error from the relay API.
type ErrorResponse struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("chain relay error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("chain relay error (status %d)", e.StatusCode)
}

// SubmitTransfer sends the transfer to the relay. A 2xx answer without a
// transaction hash yields a nil receipt.
func (c *Client) SubmitTransfer(ctx context.Context, recipient domain.WalletAddress, amount domain.Amount) (*domain.Receipt, error) {
	body, err := json.Marshal(TransferRequest{RecipientAddress: recipient.String(), Amount: amount.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transfer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/transfers", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("x-api-key", c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute transfer request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read transfer response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errResp := &ErrorResponse{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(bodyBytes, errResp); err != nil {
			log.Printf("level=warn component=chain_client op=transfer status=%d msg=\"non-2xx response (unparsable error body)\"", resp.StatusCode)
			return nil, errResp
		}
		log.Printf("level=warn component=chain_client op=transfer status=%d code=%q message=%q", resp.StatusCode, errResp.Code, errResp.Message)
		return nil, errResp
	}

	var successResp TransferResponse
	if len(bytes.TrimSpace(bodyBytes)) > 0 {
		if err := json.Unmarshal(bodyBytes, &successResp); err != nil {
			return nil, fmt.Errorf("failed to decode transfer response: %w", err)
		}
	}
	if successResp.TxHash == "" {
		log.Printf("level=warn component=chain_client op=transfer status=%d msg=\"accepted without tx hash\"", resp.StatusCode)
		return nil, nil
	}

	return &domain.Receipt{
		TxHash:      successResp.TxHash,
		Status:      successResp.Status,
		BlockNumber: successResp.BlockNumber,
	}, nil
}
