// ledger/client.go
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	echo_errors "github.com/flowgate/api/errors"
	logger "github.com/flowgate/api/logging"
)

// Client is the accounting ledger collaborator. It owns credit balances and
// the transaction history; this service only calls its request/response API.
type Client interface {
	GetCost(ctx context.Context, chatflowID string) (float64, error)
	GetBalance(ctx context.Context, userID string) (float64, error)
	Deduct(ctx context.Context, userID string, amount float64) error
	LogTransaction(ctx context.Context, tx Transaction) error
}

// Transaction is one attempted spend, recorded on success and failure alike.
type Transaction struct {
	UserID     string    `json:"user_id"`
	ChatflowID string    `json:"chatflow_id"`
	Amount     float64   `json:"amount"`
	Success    bool      `json:"success"`
	Timestamp  time.Time `json:"timestamp"`
}

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ Client = &HTTPClient{}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetCost returns the fixed per-turn cost of a chatflow.
func (c *HTTPClient) GetCost(ctx context.Context, chatflowID string) (float64, error) {
	endpoint := fmt.Sprintf("%s/chatflows/%s/cost", c.baseURL, url.PathEscape(chatflowID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ledger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, echo_errors.ErrChatflowNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("ledger returned status %d", resp.StatusCode)
	}

	var body struct {
		Cost float64 `json:"cost"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to decode cost response: %w", err)
	}
	return body.Cost, nil
}

// GetBalance returns the user's current credit balance.
func (c *HTTPClient) GetBalance(ctx context.Context, userID string) (float64, error) {
	endpoint := fmt.Sprintf("%s/users/%s/balance", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ledger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("ledger returned status %d", resp.StatusCode)
	}

	var body struct {
		Balance float64 `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to decode balance response: %w", err)
	}
	return body.Balance, nil
}

// Deduct removes amount from the user's balance. A non-2xx answer or an
// explicit ok=false is a deduction failure, terminal for the turn.
func (c *HTTPClient) Deduct(ctx context.Context, userID string, amount float64) error {
	endpoint := fmt.Sprintf("%s/users/%s/deduct", c.baseURL, url.PathEscape(userID))
	payload, err := json.Marshal(map[string]float64{"amount": amount})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ledger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn("Ledger rejected deduction",
			zap.String("userID", userID),
			zap.Float64("amount", amount),
			zap.Int("status", resp.StatusCode))
		return echo_errors.ErrDeductionFailed
	}

	var body struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode deduct response: %w", err)
	}
	if !body.OK {
		return echo_errors.ErrDeductionFailed
	}
	return nil
}

// LogTransaction records one attempted spend with the ledger.
func (c *HTTPClient) LogTransaction(ctx context.Context, tx Transaction) error {
	endpoint := fmt.Sprintf("%s/transactions", c.baseURL)
	payload, err := json.Marshal(tx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ledger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("ledger returned status %d for transaction", resp.StatusCode)
	}
	return nil
}
