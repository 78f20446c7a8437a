// Package client is an HTTP client for the ledger API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"github.com/shopspring/decimal"
)

// IdempotencyHeader carries the client-chosen key for write requests.
const IdempotencyHeader = "Idempotency-Key"

// ClientConfig represents the configuration for the ledger API client.
type ClientConfig struct {
	APIURL  string
	Timeout time.Duration // Default: 30 seconds
}

// Client is a ledger API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new ledger API client.
func NewClient(config ClientConfig) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: config.APIURL,
	}
}

// APIError is a non-2xx answer from the ledger API. Txn is set when the API
// reported a FAILED transaction.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
	Txn         *ledger.Txn
}

func (e *APIError) Error() string {
	if e.Txn != nil {
		return fmt.Sprintf("transaction %s failed due to %s", e.Txn.ID, e.Txn.ErrorReason)
	}
	if e.Description != "" {
		return fmt.Sprintf("ledger API error: %s - %s", e.Code, e.Description)
	}
	return fmt.Sprintf("ledger API error (status %d): %s", e.StatusCode, e.Code)
}

// IsReason reports whether err is an APIError carrying reason, either as the
// error code or as the reason of a FAILED transaction.
func IsReason(err error, reason ledger.ErrorReason) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Txn != nil {
		return apiErr.Txn.ErrorReason == reason
	}
	return apiErr.Code == string(reason)
}

// RequestOption adjusts a single request.
type RequestOption func(*http.Request)

// WithIdempotencyKey sets the Idempotency-Key header.
func WithIdempotencyKey(key string) RequestOption {
	return func(req *http.Request) {
		if key != "" {
			req.Header.Set(IdempotencyHeader, key)
		}
	}
}

// CreateAccount opens an account.
func (c *Client) CreateAccount(ctx context.Context, accountNum string, balance decimal.Decimal) (*ledger.Account, error) {
	var account ledger.Account
	err := c.do(ctx, http.MethodPost, "/account", CreateAccountRequest{AccountNum: accountNum, Balance: balance}, &account)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAccount fetches an account.
func (c *Client) GetAccount(ctx context.Context, accountNum string) (*ledger.Account, error) {
	var account ledger.Account
	if err := c.do(ctx, http.MethodGet, "/account/"+url.PathEscape(accountNum), nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// Debit takes amount out of accountNum.
func (c *Client) Debit(ctx context.Context, accountNum string, amount decimal.Decimal, opts ...RequestOption) (*ledger.Txn, error) {
	return c.txn(ctx, "/account/"+url.PathEscape(accountNum)+"/debit", AmountRequest{Amount: amount}, opts)
}

// Credit adds amount to accountNum.
func (c *Client) Credit(ctx context.Context, accountNum string, amount decimal.Decimal, opts ...RequestOption) (*ledger.Txn, error) {
	return c.txn(ctx, "/account/"+url.PathEscape(accountNum)+"/credit", AmountRequest{Amount: amount}, opts)
}

// Transfer moves amount between two accounts.
func (c *Client) Transfer(ctx context.Context, from, to string, amount decimal.Decimal, opts ...RequestOption) (*ledger.Txn, error) {
	return c.txn(ctx, "/account/"+url.PathEscape(from)+"/transfer", TransferRequest{To: to, Amount: amount}, opts)
}

// SubmitEntries executes an arbitrary list of entries as one transaction.
func (c *Client) SubmitEntries(ctx context.Context, entries []ledger.TxnEntry, opts ...RequestOption) (*ledger.Txn, error) {
	return c.txn(ctx, "/transactions", EntriesRequest{Entries: entries}, opts)
}

// GetTxn fetches a transaction record.
func (c *Client) GetTxn(ctx context.Context, id string) (*ledger.Txn, error) {
	var txn ledger.Txn
	if err := c.do(ctx, http.MethodGet, "/transactions/"+url.PathEscape(id), nil, &txn); err != nil {
		return nil, err
	}
	return &txn, nil
}

// ListTxns lists transaction records, optionally only those with status.
func (c *Client) ListTxns(ctx context.Context, status *ledger.Status) ([]*ledger.Txn, error) {
	path := "/transactions"
	if status != nil {
		path += "?" + url.Values{"status": {string(*status)}}.Encode()
	}

	var resp TxnsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}

// Health checks that the API answers.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// txn posts a write request. A FAILED transaction is returned together with
// an *APIError.
func (c *Client) txn(ctx context.Context, path string, body any, opts []RequestOption) (*ledger.Txn, error) {
	var txn ledger.Txn
	err := c.do(ctx, http.MethodPost, path, body, &txn, opts...)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Txn != nil {
		return apiErr.Txn, err
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.parseError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseError parses an error response from the ledger API.
func (c *Client) parseError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode, Code: "unreadable error response"}
	}

	if resp.StatusCode == http.StatusUnprocessableEntity {
		var txn ledger.Txn
		if err := json.Unmarshal(body, &txn); err == nil && txn.Status == ledger.StatusFailed {
			return &APIError{StatusCode: resp.StatusCode, Code: string(txn.ErrorReason), Txn: &txn}
		}
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Code: http.StatusText(resp.StatusCode), Description: string(bytes.TrimSpace(body))}
	}

	return &APIError{StatusCode: resp.StatusCode, Code: errResp.Error, Description: errResp.ErrorDescription}
}
