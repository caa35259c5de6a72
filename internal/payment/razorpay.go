// Package payment creates Razorpay orders and verifies payment signatures.
package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/newsbrief/newsbrief/internal/config"
	"github.com/newsbrief/newsbrief/internal/types"
)

const service = "razorpay"

// ErrNotConfigured is returned when key id or secret is missing.
var ErrNotConfigured = errors.New("payment gateway keys are not configured")

// Order is the subset of a Razorpay order the API hands back to clients.
type Order struct {
	ID         string `json:"id"`
	Entity     string `json:"entity"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	AmountDue  int64  `json:"amount_due"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	CreatedAt  int64  `json:"created_at"`
}

// Client talks to the Razorpay orders API.
type Client struct {
	cfg    config.PaymentConfig
	client *http.Client
	logger *slog.Logger
}

// NewClient creates a Razorpay client.
func NewClient(cfg config.PaymentConfig, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With("component", "payment"),
	}
}

// Configured reports whether both keys are present.
func (c *Client) Configured() bool {
	return c.cfg.KeyID != "" && c.cfg.KeySecret != ""
}

// Receipt returns a fresh order receipt: "rcpt_" and 30 hex characters.
func Receipt() string {
	id := uuid.New()
	return "rcpt_" + hex.EncodeToString(id[:])[:30]
}

// CreateOrder opens an order for amount (in the currency's smallest unit).
// Zero amount and empty currency fall back to the configured defaults.
func (c *Client) CreateOrder(ctx context.Context, amount int64, currency string) (*Order, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if amount <= 0 {
		amount = c.cfg.DefaultAmount
	}
	if currency == "" {
		currency = c.cfg.Currency
	}

	payload := map[string]any{
		"amount":          amount,
		"currency":        currency,
		"receipt":         Receipt(),
		"payment_capture": "1",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode order: %w", err)
	}

	endpoint := strings.TrimSuffix(c.cfg.Endpoint, "/") + "/orders"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &types.UpstreamError{Service: service, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &types.UpstreamError{Service: service, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &types.UpstreamError{Service: service, StatusCode: resp.StatusCode, Err: gatewayError(respBody)}
	}

	var order Order
	if err := json.Unmarshal(respBody, &order); err != nil {
		return nil, &types.UpstreamError{Service: service, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode order: %w", err)}
	}
	c.logger.Info("order created", "order_id", order.ID, "amount", order.Amount, "currency", order.Currency)
	return &order, nil
}

// Sign computes the checkout signature for an order and payment:
// hex(HMAC-SHA256(secret, orderID + "|" + paymentID)).
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a checkout signature in constant time.
func (c *Client) VerifySignature(orderID, paymentID, signature string) error {
	if c.cfg.KeySecret == "" {
		return ErrNotConfigured
	}
	want := Sign(c.cfg.KeySecret, orderID, paymentID)
	if !hmac.Equal([]byte(want), []byte(strings.ToLower(signature))) {
		c.logger.Warn("payment signature mismatch", "order_id", orderID, "payment_id", paymentID)
		return types.ErrInvalidSignature
	}
	return nil
}

// gatewayError pulls the description out of a Razorpay error body.
func gatewayError(body []byte) error {
	var e struct {
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Description != "" {
		return fmt.Errorf("%s: %s", e.Error.Code, e.Error.Description)
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return errors.New(msg)
}
