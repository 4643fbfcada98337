// Package gateway talks to the Crypto Pay invoice API and verifies its
// signed webhooks. The gateway is a black box to the engine: an invoice is
// either created or it is not, and the only trusted confirmation is a
// webhook whose HMAC checks out.
package gateway

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
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const (
	mainnetURL = "https://pay.crypt.bot/api"
	testnetURL = "https://testnet-pay.crypt.bot/api"

	// SignatureHeader carries the webhook HMAC.
	SignatureHeader = "Crypto-Pay-Api-Signature"

	// UpdateInvoicePaid is the only webhook type that settles a payment.
	UpdateInvoicePaid = "invoice_paid"

	// InvoiceStatusPaid is the gateway-side terminal status.
	InvoiceStatusPaid = "paid"
)

// ErrUnavailable covers every gateway failure mode: transport errors,
// timeouts, non-success statuses and malformed responses. Callers report
// "could not create invoice" and never retry on their own.
var ErrUnavailable = errors.New("payment gateway unavailable")

type Invoice struct {
	InvoiceID int64  `json:"invoice_id"`
	Status    string `json:"status"`
	Asset     string `json:"asset"`
	Amount    string `json:"amount"`
	PayURL    string `json:"pay_url"`
	Payload   string `json:"payload"`
}

// WebhookUpdate is the envelope delivered to the webhook endpoint.
type WebhookUpdate struct {
	UpdateID   int64   `json:"update_id"`
	UpdateType string  `json:"update_type"`
	Payload    Invoice `json:"payload"`
}

type Client struct {
	token   string
	baseURL string
	httpc   *http.Client
	logger  *zerolog.Logger
}

func NewClient(token string, testnet bool, logger *zerolog.Logger) *Client {
	baseURL := mainnetURL
	if testnet {
		baseURL = testnetURL
	}
	return &Client{
		token:   token,
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// Configured reports whether a gateway credential is present.
func (c *Client) Configured() bool {
	return c.token != ""
}

func (c *Client) call(ctx context.Context, method string, body any, result any) error {
	if !c.Configured() {
		return fmt.Errorf("%w: no api token configured", ErrUnavailable)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: marshal request: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Crypto-Pay-API-Token", c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: %s returned status %d", ErrUnavailable, method, resp.StatusCode)
	}

	var envelope struct {
		OK     bool            `json:"ok"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if !envelope.OK {
		c.logger.Warn().Str("method", method).Msg("gateway rejected request")
		return fmt.Errorf("%w: %s rejected", ErrUnavailable, method)
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("%w: decode result: %v", ErrUnavailable, err)
	}
	return nil
}

// CreateInvoice asks the gateway for a new invoice. Amount is passed as a
// decimal string to avoid float drift on the wire.
func (c *Client) CreateInvoice(ctx context.Context, asset, amount, description, payload string) (*Invoice, error) {
	req := map[string]string{
		"asset":       asset,
		"amount":      amount,
		"description": description,
		"payload":     payload,
	}

	var invoice Invoice
	if err := c.call(ctx, "createInvoice", req, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// GetInvoice fetches one invoice by id, ErrUnavailable when the gateway
// cannot answer and nil when the invoice is unknown.
func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	req := map[string]string{"invoice_ids": invoiceID}

	var result struct {
		Items []Invoice `json:"items"`
	}
	if err := c.call(ctx, "getInvoices", req, &result); err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		return nil, nil
	}
	return &result.Items[0], nil
}

// VerifyWebhook checks the HMAC-SHA256 of a raw webhook body against the
// signature header. The secret is the SHA256 of the api token, per the
// gateway's contract, and the comparison is constant time.
func (c *Client) VerifyWebhook(body []byte, signature string) bool {
	if !c.Configured() || signature == "" {
		return false
	}
	secret := sha256.Sum256([]byte(c.token))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// InvoiceKey renders an invoice id the way it is stored as a payment
// idempotency key.
func InvoiceKey(invoiceID int64) string {
	return strconv.FormatInt(invoiceID, 10)
}
