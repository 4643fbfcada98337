package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := zerolog.Nop()
	c := NewClient("test-token", false, &logger)
	c.baseURL = srv.URL
	return c
}

func sign(token string, body []byte) string {
	secret := sha256.Sum256([]byte(token))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCreateInvoice(t *testing.T) {
	var gotToken string
	var gotBody map[string]string

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/createInvoice", r.URL.Path)
		gotToken = r.Header.Get("Crypto-Pay-API-Token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"result": Invoice{
				InvoiceID: 12345,
				Status:    "active",
				Asset:     "USDT",
				Amount:    "5.00",
				PayURL:    "https://t.me/CryptoBot?start=xyz",
				Payload:   "42",
			},
		})
	}))

	invoice, err := c.CreateInvoice(context.Background(), "USDT", "5.00", "VIP 30 days", "42")
	require.NoError(t, err)

	assert.Equal(t, "test-token", gotToken)
	assert.Equal(t, "USDT", gotBody["asset"])
	assert.Equal(t, "5.00", gotBody["amount"])
	assert.Equal(t, int64(12345), invoice.InvoiceID)
	assert.Equal(t, "https://t.me/CryptoBot?start=xyz", invoice.PayURL)
}

func TestCreateInvoice_GatewayFailures(t *testing.T) {
	t.Run("rejected", func(t *testing.T) {
		c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
		}))
		_, err := c.CreateInvoice(context.Background(), "USDT", "5.00", "", "")
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("http error", func(t *testing.T) {
		c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		_, err := c.CreateInvoice(context.Background(), "USDT", "5.00", "", "")
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("no token", func(t *testing.T) {
		logger := zerolog.Nop()
		c := NewClient("", false, &logger)
		assert.False(t, c.Configured())
		_, err := c.CreateInvoice(context.Background(), "USDT", "5.00", "", "")
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestGetInvoice(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/getInvoices", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		items := []Invoice{}
		if req["invoice_ids"] == "777" {
			items = append(items, Invoice{InvoiceID: 777, Status: InvoiceStatusPaid})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"items": items},
		})
	}))

	invoice, err := c.GetInvoice(context.Background(), "777")
	require.NoError(t, err)
	require.NotNil(t, invoice)
	assert.Equal(t, InvoiceStatusPaid, invoice.Status)

	// Unknown invoice: nil, not an error.
	invoice, err = c.GetInvoice(context.Background(), "778")
	require.NoError(t, err)
	assert.Nil(t, invoice)
}

func TestVerifyWebhook(t *testing.T) {
	logger := zerolog.Nop()
	c := NewClient("webhook-token", false, &logger)

	body := []byte(`{"update_id":1,"update_type":"invoice_paid","payload":{"invoice_id":9}}`)

	assert.True(t, c.VerifyWebhook(body, sign("webhook-token", body)))
	assert.False(t, c.VerifyWebhook(body, sign("other-token", body)))
	assert.False(t, c.VerifyWebhook([]byte(`tampered`), sign("webhook-token", body)))
	assert.False(t, c.VerifyWebhook(body, ""))

	unconfigured := NewClient("", false, &logger)
	assert.False(t, unconfigured.VerifyWebhook(body, sign("", body)))
}
