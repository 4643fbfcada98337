package api

import (
	"encoding/json"
	"io"
	"net/http"

	"jetsflare/internal/gateway"
	"jetsflare/internal/metrics"
)

const maxWebhookBody = 1 << 20

// handlePaymentWebhook settles invoices pushed by the payment gateway.
// The raw body is verified against the gateway signature before any JSON
// parsing; anything that fails verification is rejected and counted.
func (s *HTTPServer) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read body")
		return
	}

	signature := r.Header.Get(gateway.SignatureHeader)
	if !s.gateway.VerifyWebhook(body, signature) {
		metrics.IncWebhookRejected()
		s.logger.Warn().Str("remote", r.RemoteAddr).Msg("webhook signature rejected")
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var update gateway.WebhookUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if update.UpdateType != gateway.UpdateInvoicePaid {
		// Other update types are acknowledged and ignored.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	invoiceID := gateway.InvoiceKey(update.Payload.InvoiceID)
	applied, err := s.payments.Confirm(r.Context(), invoiceID)
	if err != nil {
		s.logger.Error().Err(err).Str("invoice_id", invoiceID).Msg("webhook settlement failed")
		writeError(w, http.StatusInternalServerError, "settlement failed")
		return
	}

	status := "already_processed"
	if applied {
		status = "applied"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}
