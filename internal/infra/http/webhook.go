// File: internal/infra/http/webhook.go
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"stripe-invoice-bridge/internal/domain"
	"stripe-invoice-bridge/internal/infra/logging"
	"stripe-invoice-bridge/internal/infra/metrics"
)

// Stripe puts no contractual bound on event payload size; expanded objects
// on large checkouts run well past 64 KiB. 1 MiB matches the issuer
// adapter's response body limit.
const maxWebhookBody = 1 << 20

// handleStripeWebhook verifies the event signature and drives the
// reconciliation engine. Only the event's id is trusted: the engine
// re-fetches all state, because the payload snapshot may be stale by the
// time a redelivery arrives.
//
// Any processing error returns a 5xx so Stripe redelivers; the engine's
// idempotency gate makes redelivery safe.
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	log := logging.With(r.Context(), s.log)

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), s.cfg.Stripe.WebhookSecret)
	if err != nil {
		log.Warn().Err(err).Msg("webhook signature verification failed")
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	ctx := logging.WithEventID(r.Context(), event.ID)
	log = logging.With(ctx, s.log)
	log.Info().Str("type", string(event.Type)).Msg("webhook event received")

	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			http.Error(w, "malformed event object", http.StatusBadRequest)
			return
		}
		out, err := s.uc.ProcessPayment(ctx, pi.ID)
		if err != nil {
			s.webhookError(w, log, "payment", pi.ID, err)
			return
		}
		recordOutcome("payment", out)

	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			http.Error(w, "malformed event object", http.StatusBadRequest)
			return
		}
		if ch.Refunds == nil || len(ch.Refunds.Data) == 0 {
			log.Warn().Str("charge_id", ch.ID).Msg("refunded charge carries no refund, ignoring")
			break
		}
		refundID := ch.Refunds.Data[0].ID
		out, err := s.uc.ProcessRefund(ctx, refundID)
		if err != nil {
			s.webhookError(w, log, "refund", refundID, err)
			return
		}
		recordOutcome("refund", out)

	default:
		log.Debug().Str("type", string(event.Type)).Msg("unhandled event type")
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (s *Server) webhookError(w http.ResponseWriter, log *zerolog.Logger, operation, id string, err error) {
	metrics.IncReconcile(operation, "error")
	log.Error().Err(err).Str("id", id).Str("operation", operation).Msg("webhook processing failed")
	if errors.Is(err, domain.ErrAlreadyProcessing) {
		// Another invocation holds the lock; let the provider retry later.
		http.Error(w, "busy", http.StatusConflict)
		return
	}
	http.Error(w, "processing failed", http.StatusInternalServerError)
}
