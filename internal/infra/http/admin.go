// File: internal/infra/http/admin.go
package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"stripe-invoice-bridge/internal/domain"
	"stripe-invoice-bridge/internal/infra/logging"
	"stripe-invoice-bridge/internal/infra/metrics"
	"stripe-invoice-bridge/internal/usecase"
)

// Admin surface for manual, out-of-band replay: processing payments that
// predate the webhook, retrying after fixed configuration, and so on. The
// operations themselves are the same idempotent engine entry points the
// webhook uses, so replaying a finished payment is a no-op.

// adminAuth requires a session minted by /admin/login.
func (s *Server) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Admin.SessionSecret == "" {
			s.log.Error().Msg("admin.session_secret is not configured")
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin API disabled"})
			return
		}
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or missing session"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleAdminLogin exchanges the configured admin key for a short-lived
// session cookie (also returned in the body for curl workflows).
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed body"})
		return
	}
	if s.cfg.Admin.APIKey == "" {
		s.log.Error().Msg("admin.api_key is not configured")
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin API disabled"})
		return
	}
	if subtle.ConstantTimeCompare([]byte(body.APIKey), []byte(s.cfg.Admin.APIKey)) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "session mint failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleProcessPayment(w http.ResponseWriter, r *http.Request) {
	s.runReconcile(w, r, "payment", s.uc.ProcessPayment, chi.URLParam(r, "id"))
}

func (s *Server) handleProcessRefund(w http.ResponseWriter, r *http.Request) {
	s.runReconcile(w, r, "refund", s.uc.ProcessRefund, chi.URLParam(r, "id"))
}

func (s *Server) runReconcile(w http.ResponseWriter, r *http.Request, operation string, fn func(ctx context.Context, id string) (*usecase.Outcome, error), id string) {
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}
	log := logging.With(r.Context(), s.log)
	out, err := fn(r.Context(), id)
	if err != nil {
		metrics.IncReconcile(operation, "error")
		log.Error().Err(err).Str("id", id).Str("operation", operation).Msg("manual reconcile failed")
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrAlreadyProcessing) {
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	recordOutcome(operation, out)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         string(out.Status),
		"skip_reason":    out.SkipReason,
		"invoice_number": out.InvoiceNumber,
		"mirror_ok":      out.MirrorErr == nil,
	})
}

func recordOutcome(operation string, out *usecase.Outcome) {
	metrics.IncReconcile(operation, string(out.Status))
	if out.Status == usecase.OutcomeSkipped {
		metrics.IncSkip(out.SkipReason)
	}
	if out.MirrorErr != nil {
		metrics.IncLedgerFailure(operation)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
