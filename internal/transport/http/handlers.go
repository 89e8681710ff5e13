package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"

	"github.com/jia-app/billingservice/internal/billing/domain"
	"github.com/jia-app/billingservice/internal/log"
	"github.com/jia-app/billingservice/internal/metrics"
)

// maxWebhookBody caps webhook payload size, matching Stripe's own limit.
const maxWebhookBody = 65536

// WebhookVerifier checks an inbound delivery's signature and decodes it.
type WebhookVerifier interface {
	VerifyWebhook(payload []byte, signature string) (*stripe.Event, error)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	de := domain.AsDomainError(err)
	if de == nil {
		log.Error(r.Context(), "Request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]errorBody{
			"error": {Code: domain.ErrCodeInternal, Message: "internal error"},
		})
		return
	}

	status := http.StatusInternalServerError
	switch de.Code {
	case domain.ErrCodeNotFound:
		status = http.StatusNotFound
	case domain.ErrCodeNotAuthenticated:
		status = http.StatusUnauthorized
	case domain.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case domain.ErrCodeUpstreamFailure:
		status = http.StatusBadGateway
	}

	log.Warn(r.Context(), "Request failed",
		zap.String("code", de.Code),
		zap.String("message", de.Message))
	writeJSON(w, status, map[string]errorBody{
		"error": {Code: de.Code, Message: de.Message},
	})
}

// handleStripeWebhook verifies the delivery signature and applies the event.
// A non-2xx response makes Stripe redeliver, so handler failures map to 500
// while verification failures map to 400 (redelivering a forged or corrupt
// payload cannot succeed).
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "failed to read payload", http.StatusBadRequest)
		return
	}

	event, err := s.verifier.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.Warn(r.Context(), "Webhook verification failed", zap.Error(err))
		metrics.WebhookReceived.WithLabelValues("unknown", "rejected").Inc()
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	eventType := string(event.Type)
	if err := s.synchronizer.Apply(r.Context(), event); err != nil {
		metrics.WebhookReceived.WithLabelValues(eventType, "failed").Inc()
		http.Error(w, "failed to process event", http.StatusInternalServerError)
		return
	}

	metrics.WebhookReceived.WithLabelValues(eventType, "ok").Inc()
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

type productResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Image       string            `json:"image"`
	Metadata    map[string]string `json:"metadata"`
	Prices      []domain.Price    `json:"prices"`
	Subscribed  bool              `json:"subscribed"`
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	listings, err := s.catalog.ListProducts(r.Context(), sessionUser(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]productResponse, len(listings))
	for i, listing := range listings {
		out[i] = productResponse{
			ID:          string(listing.Product.ID),
			Name:        listing.Product.Name,
			Description: listing.Product.Description,
			Image:       listing.Product.Image,
			Metadata:    listing.Product.Metadata,
			Prices:      listing.Prices,
			Subscribed:  listing.Subscribed,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleActiveSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.catalog.ActiveSubscriptions(r.Context(), sessionUser(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) handleSubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := s.catalog.SubscriptionStatus(r.Context(), sessionUser(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if summary == nil {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type checkoutRequest struct {
	PriceID string `json:"priceId"`
}

func (s *Server) handleStartCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.NewInvalidInputError("invalid request body", err.Error()))
		return
	}

	url, err := s.checkout.StartCheckout(r.Context(), sessionUser(r.Context()), domain.PriceID(req.PriceID), s.baseURL(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"checkoutUrl": url})
}

func (s *Server) handleStartPortal(w http.ResponseWriter, r *http.Request) {
	url, err := s.checkout.StartPortalSession(r.Context(), sessionUser(r.Context()), s.baseURL(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"billingPortalUrl": url})
}
