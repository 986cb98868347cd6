package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/qr-hub/internal/service"
)

// maxWebhookBytes matches the payload size Stripe documents for webhooks
const maxWebhookBytes = 65536

// checkoutRequest is the body of POST /api/stripe/checkout
type checkoutRequest struct {
	Amount      *float64 `json:"amount" validate:"omitempty,gt=0"`
	Currency    string   `json:"currency" validate:"omitempty,len=3"`
	ProductName string   `json:"productName" validate:"omitempty,max=200"`
	SuccessURL  string   `json:"successUrl" validate:"omitempty,url"`
	CancelURL   string   `json:"cancelUrl" validate:"omitempty,url"`
	QRSlug      string   `json:"qrSlug"`
}

func respondStripeNotConfigured(w http.ResponseWriter) {
	respondJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":      "Stripe not configured",
		"configured": false,
	})
}

// handleCheckout handles POST /api/stripe/checkout - Start a hosted card payment
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if s.checkout == nil || !s.checkout.Configured() {
		respondStripeNotConfigured(w)
		return
	}

	var req checkoutRequest
	if err := parseJSONBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	session, err := s.checkout.CreateCheckout(r.Context(), service.CheckoutInput{
		Amount:      req.Amount,
		Currency:    req.Currency,
		ProductName: req.ProductName,
		SuccessURL:  req.SuccessURL,
		CancelURL:   req.CancelURL,
		QRSlug:      req.QRSlug,
	})
	if errors.Is(err, service.ErrStripeNotConfigured) {
		respondStripeNotConfigured(w)
		return
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// handleStripeWebhook handles POST /api/stripe/webhook
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if s.checkout == nil {
		respondStripeNotConfigured(w)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	err = s.checkout.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if errors.Is(err, service.ErrStripeNotConfigured) {
		respondStripeNotConfigured(w)
		return
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}
