package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/qr-hub/internal/circuitbreaker"
	"github.com/qr-hub/internal/config"
	apperrors "github.com/qr-hub/internal/errors"
	"github.com/qr-hub/internal/logging"
	"github.com/qr-hub/internal/models"
	"github.com/qr-hub/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// ErrStripeNotConfigured is returned when no Stripe secret key is set
var ErrStripeNotConfigured = errors.New("stripe not configured")

// Checkout defaults
const (
	defaultCheckoutAmount   = 1.0
	defaultCheckoutCurrency = "usd"
	defaultProductName      = "NovaTok Payment"
)

// PaymentGateway is the part of Stripe used by checkout
type PaymentGateway interface {
	NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

// StripeGateway calls the Stripe API with the configured keys
type StripeGateway struct {
	webhookSecret string
}

// NewStripeGateway sets the Stripe API key and returns a gateway
func NewStripeGateway(cfg config.StripeConfig) *StripeGateway {
	stripe.Key = cfg.SecretKey
	return &StripeGateway{webhookSecret: cfg.WebhookSecret}
}

// NewCheckoutSession creates a hosted checkout session
func (g *StripeGateway) NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return checkoutsession.New(params)
}

// ConstructEvent verifies the Stripe-Signature header and parses the event
func (g *StripeGateway) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	if g.webhookSecret == "" {
		return stripe.Event{}, ErrStripeNotConfigured
	}
	return webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// CheckoutInput is a one-off card payment request
type CheckoutInput struct {
	Amount      *float64
	Currency    string
	ProductName string
	SuccessURL  string
	CancelURL   string
	QRSlug      string
}

// CheckoutSession is the hosted checkout the payer is sent to
type CheckoutSession struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// CheckoutService creates Stripe checkouts and applies Stripe webhooks
type CheckoutService struct {
	cfg     config.StripeConfig
	baseURL string
	gateway PaymentGateway
	breaker *circuitbreaker.CircuitBreaker
	events  *EventService
	plans   *PlanService
	logger  *logging.Logger
}

// NewCheckoutService creates a checkout service
func NewCheckoutService(cfg config.StripeConfig, baseURL string, gateway PaymentGateway, events *EventService, plans *PlanService) *CheckoutService {
	return &CheckoutService{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		gateway: gateway,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("stripe")),
		events:  events,
		plans:   plans,
		logger:  logging.GetGlobalLogger().WithField("service", "checkout"),
	}
}

// Configured reports whether checkout can be used
func (s *CheckoutService) Configured() bool {
	return s.cfg.Configured() && s.gateway != nil
}

// ToCents converts a decimal amount to the smallest currency unit, rounding half away from zero
func ToCents(amount float64) int64 {
	return decimal.NewFromFloat(amount).Shift(2).Round(0).IntPart()
}

// CreateCheckout starts a one-off card payment. The QR slug is carried in the
// session metadata so the completion webhook can attribute the payment.
func (s *CheckoutService) CreateCheckout(ctx context.Context, in CheckoutInput) (*CheckoutSession, error) {
	if !s.Configured() {
		return nil, ErrStripeNotConfigured
	}

	amount := defaultCheckoutAmount
	if in.Amount != nil {
		amount = *in.Amount
	}
	cents := ToCents(amount)
	if cents <= 0 {
		return nil, apperrors.NewValidationError("Amount must be positive")
	}

	currency := strings.ToLower(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = defaultCheckoutCurrency
	}
	productName := strings.TrimSpace(in.ProductName)
	if productName == "" {
		productName = defaultProductName
	}
	successURL := in.SuccessURL
	if successURL == "" {
		successURL = s.baseURL + "/pay/success?session_id={CHECKOUT_SESSION_ID}"
	}
	cancelURL := in.CancelURL
	if cancelURL == "" {
		cancelURL = s.baseURL + "/pay/cancel"
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(productName),
				},
				UnitAmount: stripe.Int64(cents),
			},
			Quantity: stripe.Int64(1),
		}},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		Metadata:   map[string]string{"qr_slug": in.QRSlug},
	}

	var session *stripe.CheckoutSession
	var clientErr error
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		session, err = s.gateway.NewCheckoutSession(params)
		if isStripeClientError(err) {
			// The request was rejected, Stripe itself is healthy.
			clientErr = err
			return nil
		}
		return err
	})
	if clientErr != nil {
		return nil, apperrors.NewValidationError(stripeMessage(clientErr))
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to create Stripe checkout session")
		return nil, apperrors.NewUpstreamUnavailableError("Stripe", err)
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"sessionId": session.ID,
		"qrSlug":    in.QRSlug,
		"amount":    cents,
		"currency":  currency,
	}).Info("Stripe checkout session created")

	return &CheckoutSession{SessionID: session.ID, URL: session.URL}, nil
}

// HandleWebhook verifies and applies a Stripe event. Completed checkouts for a
// QR code record a paid event; subscription changes update the owner's plan.
func (s *CheckoutService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.gateway == nil {
		return ErrStripeNotConfigured
	}

	event, err := s.gateway.ConstructEvent(payload, signature)
	if err != nil {
		if errors.Is(err, ErrStripeNotConfigured) {
			return err
		}
		s.logger.WithError(err).Warn("Stripe webhook signature verification failed")
		return apperrors.NewValidationError("Webhook signature verification failed")
	}

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"eventId":   event.ID,
		"eventType": string(event.Type),
	})
	logger.Info("Stripe webhook received")

	switch event.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return apperrors.NewValidationError("Invalid checkout.session data")
		}
		return s.onCheckoutCompleted(ctx, &cs)

	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return apperrors.NewValidationError("Invalid subscription data")
		}
		return s.onSubscriptionChanged(ctx, &sub, false)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return apperrors.NewValidationError("Invalid subscription data")
		}
		return s.onSubscriptionChanged(ctx, &sub, true)

	default:
		logger.Debug("Unhandled Stripe webhook event")
		return nil
	}
}

func (s *CheckoutService) onCheckoutCompleted(ctx context.Context, cs *stripe.CheckoutSession) error {
	if slugValue := cs.Metadata["qr_slug"]; slugValue != "" && s.events != nil {
		s.events.RecordEvent(ctx, slugValue, EventInput{
			EventType: types.EventPaid,
			Metadata: map[string]interface{}{
				"session_id":   cs.ID,
				"amount_total": cs.AmountTotal,
				"currency":     string(cs.Currency),
			},
		})
	}

	// Subscription checkouts link the Stripe customer to the owner's plan.
	userID := cs.Metadata["user_id"]
	if userID == "" || cs.Customer == nil || cs.Customer.ID == "" {
		return nil
	}
	customerID := cs.Customer.ID
	_, err := s.plans.Update(ctx, userID, models.UserPlanUpdate{StripeCustomerID: &customerID})
	return err
}

func (s *CheckoutService) onSubscriptionChanged(ctx context.Context, sub *stripe.Subscription, deleted bool) error {
	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}

	userID, err := s.ownerForSubscription(ctx, sub.Metadata, customerID)
	if err != nil {
		return err
	}

	update := models.UserPlanUpdate{}
	if customerID != "" {
		update.StripeCustomerID = &customerID
	}
	if sub.ID != "" {
		subID := sub.ID
		update.StripeSubscriptionID = &subID
	}

	plan := types.PlanFree
	if !deleted && subscriptionLive(sub.Status) && sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			plan = s.planForPrice(item.Price.ID)
		}
		if item.CurrentPeriodEnd > 0 {
			end := time.Unix(item.CurrentPeriodEnd, 0).UTC()
			update.CurrentPeriodEnd = &end
		}
	}
	update.Plan = &plan

	_, err = s.plans.Update(ctx, userID, update)
	return err
}

// ownerForSubscription prefers the user_id metadata and falls back to the customer link
func (s *CheckoutService) ownerForSubscription(ctx context.Context, metadata map[string]string, customerID string) (string, error) {
	if userID := metadata["user_id"]; userID != "" {
		return userID, nil
	}
	if customerID == "" {
		return "", apperrors.NewValidationError("Cannot determine user: missing metadata and customer id")
	}

	s.logger.WithField("stripeCustomerId", customerID).Warn("Missing user_id metadata; looking up plan by customer ID")
	plan, err := s.plans.FindByStripeCustomer(ctx, customerID)
	if err != nil {
		return "", err
	}
	return plan.UserID, nil
}

// planForPrice maps a configured Stripe price id to a plan; unknown prices grant nothing
func (s *CheckoutService) planForPrice(priceID string) types.Plan {
	switch {
	case priceID == "":
		return types.PlanFree
	case priceID == s.cfg.PriceIDBusiness:
		return types.PlanBusiness
	case priceID == s.cfg.PriceIDPro:
		return types.PlanPro
	default:
		s.logger.WithField("priceId", priceID).Warn("Unknown Stripe price, treating as free")
		return types.PlanFree
	}
}

func subscriptionLive(status stripe.SubscriptionStatus) bool {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing, stripe.SubscriptionStatusPastDue:
		return true
	default:
		return false
	}
}

func isStripeClientError(err error) bool {
	var stripeErr *stripe.Error
	return errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500 &&
		stripeErr.HTTPStatusCode != 429
}

func stripeMessage(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return stripeErr.Msg
	}
	return fmt.Sprintf("Stripe rejected the request: %v", err)
}
