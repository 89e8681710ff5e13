package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	portalsession "github.com/stripe/stripe-go/v76/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/subscription"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/jia-app/billingservice/internal/billing/domain"
	"github.com/jia-app/billingservice/internal/log"
)

const apiCallTimeout = 30 * time.Second

// StripeGateway implements Gateway using the Stripe API.
type StripeGateway struct {
	webhookSecret string
}

// NewStripeGateway creates a new Stripe gateway
func NewStripeGateway(secretKey, webhookSecret string) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	if webhookSecret == "" {
		return nil, fmt.Errorf("stripe webhook secret is required")
	}

	// Set the Stripe API key
	stripe.Key = secretKey

	return &StripeGateway{webhookSecret: webhookSecret}, nil
}

// CreateCustomer creates a Stripe customer, embedding the internal user id
// in the customer metadata for reverse lookup.
func (g *StripeGateway) CreateCustomer(ctx context.Context, p CreateCustomerParams) (*Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, apiCallTimeout)
	defer cancel()

	params := &stripe.CustomerParams{}
	params.Context = ctx
	if p.Email != "" {
		params.Email = stripe.String(p.Email)
	}
	if p.Name != "" {
		params.Name = stripe.String(p.Name)
	}
	params.AddMetadata(domain.MetadataUserIDKey, string(p.UserID))

	cust, err := customer.New(params)
	if err != nil {
		log.Error(ctx, "Failed to create Stripe customer",
			zap.Error(err),
			zap.String("user_id", string(p.UserID)))
		return nil, fmt.Errorf("failed to create Stripe customer: %w", err)
	}

	log.Info(ctx, "Stripe customer created",
		zap.String("customer_id", cust.ID),
		zap.String("user_id", string(p.UserID)))

	return &Customer{ID: domain.CustomerID(cust.ID)}, nil
}

// GetSubscription retrieves the canonical subscription state from Stripe.
func (g *StripeGateway) GetSubscription(ctx context.Context, id domain.SubscriptionID) (*SubscriptionState, error) {
	ctx, cancel := context.WithTimeout(ctx, apiCallTimeout)
	defer cancel()

	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := subscription.Get(string(id), params)
	if err != nil {
		log.Error(ctx, "Failed to retrieve Stripe subscription",
			zap.Error(err),
			zap.String("subscription_id", string(id)))
		return nil, fmt.Errorf("failed to retrieve Stripe subscription: %w", err)
	}

	return &SubscriptionState{
		ID:       domain.SubscriptionID(sub.ID),
		Status:   domain.SubscriptionStatus(sub.Status),
		Metadata: sub.Metadata,
	}, nil
}

// CreateCheckoutSession creates a subscription-mode hosted checkout session.
// The internal user id is embedded in the future subscription's metadata so
// webhook handlers can recover the owning user.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, apiCallTimeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Customer:          stripe.String(string(p.CustomerID)),
		ClientReferenceID: stripe.String(string(p.UserID)),
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: []*string{
			stripe.String("card"),
		},
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(string(p.PriceID)),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				domain.MetadataUserIDKey: string(p.UserID),
			},
		},
	}
	params.Context = ctx

	sess, err := checkoutsession.New(params)
	if err != nil {
		log.Error(ctx, "Failed to create Stripe checkout session",
			zap.Error(err),
			zap.String("user_id", string(p.UserID)),
			zap.String("price_id", string(p.PriceID)))
		return nil, fmt.Errorf("failed to create Stripe checkout session: %w", err)
	}

	log.Info(ctx, "Stripe checkout session created",
		zap.String("session_id", sess.ID),
		zap.String("user_id", string(p.UserID)),
		zap.String("price_id", string(p.PriceID)))

	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

// CreateBillingPortalSession creates a hosted billing-portal session.
func (g *StripeGateway) CreateBillingPortalSession(ctx context.Context, p PortalSessionParams) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, apiCallTimeout)
	defer cancel()

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(string(p.CustomerID)),
		ReturnURL: stripe.String(p.ReturnURL),
	}
	params.Context = ctx

	sess, err := portalsession.New(params)
	if err != nil {
		log.Error(ctx, "Failed to create Stripe billing portal session",
			zap.Error(err),
			zap.String("customer_id", string(p.CustomerID)))
		return nil, fmt.Errorf("failed to create Stripe billing portal session: %w", err)
	}

	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

// VerifyWebhook validates a Stripe webhook signature and decodes the event.
func (g *StripeGateway) VerifyWebhook(payload []byte, signature string) (*stripe.Event, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	if signature == "" {
		return nil, fmt.Errorf("empty signature")
	}

	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to validate webhook signature: %w", err)
	}
	return &event, nil
}
