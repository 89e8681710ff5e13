// Package gateway abstracts the external billing system. The local store is
// an eventually-consistent projection of it; everything here is a thin call
// into the provider's API.
package gateway

import (
	"context"

	"github.com/stripe/stripe-go/v76"

	"github.com/jia-app/billingservice/internal/billing/domain"
)

// Customer is a billing-system customer record.
type Customer struct {
	ID domain.CustomerID `json:"id"`
}

// Session is a hosted checkout or billing-portal session.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// SubscriptionState is the canonical state of a subscription as reported by
// the billing system.
type SubscriptionState struct {
	ID       domain.SubscriptionID     `json:"id"`
	Status   domain.SubscriptionStatus `json:"status"`
	Metadata map[string]string         `json:"metadata"`
}

// CreateCustomerParams contains parameters for creating a customer. The
// internal user id is embedded in the customer metadata for reverse lookup.
type CreateCustomerParams struct {
	UserID domain.UserID
	Email  string
	Name   string
}

// CheckoutSessionParams contains parameters for a subscription-mode hosted
// checkout flow.
type CheckoutSessionParams struct {
	CustomerID domain.CustomerID
	PriceID    domain.PriceID
	UserID     domain.UserID
	SuccessURL string
	CancelURL  string
}

// PortalSessionParams contains parameters for a hosted billing-portal flow.
type PortalSessionParams struct {
	CustomerID domain.CustomerID
	ReturnURL  string
}

// Gateway defines the interface to the external billing system.
type Gateway interface {
	// CreateCustomer creates a new customer record.
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error)

	// GetSubscription re-fetches the canonical state of a subscription.
	GetSubscription(ctx context.Context, id domain.SubscriptionID) (*SubscriptionState, error)

	// CreateCheckoutSession starts a hosted checkout flow.
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*Session, error)

	// CreateBillingPortalSession starts a hosted self-service billing flow.
	CreateBillingPortalSession(ctx context.Context, params PortalSessionParams) (*Session, error)

	// VerifyWebhook checks the delivery signature and returns the decoded
	// event.
	VerifyWebhook(payload []byte, signature string) (*stripe.Event, error)
}
