package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/jia-app/billingservice/internal/billing/domain"
	"github.com/jia-app/billingservice/internal/billing/gateway"
	"github.com/jia-app/billingservice/internal/billing/repo"
	"github.com/jia-app/billingservice/internal/log"
	"github.com/jia-app/billingservice/internal/metrics"
)

// Checkout starts hosted checkout and billing-portal flows. The hosted pages
// are opaque redirect targets; all we return is the URL.
type Checkout struct {
	resolver *CustomerResolver
	prices   repo.PriceRepository
	gw       gateway.Gateway
}

// NewCheckout creates a new checkout use case
func NewCheckout(resolver *CustomerResolver, prices repo.PriceRepository, gw gateway.Gateway) *Checkout {
	return &Checkout{resolver: resolver, prices: prices, gw: gw}
}

// StartCheckout creates a subscription-mode checkout session for a price and
// returns the hosted checkout URL. baseURL is derived from the serving
// request's origin.
func (c *Checkout) StartCheckout(ctx context.Context, userID domain.UserID, priceID domain.PriceID, baseURL string) (string, error) {
	if userID == "" {
		return "", domain.NewNotAuthenticatedError()
	}
	if priceID == "" {
		return "", domain.NewInvalidInputError("price id is required", "")
	}

	customerID, err := c.resolver.Resolve(ctx, userID)
	if err != nil {
		return "", err
	}

	price, err := c.prices.GetByID(ctx, priceID)
	if err != nil {
		return "", err
	}

	sess, err := c.gw.CreateCheckoutSession(ctx, gateway.CheckoutSessionParams{
		CustomerID: customerID,
		PriceID:    price.ID,
		UserID:     userID,
		SuccessURL: baseURL + "/dashboard?checkoutSuccess=true",
		CancelURL:  baseURL + "/dashboard?checkoutCanceled=true",
	})
	if err != nil {
		return "", domain.NewUpstreamError("checkout session creation", err.Error())
	}
	if sess == nil || sess.URL == "" {
		return "", domain.NewUpstreamError("checkout session creation", "no session returned")
	}
	metrics.CheckoutSessionsCreated.Inc()

	log.Info(ctx, "Checkout session started",
		zap.String("user_id", string(userID)),
		zap.String("price_id", string(priceID)),
		zap.String("session_id", sess.ID))

	return sess.URL, nil
}

// StartPortalSession creates a hosted billing-portal session and returns its
// URL. The portal returns the user to the dashboard when done.
func (c *Checkout) StartPortalSession(ctx context.Context, userID domain.UserID, baseURL string) (string, error) {
	if userID == "" {
		return "", domain.NewNotAuthenticatedError()
	}

	customerID, err := c.resolver.Resolve(ctx, userID)
	if err != nil {
		return "", err
	}

	sess, err := c.gw.CreateBillingPortalSession(ctx, gateway.PortalSessionParams{
		CustomerID: customerID,
		ReturnURL:  baseURL + "/dashboard",
	})
	if err != nil {
		return "", domain.NewUpstreamError("billing portal session creation", err.Error())
	}
	if sess == nil || sess.URL == "" {
		return "", domain.NewUpstreamError("billing portal session creation", "no session returned")
	}
	metrics.PortalSessionsCreated.Inc()

	log.Info(ctx, "Billing portal session started",
		zap.String("user_id", string(userID)),
		zap.String("session_id", sess.ID))

	return sess.URL, nil
}
