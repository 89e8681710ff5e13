package usecase

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stripe/stripe-go/v76"

	"github.com/jia-app/billingservice/internal/billing/domain"
	"github.com/jia-app/billingservice/internal/billing/gateway"
	"github.com/jia-app/billingservice/internal/log"
)

func TestMain(m *testing.M) {
	log.InitNop()
	os.Exit(m.Run())
}

// fakeGateway is a scriptable gateway.Gateway used across the usecase tests.
type fakeGateway struct {
	customerID          domain.CustomerID
	customerErr         error
	createCustomerCalls int
	lastCustomerParams  gateway.CreateCustomerParams

	subscription    *gateway.SubscriptionState
	subscriptionErr error

	checkoutSession    *gateway.Session
	checkoutErr        error
	lastCheckoutParams gateway.CheckoutSessionParams

	portalSession    *gateway.Session
	portalErr        error
	lastPortalParams gateway.PortalSessionParams
}

func (f *fakeGateway) CreateCustomer(ctx context.Context, params gateway.CreateCustomerParams) (*gateway.Customer, error) {
	f.createCustomerCalls++
	f.lastCustomerParams = params
	if f.customerErr != nil {
		return nil, f.customerErr
	}
	return &gateway.Customer{ID: f.customerID}, nil
}

func (f *fakeGateway) GetSubscription(ctx context.Context, id domain.SubscriptionID) (*gateway.SubscriptionState, error) {
	if f.subscriptionErr != nil {
		return nil, f.subscriptionErr
	}
	if f.subscription == nil {
		return nil, errors.New("no subscription scripted")
	}
	return f.subscription, nil
}

func (f *fakeGateway) CreateCheckoutSession(ctx context.Context, params gateway.CheckoutSessionParams) (*gateway.Session, error) {
	f.lastCheckoutParams = params
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	return f.checkoutSession, nil
}

func (f *fakeGateway) CreateBillingPortalSession(ctx context.Context, params gateway.PortalSessionParams) (*gateway.Session, error) {
	f.lastPortalParams = params
	if f.portalErr != nil {
		return nil, f.portalErr
	}
	return f.portalSession, nil
}

func (f *fakeGateway) VerifyWebhook(payload []byte, signature string) (*stripe.Event, error) {
	return nil, errors.New("not implemented")
}
