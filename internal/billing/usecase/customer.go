package usecase

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/jia-app/billingservice/internal/billing/domain"
	"github.com/jia-app/billingservice/internal/billing/gateway"
	"github.com/jia-app/billingservice/internal/billing/repo"
	"github.com/jia-app/billingservice/internal/log"
	"github.com/jia-app/billingservice/internal/metrics"
)

// CustomerResolver maps internal users to billing-system customer ids,
// creating the external record on first use. The customer id is written
// exactly once per user.
type CustomerResolver struct {
	users repo.UserRepository
	gw    gateway.Gateway

	// locks serializes read-then-maybe-create-then-write per user so two
	// concurrent resolutions cannot both create an external customer.
	// Entries are never evicted; the map is bounded by the number of
	// distinct users seen by this process.
	locks sync.Map
}

// NewCustomerResolver creates a new customer resolver
func NewCustomerResolver(users repo.UserRepository, gw gateway.Gateway) *CustomerResolver {
	return &CustomerResolver{users: users, gw: gw}
}

func (r *CustomerResolver) lock(id domain.UserID) func() {
	v, _ := r.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Resolve returns the billing customer id for a user. The common path is a
// single store read; only users without a billing identity trigger an
// external call.
func (r *CustomerResolver) Resolve(ctx context.Context, userID domain.UserID) (domain.CustomerID, error) {
	if userID == "" {
		return "", domain.NewInvalidInputError("user id is required", "")
	}

	unlock := r.lock(userID)
	defer unlock()

	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}

	if user.StripeCustomerID != nil {
		return *user.StripeCustomerID, nil
	}

	cust, err := r.gw.CreateCustomer(ctx, gateway.CreateCustomerParams{
		UserID: userID,
		Email:  user.Email,
		Name:   user.Name,
	})
	if err != nil {
		return "", domain.NewUpstreamError("customer creation", err.Error())
	}

	if err := r.users.SetCustomerID(ctx, userID, cust.ID); err != nil {
		return "", err
	}
	metrics.CustomersCreated.Inc()

	log.Info(ctx, "Created billing customer for user",
		zap.String("user_id", string(userID)),
		zap.String("customer_id", string(cust.ID)))

	return cust.ID, nil
}
