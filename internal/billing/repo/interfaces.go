package repo

import (
	"context"

	"github.com/jia-app/billingservice/internal/billing/domain"
)

// UserRepository manages internal users and their cached billing state.
type UserRepository interface {
	// GetByID returns a user by internal id.
	GetByID(ctx context.Context, id domain.UserID) (*domain.User, error)

	// Create inserts a new user row.
	Create(ctx context.Context, user *domain.User) error

	// SetCustomerID persists the Stripe customer id for a user. Written
	// exactly once per user, the first time a billing identity is needed.
	SetCustomerID(ctx context.Context, id domain.UserID, customerID domain.CustomerID) error

	// SetSubscriptionCache updates the denormalized subscription id/status
	// cache on a user. Passing nils clears both fields.
	SetSubscriptionCache(ctx context.Context, id domain.UserID, subscriptionID *domain.SubscriptionID, status *domain.SubscriptionStatus) error
}

// ProductRepository manages the mirrored Stripe product catalog.
type ProductRepository interface {
	// GetByID returns a product by Stripe product id.
	GetByID(ctx context.Context, id domain.ProductID) (*domain.Product, error)

	// Upsert creates or replaces a product keyed by its Stripe id.
	Upsert(ctx context.Context, product *domain.Product) error

	// Delete removes a product. Returns a not found error when absent.
	Delete(ctx context.Context, id domain.ProductID) error

	// ListActive returns all active products.
	ListActive(ctx context.Context) ([]domain.Product, error)
}

// PriceRepository manages the mirrored Stripe prices.
type PriceRepository interface {
	// GetByID returns a price by Stripe price id.
	GetByID(ctx context.Context, id domain.PriceID) (*domain.Price, error)

	// Upsert creates or replaces a price keyed by its Stripe id.
	Upsert(ctx context.Context, price *domain.Price) error

	// Delete removes a price. Returns a not found error when absent.
	Delete(ctx context.Context, id domain.PriceID) error

	// ListByProducts returns prices grouped by product id. When activeOnly
	// is set, inactive prices are skipped.
	ListByProducts(ctx context.Context, productIDs []domain.ProductID, activeOnly bool) (map[domain.ProductID][]domain.Price, error)
}

// SubscriptionRepository manages mirrored Stripe subscriptions. Rows are
// never deleted; cancellation is recorded on the user cache only so the
// subscription history is preserved.
type SubscriptionRepository interface {
	// GetByID returns a subscription by Stripe subscription id.
	GetByID(ctx context.Context, id domain.SubscriptionID) (*domain.Subscription, error)

	// Upsert creates or replaces a subscription keyed by its Stripe id.
	Upsert(ctx context.Context, subscription *domain.Subscription) error

	// ListByUser returns all subscriptions owned by a user, any status.
	ListByUser(ctx context.Context, userID domain.UserID) ([]domain.Subscription, error)
}

// Store bundles the billing repositories behind one handle.
type Store interface {
	Users() UserRepository
	Products() ProductRepository
	Prices() PriceRepository
	Subscriptions() SubscriptionRepository
}
