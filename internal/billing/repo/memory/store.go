// Package memory provides an in-memory implementation of the billing
// repositories, used by tests and local development mode.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jia-app/billingservice/internal/billing/domain"
	"github.com/jia-app/billingservice/internal/billing/repo"
)

// Store is an in-memory implementation of repo.Store.
type Store struct {
	mu            sync.RWMutex
	users         map[domain.UserID]*domain.User
	products      map[domain.ProductID]*domain.Product
	productOrder  []domain.ProductID // insertion order for stable listings
	prices        map[domain.PriceID]*domain.Price
	priceOrder    []domain.PriceID
	subscriptions map[domain.SubscriptionID]*domain.Subscription
	subOrder      []domain.SubscriptionID
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		users:         make(map[domain.UserID]*domain.User),
		products:      make(map[domain.ProductID]*domain.Product),
		prices:        make(map[domain.PriceID]*domain.Price),
		subscriptions: make(map[domain.SubscriptionID]*domain.Subscription),
	}
}

func (s *Store) Users() repo.UserRepository                 { return (*userRepository)(s) }
func (s *Store) Products() repo.ProductRepository           { return (*productRepository)(s) }
func (s *Store) Prices() repo.PriceRepository               { return (*priceRepository)(s) }
func (s *Store) Subscriptions() repo.SubscriptionRepository { return (*subscriptionRepository)(s) }

type userRepository Store

func (r *userRepository) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, domain.NewNotFoundError("user", string(id))
	}
	cp := *user
	return &cp, nil
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	cp := *user
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	r.users[cp.ID] = &cp
	return nil
}

func (r *userRepository) SetCustomerID(ctx context.Context, id domain.UserID, customerID domain.CustomerID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return domain.NewNotFoundError("user", string(id))
	}
	user.StripeCustomerID = &customerID
	user.UpdatedAt = time.Now()
	return nil
}

func (r *userRepository) SetSubscriptionCache(ctx context.Context, id domain.UserID, subscriptionID *domain.SubscriptionID, status *domain.SubscriptionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return domain.NewNotFoundError("user", string(id))
	}
	user.SubscriptionID = subscriptionID
	user.SubscriptionStatus = status
	user.UpdatedAt = time.Now()
	return nil
}

type productRepository Store

func (r *productRepository) GetByID(ctx context.Context, id domain.ProductID) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	product, ok := r.products[id]
	if !ok {
		return nil, domain.NewNotFoundError("product", string(id))
	}
	cp := *product
	return &cp, nil
}

func (r *productRepository) Upsert(ctx context.Context, product *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.products[product.ID]; !exists {
		r.productOrder = append(r.productOrder, product.ID)
	}
	cp := *product
	r.products[product.ID] = &cp
	return nil
}

func (r *productRepository) Delete(ctx context.Context, id domain.ProductID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[id]; !ok {
		return domain.NewNotFoundError("product", string(id))
	}
	delete(r.products, id)
	for i, pid := range r.productOrder {
		if pid == id {
			r.productOrder = append(r.productOrder[:i], r.productOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (r *productRepository) ListActive(ctx context.Context) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Product, 0, len(r.products))
	for _, id := range r.productOrder {
		if product, ok := r.products[id]; ok && product.Active {
			out = append(out, *product)
		}
	}
	return out, nil
}

type priceRepository Store

func (r *priceRepository) GetByID(ctx context.Context, id domain.PriceID) (*domain.Price, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	price, ok := r.prices[id]
	if !ok {
		return nil, domain.NewNotFoundError("price", string(id))
	}
	cp := *price
	return &cp, nil
}

func (r *priceRepository) Upsert(ctx context.Context, price *domain.Price) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.prices[price.ID]; !exists {
		r.priceOrder = append(r.priceOrder, price.ID)
	}
	cp := *price
	r.prices[price.ID] = &cp
	return nil
}

func (r *priceRepository) Delete(ctx context.Context, id domain.PriceID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.prices[id]; !ok {
		return domain.NewNotFoundError("price", string(id))
	}
	delete(r.prices, id)
	for i, pid := range r.priceOrder {
		if pid == id {
			r.priceOrder = append(r.priceOrder[:i], r.priceOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (r *priceRepository) ListByProducts(ctx context.Context, productIDs []domain.ProductID, activeOnly bool) (map[domain.ProductID][]domain.Price, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wanted := make(map[domain.ProductID]bool, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = true
	}
	out := make(map[domain.ProductID][]domain.Price)
	for _, id := range r.priceOrder {
		price, ok := r.prices[id]
		if !ok || !wanted[price.ProductID] {
			continue
		}
		if activeOnly && !price.Active {
			continue
		}
		out[price.ProductID] = append(out[price.ProductID], *price)
	}
	return out, nil
}

type subscriptionRepository Store

func (r *subscriptionRepository) GetByID(ctx context.Context, id domain.SubscriptionID) (*domain.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subscriptions[id]
	if !ok {
		return nil, domain.NewNotFoundError("subscription", string(id))
	}
	cp := *sub
	return &cp, nil
}

func (r *subscriptionRepository) Upsert(ctx context.Context, subscription *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	cp := *subscription
	if existing, ok := r.subscriptions[cp.ID]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else {
		r.subOrder = append(r.subOrder, cp.ID)
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = now
		}
	}
	cp.UpdatedAt = now
	r.subscriptions[cp.ID] = &cp
	return nil
}

func (r *subscriptionRepository) ListByUser(ctx context.Context, userID domain.UserID) ([]domain.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Subscription
	for _, id := range r.subOrder {
		if sub, ok := r.subscriptions[id]; ok && sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	return out, nil
}
