package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jia-app/billingservice/internal/billing/domain"
	"github.com/jia-app/billingservice/internal/billing/repo"
	"github.com/jia-app/billingservice/internal/cache"
	"github.com/jia-app/billingservice/internal/log"
	"github.com/jia-app/billingservice/internal/metrics"
)

// catalogCacheKey holds the viewer-independent product listing. Per-viewer
// annotation is always computed on top of it, never cached.
const catalogCacheKey = "billing:catalog:products"

const catalogCacheTTL = 5 * time.Minute

// ProductListing is an active product with its active prices and, when a
// viewer is known, whether that viewer holds a subscription to it.
type ProductListing struct {
	Product    domain.Product `json:"product"`
	Prices     []domain.Price `json:"prices"`
	Subscribed bool           `json:"subscribed"`
}

// StatusSummary reports the viewer's most relevant subscription status.
type StatusSummary struct {
	Active bool                      `json:"active"`
	Status domain.SubscriptionStatus `json:"status"`
}

// Catalog exposes the read-only queries consumed by the presentation layer.
type Catalog struct {
	products      repo.ProductRepository
	prices        repo.PriceRepository
	subscriptions repo.SubscriptionRepository
	cache         *cache.Cache // can be nil if Redis is not available
}

// NewCatalog creates a new catalog query service
func NewCatalog(products repo.ProductRepository, prices repo.PriceRepository, subscriptions repo.SubscriptionRepository, c *cache.Cache) *Catalog {
	return &Catalog{products: products, prices: prices, subscriptions: subscriptions, cache: c}
}

// ListProducts returns active products that have at least one active price.
// When viewerID is non-empty each product is annotated with whether the
// viewer holds a subscription to it.
func (c *Catalog) ListProducts(ctx context.Context, viewerID domain.UserID) ([]ProductListing, error) {
	listings, err := c.baseListing(ctx)
	if err != nil {
		return nil, err
	}

	if viewerID != "" {
		subs, err := c.subscriptions.ListByUser(ctx, viewerID)
		if err != nil {
			return nil, err
		}
		subscribed := make(map[domain.ProductID]bool, len(subs))
		for _, sub := range subs {
			subscribed[sub.ProductID] = true
		}
		for i := range listings {
			listings[i].Subscribed = subscribed[listings[i].Product.ID]
		}
	}

	return listings, nil
}

// baseListing builds the viewer-independent listing, read through the cache
// when one is configured.
func (c *Catalog) baseListing(ctx context.Context) ([]ProductListing, error) {
	if c.cache != nil {
		var cached []ProductListing
		hit, err := c.cache.Get(ctx, catalogCacheKey, &cached)
		if err != nil {
			log.Warn(ctx, "Catalog cache read failed", zap.Error(err))
		} else if hit {
			metrics.CatalogCacheHit.Inc()
			return cached, nil
		}
		metrics.CatalogCacheMiss.Inc()
	}

	products, err := c.products.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]domain.ProductID, len(products))
	for i, product := range products {
		ids[i] = product.ID
	}
	pricesByProduct, err := c.prices.ListByProducts(ctx, ids, true)
	if err != nil {
		return nil, err
	}

	listings := make([]ProductListing, 0, len(products))
	for _, product := range products {
		prices := pricesByProduct[product.ID]
		// Products without any price are not offerable and stay hidden.
		if len(prices) == 0 {
			continue
		}
		listings = append(listings, ProductListing{Product: product, Prices: prices})
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, catalogCacheKey, listings, catalogCacheTTL); err != nil {
			log.Warn(ctx, "Catalog cache write failed", zap.Error(err))
		}
	}

	return listings, nil
}

// ActiveSubscriptions returns the viewer's subscriptions whose status is in
// the active-status set.
func (c *Catalog) ActiveSubscriptions(ctx context.Context, userID domain.UserID) ([]domain.Subscription, error) {
	if userID == "" {
		return nil, domain.NewNotAuthenticatedError()
	}

	subs, err := c.subscriptions.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	active := make([]domain.Subscription, 0, len(subs))
	for _, sub := range subs {
		if sub.Status.IsActive() {
			active = append(active, sub)
		}
	}
	return active, nil
}

// SubscriptionStatus returns the viewer's most relevant active-status
// subscription, or nil when the viewer has none. Fully active subscriptions
// win over trialing ones.
func (c *Catalog) SubscriptionStatus(ctx context.Context, userID domain.UserID) (*StatusSummary, error) {
	active, err := c.ActiveSubscriptions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}

	best := active[0]
	for _, sub := range active[1:] {
		if sub.Status == domain.SubscriptionStatusActive && best.Status != domain.SubscriptionStatusActive {
			best = sub
		}
	}

	return &StatusSummary{
		Active: best.Status == domain.SubscriptionStatusActive,
		Status: best.Status,
	}, nil
}

// InvalidateCatalog drops the cached product listing after a catalog change.
func (c *Catalog) InvalidateCatalog(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Delete(ctx, catalogCacheKey); err != nil {
		log.Warn(ctx, "Catalog cache invalidation failed", zap.Error(err))
	}
}
