package usecase

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jia-app/billingservice/internal/billing/domain"
	"github.com/jia-app/billingservice/internal/billing/repo/memory"
	"github.com/jia-app/billingservice/internal/cache"
)

func seedCatalog(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()

	seedProduct(t, store, "prod_priced")
	require.NoError(t, store.Prices().Upsert(ctx, &domain.Price{
		ID:        "price_month",
		ProductID: "prod_priced",
		Active:    true,
		Currency:  "usd",
		Interval:  "month",
	}))
	require.NoError(t, store.Prices().Upsert(ctx, &domain.Price{
		ID:        "price_retired",
		ProductID: "prod_priced",
		Active:    false,
	}))

	// Active product with no active price: not offerable.
	seedProduct(t, store, "prod_unpriced")

	// Inactive product: hidden regardless of prices.
	require.NoError(t, store.Products().Upsert(ctx, &domain.Product{
		ID:     "prod_retired",
		Name:   "Legacy Plan",
		Active: false,
	}))
	require.NoError(t, store.Prices().Upsert(ctx, &domain.Price{
		ID:        "price_legacy",
		ProductID: "prod_retired",
		Active:    true,
	}))
}

func TestListProducts(t *testing.T) {
	store := memory.NewStore()
	seedCatalog(t, store)
	catalog := NewCatalog(store.Products(), store.Prices(), store.Subscriptions(), nil)

	listings, err := catalog.ListProducts(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, domain.ProductID("prod_priced"), listings[0].Product.ID)
	require.Len(t, listings[0].Prices, 1)
	assert.Equal(t, domain.PriceID("price_month"), listings[0].Prices[0].ID)
	assert.False(t, listings[0].Subscribed)
}

func TestListProductsAnnotatesViewer(t *testing.T) {
	store := memory.NewStore()
	seedCatalog(t, store)
	seedUser(t, store, "user_1")
	require.NoError(t, store.Subscriptions().Upsert(context.Background(), &domain.Subscription{
		ID:        "sub_1",
		UserID:    "user_1",
		ProductID: "prod_priced",
		PriceID:   "price_month",
		Status:    domain.SubscriptionStatusActive,
	}))
	catalog := NewCatalog(store.Products(), store.Prices(), store.Subscriptions(), nil)

	listings, err := catalog.ListProducts(context.Background(), "user_1")
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.True(t, listings[0].Subscribed)

	// Another viewer sees the same catalog unannotated.
	listings, err = catalog.ListProducts(context.Background(), "user_other")
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.False(t, listings[0].Subscribed)
}

func TestListProductsCached(t *testing.T) {
	srv := miniredis.RunT(t)
	c, err := cache.NewCache(srv.Addr(), "", 0)
	require.NoError(t, err)
	defer c.Close()

	store := memory.NewStore()
	seedCatalog(t, store)
	catalog := NewCatalog(store.Products(), store.Prices(), store.Subscriptions(), c)
	ctx := context.Background()

	listings, err := catalog.ListProducts(ctx, "")
	require.NoError(t, err)
	require.Len(t, listings, 1)

	// A direct store write is invisible until the cache is invalidated.
	seedProduct(t, store, "prod_new")
	require.NoError(t, store.Prices().Upsert(ctx, &domain.Price{
		ID: "price_new", ProductID: "prod_new", Active: true,
	}))

	listings, err = catalog.ListProducts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, listings, 1)

	catalog.InvalidateCatalog(ctx)

	listings, err = catalog.ListProducts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, listings, 2)
}

func TestActiveSubscriptions(t *testing.T) {
	store := memory.NewStore()
	seedUser(t, store, "user_1")
	ctx := context.Background()
	for _, sub := range []domain.Subscription{
		{ID: "sub_active", UserID: "user_1", Status: domain.SubscriptionStatusActive},
		{ID: "sub_trial", UserID: "user_1", Status: domain.SubscriptionStatusTrialing},
		{ID: "sub_canceled", UserID: "user_1", Status: domain.SubscriptionStatusCanceled},
		{ID: "sub_pastdue", UserID: "user_1", Status: domain.SubscriptionStatusPastDue},
		{ID: "sub_other", UserID: "user_2", Status: domain.SubscriptionStatusActive},
	} {
		cp := sub
		require.NoError(t, store.Subscriptions().Upsert(ctx, &cp))
	}
	catalog := NewCatalog(store.Products(), store.Prices(), store.Subscriptions(), nil)

	subs, err := catalog.ActiveSubscriptions(ctx, "user_1")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, domain.SubscriptionID("sub_active"), subs[0].ID)
	assert.Equal(t, domain.SubscriptionID("sub_trial"), subs[1].ID)
}

func TestActiveSubscriptionsUnauthenticated(t *testing.T) {
	store := memory.NewStore()
	catalog := NewCatalog(store.Products(), store.Prices(), store.Subscriptions(), nil)

	_, err := catalog.ActiveSubscriptions(context.Background(), "")
	assert.True(t, domain.IsNotAuthenticated(err))
}

func TestSubscriptionStatus(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	catalog := NewCatalog(store.Products(), store.Prices(), store.Subscriptions(), nil)

	summary, err := catalog.SubscriptionStatus(ctx, "user_1")
	require.NoError(t, err)
	assert.Nil(t, summary)

	require.NoError(t, store.Subscriptions().Upsert(ctx, &domain.Subscription{
		ID: "sub_trial", UserID: "user_1", Status: domain.SubscriptionStatusTrialing,
	}))
	summary, err = catalog.SubscriptionStatus(ctx, "user_1")
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.False(t, summary.Active)
	assert.Equal(t, domain.SubscriptionStatusTrialing, summary.Status)

	// A fully active subscription wins over a trialing one.
	require.NoError(t, store.Subscriptions().Upsert(ctx, &domain.Subscription{
		ID: "sub_active", UserID: "user_1", Status: domain.SubscriptionStatusActive,
	}))
	summary, err = catalog.SubscriptionStatus(ctx, "user_1")
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.True(t, summary.Active)
	assert.Equal(t, domain.SubscriptionStatusActive, summary.Status)
}
