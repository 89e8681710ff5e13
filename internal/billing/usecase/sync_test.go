package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/jia-app/billingservice/internal/billing/domain"
	"github.com/jia-app/billingservice/internal/billing/gateway"
	"github.com/jia-app/billingservice/internal/billing/repo/memory"
)

func newEvent(t *testing.T, eventType string, object any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return &stripe.Event{
		ID:   "evt_test",
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func seedProduct(t *testing.T, store *memory.Store, id string) {
	t.Helper()
	require.NoError(t, store.Products().Upsert(context.Background(), &domain.Product{
		ID:     domain.ProductID(id),
		Name:   "Pro Plan",
		Active: true,
	}))
}

func seedUser(t *testing.T, store *memory.Store, id string) {
	t.Helper()
	require.NoError(t, store.Users().Create(context.Background(), &domain.User{
		ID:    domain.UserID(id),
		Email: id + "@example.com",
	}))
}

func TestApplyProductCreated(t *testing.T) {
	store := memory.NewStore()
	s := NewSynchronizer(store, &fakeGateway{}, nil, nil)

	event := newEvent(t, EventProductCreated, map[string]any{
		"id":          "prod_1",
		"name":        "Pro Plan",
		"description": "Everything included",
		"active":      true,
		"images":      []string{"https://img.example.com/pro.png", "https://img.example.com/alt.png"},
		"metadata":    map[string]string{"tier": "pro"},
	})
	require.NoError(t, s.Apply(context.Background(), event))

	product, err := store.Products().GetByID(context.Background(), "prod_1")
	require.NoError(t, err)
	assert.Equal(t, "Pro Plan", product.Name)
	assert.Equal(t, "Everything included", product.Description)
	assert.True(t, product.Active)
	assert.Equal(t, "https://img.example.com/pro.png", product.Image)
	assert.Equal(t, "pro", product.Metadata["tier"])
}

func TestApplyProductDefaults(t *testing.T) {
	store := memory.NewStore()
	s := NewSynchronizer(store, &fakeGateway{}, nil, nil)

	// No description, no images.
	event := newEvent(t, EventProductCreated, map[string]any{
		"id":     "prod_min",
		"name":   "Minimal",
		"active": true,
	})
	require.NoError(t, s.Apply(context.Background(), event))

	product, err := store.Products().GetByID(context.Background(), "prod_min")
	require.NoError(t, err)
	assert.Equal(t, "", product.Description)
	assert.Equal(t, "", product.Image)
}

func TestApplyProductUpsertIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	s := NewSynchronizer(store, &fakeGateway{}, nil, nil)

	event := newEvent(t, EventProductUpdated, map[string]any{
		"id":     "prod_1",
		"name":   "Pro Plan",
		"active": true,
	})
	require.NoError(t, s.Apply(context.Background(), event))
	require.NoError(t, s.Apply(context.Background(), event))

	products, err := store.Products().ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestApplyProductDeleted(t *testing.T) {
	store := memory.NewStore()
	s := NewSynchronizer(store, &fakeGateway{}, nil, nil)
	seedProduct(t, store, "prod_1")

	event := newEvent(t, EventProductDeleted, map[string]any{"id": "prod_1"})
	require.NoError(t, s.Apply(context.Background(), event))

	_, err := store.Products().GetByID(context.Background(), "prod_1")
	assert.True(t, domain.IsNotFound(err))

	// Redelivery of the delete is satisfied without error.
	require.NoError(t, s.Apply(context.Background(), event))
}

func TestApplyPriceCreated(t *testing.T) {
	store := memory.NewStore()
	s := NewSynchronizer(store, &fakeGateway{}, nil, nil)
	seedProduct(t, store, "prod_1")

	event := newEvent(t, EventPriceCreated, map[string]any{
		"id":          "price_1",
		"product":     "prod_1",
		"active":      true,
		"currency":    "usd",
		"nickname":    "Monthly",
		"unit_amount": 1500,
		"type":        "recurring",
		"recurring": map[string]any{
			"interval":          "month",
			"interval_count":    1,
			"trial_period_days": 14,
		},
	})
	require.NoError(t, s.Apply(context.Background(), event))
	// Redelivery converges to the same row.
	require.NoError(t, s.Apply(context.Background(), event))

	byProduct, err := store.Prices().ListByProducts(context.Background(), []domain.ProductID{"prod_1"}, false)
	require.NoError(t, err)
	require.Len(t, byProduct["prod_1"], 1)

	price, err := store.Prices().GetByID(context.Background(), "price_1")
	require.NoError(t, err)
	assert.Equal(t, domain.ProductID("prod_1"), price.ProductID)
	assert.Equal(t, "usd", price.Currency)
	assert.Equal(t, "month", price.Interval)
	assert.Equal(t, int64(1), price.IntervalCount)
	assert.Equal(t, int64(14), price.TrialPeriodDays)
	assert.Equal(t, int64(1500), price.UnitAmount)
	assert.Equal(t, domain.PriceTypeRecurring, price.Type)
}

func TestApplyPriceOneTimeDefaults(t *testing.T) {
	store := memory.NewStore()
	s := NewSynchronizer(store, &fakeGateway{}, nil, nil)
	seedProduct(t, store, "prod_1")

	// One-time price: no recurring block, no unit_amount.
	event := newEvent(t, EventPriceCreated, map[string]any{
		"id":       "price_once",
		"product":  "prod_1",
		"active":   true,
		"currency": "usd",
		"type":     "one_time",
	})
	require.NoError(t, s.Apply(context.Background(), event))

	price, err := store.Prices().GetByID(context.Background(), "price_once")
	require.NoError(t, err)
	assert.Equal(t, "", price.Interval)
	assert.Equal(t, int64(0), price.IntervalCount)
	assert.Equal(t, int64(0), price.TrialPeriodDays)
	assert.Equal(t, int64(0), price.UnitAmount)
}

func TestApplyPriceOrphanDropped(t *testing.T) {
	store := memory.NewStore()
	s := NewSynchronizer(store, &fakeGateway{}, nil, nil)

	// Parent product was never synced. The event is dropped, not failed, so
	// the delivery source does not redeliver it.
	event := newEvent(t, EventPriceCreated, map[string]any{
		"id":      "price_orphan",
		"product": "prod_unknown",
		"active":  true,
	})
	require.NoError(t, s.Apply(context.Background(), event))

	_, err := store.Prices().GetByID(context.Background(), "price_orphan")
	assert.True(t, domain.IsNotFound(err))
}

func TestApplyPriceDeletedMissingIsNoop(t *testing.T) {
	store := memory.NewStore()
	s := NewSynchronizer(store, &fakeGateway{}, nil, nil)

	event := newEvent(t, EventPriceDeleted, map[string]any{"id": "price_gone"})
	require.NoError(t, s.Apply(context.Background(), event))
}

func TestApplySubscriptionCreated(t *testing.T) {
	store := memory.NewStore()
	s := NewSynchronizer(store, &fakeGateway{}, nil, nil)
	seedUser(t, store, "user_1")

	event := newEvent(t, EventSubscriptionCreated, map[string]any{
		"id":       "sub_1",
		"status":   "trialing",
		"metadata": map[string]string{"userId": "user_1"},
		"items": map[string]any{
			"data": []map[string]any{
				{
					"price":    map[string]any{"id": "price_1", "product": "prod_1"},
					"quantity": 2,
				},
			},
		},
	})
	require.NoError(t, s.Apply(context.Background(), event))
	// Redelivery converges to the same row.
	require.NoError(t, s.Apply(context.Background(), event))

	subs, err := store.Subscriptions().ListByUser(context.Background(), "user_1")
	require.NoError(t, err)
	require.Len(t, subs, 1)

	sub, err := store.Subscriptions().GetByID(context.Background(), "sub_1")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("user_1"), sub.UserID)
	assert.Equal(t, domain.ProductID("prod_1"), sub.ProductID)
	assert.Equal(t, domain.PriceID("price_1"), sub.PriceID)
	assert.Equal(t, domain.SubscriptionStatusTrialing, sub.Status)
	// Quantity lives on the line item, not the subscription envelope.
	assert.Equal(t, int64(2), sub.Quantity)

	user, err := store.Users().GetByID(context.Background(), "user_1")
	require.NoError(t, err)
	require.NotNil(t, user.SubscriptionID)
	require.NotNil(t, user.SubscriptionStatus)
	assert.Equal(t, domain.SubscriptionID("sub_1"), *user.SubscriptionID)
	assert.Equal(t, domain.SubscriptionStatusTrialing, *user.SubscriptionStatus)
}

func TestApplySubscriptionWithoutUserDropped(t *testing.T) {
	store := memory.NewStore()
	s := NewSynchronizer(store, &fakeGateway{}, nil, nil)

	// No userId in metadata: the owning user is unknowable, drop the event.
	event := newEvent(t, EventSubscriptionUpdated, map[string]any{
		"id":     "sub_stray",
		"status": "active",
		"items": map[string]any{
			"data": []map[string]any{
				{"price": map[string]any{"id": "price_1", "product": "prod_1"}},
			},
		},
	})
	require.NoError(t, s.Apply(context.Background(), event))

	_, err := store.Subscriptions().GetByID(context.Background(), "sub_stray")
	assert.True(t, domain.IsNotFound(err))
}

func TestApplySubscriptionDeletedClearsUserCache(t *testing.T) {
	store := memory.NewStore()
	s := NewSynchronizer(store, &fakeGateway{}, nil, nil)
	seedUser(t, store, "user_1")

	created := newEvent(t, EventSubscriptionCreated, map[string]any{
		"id":       "sub_1",
		"status":   "active",
		"metadata": map[string]string{"userId": "user_1"},
		"items": map[string]any{
			"data": []map[string]any{
				{"price": map[string]any{"id": "price_1", "product": "prod_1"}},
			},
		},
	})
	require.NoError(t, s.Apply(context.Background(), created))

	deleted := newEvent(t, EventSubscriptionDeleted, map[string]any{
		"id":       "sub_1",
		"status":   "canceled",
		"metadata": map[string]string{"userId": "user_1"},
	})
	require.NoError(t, s.Apply(context.Background(), deleted))

	user, err := store.Users().GetByID(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Nil(t, user.SubscriptionID)
	assert.Nil(t, user.SubscriptionStatus)

	// The subscription row is kept as history.
	sub, err := store.Subscriptions().GetByID(context.Background(), "sub_1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)
}

func TestApplyInvoicePaid(t *testing.T) {
	store := memory.NewStore()
	gw := &fakeGateway{
		subscription: &gateway.SubscriptionState{
			ID:       "sub_1",
			Status:   domain.SubscriptionStatusActive,
			Metadata: map[string]string{"userId": "user_1"},
		},
	}
	s := NewSynchronizer(store, gw, nil, nil)
	seedUser(t, store, "user_1")

	event := newEvent(t, EventInvoicePaid, map[string]any{
		"id":           "in_1",
		"subscription": "sub_1",
	})
	require.NoError(t, s.Apply(context.Background(), event))

	user, err := store.Users().GetByID(context.Background(), "user_1")
	require.NoError(t, err)
	require.NotNil(t, user.SubscriptionStatus)
	assert.Equal(t, domain.SubscriptionStatusActive, *user.SubscriptionStatus)
}

func TestApplyInvoicePaidWithoutSubscription(t *testing.T) {
	store := memory.NewStore()
	s := NewSynchronizer(store, &fakeGateway{}, nil, nil)

	// One-off invoice: nothing to sync.
	event := newEvent(t, EventInvoicePaid, map[string]any{"id": "in_oneoff"})
	require.NoError(t, s.Apply(context.Background(), event))
}

func TestApplyUnhandledEventIsNoop(t *testing.T) {
	store := memory.NewStore()
	s := NewSynchronizer(store, &fakeGateway{}, nil, nil)

	event := newEvent(t, "charge.refunded", map[string]any{"id": "ch_1"})
	require.NoError(t, s.Apply(context.Background(), event))
}
