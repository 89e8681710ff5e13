package usecase

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"

	"github.com/jia-app/billingservice/internal/billing/domain"
	"github.com/jia-app/billingservice/internal/billing/gateway"
	"github.com/jia-app/billingservice/internal/billing/repo"
	"github.com/jia-app/billingservice/internal/cache"
	"github.com/jia-app/billingservice/internal/events"
	"github.com/jia-app/billingservice/internal/log"
	"github.com/jia-app/billingservice/internal/metrics"
)

// Webhook event types the synchronizer acts on. Anything else is a no-op.
const (
	EventInvoicePaid         = "invoice.paid"
	EventProductCreated      = "product.created"
	EventProductUpdated      = "product.updated"
	EventProductDeleted      = "product.deleted"
	EventPriceCreated        = "price.created"
	EventPriceUpdated        = "price.updated"
	EventPriceDeleted        = "price.deleted"
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// Synchronizer applies billing webhook events to the local store. Every
// handler is an upsert or delete keyed by the resource's external id, so
// redelivered events converge to the same state. Cross-resource ordering
// (price before product, subscription before price) is the provider's
// guarantee; when it is violated the event is logged and dropped instead of
// corrupting the catalog.
type Synchronizer struct {
	store     repo.Store
	gw        gateway.Gateway
	cache     *cache.Cache // can be nil if Redis is not available
	publisher events.Publisher
}

// NewSynchronizer creates a new event synchronizer
func NewSynchronizer(store repo.Store, gw gateway.Gateway, c *cache.Cache, publisher events.Publisher) *Synchronizer {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Synchronizer{store: store, gw: gw, cache: c, publisher: publisher}
}

// Apply dispatches one verified event to its handler. A returned error means
// the event was not applied and the delivery source should redeliver it.
func (s *Synchronizer) Apply(ctx context.Context, event *stripe.Event) error {
	eventType := string(event.Type)

	var err error
	switch eventType {
	case EventInvoicePaid:
		err = s.applyInvoicePaid(ctx, event)
	case EventProductCreated, EventProductUpdated:
		err = s.applyProductUpsert(ctx, event)
	case EventProductDeleted:
		err = s.applyProductDeleted(ctx, event)
	case EventPriceCreated, EventPriceUpdated:
		err = s.applyPriceUpsert(ctx, event)
	case EventPriceDeleted:
		err = s.applyPriceDeleted(ctx, event)
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		err = s.applySubscriptionUpsert(ctx, event)
	case EventSubscriptionDeleted:
		err = s.applySubscriptionDeleted(ctx, event)
	default:
		log.Debug(ctx, "Ignoring unhandled event type", zap.String("event_type", eventType))
		return nil
	}

	if err != nil {
		log.Error(ctx, "Failed to apply event",
			zap.Error(err),
			zap.String("event_id", event.ID),
			zap.String("event_type", eventType))
		return err
	}

	metrics.WebhookProcessed.WithLabelValues(eventType).Inc()
	return nil
}

func unmarshalObject(event *stripe.Event, dest any) error {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return domain.NewInvalidInputError("event carries no object", event.ID)
	}
	if err := json.Unmarshal(event.Data.Raw, dest); err != nil {
		return domain.NewInvalidInputError("failed to decode event object", err.Error())
	}
	return nil
}

// drop records an event that references a not-yet-known resource. Such events
// are logged and discarded; no retry is scheduled by this system.
func (s *Synchronizer) drop(ctx context.Context, event *stripe.Event, reason string, fields ...zap.Field) error {
	fields = append(fields,
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("reason", reason))
	log.Warn(ctx, "Dropping event", fields...)
	metrics.WebhookDropped.WithLabelValues(string(event.Type)).Inc()
	return nil
}

// applyInvoicePaid re-fetches the canonical subscription referenced by the
// invoice and writes the owning user's cached subscription id/status.
func (s *Synchronizer) applyInvoicePaid(ctx context.Context, event *stripe.Event) error {
	var invoice stripe.Invoice
	if err := unmarshalObject(event, &invoice); err != nil {
		return err
	}

	if invoice.Subscription == nil || invoice.Subscription.ID == "" {
		// One-off invoices carry no subscription; nothing to sync.
		log.Debug(ctx, "Invoice without subscription", zap.String("invoice_id", invoice.ID))
		return nil
	}

	state, err := s.gw.GetSubscription(ctx, domain.SubscriptionID(invoice.Subscription.ID))
	if err != nil {
		return domain.NewUpstreamError("subscription retrieval", err.Error())
	}

	userID := domain.UserID(state.Metadata[domain.MetadataUserIDKey])
	if userID == "" {
		return s.drop(ctx, event, "subscription metadata has no user id",
			zap.String("subscription_id", string(state.ID)))
	}

	status := state.Status
	subID := state.ID
	return s.store.Users().SetSubscriptionCache(ctx, userID, &subID, &status)
}

func (s *Synchronizer) applyProductUpsert(ctx context.Context, event *stripe.Event) error {
	var product stripe.Product
	if err := unmarshalObject(event, &product); err != nil {
		return err
	}

	image := ""
	if len(product.Images) > 0 {
		image = product.Images[0]
	}

	record := &domain.Product{
		ID:          domain.ProductID(product.ID),
		Name:        product.Name,
		Description: product.Description,
		Active:      product.Active,
		Image:       image,
		Metadata:    product.Metadata,
	}
	if err := s.store.Products().Upsert(ctx, record); err != nil {
		return err
	}

	s.invalidateCatalog(ctx)
	s.publish(ctx, events.NewEvent(events.TypeCatalogChanged, product.ID, map[string]any{
		"resource": "product",
	}))
	return nil
}

func (s *Synchronizer) applyProductDeleted(ctx context.Context, event *stripe.Event) error {
	var product stripe.Product
	if err := unmarshalObject(event, &product); err != nil {
		return err
	}

	err := s.store.Products().Delete(ctx, domain.ProductID(product.ID))
	if err != nil {
		if domain.IsNotFound(err) {
			// Already absent; the delete is satisfied.
			log.Debug(ctx, "Product already deleted", zap.String("product_id", product.ID))
			return nil
		}
		return err
	}

	s.invalidateCatalog(ctx)
	s.publish(ctx, events.NewEvent(events.TypeCatalogChanged, product.ID, map[string]any{
		"resource": "product",
	}))
	return nil
}

// applyPriceUpsert mirrors a price, refusing to create an orphan: a price
// whose parent product is unknown is dropped, keeping catalog integrity
// ahead of completeness.
func (s *Synchronizer) applyPriceUpsert(ctx context.Context, event *stripe.Event) error {
	var price stripe.Price
	if err := unmarshalObject(event, &price); err != nil {
		return err
	}

	if price.Product == nil || price.Product.ID == "" {
		return s.drop(ctx, event, "price has no product reference",
			zap.String("price_id", price.ID))
	}

	product, err := s.store.Products().GetByID(ctx, domain.ProductID(price.Product.ID))
	if err != nil {
		if domain.IsNotFound(err) {
			return s.drop(ctx, event, "parent product not in store",
				zap.String("price_id", price.ID),
				zap.String("product_id", price.Product.ID))
		}
		return err
	}

	record := &domain.Price{
		ID:         domain.PriceID(price.ID),
		ProductID:  product.ID,
		Active:     price.Active,
		Currency:   string(price.Currency),
		Nickname:   price.Nickname,
		UnitAmount: price.UnitAmount,
		Type:       domain.PriceType(price.Type),
		Metadata:   price.Metadata,
	}
	// One-time prices have no recurring block; interval fields stay
	// empty/zero rather than null.
	if price.Recurring != nil {
		record.Interval = string(price.Recurring.Interval)
		record.IntervalCount = price.Recurring.IntervalCount
		record.TrialPeriodDays = price.Recurring.TrialPeriodDays
	}

	if err := s.store.Prices().Upsert(ctx, record); err != nil {
		return err
	}

	s.invalidateCatalog(ctx)
	s.publish(ctx, events.NewEvent(events.TypeCatalogChanged, price.ID, map[string]any{
		"resource": "price",
	}))
	return nil
}

func (s *Synchronizer) applyPriceDeleted(ctx context.Context, event *stripe.Event) error {
	var price stripe.Price
	if err := unmarshalObject(event, &price); err != nil {
		return err
	}

	err := s.store.Prices().Delete(ctx, domain.PriceID(price.ID))
	if err != nil {
		if domain.IsNotFound(err) {
			log.Debug(ctx, "Price already deleted", zap.String("price_id", price.ID))
			return nil
		}
		return err
	}

	s.invalidateCatalog(ctx)
	s.publish(ctx, events.NewEvent(events.TypeCatalogChanged, price.ID, map[string]any{
		"resource": "price",
	}))
	return nil
}

// applySubscriptionUpsert mirrors a subscription and refreshes the owning
// user's cached subscription id/status. The owning user comes from the
// subscription metadata planted at checkout time.
func (s *Synchronizer) applySubscriptionUpsert(ctx context.Context, event *stripe.Event) error {
	var sub stripe.Subscription
	if err := unmarshalObject(event, &sub); err != nil {
		return err
	}

	userID := domain.UserID(sub.Metadata[domain.MetadataUserIDKey])
	if userID == "" {
		return s.drop(ctx, event, "subscription metadata has no user id",
			zap.String("subscription_id", sub.ID))
	}

	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return s.drop(ctx, event, "subscription has no price item",
			zap.String("subscription_id", sub.ID))
	}
	item := sub.Items.Data[0]
	price := item.Price
	if price.Product == nil || price.Product.ID == "" {
		return s.drop(ctx, event, "subscription price has no product",
			zap.String("subscription_id", sub.ID),
			zap.String("price_id", price.ID))
	}

	record := &domain.Subscription{
		ID:        domain.SubscriptionID(sub.ID),
		UserID:    userID,
		ProductID: domain.ProductID(price.Product.ID),
		PriceID:   domain.PriceID(price.ID),
		Status:    domain.SubscriptionStatus(sub.Status),
		Quantity:  item.Quantity,
		Metadata:  sub.Metadata,
	}
	if err := s.store.Subscriptions().Upsert(ctx, record); err != nil {
		return err
	}

	// Refresh the denormalized user-level cache after every
	// subscription-affecting event; it is derived, never authoritative.
	if err := s.store.Users().SetSubscriptionCache(ctx, userID, &record.ID, &record.Status); err != nil {
		return err
	}

	s.publish(ctx, events.NewEvent(events.TypeSubscriptionUpdated, sub.ID, map[string]any{
		"user_id": string(userID),
		"status":  string(record.Status),
	}))
	return nil
}

// applySubscriptionDeleted clears the owning user's cached subscription
// id/status. The subscription row itself is kept as history.
func (s *Synchronizer) applySubscriptionDeleted(ctx context.Context, event *stripe.Event) error {
	var sub stripe.Subscription
	if err := unmarshalObject(event, &sub); err != nil {
		return err
	}

	userID := domain.UserID(sub.Metadata[domain.MetadataUserIDKey])
	if userID == "" {
		return s.drop(ctx, event, "subscription metadata has no user id",
			zap.String("subscription_id", sub.ID))
	}

	if err := s.store.Users().SetSubscriptionCache(ctx, userID, nil, nil); err != nil {
		return err
	}

	s.publish(ctx, events.NewEvent(events.TypeSubscriptionCanceled, sub.ID, map[string]any{
		"user_id": string(userID),
	}))
	return nil
}

func (s *Synchronizer) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, catalogCacheKey); err != nil {
		log.Warn(ctx, "Catalog cache invalidation failed", zap.Error(err))
	}
}

// publish is best effort; the event is already applied to the store and a
// publishing failure must not trigger a redelivery.
func (s *Synchronizer) publish(ctx context.Context, event *events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warn(ctx, "Failed to publish domain event",
			zap.Error(err),
			zap.String("event_type", event.Type))
	}
}
