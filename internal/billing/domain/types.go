package domain

import (
	"time"
)

// External identifiers are reused verbatim as primary keys, so internal and
// Stripe-side ids must never be mixed up. Each id gets its own named type to
// make that a compile-time property.
type (
	// UserID identifies a user in our own database.
	UserID string

	// CustomerID is a Stripe customer id (cus_...).
	CustomerID string

	// ProductID is a Stripe product id (prod_...).
	ProductID string

	// PriceID is a Stripe price id (price_...).
	PriceID string

	// SubscriptionID is a Stripe subscription id (sub_...).
	SubscriptionID string
)

// MetadataUserIDKey is the metadata key under which the internal user id is
// embedded in Stripe customer and subscription objects. It is the only join
// key between the two systems.
const MetadataUserIDKey = "userId"

// SubscriptionStatus is the Stripe subscription lifecycle status.
type SubscriptionStatus string

const (
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusPaused            SubscriptionStatus = "paused"
)

// IsActive reports whether the status counts as an entitling subscription.
func (s SubscriptionStatus) IsActive() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// PriceType distinguishes one-off prices from recurring ones.
type PriceType string

const (
	PriceTypeOneTime   PriceType = "one_time"
	PriceTypeRecurring PriceType = "recurring"
)

// User is an internal identity. StripeCustomerID is set exactly once the
// first time the user needs a billing identity. SubscriptionID and
// SubscriptionStatus are a denormalized cache of the user's primary
// subscription, derived from webhook events and never authoritative.
type User struct {
	ID                 UserID              `json:"id"`
	Email              string              `json:"email"`
	Name               string              `json:"name"`
	StripeCustomerID   *CustomerID         `json:"stripeCustomerId,omitempty"`
	SubscriptionID     *SubscriptionID     `json:"subscriptionId,omitempty"`
	SubscriptionStatus *SubscriptionStatus `json:"subscriptionStatus,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

// Product mirrors a Stripe catalog product.
type Product struct {
	ID          ProductID         `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Active      bool              `json:"active"`
	Image       string            `json:"image"`
	Metadata    map[string]string `json:"metadata"`
}

// Price mirrors a Stripe price and belongs to exactly one Product. Interval
// fields default to empty/zero for one-time prices so the columns stay
// non-nullable.
type Price struct {
	ID              PriceID           `json:"id"`
	ProductID       ProductID         `json:"productId"`
	Active          bool              `json:"active"`
	Currency        string            `json:"currency"`
	Interval        string            `json:"interval"`
	IntervalCount   int64             `json:"intervalCount"`
	TrialPeriodDays int64             `json:"trialPeriodDays"`
	Nickname        string            `json:"nickname"`
	UnitAmount      int64             `json:"unitAmount"`
	Type            PriceType         `json:"type"`
	Metadata        map[string]string `json:"metadata"`
}

// Subscription mirrors a Stripe subscription. The owning user id is carried
// in the subscription metadata at creation time by the checkout flow.
type Subscription struct {
	ID        SubscriptionID     `json:"id"`
	UserID    UserID             `json:"userId"`
	ProductID ProductID          `json:"productId"`
	PriceID   PriceID            `json:"priceId"`
	Status    SubscriptionStatus `json:"status"`
	Quantity  int64              `json:"quantity"`
	Metadata  map[string]string  `json:"metadata"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
