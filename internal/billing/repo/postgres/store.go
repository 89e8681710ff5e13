// Package postgres implements the billing repositories on PostgreSQL using
// pgx. External Stripe ids are stored verbatim as primary keys.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jia-app/billingservice/internal/billing/domain"
	"github.com/jia-app/billingservice/internal/billing/repo"
	"github.com/jia-app/billingservice/internal/metrics"
)

// Store represents the PostgreSQL store implementation
type Store struct {
	db *pgxpool.Pool
}

// NewStoreWithPool creates a new PostgreSQL store with an existing pool
func NewStoreWithPool(pool *pgxpool.Pool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool cannot be nil")
	}
	return &Store{db: pool}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

func (s *Store) Users() repo.UserRepository                 { return &userRepository{store: s} }
func (s *Store) Products() repo.ProductRepository           { return &productRepository{store: s} }
func (s *Store) Prices() repo.PriceRepository               { return &priceRepository{store: s} }
func (s *Store) Subscriptions() repo.SubscriptionRepository { return &subscriptionRepository{store: s} }

func observe(operation string, start time.Time) {
	metrics.DatabaseQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return data, nil
}

func unmarshalMetadata(data []byte) (map[string]string, error) {
	metadata := map[string]string{}
	if len(data) == 0 {
		return metadata, nil
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return metadata, nil
}

// userRepository implements repo.UserRepository
type userRepository struct {
	store *Store
}

func (r *userRepository) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	defer observe("user_get", time.Now())

	row := r.store.db.QueryRow(ctx, `
		SELECT id, email, name, stripe_customer_id, subscription_id, subscription_status, created_at, updated_at
		FROM users WHERE id = $1`, string(id))

	var (
		user               domain.User
		customerID         pgtype.Text
		subscriptionID     pgtype.Text
		subscriptionStatus pgtype.Text
	)
	err := row.Scan(&user.ID, &user.Email, &user.Name, &customerID, &subscriptionID, &subscriptionStatus, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("user", string(id))
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if customerID.Valid {
		cid := domain.CustomerID(customerID.String)
		user.StripeCustomerID = &cid
	}
	if subscriptionID.Valid {
		sid := domain.SubscriptionID(subscriptionID.String)
		user.SubscriptionID = &sid
	}
	if subscriptionStatus.Valid {
		status := domain.SubscriptionStatus(subscriptionStatus.String)
		user.SubscriptionStatus = &status
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	defer observe("user_create", time.Now())

	_, err := r.store.db.Exec(ctx, `
		INSERT INTO users (id, email, name)
		VALUES ($1, $2, $3)`,
		string(user.ID), user.Email, user.Name)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) SetCustomerID(ctx context.Context, id domain.UserID, customerID domain.CustomerID) error {
	defer observe("user_set_customer", time.Now())

	tag, err := r.store.db.Exec(ctx, `
		UPDATE users SET stripe_customer_id = $2, updated_at = now()
		WHERE id = $1`,
		string(id), string(customerID))
	if err != nil {
		return fmt.Errorf("failed to set customer id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("user", string(id))
	}
	return nil
}

func (r *userRepository) SetSubscriptionCache(ctx context.Context, id domain.UserID, subscriptionID *domain.SubscriptionID, status *domain.SubscriptionStatus) error {
	defer observe("user_set_subscription_cache", time.Now())

	subID := pgtype.Text{}
	if subscriptionID != nil {
		subID = pgtype.Text{String: string(*subscriptionID), Valid: true}
	}
	subStatus := pgtype.Text{}
	if status != nil {
		subStatus = pgtype.Text{String: string(*status), Valid: true}
	}

	tag, err := r.store.db.Exec(ctx, `
		UPDATE users SET subscription_id = $2, subscription_status = $3, updated_at = now()
		WHERE id = $1`,
		string(id), subID, subStatus)
	if err != nil {
		return fmt.Errorf("failed to update subscription cache: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("user", string(id))
	}
	return nil
}

// productRepository implements repo.ProductRepository
type productRepository struct {
	store *Store
}

func (r *productRepository) GetByID(ctx context.Context, id domain.ProductID) (*domain.Product, error) {
	defer observe("product_get", time.Now())

	row := r.store.db.QueryRow(ctx, `
		SELECT id, name, description, active, image, metadata
		FROM products WHERE id = $1`, string(id))
	return scanProduct(row, id)
}

func scanProduct(row pgx.Row, id domain.ProductID) (*domain.Product, error) {
	var (
		product  domain.Product
		metadata []byte
	)
	err := row.Scan(&product.ID, &product.Name, &product.Description, &product.Active, &product.Image, &metadata)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("product", string(id))
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product.Metadata, err = unmarshalMetadata(metadata); err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) Upsert(ctx context.Context, product *domain.Product) error {
	defer observe("product_upsert", time.Now())

	metadata, err := marshalMetadata(product.Metadata)
	if err != nil {
		return err
	}
	_, err = r.store.db.Exec(ctx, `
		INSERT INTO products (id, name, description, active, image, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			active = EXCLUDED.active,
			image = EXCLUDED.image,
			metadata = EXCLUDED.metadata`,
		string(product.ID), product.Name, product.Description, product.Active, product.Image, metadata)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

func (r *productRepository) Delete(ctx context.Context, id domain.ProductID) error {
	defer observe("product_delete", time.Now())

	tag, err := r.store.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, string(id))
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("product", string(id))
	}
	return nil
}

func (r *productRepository) ListActive(ctx context.Context) ([]domain.Product, error) {
	defer observe("product_list_active", time.Now())

	rows, err := r.store.db.Query(ctx, `
		SELECT id, name, description, active, image, metadata
		FROM products WHERE active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var (
			product  domain.Product
			metadata []byte
		)
		if err := rows.Scan(&product.ID, &product.Name, &product.Description, &product.Active, &product.Image, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if product.Metadata, err = unmarshalMetadata(metadata); err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

// priceRepository implements repo.PriceRepository
type priceRepository struct {
	store *Store
}

const priceColumns = `id, product_id, active, currency, billing_interval, interval_count, trial_period_days, nickname, unit_amount, type, metadata`

func scanPriceRow(scan func(dest ...any) error) (*domain.Price, error) {
	var (
		price    domain.Price
		metadata []byte
	)
	err := scan(&price.ID, &price.ProductID, &price.Active, &price.Currency, &price.Interval,
		&price.IntervalCount, &price.TrialPeriodDays, &price.Nickname, &price.UnitAmount, &price.Type, &metadata)
	if err != nil {
		return nil, err
	}
	if price.Metadata, err = unmarshalMetadata(metadata); err != nil {
		return nil, err
	}
	return &price, nil
}

func (r *priceRepository) GetByID(ctx context.Context, id domain.PriceID) (*domain.Price, error) {
	defer observe("price_get", time.Now())

	row := r.store.db.QueryRow(ctx, `SELECT `+priceColumns+` FROM prices WHERE id = $1`, string(id))
	price, err := scanPriceRow(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("price", string(id))
		}
		return nil, fmt.Errorf("failed to get price: %w", err)
	}
	return price, nil
}

func (r *priceRepository) Upsert(ctx context.Context, price *domain.Price) error {
	defer observe("price_upsert", time.Now())

	metadata, err := marshalMetadata(price.Metadata)
	if err != nil {
		return err
	}
	_, err = r.store.db.Exec(ctx, `
		INSERT INTO prices (id, product_id, active, currency, billing_interval, interval_count, trial_period_days, nickname, unit_amount, type, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			product_id = EXCLUDED.product_id,
			active = EXCLUDED.active,
			currency = EXCLUDED.currency,
			billing_interval = EXCLUDED.billing_interval,
			interval_count = EXCLUDED.interval_count,
			trial_period_days = EXCLUDED.trial_period_days,
			nickname = EXCLUDED.nickname,
			unit_amount = EXCLUDED.unit_amount,
			type = EXCLUDED.type,
			metadata = EXCLUDED.metadata`,
		string(price.ID), string(price.ProductID), price.Active, price.Currency, price.Interval,
		price.IntervalCount, price.TrialPeriodDays, price.Nickname, price.UnitAmount, string(price.Type), metadata)
	if err != nil {
		return fmt.Errorf("failed to upsert price: %w", err)
	}
	return nil
}

func (r *priceRepository) Delete(ctx context.Context, id domain.PriceID) error {
	defer observe("price_delete", time.Now())

	tag, err := r.store.db.Exec(ctx, `DELETE FROM prices WHERE id = $1`, string(id))
	if err != nil {
		return fmt.Errorf("failed to delete price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("price", string(id))
	}
	return nil
}

func (r *priceRepository) ListByProducts(ctx context.Context, productIDs []domain.ProductID, activeOnly bool) (map[domain.ProductID][]domain.Price, error) {
	defer observe("price_list_by_products", time.Now())

	if len(productIDs) == 0 {
		return map[domain.ProductID][]domain.Price{}, nil
	}
	ids := make([]string, len(productIDs))
	for i, id := range productIDs {
		ids[i] = string(id)
	}

	query := `SELECT ` + priceColumns + ` FROM prices WHERE product_id = ANY($1)`
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY unit_amount`

	rows, err := r.store.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.ProductID][]domain.Price)
	for rows.Next() {
		price, err := scanPriceRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		out[price.ProductID] = append(out[price.ProductID], *price)
	}
	return out, rows.Err()
}

// subscriptionRepository implements repo.SubscriptionRepository
type subscriptionRepository struct {
	store *Store
}

const subscriptionColumns = `id, user_id, product_id, price_id, status, quantity, metadata, created_at, updated_at`

func scanSubscriptionRow(scan func(dest ...any) error) (*domain.Subscription, error) {
	var (
		sub      domain.Subscription
		metadata []byte
	)
	err := scan(&sub.ID, &sub.UserID, &sub.ProductID, &sub.PriceID, &sub.Status, &sub.Quantity,
		&metadata, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if sub.Metadata, err = unmarshalMetadata(metadata); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetByID(ctx context.Context, id domain.SubscriptionID) (*domain.Subscription, error) {
	defer observe("subscription_get", time.Now())

	row := r.store.db.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, string(id))
	sub, err := scanSubscriptionRow(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("subscription", string(id))
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

func (r *subscriptionRepository) Upsert(ctx context.Context, subscription *domain.Subscription) error {
	defer observe("subscription_upsert", time.Now())

	metadata, err := marshalMetadata(subscription.Metadata)
	if err != nil {
		return err
	}
	_, err = r.store.db.Exec(ctx, `
		INSERT INTO subscriptions (id, user_id, product_id, price_id, status, quantity, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			product_id = EXCLUDED.product_id,
			price_id = EXCLUDED.price_id,
			status = EXCLUDED.status,
			quantity = EXCLUDED.quantity,
			metadata = EXCLUDED.metadata,
			updated_at = now()`,
		string(subscription.ID), string(subscription.UserID), string(subscription.ProductID),
		string(subscription.PriceID), string(subscription.Status), subscription.Quantity, metadata)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (r *subscriptionRepository) ListByUser(ctx context.Context, userID domain.UserID) ([]domain.Subscription, error) {
	defer observe("subscription_list_by_user", time.Now())

	rows, err := r.store.db.Query(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = $1 ORDER BY created_at DESC`, string(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscriptionRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}
