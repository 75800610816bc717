package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joacominatel/connections/internal/domain"
)

const subscriptionColumns = `id, account_id, target_url, secret, is_active, created_at, updated_at`

// WebhookSubscriptionRepository implements domain.WebhookSubscriptionRepository using Postgres.
type WebhookSubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewWebhookSubscriptionRepository creates a new WebhookSubscriptionRepository.
func NewWebhookSubscriptionRepository(pool *pgxpool.Pool) *WebhookSubscriptionRepository {
	return &WebhookSubscriptionRepository{pool: pool}
}

// Save persists a webhook subscription (insert or update).
func (r *WebhookSubscriptionRepository) Save(ctx context.Context, sub *domain.WebhookSubscription) error {
	const query = `
		INSERT INTO webhook_subscriptions (id, account_id, target_url, secret, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			target_url = EXCLUDED.target_url,
			secret = EXCLUDED.secret,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	var accountID any
	if sub.AccountID() != nil {
		accountID = sub.AccountID().UUID()
	}

	_, err := querierFrom(ctx, r.pool).Exec(ctx, query,
		sub.ID().String(),
		accountID,
		sub.TargetURL(),
		sub.Secret(),
		sub.IsActive(),
		sub.CreatedAt(),
		sub.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("saving subscription: %w", err)
	}
	return nil
}

// FindByID retrieves a single subscription.
func (r *WebhookSubscriptionRepository) FindByID(ctx context.Context, id domain.WebhookSubscriptionID) (*domain.WebhookSubscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM webhook_subscriptions WHERE id = $1`

	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, id.String())
	if err != nil {
		return nil, fmt.Errorf("querying subscription: %w", err)
	}
	defer rows.Close()

	subs, err := scanSubscriptions(rows)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, domain.ErrNotFound
	}
	return subs[0], nil
}

// FindForAccount retrieves active subscriptions for an account plus the global ones.
func (r *WebhookSubscriptionRepository) FindForAccount(ctx context.Context, accountID domain.AccountID) ([]*domain.WebhookSubscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM webhook_subscriptions
		WHERE (account_id = $1 OR account_id IS NULL) AND is_active = true`

	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, accountID.UUID())
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions: %w", err)
	}
	defer rows.Close()

	return scanSubscriptions(rows)
}

// List retrieves all subscriptions, newest first.
func (r *WebhookSubscriptionRepository) List(ctx context.Context) ([]*domain.WebhookSubscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM webhook_subscriptions ORDER BY created_at DESC`

	rows, err := querierFrom(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	defer rows.Close()

	return scanSubscriptions(rows)
}

// Delete removes a subscription.
func (r *WebhookSubscriptionRepository) Delete(ctx context.Context, id domain.WebhookSubscriptionID) error {
	const query = `DELETE FROM webhook_subscriptions WHERE id = $1`

	result, err := querierFrom(ctx, r.pool).Exec(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("deleting subscription: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// scanSubscriptions scans multiple rows into subscription slice.
func scanSubscriptions(rows pgx.Rows) ([]*domain.WebhookSubscription, error) {
	var subs []*domain.WebhookSubscription

	for rows.Next() {
		var (
			id        string
			accountID *string
			targetURL string
			secret    string
			isActive  bool
			createdAt time.Time
			updatedAt time.Time
		)

		err := rows.Scan(&id, &accountID, &targetURL, &secret, &isActive, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning subscription: %w", err)
		}

		sub, err := buildSubscription(id, accountID, targetURL, secret, isActive, createdAt, updatedAt)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return subs, nil
}

// buildSubscription constructs a domain subscription from raw values.
func buildSubscription(
	id string,
	accountID *string,
	targetURL, secret string,
	isActive bool,
	createdAt, updatedAt time.Time,
) (*domain.WebhookSubscription, error) {
	subID, err := domain.NewWebhookSubscriptionID(id)
	if err != nil {
		return nil, err
	}

	var scoped *domain.AccountID
	if accountID != nil {
		parsed, err := domain.ParseAccountID(*accountID)
		if err != nil {
			return nil, fmt.Errorf("corrupted account id in database: %w", err)
		}
		scoped = &parsed
	}

	return domain.ReconstructWebhookSubscription(
		subID,
		scoped,
		targetURL,
		secret,
		isActive,
		createdAt,
		updatedAt,
	), nil
}
