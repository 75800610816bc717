package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joacominatel/connections/internal/domain"
)

// pg error code for foreign_key_violation
const foreignKeyViolation = "23503"

// FollowerRepository implements domain.FollowerRepository using Postgres.
type FollowerRepository struct {
	pool *pgxpool.Pool
}

// NewFollowerRepository creates a new FollowerRepository.
func NewFollowerRepository(pool *pgxpool.Pool) *FollowerRepository {
	return &FollowerRepository{pool: pool}
}

// AddFollowers inserts followers the account does not have yet.
func (r *FollowerRepository) AddFollowers(ctx context.Context, accountID domain.AccountID, followers []domain.FollowerID, observedAt time.Time) (int, error) {
	if len(followers) == 0 {
		return 0, nil
	}

	const query = `
		INSERT INTO account_followers (account_id, follower_id, observed_at)
		SELECT $1, f, $3 FROM unnest($2::text[]) AS f
		ON CONFLICT (account_id, follower_id) DO NOTHING
	`

	result, err := querierFrom(ctx, r.pool).Exec(ctx, query, accountID.UUID(), followerStrings(followers), observedAt)
	if err != nil {
		return 0, mapFollowerError(err, "adding followers")
	}
	return int(result.RowsAffected()), nil
}

// ReplaceFollowers swaps the stored audience in one transaction.
func (r *FollowerRepository) ReplaceFollowers(ctx context.Context, accountID domain.AccountID, followers []domain.FollowerID, observedAt time.Time) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM account_followers WHERE account_id = $1`, accountID.UUID()); err != nil {
			return fmt.Errorf("clearing followers: %w", err)
		}
		if len(followers) == 0 {
			return nil
		}

		rows := make([][]any, len(followers))
		for i, f := range followers {
			rows[i] = []any{accountID.UUID(), string(f), observedAt}
		}
		_, err := tx.CopyFrom(
			ctx,
			pgx.Identifier{"account_followers"},
			[]string{"account_id", "follower_id", "observed_at"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return mapFollowerError(err, "copying followers")
		}
		return nil
	})
}

// FollowersOf loads the audience of each account in one query.
func (r *FollowerRepository) FollowersOf(ctx context.Context, ids []domain.AccountID) (map[domain.AccountID][]domain.FollowerID, error) {
	out := make(map[domain.AccountID][]domain.FollowerID, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	uuids := make([]string, len(ids))
	for i, id := range ids {
		uuids[i] = id.String()
	}

	const query = `
		SELECT account_id, follower_id
		FROM account_followers
		WHERE account_id = ANY($1::uuid[])
		ORDER BY account_id, follower_id
	`

	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, uuids)
	if err != nil {
		return nil, fmt.Errorf("querying followers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var accountID, followerID string
		if err := rows.Scan(&accountID, &followerID); err != nil {
			return nil, fmt.Errorf("scanning follower: %w", err)
		}
		id, err := domain.ParseAccountID(accountID)
		if err != nil {
			return nil, fmt.Errorf("corrupted account id in database: %w", err)
		}
		out[id] = append(out[id], domain.FollowerID(followerID))
	}

	return out, rows.Err()
}

// CountFollowers returns how many followers are stored for the account.
func (r *FollowerRepository) CountFollowers(ctx context.Context, accountID domain.AccountID) (int, error) {
	const query = `SELECT COUNT(*) FROM account_followers WHERE account_id = $1`

	var count int
	if err := querierFrom(ctx, r.pool).QueryRow(ctx, query, accountID.UUID()).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting followers: %w", err)
	}
	return count, nil
}

func followerStrings(followers []domain.FollowerID) []string {
	out := make([]string, len(followers))
	for i, f := range followers {
		out[i] = string(f)
	}
	return out
}

// mapFollowerError turns a missing parent account into domain.ErrNotFound.
func mapFollowerError(err error, action string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return fmt.Errorf("%s: %w", action, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", action, err)
}
