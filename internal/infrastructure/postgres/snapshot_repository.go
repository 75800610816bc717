package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joacominatel/connections/internal/domain"
)

var snapshotColumns = []string{"id", "account_id", "influence", "x_score", "source", "metadata", "observed_at", "created_at"}

// SnapshotRepository implements domain.InfluenceSnapshotRepository using Postgres.
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

// Save persists a single snapshot.
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *domain.InfluenceSnapshot) error {
	const query = `
		INSERT INTO influence_snapshots (id, account_id, influence, x_score, source, metadata, observed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	metadataJSON, err := snapshot.MetadataJSON()
	if err != nil {
		return fmt.Errorf("serializing metadata: %w", err)
	}

	_, err = querierFrom(ctx, r.pool).Exec(ctx, query,
		snapshot.ID().UUID(),
		snapshot.AccountID().UUID(),
		snapshot.Influence(),
		snapshot.XScore(),
		snapshot.Source(),
		string(metadataJSON),
		snapshot.ObservedAt(),
		snapshot.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

// SaveBatch copies snapshots in one statement, inside the transaction carried
// by ctx when there is one.
func (r *SnapshotRepository) SaveBatch(ctx context.Context, snapshots []*domain.InfluenceSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	rows := make([][]any, len(snapshots))
	for i, s := range snapshots {
		metadataJSON, err := s.MetadataJSON()
		if err != nil {
			return fmt.Errorf("serializing metadata for snapshot %s: %w", s.ID().String(), err)
		}

		var xScore any
		if s.XScore() != nil {
			xScore = *s.XScore()
		}

		rows[i] = []any{
			s.ID().UUID(),
			s.AccountID().UUID(),
			s.Influence(),
			xScore,
			s.Source(),
			string(metadataJSON),
			s.ObservedAt(),
			s.CreatedAt(),
		}
	}

	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.CopyFrom(
			ctx,
			pgx.Identifier{"influence_snapshots"},
			snapshotColumns,
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("batch inserting snapshots: %w", err)
		}
		return nil
	})
}

// FindByAccountSince returns an account's snapshots observed at or after since, oldest first.
func (r *SnapshotRepository) FindByAccountSince(ctx context.Context, accountID domain.AccountID, since time.Time) ([]*domain.InfluenceSnapshot, error) {
	const query = `
		SELECT id, account_id, influence, x_score, source, metadata, observed_at, created_at
		FROM influence_snapshots
		WHERE account_id = $1 AND observed_at >= $2
		ORDER BY observed_at ASC
	`

	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, accountID.UUID(), since)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// CountSince counts snapshots observed at or after since across all accounts.
func (r *SnapshotRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	const query = `SELECT COUNT(*) FROM influence_snapshots WHERE observed_at >= $1`

	var count int64
	if err := querierFrom(ctx, r.pool).QueryRow(ctx, query, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting snapshots: %w", err)
	}
	return count, nil
}

func scanSnapshots(rows pgx.Rows) ([]*domain.InfluenceSnapshot, error) {
	var snapshots []*domain.InfluenceSnapshot

	for rows.Next() {
		var (
			id           string
			accountID    string
			influence    float64
			xScore       *float64
			source       string
			metadataJSON []byte
			observedAt   time.Time
			createdAt    time.Time
		)

		if err := rows.Scan(&id, &accountID, &influence, &xScore, &source, &metadataJSON, &observedAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}

		snapshotID, err := domain.ParseSnapshotID(id)
		if err != nil {
			return nil, fmt.Errorf("corrupted snapshot id in database: %w", err)
		}
		parsedAccountID, err := domain.ParseAccountID(accountID)
		if err != nil {
			return nil, fmt.Errorf("corrupted account id in database: %w", err)
		}

		var metadata map[string]any
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
				return nil, fmt.Errorf("corrupted metadata for snapshot %s: %w", id, err)
			}
		}

		snapshots = append(snapshots, domain.ReconstructInfluenceSnapshot(
			snapshotID,
			parsedAccountID,
			influence,
			xScore,
			source,
			metadata,
			observedAt.UTC(),
			createdAt,
		))
	}

	return snapshots, rows.Err()
}
