package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joacominatel/connections/internal/domain"
)

// pg error code for unique_violation
const uniqueViolation = "23505"

const accountColumns = `
	id, handle, display_name,
	influence_base, x_score, signal_noise, risk_level, profile, is_active,
	adjusted_score, score_delta, trend_state, velocity_norm, acceleration_norm,
	early_signal, badge, confidence, reasons, sample_count, scored_at,
	created_at, updated_at`

// AccountRepository implements domain.AccountRepository using Postgres.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Save inserts a new account.
func (r *AccountRepository) Save(ctx context.Context, account *domain.Account) error {
	const query = `
		INSERT INTO accounts (
			id, handle, display_name,
			influence_base, x_score, signal_noise, risk_level, profile, is_active,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	m := account.Metrics()
	_, err := querierFrom(ctx, r.pool).Exec(ctx, query,
		account.ID().UUID(),
		account.Handle().String(),
		account.DisplayName(),
		m.InfluenceBase,
		m.XScore,
		m.SignalNoise,
		m.RiskLevel.String(),
		m.Profile.String(),
		account.IsActive(),
		account.CreatedAt(),
		account.UpdatedAt(),
	)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("saving account: %w", err)
	}
	return nil
}

// FindByID retrieves an account by its ID.
func (r *AccountRepository) FindByID(ctx context.Context, id domain.AccountID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	return scanAccount(querierFrom(ctx, r.pool).QueryRow(ctx, query, id.UUID()))
}

// FindByHandle retrieves an account by handle, case-insensitive.
func (r *AccountRepository) FindByHandle(ctx context.Context, handle domain.Handle) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(handle) = LOWER($1)`

	return scanAccount(querierFrom(ctx, r.pool).QueryRow(ctx, query, handle.String()))
}

// FindByIDs retrieves multiple accounts by their IDs.
// returns accounts in the same order as the input IDs; missing ones are skipped.
func (r *AccountRepository) FindByIDs(ctx context.Context, ids []domain.AccountID) ([]*domain.Account, error) {
	if len(ids) == 0 {
		return []*domain.Account{}, nil
	}

	uuids := make([]string, len(ids))
	for i, id := range ids {
		uuids[i] = id.String()
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ANY($1::uuid[])`

	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, uuids)
	if err != nil {
		return nil, fmt.Errorf("querying accounts by ids: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*domain.Account, len(ids))
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		byID[account.ID().String()] = account
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}

	result := make([]*domain.Account, 0, len(ids))
	for _, id := range ids {
		if account, ok := byID[id.String()]; ok {
			result = append(result, account)
		}
	}
	return result, nil
}

// List returns active accounts ordered by the requested ranking.
func (r *AccountRepository) List(ctx context.Context, sort domain.AccountSort, limit, offset int) ([]*domain.Account, error) {
	orderBy := `early_signal DESC NULLS LAST, influence_base DESC, handle`
	if sort == domain.SortByInfluence {
		orderBy = `influence_base DESC, early_signal DESC NULLS LAST, handle`
	}

	query := `SELECT ` + accountColumns + `
		FROM accounts
		WHERE is_active = true
		ORDER BY ` + orderBy + `
		LIMIT $1 OFFSET $2`

	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

// ListActiveIDs returns the ids of every active account.
func (r *AccountRepository) ListActiveIDs(ctx context.Context) ([]domain.AccountID, error) {
	const query = `SELECT id FROM accounts WHERE is_active = true ORDER BY created_at`

	rows, err := querierFrom(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing active accounts: %w", err)
	}
	defer rows.Close()

	var ids []domain.AccountID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning account id: %w", err)
		}
		id, err := domain.ParseAccountID(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupted account id in database: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// UpdateMetrics persists the observed influence and x_score.
func (r *AccountRepository) UpdateMetrics(ctx context.Context, account *domain.Account) error {
	const query = `
		UPDATE accounts
		SET influence_base = $2, x_score = $3, is_active = $4, updated_at = $5
		WHERE id = $1
	`

	m := account.Metrics()
	result, err := querierFrom(ctx, r.pool).Exec(ctx, query,
		account.ID().UUID(),
		m.InfluenceBase,
		m.XScore,
		account.IsActive(),
		account.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("updating account metrics: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateScoreCard persists the latest evaluation of an account.
func (r *AccountRepository) UpdateScoreCard(ctx context.Context, id domain.AccountID, card domain.ScoreCard) error {
	const query = `
		UPDATE accounts
		SET adjusted_score = $2, score_delta = $3, trend_state = $4,
			velocity_norm = $5, acceleration_norm = $6,
			early_signal = $7, badge = $8, confidence = $9, reasons = $10,
			sample_count = $11, scored_at = $12, updated_at = $12
		WHERE id = $1
	`

	reasons := card.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return fmt.Errorf("serializing reasons: %w", err)
	}

	result, err := querierFrom(ctx, r.pool).Exec(ctx, query,
		id.UUID(),
		card.AdjustedScore.Int(),
		card.Delta,
		card.State.String(),
		card.VelocityNorm,
		card.AccelerationNorm,
		card.EarlySignalScore.Int(),
		card.Badge.String(),
		card.Confidence,
		string(reasonsJSON),
		card.SampleCount,
		card.ScoredAt,
	)
	if err != nil {
		return fmt.Errorf("updating scorecard: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Exists checks if an account with the given ID exists.
func (r *AccountRepository) Exists(ctx context.Context, id domain.AccountID) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`

	var exists bool
	err := querierFrom(ctx, r.pool).QueryRow(ctx, query, id.UUID()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking account existence: %w", err)
	}
	return exists, nil
}

// Stats aggregates counts for the admin overview.
func (r *AccountRepository) Stats(ctx context.Context) (domain.AccountStats, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE scored_at IS NOT NULL),
			COUNT(*) FILTER (WHERE badge = 'breakout'),
			COUNT(*) FILTER (WHERE badge = 'rising')
		FROM accounts
	`

	var s domain.AccountStats
	err := querierFrom(ctx, r.pool).QueryRow(ctx, query).Scan(&s.Total, &s.Active, &s.Scored, &s.Breakout, &s.Rising)
	if err != nil {
		return domain.AccountStats{}, fmt.Errorf("aggregating account stats: %w", err)
	}
	return s, nil
}

// scanAccount reads one account row, works for pgx.Row and pgx.Rows.
func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		id          string
		handle      string
		displayName string
		metrics     domain.AccountMetrics
		riskLevel   string
		profile     string
		isActive    bool

		adjusted    *int
		delta       *int
		state       *string
		velocity    *float64
		accel       *float64
		earlySignal *int
		badge       *string
		confidence  *float64
		reasonsJSON []byte
		sampleCount *int
		scoredAt    *time.Time

		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(
		&id, &handle, &displayName,
		&metrics.InfluenceBase, &metrics.XScore, &metrics.SignalNoise, &riskLevel, &profile, &isActive,
		&adjusted, &delta, &state, &velocity, &accel,
		&earlySignal, &badge, &confidence, &reasonsJSON, &sampleCount, &scoredAt,
		&createdAt, &updatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning account: %w", err)
	}

	// database stores trusted data, but we still validate for safety
	// if parsing fails, we have data corruption
	accountID, err := domain.ParseAccountID(id)
	if err != nil {
		return nil, fmt.Errorf("corrupted account id in database: %w", err)
	}
	if metrics.RiskLevel, err = domain.ParseRiskLevel(riskLevel); err != nil {
		return nil, fmt.Errorf("corrupted risk level for account %s: %w", id, err)
	}
	if metrics.Profile, err = domain.ParseProfile(profile); err != nil {
		return nil, fmt.Errorf("corrupted profile for account %s: %w", id, err)
	}

	var card *domain.ScoreCard
	if scoredAt != nil {
		parsedBadge, err := domain.ParseBadge(derefString(badge))
		if err != nil {
			return nil, fmt.Errorf("corrupted badge for account %s: %w", id, err)
		}

		var reasons []string
		if len(reasonsJSON) > 0 {
			if err := json.Unmarshal(reasonsJSON, &reasons); err != nil {
				return nil, fmt.Errorf("corrupted reasons for account %s: %w", id, err)
			}
		}

		card = &domain.ScoreCard{
			AdjustedScore:    domain.Score(derefInt(adjusted)),
			Delta:            derefInt(delta),
			State:            domain.TrendState(derefString(state)),
			VelocityNorm:     derefFloat(velocity),
			AccelerationNorm: derefFloat(accel),
			EarlySignalScore: domain.Score(derefInt(earlySignal)),
			Badge:            parsedBadge,
			Confidence:       confidence,
			Reasons:          reasons,
			SampleCount:      derefInt(sampleCount),
			ScoredAt:         scoredAt.UTC(),
		}
	}

	return domain.ReconstructAccount(
		accountID,
		domain.HandleFromTrusted(handle),
		displayName,
		metrics,
		isActive,
		card,
		createdAt,
		updatedAt,
	), nil
}

// helper functions

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
