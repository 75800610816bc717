package domain

import (
	"context"
	"time"
)

// AccountSort selects the ranking used when listing accounts.
type AccountSort string

const (
	SortByEarlySignal AccountSort = "early_signal"
	SortByInfluence   AccountSort = "influence"
)

// ParseAccountSort validates a sort key, empty means early_signal.
func ParseAccountSort(s string) (AccountSort, error) {
	switch AccountSort(s) {
	case "", SortByEarlySignal:
		return SortByEarlySignal, nil
	case SortByInfluence:
		return SortByInfluence, nil
	default:
		return "", ErrInvalidInput
	}
}

// AccountRepository defines persistence for tracked accounts.
type AccountRepository interface {
	// Save inserts a new account, ErrAlreadyExists on a duplicate handle.
	Save(ctx context.Context, account *Account) error

	// FindByID retrieves an account, ErrNotFound when missing.
	FindByID(ctx context.Context, id AccountID) (*Account, error)

	// FindByHandle retrieves an account by handle, ErrNotFound when missing.
	FindByHandle(ctx context.Context, handle Handle) (*Account, error)

	// FindByIDs retrieves accounts keeping the order of ids, skipping missing ones.
	FindByIDs(ctx context.Context, ids []AccountID) ([]*Account, error)

	// List returns active accounts ordered by the given ranking.
	List(ctx context.Context, sort AccountSort, limit, offset int) ([]*Account, error)

	// ListActiveIDs returns every active account id.
	ListActiveIDs(ctx context.Context) ([]AccountID, error)

	// UpdateMetrics persists observed influence and x_score.
	UpdateMetrics(ctx context.Context, account *Account) error

	// UpdateScoreCard persists the latest evaluation.
	UpdateScoreCard(ctx context.Context, id AccountID, card ScoreCard) error

	// Exists reports whether an account id is known.
	Exists(ctx context.Context, id AccountID) (bool, error)

	// Stats returns aggregate counts for the admin overview.
	Stats(ctx context.Context) (AccountStats, error)
}

// AccountStats aggregates the tracked population.
type AccountStats struct {
	Total    int64
	Active   int64
	Scored   int64
	Breakout int64
	Rising   int64
}

// InfluenceSnapshotRepository defines persistence for influence observations.
type InfluenceSnapshotRepository interface {
	// Save persists a single snapshot.
	Save(ctx context.Context, snapshot *InfluenceSnapshot) error

	// SaveBatch persists snapshots in one round trip.
	SaveBatch(ctx context.Context, snapshots []*InfluenceSnapshot) error

	// FindByAccountSince returns snapshots observed at or after since, oldest first.
	FindByAccountSince(ctx context.Context, accountID AccountID, since time.Time) ([]*InfluenceSnapshot, error)

	// CountSince counts all snapshots observed at or after since.
	CountSince(ctx context.Context, since time.Time) (int64, error)
}
