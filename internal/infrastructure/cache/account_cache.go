package cache

import (
	"context"

	"github.com/joacominatel/connections/internal/domain"
	"github.com/joacominatel/connections/internal/infrastructure/logging"
)

// LeaderboardReader is the read side of the redis rankings.
type LeaderboardReader interface {
	TopAccounts(ctx context.Context, sort domain.AccountSort, limit, offset int64) ([]string, error)
}

// CachedAccountLister serves ranked listings from redis and falls back to postgres.
// implements application.AccountLister.
type CachedAccountLister struct {
	repo        domain.AccountRepository
	leaderboard LeaderboardReader
	logger      *logging.Logger
}

// NewCachedAccountLister creates a cached lister.
// with a nil leaderboard every call goes to the repository.
func NewCachedAccountLister(repo domain.AccountRepository, leaderboard LeaderboardReader, logger *logging.Logger) *CachedAccountLister {
	return &CachedAccountLister{
		repo:        repo,
		leaderboard: leaderboard,
		logger:      logger.WithComponent("account_cache"),
	}
}

// List returns active accounts ordered by the ranking.
func (l *CachedAccountLister) List(ctx context.Context, sort domain.AccountSort, limit, offset int) ([]*domain.Account, error) {
	if l.leaderboard == nil {
		return l.repo.List(ctx, sort, limit, offset)
	}

	members, err := l.leaderboard.TopAccounts(ctx, sort, int64(limit), int64(offset))
	if err != nil {
		l.logger.Debug("leaderboard cache miss, falling back to postgres",
			"sort", string(sort),
			"limit", limit,
			"offset", offset,
			"reason", err.Error(),
		)
		return l.repo.List(ctx, sort, limit, offset)
	}

	ids := make([]domain.AccountID, 0, len(members))
	for _, member := range members {
		id, err := domain.ParseAccountID(member)
		if err != nil {
			l.logger.Warn("invalid account id in leaderboard cache",
				"id", member,
				"error", err.Error(),
			)
			continue
		}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		l.logger.Warn("all leaderboard cache entries invalid, falling back to postgres")
		return l.repo.List(ctx, sort, limit, offset)
	}

	// FindByIDs keeps the redis order
	accounts, err := l.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	// deactivated accounts can linger in redis until the next rescoring
	active := accounts[:0]
	for _, a := range accounts {
		if a.IsActive() {
			active = append(active, a)
		}
	}

	l.logger.Debug("leaderboard cache hit",
		"sort", string(sort),
		"cached_count", len(members),
		"returned", len(active),
	)
	return active, nil
}
