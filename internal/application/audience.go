package application

import (
	"context"
	"fmt"
	"time"

	"github.com/joacominatel/connections/internal/domain"
	"github.com/joacominatel/connections/internal/infrastructure/logging"
)

const (
	DefaultGraphNodes = 30
	MaxGraphNodes     = 200
)

// AudienceUseCase maintains follower sets and builds the audience graph
// among tracked accounts.
type AudienceUseCase struct {
	accountRepo  domain.AccountRepository
	followers    domain.FollowerRepository
	lister       AccountLister
	engine       *domain.Engine
	uow          UnitOfWork
	timeProvider TimeProvider
	logger       *logging.Logger
}

// NewAudienceUseCase creates a new AudienceUseCase.
func NewAudienceUseCase(
	accountRepo domain.AccountRepository,
	followers domain.FollowerRepository,
	engine *domain.Engine,
	logger *logging.Logger,
) *AudienceUseCase {
	return &AudienceUseCase{
		accountRepo:  accountRepo,
		followers:    followers,
		lister:       accountRepo,
		engine:       engine,
		timeProvider: RealTime,
		logger:       logger.WithComponent("audience"),
	}
}

// WithLister replaces the repository listing with a cached one.
func (uc *AudienceUseCase) WithLister(l AccountLister) *AudienceUseCase {
	uc.lister = l
	return uc
}

// WithUnitOfWork makes follower ingestion transactional.
func (uc *AudienceUseCase) WithUnitOfWork(uow UnitOfWork) *AudienceUseCase {
	uc.uow = uow
	return uc
}

// WithTimeProvider sets a custom time provider for testing.
func (uc *AudienceUseCase) WithTimeProvider(tp TimeProvider) *AudienceUseCase {
	uc.timeProvider = tp
	return uc
}

// IngestFollowersInput carries one observation of an account's audience.
type IngestFollowersInput struct {
	AccountID   string
	FollowerIDs []string
	// Replace drops followers missing from FollowerIDs.
	Replace bool
}

// IngestFollowersOutput reports what the ingestion changed.
type IngestFollowersOutput struct {
	AccountID string
	Added     int
	Total     int
}

// IngestFollowers stores follower ids for a tracked account.
func (uc *AudienceUseCase) IngestFollowers(ctx context.Context, input IngestFollowersInput) (*IngestFollowersOutput, error) {
	id, err := domain.ParseAccountID(input.AccountID)
	if err != nil {
		return nil, fmt.Errorf("%w: account id must be a uuid", domain.ErrInvalidInput)
	}
	followers, err := domain.ParseFollowerIDs(input.FollowerIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	out := &IngestFollowersOutput{AccountID: id.String()}
	now := uc.timeProvider()

	write := func(ctx context.Context) error {
		if _, err := uc.accountRepo.FindByID(ctx, id); err != nil {
			return fmt.Errorf("account lookup: %w", err)
		}

		if input.Replace {
			if err := uc.followers.ReplaceFollowers(ctx, id, followers, now); err != nil {
				return fmt.Errorf("replacing followers: %w", err)
			}
			out.Added = len(followers)
		} else {
			added, err := uc.followers.AddFollowers(ctx, id, followers, now)
			if err != nil {
				return fmt.Errorf("adding followers: %w", err)
			}
			out.Added = added
		}

		total, err := uc.followers.CountFollowers(ctx, id)
		if err != nil {
			return fmt.Errorf("counting followers: %w", err)
		}
		out.Total = total
		return nil
	}

	if uc.uow != nil {
		err = RunInTransaction(ctx, uc.uow, write)
	} else {
		err = write(ctx)
	}
	if err != nil {
		uc.logger.Warn("follower ingestion failed",
			"account_id", id.String(),
			"reason", err.Error(),
			"outcome", "rejected",
		)
		return nil, err
	}

	uc.logger.Info("followers ingested",
		"account_id", id.String(),
		"received", len(followers),
		"added", out.Added,
		"total", out.Total,
		"replace", input.Replace,
		"outcome", "accepted",
	)
	return out, nil
}

// GraphInput selects the accounts drawn as nodes.
type GraphInput struct {
	LimitNodes int
	Profile    string
	Badge      string
}

// GraphEdgeView is an edge between two node accounts.
type GraphEdgeView struct {
	ID        string
	Source    string
	Target    string
	Direction domain.EdgeDirection
	Weight    float64
}

// GraphOutput is the audience graph among the most influential accounts.
type GraphOutput struct {
	Nodes       []AccountView
	Edges       []GraphEdgeView
	LimitNodes  int
	GeneratedAt time.Time
}

// Graph builds the follow graph among the top accounts by influence.
func (uc *AudienceUseCase) Graph(ctx context.Context, input GraphInput) (*GraphOutput, error) {
	limit := input.LimitNodes
	if limit <= 0 {
		limit = DefaultGraphNodes
	}
	if limit > MaxGraphNodes {
		limit = MaxGraphNodes
	}

	var profile domain.Profile
	if input.Profile != "" {
		p, err := domain.ParseProfile(input.Profile)
		if err != nil {
			return nil, fmt.Errorf("%w: profile must be retail, influencer or whale", domain.ErrInvalidInput)
		}
		profile = p
	}
	var badge domain.Badge
	if input.Badge != "" {
		b, err := domain.ParseBadge(input.Badge)
		if err != nil {
			return nil, fmt.Errorf("%w: badge must be breakout, rising or none", domain.ErrInvalidInput)
		}
		badge = b
	}

	// filters run after listing, so widen the window to keep the node count
	fetch := limit
	if profile != "" || badge != "" {
		fetch = MaxGraphNodes
	}

	accounts, err := uc.lister.List(ctx, domain.SortByInfluence, fetch, 0)
	if err != nil {
		uc.logger.Error("listing graph accounts failed", "error", err.Error())
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	now := uc.timeProvider()
	nodes := make([]*domain.Account, 0, limit)
	views := make(map[domain.AccountID]AccountView, limit)
	for _, a := range accounts {
		if len(nodes) == limit {
			break
		}
		view, err := buildView(uc.engine, a, now)
		if err != nil {
			uc.logger.Warn("skipping account with unusable metrics",
				"account_id", a.ID().String(),
				"error", err.Error(),
			)
			continue
		}
		if profile != "" && view.Metrics.Profile != profile {
			continue
		}
		if badge != "" && view.ScoreCard.Badge != badge {
			continue
		}
		nodes = append(nodes, a)
		views[a.ID()] = view
	}

	ids := make([]domain.AccountID, len(nodes))
	for i, a := range nodes {
		ids[i] = a.ID()
	}
	followers, err := uc.followers.FollowersOf(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading followers: %w", err)
	}

	graph := domain.BuildAudienceGraph(nodes, followers)

	out := &GraphOutput{
		Nodes:       make([]AccountView, len(graph.Nodes)),
		Edges:       make([]GraphEdgeView, len(graph.Edges)),
		LimitNodes:  limit,
		GeneratedAt: now,
	}
	for i, a := range graph.Nodes {
		out.Nodes[i] = views[a.ID()]
	}
	for i, e := range graph.Edges {
		out.Edges[i] = GraphEdgeView{
			ID:        e.ID(),
			Source:    e.Source.String(),
			Target:    e.Target.String(),
			Direction: e.Direction,
			Weight:    e.Weight,
		}
	}

	uc.logger.Debug("audience graph built",
		"nodes", len(out.Nodes),
		"edges", len(out.Edges),
		"limit_nodes", limit,
	)
	return out, nil
}
