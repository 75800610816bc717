package application

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/joacominatel/connections/internal/domain"
	"github.com/joacominatel/connections/internal/infrastructure/logging"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// AccountView is an account together with its latest evaluation.
type AccountView struct {
	AccountID   string
	Handle      string
	DisplayName string
	IsActive    bool
	Metrics     domain.AccountMetrics
	ScoreCard   domain.ScoreCard

	// Scored is false when the card was evaluated live because
	// the account has not been through a rescoring run yet.
	Scored bool
}

// AccountLister lists accounts by ranking, usually the leaderboard cache.
type AccountLister interface {
	List(ctx context.Context, sort domain.AccountSort, limit, offset int) ([]*domain.Account, error)
}

// QueryAccountsUseCase serves the read side of the account store.
type QueryAccountsUseCase struct {
	accountRepo  domain.AccountRepository
	lister       AccountLister
	engine       *domain.Engine
	followers    domain.FollowerRepository
	timeProvider TimeProvider
	logger       *logging.Logger
}

// NewQueryAccountsUseCase creates a new QueryAccountsUseCase.
func NewQueryAccountsUseCase(
	accountRepo domain.AccountRepository,
	engine *domain.Engine,
	logger *logging.Logger,
) *QueryAccountsUseCase {
	return &QueryAccountsUseCase{
		accountRepo:  accountRepo,
		lister:       accountRepo,
		engine:       engine,
		timeProvider: RealTime,
		logger:       logger.WithComponent("query_accounts"),
	}
}

// WithLister replaces the repository listing with a cached one.
func (uc *QueryAccountsUseCase) WithLister(l AccountLister) *QueryAccountsUseCase {
	uc.lister = l
	return uc
}

// WithFollowers enables audience overlap in Compare.
func (uc *QueryAccountsUseCase) WithFollowers(repo domain.FollowerRepository) *QueryAccountsUseCase {
	uc.followers = repo
	return uc
}

// WithTimeProvider sets a custom time provider for testing.
func (uc *QueryAccountsUseCase) WithTimeProvider(tp TimeProvider) *QueryAccountsUseCase {
	uc.timeProvider = tp
	return uc
}

// ListAccountsInput selects a page of the ranking.
type ListAccountsInput struct {
	Sort   string
	Limit  int
	Offset int
}

// ListAccountsOutput is one page of the ranking.
type ListAccountsOutput struct {
	Items  []AccountView
	Sort   domain.AccountSort
	Limit  int
	Offset int
}

// List returns ranked accounts.
func (uc *QueryAccountsUseCase) List(ctx context.Context, input ListAccountsInput) (*ListAccountsOutput, error) {
	sort, err := domain.ParseAccountSort(input.Sort)
	if err != nil {
		return nil, fmt.Errorf("%w: sort must be early_signal or influence", domain.ErrInvalidInput)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	accounts, err := uc.lister.List(ctx, sort, limit, offset)
	if err != nil {
		uc.logger.Error("listing accounts failed",
			"sort", string(sort),
			"error", err.Error(),
		)
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	items := make([]AccountView, 0, len(accounts))
	for _, a := range accounts {
		view, err := uc.view(a)
		if err != nil {
			// one bad row must not hide the rest of the page
			uc.logger.Warn("skipping account with unusable metrics",
				"account_id", a.ID().String(),
				"error", err.Error(),
			)
			continue
		}
		items = append(items, view)
	}

	return &ListAccountsOutput{
		Items:  items,
		Sort:   sort,
		Limit:  limit,
		Offset: offset,
	}, nil
}

// Get returns one account by id or handle.
func (uc *QueryAccountsUseCase) Get(ctx context.Context, ref string) (*AccountView, error) {
	account, err := uc.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	view, err := uc.view(account)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// CompareInput names two accounts by id or handle.
type CompareInput struct {
	Left  string
	Right string
}

// CompareOutput puts two evaluations side by side.
type CompareOutput struct {
	Left  AccountView
	Right AccountView

	// deltas are right minus left
	InfluenceDelta   int
	AdjustedDelta    int
	EarlySignalDelta int

	// AudienceOverlap ratios are nil while a side has no follower data.
	AudienceOverlap domain.AudienceOverlap
}

// Compare evaluates two accounts side by side.
func (uc *QueryAccountsUseCase) Compare(ctx context.Context, input CompareInput) (*CompareOutput, error) {
	if input.Left == "" || input.Right == "" {
		return nil, fmt.Errorf("%w: left and right are required", domain.ErrInvalidInput)
	}

	left, err := uc.Get(ctx, input.Left)
	if err != nil {
		return nil, fmt.Errorf("left: %w", err)
	}
	right, err := uc.Get(ctx, input.Right)
	if err != nil {
		return nil, fmt.Errorf("right: %w", err)
	}

	return &CompareOutput{
		Left:             *left,
		Right:            *right,
		InfluenceDelta:   roundDelta(right.Metrics.InfluenceBase - left.Metrics.InfluenceBase),
		AdjustedDelta:    right.ScoreCard.AdjustedScore.Int() - left.ScoreCard.AdjustedScore.Int(),
		EarlySignalDelta: right.ScoreCard.EarlySignalScore.Int() - left.ScoreCard.EarlySignalScore.Int(),
		AudienceOverlap:  uc.overlap(ctx, left.AccountID, right.AccountID),
	}, nil
}

// overlap degrades to an empty overlap when follower data cannot be read.
func (uc *QueryAccountsUseCase) overlap(ctx context.Context, left, right string) domain.AudienceOverlap {
	if uc.followers == nil {
		return domain.ComputeAudienceOverlap(nil, nil)
	}

	leftID, err := domain.ParseAccountID(left)
	if err != nil {
		return domain.ComputeAudienceOverlap(nil, nil)
	}
	rightID, err := domain.ParseAccountID(right)
	if err != nil {
		return domain.ComputeAudienceOverlap(nil, nil)
	}

	sets, err := uc.followers.FollowersOf(ctx, []domain.AccountID{leftID, rightID})
	if err != nil {
		uc.logger.Warn("audience overlap unavailable",
			"left", left,
			"right", right,
			"error", err.Error(),
		)
		return domain.ComputeAudienceOverlap(nil, nil)
	}
	return domain.ComputeAudienceOverlap(sets[leftID], sets[rightID])
}

func (uc *QueryAccountsUseCase) resolve(ctx context.Context, ref string) (*domain.Account, error) {
	if id, err := domain.ParseAccountID(ref); err == nil {
		return uc.accountRepo.FindByID(ctx, id)
	}

	handle, err := domain.NewHandle(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is neither an account id nor a handle", domain.ErrInvalidInput, ref)
	}

	account, err := uc.accountRepo.FindByHandle(ctx, handle)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("account %s: %w", handle.String(), domain.ErrNotFound)
	}
	return account, err
}

func (uc *QueryAccountsUseCase) view(a *domain.Account) (AccountView, error) {
	return buildView(uc.engine, a, uc.timeProvider())
}

// buildView uses the stored scorecard, or evaluates the stored metrics live without momentum.
func buildView(engine *domain.Engine, a *domain.Account, now time.Time) (AccountView, error) {
	v := AccountView{
		AccountID:   a.ID().String(),
		Handle:      a.Handle().String(),
		DisplayName: a.DisplayName(),
		IsActive:    a.IsActive(),
		Metrics:     a.Metrics(),
	}

	if card := a.ScoreCard(); card != nil {
		v.ScoreCard = *card
		v.Scored = true
		return v, nil
	}

	ev, err := engine.Evaluate(a.RawMetrics(), domain.RawTrendDynamics{}, nil)
	if err != nil {
		return AccountView{}, err
	}
	v.ScoreCard = domain.NewScoreCard(ev, 0, now)
	return v, nil
}

func roundDelta(d float64) int {
	return int(math.Round(d))
}

// HealthChecker reports the health of one dependency.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// OverviewInput carries the runtime facts the use case cannot look up itself.
type OverviewInput struct {
	Enabled   bool
	QueueSize int
}

// DependencyHealth is the result of one HealthChecker.
type DependencyHealth struct {
	Name   string
	Status string
	Error  string
}

// OverviewOutput is the admin dashboard summary.
type OverviewOutput struct {
	Enabled      bool
	Status       string
	Dependencies []DependencyHealth
	Stats        domain.AccountStats
	Snapshots24h int64
	QueueSize    int
	GeneratedAt  time.Time
}

// OverviewUseCase builds the admin overview.
type OverviewUseCase struct {
	accountRepo  domain.AccountRepository
	snapshotRepo domain.InfluenceSnapshotRepository
	checkers     []HealthChecker
	timeProvider TimeProvider
	logger       *logging.Logger
}

// NewOverviewUseCase creates a new OverviewUseCase.
func NewOverviewUseCase(
	accountRepo domain.AccountRepository,
	snapshotRepo domain.InfluenceSnapshotRepository,
	logger *logging.Logger,
	checkers ...HealthChecker,
) *OverviewUseCase {
	return &OverviewUseCase{
		accountRepo:  accountRepo,
		snapshotRepo: snapshotRepo,
		checkers:     checkers,
		timeProvider: RealTime,
		logger:       logger.WithComponent("overview"),
	}
}

// WithTimeProvider sets a custom time provider for testing.
func (uc *OverviewUseCase) WithTimeProvider(tp TimeProvider) *OverviewUseCase {
	uc.timeProvider = tp
	return uc
}

// Execute gathers health and stats. a failing dependency degrades the status
// instead of failing the overview.
func (uc *OverviewUseCase) Execute(ctx context.Context, input OverviewInput) (*OverviewOutput, error) {
	now := uc.timeProvider()
	out := &OverviewOutput{
		Enabled:     input.Enabled,
		Status:      "ok",
		QueueSize:   input.QueueSize,
		GeneratedAt: now,
	}

	for _, c := range uc.checkers {
		h := DependencyHealth{Name: c.Name(), Status: "ok"}
		if err := c.Check(ctx); err != nil {
			h.Status = "down"
			h.Error = err.Error()
			out.Status = "degraded"
			uc.logger.Warn("dependency unhealthy",
				"dependency", c.Name(),
				"error", err.Error(),
			)
		}
		out.Dependencies = append(out.Dependencies, h)
	}

	stats, err := uc.accountRepo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("account stats: %w", err)
	}
	out.Stats = stats

	count, err := uc.snapshotRepo.CountSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("snapshot count: %w", err)
	}
	out.Snapshots24h = count

	return out, nil
}
