package application

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joacominatel/connections/internal/domain"
	"github.com/joacominatel/connections/internal/infrastructure/logging"
)

// TimeProvider abstracts time acquisition for testability.
// inject a custom implementation to control time in tests.
type TimeProvider func() time.Time

// RealTime returns the current UTC time.
// use this in production.
func RealTime() time.Time {
	return time.Now().UTC()
}

// ScoringConfig contains parameters for account rescoring.
type ScoringConfig struct {
	// Window is how far back snapshots are read to estimate momentum.
	Window time.Duration

	// Concurrency is the number of accounts scored in parallel by ExecuteAll.
	Concurrency int
}

// DefaultScoringConfig returns sensible defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Window:      7 * 24 * time.Hour,
		Concurrency: 8,
	}
}

// ScoreAccountInput identifies the account to rescore.
type ScoreAccountInput struct {
	AccountID string
}

// ScoreAccountOutput contains the result of rescoring one account.
type ScoreAccountOutput struct {
	AccountID     string
	Handle        string
	Metrics       domain.AccountMetrics
	PreviousBadge domain.Badge
	ScoreCard     domain.ScoreCard
	Breakout      bool
}

// LeaderboardUpdater abstracts the cache layer for account rankings.
// allows the use case to remain decoupled from redis specifics.
type LeaderboardUpdater interface {
	UpdateLeaderboards(ctx context.Context, accountID string, influence, earlySignal float64) error
}

// BreakoutNotifier abstracts webhook delivery for breakout alerts.
type BreakoutNotifier interface {
	NotifyBreakout(ctx context.Context, alert domain.BreakoutAlert) (int, error)
}

// BreakoutPublisher abstracts the event bus for breakout alerts.
type BreakoutPublisher interface {
	PublishBreakout(ctx context.Context, alert domain.BreakoutAlert) error
}

// ScoringRecorder abstracts prometheus metrics for rescoring.
type ScoringRecorder interface {
	RecordScoringRun(durationSeconds float64)
	RecordAccountScored(badge string)
	RecordBreakout()
}

// ScoreAccountsUseCase estimates momentum from snapshots and evaluates accounts.
type ScoreAccountsUseCase struct {
	accountRepo  domain.AccountRepository
	snapshotRepo domain.InfluenceSnapshotRepository
	engine       *domain.Engine
	leaderboard  LeaderboardUpdater
	notifier     BreakoutNotifier
	publisher    BreakoutPublisher
	recorder     ScoringRecorder
	config       ScoringConfig
	timeProvider TimeProvider
	logger       *logging.Logger
}

// NewScoreAccountsUseCase creates a new ScoreAccountsUseCase.
func NewScoreAccountsUseCase(
	accountRepo domain.AccountRepository,
	snapshotRepo domain.InfluenceSnapshotRepository,
	engine *domain.Engine,
	config ScoringConfig,
	logger *logging.Logger,
) *ScoreAccountsUseCase {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &ScoreAccountsUseCase{
		accountRepo:  accountRepo,
		snapshotRepo: snapshotRepo,
		engine:       engine,
		config:       config,
		timeProvider: RealTime,
		logger:       logger.WithComponent("score_accounts"),
	}
}

// WithTimeProvider sets a custom time provider for testing.
func (uc *ScoreAccountsUseCase) WithTimeProvider(tp TimeProvider) *ScoreAccountsUseCase {
	uc.timeProvider = tp
	return uc
}

// WithLeaderboard sets the leaderboard updater (redis cache).
// when set, scores are also pushed to the cache.
func (uc *ScoreAccountsUseCase) WithLeaderboard(lb LeaderboardUpdater) *ScoreAccountsUseCase {
	uc.leaderboard = lb
	return uc
}

// WithNotifier sets the breakout notifier (webhook dispatcher).
func (uc *ScoreAccountsUseCase) WithNotifier(n BreakoutNotifier) *ScoreAccountsUseCase {
	uc.notifier = n
	return uc
}

// WithPublisher sets the breakout publisher (event bus).
func (uc *ScoreAccountsUseCase) WithPublisher(p BreakoutPublisher) *ScoreAccountsUseCase {
	uc.publisher = p
	return uc
}

// WithRecorder sets the metrics recorder.
func (uc *ScoreAccountsUseCase) WithRecorder(r ScoringRecorder) *ScoreAccountsUseCase {
	uc.recorder = r
	return uc
}

// Execute rescores a single account.
func (uc *ScoreAccountsUseCase) Execute(ctx context.Context, input ScoreAccountInput) (*ScoreAccountOutput, error) {
	accountID, err := domain.ParseAccountID(input.AccountID)
	if err != nil {
		uc.logger.Warn("scoring rejected: invalid account id",
			"account_id", input.AccountID,
			"reason", err.Error(),
		)
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	account, err := uc.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		uc.logger.Warn("scoring failed: account lookup failed",
			"account_id", accountID.String(),
			"reason", err.Error(),
		)
		return nil, fmt.Errorf("account lookup: %w", err)
	}

	now := uc.timeProvider()
	since := now.Add(-uc.config.Window)

	snapshots, err := uc.snapshotRepo.FindByAccountSince(ctx, accountID, since)
	if err != nil {
		uc.logger.Error("scoring failed: snapshot lookup failed",
			"account_id", accountID.String(),
			"error", err.Error(),
		)
		return nil, fmt.Errorf("loading snapshots: %w", err)
	}

	dyn := domain.EstimateDynamics(domain.DynamicsInput{
		Points:      domain.SnapshotPoints(snapshots),
		WindowStart: since,
		WindowEnd:   now,
	})

	// snapshots ingested asynchronously only reach the account here
	if dyn.Latest != nil && dyn.Latest.Influence != account.Metrics().InfluenceBase {
		if err := account.ObserveInfluence(dyn.Latest.Influence, nil); err != nil {
			// the stored influence stays; scoring goes on with it
			uc.logger.Warn("observed influence rejected",
				"account_id", accountID.String(),
				"influence", dyn.Latest.Influence,
				"reason", err.Error(),
				"outcome", "kept_stored",
			)
		} else if err := uc.accountRepo.UpdateMetrics(ctx, account); err != nil {
			return nil, fmt.Errorf("updating metrics: %w", err)
		}
	}

	confidence := domain.SampleConfidence(dyn.SampleCount, account.Metrics().SignalNoise)

	ev, err := uc.engine.Evaluate(account.RawMetrics(), domain.RawTrendDynamics{
		VelocityNorm:     domain.Float(dyn.Dynamics.VelocityNorm),
		AccelerationNorm: domain.Float(dyn.Dynamics.AccelerationNorm),
	}, confidence)
	if err != nil {
		uc.logger.Error("scoring failed: evaluation rejected",
			"account_id", accountID.String(),
			"error", err.Error(),
		)
		return nil, fmt.Errorf("evaluating account: %w", err)
	}

	previous := account.CurrentBadge()
	card := domain.NewScoreCard(ev, dyn.SampleCount, now)

	if err := uc.accountRepo.UpdateScoreCard(ctx, accountID, card); err != nil {
		uc.logger.Error("scorecard update failed",
			"account_id", accountID.String(),
			"error", err.Error(),
		)
		return nil, fmt.Errorf("updating scorecard: %w", err)
	}

	if uc.recorder != nil {
		uc.recorder.RecordAccountScored(card.Badge.String())
	}

	// sync to redis leaderboard (best-effort, don't fail on cache errors)
	if uc.leaderboard != nil {
		err := uc.leaderboard.UpdateLeaderboards(ctx, accountID.String(),
			float64(card.AdjustedScore), float64(card.EarlySignalScore))
		if err != nil {
			// log but don't fail - postgres is the source of truth
			uc.logger.Warn("leaderboard sync failed",
				"account_id", accountID.String(),
				"error", err.Error(),
			)
		}
	}

	breakout := domain.IsBreakoutTransition(previous, card.Badge)
	if breakout {
		uc.announceBreakout(ctx, domain.BreakoutAlert{
			AccountID:        accountID,
			Handle:           account.Handle().String(),
			PreviousBadge:    previous,
			Badge:            card.Badge,
			EarlySignalScore: card.EarlySignalScore,
			AdjustedScore:    card.AdjustedScore,
			Confidence:       card.Confidence,
			Reasons:          card.Reasons,
			Timestamp:        now,
		})
	}

	uc.logger.Info("account scored",
		"account_id", accountID.String(),
		"adjusted_score", card.AdjustedScore.Int(),
		"early_signal_score", card.EarlySignalScore.Int(),
		"badge", card.Badge.String(),
		"previous_badge", previous.String(),
		"sample_count", dyn.SampleCount,
		"confidence_unavailable", confidence == nil,
		"outcome", "updated",
	)

	return &ScoreAccountOutput{
		AccountID:     accountID.String(),
		Handle:        account.Handle().String(),
		Metrics:       account.Metrics(),
		PreviousBadge: previous,
		ScoreCard:     card,
		Breakout:      breakout,
	}, nil
}

// announceBreakout notifies webhooks and the event bus (best-effort).
func (uc *ScoreAccountsUseCase) announceBreakout(ctx context.Context, alert domain.BreakoutAlert) {
	if uc.recorder != nil {
		uc.recorder.RecordBreakout()
	}

	if uc.notifier != nil {
		if queued, err := uc.notifier.NotifyBreakout(ctx, alert); err != nil {
			uc.logger.Warn("breakout notification failed",
				"account_id", alert.AccountID.String(),
				"error", err.Error(),
			)
		} else {
			uc.logger.Info("breakout detected",
				"account_id", alert.AccountID.String(),
				"early_signal_score", alert.EarlySignalScore.Int(),
				"webhooks_queued", queued,
			)
		}
	}

	if uc.publisher != nil {
		if err := uc.publisher.PublishBreakout(ctx, alert); err != nil {
			uc.logger.Warn("breakout publish failed",
				"account_id", alert.AccountID.String(),
				"error", err.Error(),
			)
		}
	}
}

// ScoreAllOutput contains the result of a batch rescoring run.
type ScoreAllOutput struct {
	Processed int
	Succeeded int
	Failed    int
	Breakouts int
	Duration  time.Duration
}

// ExecuteAll rescores every active account with bounded parallelism.
// one failing account never stops the run.
func (uc *ScoreAccountsUseCase) ExecuteAll(ctx context.Context) (*ScoreAllOutput, error) {
	start := time.Now()

	ids, err := uc.accountRepo.ListActiveIDs(ctx)
	if err != nil {
		uc.logger.Error("batch scoring failed: listing accounts",
			"error", err.Error(),
		)
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	var succeeded, failed, breakouts atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.config.Concurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			out, err := uc.Execute(gctx, ScoreAccountInput{AccountID: id.String()})
			if err != nil {
				failed.Add(1)
				return nil
			}
			succeeded.Add(1)
			if out.Breakout {
				breakouts.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	output := &ScoreAllOutput{
		Processed: len(ids),
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
		Breakouts: int(breakouts.Load()),
		Duration:  time.Since(start),
	}

	if uc.recorder != nil {
		uc.recorder.RecordScoringRun(output.Duration.Seconds())
	}

	uc.logger.Info("batch scoring completed",
		"processed", output.Processed,
		"succeeded", output.Succeeded,
		"failed", output.Failed,
		"breakouts", output.Breakouts,
		"duration_ms", output.Duration.Milliseconds(),
	)

	return output, nil
}
