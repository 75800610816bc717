package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joacominatel/connections/internal/domain"
	"github.com/joacominatel/connections/internal/infrastructure/logging"
)

// ErrIngestionBufferFull is returned when the async buffer cannot take more snapshots.
var ErrIngestionBufferFull = errors.New("snapshot buffer full, try again later")

// ErrAccountInactive is returned when ingesting for a deactivated account.
var ErrAccountInactive = errors.New("account is not active")

// IngestSnapshotInput contains the data needed to ingest an influence snapshot.
type IngestSnapshotInput struct {
	AccountID  string
	Influence  float64
	XScore     *float64       // optional
	Source     string         // optional
	Metadata   map[string]any // optional
	ObservedAt *time.Time     // optional, defaults to now
}

// IngestSnapshotOutput contains the result of ingesting a snapshot.
type IngestSnapshotOutput struct {
	SnapshotID string
	AccountID  string
	Influence  float64
	ObservedAt time.Time
	Queued     bool
}

// AccountExistsChecker answers whether an account exists, usually from a cache.
type AccountExistsChecker interface {
	Exists(ctx context.Context, id domain.AccountID) (bool, error)
}

// IngestSnapshotUseCase handles the ingestion of influence snapshots.
type IngestSnapshotUseCase struct {
	snapshotRepo domain.InfluenceSnapshotRepository
	accountRepo  domain.AccountRepository
	exists       AccountExistsChecker
	uow          UnitOfWork
	queue        chan<- *domain.InfluenceSnapshot
	timeProvider TimeProvider
	logger       *logging.Logger
}

// NewIngestSnapshotUseCase creates a new IngestSnapshotUseCase.
func NewIngestSnapshotUseCase(
	snapshotRepo domain.InfluenceSnapshotRepository,
	accountRepo domain.AccountRepository,
	logger *logging.Logger,
) *IngestSnapshotUseCase {
	return &IngestSnapshotUseCase{
		snapshotRepo: snapshotRepo,
		accountRepo:  accountRepo,
		timeProvider: RealTime,
		logger:       logger.WithComponent("ingest_snapshot"),
	}
}

// WithUnitOfWork makes synchronous ingestion save the snapshot and
// update the account in one transaction.
func (uc *IngestSnapshotUseCase) WithUnitOfWork(uow UnitOfWork) *IngestSnapshotUseCase {
	uc.uow = uow
	return uc
}

// WithAsyncQueue routes snapshots through the ingestion worker instead of writing inline.
// the account's influence catches up at the next rescoring.
func (uc *IngestSnapshotUseCase) WithAsyncQueue(queue chan<- *domain.InfluenceSnapshot) *IngestSnapshotUseCase {
	uc.queue = queue
	return uc
}

// WithExistsChecker sets a cached existence check used on the async path.
func (uc *IngestSnapshotUseCase) WithExistsChecker(c AccountExistsChecker) *IngestSnapshotUseCase {
	uc.exists = c
	return uc
}

// WithTimeProvider sets a custom time provider for testing.
func (uc *IngestSnapshotUseCase) WithTimeProvider(tp TimeProvider) *IngestSnapshotUseCase {
	uc.timeProvider = tp
	return uc
}

// Execute ingests a new influence snapshot.
func (uc *IngestSnapshotUseCase) Execute(ctx context.Context, input IngestSnapshotInput) (*IngestSnapshotOutput, error) {
	accountID, err := domain.ParseAccountID(input.AccountID)
	if err != nil {
		uc.logger.Warn("snapshot rejected: invalid account id",
			"account_id", input.AccountID,
			"reason", err.Error(),
		)
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	observedAt := uc.timeProvider()
	if input.ObservedAt != nil {
		observedAt = *input.ObservedAt
	}

	snapshot, err := domain.NewInfluenceSnapshot(accountID, input.Influence, input.XScore, input.Source, input.Metadata, observedAt)
	if err != nil {
		uc.logger.Warn("snapshot rejected: invalid snapshot",
			"account_id", accountID.String(),
			"reason", err.Error(),
		)
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	if uc.queue != nil {
		return uc.enqueue(ctx, snapshot)
	}
	return uc.persist(ctx, snapshot)
}

func (uc *IngestSnapshotUseCase) enqueue(ctx context.Context, snapshot *domain.InfluenceSnapshot) (*IngestSnapshotOutput, error) {
	var (
		exists bool
		err    error
	)
	if uc.exists != nil {
		exists, err = uc.exists.Exists(ctx, snapshot.AccountID())
	} else {
		exists, err = uc.accountRepo.Exists(ctx, snapshot.AccountID())
	}
	if err != nil {
		return nil, fmt.Errorf("account lookup: %w", err)
	}
	if !exists {
		uc.logger.Warn("snapshot rejected: account not found",
			"account_id", snapshot.AccountID().String(),
			"outcome", "rejected",
		)
		return nil, fmt.Errorf("account %s: %w", snapshot.AccountID().String(), domain.ErrNotFound)
	}

	// never block the request on a full buffer
	select {
	case uc.queue <- snapshot:
	default:
		uc.logger.Warn("snapshot rejected: buffer full",
			"account_id", snapshot.AccountID().String(),
			"outcome", "rejected",
		)
		return nil, ErrIngestionBufferFull
	}

	uc.logger.Debug("snapshot queued",
		"snapshot_id", snapshot.ID().String(),
		"account_id", snapshot.AccountID().String(),
		"outcome", "queued",
	)

	return outputFor(snapshot, true), nil
}

func (uc *IngestSnapshotUseCase) persist(ctx context.Context, snapshot *domain.InfluenceSnapshot) (*IngestSnapshotOutput, error) {
	write := func(ctx context.Context) error {
		account, err := uc.accountRepo.FindByID(ctx, snapshot.AccountID())
		if err != nil {
			return fmt.Errorf("account lookup: %w", err)
		}
		if !account.IsActive() {
			return ErrAccountInactive
		}

		if err := uc.snapshotRepo.Save(ctx, snapshot); err != nil {
			return fmt.Errorf("saving snapshot: %w", err)
		}

		if err := account.ObserveInfluence(snapshot.Influence(), snapshot.XScore()); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
		if err := uc.accountRepo.UpdateMetrics(ctx, account); err != nil {
			return fmt.Errorf("updating account metrics: %w", err)
		}
		return nil
	}

	var err error
	if uc.uow != nil {
		err = RunInTransaction(ctx, uc.uow, write)
	} else {
		err = write(ctx)
	}
	if err != nil {
		uc.logger.Warn("snapshot ingestion failed",
			"account_id", snapshot.AccountID().String(),
			"reason", err.Error(),
			"outcome", "rejected",
		)
		return nil, err
	}

	uc.logger.Info("snapshot ingested",
		"snapshot_id", snapshot.ID().String(),
		"account_id", snapshot.AccountID().String(),
		"influence", snapshot.Influence(),
		"outcome", "accepted",
	)

	return outputFor(snapshot, false), nil
}

func outputFor(s *domain.InfluenceSnapshot, queued bool) *IngestSnapshotOutput {
	return &IngestSnapshotOutput{
		SnapshotID: s.ID().String(),
		AccountID:  s.AccountID().String(),
		Influence:  s.Influence(),
		ObservedAt: s.ObservedAt(),
		Queued:     queued,
	}
}
