package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/joacominatel/connections/internal/domain"
	"github.com/joacominatel/connections/internal/infrastructure/logging"
)

// CreateAccountUseCase handles registering new tracked accounts.
type CreateAccountUseCase struct {
	accountRepo domain.AccountRepository
	defaults    domain.MetricDefaults
	logger      *logging.Logger
}

// NewCreateAccountUseCase creates a new CreateAccountUseCase.
// absent metrics are filled from the same defaults table the engine uses.
func NewCreateAccountUseCase(
	accountRepo domain.AccountRepository,
	defaults domain.MetricDefaults,
	logger *logging.Logger,
) *CreateAccountUseCase {
	return &CreateAccountUseCase{
		accountRepo: accountRepo,
		defaults:    defaults,
		logger:      logger.WithComponent("create_account"),
	}
}

// CreateAccountInput contains the data needed to register an account.
type CreateAccountInput struct {
	// Handle is the social handle, with or without a leading "@"
	Handle string

	// DisplayName is optional
	DisplayName string

	InfluenceBase *float64
	XScore        *float64
	SignalNoise   *float64
	RiskLevel     string
	Profile       string
}

// CreateAccountOutput contains the result of account creation.
type CreateAccountOutput struct {
	AccountID string
	Handle    string
	Metrics   domain.AccountMetrics
}

// use case specific errors
var (
	ErrHandleAlreadyExists = errors.New("account with this handle already exists")
)

// Execute validates input and persists the account.
func (uc *CreateAccountUseCase) Execute(ctx context.Context, input CreateAccountInput) (*CreateAccountOutput, error) {
	handle, err := domain.NewHandle(input.Handle)
	if err != nil {
		uc.logger.Info("create account failed: invalid handle",
			"handle", input.Handle,
			"error", err.Error(),
		)
		return nil, fmt.Errorf("%w: invalid handle: %w", domain.ErrInvalidInput, err)
	}

	metrics, err := uc.metrics(input)
	if err != nil {
		uc.logger.Info("create account failed: invalid metrics",
			"handle", handle.String(),
			"error", err.Error(),
		)
		return nil, err
	}

	existing, err := uc.accountRepo.FindByHandle(ctx, handle)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		uc.logger.Error("create account failed: error checking handle",
			"handle", handle.String(),
			"error", err.Error(),
		)
		return nil, fmt.Errorf("checking handle availability: %w", err)
	}
	if existing != nil {
		uc.logger.Info("create account failed: handle already exists",
			"handle", handle.String(),
		)
		return nil, ErrHandleAlreadyExists
	}

	account, err := domain.NewAccount(handle, input.DisplayName, metrics)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	if err := uc.accountRepo.Save(ctx, account); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, ErrHandleAlreadyExists
		}
		uc.logger.Error("create account failed: save error",
			"handle", handle.String(),
			"error", err.Error(),
		)
		return nil, fmt.Errorf("saving account: %w", err)
	}

	uc.logger.Info("account created",
		"account_id", account.ID().String(),
		"handle", handle.String(),
		"profile", metrics.Profile.String(),
	)

	return &CreateAccountOutput{
		AccountID: account.ID().String(),
		Handle:    handle.String(),
		Metrics:   account.Metrics(),
	}, nil
}

func (uc *CreateAccountUseCase) metrics(input CreateAccountInput) (domain.AccountMetrics, error) {
	raw := domain.RawAccountMetrics{
		InfluenceBase: input.InfluenceBase,
		XScore:        input.XScore,
		SignalNoise:   input.SignalNoise,
		RiskLevel:     input.RiskLevel,
		Profile:       input.Profile,
	}

	n := domain.NewMetricsNormalizer(uc.defaults)
	if err := n.Validate(raw, domain.RawTrendDynamics{}); err != nil {
		return domain.AccountMetrics{}, err
	}
	return n.Normalize(raw, domain.RawTrendDynamics{}, nil).Metrics, nil
}
