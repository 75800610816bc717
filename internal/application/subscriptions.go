package application

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/joacominatel/connections/internal/domain"
	"github.com/joacominatel/connections/internal/infrastructure/logging"
)

// ManageSubscriptionsUseCase handles webhook subscriptions for breakout alerts.
type ManageSubscriptionsUseCase struct {
	subRepo     domain.WebhookSubscriptionRepository
	accountRepo domain.AccountRepository
	logger      *logging.Logger
}

// NewManageSubscriptionsUseCase creates a new ManageSubscriptionsUseCase.
func NewManageSubscriptionsUseCase(
	subRepo domain.WebhookSubscriptionRepository,
	accountRepo domain.AccountRepository,
	logger *logging.Logger,
) *ManageSubscriptionsUseCase {
	return &ManageSubscriptionsUseCase{
		subRepo:     subRepo,
		accountRepo: accountRepo,
		logger:      logger.WithComponent("subscriptions"),
	}
}

// CreateSubscriptionInput contains the data needed to subscribe.
type CreateSubscriptionInput struct {
	// AccountID restricts alerts to one account; empty subscribes to all.
	AccountID string
	TargetURL string
	Secret    string
}

// Create registers a new subscription.
func (uc *ManageSubscriptionsUseCase) Create(ctx context.Context, input CreateSubscriptionInput) (*domain.WebhookSubscription, error) {
	u, err := url.Parse(input.TargetURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: target_url must be an absolute http(s) url", domain.ErrInvalidInput)
	}

	var accountID *domain.AccountID
	if input.AccountID != "" {
		id, err := domain.ParseAccountID(input.AccountID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
		exists, err := uc.accountRepo.Exists(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("account lookup: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("account %s: %w", id.String(), domain.ErrNotFound)
		}
		accountID = &id
	}

	subID, _ := domain.NewWebhookSubscriptionID(uuid.NewString())
	sub, err := domain.NewWebhookSubscription(subID, accountID, input.TargetURL, input.Secret)
	if err != nil {
		return nil, fmt.Errorf("%w: target_url and secret are required", err)
	}

	if err := uc.subRepo.Save(ctx, sub); err != nil {
		uc.logger.Error("subscription save failed",
			"error", err.Error(),
		)
		return nil, fmt.Errorf("saving subscription: %w", err)
	}

	uc.logger.Info("subscription created",
		"subscription_id", subID.String(),
		"all_accounts", accountID == nil,
	)
	return sub, nil
}

// List returns every subscription.
func (uc *ManageSubscriptionsUseCase) List(ctx context.Context) ([]*domain.WebhookSubscription, error) {
	subs, err := uc.subRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	return subs, nil
}

// SetActive activates or deactivates a subscription.
func (uc *ManageSubscriptionsUseCase) SetActive(ctx context.Context, id string, active bool) (*domain.WebhookSubscription, error) {
	subID, err := domain.NewWebhookSubscriptionID(id)
	if err != nil {
		return nil, err
	}

	sub, err := uc.subRepo.FindByID(ctx, subID)
	if err != nil {
		return nil, err
	}

	if active {
		sub.Activate()
	} else {
		sub.Deactivate()
	}

	if err := uc.subRepo.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("saving subscription: %w", err)
	}

	uc.logger.Info("subscription updated",
		"subscription_id", subID.String(),
		"active", active,
	)
	return sub, nil
}

// Delete removes a subscription.
func (uc *ManageSubscriptionsUseCase) Delete(ctx context.Context, id string) error {
	subID, err := domain.NewWebhookSubscriptionID(id)
	if err != nil {
		return err
	}
	if err := uc.subRepo.Delete(ctx, subID); err != nil {
		return err
	}

	uc.logger.Info("subscription deleted",
		"subscription_id", subID.String(),
	)
	return nil
}
