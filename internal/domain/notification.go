package domain

import (
	"context"
	"time"
)

// WebhookSubscription represents a subscription to breakout alerts.
// a subscription without an account receives alerts for every account.
type WebhookSubscription struct {
	id        WebhookSubscriptionID
	accountID *AccountID
	targetURL string
	secret    string
	isActive  bool
	createdAt time.Time
	updatedAt time.Time
}

// WebhookSubscriptionID uniquely identifies a webhook subscription.
type WebhookSubscriptionID struct {
	value string
}

// NewWebhookSubscriptionID creates a new webhook subscription ID from a string.
func NewWebhookSubscriptionID(id string) (WebhookSubscriptionID, error) {
	if id == "" {
		return WebhookSubscriptionID{}, ErrInvalidInput
	}
	return WebhookSubscriptionID{value: id}, nil
}

// String returns the string representation.
func (id WebhookSubscriptionID) String() string {
	return id.value
}

// NewWebhookSubscription creates a new webhook subscription.
func NewWebhookSubscription(
	id WebhookSubscriptionID,
	accountID *AccountID,
	targetURL string,
	secret string,
) (*WebhookSubscription, error) {
	if targetURL == "" {
		return nil, ErrInvalidInput
	}
	if secret == "" {
		return nil, ErrInvalidInput
	}

	now := time.Now().UTC()
	return &WebhookSubscription{
		id:        id,
		accountID: accountID,
		targetURL: targetURL,
		secret:    secret,
		isActive:  true,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructWebhookSubscription rebuilds a subscription from persistence.
// bypasses validation for trusted data from database.
func ReconstructWebhookSubscription(
	id WebhookSubscriptionID,
	accountID *AccountID,
	targetURL string,
	secret string,
	isActive bool,
	createdAt time.Time,
	updatedAt time.Time,
) *WebhookSubscription {
	return &WebhookSubscription{
		id:        id,
		accountID: accountID,
		targetURL: targetURL,
		secret:    secret,
		isActive:  isActive,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// Getters

func (s *WebhookSubscription) ID() WebhookSubscriptionID { return s.id }
func (s *WebhookSubscription) AccountID() *AccountID     { return s.accountID }
func (s *WebhookSubscription) TargetURL() string         { return s.targetURL }
func (s *WebhookSubscription) Secret() string            { return s.secret }
func (s *WebhookSubscription) IsActive() bool            { return s.isActive }
func (s *WebhookSubscription) CreatedAt() time.Time      { return s.createdAt }
func (s *WebhookSubscription) UpdatedAt() time.Time      { return s.updatedAt }

// Deactivate disables the subscription without deleting it.
func (s *WebhookSubscription) Deactivate() {
	s.isActive = false
	s.updatedAt = time.Now().UTC()
}

// Activate enables a previously deactivated subscription.
func (s *WebhookSubscription) Activate() {
	s.isActive = true
	s.updatedAt = time.Now().UTC()
}

// WebhookSubscriptionRepository defines persistence for webhook subscriptions.
type WebhookSubscriptionRepository interface {
	// Save persists a webhook subscription (insert or update).
	Save(ctx context.Context, sub *WebhookSubscription) error

	// FindByID retrieves a single subscription.
	FindByID(ctx context.Context, id WebhookSubscriptionID) (*WebhookSubscription, error)

	// FindForAccount retrieves active subscriptions for an account,
	// including the ones subscribed to every account.
	FindForAccount(ctx context.Context, accountID AccountID) ([]*WebhookSubscription, error)

	// List retrieves all subscriptions.
	List(ctx context.Context) ([]*WebhookSubscription, error)

	// Delete removes a subscription.
	Delete(ctx context.Context, id WebhookSubscriptionID) error
}

// BreakoutAlert is emitted when an account's badge changes into breakout.
type BreakoutAlert struct {
	AccountID        AccountID
	Handle           string
	PreviousBadge    Badge
	Badge            Badge
	EarlySignalScore Score
	AdjustedScore    Score
	Confidence       *float64
	Reasons          []string
	Timestamp        time.Time
}

// IsBreakoutTransition reports whether a rescoring moved an account into breakout.
// staying in breakout does not alert again.
func IsBreakoutTransition(previous, current Badge) bool {
	return current == BadgeBreakout && previous != BadgeBreakout
}

// NotificationService defines the interface for sending breakout notifications.
// implementations handle the actual delivery mechanism (webhooks, etc).
type NotificationService interface {
	// NotifyBreakout sends notifications for a breakout transition.
	// returns the number of notifications queued.
	NotifyBreakout(ctx context.Context, alert BreakoutAlert) (int, error)
}
