package domain

import (
	"errors"
	"time"
)

// Account represents a tracked social account.
// the raw metrics are stored as ingested; scoring happens in the engine.
type Account struct {
	id          AccountID
	handle      Handle
	displayName string
	metrics     AccountMetrics
	isActive    bool
	scoreCard   *ScoreCard
	createdAt   time.Time
	updatedAt   time.Time
}

var (
	ErrAccountDisplayNameTooLong = errors.New("account display name must be at most 255 characters")
	ErrAccountInfluenceRange     = errors.New("account influence must be a number between 0 and 1000")
	ErrAccountXScoreRange        = errors.New("account x_score must be a number between 0 and 1000")
	ErrAccountSignalNoiseRange   = errors.New("account signal_noise must be a number between 0 and 10")
)

// ScoreCard is the persisted outcome of the latest evaluation of an account.
type ScoreCard struct {
	AdjustedScore    Score
	Delta            int
	State            TrendState
	VelocityNorm     float64
	AccelerationNorm float64
	EarlySignalScore Score
	Badge            Badge
	Confidence       *float64
	Reasons          []string
	SampleCount      int
	ScoredAt         time.Time
}

// NewScoreCard builds a scorecard from an engine evaluation.
func NewScoreCard(ev Evaluation, sampleCount int, scoredAt time.Time) ScoreCard {
	return ScoreCard{
		AdjustedScore:    ev.TrendResult.AdjustedScore,
		Delta:            ev.TrendResult.Delta,
		State:            ev.TrendResult.State,
		VelocityNorm:     ev.Trend.VelocityNorm,
		AccelerationNorm: ev.Trend.AccelerationNorm,
		EarlySignalScore: ev.Signal.EarlySignalScore,
		Badge:            ev.Signal.Badge,
		Confidence:       ev.Signal.Confidence,
		Reasons:          ev.Signal.Reasons,
		SampleCount:      sampleCount,
		ScoredAt:         scoredAt,
	}
}

// NewAccount creates a new Account with validated metrics.
func NewAccount(handle Handle, displayName string, metrics AccountMetrics) (*Account, error) {
	if len(displayName) > 255 {
		return nil, ErrAccountDisplayNameTooLong
	}
	if err := validateAccountMetrics(metrics); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Account{
		id:          NewAccountID(),
		handle:      handle,
		displayName: displayName,
		metrics:     metrics,
		isActive:    true,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstructAccount recreates an Account from stored data.
// use this when loading from database, not for creating new accounts.
func ReconstructAccount(
	id AccountID,
	handle Handle,
	displayName string,
	metrics AccountMetrics,
	isActive bool,
	scoreCard *ScoreCard,
	createdAt time.Time,
	updatedAt time.Time,
) *Account {
	return &Account{
		id:          id,
		handle:      handle,
		displayName: displayName,
		metrics:     metrics,
		isActive:    isActive,
		scoreCard:   scoreCard,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

func validateAccountMetrics(m AccountMetrics) error {
	if !isFinite(m.InfluenceBase) || m.InfluenceBase < 0 || m.InfluenceBase > 1000 {
		return ErrAccountInfluenceRange
	}
	if !isFinite(m.XScore) || m.XScore < 0 || m.XScore > 1000 {
		return ErrAccountXScoreRange
	}
	if !isFinite(m.SignalNoise) || m.SignalNoise < 0 || m.SignalNoise > 10 {
		return ErrAccountSignalNoiseRange
	}
	if !m.RiskLevel.IsValid() {
		return ErrInvalidRiskLevel
	}
	if !m.Profile.IsValid() {
		return ErrInvalidProfile
	}
	return nil
}

// ID returns the account's unique identifier.
func (a *Account) ID() AccountID {
	return a.id
}

// Handle returns the account's social handle.
func (a *Account) Handle() Handle {
	return a.handle
}

// DisplayName returns the account's display name.
func (a *Account) DisplayName() string {
	return a.displayName
}

// Metrics returns the account's stored metrics.
func (a *Account) Metrics() AccountMetrics {
	return a.metrics
}

// RawMetrics returns the stored metrics in the engine's input shape.
func (a *Account) RawMetrics() RawAccountMetrics {
	return RawAccountMetrics{
		InfluenceBase: Float(a.metrics.InfluenceBase),
		XScore:        Float(a.metrics.XScore),
		SignalNoise:   Float(a.metrics.SignalNoise),
		RiskLevel:     a.metrics.RiskLevel.String(),
		Profile:       a.metrics.Profile.String(),
	}
}

// IsActive returns whether the account is included in rescoring.
func (a *Account) IsActive() bool {
	return a.isActive
}

// ScoreCard returns the latest evaluation, nil if never scored.
func (a *Account) ScoreCard() *ScoreCard {
	return a.scoreCard
}

// CurrentBadge returns the badge of the latest evaluation, none if never scored.
func (a *Account) CurrentBadge() Badge {
	if a.scoreCard == nil {
		return BadgeNone
	}
	return a.scoreCard.Badge
}

// CreatedAt returns when the account was created.
func (a *Account) CreatedAt() time.Time {
	return a.createdAt
}

// UpdatedAt returns when the account was last updated.
func (a *Account) UpdatedAt() time.Time {
	return a.updatedAt
}

// ObserveInfluence records the latest observed influence and x_score.
func (a *Account) ObserveInfluence(influence float64, xScore *float64) error {
	next := a.metrics
	next.InfluenceBase = influence
	if xScore != nil {
		next.XScore = *xScore
	}
	if err := validateAccountMetrics(next); err != nil {
		return err
	}
	a.metrics = next
	a.updatedAt = time.Now().UTC()
	return nil
}

// UpdateScoreCard stores the result of a rescoring run.
func (a *Account) UpdateScoreCard(card ScoreCard) {
	a.scoreCard = &card
	a.updatedAt = card.ScoredAt
}

// Deactivate excludes the account from rescoring.
func (a *Account) Deactivate() {
	a.isActive = false
	a.updatedAt = time.Now().UTC()
}

// Activate includes the account in rescoring.
func (a *Account) Activate() {
	a.isActive = true
	a.updatedAt = time.Now().UTC()
}
