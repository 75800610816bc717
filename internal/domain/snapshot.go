package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// InfluenceSnapshot is one observation of an account's influence.
// snapshots are append-only and immutable once created.
type InfluenceSnapshot struct {
	id         SnapshotID
	accountID  AccountID
	influence  float64
	xScore     *float64
	source     string
	metadata   map[string]any
	observedAt time.Time
	createdAt  time.Time
}

var (
	ErrSnapshotAccountEmpty    = errors.New("snapshot must have an account id")
	ErrSnapshotInfluenceRange  = errors.New("snapshot influence must be a number between 0 and 1000")
	ErrSnapshotXScoreRange     = errors.New("snapshot x_score must be a number between 0 and 1000")
	ErrSnapshotObservedMissing = errors.New("snapshot must have an observation time")
)

// NewInfluenceSnapshot creates a validated snapshot.
// observedAt is required; ingestion stamps it when the client omits it.
func NewInfluenceSnapshot(
	accountID AccountID,
	influence float64,
	xScore *float64,
	source string,
	metadata map[string]any,
	observedAt time.Time,
) (*InfluenceSnapshot, error) {
	if accountID.IsZero() {
		return nil, ErrSnapshotAccountEmpty
	}
	if !isFinite(influence) || influence < float64(MinScore) || influence > float64(MaxScore) {
		return nil, ErrSnapshotInfluenceRange
	}
	if xScore != nil && (!isFinite(*xScore) || *xScore < float64(MinScore) || *xScore > float64(MaxScore)) {
		return nil, ErrSnapshotXScoreRange
	}
	if observedAt.IsZero() {
		return nil, ErrSnapshotObservedMissing
	}

	return &InfluenceSnapshot{
		id:         NewSnapshotID(),
		accountID:  accountID,
		influence:  influence,
		xScore:     xScore,
		source:     source,
		metadata:   metadata,
		observedAt: observedAt.UTC(),
		createdAt:  time.Now().UTC(),
	}, nil
}

// ReconstructInfluenceSnapshot recreates a snapshot from stored data.
// use this when loading from database, not for creating new snapshots.
func ReconstructInfluenceSnapshot(
	id SnapshotID,
	accountID AccountID,
	influence float64,
	xScore *float64,
	source string,
	metadata map[string]any,
	observedAt time.Time,
	createdAt time.Time,
) *InfluenceSnapshot {
	return &InfluenceSnapshot{
		id:         id,
		accountID:  accountID,
		influence:  influence,
		xScore:     xScore,
		source:     source,
		metadata:   metadata,
		observedAt: observedAt,
		createdAt:  createdAt,
	}
}

func (s *InfluenceSnapshot) ID() SnapshotID           { return s.id }
func (s *InfluenceSnapshot) AccountID() AccountID     { return s.accountID }
func (s *InfluenceSnapshot) Influence() float64       { return s.influence }
func (s *InfluenceSnapshot) XScore() *float64         { return s.xScore }
func (s *InfluenceSnapshot) Source() string           { return s.source }
func (s *InfluenceSnapshot) Metadata() map[string]any { return s.metadata }
func (s *InfluenceSnapshot) ObservedAt() time.Time    { return s.observedAt }
func (s *InfluenceSnapshot) CreatedAt() time.Time     { return s.createdAt }

// MetadataJSON returns the metadata as a JSON byte slice.
// useful for database storage.
func (s *InfluenceSnapshot) MetadataJSON() ([]byte, error) {
	if s.metadata == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.metadata)
}

// Point converts the snapshot into estimator input.
func (s *InfluenceSnapshot) Point() InfluencePoint {
	return InfluencePoint{Influence: s.influence, ObservedAt: s.observedAt}
}

// SnapshotPoints converts snapshots into estimator input.
func SnapshotPoints(snapshots []*InfluenceSnapshot) []InfluencePoint {
	points := make([]InfluencePoint, 0, len(snapshots))
	for _, s := range snapshots {
		points = append(points, s.Point())
	}
	return points
}
