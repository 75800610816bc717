package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// AccountID represents a unique identifier for a tracked account.
// wrapping uuid to enforce type safety and prevent mixing with other ids.
type AccountID struct {
	value uuid.UUID
}

// NewAccountID creates a new random AccountID.
func NewAccountID() AccountID {
	return AccountID{value: uuid.New()}
}

// ParseAccountID parses a string into an AccountID.
func ParseAccountID(s string) (AccountID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return AccountID{}, fmt.Errorf("invalid account id: %w", err)
	}
	return AccountID{value: id}, nil
}

// AccountIDFromUUID creates an AccountID from an existing uuid.
func AccountIDFromUUID(id uuid.UUID) AccountID {
	return AccountID{value: id}
}

// String returns the string representation of the AccountID.
func (id AccountID) String() string {
	return id.value.String()
}

// UUID returns the underlying uuid value.
func (id AccountID) UUID() uuid.UUID {
	return id.value
}

// IsZero returns true if the AccountID is not set.
func (id AccountID) IsZero() bool {
	return id.value == uuid.Nil
}

// SnapshotID identifies a single influence observation.
type SnapshotID struct {
	value uuid.UUID
}

// NewSnapshotID creates a new random SnapshotID.
func NewSnapshotID() SnapshotID {
	return SnapshotID{value: uuid.New()}
}

// ParseSnapshotID parses a string into a SnapshotID.
func ParseSnapshotID(s string) (SnapshotID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return SnapshotID{}, fmt.Errorf("invalid snapshot id: %w", err)
	}
	return SnapshotID{value: id}, nil
}

// String returns the string representation of the SnapshotID.
func (id SnapshotID) String() string {
	return id.value.String()
}

// UUID returns the underlying uuid value.
func (id SnapshotID) UUID() uuid.UUID {
	return id.value
}

// IsZero returns true if the SnapshotID is not set.
func (id SnapshotID) IsZero() bool {
	return id.value == uuid.Nil
}

// Handle represents a validated social handle, without the leading "@".
// must be 1-50 chars, letters, numbers, underscores and dots.
type Handle struct {
	value string
}

var (
	ErrHandleEmpty   = errors.New("handle cannot be empty")
	ErrHandleTooLong = errors.New("handle must be at most 50 characters")
	ErrHandleInvalid = errors.New("handle must contain only letters, numbers, underscores, and dots")
)

// NewHandle creates a new Handle from a string, validating the format.
// a single leading "@" is accepted and stripped.
func NewHandle(s string) (Handle, error) {
	if len(s) > 0 && s[0] == '@' {
		s = s[1:]
	}
	if s == "" {
		return Handle{}, ErrHandleEmpty
	}
	if len(s) > 50 {
		return Handle{}, ErrHandleTooLong
	}

	for _, c := range s {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '.') {
			return Handle{}, ErrHandleInvalid
		}
	}

	return Handle{value: s}, nil
}

// HandleFromTrusted creates a Handle without validation.
// only use this when loading from database where data is already validated.
func HandleFromTrusted(s string) Handle {
	return Handle{value: s}
}

// String returns the string representation of the Handle.
func (h Handle) String() string {
	return h.value
}

// Score is an integer score on the engine's 0-1000 scale.
type Score int

const (
	MinScore Score = 0
	MaxScore Score = 1000
)

// NewScore rounds and clamps a raw value onto the 0-1000 scale.
func NewScore(raw float64) Score {
	return Score(roundInt(clamp(raw, float64(MinScore), float64(MaxScore))))
}

// Int returns the numeric score.
func (s Score) Int() int {
	return int(s)
}
