package domain

import "errors"

// RiskLevel is the assessed likelihood of inauthentic engagement.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

var ErrInvalidRiskLevel = errors.New("invalid risk level")

var validRiskLevels = map[RiskLevel]bool{
	RiskLow:    true,
	RiskMedium: true,
	RiskHigh:   true,
}

// ParseRiskLevel validates and returns a RiskLevel from a string.
func ParseRiskLevel(s string) (RiskLevel, error) {
	r := RiskLevel(s)
	if !validRiskLevels[r] {
		return "", ErrInvalidRiskLevel
	}
	return r, nil
}

// String returns the string representation of the RiskLevel.
func (r RiskLevel) String() string {
	return string(r)
}

// IsValid returns true if the risk level is known.
func (r RiskLevel) IsValid() bool {
	return validRiskLevels[r]
}

// Penalty returns the early-signal penalty for this risk level.
func (r RiskLevel) Penalty() float64 {
	switch r {
	case RiskHigh:
		return 0.5
	case RiskMedium:
		return 0.2
	default:
		return 0
	}
}

// Profile is the audience-size tier of an account.
type Profile string

const (
	ProfileRetail     Profile = "retail"
	ProfileInfluencer Profile = "influencer"
	ProfileWhale      Profile = "whale"
)

var ErrInvalidProfile = errors.New("invalid profile")

var validProfiles = map[Profile]bool{
	ProfileRetail:     true,
	ProfileInfluencer: true,
	ProfileWhale:      true,
}

// ParseProfile validates and returns a Profile from a string.
func ParseProfile(s string) (Profile, error) {
	p := Profile(s)
	if !validProfiles[p] {
		return "", ErrInvalidProfile
	}
	return p, nil
}

// String returns the string representation of the Profile.
func (p Profile) String() string {
	return string(p)
}

// IsValid returns true if the profile is known.
func (p Profile) IsValid() bool {
	return validProfiles[p]
}

// GrowthFactor returns how strongly growth counts for this tier.
// the same absolute growth is more surprising for small accounts.
func (p Profile) GrowthFactor() float64 {
	switch p {
	case ProfileWhale:
		return 0.4
	case ProfileInfluencer:
		return 0.75
	default:
		return 1.0
	}
}

// TrendState is the qualitative label derived from momentum.
type TrendState string

const (
	TrendGrowing  TrendState = "growing"
	TrendCooling  TrendState = "cooling"
	TrendVolatile TrendState = "volatile"
	TrendStable   TrendState = "stable"
)

var validTrendStates = map[TrendState]bool{
	TrendGrowing:  true,
	TrendCooling:  true,
	TrendVolatile: true,
	TrendStable:   true,
}

// String returns the string representation of the TrendState.
func (s TrendState) String() string {
	return string(s)
}

// IsValid returns true if the trend state is known.
func (s TrendState) IsValid() bool {
	return validTrendStates[s]
}

// Badge is the discrete early-signal classification.
type Badge string

const (
	BadgeBreakout Badge = "breakout"
	BadgeRising   Badge = "rising"
	BadgeNone     Badge = "none"
)

var ErrInvalidBadge = errors.New("invalid badge")

// ParseBadge validates and returns a Badge from a string.
func ParseBadge(s string) (Badge, error) {
	b := Badge(s)
	if b.Severity() < 0 {
		return "", ErrInvalidBadge
	}
	return b, nil
}

// String returns the string representation of the Badge.
func (b Badge) String() string {
	return string(b)
}

// Severity orders badges: breakout > rising > none.
// unknown badges return -1.
func (b Badge) Severity() int {
	switch b {
	case BadgeBreakout:
		return 2
	case BadgeRising:
		return 1
	case BadgeNone:
		return 0
	default:
		return -1
	}
}
