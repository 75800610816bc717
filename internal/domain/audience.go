package domain

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"
)

// MaxFollowersPerIngest caps one follower ingestion request.
const MaxFollowersPerIngest = 10000

var (
	ErrFollowerIDEmpty   = errors.New("follower id cannot be empty")
	ErrFollowerIDTooLong = errors.New("follower id must be at most 100 characters")
	ErrTooManyFollowers  = errors.New("too many follower ids in one request")
)

// FollowerID is the platform identifier of one audience member.
// followers are not tracked accounts, but a follower id equal to a tracked
// account's handle links the two accounts in the audience graph.
type FollowerID string

// NewFollowerID trims, lowercases and validates a follower id.
func NewFollowerID(s string) (FollowerID, error) {
	s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
	if s == "" {
		return "", ErrFollowerIDEmpty
	}
	if len(s) > 100 {
		return "", ErrFollowerIDTooLong
	}
	return FollowerID(s), nil
}

// ParseFollowerIDs validates a batch and drops duplicates, keeping first-seen order.
func ParseFollowerIDs(raw []string) ([]FollowerID, error) {
	if len(raw) > MaxFollowersPerIngest {
		return nil, ErrTooManyFollowers
	}
	seen := make(map[FollowerID]struct{}, len(raw))
	out := make([]FollowerID, 0, len(raw))
	for _, r := range raw {
		id, err := NewFollowerID(r)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// FollowerIDForHandle is the follower id a tracked account appears under.
func FollowerIDForHandle(h Handle) FollowerID {
	return FollowerID(strings.ToLower(h.String()))
}

// FollowerRepository persists the audience of each tracked account.
type FollowerRepository interface {
	// AddFollowers stores new followers and returns how many were not known yet.
	AddFollowers(ctx context.Context, accountID AccountID, followers []FollowerID, observedAt time.Time) (int, error)

	// ReplaceFollowers swaps the whole audience of an account.
	ReplaceFollowers(ctx context.Context, accountID AccountID, followers []FollowerID, observedAt time.Time) error

	// FollowersOf returns the audience of each account; accounts without data are absent.
	FollowersOf(ctx context.Context, ids []AccountID) (map[AccountID][]FollowerID, error)

	// CountFollowers returns the audience size of one account.
	CountFollowers(ctx context.Context, accountID AccountID) (int, error)
}

// AudienceOverlap measures how much two audiences coincide.
// ratios are nil when the side they divide by has no follower data.
type AudienceOverlap struct {
	// AToB is the share of A's audience that also follows B.
	AToB *float64
	// BToA is the share of B's audience that also follows A.
	BToA              *float64
	SharedUsers       int
	JaccardSimilarity *float64
}

// ComputeAudienceOverlap compares two follower sets. duplicates are ignored.
func ComputeAudienceOverlap(a, b []FollowerID) AudienceOverlap {
	setA := toSet(a)
	setB := toSet(b)

	shared := 0
	for id := range setA {
		if _, ok := setB[id]; ok {
			shared++
		}
	}

	out := AudienceOverlap{SharedUsers: shared}
	out.AToB = ratio(shared, len(setA))
	out.BToA = ratio(shared, len(setB))
	out.JaccardSimilarity = ratio(shared, len(setA)+len(setB)-shared)
	return out
}

func toSet(ids []FollowerID) map[FollowerID]struct{} {
	set := make(map[FollowerID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func ratio(num, den int) *float64 {
	if den == 0 {
		return nil
	}
	v := math.Round(float64(num)/float64(den)*10000) / 10000
	return &v
}

// EdgeDirection tells which way the follow relation runs between two accounts.
type EdgeDirection string

const (
	// DirectionOutgoing means the source account follows the target.
	DirectionOutgoing EdgeDirection = "outgoing"
	// DirectionMutual means both accounts follow each other.
	DirectionMutual EdgeDirection = "mutual"
)

// GraphEdge links two tracked accounts.
type GraphEdge struct {
	Source    AccountID
	Target    AccountID
	Direction EdgeDirection
	// Weight is the jaccard similarity of the two audiences, 0 without data.
	Weight float64
}

// ID is stable for a given pair and direction.
func (e GraphEdge) ID() string {
	return e.Source.String() + ":" + e.Target.String()
}

// AudienceGraph is the follow graph among tracked accounts.
type AudienceGraph struct {
	Nodes []*Account
	Edges []GraphEdge
}

// BuildAudienceGraph links accounts whose handle appears in another account's audience.
// an account following itself is ignored; edges are ordered by weight, heaviest first.
func BuildAudienceGraph(accounts []*Account, followers map[AccountID][]FollowerID) AudienceGraph {
	byFollowerID := make(map[FollowerID]*Account, len(accounts))
	for _, a := range accounts {
		byFollowerID[FollowerIDForHandle(a.Handle())] = a
	}

	// follows[x][y] means x follows y
	follows := make(map[AccountID]map[AccountID]bool, len(accounts))
	for _, target := range accounts {
		for _, f := range followers[target.ID()] {
			source, ok := byFollowerID[f]
			if !ok || source.ID() == target.ID() {
				continue
			}
			if follows[source.ID()] == nil {
				follows[source.ID()] = map[AccountID]bool{}
			}
			follows[source.ID()][target.ID()] = true
		}
	}

	var edges []GraphEdge
	for _, source := range accounts {
		for _, target := range accounts {
			if !follows[source.ID()][target.ID()] {
				continue
			}
			mutual := follows[target.ID()][source.ID()]
			// emit a mutual pair once, from the lexically smaller id
			if mutual && source.ID().String() > target.ID().String() {
				continue
			}

			edge := GraphEdge{
				Source:    source.ID(),
				Target:    target.ID(),
				Direction: DirectionOutgoing,
			}
			if mutual {
				edge.Direction = DirectionMutual
			}
			overlap := ComputeAudienceOverlap(followers[source.ID()], followers[target.ID()])
			if overlap.JaccardSimilarity != nil {
				edge.Weight = *overlap.JaccardSimilarity
			}
			edges = append(edges, edge)
		}
	}

	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Weight != edges[j].Weight {
			return edges[i].Weight > edges[j].Weight
		}
		return edges[i].ID() < edges[j].ID()
	})

	return AudienceGraph{Nodes: accounts, Edges: edges}
}
