package domain

import (
	"errors"
	"strings"
	"testing"
)

func followers(ids ...string) []FollowerID {
	out := make([]FollowerID, len(ids))
	for i, id := range ids {
		out[i] = FollowerID(id)
	}
	return out
}

func accountWithHandle(t *testing.T, handle string) *Account {
	t.Helper()
	h, err := NewHandle(handle)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	a, err := NewAccount(h, "", validMetrics())
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	return a
}

func TestNewFollowerID(t *testing.T) {
	tests := []struct {
		in      string
		want    FollowerID
		wantErr error
	}{
		{"alice", "alice", nil},
		{"  @Alice ", "alice", nil},
		{"", "", ErrFollowerIDEmpty},
		{"@", "", ErrFollowerIDEmpty},
		{strings.Repeat("x", 101), "", ErrFollowerIDTooLong},
	}

	for _, tt := range tests {
		got, err := NewFollowerID(tt.in)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("NewFollowerID(%q): expected error %v, got %v", tt.in, tt.wantErr, err)
		}
		if got != tt.want {
			t.Errorf("NewFollowerID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseFollowerIDs_Deduplicates(t *testing.T) {
	got, err := ParseFollowerIDs([]string{"a", "B", "@b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := followers("a", "b", "c")
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestParseFollowerIDs_RejectsOversizedBatch(t *testing.T) {
	raw := make([]string, MaxFollowersPerIngest+1)
	for i := range raw {
		raw[i] = "u"
	}
	if _, err := ParseFollowerIDs(raw); !errors.Is(err, ErrTooManyFollowers) {
		t.Errorf("expected ErrTooManyFollowers, got %v", err)
	}
}

func TestComputeAudienceOverlap(t *testing.T) {
	ov := ComputeAudienceOverlap(
		followers("u1", "u2", "u3", "u4"),
		followers("u3", "u4", "u5", "u4"),
	)

	if ov.SharedUsers != 2 {
		t.Errorf("expected 2 shared users, got %d", ov.SharedUsers)
	}
	check := func(name string, got *float64, want float64) {
		t.Helper()
		if got == nil {
			t.Fatalf("%s: expected %v, got nil", name, want)
		}
		if *got != want {
			t.Errorf("%s: expected %v, got %v", name, want, *got)
		}
	}
	check("a_to_b", ov.AToB, 0.5)
	check("b_to_a", ov.BToA, 0.6667)
	check("jaccard", ov.JaccardSimilarity, 0.4)
}

func TestComputeAudienceOverlap_NoData(t *testing.T) {
	ov := ComputeAudienceOverlap(nil, followers("u1"))

	if ov.SharedUsers != 0 {
		t.Errorf("expected 0 shared users, got %d", ov.SharedUsers)
	}
	if ov.AToB != nil {
		t.Errorf("expected nil a_to_b without data for A, got %v", *ov.AToB)
	}
	if ov.BToA == nil || *ov.BToA != 0 {
		t.Errorf("expected b_to_a 0, got %v", ov.BToA)
	}
	if ov.JaccardSimilarity == nil || *ov.JaccardSimilarity != 0 {
		t.Errorf("expected jaccard 0, got %v", ov.JaccardSimilarity)
	}

	empty := ComputeAudienceOverlap(nil, nil)
	if empty.AToB != nil || empty.BToA != nil || empty.JaccardSimilarity != nil {
		t.Error("expected every ratio nil when neither side has data")
	}
}

func TestBuildAudienceGraph(t *testing.T) {
	alpha := accountWithHandle(t, "Alpha")
	beta := accountWithHandle(t, "beta")
	gamma := accountWithHandle(t, "gamma")

	graph := BuildAudienceGraph(
		[]*Account{alpha, beta, gamma},
		map[AccountID][]FollowerID{
			// beta and gamma follow alpha; alpha follows beta back
			alpha.ID(): followers("beta", "gamma", "u1"),
			// beta also lists itself, which is ignored
			beta.ID(): followers("alpha", "u1", "beta"),
		},
	)

	if len(graph.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(graph.Nodes))
	}
	if len(graph.Edges) != 2 {
		t.Fatalf("expected 2 edges, got %d: %+v", len(graph.Edges), graph.Edges)
	}

	var mutual, outgoing *GraphEdge
	for i := range graph.Edges {
		switch graph.Edges[i].Direction {
		case DirectionMutual:
			mutual = &graph.Edges[i]
		case DirectionOutgoing:
			outgoing = &graph.Edges[i]
		}
	}

	if mutual == nil || outgoing == nil {
		t.Fatalf("expected one mutual and one outgoing edge, got %+v", graph.Edges)
	}
	pair := map[AccountID]bool{mutual.Source: true, mutual.Target: true}
	if !pair[alpha.ID()] || !pair[beta.ID()] {
		t.Errorf("expected mutual edge between alpha and beta, got %+v", *mutual)
	}
	if outgoing.Source != gamma.ID() || outgoing.Target != alpha.ID() {
		t.Errorf("expected gamma -> alpha, got %+v", *outgoing)
	}
	// alpha {beta,gamma,u1} vs beta {alpha,u1,beta}: 2 shared of 4
	if mutual.Weight != 0.5 {
		t.Errorf("expected mutual weight 0.5, got %v", mutual.Weight)
	}
	if outgoing.Weight != 0 {
		t.Errorf("expected weight 0 for gamma without audience data, got %v", outgoing.Weight)
	}
	if graph.Edges[0].Direction != DirectionMutual {
		t.Error("expected heaviest edge first")
	}
}

func TestBuildAudienceGraph_NoFollowers(t *testing.T) {
	graph := BuildAudienceGraph([]*Account{accountWithHandle(t, "solo")}, nil)
	if len(graph.Nodes) != 1 || len(graph.Edges) != 0 {
		t.Errorf("expected one isolated node, got %d nodes and %d edges", len(graph.Nodes), len(graph.Edges))
	}
}
