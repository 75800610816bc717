package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joacominatel/connections/internal/domain"
	"github.com/joacominatel/connections/internal/infrastructure/logging"
)

func newAudienceFixture(t *testing.T) (*AudienceUseCase, *memFollowerRepo, map[string]*domain.Account) {
	t.Helper()
	alpha := mustAccount("alpha", retailMetrics(900))
	beta := mustAccount("beta", retailMetrics(600))
	gamma := mustAccount("gamma", domain.AccountMetrics{
		InfluenceBase: 300,
		SignalNoise:   8,
		RiskLevel:     domain.RiskLow,
		Profile:       domain.ProfileWhale,
	})

	followers := newMemFollowerRepo()
	followers.followers[alpha.ID()] = []domain.FollowerID{"beta", "gamma", "u1"}
	followers.followers[beta.ID()] = []domain.FollowerID{"alpha", "u1"}

	uc := NewAudienceUseCase(newMemAccountRepo(alpha, beta, gamma), followers, domain.DefaultEngine(), logging.Discard()).
		WithTimeProvider(func() time.Time { return scoringNow })

	return uc, followers, map[string]*domain.Account{"alpha": alpha, "beta": beta, "gamma": gamma}
}

func TestAudience_Graph(t *testing.T) {
	uc, _, accounts := newAudienceFixture(t)

	out, err := uc.Graph(context.Background(), GraphInput{})
	require.NoError(t, err)

	assert.Equal(t, DefaultGraphNodes, out.LimitNodes)
	assert.Equal(t, scoringNow, out.GeneratedAt)
	require.Len(t, out.Nodes, 3)
	assert.Equal(t, "alpha", out.Nodes[0].Handle, "nodes follow influence order")
	require.Len(t, out.Edges, 2)

	// alpha {beta,gamma,u1} and beta {alpha,u1}: 1 shared of 4
	mutual := out.Edges[0]
	assert.Equal(t, domain.DirectionMutual, mutual.Direction)
	assert.Equal(t, 0.25, mutual.Weight)
	assert.ElementsMatch(t,
		[]string{accounts["alpha"].ID().String(), accounts["beta"].ID().String()},
		[]string{mutual.Source, mutual.Target},
	)

	outgoing := out.Edges[1]
	assert.Equal(t, domain.DirectionOutgoing, outgoing.Direction)
	assert.Equal(t, accounts["gamma"].ID().String(), outgoing.Source)
	assert.Equal(t, accounts["alpha"].ID().String(), outgoing.Target)
	assert.Equal(t, outgoing.Source+":"+outgoing.Target, outgoing.ID)
}

func TestAudience_GraphLimitsNodes(t *testing.T) {
	uc, _, _ := newAudienceFixture(t)

	out, err := uc.Graph(context.Background(), GraphInput{LimitNodes: 2})
	require.NoError(t, err)

	require.Len(t, out.Nodes, 2)
	require.Len(t, out.Edges, 1, "gamma is not a node, so only the alpha-beta edge remains")
	assert.Equal(t, domain.DirectionMutual, out.Edges[0].Direction)

	out, err = uc.Graph(context.Background(), GraphInput{LimitNodes: 5000})
	require.NoError(t, err)
	assert.Equal(t, MaxGraphNodes, out.LimitNodes)
}

func TestAudience_GraphFilters(t *testing.T) {
	uc, _, _ := newAudienceFixture(t)

	out, err := uc.Graph(context.Background(), GraphInput{Profile: "whale"})
	require.NoError(t, err)
	require.Len(t, out.Nodes, 1)
	assert.Equal(t, "gamma", out.Nodes[0].Handle)
	assert.Empty(t, out.Edges)

	tests := []struct {
		name  string
		input GraphInput
	}{
		{"unknown profile", GraphInput{Profile: "celebrity"}},
		{"unknown badge", GraphInput{Badge: "viral"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.Graph(context.Background(), tt.input)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestAudience_GraphFollowerReadError(t *testing.T) {
	uc, followers, _ := newAudienceFixture(t)
	followers.failRead = errBoom

	_, err := uc.Graph(context.Background(), GraphInput{})
	assert.ErrorIs(t, err, errBoom)
}

func TestAudience_IngestFollowers(t *testing.T) {
	uc, followers, accounts := newAudienceFixture(t)
	uow := &fakeUnitOfWork{}
	uc.WithUnitOfWork(uow)
	gamma := accounts["gamma"]

	out, err := uc.IngestFollowers(context.Background(), IngestFollowersInput{
		AccountID:   gamma.ID().String(),
		FollowerIDs: []string{"@Beta", "beta", "u1"},
	})
	require.NoError(t, err)
	assert.Equal(t, gamma.ID().String(), out.AccountID)
	assert.Equal(t, 2, out.Added)
	assert.Equal(t, 2, out.Total)

	out, err = uc.IngestFollowers(context.Background(), IngestFollowersInput{
		AccountID:   gamma.ID().String(),
		FollowerIDs: []string{"u1", "u2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Added)
	assert.Equal(t, 3, out.Total)

	out, err = uc.IngestFollowers(context.Background(), IngestFollowersInput{
		AccountID:   gamma.ID().String(),
		FollowerIDs: []string{"x"},
		Replace:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Added)
	assert.Equal(t, 1, out.Total)
	assert.Equal(t, []domain.FollowerID{"x"}, followers.followers[gamma.ID()])

	assert.Equal(t, 3, uow.begun)
	assert.Equal(t, 3, uow.committed)
}

func TestAudience_IngestFollowersRejects(t *testing.T) {
	uc, _, accounts := newAudienceFixture(t)
	uow := &fakeUnitOfWork{}
	uc.WithUnitOfWork(uow)

	tests := []struct {
		name    string
		input   IngestFollowersInput
		wantErr error
	}{
		{"bad account id", IngestFollowersInput{AccountID: "nope", FollowerIDs: []string{"u1"}}, domain.ErrInvalidInput},
		{"empty follower id", IngestFollowersInput{AccountID: accounts["alpha"].ID().String(), FollowerIDs: []string{" "}}, domain.ErrInvalidInput},
		{"unknown account", IngestFollowersInput{AccountID: domain.NewAccountID().String(), FollowerIDs: []string{"u1"}}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.IngestFollowers(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Equal(t, 1, uow.begun, "only the unknown account reaches the transaction")
	assert.Equal(t, 1, uow.rolledBack)
}
