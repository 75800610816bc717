package api

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/joacominatel/connections/internal/domain"
)

type memAccountRepo struct {
	mu       sync.Mutex
	accounts map[domain.AccountID]*domain.Account
}

func newMemAccountRepo(accounts ...*domain.Account) *memAccountRepo {
	r := &memAccountRepo{accounts: map[domain.AccountID]*domain.Account{}}
	for _, a := range accounts {
		r.accounts[a.ID()] = a
	}
	return r
}

func (r *memAccountRepo) Save(_ context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Handle() == a.Handle() {
			return domain.ErrAlreadyExists
		}
	}
	r.accounts[a.ID()] = a
	return nil
}

func (r *memAccountRepo) FindByID(_ context.Context, id domain.AccountID) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

func (r *memAccountRepo) FindByHandle(_ context.Context, h domain.Handle) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Handle() == h {
			return a, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memAccountRepo) FindByIDs(ctx context.Context, ids []domain.AccountID) ([]*domain.Account, error) {
	out := make([]*domain.Account, 0, len(ids))
	for _, id := range ids {
		if a, err := r.FindByID(ctx, id); err == nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memAccountRepo) List(_ context.Context, s domain.AccountSort, limit, offset int) ([]*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []*domain.Account
	for _, a := range r.accounts {
		if a.IsActive() {
			all = append(all, a)
		}
	}
	key := func(a *domain.Account) float64 {
		if s == domain.SortByInfluence {
			return a.Metrics().InfluenceBase
		}
		if a.ScoreCard() == nil {
			return -1
		}
		return float64(a.ScoreCard().EarlySignalScore)
	}
	sort.Slice(all, func(i, j int) bool { return key(all[i]) > key(all[j]) })

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *memAccountRepo) ListActiveIDs(_ context.Context) ([]domain.AccountID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []domain.AccountID
	for id, a := range r.accounts {
		if a.IsActive() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *memAccountRepo) UpdateMetrics(_ context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[a.ID()]; !ok {
		return domain.ErrNotFound
	}
	r.accounts[a.ID()] = a
	return nil
}

func (r *memAccountRepo) UpdateScoreCard(_ context.Context, id domain.AccountID, card domain.ScoreCard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.UpdateScoreCard(card)
	return nil
}

func (r *memAccountRepo) Exists(_ context.Context, id domain.AccountID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.accounts[id]
	return ok, nil
}

func (r *memAccountRepo) Stats(_ context.Context) (domain.AccountStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var s domain.AccountStats
	for _, a := range r.accounts {
		s.Total++
		if a.IsActive() {
			s.Active++
		}
		if a.ScoreCard() != nil {
			s.Scored++
		}
		switch a.CurrentBadge() {
		case domain.BadgeBreakout:
			s.Breakout++
		case domain.BadgeRising:
			s.Rising++
		}
	}
	return s, nil
}

type memSnapshotRepo struct {
	mu        sync.Mutex
	snapshots []*domain.InfluenceSnapshot
}

func (r *memSnapshotRepo) Save(_ context.Context, s *domain.InfluenceSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
	return nil
}

func (r *memSnapshotRepo) SaveBatch(ctx context.Context, ss []*domain.InfluenceSnapshot) error {
	for _, s := range ss {
		if err := r.Save(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *memSnapshotRepo) FindByAccountSince(_ context.Context, id domain.AccountID, since time.Time) ([]*domain.InfluenceSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.InfluenceSnapshot
	for _, s := range r.snapshots {
		if s.AccountID() == id && !s.ObservedAt().Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSnapshotRepo) CountSince(_ context.Context, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.snapshots {
		if !s.ObservedAt().Before(since) {
			n++
		}
	}
	return n, nil
}

type memFollowerRepo struct {
	mu        sync.Mutex
	followers map[domain.AccountID][]domain.FollowerID
}

func newMemFollowerRepo() *memFollowerRepo {
	return &memFollowerRepo{followers: map[domain.AccountID][]domain.FollowerID{}}
}

func (r *memFollowerRepo) AddFollowers(_ context.Context, id domain.AccountID, fs []domain.FollowerID, _ time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	known := map[domain.FollowerID]bool{}
	for _, f := range r.followers[id] {
		known[f] = true
	}
	added := 0
	for _, f := range fs {
		if !known[f] {
			known[f] = true
			r.followers[id] = append(r.followers[id], f)
			added++
		}
	}
	return added, nil
}

func (r *memFollowerRepo) ReplaceFollowers(_ context.Context, id domain.AccountID, fs []domain.FollowerID, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.followers[id] = append([]domain.FollowerID(nil), fs...)
	return nil
}

func (r *memFollowerRepo) FollowersOf(_ context.Context, ids []domain.AccountID) (map[domain.AccountID][]domain.FollowerID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[domain.AccountID][]domain.FollowerID{}
	for _, id := range ids {
		if fs := r.followers[id]; len(fs) > 0 {
			out[id] = fs
		}
	}
	return out, nil
}

func (r *memFollowerRepo) CountFollowers(_ context.Context, id domain.AccountID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.followers[id]), nil
}

type memSubRepo struct {
	mu   sync.Mutex
	subs map[string]*domain.WebhookSubscription
}

func newMemSubRepo() *memSubRepo {
	return &memSubRepo{subs: map[string]*domain.WebhookSubscription{}}
}

func (r *memSubRepo) Save(_ context.Context, s *domain.WebhookSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[s.ID().String()] = s
	return nil
}

func (r *memSubRepo) FindByID(_ context.Context, id domain.WebhookSubscriptionID) (*domain.WebhookSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id.String()]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (r *memSubRepo) FindForAccount(_ context.Context, id domain.AccountID) ([]*domain.WebhookSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.WebhookSubscription
	for _, s := range r.subs {
		if s.IsActive() && (s.AccountID() == nil || *s.AccountID() == id) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSubRepo) List(_ context.Context) ([]*domain.WebhookSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.WebhookSubscription, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	return out, nil
}

func (r *memSubRepo) Delete(_ context.Context, id domain.WebhookSubscriptionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[id.String()]; !ok {
		return domain.ErrNotFound
	}
	delete(r.subs, id.String())
	return nil
}
