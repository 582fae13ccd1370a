package memberrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Huaoe/ElurcFleet/internal/domain"
	"github.com/Huaoe/ElurcFleet/internal/ports/out/memberrepo"
)

// Repo is an in-memory implementation of memberrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	byID       map[domain.MemberID]domain.MemberIdentity
	idByWallet map[domain.WalletAddress]domain.MemberID
}

func NewRepo() *Repo {
	return &Repo{
		byID:       make(map[domain.MemberID]domain.MemberIdentity),
		idByWallet: make(map[domain.WalletAddress]domain.MemberID),
	}
}

func (r *Repo) Create(ctx context.Context, m domain.MemberIdentity) error {
	_ = ctx
	if m.ID == "" {
		return memberrepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[m.ID]; ok {
		return memberrepo.ErrAlreadyExists
	}
	if _, ok := r.idByWallet[m.Wallet]; ok {
		return memberrepo.ErrWalletAlreadyBound
	}

	r.byID[m.ID] = cloneIdentity(m)
	if m.DeletedAt == nil {
		r.idByWallet[m.Wallet] = m.ID
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, m domain.MemberIdentity) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[m.ID]
	if !ok || existing.DeletedAt != nil {
		return memberrepo.ErrNotFound
	}
	if existing.Wallet != m.Wallet {
		return memberrepo.ErrWalletImmutable
	}
	if existing.Status == domain.StatusRevoked {
		return memberrepo.ErrRevoked
	}

	m.CreatedAt = existing.CreatedAt
	m.DeletedAt = nil
	r.byID[m.ID] = cloneIdentity(m)
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.MemberID) (domain.MemberIdentity, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	if !ok {
		return domain.MemberIdentity{}, memberrepo.ErrNotFound
	}
	return cloneIdentity(m), nil
}

func (r *Repo) GetByWallet(ctx context.Context, wallet domain.WalletAddress) (domain.MemberIdentity, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idByWallet[wallet]
	if !ok {
		return domain.MemberIdentity{}, memberrepo.ErrNotFound
	}
	m, ok := r.byID[id]
	if !ok {
		return domain.MemberIdentity{}, memberrepo.ErrNotFound
	}
	return cloneIdentity(m), nil
}

func (r *Repo) List(ctx context.Context, f memberrepo.ListFilter) ([]domain.MemberIdentity, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.MemberIdentity, 0, len(r.byID))
	for _, m := range r.byID {
		if m.DeletedAt != nil {
			continue
		}
		if f.Status != nil && m.Status != *f.Status {
			continue
		}
		out = append(out, cloneIdentity(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *Repo) CountByStatus(ctx context.Context) (map[domain.MemberStatus]int, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[domain.MemberStatus]int, len(domain.AllStatuses))
	for _, s := range domain.AllStatuses {
		out[s] = 0
	}
	for _, m := range r.byID {
		if m.DeletedAt == nil {
			out[m.Status]++
		}
	}
	return out, nil
}

func (r *Repo) SoftDelete(ctx context.Context, id domain.MemberID, at time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byID[id]
	if !ok || m.DeletedAt != nil {
		return memberrepo.ErrNotFound
	}
	t := at.UTC()
	m.DeletedAt = &t
	m.UpdatedAt = t
	r.byID[id] = m
	delete(r.idByWallet, m.Wallet)
	return nil
}

func cloneIdentity(m domain.MemberIdentity) domain.MemberIdentity {
	out := m
	out.LinkedAccountID = cloneStringPtr(m.LinkedAccountID)
	out.VerifiedAt = cloneTimePtr(m.VerifiedAt)
	out.LastVerifiedAt = cloneTimePtr(m.LastVerifiedAt)
	out.DeletedAt = cloneTimePtr(m.DeletedAt)
	out.Metadata = m.Metadata.Clone()
	return out
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTimePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
