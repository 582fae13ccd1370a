package profilerepo

import (
	"context"
	"sync"
	"time"

	"github.com/Huaoe/ElurcFleet/internal/domain"
	"github.com/Huaoe/ElurcFleet/internal/ports/out/profilerepo"
)

// Repo is an in-memory implementation of profilerepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	byID         map[domain.ProfileID]domain.MemberProfile
	idByIdentity map[domain.MemberID]domain.ProfileID
	// names holds every display name ever stored, including soft-deleted profiles.
	names map[string]domain.ProfileID
}

func NewRepo() *Repo {
	return &Repo{
		byID:         make(map[domain.ProfileID]domain.MemberProfile),
		idByIdentity: make(map[domain.MemberID]domain.ProfileID),
		names:        make(map[string]domain.ProfileID),
	}
}

func (r *Repo) Create(ctx context.Context, p domain.MemberProfile) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[p.ID]; ok {
		return profilerepo.ErrProfileExists
	}
	if _, ok := r.idByIdentity[p.IdentityID]; ok {
		return profilerepo.ErrProfileExists
	}
	if _, ok := r.names[p.DisplayName]; ok {
		return profilerepo.ErrDisplayNameTaken
	}

	r.byID[p.ID] = cloneProfile(p)
	r.idByIdentity[p.IdentityID] = p.ID
	r.names[p.DisplayName] = p.ID
	return nil
}

func (r *Repo) Update(ctx context.Context, p domain.MemberProfile) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[p.ID]
	if !ok || existing.DeletedAt != nil {
		return profilerepo.ErrNotFound
	}
	if owner, ok := r.names[p.DisplayName]; ok && owner != p.ID {
		return profilerepo.ErrDisplayNameTaken
	}

	delete(r.names, existing.DisplayName)
	r.names[p.DisplayName] = p.ID
	p.IdentityID = existing.IdentityID
	p.CreatedAt = existing.CreatedAt
	r.byID[p.ID] = cloneProfile(p)
	return nil
}

func (r *Repo) GetByIdentity(ctx context.Context, id domain.MemberID) (domain.MemberProfile, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	pid, ok := r.idByIdentity[id]
	if !ok {
		return domain.MemberProfile{}, profilerepo.ErrNotFound
	}
	return cloneProfile(r.byID[pid]), nil
}

func (r *Repo) SoftDeleteByIdentity(ctx context.Context, id domain.MemberID, at time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	pid, ok := r.idByIdentity[id]
	if !ok {
		return profilerepo.ErrNotFound
	}
	p := r.byID[pid]
	t := at.UTC()
	p.DeletedAt = &t
	p.UpdatedAt = t
	r.byID[pid] = p
	delete(r.idByIdentity, id)
	return nil
}

func cloneProfile(p domain.MemberProfile) domain.MemberProfile {
	out := p
	if p.AvatarURL != nil {
		v := *p.AvatarURL
		out.AvatarURL = &v
	}
	if p.Bio != nil {
		v := *p.Bio
		out.Bio = &v
	}
	if p.DeletedAt != nil {
		v := *p.DeletedAt
		out.DeletedAt = &v
	}
	out.Metadata = p.Metadata.Clone()
	return out
}
