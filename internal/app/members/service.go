package members

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Huaoe/ElurcFleet/internal/domain"
	"github.com/Huaoe/ElurcFleet/internal/platform/logging"
	"github.com/Huaoe/ElurcFleet/internal/platform/metrics"
	clockport "github.com/Huaoe/ElurcFleet/internal/ports/out/clock"
	"github.com/Huaoe/ElurcFleet/internal/ports/out/events"
	"github.com/Huaoe/ElurcFleet/internal/ports/out/memberrepo"
	"github.com/Huaoe/ElurcFleet/internal/ports/out/profilerepo"
)

const (
	DefaultDisplayNameMaxLength = 50
	DefaultBioMaxLength         = 500

	// DefaultPublishTimeout bounds how long a lifecycle event may hold up the
	// operation that produced it.
	DefaultPublishTimeout = 2 * time.Second

	// displayNameStep is how many more wallet characters each display-name retry uses.
	displayNameStep = 4
)

type Options struct {
	Events  events.Publisher
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	DisplayNameMaxLength int
	BioMaxLength         int
	PublishTimeout       time.Duration
}

// Service is the membership ledger: identity lifecycle and profiles.
type Service struct {
	identities memberrepo.Repository
	profiles   profilerepo.Repository
	clk        clockport.Clock
	events     events.Publisher
	log        *zap.Logger
	metrics    *metrics.Metrics

	newMemberID  func() domain.MemberID
	newProfileID func() domain.ProfileID

	displayNameMax int
	bioMax         int
	publishTimeout time.Duration
}

func NewService(identities memberrepo.Repository, profiles profilerepo.Repository, clk clockport.Clock, opts Options) *Service {
	if opts.Events == nil {
		opts.Events = events.Discard{}
	}
	if opts.DisplayNameMaxLength <= 0 {
		opts.DisplayNameMaxLength = DefaultDisplayNameMaxLength
	}
	if opts.BioMaxLength <= 0 {
		opts.BioMaxLength = DefaultBioMaxLength
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = DefaultPublishTimeout
	}
	return &Service{
		identities: identities,
		profiles:   profiles,
		clk:        clk,
		events:     opts.Events,
		log:        logging.OrNop(opts.Logger),
		metrics:    opts.Metrics,
		newMemberID: func() domain.MemberID {
			return domain.MemberID(uuid.NewString())
		},
		newProfileID: func() domain.ProfileID {
			return domain.ProfileID(uuid.NewString())
		},
		displayNameMax: opts.DisplayNameMaxLength,
		bioMax:         opts.BioMaxLength,
		publishTimeout: opts.PublishTimeout,
	}
}

func (s *Service) FindByWallet(ctx context.Context, wallet domain.WalletAddress) (domain.MemberIdentity, error) {
	m, err := s.identities.GetByWallet(ctx, wallet)
	if err != nil {
		if errors.Is(err, memberrepo.ErrNotFound) {
			return domain.MemberIdentity{}, errNotFound()
		}
		return domain.MemberIdentity{}, err
	}
	return m, nil
}

// GetByID returns the identity, including soft-deleted ones.
func (s *Service) GetByID(ctx context.Context, id domain.MemberID) (domain.MemberIdentity, error) {
	m, err := s.identities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, memberrepo.ErrNotFound) {
			return domain.MemberIdentity{}, errNotFound()
		}
		return domain.MemberIdentity{}, err
	}
	return m, nil
}

func (s *Service) List(ctx context.Context, status *domain.MemberStatus, limit int) ([]domain.MemberIdentity, error) {
	if status != nil && !status.Valid() {
		return nil, validation("status", "unknown status")
	}
	return s.identities.List(ctx, memberrepo.ListFilter{Status: status, Limit: limit})
}

// CreateVerified records a wallet's first successful verification. A concurrent
// creation for the same wallet surfaces as DUPLICATE_WALLET.
func (s *Service) CreateVerified(ctx context.Context, in CreateVerifiedInput) (domain.MemberIdentity, error) {
	now := s.clk.Now()
	meta := domain.Metadata{}.Merge(in.Metadata)
	if in.CorrelationID != "" {
		meta[domain.MetaCorrelationID] = domain.StringValue(in.CorrelationID)
	}
	m := domain.MemberIdentity{
		ID:              s.newMemberID(),
		Wallet:          in.Wallet,
		Status:          domain.StatusVerified,
		VerifiedAt:      &now,
		LastVerifiedAt:  &now,
		NFTTokenAccount: in.TokenAccount,
		Metadata:        meta,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.identities.Create(ctx, m); err != nil {
		if errors.Is(err, memberrepo.ErrWalletAlreadyBound) {
			return domain.MemberIdentity{}, &Error{
				Status:  409,
				Code:    CodeDuplicateWallet,
				Message: "A member identity already exists for this wallet.",
			}
		}
		return domain.MemberIdentity{}, err
	}
	s.metrics.Transition(string(domain.StatusVerified))
	s.publish(ctx, events.MemberCreated, m, "", in.CorrelationID)
	return m, nil
}

// Reverify refreshes a known identity after a successful verification. The
// first-verification timestamp is kept; revoked identities are left untouched.
func (s *Service) Reverify(ctx context.Context, id domain.MemberID, tokenAccount, correlationID string) (domain.MemberIdentity, error) {
	m, err := s.loadLive(ctx, id)
	if err != nil {
		return domain.MemberIdentity{}, err
	}
	if m.IsRevoked() {
		return domain.MemberIdentity{}, errRevoked()
	}
	now := s.clk.Now()
	m.Status = domain.StatusVerified
	m.LastVerifiedAt = &now
	if m.VerifiedAt == nil {
		m.VerifiedAt = &now
	}
	m.NFTTokenAccount = tokenAccount
	m.UpdatedAt = now
	if err := s.identities.Update(ctx, m); err != nil {
		return domain.MemberIdentity{}, mapUpdateErr(err)
	}
	s.metrics.Transition(string(domain.StatusVerified))
	s.publish(ctx, events.MemberReverified, m, "", correlationID)
	return m, nil
}

func (s *Service) Suspend(ctx context.Context, wallet domain.WalletAddress, reason string) (domain.MemberIdentity, error) {
	m, err := s.FindByWallet(ctx, wallet)
	if err != nil {
		return domain.MemberIdentity{}, err
	}
	if m.IsRevoked() {
		return domain.MemberIdentity{}, errRevoked()
	}
	now := s.clk.Now()
	m.Status = domain.StatusSuspended
	m.Metadata = m.Metadata.Merge(domain.Metadata{
		domain.MetaSuspendedAt:      domain.TimeValue(now),
		domain.MetaSuspensionReason: domain.StringValue(strings.TrimSpace(reason)),
	})
	return s.transition(ctx, m, now, events.MemberSuspended, reason)
}

// Revoke is terminal: no later operation moves the identity out of Revoked.
func (s *Service) Revoke(ctx context.Context, wallet domain.WalletAddress, reason string) (domain.MemberIdentity, error) {
	m, err := s.FindByWallet(ctx, wallet)
	if err != nil {
		return domain.MemberIdentity{}, err
	}
	if m.IsRevoked() {
		return domain.MemberIdentity{}, errRevoked()
	}
	now := s.clk.Now()
	m.Status = domain.StatusRevoked
	m.Metadata = m.Metadata.Merge(domain.Metadata{
		domain.MetaRevokedAt:        domain.TimeValue(now),
		domain.MetaRevocationReason: domain.StringValue(strings.TrimSpace(reason)),
	})
	return s.transition(ctx, m, now, events.MemberRevoked, reason)
}

// Reactivate returns a suspended identity to Verified. Any other state,
// Revoked included, fails with NOT_SUSPENDED.
func (s *Service) Reactivate(ctx context.Context, wallet domain.WalletAddress) (domain.MemberIdentity, error) {
	m, err := s.FindByWallet(ctx, wallet)
	if err != nil {
		return domain.MemberIdentity{}, err
	}
	if !m.IsSuspended() {
		return domain.MemberIdentity{}, &Error{
			Status:  409,
			Code:    CodeNotSuspended,
			Message: "Only suspended memberships can be reactivated.",
			Details: map[string]any{"status": string(m.Status)},
		}
	}
	now := s.clk.Now()
	m.Status = domain.StatusVerified
	m.Metadata = m.Metadata.Merge(domain.Metadata{
		domain.MetaReactivatedAt: domain.TimeValue(now),
	})
	return s.transition(ctx, m, now, events.MemberReactivated, "")
}

// DeleteMember soft-deletes the identity and its profile. The wallet becomes
// free for a future verification; the records stay readable by ID.
func (s *Service) DeleteMember(ctx context.Context, wallet domain.WalletAddress) (domain.MemberIdentity, error) {
	m, err := s.FindByWallet(ctx, wallet)
	if err != nil {
		return domain.MemberIdentity{}, err
	}
	now := s.clk.Now()
	if err := s.profiles.SoftDeleteByIdentity(ctx, m.ID, now); err != nil && !errors.Is(err, profilerepo.ErrNotFound) {
		return domain.MemberIdentity{}, err
	}
	if err := s.identities.SoftDelete(ctx, m.ID, now); err != nil {
		if errors.Is(err, memberrepo.ErrNotFound) {
			return domain.MemberIdentity{}, errNotFound()
		}
		return domain.MemberIdentity{}, err
	}
	m.DeletedAt = &now
	m.UpdatedAt = now
	s.publish(ctx, events.MemberDeleted, m, "", "")
	return m, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	counts, err := s.identities.CountByStatus(ctx)
	if err != nil {
		return Stats{}, err
	}
	out := Stats{Counts: make(map[domain.MemberStatus]int, len(domain.AllStatuses))}
	for _, st := range domain.AllStatuses {
		out.Counts[st] = counts[st]
		out.Total += counts[st]
	}
	return out, nil
}

func (s *Service) loadLive(ctx context.Context, id domain.MemberID) (domain.MemberIdentity, error) {
	m, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.MemberIdentity{}, err
	}
	if m.IsDeleted() {
		return domain.MemberIdentity{}, errNotFound()
	}
	return m, nil
}

func (s *Service) transition(ctx context.Context, m domain.MemberIdentity, now time.Time, t events.Type, reason string) (domain.MemberIdentity, error) {
	m.UpdatedAt = now
	if err := s.identities.Update(ctx, m); err != nil {
		return domain.MemberIdentity{}, mapUpdateErr(err)
	}
	s.metrics.Transition(string(m.Status))
	s.log.Info("membership status changed",
		zap.String("member_id", string(m.ID)),
		zap.String("wallet", string(m.Wallet)),
		zap.String("status", string(m.Status)),
	)
	s.publish(ctx, t, m, reason, "")
	return m, nil
}

// mapUpdateErr covers a revoke or delete that committed after the identity was read.
func mapUpdateErr(err error) error {
	switch {
	case errors.Is(err, memberrepo.ErrNotFound):
		return errNotFound()
	case errors.Is(err, memberrepo.ErrRevoked):
		return errRevoked()
	}
	return err
}

func (s *Service) publish(ctx context.Context, t events.Type, m domain.MemberIdentity, reason, correlationID string) {
	e := events.Event{
		ID:            uuid.NewString(),
		Type:          t,
		MemberID:      m.ID,
		Wallet:        m.Wallet,
		Status:        m.Status,
		Reason:        reason,
		CorrelationID: correlationID,
		OccurredAt:    s.clk.Now(),
	}
	// The state change is already committed; delivery outlives request cancellation.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, e); err != nil {
		s.metrics.Event(string(t), "error")
		s.log.Warn("membership event not delivered",
			zap.String("type", string(t)),
			zap.String("member_id", string(m.ID)),
			zap.Error(err),
		)
		return
	}
	s.metrics.Event(string(t), "ok")
}

// EnsureProfile returns the identity's profile, creating it with a wallet-derived
// display name when absent. When the 8-character prefix is taken the prefix grows
// until a free name is found.
func (s *Service) EnsureProfile(ctx context.Context, m domain.MemberIdentity) (domain.MemberProfile, error) {
	if p, err := s.profiles.GetByIdentity(ctx, m.ID); err == nil {
		return p, nil
	} else if !errors.Is(err, profilerepo.ErrNotFound) {
		return domain.MemberProfile{}, err
	}

	now := s.clk.Now()
	p := domain.MemberProfile{
		ID:         s.newProfileID(),
		IdentityID: m.ID,
		Metadata:   domain.Metadata{"created_via": domain.StringValue("verification")},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, name := range s.candidateNames(m.Wallet, p.ID) {
		p.DisplayName = name
		err := s.profiles.Create(ctx, p)
		switch {
		case err == nil:
			return p, nil
		case errors.Is(err, profilerepo.ErrDisplayNameTaken):
			continue
		case errors.Is(err, profilerepo.ErrProfileExists):
			return s.profiles.GetByIdentity(ctx, m.ID)
		default:
			return domain.MemberProfile{}, err
		}
	}
	return domain.MemberProfile{}, &Error{
		Status:  409,
		Code:    CodeDisplayNameTaken,
		Message: "Could not allocate a display name for this member.",
	}
}

func (s *Service) candidateNames(w domain.WalletAddress, pid domain.ProfileID) []string {
	var out []string
	n := domain.DefaultDisplayNameLength
	for {
		out = append(out, domain.Truncate(domain.WalletPrefix(w, n), s.displayNameMax))
		if n >= len(w) {
			break
		}
		n += displayNameStep
	}
	suffix := strings.ReplaceAll(string(pid), "-", "")
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	out = append(out, domain.Truncate(domain.DefaultDisplayName(w)+"-"+suffix, s.displayNameMax))
	return out
}

func (s *Service) GetProfile(ctx context.Context, id domain.MemberID) (domain.MemberProfile, error) {
	p, err := s.profiles.GetByIdentity(ctx, id)
	if err != nil {
		if errors.Is(err, profilerepo.ErrNotFound) {
			return domain.MemberProfile{}, errProfileNotFound()
		}
		return domain.MemberProfile{}, err
	}
	return p, nil
}

// UpdateProfile applies only the specified fields of the patch.
func (s *Service) UpdateProfile(ctx context.Context, id domain.MemberID, in ProfilePatch) (domain.MemberProfile, error) {
	p, err := s.GetProfile(ctx, id)
	if err != nil {
		return domain.MemberProfile{}, err
	}

	if in.DisplayName.IsSpecified() {
		if in.DisplayName.IsNull() {
			return domain.MemberProfile{}, validation("displayName", "cannot be null")
		}
		name := domain.Truncate(domain.NormalizeHumanName(in.DisplayName.Value()), s.displayNameMax)
		if name == "" {
			return domain.MemberProfile{}, validation("displayName", "must be non-empty")
		}
		p.DisplayName = name
	}

	if in.AvatarURL.IsSpecified() {
		if in.AvatarURL.IsNull() {
			p.AvatarURL = nil
		} else {
			raw := strings.TrimSpace(in.AvatarURL.Value())
			if err := validateAvatarURL(raw); err != nil {
				return domain.MemberProfile{}, validation("avatarUrl", err.Error())
			}
			p.AvatarURL = &raw
		}
	}

	if in.Bio.IsSpecified() {
		if in.Bio.IsNull() {
			p.Bio = nil
		} else {
			bio := domain.Truncate(strings.TrimSpace(in.Bio.Value()), s.bioMax)
			p.Bio = &bio
		}
	}

	p.UpdatedAt = s.clk.Now()
	if err := s.profiles.Update(ctx, p); err != nil {
		switch {
		case errors.Is(err, profilerepo.ErrDisplayNameTaken):
			return domain.MemberProfile{}, &Error{
				Status:  409,
				Code:    CodeDisplayNameTaken,
				Message: "display name is already in use",
			}
		case errors.Is(err, profilerepo.ErrNotFound):
			return domain.MemberProfile{}, errProfileNotFound()
		}
		return domain.MemberProfile{}, err
	}
	return p, nil
}

func validateAvatarURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return errors.New("must be an absolute http(s) URL")
	}
	return nil
}
