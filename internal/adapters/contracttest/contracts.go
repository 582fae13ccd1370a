package contracttest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Huaoe/ElurcFleet/internal/domain"
	memberrepoport "github.com/Huaoe/ElurcFleet/internal/ports/out/memberrepo"
	noncestoreport "github.com/Huaoe/ElurcFleet/internal/ports/out/noncestore"
	profilerepoport "github.com/Huaoe/ElurcFleet/internal/ports/out/profilerepo"
)

type CleanupFunc = func()

// AdvanceFunc moves the store's notion of time forward. Stores backed by a
// server-side clock pass nil and the expiry checks are skipped.
type AdvanceFunc = func(d time.Duration)

type IdentityRepoFactory func(t *testing.T) (memberrepoport.Repository, CleanupFunc)
type ProfileRepoFactory func(t *testing.T) (memberrepoport.Repository, profilerepoport.Repository, CleanupFunc)
type NonceStoreFactory func(t *testing.T) (noncestoreport.Store, AdvanceFunc, CleanupFunc)

// uniqueWallet returns a wallet-shaped string unique across runs against a shared database.
func uniqueWallet() domain.WalletAddress {
	return domain.WalletAddress("W" + uuid.NewString())
}

func newIdentity(wallet domain.WalletAddress, created time.Time) domain.MemberIdentity {
	verified := created
	return domain.MemberIdentity{
		ID:              domain.MemberID(uuid.NewString()),
		Wallet:          wallet,
		Status:          domain.StatusVerified,
		VerifiedAt:      &verified,
		LastVerifiedAt:  &verified,
		NFTTokenAccount: "TokenAcct1",
		Metadata: domain.Metadata{
			domain.MetaNFTName: domain.StringValue("Stalabard #1"),
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func RunNonceStore(t *testing.T, newStore NonceStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, advance, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	nonce := "n" + uuid.NewString()[:8]
	if seen, err := store.Seen(ctx, nonce); err != nil || seen {
		t.Fatalf("Seen(fresh) seen=%v err=%v", seen, err)
	}
	ok, err := store.MarkIfAbsent(ctx, nonce, time.Hour)
	if err != nil || !ok {
		t.Fatalf("MarkIfAbsent(first) ok=%v err=%v", ok, err)
	}
	ok, err = store.MarkIfAbsent(ctx, nonce, time.Hour)
	if err != nil || ok {
		t.Fatalf("MarkIfAbsent(second) ok=%v err=%v, want ok=false", ok, err)
	}
	if seen, err := store.Seen(ctx, nonce); err != nil || !seen {
		t.Fatalf("Seen(marked) seen=%v err=%v", seen, err)
	}

	// Concurrent marks of one nonce have exactly one winner.
	raced := "r" + uuid.NewString()[:8]
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.MarkIfAbsent(ctx, raced, time.Hour)
			if err != nil {
				t.Errorf("MarkIfAbsent(race) err=%v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("concurrent MarkIfAbsent winners=%d, want 1", wins)
	}

	if advance == nil {
		return
	}
	short := "s" + uuid.NewString()[:8]
	if ok, err := store.MarkIfAbsent(ctx, short, time.Minute); err != nil || !ok {
		t.Fatalf("MarkIfAbsent(short) ok=%v err=%v", ok, err)
	}
	advance(59 * time.Second)
	if ok, _ := store.MarkIfAbsent(ctx, short, time.Minute); ok {
		t.Fatalf("MarkIfAbsent before expiry ok=true, want false")
	}
	advance(2 * time.Second)
	if seen, _ := store.Seen(ctx, short); seen {
		t.Fatalf("Seen after expiry = true, want false")
	}
	if ok, err := store.MarkIfAbsent(ctx, short, time.Minute); err != nil || !ok {
		t.Fatalf("MarkIfAbsent after expiry ok=%v err=%v, want ok=true", ok, err)
	}
}

func RunIdentityRepo(t *testing.T, newRepo IdentityRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	before, err := repo.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}

	now := time.Unix(1_700_000_000, 0).UTC()
	wallet := uniqueWallet()
	a := newIdentity(wallet, now)
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create a: %v", err)
	}

	got, err := repo.GetByWallet(ctx, wallet)
	if err != nil {
		t.Fatalf("GetByWallet: %v", err)
	}
	if got.ID != a.ID || got.Status != domain.StatusVerified || got.NFTTokenAccount != "TokenAcct1" {
		t.Fatalf("GetByWallet mismatch: %+v", got)
	}
	if got.VerifiedAt == nil || !got.VerifiedAt.Equal(now) || got.LastVerifiedAt == nil || !got.LastVerifiedAt.Equal(now) {
		t.Fatalf("timestamps mismatch: verified=%v last=%v", got.VerifiedAt, got.LastVerifiedAt)
	}
	if got.LinkedAccountID != nil || got.DeletedAt != nil {
		t.Fatalf("unexpected optional fields: %+v", got)
	}
	if got.Metadata[domain.MetaNFTName].Str() != "Stalabard #1" {
		t.Fatalf("metadata mismatch: %+v", got.Metadata)
	}
	if _, err := repo.GetByID(ctx, a.ID); err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	// Wallet uniqueness.
	if err := repo.Create(ctx, newIdentity(wallet, now)); !errors.Is(err, memberrepoport.ErrWalletAlreadyBound) {
		t.Fatalf("Create dup wallet err=%v, want %v", err, memberrepoport.ErrWalletAlreadyBound)
	}

	// Concurrent first verifications for one wallet leave one identity.
	raced := uniqueWallet()
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		bound    int
		otherErr error
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Create(ctx, newIdentity(raced, now))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, memberrepoport.ErrWalletAlreadyBound):
				bound++
			default:
				otherErr = err
			}
		}()
	}
	wg.Wait()
	if otherErr != nil || created != 1 || bound != 7 {
		t.Fatalf("concurrent Create created=%d bound=%d err=%v", created, bound, otherErr)
	}

	// Update replaces mutable fields; wallet is immutable.
	later := now.Add(time.Hour)
	got.Status = domain.StatusSuspended
	got.LastVerifiedAt = &later
	got.NFTTokenAccount = "TokenAcct2"
	got.Metadata = got.Metadata.Merge(domain.Metadata{
		domain.MetaSuspendedAt:      domain.TimeValue(later),
		domain.MetaSuspensionReason: domain.StringValue("spam"),
	})
	got.UpdatedAt = later
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	upd, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID after update: %v", err)
	}
	if upd.Status != domain.StatusSuspended || upd.NFTTokenAccount != "TokenAcct2" || !upd.LastVerifiedAt.Equal(later) {
		t.Fatalf("update not applied: %+v", upd)
	}
	if !upd.VerifiedAt.Equal(now) {
		t.Fatalf("VerifiedAt changed: %v", upd.VerifiedAt)
	}
	if v := upd.Metadata[domain.MetaSuspendedAt]; !v.IsTime() || !v.Time().Equal(later) {
		t.Fatalf("suspended_at metadata mismatch: %+v", v)
	}
	if upd.Metadata[domain.MetaNFTName].Str() != "Stalabard #1" {
		t.Fatalf("existing metadata dropped: %+v", upd.Metadata)
	}

	moved := upd
	moved.Wallet = uniqueWallet()
	if err := repo.Update(ctx, moved); !errors.Is(err, memberrepoport.ErrWalletImmutable) {
		t.Fatalf("Update wallet err=%v, want %v", err, memberrepoport.ErrWalletImmutable)
	}
	ghost := newIdentity(uniqueWallet(), now)
	if err := repo.Update(ctx, ghost); !errors.Is(err, memberrepoport.ErrNotFound) {
		t.Fatalf("Update unknown err=%v, want %v", err, memberrepoport.ErrNotFound)
	}

	// Counts and filtered listing.
	after, err := repo.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if after[domain.StatusSuspended]-before[domain.StatusSuspended] != 1 {
		t.Fatalf("suspended delta=%d, want 1", after[domain.StatusSuspended]-before[domain.StatusSuspended])
	}
	if after[domain.StatusVerified]-before[domain.StatusVerified] != 1 {
		t.Fatalf("verified delta=%d, want 1", after[domain.StatusVerified]-before[domain.StatusVerified])
	}
	suspended := domain.StatusSuspended
	list, err := repo.List(ctx, memberrepoport.ListFilter{Status: &suspended})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	found := false
	for _, m := range list {
		if m.Status != domain.StatusSuspended {
			t.Fatalf("List returned status %q", m.Status)
		}
		if m.ID == a.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("List(suspended) missing %s", a.ID)
	}

	// Soft delete frees the wallet but keeps the record for audit.
	if err := repo.SoftDelete(ctx, a.ID, later); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if _, err := repo.GetByWallet(ctx, wallet); !errors.Is(err, memberrepoport.ErrNotFound) {
		t.Fatalf("GetByWallet after delete err=%v, want %v", err, memberrepoport.ErrNotFound)
	}
	audit, err := repo.GetByID(ctx, a.ID)
	if err != nil || audit.DeletedAt == nil {
		t.Fatalf("GetByID after delete err=%v deletedAt=%v", err, audit.DeletedAt)
	}
	if err := repo.Create(ctx, newIdentity(wallet, later)); err != nil {
		t.Fatalf("Create after delete: %v", err)
	}

	// A revoked identity rejects every later write, including one built from a stale read.
	r := newIdentity(uniqueWallet(), now)
	if err := repo.Create(ctx, r); err != nil {
		t.Fatalf("Create r: %v", err)
	}
	stale, err := repo.GetByID(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetByID r: %v", err)
	}
	revoked := stale
	revoked.Status = domain.StatusRevoked
	revoked.UpdatedAt = later
	if err := repo.Update(ctx, revoked); err != nil {
		t.Fatalf("Update revoke: %v", err)
	}
	stale.LastVerifiedAt = &later
	stale.UpdatedAt = later.Add(time.Minute)
	if err := repo.Update(ctx, stale); !errors.Is(err, memberrepoport.ErrRevoked) {
		t.Fatalf("Update revoked err=%v, want %v", err, memberrepoport.ErrRevoked)
	}
	if err := repo.Update(ctx, revoked); !errors.Is(err, memberrepoport.ErrRevoked) {
		t.Fatalf("Update revoked twice err=%v, want %v", err, memberrepoport.ErrRevoked)
	}
	final, err := repo.GetByID(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetByID r after stale update: %v", err)
	}
	if final.Status != domain.StatusRevoked || !final.UpdatedAt.Equal(later) {
		t.Fatalf("revoked identity changed: status=%s updated=%v", final.Status, final.UpdatedAt)
	}

	if _, err := repo.GetByID(ctx, domain.MemberID(uuid.NewString())); !errors.Is(err, memberrepoport.ErrNotFound) {
		t.Fatalf("GetByID unknown err=%v", err)
	}
	if _, err := repo.GetByWallet(ctx, uniqueWallet()); !errors.Is(err, memberrepoport.ErrNotFound) {
		t.Fatalf("GetByWallet unknown err=%v", err)
	}
}

func RunProfileRepo(t *testing.T, newRepos ProfileRepoFactory) {
	t.Helper()
	ctx := context.Background()

	identities, profiles, cleanup := newRepos(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(1_700_000_000, 0).UTC()
	a := newIdentity(uniqueWallet(), now)
	b := newIdentity(uniqueWallet(), now)
	for _, m := range []domain.MemberIdentity{a, b} {
		if err := identities.Create(ctx, m); err != nil {
			t.Fatalf("Create identity: %v", err)
		}
	}

	name := "member-" + uuid.NewString()[:8]
	bio := "hello"
	p := domain.MemberProfile{
		ID:          domain.ProfileID(uuid.NewString()),
		IdentityID:  a.ID,
		DisplayName: name,
		Bio:         &bio,
		Metadata:    domain.Metadata{"source": domain.StringValue("verification")},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := profiles.Create(ctx, p); err != nil {
		t.Fatalf("Create profile: %v", err)
	}
	got, err := profiles.GetByIdentity(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByIdentity: %v", err)
	}
	if got.ID != p.ID || got.DisplayName != name || got.AvatarURL != nil || got.Bio == nil || *got.Bio != "hello" {
		t.Fatalf("GetByIdentity mismatch: %+v", got)
	}
	if got.Metadata["source"].Str() != "verification" {
		t.Fatalf("metadata mismatch: %+v", got.Metadata)
	}

	// One profile per identity.
	dup := p
	dup.ID = domain.ProfileID(uuid.NewString())
	dup.DisplayName = "other-" + uuid.NewString()[:8]
	if err := profiles.Create(ctx, dup); !errors.Is(err, profilerepoport.ErrProfileExists) {
		t.Fatalf("Create second profile err=%v, want %v", err, profilerepoport.ErrProfileExists)
	}

	// Display names are unique.
	clash := domain.MemberProfile{
		ID:          domain.ProfileID(uuid.NewString()),
		IdentityID:  b.ID,
		DisplayName: name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := profiles.Create(ctx, clash); !errors.Is(err, profilerepoport.ErrDisplayNameTaken) {
		t.Fatalf("Create clashing name err=%v, want %v", err, profilerepoport.ErrDisplayNameTaken)
	}
	clash.DisplayName = "member-" + uuid.NewString()[:8]
	if err := profiles.Create(ctx, clash); err != nil {
		t.Fatalf("Create b profile: %v", err)
	}

	// Update.
	avatar := "https://example.com/a.png"
	got.AvatarURL = &avatar
	got.Bio = nil
	got.DisplayName = "renamed-" + uuid.NewString()[:8]
	got.UpdatedAt = now.Add(time.Minute)
	if err := profiles.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	upd, err := profiles.GetByIdentity(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByIdentity after update: %v", err)
	}
	if upd.DisplayName != got.DisplayName || upd.AvatarURL == nil || *upd.AvatarURL != avatar || upd.Bio != nil {
		t.Fatalf("update not applied: %+v", upd)
	}
	upd.DisplayName = clash.DisplayName
	if err := profiles.Update(ctx, upd); !errors.Is(err, profilerepoport.ErrDisplayNameTaken) {
		t.Fatalf("Update to taken name err=%v, want %v", err, profilerepoport.ErrDisplayNameTaken)
	}
	ghost := clash
	ghost.ID = domain.ProfileID(uuid.NewString())
	if err := profiles.Update(ctx, ghost); !errors.Is(err, profilerepoport.ErrNotFound) {
		t.Fatalf("Update unknown err=%v, want %v", err, profilerepoport.ErrNotFound)
	}

	// Soft delete hides the profile; its name stays reserved.
	if err := profiles.SoftDeleteByIdentity(ctx, b.ID, now.Add(time.Hour)); err != nil {
		t.Fatalf("SoftDeleteByIdentity: %v", err)
	}
	if _, err := profiles.GetByIdentity(ctx, b.ID); !errors.Is(err, profilerepoport.ErrNotFound) {
		t.Fatalf("GetByIdentity after delete err=%v, want %v", err, profilerepoport.ErrNotFound)
	}
	c := newIdentity(uniqueWallet(), now)
	if err := identities.Create(ctx, c); err != nil {
		t.Fatalf("Create identity c: %v", err)
	}
	reuse := domain.MemberProfile{
		ID:          domain.ProfileID(uuid.NewString()),
		IdentityID:  c.ID,
		DisplayName: clash.DisplayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := profiles.Create(ctx, reuse); !errors.Is(err, profilerepoport.ErrDisplayNameTaken) {
		t.Fatalf("Create with deleted profile's name err=%v, want %v", err, profilerepoport.ErrDisplayNameTaken)
	}
	if _, err := profiles.GetByIdentity(ctx, domain.MemberID(uuid.NewString())); !errors.Is(err, profilerepoport.ErrNotFound) {
		t.Fatalf("GetByIdentity unknown err=%v", err)
	}
}

// HardDeleteFunc removes an identity row outright, bypassing the soft delete.
type HardDeleteFunc func(ctx context.Context, id domain.MemberID) error

// RunProfileCascade checks that removing an identity row takes its profile with it.
func RunProfileCascade(t *testing.T, newRepos ProfileRepoFactory, hardDelete HardDeleteFunc) {
	t.Helper()
	ctx := context.Background()

	identities, profiles, cleanup := newRepos(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(1_700_000_000, 0).UTC()
	m := newIdentity(uniqueWallet(), now)
	if err := identities.Create(ctx, m); err != nil {
		t.Fatalf("Create identity: %v", err)
	}
	p := domain.MemberProfile{
		ID:          domain.ProfileID(uuid.NewString()),
		IdentityID:  m.ID,
		DisplayName: "member-" + uuid.NewString()[:8],
		Metadata:    domain.Metadata{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := profiles.Create(ctx, p); err != nil {
		t.Fatalf("Create profile: %v", err)
	}

	if err := hardDelete(ctx, m.ID); err != nil {
		t.Fatalf("hard delete identity: %v", err)
	}
	if _, err := identities.GetByID(ctx, m.ID); !errors.Is(err, memberrepoport.ErrNotFound) {
		t.Fatalf("GetByID after hard delete err=%v, want %v", err, memberrepoport.ErrNotFound)
	}
	if _, err := profiles.GetByIdentity(ctx, m.ID); !errors.Is(err, profilerepoport.ErrNotFound) {
		t.Fatalf("GetByIdentity after hard delete err=%v, want %v", err, profilerepoport.ErrNotFound)
	}
}
