package memberrepo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Huaoe/ElurcFleet/internal/domain"
	"github.com/Huaoe/ElurcFleet/internal/ports/out/memberrepo"
)

func identity(id, wallet string, now time.Time) domain.MemberIdentity {
	return domain.MemberIdentity{
		ID:        domain.MemberID(id),
		Wallet:    domain.WalletAddress(wallet),
		Status:    domain.StatusVerified,
		Metadata:  domain.Metadata{"k": domain.StringValue("v")},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRepo_ReturnsIsolatedCopies(t *testing.T) {
	t.Parallel()

	r := NewRepo()
	ctx := context.Background()
	if err := r.Create(ctx, identity("m1", "W1", time.Unix(100, 0).UTC())); err != nil {
		t.Fatalf("Create() err=%v", err)
	}

	got, err := r.GetByWallet(ctx, "W1")
	if err != nil {
		t.Fatalf("GetByWallet() err=%v", err)
	}
	got.Metadata["k"] = domain.StringValue("mutated")
	got.Status = domain.StatusRevoked

	again, _ := r.GetByID(ctx, "m1")
	if again.Metadata["k"].Str() != "v" || again.Status != domain.StatusVerified {
		t.Fatalf("stored identity was mutated through a returned copy: %+v", again)
	}
}

func TestRepo_CreateRejectsDuplicateID(t *testing.T) {
	t.Parallel()

	r := NewRepo()
	now := time.Unix(100, 0).UTC()
	if err := r.Create(context.Background(), identity("m1", "W1", now)); err != nil {
		t.Fatalf("Create(m1) err=%v", err)
	}
	if err := r.Create(context.Background(), identity("m1", "W2", now)); !errors.Is(err, memberrepo.ErrAlreadyExists) {
		t.Fatalf("Create(dup id) err=%v, want %v", err, memberrepo.ErrAlreadyExists)
	}
	if err := r.Create(context.Background(), identity("", "W3", now)); !errors.Is(err, memberrepo.ErrAlreadyExists) {
		t.Fatalf("Create(empty id) err=%v, want %v", err, memberrepo.ErrAlreadyExists)
	}
}

func TestRepo_UpdateAfterSoftDeleteIsNotFound(t *testing.T) {
	t.Parallel()

	r := NewRepo()
	ctx := context.Background()
	m := identity("m1", "W1", time.Unix(100, 0).UTC())
	if err := r.Create(ctx, m); err != nil {
		t.Fatalf("Create() err=%v", err)
	}
	if err := r.SoftDelete(ctx, m.ID, time.Unix(200, 0)); err != nil {
		t.Fatalf("SoftDelete() err=%v", err)
	}
	m.Status = domain.StatusSuspended
	if err := r.Update(ctx, m); !errors.Is(err, memberrepo.ErrNotFound) {
		t.Fatalf("Update(deleted) err=%v, want %v", err, memberrepo.ErrNotFound)
	}
	if err := r.SoftDelete(ctx, m.ID, time.Unix(300, 0)); !errors.Is(err, memberrepo.ErrNotFound) {
		t.Fatalf("SoftDelete(twice) err=%v, want %v", err, memberrepo.ErrNotFound)
	}
}
