package verification

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	memchain "github.com/Huaoe/ElurcFleet/internal/adapters/memory/chain"
	memclock "github.com/Huaoe/ElurcFleet/internal/adapters/memory/clock"
	memmemberrepo "github.com/Huaoe/ElurcFleet/internal/adapters/memory/memberrepo"
	memnoncestore "github.com/Huaoe/ElurcFleet/internal/adapters/memory/noncestore"
	memprofilerepo "github.com/Huaoe/ElurcFleet/internal/adapters/memory/profilerepo"
	"github.com/Huaoe/ElurcFleet/internal/app/challenge"
	"github.com/Huaoe/ElurcFleet/internal/app/collection"
	"github.com/Huaoe/ElurcFleet/internal/app/members"
	"github.com/Huaoe/ElurcFleet/internal/domain"
	"github.com/Huaoe/ElurcFleet/internal/platform/base58"
	"github.com/Huaoe/ElurcFleet/internal/platform/metaplex"
	"github.com/Huaoe/ElurcFleet/internal/platform/signature"
	"github.com/Huaoe/ElurcFleet/internal/ports/out/chain"
	"github.com/Huaoe/ElurcFleet/internal/ports/out/memberrepo"
)

type harness struct {
	svc    *Service
	ledger *members.Service
	chain  *memchain.Ledger
	clk    *memclock.ManualClock
	ids    *memmemberrepo.Repo

	priv   ed25519.PrivateKey
	wallet domain.WalletAddress
	coll   [32]byte
}

func newHarness(t *testing.T, collectionConfigured bool) *harness {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey err=%v", err)
	}
	h := &harness{
		chain:  memchain.NewLedger(),
		clk:    memclock.NewManualClock(time.Unix(1_700_000_000, 0).UTC()),
		ids:    memmemberrepo.NewRepo(),
		priv:   priv,
		wallet: domain.WalletAddress(base58.Encode(pub)),
	}
	for i := range h.coll {
		h.coll[i] = byte(i + 1)
	}
	h.ledger = members.NewService(h.ids, memprofilerepo.NewRepo(), h.clk, members.Options{})
	addr := ""
	if collectionConfigured {
		addr = base58.Encode(h.coll[:])
	}
	h.svc = NewService(h.ledger, signature.New(), collection.NewMatcher(h.chain, collection.Options{}), addr, Options{})
	return h
}

func (h *harness) sign(msg string) string {
	return base64.StdEncoding.EncodeToString(ed25519.Sign(h.priv, []byte(msg)))
}

func (h *harness) holdNFT(tokenAccount, mint string, verified bool) {
	h.chain.SetTokenAccounts(h.wallet, chain.TokenAccount{
		Pubkey:   tokenAccount,
		Mint:     mint,
		Amount:   "1",
		Decimals: 0,
	})
	h.chain.SetAccountData(mint, metaplex.Encode(metaplex.Record{
		Name:                 "Fleet #7",
		Symbol:               "FLT",
		URI:                  "https://example.com/7.json",
		SellerFeeBasisPoints: 500,
		Collection:           &metaplex.Collection{Key: h.coll, Verified: verified},
	}))
}

func TestVerifyMembership_EndToEnd(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	h.holdNFT("TokAcct1", "MintM", true)

	guard := challenge.NewGuard(memnoncestore.NewStore(h.clk), h.clk, challenge.DefaultDAOName, challenge.Options{})
	msg := fmt.Sprintf("Verify wallet ownership for Stalabard DAO: abc123:%d", h.clk.Now().Unix())
	if _, err := guard.Accept(context.Background(), msg, h.clk.Now()); err != nil {
		t.Fatalf("Accept err=%v", err)
	}

	res, err := h.svc.VerifyMembership(context.Background(), h.wallet, h.sign(msg), msg)
	if err != nil {
		t.Fatalf("VerifyMembership err=%v", err)
	}
	if !res.Success || !res.IsNewMember {
		t.Fatalf("res=%+v", res)
	}
	if res.CorrelationID == "" {
		t.Fatalf("missing correlation id")
	}
	if res.Member.NFTTokenAccount != "TokAcct1" {
		t.Fatalf("tokenAccount=%q", res.Member.NFTTokenAccount)
	}
	if res.Member.Status != domain.StatusVerified {
		t.Fatalf("status=%q", res.Member.Status)
	}
	if want := string(h.wallet)[:8]; res.Profile.DisplayName != want {
		t.Fatalf("displayName=%q want %q", res.Profile.DisplayName, want)
	}
	if got := res.Member.Metadata[domain.MetaNFTMint].Str(); got != "MintM" {
		t.Fatalf("nft_mint=%q", got)
	}
	if got := res.Member.Metadata[domain.MetaCorrelationID].Str(); got != res.CorrelationID {
		t.Fatalf("correlation=%q want %q", got, res.CorrelationID)
	}

	if _, err := guard.Accept(context.Background(), msg, h.clk.Now()); !errors.Is(err, challenge.ErrNonceReplayed) {
		t.Fatalf("replayed Accept err=%v, want %v", err, challenge.ErrNonceReplayed)
	}
}

func TestVerifyMembership_ConfigMissing(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	h.holdNFT("TokAcct1", "MintM", true)

	res, err := h.svc.VerifyMembership(context.Background(), h.wallet, h.sign("m"), "m")
	if err != nil {
		t.Fatalf("VerifyMembership err=%v", err)
	}
	if res.Success || res.ErrorCode != CodeConfigMissing {
		t.Fatalf("res=%+v", res)
	}
}

func TestVerifyMembership_InvalidSignature(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	h.holdNFT("TokAcct1", "MintM", true)

	good := h.sign("hello")
	flipped := []byte(good)
	if flipped[0] == 'A' {
		flipped[0] = 'B'
	} else {
		flipped[0] = 'A'
	}

	cases := []struct {
		name string
		sig  string
		msg  string
	}{
		{"empty", "", "hello"},
		{"not base64", "!!!", "hello"},
		{"short", base64.StdEncoding.EncodeToString([]byte("short")), "hello"},
		{"tampered signature", string(flipped), "hello"},
		{"different message", good, "hello!"},
	}
	for _, tc := range cases {
		res, err := h.svc.VerifyMembership(context.Background(), h.wallet, tc.sig, tc.msg)
		if err != nil {
			t.Fatalf("%s: err=%v", tc.name, err)
		}
		if res.Success || res.ErrorCode != CodeInvalidSignature {
			t.Fatalf("%s: res=%+v", tc.name, res)
		}
	}
	if _, err := h.ledger.FindByWallet(context.Background(), h.wallet); !members.IsCode(err, members.CodeNotFound) {
		t.Fatalf("identity created on failure: err=%v", err)
	}
}

func TestVerifyMembership_DefaultMessage(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	h.holdNFT("TokAcct1", "MintM", true)

	res, err := h.svc.VerifyMembership(context.Background(), h.wallet, h.sign(DefaultMessage(h.wallet)), "")
	if err != nil {
		t.Fatalf("VerifyMembership err=%v", err)
	}
	if !res.Success {
		t.Fatalf("res=%+v", res)
	}
}

func TestVerifyMembership_NFTNotFound(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	h.holdNFT("TokAcct1", "MintM", false)

	res, err := h.svc.VerifyMembership(context.Background(), h.wallet, h.sign("m"), "m")
	if err != nil {
		t.Fatalf("VerifyMembership err=%v", err)
	}
	if res.Success || res.ErrorCode != CodeNFTNotFound {
		t.Fatalf("res=%+v", res)
	}
	st, err := h.ledger.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats err=%v", err)
	}
	if st.Total != 0 {
		t.Fatalf("identities=%d, want 0", st.Total)
	}
}

func TestVerifyMembership_ReverifyKeepsSingleRecord(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	h.holdNFT("TokAcct1", "MintM", true)
	ctx := context.Background()

	first, err := h.svc.VerifyMembership(ctx, h.wallet, h.sign("m"), "m")
	if err != nil || !first.Success {
		t.Fatalf("first res=%+v err=%v", first, err)
	}
	h.clk.Advance(time.Second)
	second, err := h.svc.VerifyMembership(ctx, h.wallet, h.sign("m"), "m")
	if err != nil || !second.Success {
		t.Fatalf("second res=%+v err=%v", second, err)
	}

	if second.IsNewMember {
		t.Fatalf("second verification reported a new member")
	}
	if second.Member.ID != first.Member.ID {
		t.Fatalf("id changed: %s -> %s", first.Member.ID, second.Member.ID)
	}
	if !second.Member.VerifiedAt.Equal(*first.Member.VerifiedAt) {
		t.Fatalf("verifiedAt changed: %v -> %v", first.Member.VerifiedAt, second.Member.VerifiedAt)
	}
	if !second.Member.LastVerifiedAt.After(*first.Member.LastVerifiedAt) {
		t.Fatalf("lastVerifiedAt did not advance: %v -> %v", first.Member.LastVerifiedAt, second.Member.LastVerifiedAt)
	}
	if second.Profile.ID != first.Profile.ID {
		t.Fatalf("profile recreated")
	}

	all, err := h.ids.List(ctx, memberrepo.ListFilter{})
	if err != nil {
		t.Fatalf("List err=%v", err)
	}
	if len(all) != 1 {
		t.Fatalf("identities=%d, want 1", len(all))
	}
}

func TestVerifyMembership_Revoked(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	h.holdNFT("TokAcct1", "MintM", true)
	ctx := context.Background()

	if res, err := h.svc.VerifyMembership(ctx, h.wallet, h.sign("m"), "m"); err != nil || !res.Success {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	revoked, err := h.ledger.Revoke(ctx, h.wallet, "sold NFT")
	if err != nil {
		t.Fatalf("Revoke err=%v", err)
	}

	h.clk.Advance(time.Hour)
	res, err := h.svc.VerifyMembership(ctx, h.wallet, h.sign("m"), "m")
	if err != nil {
		t.Fatalf("VerifyMembership err=%v", err)
	}
	if res.Success || res.ErrorCode != CodeMembershipRevoked {
		t.Fatalf("res=%+v", res)
	}

	got, err := h.ledger.FindByWallet(ctx, h.wallet)
	if err != nil {
		t.Fatalf("FindByWallet err=%v", err)
	}
	if got.Status != domain.StatusRevoked || !got.LastVerifiedAt.Equal(*revoked.LastVerifiedAt) {
		t.Fatalf("revoked identity mutated: %+v", got)
	}
}

func TestQuickVerify_NoLedgerWrites(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	h.holdNFT("TokAcct1", "MintM", true)

	res := h.svc.QuickVerify(context.Background(), h.wallet, h.sign("m"), "m")
	if !res.Success || res.Mint != "MintM" {
		t.Fatalf("res=%+v", res)
	}
	if _, err := h.ledger.FindByWallet(context.Background(), h.wallet); !members.IsCode(err, members.CodeNotFound) {
		t.Fatalf("FindByWallet err=%v, want %s", err, members.CodeNotFound)
	}

	res = h.svc.QuickVerify(context.Background(), h.wallet, "", "m")
	if res.Success || res.ErrorCode != CodeInvalidSignature {
		t.Fatalf("res=%+v", res)
	}
}

func TestCheckNFTOwnership_Unconfigured(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	h.holdNFT("TokAcct1", "MintM", true)

	if _, ok := h.svc.CheckNFTOwnership(context.Background(), h.wallet); ok {
		t.Fatalf("expected no match without a configured collection")
	}
}

func TestStats_IncludesCollection(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	h.holdNFT("TokAcct1", "MintM", true)
	if res, err := h.svc.VerifyMembership(context.Background(), h.wallet, h.sign("m"), "m"); err != nil || !res.Success {
		t.Fatalf("res=%+v err=%v", res, err)
	}

	st, err := h.svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats err=%v", err)
	}
	if st.Collection != base58.Encode(h.coll[:]) {
		t.Fatalf("collection=%q", st.Collection)
	}
	if st.Total != 1 || st.Counts[domain.StatusVerified] != 1 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestVerifyMembership_ReusesContextCorrelationID(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	h.holdNFT("TokAcct1", "MintM", true)

	ctx := WithCorrelationID(context.Background(), "corr-from-header")
	res, err := h.svc.VerifyMembership(ctx, h.wallet, h.sign("m"), "m")
	if err != nil || !res.Success {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if res.CorrelationID != "corr-from-header" {
		t.Fatalf("correlationID=%q", res.CorrelationID)
	}
}

// failingProfiles fails the first profile insert and behaves normally afterwards.
type failingProfiles struct {
	*memprofilerepo.Repo
	failed bool
}

func (p *failingProfiles) Create(ctx context.Context, prof domain.MemberProfile) error {
	if !p.failed {
		p.failed = true
		return errors.New("profile store unavailable")
	}
	return p.Repo.Create(ctx, prof)
}

func TestVerifyMembership_ProfileFailureRepairedOnNextVerify(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	h.holdNFT("TokAcct1", "MintM", true)
	h.ledger = members.NewService(h.ids, &failingProfiles{Repo: memprofilerepo.NewRepo()}, h.clk, members.Options{})
	h.svc = NewService(h.ledger, signature.New(), collection.NewMatcher(h.chain, collection.Options{}), base58.Encode(h.coll[:]), Options{})

	msg := fmt.Sprintf("Verify wallet ownership for Stalabard DAO: abc123:%d", h.clk.Now().Unix())
	if _, err := h.svc.VerifyMembership(context.Background(), h.wallet, h.sign(msg), msg); err == nil {
		t.Fatalf("first VerifyMembership err=nil, want profile store error")
	}
	if _, err := h.ids.GetByWallet(context.Background(), h.wallet); err != nil {
		t.Fatalf("identity should be kept after profile failure: %v", err)
	}

	res, err := h.svc.VerifyMembership(context.Background(), h.wallet, h.sign(msg), msg)
	if err != nil {
		t.Fatalf("second VerifyMembership err=%v", err)
	}
	if !res.Success || res.IsNewMember || res.Profile == nil {
		t.Fatalf("res=%+v", res)
	}
	if want := string(h.wallet)[:8]; res.Profile.DisplayName != want {
		t.Fatalf("displayName=%q want %q", res.Profile.DisplayName, want)
	}
}
