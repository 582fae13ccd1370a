package itest

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Huaoe/ElurcFleet/internal/adapters/httpapi"
	memchain "github.com/Huaoe/ElurcFleet/internal/adapters/memory/chain"
	memclock "github.com/Huaoe/ElurcFleet/internal/adapters/memory/clock"
	memevents "github.com/Huaoe/ElurcFleet/internal/adapters/memory/events"
	memmemberrepo "github.com/Huaoe/ElurcFleet/internal/adapters/memory/memberrepo"
	memnoncestore "github.com/Huaoe/ElurcFleet/internal/adapters/memory/noncestore"
	memprofilerepo "github.com/Huaoe/ElurcFleet/internal/adapters/memory/profilerepo"
	pgmemberrepo "github.com/Huaoe/ElurcFleet/internal/adapters/postgres/memberrepo"
	pgnoncestore "github.com/Huaoe/ElurcFleet/internal/adapters/postgres/noncestore"
	pgprofilerepo "github.com/Huaoe/ElurcFleet/internal/adapters/postgres/profilerepo"
	postgres_testutil "github.com/Huaoe/ElurcFleet/internal/adapters/postgres/testutil"
	"github.com/Huaoe/ElurcFleet/internal/adapters/sqlite"
	sqlitememberrepo "github.com/Huaoe/ElurcFleet/internal/adapters/sqlite/memberrepo"
	sqliteprofilerepo "github.com/Huaoe/ElurcFleet/internal/adapters/sqlite/profilerepo"
	"github.com/Huaoe/ElurcFleet/internal/app/challenge"
	"github.com/Huaoe/ElurcFleet/internal/app/collection"
	"github.com/Huaoe/ElurcFleet/internal/app/members"
	"github.com/Huaoe/ElurcFleet/internal/app/verification"
	"github.com/Huaoe/ElurcFleet/internal/domain"
	"github.com/Huaoe/ElurcFleet/internal/platform/auth/credential"
	"github.com/Huaoe/ElurcFleet/internal/platform/base58"
	"github.com/Huaoe/ElurcFleet/internal/platform/config"
	"github.com/Huaoe/ElurcFleet/internal/platform/metaplex"
	"github.com/Huaoe/ElurcFleet/internal/platform/signature"
	"github.com/Huaoe/ElurcFleet/internal/ports/out/chain"
	memberrepoport "github.com/Huaoe/ElurcFleet/internal/ports/out/memberrepo"
	noncestoreport "github.com/Huaoe/ElurcFleet/internal/ports/out/noncestore"
	profilerepoport "github.com/Huaoe/ElurcFleet/internal/ports/out/profilerepo"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendPostgres backend = "postgres"
	backendSQLite   backend = "sqlite"
)

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "postgres":
		return []backend{backendPostgres}
	case "sqlite":
		return []backend{backendSQLite}
	case "all":
		return []backend{backendMemory, backendSQLite, backendPostgres}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|sqlite|postgres|all)")
		return nil
	}
}

// wallet is a test keypair whose public key doubles as the wallet address.
type wallet struct {
	priv ed25519.PrivateKey
	addr domain.WalletAddress
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return wallet{priv: priv, addr: domain.WalletAddress(base58.Encode(pub))}
}

func (w wallet) sign(msg string) string {
	return base64.StdEncoding.EncodeToString(ed25519.Sign(w.priv, []byte(msg)))
}

type testServer struct {
	baseURL string
	client  *http.Client

	clk    *memclock.ManualClock
	chain  *memchain.Ledger
	events *memevents.Recorder
	ledger *members.Service
	coll   [32]byte
}

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	clk := memclock.NewManualClock(time.Now().UTC().Truncate(time.Second))

	var (
		identities memberrepoport.Repository
		profiles   profilerepoport.Repository
		nonces     noncestoreport.Store
	)

	switch b {
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t)
		identities = pgmemberrepo.NewRepo(pool)
		profiles = pgprofilerepo.NewRepo(pool)
		nonces = pgnoncestore.NewStore(pool)
	case backendSQLite:
		db, err := sqlite.Open(":memory:")
		if err != nil {
			t.Fatalf("sqlite.Open: %v", err)
		}
		t.Cleanup(func() { _ = sqlite.Close(db) })
		identities = sqlitememberrepo.NewRepo(db)
		profiles = sqliteprofilerepo.NewRepo(db)
		nonces = memnoncestore.NewStore(clk)
	case backendMemory:
		identities = memmemberrepo.NewRepo()
		profiles = memprofilerepo.NewRepo()
		nonces = memnoncestore.NewStore(clk)
	default:
		t.Fatalf("unknown backend: %s", b)
	}

	ts := &testServer{
		clk:    clk,
		chain:  memchain.NewLedger(),
		events: memevents.NewRecorder(),
	}
	if _, err := rand.Read(ts.coll[:]); err != nil {
		t.Fatalf("rand: %v", err)
	}

	cred := config.Credential{Issuer: "itest-iss", Audience: "itest-aud", TTL: time.Hour, KeyID: "itest-1"}
	kp, err := credential.GenerateKeypair(cred.KeyID)
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	issuer := credential.NewIssuer(cred, kp, clk)

	ts.ledger = members.NewService(identities, profiles, clk, members.Options{Events: ts.events})
	guard := challenge.NewGuard(nonces, clk, challenge.DefaultDAOName, challenge.Options{})
	verify := verification.NewService(ts.ledger, signature.New(), collection.NewMatcher(ts.chain, collection.Options{Concurrency: 4}), base58.Encode(ts.coll[:]), verification.Options{})

	api := httpapi.NewServer(guard, verify, ts.ledger, issuer, clk, nil)
	handler := httpapi.NewRouter(api, httpapi.RouterOptions{
		Tokens: credential.NewVerifier(cred, issuer.KeySet(), clk),
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	ts.baseURL = srv.URL
	ts.client = srv.Client()
	return ts
}

// giveNFT makes w hold one collection NFT (verified or not) behind tokenAccount.
func (s *testServer) giveNFT(w wallet, tokenAccount, mint string, verified bool) {
	s.chain.SetTokenAccounts(w.addr, chain.TokenAccount{Pubkey: tokenAccount, Mint: mint, Amount: "1"})
	s.chain.SetAccountData(mint, metaplex.Encode(metaplex.Record{
		Name:       "Fleet",
		Symbol:     "FLT",
		URI:        "https://example.com/fleet.json",
		Collection: &metaplex.Collection{Key: s.coll, Verified: verified},
	}))
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) doJSON(t *testing.T, method string, path string, token string, body any) (int, []byte, http.Header) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

// verify fetches a challenge, signs it with w and posts it.
func (s *testServer) verify(t *testing.T, w wallet) (int, []byte) {
	t.Helper()
	status, body, _ := s.doJSON(t, http.MethodGet, "/membership/challenge", "", nil)
	if status != http.StatusOK {
		t.Fatalf("challenge status=%d body=%s", status, string(body))
	}
	c := mustUnmarshal[httpapi.ChallengeResponse](t, body)
	status, body, _ = s.doJSON(t, http.MethodPost, "/membership/verify", "", httpapi.VerifyRequest{
		WalletAddress: string(w.addr),
		Signature:     w.sign(c.Message),
		Message:       c.Message,
	})
	return status, body
}

type errorResponse struct {
	Error struct {
		Code          string `json:"code"`
		Message       string `json:"message"`
		CorrelationID string `json:"correlationId"`
	} `json:"error"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	if status != wantStatus {
		t.Fatalf("status=%d want=%d body=%s", status, wantStatus, string(body))
	}
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
}

func requireHeaderPresent(t *testing.T, h http.Header, key string) {
	t.Helper()
	if strings.TrimSpace(h.Get(key)) == "" {
		t.Fatalf("expected header %q to be present", key)
	}
}
