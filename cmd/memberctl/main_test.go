package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	memclock "github.com/Huaoe/ElurcFleet/internal/adapters/memory/clock"
	memmemberrepo "github.com/Huaoe/ElurcFleet/internal/adapters/memory/memberrepo"
	memprofilerepo "github.com/Huaoe/ElurcFleet/internal/adapters/memory/profilerepo"
	"github.com/Huaoe/ElurcFleet/internal/app/members"
	"github.com/Huaoe/ElurcFleet/internal/domain"
)

const testWallet = domain.WalletAddress("7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU")

func newTestLedger(t *testing.T) (*members.Service, openLedgerFunc) {
	t.Helper()
	clk := memclock.NewManualClock(time.Unix(1_700_000_000, 0).UTC())
	ledger := members.NewService(memmemberrepo.NewRepo(), memprofilerepo.NewRepo(), clk, members.Options{})
	m, err := ledger.CreateVerified(context.Background(), members.CreateVerifiedInput{Wallet: testWallet, TokenAccount: "Acct1"})
	if err != nil {
		t.Fatalf("CreateVerified err=%v", err)
	}
	if _, err := ledger.EnsureProfile(context.Background(), m); err != nil {
		t.Fatalf("EnsureProfile err=%v", err)
	}
	return ledger, func(context.Context) (*members.Service, func(), error) {
		return ledger, func() {}, nil
	}
}

func execute(t *testing.T, open openLedgerFunc, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(open)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSuspendThenReactivate(t *testing.T) {
	ledger, open := newTestLedger(t)

	out, err := execute(t, open, "suspend", string(testWallet), "--reason", "spam")
	if err != nil {
		t.Fatalf("suspend err=%v", err)
	}
	var v identityView
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode err=%v out=%s", err, out)
	}
	if v.Status != string(domain.StatusSuspended) {
		t.Fatalf("status=%q", v.Status)
	}

	if _, err := execute(t, open, "reactivate", string(testWallet)); err != nil {
		t.Fatalf("reactivate err=%v", err)
	}
	m, err := ledger.FindByWallet(context.Background(), testWallet)
	if err != nil {
		t.Fatalf("FindByWallet err=%v", err)
	}
	if !m.IsVerified() {
		t.Fatalf("status=%q", m.Status)
	}
}

func TestRevokeIsTerminal(t *testing.T) {
	_, open := newTestLedger(t)

	if _, err := execute(t, open, "revoke", string(testWallet)); err != nil {
		t.Fatalf("revoke err=%v", err)
	}
	_, err := execute(t, open, "reactivate", string(testWallet))
	if !members.IsCode(err, members.CodeNotSuspended) {
		t.Fatalf("reactivate err=%v, want NOT_SUSPENDED", err)
	}
}

func TestShowIncludesProfile(t *testing.T) {
	_, open := newTestLedger(t)

	out, err := execute(t, open, "show", string(testWallet))
	if err != nil {
		t.Fatalf("show err=%v", err)
	}
	var v struct {
		Identity identityView `json:"identity"`
		Profile  *profileView `json:"profile"`
	}
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode err=%v out=%s", err, out)
	}
	if v.Identity.Wallet != string(testWallet) || v.Profile == nil || v.Profile.DisplayName != "7xKXtg2C" {
		t.Fatalf("out=%+v", v)
	}
}

func TestDeleteThenShowNotFound(t *testing.T) {
	_, open := newTestLedger(t)

	if _, err := execute(t, open, "delete", string(testWallet)); err != nil {
		t.Fatalf("delete err=%v", err)
	}
	_, err := execute(t, open, "show", string(testWallet))
	if !members.IsCode(err, members.CodeNotFound) {
		t.Fatalf("show err=%v, want NOT_FOUND", err)
	}
}

func TestStats(t *testing.T) {
	_, open := newTestLedger(t)

	out, err := execute(t, open, "stats")
	if err != nil {
		t.Fatalf("stats err=%v", err)
	}
	var v struct {
		Total    int            `json:"total"`
		ByStatus map[string]int `json:"byStatus"`
	}
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode err=%v", err)
	}
	if v.Total != 1 || v.ByStatus["verified"] != 1 {
		t.Fatalf("stats=%+v", v)
	}
}

func TestArgsValidated(t *testing.T) {
	_, open := newTestLedger(t)
	if _, err := execute(t, open, "suspend"); err == nil {
		t.Fatalf("expected error without wallet argument")
	}
}
