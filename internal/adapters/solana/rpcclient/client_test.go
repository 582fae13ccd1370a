package rpcclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/Huaoe/ElurcFleet/internal/ports/out/chain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)
}

type capturedRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// rpcServer answers every call with result, recording the decoded request.
func rpcServer(t *testing.T, status int, body string, seen chan<- capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req capturedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if seen != nil {
			seen <- req
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, url string, timeout time.Duration) *Client {
	t.Helper()
	c := New(url, Options{Timeout: timeout})
	t.Cleanup(c.Close)
	return c
}

const tokenAccountsBody = `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":[
 {"pubkey":"Acct1","account":{"data":{"program":"spl-token","parsed":{"info":{"mint":"Mint1","owner":"W","tokenAmount":{"amount":"1","decimals":0,"uiAmount":1}}}}}},
 {"pubkey":"Acct2","account":{"data":{"program":"spl-token","parsed":{"info":{"mint":"Mint2","tokenAmount":{"amount":"2500","decimals":6}}}}}},
 {"pubkey":"Acct3","account":{"data":["AAAA","base64"]}},
 {"pubkey":"Acct4","account":{"data":{"parsed":{"info":{"tokenAmount":{"amount":"1","decimals":0}}}}}},
 {"pubkey":"Acct5","account":{"data":{"parsed":{"info":{"mint":"Mint5"}}}}}
]}}`

func TestListTokenAccounts_ParsesAndSkipsIncompleteEntries(t *testing.T) {
	t.Parallel()

	seen := make(chan capturedRequest, 1)
	srv := rpcServer(t, http.StatusOK, tokenAccountsBody, seen)
	c := newClient(t, srv.URL, time.Second)

	got := c.ListTokenAccounts(context.Background(), "OwnerWallet")
	want := []chain.TokenAccount{
		{Pubkey: "Acct1", Mint: "Mint1", Amount: "1", Decimals: 0},
		{Pubkey: "Acct2", Mint: "Mint2", Amount: "2500", Decimals: 6},
	}
	if len(got) != len(want) {
		t.Fatalf("ListTokenAccounts()=%+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d=%+v, want %+v", i, got[i], want[i])
		}
	}

	req := <-seen
	if req.Method != "getTokenAccountsByOwner" || len(req.Params) != 3 {
		t.Fatalf("unexpected request: %+v", req)
	}
	var owner string
	var filter, enc map[string]string
	_ = json.Unmarshal(req.Params[0], &owner)
	_ = json.Unmarshal(req.Params[1], &filter)
	_ = json.Unmarshal(req.Params[2], &enc)
	if owner != "OwnerWallet" || filter["programId"] != chain.TokenProgramID || enc["encoding"] != "jsonParsed" {
		t.Fatalf("unexpected params: owner=%q filter=%v enc=%v", owner, filter, enc)
	}
}

func TestListTokenAccounts_FailuresYieldEmpty(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		status int
		body   string
	}{
		"http 500":     {http.StatusInternalServerError, `oops`},
		"rpc error":    {http.StatusOK, `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"Invalid param"}}`},
		"garbage":      {http.StatusOK, `not json`},
		"wrong shape":  {http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":{"value":"nope"}}`},
		"rate limited": {http.StatusTooManyRequests, `{}`},
	}
	for name, tc := range cases {
		srv := rpcServer(t, tc.status, tc.body, nil)
		got := newClient(t, srv.URL, time.Second).ListTokenAccounts(context.Background(), "W")
		if got == nil || len(got) != 0 {
			t.Fatalf("%s: ListTokenAccounts()=%v, want empty non-nil", name, got)
		}
	}
}

func TestListTokenAccounts_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if got := newClient(t, url, time.Second).ListTokenAccounts(context.Background(), "W"); len(got) != 0 {
		t.Fatalf("ListTokenAccounts()=%v, want empty", got)
	}
}

func TestGetAccountInfo_TimeoutYieldsAbsent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	start := time.Now()
	_, ok := newClient(t, srv.URL, 50*time.Millisecond).GetAccountInfo(context.Background(), "Mint1")
	if ok {
		t.Fatalf("GetAccountInfo() ok=true, want false on timeout")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("GetAccountInfo() took %v, want bounded by timeout", elapsed)
	}
}

func TestGetAccountInfo_DecodesBase64(t *testing.T) {
	t.Parallel()

	payload := []byte{0, 1, 2, 3, 250}
	body := `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":{"data":["` +
		base64.StdEncoding.EncodeToString(payload) + `","base64"],"owner":"metaqbxx","lamports":1}}}`
	seen := make(chan capturedRequest, 1)
	srv := rpcServer(t, http.StatusOK, body, seen)

	got, ok := newClient(t, srv.URL, time.Second).GetAccountInfo(context.Background(), "Mint1")
	if !ok || string(got) != string(payload) {
		t.Fatalf("GetAccountInfo()=%v ok=%v", got, ok)
	}
	req := <-seen
	var enc map[string]string
	_ = json.Unmarshal(req.Params[1], &enc)
	if req.Method != "getAccountInfo" || enc["encoding"] != "base64" {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestGetAccountInfo_AbsentCases(t *testing.T) {
	t.Parallel()

	bodies := []string{
		`{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":null}}`,
		`{"jsonrpc":"2.0","id":1,"result":{"value":{"data":["***","base64"]}}}`,
		`{"jsonrpc":"2.0","id":1,"result":{"value":{"data":[]}}}`,
		`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"boom"}}`,
	}
	for _, b := range bodies {
		srv := rpcServer(t, http.StatusOK, b, nil)
		if _, ok := newClient(t, srv.URL, time.Second).GetAccountInfo(context.Background(), "X"); ok {
			t.Fatalf("GetAccountInfo(%s) ok=true, want false", b)
		}
	}
}
