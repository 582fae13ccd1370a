// Package rpcclient is a minimal JSON-RPC 2.0 client for the two Solana reads the
// membership engine needs. Every failure degrades to an empty or absent result.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Huaoe/ElurcFleet/internal/domain"
	"github.com/Huaoe/ElurcFleet/internal/platform/logging"
	"github.com/Huaoe/ElurcFleet/internal/platform/metrics"
	"github.com/Huaoe/ElurcFleet/internal/ports/out/chain"
)

const (
	DefaultURL     = "https://api.mainnet-beta.solana.com"
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 8 << 20

	methodTokenAccounts = "getTokenAccountsByOwner"
	methodAccountInfo   = "getAccountInfo"
)

type Options struct {
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Client implements chain.Client over HTTP.
type Client struct {
	url     string
	timeout time.Duration
	http    *http.Client
	log     *zap.Logger
	metrics *metrics.Metrics

	nextID atomic.Uint64
}

var _ chain.Client = (*Client)(nil)

func New(url string, opts Options) *Client {
	if url == "" {
		url = DefaultURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	return &Client{
		url:     url,
		timeout: opts.Timeout,
		http:    opts.HTTPClient,
		log:     logging.OrNop(opts.Logger),
		metrics: opts.Metrics,
	}
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

var errRPC = errors.New("rpc error")

func (c *Client) call(ctx context.Context, method string, params ...any) (result json.RawMessage, err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		c.metrics.RPC(method, outcome, time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("rpc http status=%d", resp.StatusCode)
	}

	var out rpcResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode rpc response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("%w: code=%d message=%s", errRPC, out.Error.Code, out.Error.Message)
	}
	return out.Result, nil
}

type tokenAccountsResult struct {
	Value []struct {
		Pubkey  string `json:"pubkey"`
		Account struct {
			Data json.RawMessage `json:"data"`
		} `json:"account"`
	} `json:"value"`
}

type parsedTokenData struct {
	Parsed *struct {
		Info *struct {
			Mint        string `json:"mint"`
			TokenAmount *struct {
				Amount   string `json:"amount"`
				Decimals int    `json:"decimals"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

// ListTokenAccounts returns the SPL token accounts owned by owner, in RPC order.
// Entries without parsed mint and amount data are dropped.
func (c *Client) ListTokenAccounts(ctx context.Context, owner domain.WalletAddress) []chain.TokenAccount {
	raw, err := c.call(ctx, methodTokenAccounts,
		string(owner),
		map[string]string{"programId": chain.TokenProgramID},
		map[string]string{"encoding": "jsonParsed"},
	)
	if err != nil {
		c.log.Warn("token account enumeration failed", zap.String("wallet", string(owner)), zap.Error(err))
		return []chain.TokenAccount{}
	}

	var res tokenAccountsResult
	if err := json.Unmarshal(raw, &res); err != nil {
		c.log.Warn("token account result malformed", zap.String("wallet", string(owner)), zap.Error(err))
		return []chain.TokenAccount{}
	}

	out := make([]chain.TokenAccount, 0, len(res.Value))
	for _, v := range res.Value {
		var data parsedTokenData
		if err := json.Unmarshal(v.Account.Data, &data); err != nil {
			continue
		}
		if data.Parsed == nil || data.Parsed.Info == nil || data.Parsed.Info.Mint == "" || data.Parsed.Info.TokenAmount == nil {
			continue
		}
		out = append(out, chain.TokenAccount{
			Pubkey:   v.Pubkey,
			Mint:     data.Parsed.Info.Mint,
			Amount:   data.Parsed.Info.TokenAmount.Amount,
			Decimals: data.Parsed.Info.TokenAmount.Decimals,
		})
	}
	return out
}

type accountInfoResult struct {
	Value *struct {
		Data []string `json:"data"`
	} `json:"value"`
}

// GetAccountInfo returns the raw account bytes, or false when the account is
// absent or could not be fetched.
func (c *Client) GetAccountInfo(ctx context.Context, account string) ([]byte, bool) {
	raw, err := c.call(ctx, methodAccountInfo, account, map[string]string{"encoding": "base64"})
	if err != nil {
		c.log.Warn("account info fetch failed", zap.String("account", account), zap.Error(err))
		return nil, false
	}
	var res accountInfoResult
	if err := json.Unmarshal(raw, &res); err != nil {
		c.log.Warn("account info result malformed", zap.String("account", account), zap.Error(err))
		return nil, false
	}
	if res.Value == nil || len(res.Value.Data) == 0 {
		return nil, false
	}
	b, err := base64.StdEncoding.DecodeString(res.Value.Data[0])
	if err != nil || len(b) == 0 {
		return nil, false
	}
	return b, true
}
