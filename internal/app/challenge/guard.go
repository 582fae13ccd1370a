// Package challenge validates signed-challenge messages before any signature work
// is done: template, freshness, and single use of each nonce.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Huaoe/ElurcFleet/internal/platform/logging"
	"github.com/Huaoe/ElurcFleet/internal/platform/metrics"
	clockport "github.com/Huaoe/ElurcFleet/internal/ports/out/clock"
	"github.com/Huaoe/ElurcFleet/internal/ports/out/noncestore"
)

const (
	// FreshnessWindow is the maximum age of an acceptable challenge.
	FreshnessWindow = 300 * time.Second
	// NonceRetention is how long a consumed nonce stays in the seen-set.
	NonceRetention = 6 * time.Hour

	DefaultDAOName = "Stalabard DAO"
)

const (
	CodeMalformed = "MALFORMED_CHALLENGE"
	CodeExpired   = "CHALLENGE_EXPIRED"
	CodeReplayed  = "NONCE_REPLAYED"
)

var (
	ErrMalformedChallenge = errors.New("challenge message does not match the expected format")
	ErrChallengeExpired   = errors.New("challenge message has expired")
	ErrNonceReplayed      = errors.New("challenge nonce has already been used")
)

// Code returns the stable machine-readable code for a guard error, or "" for other errors.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrMalformedChallenge):
		return CodeMalformed
	case errors.Is(err, ErrChallengeExpired):
		return CodeExpired
	case errors.Is(err, ErrNonceReplayed):
		return CodeReplayed
	}
	return ""
}

// Accepted is a challenge that passed every check and whose nonce is now consumed.
type Accepted struct {
	Nonce     string
	Timestamp time.Time
}

// Issued is a fresh challenge for a wallet to sign.
type Issued struct {
	Nonce     string
	Timestamp time.Time
	Message   string
	ExpiresAt time.Time
}

type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

type Guard struct {
	daoName string
	pattern *regexp.Regexp
	store   noncestore.Store
	clk     clockport.Clock
	log     *zap.Logger
	metrics *metrics.Metrics

	newNonce func() string
}

// NewGuard builds a guard for the given DAO name; an empty name uses DefaultDAOName.
func NewGuard(store noncestore.Store, clk clockport.Clock, daoName string, opts Options) *Guard {
	daoName = strings.TrimSpace(daoName)
	if daoName == "" {
		daoName = DefaultDAOName
	}
	return &Guard{
		daoName: daoName,
		pattern: regexp.MustCompile(`^` + regexp.QuoteMeta(prefix(daoName)) + `([a-zA-Z0-9]+):(\d+)$`),
		store:   store,
		clk:     clk,
		log:     logging.OrNop(opts.Logger),
		metrics: opts.Metrics,
		newNonce: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")
		},
	}
}

func prefix(daoName string) string {
	return "Verify wallet ownership for " + daoName + ": "
}

// Message renders the challenge template.
func (g *Guard) Message(nonce string, ts time.Time) string {
	return fmt.Sprintf("%s%s:%d", prefix(g.daoName), nonce, ts.Unix())
}

// Issue creates a challenge stamped with the current time. Issuing does not
// consume the nonce; Accept does.
func (g *Guard) Issue() Issued {
	now := g.clk.Now().Truncate(time.Second)
	nonce := g.newNonce()
	return Issued{
		Nonce:     nonce,
		Timestamp: now,
		Message:   g.Message(nonce, now),
		ExpiresAt: now.Add(FreshnessWindow),
	}
}

// Accept parses message, rejects it when older than FreshnessWindow, and consumes
// its nonce. Timestamps in the future are accepted. Nonce store failures are
// returned wrapped and must be treated as a rejection.
func (g *Guard) Accept(ctx context.Context, message string, now time.Time) (Accepted, error) {
	m := g.pattern.FindStringSubmatch(message)
	if m == nil {
		g.metrics.Challenge("malformed")
		return Accepted{}, ErrMalformedChallenge
	}
	nonce := m[1]
	ts, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		g.metrics.Challenge("malformed")
		return Accepted{}, ErrMalformedChallenge
	}

	if age := now.Unix() - ts; age > int64(FreshnessWindow/time.Second) {
		g.metrics.Challenge("expired")
		g.log.Debug("challenge expired", zap.Int64("age_seconds", age))
		return Accepted{}, ErrChallengeExpired
	}

	fresh, err := g.store.MarkIfAbsent(ctx, nonce, NonceRetention)
	if err != nil {
		g.metrics.Challenge("store_error")
		g.log.Error("nonce store unavailable", zap.Error(err))
		return Accepted{}, fmt.Errorf("challenge: nonce store: %w", err)
	}
	if !fresh {
		g.metrics.Challenge("replayed")
		g.log.Warn("challenge nonce replayed", zap.String("nonce", nonce))
		return Accepted{}, ErrNonceReplayed
	}

	g.metrics.Challenge("accepted")
	return Accepted{Nonce: nonce, Timestamp: time.Unix(ts, 0).UTC()}, nil
}
