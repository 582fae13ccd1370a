// Package credential mints and checks the RS256 bearer tokens handed to
// verified members.
package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Huaoe/ElurcFleet/internal/domain"
	"github.com/Huaoe/ElurcFleet/internal/platform/config"
	clockport "github.com/Huaoe/ElurcFleet/internal/ports/out/clock"
)

var ErrUnauthorized = errors.New("unauthorized")

type Token struct {
	Value     string
	ExpiresAt time.Time
}

type Issuer struct {
	cfg config.Credential
	key Keypair
	clk clockport.Clock
}

func NewIssuer(cfg config.Credential, key Keypair, clk clockport.Clock) *Issuer {
	return &Issuer{cfg: cfg, key: key, clk: clk}
}

// Mint returns a signed token whose subject is the member id.
func (i *Issuer) Mint(id domain.MemberID) (Token, error) {
	now := i.clk.Now()
	exp := now.Add(i.cfg.TTL)
	claims := jwt.RegisteredClaims{
		Issuer:    i.cfg.Issuer,
		Subject:   string(id),
		Audience:  jwt.ClaimStrings{i.cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = i.key.Kid
	s, err := tok.SignedString(i.key.Private)
	if err != nil {
		return Token{}, fmt.Errorf("sign credential: %w", err)
	}
	return Token{Value: s, ExpiresAt: exp}, nil
}

func (i *Issuer) KeySet() KeySet {
	return KeySet{i.key.Kid: &i.key.Private.PublicKey}
}

func (i *Issuer) JWKS() ([]byte, error) {
	return MarshalJWKS(i.KeySet())
}

type Verifier struct {
	cfg    config.Credential
	keys   KeySet
	clk    clockport.Clock
	parser *jwt.Parser
}

func NewVerifier(cfg config.Credential, keys KeySet, clk clockport.Clock) *Verifier {
	return &Verifier{
		cfg:  cfg,
		keys: keys,
		clk:  clk,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithAudience(cfg.Audience),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(cfg.ClockSkew),
			jwt.WithTimeFunc(clk.Now),
		),
	}
}

// Verify checks signature, issuer, audience and validity window, and returns the member id.
func (v *Verifier) Verify(token string) (domain.MemberID, error) {
	var claims jwt.RegisteredClaims
	_, err := v.parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		pub := v.keys[kid]
		if pub == nil {
			return nil, fmt.Errorf("unknown kid %q", kid)
		}
		return pub, nil
	})
	if err != nil || claims.Subject == "" {
		return "", ErrUnauthorized
	}
	return domain.MemberID(claims.Subject), nil
}
