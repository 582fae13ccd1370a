package verification

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Huaoe/ElurcFleet/internal/app/collection"
	"github.com/Huaoe/ElurcFleet/internal/app/members"
	"github.com/Huaoe/ElurcFleet/internal/domain"
	"github.com/Huaoe/ElurcFleet/internal/platform/logging"
	"github.com/Huaoe/ElurcFleet/internal/platform/metrics"
	"github.com/Huaoe/ElurcFleet/internal/platform/signature"
)

// Outcome codes carried by Result.ErrorCode.
const (
	CodeConfigMissing     = "CONFIG_MISSING"
	CodeInvalidSignature  = "INVALID_SIGNATURE"
	CodeNFTNotFound       = "NFT_NOT_FOUND"
	CodeMembershipRevoked = members.CodeMembershipRevoked
	CodeDuplicateWallet   = members.CodeDuplicateWallet
)

// SignatureVerifier checks a base64 ed25519 signature over message by wallet.
type SignatureVerifier interface {
	VerifyWallet(wallet, message, signatureB64 string) error
}

// NFTFinder locates a verified collection NFT held by owner.
type NFTFinder interface {
	FindCollectionNFT(ctx context.Context, owner domain.WalletAddress, collectionAddr string) (collection.Match, bool)
}

type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Result is the outcome of a verification attempt. Domain failures are reported
// here with Success=false; errors returned alongside a Result are infrastructure faults.
type Result struct {
	Success       bool
	ErrorCode     string
	Message       string
	CorrelationID string

	Member      *domain.MemberIdentity
	Profile     *domain.MemberProfile
	IsNewMember bool
	Mint        string
}

type Stats struct {
	members.Stats
	Collection string
}

type Service struct {
	ledger     *members.Service
	sigs       SignatureVerifier
	nfts       NFTFinder
	collection string
	log        *zap.Logger
	metrics    *metrics.Metrics

	newCorrelationID func() string
}

func NewService(ledger *members.Service, sigs SignatureVerifier, nfts NFTFinder, collectionAddr string, opts Options) *Service {
	return &Service{
		ledger:           ledger,
		sigs:             sigs,
		nfts:             nfts,
		collection:       collectionAddr,
		log:              logging.OrNop(opts.Logger),
		metrics:          opts.Metrics,
		newCorrelationID: uuid.NewString,
	}
}

// DefaultMessage is signed when the caller supplies no challenge message.
func DefaultMessage(wallet domain.WalletAddress) string {
	return "Verify DAO membership for " + string(wallet)
}

// VerifyMembership proves wallet control and collection NFT ownership, then
// creates or refreshes the wallet's identity. Failure outcomes never mutate the ledger.
func (s *Service) VerifyMembership(ctx context.Context, wallet domain.WalletAddress, sig, message string) (Result, error) {
	corr := s.correlationID(ctx)
	log := s.log.With(zap.String("correlation_id", corr), zap.String("wallet", string(wallet)))
	log.Info("membership verification started",
		zap.Bool("has_signature", sig != ""),
		zap.Bool("has_message", message != ""),
	)

	if s.collection == "" {
		log.Error("dao nft collection not configured")
		return s.fail(corr, CodeConfigMissing, "DAO NFT collection not configured"), nil
	}

	if !s.signatureValid(log, wallet, sig, message) {
		return s.fail(corr, CodeInvalidSignature, "Invalid signature"), nil
	}

	match, ok := s.nfts.FindCollectionNFT(ctx, wallet, s.collection)
	if !ok {
		log.Warn("nft ownership not confirmed", zap.String("collection", s.collection))
		return s.fail(corr, CodeNFTNotFound, "No DAO NFT found for this wallet"), nil
	}
	log.Info("nft ownership verified", zap.String("nft_mint", match.Mint))

	existing, err := s.ledger.FindByWallet(ctx, wallet)
	switch {
	case err == nil:
		if existing.IsRevoked() {
			log.Warn("verification attempted for revoked member", zap.String("member_id", string(existing.ID)))
			r := s.fail(corr, CodeMembershipRevoked, "Membership has been revoked")
			r.Member = &existing
			return r, nil
		}
		m, err := s.ledger.Reverify(ctx, existing.ID, match.TokenAccount, corr)
		if err != nil {
			return s.ledgerFailure(log, corr, err)
		}
		return s.succeed(ctx, log, corr, m, match, false)

	case members.IsCode(err, members.CodeNotFound):
		m, err := s.ledger.CreateVerified(ctx, members.CreateVerifiedInput{
			Wallet:        wallet,
			TokenAccount:  match.TokenAccount,
			Metadata:      nftMetadata(match),
			CorrelationID: corr,
		})
		if err != nil {
			return s.ledgerFailure(log, corr, err)
		}
		return s.succeed(ctx, log, corr, m, match, true)

	default:
		log.Error("member lookup failed", zap.Error(err))
		s.metrics.Verification("error")
		return Result{CorrelationID: corr}, err
	}
}

// QuickVerify runs the signature and NFT checks without touching the ledger.
func (s *Service) QuickVerify(ctx context.Context, wallet domain.WalletAddress, sig, message string) Result {
	corr := s.correlationID(ctx)
	log := s.log.With(zap.String("correlation_id", corr), zap.String("wallet", string(wallet)))
	log.Info("quick verification started")

	if !s.signatureValid(log, wallet, sig, message) {
		return Result{CorrelationID: corr, ErrorCode: CodeInvalidSignature, Message: "Invalid signature"}
	}
	match, ok := s.CheckNFTOwnership(ctx, wallet)
	if !ok {
		return Result{CorrelationID: corr, ErrorCode: CodeNFTNotFound, Message: "No DAO NFT found"}
	}
	return Result{Success: true, CorrelationID: corr, Mint: match.Mint}
}

// CheckNFTOwnership reports the wallet's collection NFT. It reports false when
// no collection is configured.
func (s *Service) CheckNFTOwnership(ctx context.Context, wallet domain.WalletAddress) (collection.Match, bool) {
	if s.collection == "" {
		s.log.Error("dao nft collection not configured", zap.String("wallet", string(wallet)))
		return collection.Match{}, false
	}
	return s.nfts.FindCollectionNFT(ctx, wallet, s.collection)
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	st, err := s.ledger.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Stats: st, Collection: s.collection}, nil
}

func (s *Service) signatureValid(log *zap.Logger, wallet domain.WalletAddress, sig, message string) bool {
	if message == "" {
		message = DefaultMessage(wallet)
	}
	err := s.sigs.VerifyWallet(string(wallet), message, sig)
	if err == nil {
		log.Info("signature validated")
		return true
	}
	switch {
	case errors.Is(err, signature.ErrVerifierUnavailable):
		log.Error("no ed25519 verifier available")
	default:
		log.Warn("signature validation failed", zap.Error(err))
	}
	return false
}

func (s *Service) succeed(ctx context.Context, log *zap.Logger, corr string, m domain.MemberIdentity, match collection.Match, isNew bool) (Result, error) {
	p, err := s.ledger.EnsureProfile(ctx, m)
	if err != nil {
		log.Error("profile provisioning failed", zap.String("member_id", string(m.ID)), zap.Error(err))
		s.metrics.Verification("error")
		return Result{CorrelationID: corr}, err
	}
	outcome := "reverified"
	if isNew {
		outcome = "created"
	}
	s.metrics.Verification(outcome)
	log.Info("member verified",
		zap.String("member_id", string(m.ID)),
		zap.Bool("is_new_member", isNew),
	)
	return Result{
		Success:       true,
		CorrelationID: corr,
		Member:        &m,
		Profile:       &p,
		IsNewMember:   isNew,
		Mint:          match.Mint,
	}, nil
}

func (s *Service) ledgerFailure(log *zap.Logger, corr string, err error) (Result, error) {
	var ae *members.Error
	if errors.As(err, &ae) && (ae.Code == members.CodeDuplicateWallet || ae.Code == members.CodeMembershipRevoked) {
		log.Warn("ledger rejected verification", zap.String("code", ae.Code))
		return s.fail(corr, ae.Code, ae.Message), nil
	}
	log.Error("ledger write failed", zap.Error(err))
	s.metrics.Verification("error")
	return Result{CorrelationID: corr}, err
}

func (s *Service) fail(corr, code, msg string) Result {
	s.metrics.Verification(code)
	return Result{CorrelationID: corr, ErrorCode: code, Message: msg}
}

func nftMetadata(m collection.Match) domain.Metadata {
	md := domain.Metadata{
		domain.MetaNFTMint:             domain.StringValue(m.Mint),
		domain.MetaNFTName:             domain.StringValue(m.Metadata.Name),
		domain.MetaNFTSymbol:           domain.StringValue(m.Metadata.Symbol),
		domain.MetaNFTURI:              domain.StringValue(m.Metadata.URI),
		domain.MetaNFTSellerFeeBasisPt: domain.StringValue(strconv.Itoa(int(m.Metadata.SellerFeeBasisPoints))),
	}
	if c := m.Metadata.Collection; c != nil {
		md[domain.MetaNFTCollection] = domain.StringValue(c.Address())
	}
	return md
}
