package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	"github.com/Huaoe/ElurcFleet/internal/app/challenge"
	"github.com/Huaoe/ElurcFleet/internal/app/members"
	"github.com/Huaoe/ElurcFleet/internal/app/verification"
	"github.com/Huaoe/ElurcFleet/internal/domain"
	"github.com/Huaoe/ElurcFleet/internal/platform/auth/credential"
	"github.com/Huaoe/ElurcFleet/internal/platform/logging"
	clockport "github.com/Huaoe/ElurcFleet/internal/ports/out/clock"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	maxBodyBytes     = 64 << 10
)

// Server holds the HTTP handlers for the membership API.
type Server struct {
	Guard   *challenge.Guard
	Verify  *verification.Service
	Members *members.Service
	Issuer  *credential.Issuer
	Clock   clockport.Clock

	log *zap.Logger
}

func NewServer(guard *challenge.Guard, verify *verification.Service, ledger *members.Service, issuer *credential.Issuer, clk clockport.Clock, logger *zap.Logger) *Server {
	return &Server{
		Guard:   guard,
		Verify:  verify,
		Members: ledger,
		Issuer:  issuer,
		Clock:   clk,
		log:     logging.OrNop(logger),
	}
}

func (s *Server) GetChallenge(w http.ResponseWriter, r *http.Request) {
	c := s.Guard.Issue()
	writeJSON(w, http.StatusOK, ChallengeResponse{
		Nonce:     c.Nonce,
		Timestamp: c.Timestamp.Unix(),
		Message:   c.Message,
		ExpiresAt: c.ExpiresAt,
	})
}

// PostVerify consumes a challenge, runs the verification pipeline and mints a
// credential for the resulting member.
func (s *Server) PostVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.WalletAddress = strings.TrimSpace(req.WalletAddress)
	req.Signature = strings.TrimSpace(req.Signature)
	missing := map[string]any{}
	if req.WalletAddress == "" {
		missing["walletAddress"] = "required"
	}
	if req.Signature == "" {
		missing["signature"] = "required"
	}
	if req.Message == "" {
		missing["message"] = "required"
	}
	if len(missing) > 0 {
		writeError(w, r, http.StatusBadRequest, CodeValidation, "missing required fields", missing)
		return
	}

	if _, err := s.Guard.Accept(r.Context(), req.Message, s.Clock.Now()); err != nil {
		if code := challenge.Code(err); code != "" {
			writeError(w, r, statusForCode(code), code, err.Error(), nil)
			return
		}
		writeError(w, r, http.StatusServiceUnavailable, CodeServiceUnavailable, "challenge verification temporarily unavailable", nil)
		return
	}

	res, err := s.Verify.VerifyMembership(r.Context(), domain.WalletAddress(req.WalletAddress), req.Signature, req.Message)
	if err != nil {
		s.log.Error("verification failed", zap.String("correlation_id", res.CorrelationID), zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, CodeServiceUnavailable, "membership verification temporarily unavailable", nil)
		return
	}
	if !res.Success {
		writeError(w, r, statusForCode(res.ErrorCode), res.ErrorCode, res.Message, nil)
		return
	}

	tok, err := s.Issuer.Mint(res.Member.ID)
	if err != nil {
		s.log.Error("mint credential", zap.String("member_id", string(res.Member.ID)), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "could not issue credential", nil)
		return
	}

	out := VerifyResponse{
		Success:       true,
		CorrelationID: res.CorrelationID,
		IsNewMember:   res.IsNewMember,
		Mint:          res.Mint,
		Member:        memberView(*res.Member),
		Token:         TokenView{Value: tok.Value, ExpiresAt: tok.ExpiresAt},
	}
	if res.Profile != nil {
		pv := profileView(*res.Profile)
		out.Profile = &pv
	}
	status := http.StatusOK
	if res.IsNewMember {
		status = http.StatusCreated
	}
	writeJSON(w, status, out)
}

// GetStatus reports the caller's membership status. Suspended and revoked
// members can still see their own record.
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := MemberIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "missing member", nil)
		return
	}
	m, err := s.Members.GetByID(r.Context(), id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if m.IsDeleted() {
		writeError(w, r, http.StatusNotFound, members.CodeNotFound, "No member identity exists for this wallet.", nil)
		return
	}
	writeJSON(w, http.StatusOK, memberView(m))
}

func (s *Server) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := MemberIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "missing member", nil)
		return
	}
	p, err := s.Members.GetProfile(r.Context(), id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileView(p))
}

func (s *Server) PatchProfile(w http.ResponseWriter, r *http.Request) {
	m, ok := MemberFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusForbidden, CodeMembershipRequired, "Verified DAO membership required", nil)
		return
	}
	var req UpdateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := s.Members.UpdateProfile(r.Context(), m.ID, req.patch())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileView(p))
}

func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.Verify.Stats(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	out := StatsResponse{
		Total:      st.Total,
		ByStatus:   make(map[string]int, len(st.Counts)),
		Collection: st.Collection,
	}
	for k, v := range st.Counts {
		out.ByStatus[string(k)] = v
	}
	writeJSON(w, http.StatusOK, out)
}

// ListMembers returns non-deleted identities, optionally filtered by status.
func (s *Server) ListMembers(w http.ResponseWriter, r *http.Request) {
	var (
		status *string
		limit  *int
	)
	if err := runtime.BindQueryParameter("form", true, false, "status", r.URL.Query(), &status); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeValidation, "invalid status parameter", map[string]any{"status": err.Error()})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeValidation, "invalid limit parameter", map[string]any{"limit": err.Error()})
		return
	}

	var filter *domain.MemberStatus
	if status != nil {
		st := domain.MemberStatus(strings.ToLower(strings.TrimSpace(*status)))
		if !st.Valid() {
			writeError(w, r, http.StatusBadRequest, CodeValidation, "invalid status parameter", map[string]any{"status": "unknown status"})
			return
		}
		filter = &st
	}
	n := defaultListLimit
	if limit != nil {
		if *limit < 1 || *limit > maxListLimit {
			writeError(w, r, http.StatusBadRequest, CodeValidation, "invalid limit parameter", map[string]any{"limit": "must be between 1 and 200"})
			return
		}
		n = *limit
	}

	ms, err := s.Members.List(r.Context(), filter, n)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	out := MembersResponse{Members: make([]MemberView, 0, len(ms))}
	for _, m := range ms {
		out.Members = append(out.Members, memberView(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) GetJWKS(w http.ResponseWriter, r *http.Request) {
	b, err := s.Issuer.JWKS()
	if err != nil {
		s.log.Error("render jwks", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "could not render key set", nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *members.Error
	if errors.As(err, &ae) {
		writeError(w, r, ae.Status, ae.Code, ae.Message, ae.Details)
		return
	}
	s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, CodeInternal, "internal error", nil)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeValidation, "invalid JSON body", map[string]any{"body": err.Error()})
		return false
	}
	return true
}
