package httpapi

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Huaoe/ElurcFleet/internal/app/members"
	"github.com/Huaoe/ElurcFleet/internal/domain"
	"github.com/Huaoe/ElurcFleet/internal/platform/logging"
)

// TokenVerifier resolves a bearer credential to the member id it was minted for.
type TokenVerifier interface {
	Verify(token string) (domain.MemberID, error)
}

// MemberLookup loads an identity by id, including soft-deleted ones.
type MemberLookup interface {
	GetByID(ctx context.Context, id domain.MemberID) (domain.MemberIdentity, error)
}

// NewAuthMiddleware enforces Authorization: Bearer <credential>.
//
// On success, it stores the authenticated member id in request context.
func NewAuthMiddleware(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if authz == "" {
				writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "missing Authorization header", nil)
				return
			}
			const prefix = "Bearer "
			if !strings.HasPrefix(authz, prefix) {
				writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "malformed Authorization header", nil)
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
			if raw == "" {
				writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "missing bearer token", nil)
				return
			}

			id, err := v.Verify(raw)
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "invalid token", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithMemberID(r.Context(), id)))
		})
	}
}

// RequireVerifiedMember admits only callers whose identity exists, is not
// deleted, and is Verified. It must run after NewAuthMiddleware. Store failures
// answer 503 with Retry-After rather than letting the request through.
func RequireVerifiedMember(lookup MemberLookup, logger *zap.Logger) func(http.Handler) http.Handler {
	log := logging.OrNop(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := MemberIDFromContext(r.Context())
			if !ok {
				log.Warn("membership check without authenticated member", zap.String("route", r.URL.Path))
				writeError(w, r, http.StatusForbidden, CodeMembershipRequired, "Authentication required", nil)
				return
			}

			m, err := lookup.GetByID(r.Context(), id)
			if err != nil {
				if members.IsCode(err, members.CodeNotFound) {
					log.Warn("member identity not found", zap.String("member_id", string(id)), zap.String("route", r.URL.Path))
					writeError(w, r, http.StatusForbidden, CodeMembershipRequired, "Verified DAO membership required", nil)
					return
				}
				log.Error("membership lookup failed", zap.String("member_id", string(id)), zap.Error(err))
				writeError(w, r, http.StatusServiceUnavailable, CodeServiceUnavailable, "Membership verification service temporarily unavailable", nil)
				return
			}
			if m.IsDeleted() || !m.IsVerified() {
				log.Warn("membership not verified",
					zap.String("member_id", string(id)),
					zap.String("status", string(m.Status)),
					zap.String("route", r.URL.Path),
				)
				writeError(w, r, http.StatusForbidden, CodeMembershipRequired, "Verified DAO membership required", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithMember(r.Context(), m)))
		})
	}
}
