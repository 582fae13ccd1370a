package httpapi

import (
	"context"

	"github.com/Huaoe/ElurcFleet/internal/domain"
)

type memberIDKey struct{}
type memberKey struct{}

func WithMemberID(ctx context.Context, id domain.MemberID) context.Context {
	return context.WithValue(ctx, memberIDKey{}, id)
}

func MemberIDFromContext(ctx context.Context) (domain.MemberID, bool) {
	v, ok := ctx.Value(memberIDKey{}).(domain.MemberID)
	return v, ok && v != ""
}

// WithMember stores the identity loaded by RequireVerifiedMember.
func WithMember(ctx context.Context, m domain.MemberIdentity) context.Context {
	return context.WithValue(ctx, memberKey{}, m)
}

func MemberFromContext(ctx context.Context) (domain.MemberIdentity, bool) {
	v, ok := ctx.Value(memberKey{}).(domain.MemberIdentity)
	return v, ok
}
