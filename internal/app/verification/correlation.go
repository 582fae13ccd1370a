package verification

import "context"

type correlationKey struct{}

// WithCorrelationID makes VerifyMembership and QuickVerify reuse id instead of
// generating one.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(correlationKey{}).(string)
	return v, ok && v != ""
}

func (s *Service) correlationID(ctx context.Context) string {
	if id, ok := CorrelationIDFromContext(ctx); ok {
		return id
	}
	return s.newCorrelationID()
}
