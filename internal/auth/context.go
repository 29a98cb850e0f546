package auth

import "context"

type contextKey struct{}

// WithAgentID stores the authenticated agent id on the context.
func WithAgentID(ctx context.Context, agentID int64) context.Context {
	return context.WithValue(ctx, contextKey{}, agentID)
}

// AgentID returns the authenticated agent id placed by the bearer guard, or
// false when the request never passed through it.
func AgentID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(contextKey{}).(int64)
	return id, ok
}
