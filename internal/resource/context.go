package resource

import "context"

// Identity is a decoded claim set. Nil means anonymous.
type Identity map[string]any

// Context is the per-request execution context exposed to templates.
// It is built fresh for every call and never shared.
type Context struct {
	Config   map[string]any
	Identity Identity
	Params   map[string]any
}

// TemplateData returns the template view of c: .config, .user, .identity
// and .params.
func (c Context) TemplateData() map[string]any {
	var user map[string]any
	if c.Identity != nil {
		user = map[string]any(c.Identity)
	}
	return map[string]any{
		"config":   c.Config,
		"user":     user,
		"identity": user,
		"params":   c.Params,
	}
}

type requestIDKey struct{}

// WithRequestID attaches a request id to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id attached to ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
