package mvc

import "context"

type attributesKey struct{}

// WithAttributes returns a context carrying request-scoped attributes.
// Entries are merged over any attributes already on ctx; the caller's
// map is copied.
func WithAttributes(ctx context.Context, attrs map[string]any) context.Context {
	merged := make(map[string]any, len(attrs))
	for k, v := range Attributes(ctx) {
		merged[k] = v
	}
	for k, v := range attrs {
		merged[k] = v
	}
	return context.WithValue(ctx, attributesKey{}, merged)
}

// Attributes returns the request-scoped attributes on ctx, or nil
func Attributes(ctx context.Context) map[string]any {
	attrs, _ := ctx.Value(attributesKey{}).(map[string]any)
	return attrs
}
