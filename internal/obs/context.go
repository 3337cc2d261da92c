package obs

import "context"

// routePatternKey carries the matched chi route pattern so metrics and
// request logs label by "/api/v1/quotes/{id}" rather than the raw path.
type routePatternKey struct{}

// WithRoutePattern stores the matched route pattern on the context.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext extracts the route pattern if present.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(routePatternKey{}).(string); ok {
		return v
	}
	return ""
}
