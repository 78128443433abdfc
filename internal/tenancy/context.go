package tenancy

import "context"

type securityContextKey struct{}

// WithContext stores the security context for the current request.
func WithContext(ctx context.Context, sc SecurityContext) context.Context {
	return context.WithValue(ctx, securityContextKey{}, sc)
}

// FromContext extracts the security context, reporting whether one is set.
func FromContext(ctx context.Context) (SecurityContext, bool) {
	sc, ok := ctx.Value(securityContextKey{}).(SecurityContext)
	return sc, ok
}
