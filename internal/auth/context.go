package auth

import "context"

type identityKey struct{}

type identity struct {
	role    Role
	subject string
}

// WithIdentity stores the authenticated caller in ctx.
func WithIdentity(ctx context.Context, role Role, subject string) context.Context {
	return context.WithValue(ctx, identityKey{}, identity{role: role, subject: subject})
}

func identityFrom(ctx context.Context) identity {
	if ctx == nil {
		return identity{}
	}
	id, _ := ctx.Value(identityKey{}).(identity)
	return id
}

// RoleFromContext returns the caller role, empty when unauthenticated.
func RoleFromContext(ctx context.Context) Role {
	return identityFrom(ctx).role
}

// SubjectFromContext returns the token subject, empty when unauthenticated.
func SubjectFromContext(ctx context.Context) string {
	return identityFrom(ctx).subject
}
