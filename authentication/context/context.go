package authcontext

import "context"

const (
	// Anonymous is the guest user id.
	Anonymous = "system:anonymous"

	Authenticated   = "system:authenticated"
	Unauthenticated = "system:unauthenticated"

	// Admin group members may moderate any comment.
	Admin = "system:admin"
)

type contextKeySubject struct{}

func GetSubject(ctx context.Context) string {
	userID, ok := ctx.Value(contextKeySubject{}).(string)
	if !ok || userID == "" {
		return Anonymous
	}

	return userID
}

func IsAnonymous(ctx context.Context) bool {
	return GetSubject(ctx) == Anonymous
}

func WithSubject(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKeySubject{}, userID)
}

func WithServiceSubject(ctx context.Context, serviceName string) context.Context {
	return WithSubject(ctx, "system:service:"+serviceName)
}
