package domain

import "context"

type credentialsKey struct{}

// WithCredentials returns a context carrying the participant's bearer token,
// forwarded on calls to the application backend
func WithCredentials(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, credentialsKey{}, token)
}

// CredentialsFrom returns the bearer token stored in ctx
func CredentialsFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(credentialsKey{}).(string)
	return token, ok && token != ""
}
