package session

import "context"

type ctxKey struct{}

// NewContext returns a copy of ctx carrying sess.
func NewContext(ctx context.Context, sess *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// FromContext returns the session carried by ctx, if any.
func FromContext(ctx context.Context) (*Context, bool) {
	sess, ok := ctx.Value(ctxKey{}).(*Context)
	return sess, ok && sess != nil
}
