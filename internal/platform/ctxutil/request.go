package ctxutil

import "context"

type requestKey struct{}

// Request is the per-request state filled in by the HTTP middleware chain.
// Observe attaches it first; auth fills in the reviewer later on the same value.
type Request struct {
	TraceID   string
	RequestID string
	Reviewer  string
	Token     string
}

func With(ctx context.Context, r *Request) context.Context {
	return context.WithValue(ctx, requestKey{}, r)
}

// From returns nil outside an HTTP request.
func From(ctx context.Context) *Request {
	if ctx == nil {
		return nil
	}
	r, _ := ctx.Value(requestKey{}).(*Request)
	return r
}

// WithReviewer records the authenticated reviewer, attaching a Request when none exists.
func WithReviewer(ctx context.Context, reviewer, token string) context.Context {
	if r := From(ctx); r != nil {
		r.Reviewer, r.Token = reviewer, token
		return ctx
	}
	return With(ctx, &Request{Reviewer: reviewer, Token: token})
}

// Reviewer is "" for anonymous requests.
func Reviewer(ctx context.Context) string {
	if r := From(ctx); r != nil {
		return r.Reviewer
	}
	return ""
}
