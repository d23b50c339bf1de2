package appctx

import (
	"context"

	"github.com/kilnbuild/kiln/pkg/core"
)

const sessionKey key = "kiln.core.session"

// WithSession stores the configuration session on context.
func WithSession(ctx context.Context, session *core.Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, sessionKey, session)
}

// Session retrieves the configuration session from context.
func Session(ctx context.Context) (*core.Session, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(sessionKey).(*core.Session)
	return s, ok && s != nil
}
