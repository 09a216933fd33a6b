package auth

import (
	"context"

	"github.com/postroom/postroom/models"
)

type (
	ctxOwner struct{}
)

func withOwner(ctx context.Context, owner models.Uid) context.Context {
	return context.WithValue(ctx, ctxOwner{}, owner)
}

// OwnerFromContext returns the verified owner id attached by the gate
// middleware, if any.
func OwnerFromContext(ctx context.Context) (models.Uid, bool) {
	owner, ok := ctx.Value(ctxOwner{}).(models.Uid)
	return owner, ok
}
