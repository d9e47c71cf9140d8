package tx

import (
	"context"

	dErrors "tokenhold/pkg/domain-errors"
)

type guardKey struct{}

// Enter marks key active for the call chain below ctx. Entering the same key
// again from a derived context (a hook calling back into the same token)
// fails with CodeReentrant.
func Enter(ctx context.Context, key string) (context.Context, error) {
	active, _ := ctx.Value(guardKey{}).(map[string]struct{})
	if _, ok := active[key]; ok {
		return ctx, dErrors.New(dErrors.CodeReentrant, "reentrant call rejected for "+key)
	}
	next := make(map[string]struct{}, len(active)+1)
	for k := range active {
		next[k] = struct{}{}
	}
	next[key] = struct{}{}
	return context.WithValue(ctx, guardKey{}, next), nil
}
