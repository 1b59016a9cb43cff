package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hyperengineering/frontdesk/internal/types"
)

type collectionContextKey struct{}

// WithCollection returns a new context with the addressed collection attached.
func WithCollection(ctx context.Context, c types.Collection) context.Context {
	return context.WithValue(ctx, collectionContextKey{}, c)
}

// CollectionFromContext returns the collection attached by CollectionCtx, or
// "" when none is.
func CollectionFromContext(ctx context.Context) types.Collection {
	c, _ := ctx.Value(collectionContextKey{}).(types.Collection)
	return c
}

// CollectionCtx resolves the {collection} URL parameter. Unknown names are
// left for the backend to reject so the error matches what a hosted
// gateway would answer.
func CollectionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := types.Collection(chi.URLParam(r, "collection"))
		if c == "" {
			WriteProblem(w, r, http.StatusNotFound, "Collection not found")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCollection(r.Context(), c)))
	})
}
