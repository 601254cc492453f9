package httpx

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/katuparan/farm2stall/internal/market"
	"github.com/katuparan/farm2stall/internal/service"
)

type actorKey struct{}

// Identity reads the caller identity injected by the edge gateway.
// The gateway terminates authn; these headers are trusted inside the mesh.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get("X-User-Id"), 10, 64)
		if err != nil || id <= 0 {
			writeError(w, market.ErrUnauthorized)
			return
		}
		role, err := market.ParseRole(r.Header.Get("X-User-Role"))
		if err != nil {
			writeError(w, market.ErrUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), actorKey{}, market.Actor{ID: id, Role: role})
		ctx = service.WithTrace(ctx, middleware.GetReqID(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func ActorFrom(ctx context.Context) market.Actor {
	a, _ := ctx.Value(actorKey{}).(market.Actor)
	return a
}
