package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eosc-beyond/resource-catalogue-server/internal/bundle"
)

// KindRouter pairs one document kind with its private and public route
// groups.
type KindRouter struct {
	Kind    bundle.Kind
	Private http.Handler
	Public  http.Handler
}

// ForKind builds the route groups of one kind in one call.
func ForKind[T bundle.Payload](rr *ResourceRoutes[T], pr *PublicRoutes[T]) KindRouter {
	kr := KindRouter{
		Kind:    rr.manager.Kind(),
		Private: rr.Router(),
	}
	if pr != nil {
		kr.Public = pr.Router()
	}
	return kr
}

// Router assembles the versioned API from the per-kind route groups.
func Router(kinds ...KindRouter) http.Handler {
	r := chi.NewRouter()
	for _, k := range kinds {
		r.Mount("/"+k.Kind.Name, k.Private)
		if k.Public != nil {
			r.Mount("/public/"+k.Kind.Name, k.Public)
		}
	}
	return r
}
