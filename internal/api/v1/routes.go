// Package v1 provides the REST API handlers of the catalogue: the lifecycle
// operations on the private catalogue and the read-only public mirror.
package v1

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/eosc-beyond/resource-catalogue-server/internal/auth"
	"github.com/eosc-beyond/resource-catalogue-server/internal/bundle"
	"github.com/eosc-beyond/resource-catalogue-server/internal/manager"
	"github.com/eosc-beyond/resource-catalogue-server/internal/public"
	"github.com/eosc-beyond/resource-catalogue-server/internal/store"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// ResourceRoutes serves the lifecycle endpoints of one document kind.
type ResourceRoutes[T bundle.Payload] struct {
	manager    *manager.ResourceManager[T]
	newPayload func() T
}

// NewResourceRoutes creates the route group for one kind. newPayload
// allocates an empty payload for request decoding.
func NewResourceRoutes[T bundle.Payload](mgr *manager.ResourceManager[T], newPayload func() T) *ResourceRoutes[T] {
	return &ResourceRoutes[T]{manager: mgr, newPayload: newPayload}
}

// Router mounts the lifecycle endpoints.
func (rr *ResourceRoutes[T]) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", rr.list)
	r.Post("/", rr.add)

	r.Post("/draft", rr.addDraft)
	r.Put("/draft/{id}", rr.updateDraft)
	r.Delete("/draft/{id}", rr.deleteDraft)
	r.Post("/draft/{id}/transform", rr.transform)

	r.Get("/{id}", rr.get)
	r.Put("/{id}", rr.update)
	r.Delete("/{id}", rr.delete)

	r.Patch("/{id}/verify", rr.verify)
	r.Patch("/{id}/publish", rr.publish)
	r.Patch("/{id}/suspend", rr.suspend)
	r.Patch("/{id}/audit", rr.audit)
	r.Patch("/{id}/move", rr.changeProvider)

	return r
}

// list handles GET /v1/{kind}
//
// @Summary		Search the catalogue
// @Description	Facet-filtered search over one kind. Anonymous callers only see approved, active entries.
// @Tags			catalogue
// @Produce		json
// @Param			query		query	string	false	"Keyword matched against indexed fields"
// @Param			from		query	int		false	"Zero-based result offset"
// @Param			quantity	query	int		false	"Page size"	default(10)
// @Param			orderField	query	string	false	"Indexed field to sort on"
// @Param			order		query	string	false	"Sort direction"	Enums(asc,desc)
// @Success		200	{object}	store.Paging[any]
// @Router			/v1/{kind} [get]
func (rr *ResourceRoutes[T]) list(w http.ResponseWriter, r *http.Request) {
	page, err := rr.manager.GetAll(r.Context(), auth.FromContext(r.Context()), filterFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// get handles GET /v1/{kind}/{id}
//
// @Summary		Fetch a resource
// @Description	Anonymous callers only see approved, active, unsuspended entries; hidden resources read as 404.
// @Tags			catalogue
// @Produce		json
// @Success		200	{object}	any
// @Failure		404	{object}	ErrorResponse
// @Router			/v1/{kind}/{id} [get]
func (rr *ResourceRoutes[T]) get(w http.ResponseWriter, r *http.Request) {
	b, err := rr.manager.Get(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// add handles POST /v1/{kind}
//
// @Summary		Register a resource
// @Description	The resource enters the catalogue pending and inactive, awaiting moderation.
// @Tags			catalogue
// @Accept			json
// @Produce		json
// @Success		201	{object}	any
// @Failure		400	{object}	ErrorResponse
// @Failure		409	{object}	ErrorResponse
// @Router			/v1/{kind} [post]
func (rr *ResourceRoutes[T]) add(w http.ResponseWriter, r *http.Request) {
	b, ok := rr.decodeBundle(w, r)
	if !ok {
		return
	}
	added, err := rr.manager.Add(r.Context(), auth.FromContext(r.Context()), b)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

// update handles PUT /v1/{kind}/{id}
func (rr *ResourceRoutes[T]) update(w http.ResponseWriter, r *http.Request) {
	b, ok := rr.decodeBundle(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if b.ID() == "" {
		b.Payload.SetID(id)
	} else if b.ID() != id {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "payload id does not match URL"})
		return
	}

	updated, err := rr.manager.Update(r.Context(), auth.FromContext(r.Context()), b, r.URL.Query().Get("comment"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// delete handles DELETE /v1/{kind}/{id}
func (rr *ResourceRoutes[T]) delete(w http.ResponseWriter, r *http.Request) {
	if err := rr.manager.Delete(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// verify handles PATCH /v1/{kind}/{id}/verify
//
// @Summary		Moderate a resource
// @Description	Admin transition that approves or rejects a pending resource and sets its activity.
// @Tags			moderation
// @Produce		json
// @Param			status	query	string	true	"Target onboarding state"
// @Param			active	query	bool	false	"Activity to apply on approval"
// @Success		200	{object}	any
// @Failure		400	{object}	ErrorResponse
// @Failure		403	{object}	ErrorResponse
// @Router			/v1/{kind}/{id}/verify [patch]
func (rr *ResourceRoutes[T]) verify(w http.ResponseWriter, r *http.Request) {
	active, ok := queryBool(w, r, "active")
	if !ok {
		return
	}
	b, err := rr.manager.Verify(r.Context(), auth.FromContext(r.Context()),
		chi.URLParam(r, "id"), r.URL.Query().Get("status"), active)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// publish handles PATCH /v1/{kind}/{id}/publish
func (rr *ResourceRoutes[T]) publish(w http.ResponseWriter, r *http.Request) {
	active, ok := queryBool(w, r, "active")
	if !ok {
		return
	}
	b, err := rr.manager.Publish(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"), active)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// suspend handles PATCH /v1/{kind}/{id}/suspend
func (rr *ResourceRoutes[T]) suspend(w http.ResponseWriter, r *http.Request) {
	suspend, ok := queryBool(w, r, "suspend")
	if !ok {
		return
	}
	b, err := rr.manager.Suspend(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"), suspend)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// audit handles PATCH /v1/{kind}/{id}/audit
func (rr *ResourceRoutes[T]) audit(w http.ResponseWriter, r *http.Request) {
	b, err := rr.manager.Audit(r.Context(), auth.FromContext(r.Context()),
		chi.URLParam(r, "id"), r.URL.Query().Get("comment"), r.URL.Query().Get("actionType"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// changeProvider handles PATCH /v1/{kind}/{id}/move
func (rr *ResourceRoutes[T]) changeProvider(w http.ResponseWriter, r *http.Request) {
	b, err := rr.manager.ChangeProvider(r.Context(), auth.FromContext(r.Context()),
		chi.URLParam(r, "id"), r.URL.Query().Get("provider"), r.URL.Query().Get("comment"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// addDraft handles POST /v1/{kind}/draft
func (rr *ResourceRoutes[T]) addDraft(w http.ResponseWriter, r *http.Request) {
	b, ok := rr.decodeBundle(w, r)
	if !ok {
		return
	}
	draft, err := rr.manager.AddDraft(r.Context(), auth.FromContext(r.Context()), b)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, draft)
}

// updateDraft handles PUT /v1/{kind}/draft/{id}
func (rr *ResourceRoutes[T]) updateDraft(w http.ResponseWriter, r *http.Request) {
	b, ok := rr.decodeBundle(w, r)
	if !ok {
		return
	}
	b.Payload.SetID(chi.URLParam(r, "id"))
	draft, err := rr.manager.UpdateDraft(r.Context(), auth.FromContext(r.Context()), b)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// deleteDraft handles DELETE /v1/{kind}/draft/{id}
func (rr *ResourceRoutes[T]) deleteDraft(w http.ResponseWriter, r *http.Request) {
	if err := rr.manager.DeleteDraft(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// transform handles POST /v1/{kind}/draft/{id}/transform
func (rr *ResourceRoutes[T]) transform(w http.ResponseWriter, r *http.Request) {
	b, err := rr.manager.TransformToNonDraft(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (rr *ResourceRoutes[T]) decodeBundle(w http.ResponseWriter, r *http.Request) (*bundle.Bundle[T], bool) {
	payload := rr.newPayload()
	if err := json.NewDecoder(r.Body).Decode(payload); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return nil, false
	}
	return &bundle.Bundle[T]{Payload: payload}, true
}

// PublicRoutes serves the read-only endpoints of one kind's public mirror.
type PublicRoutes[T bundle.Payload] struct {
	mirror *public.Mirror[T]
}

// NewPublicRoutes creates the public route group for one kind.
func NewPublicRoutes[T bundle.Payload](mirror *public.Mirror[T]) *PublicRoutes[T] {
	return &PublicRoutes[T]{mirror: mirror}
}

// Router mounts the public read endpoints.
func (pr *PublicRoutes[T]) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", pr.list)
	r.Get("/{id}", pr.get)
	return r
}

// list handles GET /v1/public/{kind}
//
// @Summary		Search the public mirror
// @Description	Facet-filtered search over the sanitized public copies of one kind.
// @Tags			public
// @Produce		json
// @Success		200	{object}	store.Paging[any]
// @Router			/v1/public/{kind} [get]
func (pr *PublicRoutes[T]) list(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r)
	// Suspended or deactivated resources keep their mirrored copy but must
	// never surface publicly; callers cannot override these filters.
	filter.Filters[bundle.FieldActive] = []string{"true"}
	filter.Filters[bundle.FieldSuspended] = []string{"false"}

	page, err := pr.mirror.Search(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// get handles GET /v1/public/{kind}/{id}
func (pr *PublicRoutes[T]) get(w http.ResponseWriter, r *http.Request) {
	b, err := pr.mirror.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !b.Active || b.Suspended {
		writeError(w, store.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// filterFields are the query parameters passed through as term filters.
var filterFields = []string{
	bundle.FieldStatus,
	bundle.FieldActive,
	bundle.FieldSuspended,
	bundle.FieldCatalogueID,
	bundle.FieldResourceOrganisation,
	bundle.FieldTemplateStatus,
}

// filterFromQuery translates request query parameters into a facet filter.
func filterFromQuery(r *http.Request) store.FacetFilter {
	q := r.URL.Query()

	filter := store.NewFacetFilter()
	filter.Keyword = q.Get("query")
	if from, err := strconv.Atoi(q.Get("from")); err == nil && from >= 0 {
		filter.From = from
	}
	if quantity, err := strconv.Atoi(q.Get("quantity")); err == nil && quantity > 0 {
		filter.Quantity = quantity
	}
	filter.OrderBy = q.Get("orderField")
	if q.Get("order") == store.OrderDesc {
		filter.OrderDirection = store.OrderDesc
	} else {
		filter.OrderDirection = store.OrderAsc
	}

	for _, field := range filterFields {
		if values, ok := q[field]; ok {
			filter.AddFilter(field, values...)
		}
	}
	return filter
}

// queryBool parses a required boolean query parameter.
func queryBool(w http.ResponseWriter, r *http.Request, name string) (bool, bool) {
	value, err := strconv.ParseBool(r.URL.Query().Get(name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: name + " must be true or false"})
		return false, false
	}
	return value, true
}

// writeJSON writes a JSON response with the given data
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var validationErr *manager.ValidationError
	var conflictErr *manager.ConflictError

	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, manager.ErrAccessDenied):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: err.Error()})
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: validationErr.Reason})
	case errors.As(err, &conflictErr):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: conflictErr.Reason})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
