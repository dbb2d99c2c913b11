// Package inmemory provides an in-memory implementation of the store
// Repository, used by tests and the dev mode of the server. Documents are kept
// as JSON so reads never alias writer memory, and an optional visibility lag
// models the search-index propagation delay of the production store.
package inmemory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eosc-beyond/resource-catalogue-server/internal/store"
)

type entry struct {
	raw       []byte
	fields    map[string]string
	written   time.Time
	visibleAt time.Time
}

// Repository is an in-memory document collection.
type Repository[T any] struct {
	mu      sync.RWMutex
	docs    map[string]*entry
	indexer store.Indexer[T]

	visibilityLag time.Duration
	facetFields   []string
	now           func() time.Time
}

var _ store.Repository[any] = (*Repository[any])(nil)

// Option configures a Repository.
type Option[T any] func(*Repository[T])

// WithVisibilityLag makes documents invisible to Search (not Get) for the
// given duration after a write, emulating an eventually consistent index.
func WithVisibilityLag[T any](lag time.Duration) Option[T] {
	return func(r *Repository[T]) {
		r.visibilityLag = lag
	}
}

// WithFacetFields selects the indexed fields aggregated into facets on Search.
func WithFacetFields[T any](fields ...string) Option[T] {
	return func(r *Repository[T]) {
		r.facetFields = fields
	}
}

// WithClock overrides the time source, for tests.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(r *Repository[T]) {
		r.now = now
	}
}

// New creates an empty repository. The indexer extracts the searchable fields
// of each stored document.
func New[T any](indexer store.Indexer[T], opts ...Option[T]) *Repository[T] {
	r := &Repository[T]{
		docs:    map[string]*entry{},
		indexer: indexer,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository[T]) Get(_ context.Context, id string) (T, error) {
	var zero T
	r.mu.RLock()
	e, ok := r.docs[id]
	r.mu.RUnlock()
	if !ok {
		return zero, store.ErrNotFound
	}
	return decode[T](e.raw)
}

func (r *Repository[T]) Exists(_ context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.docs[id]
	return ok, nil
}

func (r *Repository[T]) Add(_ context.Context, id string, doc T) error {
	raw, fields, err := r.encode(doc)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; ok {
		return store.ErrAlreadyExists
	}
	now := r.now()
	r.docs[id] = &entry{raw: raw, fields: fields, written: now, visibleAt: now.Add(r.visibilityLag)}
	return nil
}

func (r *Repository[T]) Update(_ context.Context, id string, doc T) error {
	raw, fields, err := r.encode(doc)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return store.ErrNotFound
	}
	now := r.now()
	r.docs[id] = &entry{raw: raw, fields: fields, written: now, visibleAt: now.Add(r.visibilityLag)}
	return nil
}

func (r *Repository[T]) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.docs, id)
	return nil
}

type hit struct {
	id     string
	raw    []byte
	fields map[string]string
}

func (r *Repository[T]) Search(_ context.Context, filter store.FacetFilter) (store.Paging[T], error) {
	now := r.now()

	r.mu.RLock()
	hits := make([]hit, 0, len(r.docs))
	for id, e := range r.docs {
		if now.Before(e.visibleAt) {
			continue
		}
		if !matches(e.fields, filter) {
			continue
		}
		hits = append(hits, hit{id: id, raw: e.raw, fields: e.fields})
	}
	r.mu.RUnlock()

	orderBy := filter.OrderBy
	sort.Slice(hits, func(i, j int) bool {
		if orderBy != "" {
			a, b := hits[i].fields[orderBy], hits[j].fields[orderBy]
			if a != b {
				if filter.OrderDirection == store.OrderDesc {
					return a > b
				}
				return a < b
			}
		}
		return hits[i].id < hits[j].id
	})

	facets := r.aggregate(hits)

	total := len(hits)
	from := filter.From
	if from > total {
		from = total
	}
	quantity := filter.Quantity
	if quantity <= 0 {
		quantity = store.DefaultQuantity
	}
	to := from + quantity
	if to > total {
		to = total
	}

	page := store.Paging[T]{Total: total, From: from, To: to, Facets: facets}
	for _, h := range hits[from:to] {
		doc, err := decode[T](h.raw)
		if err != nil {
			return store.Paging[T]{}, err
		}
		page.Results = append(page.Results, doc)
	}
	return page, nil
}

func (r *Repository[T]) aggregate(hits []hit) []store.Facet {
	if len(r.facetFields) == 0 {
		return nil
	}
	facets := make([]store.Facet, 0, len(r.facetFields))
	for _, field := range r.facetFields {
		counts := map[string]int{}
		for _, h := range hits {
			if v, ok := h.fields[field]; ok && v != "" {
				counts[v]++
			}
		}
		values := make([]store.FacetValue, 0, len(counts))
		for v, c := range counts {
			values = append(values, store.FacetValue{Value: v, Count: c})
		}
		sort.Slice(values, func(i, j int) bool {
			if values[i].Count != values[j].Count {
				return values[i].Count > values[j].Count
			}
			return values[i].Value < values[j].Value
		})
		facets = append(facets, store.Facet{Field: field, Values: values})
	}
	return facets
}

func matches(fields map[string]string, filter store.FacetFilter) bool {
	for field, accepted := range filter.Filters {
		if len(accepted) == 0 {
			continue
		}
		value, ok := fields[field]
		if !ok {
			return false
		}
		found := false
		for _, want := range accepted {
			if value == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Keyword != "" {
		keyword := strings.ToLower(filter.Keyword)
		for _, v := range fields {
			if strings.Contains(strings.ToLower(v), keyword) {
				return true
			}
		}
		return false
	}
	return true
}

func (r *Repository[T]) encode(doc T) ([]byte, map[string]string, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return raw, r.indexer(doc), nil
}

func decode[T any](raw []byte) (T, error) {
	var doc T
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}
