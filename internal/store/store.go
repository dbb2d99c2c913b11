// Package store defines the document-store abstraction the catalogue persists
// through: keyed CRUD plus facet-filtered search with paging.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned when adding a document whose id is taken.
	ErrAlreadyExists = errors.New("document already exists")
)

// Order directions accepted by FacetFilter.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// DefaultQuantity is the page size applied when a filter does not set one.
const DefaultQuantity = 10

// FacetFilter is the search-query descriptor sent to the document store.
type FacetFilter struct {
	// Keyword is matched against the indexed text fields of the documents.
	Keyword string
	// From is the zero-based offset of the first result.
	From int
	// Quantity is the page size.
	Quantity int
	// OrderBy names the indexed field to sort on; empty means index order.
	OrderBy string
	// OrderDirection is OrderAsc or OrderDesc.
	OrderDirection string
	// Filters maps indexed fields to accepted values (OR within a field,
	// AND across fields).
	Filters map[string][]string
}

// NewFacetFilter returns a filter with the default page size.
func NewFacetFilter() FacetFilter {
	return FacetFilter{Quantity: DefaultQuantity, Filters: map[string][]string{}}
}

// AddFilter adds an accepted value for a field.
func (f *FacetFilter) AddFilter(field string, values ...string) {
	if f.Filters == nil {
		f.Filters = map[string][]string{}
	}
	f.Filters[field] = append(f.Filters[field], values...)
}

// FacetValue is one bucket of a facet aggregation.
type FacetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Facet is the aggregation of one indexed field over a result set.
type Facet struct {
	Field  string       `json:"field"`
	Values []FacetValue `json:"values"`
}

// Paging is one page of search results with facet aggregations.
type Paging[T any] struct {
	Total   int     `json:"total"`
	From    int     `json:"from"`
	To      int     `json:"to"`
	Results []T     `json:"results"`
	Facets  []Facet `json:"facets,omitempty"`
}

// Indexer extracts the searchable fields of a document. The returned map is
// what Keyword, Filters, OrderBy and facets operate on.
type Indexer[T any] func(doc T) map[string]string

// Repository is a typed view over one document kind in the store.
type Repository[T any] interface {
	// Get returns the document with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (T, error)
	// Exists reports whether a document with the given id is present.
	Exists(ctx context.Context, id string) (bool, error)
	// Add stores a new document, failing with ErrAlreadyExists on collision.
	Add(ctx context.Context, id string, doc T) error
	// Update overwrites an existing document, or fails with ErrNotFound.
	Update(ctx context.Context, id string, doc T) error
	// Delete removes a document, or fails with ErrNotFound.
	Delete(ctx context.Context, id string) error
	// Search returns the page of documents matching the filter. Search
	// visibility of recent writes may lag behind Get.
	Search(ctx context.Context, filter FacetFilter) (Paging[T], error)
}
