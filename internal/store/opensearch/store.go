// Package opensearch implements the document repository on an OpenSearch
// cluster. Each kind lives in its own index; every document is stored
// alongside its extracted searchable fields, which back the term filters,
// keyword search and facet aggregations.
package opensearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"

	"github.com/eosc-beyond/resource-catalogue-server/internal/config"
	"github.com/eosc-beyond/resource-catalogue-server/internal/store"
)

// NewClient connects to the cluster described by the configuration.
func NewClient(cfg *config.OpenSearchConfig) (*opensearchapi.Client, error) {
	password, err := cfg.GetPassword()
	if err != nil {
		return nil, err
	}

	clientCfg := opensearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  password,
	}
	if cfg.InsecureSkipTLSVerify {
		clientCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 -- explicit opt-in for local clusters
		}
	}

	client, err := opensearchapi.NewClient(opensearchapi.Config{Client: clientCfg})
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenSearch client: %w", err)
	}
	return client, nil
}

// document is the stored shape: the entry itself plus its searchable fields.
type document struct {
	Document json.RawMessage   `json:"document"`
	Fields   map[string]string `json:"fields"`
}

// Repository is a store.Repository backed by one OpenSearch index.
type Repository[T any] struct {
	client      *opensearchapi.Client
	index       string
	indexer     store.Indexer[T]
	facetFields []string
}

// Option configures a Repository.
type Option[T any] func(*Repository[T])

// WithFacetFields selects the fields aggregated into search facets.
func WithFacetFields[T any](fields ...string) Option[T] {
	return func(r *Repository[T]) { r.facetFields = fields }
}

// New creates a repository over the given index.
func New[T any](client *opensearchapi.Client, index string, indexer store.Indexer[T], opts ...Option[T]) *Repository[T] {
	r := &Repository[T]{
		client:  client,
		index:   index,
		indexer: indexer,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get reads a document by id. Document gets are realtime in OpenSearch, so a
// successful write is immediately readable here even while the search index
// still lags.
func (r *Repository[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T

	resp, err := r.client.Document.Get(ctx, opensearchapi.DocumentGetReq{
		Index:      r.index,
		DocumentID: id,
	})
	if err != nil {
		if resp != nil && resp.Inspect().Response.StatusCode == http.StatusNotFound {
			return zero, store.ErrNotFound
		}
		return zero, fmt.Errorf("failed to get document %q: %w", id, err)
	}
	if !resp.Found {
		return zero, store.ErrNotFound
	}

	return decodeDocument[T](resp.Source)
}

// Exists reports whether a document exists.
func (r *Repository[T]) Exists(ctx context.Context, id string) (bool, error) {
	resp, err := r.client.Document.Exists(ctx, opensearchapi.DocumentExistsReq{
		Index:      r.index,
		DocumentID: id,
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to check document %q: %w", id, err)
	}
	return resp.StatusCode == http.StatusOK, nil
}

// Add creates a document. An existing id is a conflict.
func (r *Repository[T]) Add(ctx context.Context, id string, doc T) error {
	body, err := r.encode(doc)
	if err != nil {
		return err
	}

	resp, err := r.client.Index(ctx, opensearchapi.IndexReq{
		Index:      r.index,
		DocumentID: id,
		Body:       bytes.NewReader(body),
		Params:     opensearchapi.IndexParams{OpType: "create"},
	})
	if err != nil {
		if resp != nil && resp.Inspect().Response.StatusCode == http.StatusConflict {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("failed to index document %q: %w", id, err)
	}
	return nil
}

// Update replaces an existing document.
func (r *Repository[T]) Update(ctx context.Context, id string, doc T) error {
	exists, err := r.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}

	body, err := r.encode(doc)
	if err != nil {
		return err
	}
	if _, err := r.client.Index(ctx, opensearchapi.IndexReq{
		Index:      r.index,
		DocumentID: id,
		Body:       bytes.NewReader(body),
	}); err != nil {
		return fmt.Errorf("failed to reindex document %q: %w", id, err)
	}
	return nil
}

// Delete removes a document.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	resp, err := r.client.Document.Delete(ctx, opensearchapi.DocumentDeleteReq{
		Index:      r.index,
		DocumentID: id,
	})
	if err != nil {
		if resp != nil && resp.Inspect().Response.StatusCode == http.StatusNotFound {
			return store.ErrNotFound
		}
		return fmt.Errorf("failed to delete document %q: %w", id, err)
	}
	return nil
}

// Search runs a facet-filtered query against the index. Results reflect the
// last index refresh, not necessarily the last write.
func (r *Repository[T]) Search(ctx context.Context, filter store.FacetFilter) (store.Paging[T], error) {
	var zero store.Paging[T]

	query, err := buildQuery(filter, r.facetFields)
	if err != nil {
		return zero, err
	}

	resp, err := r.client.Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{r.index},
		Body:    bytes.NewReader(query),
	})
	if err != nil {
		return zero, fmt.Errorf("failed to search index %q: %w", r.index, err)
	}

	page := store.Paging[T]{
		Total:   resp.Hits.Total.Value,
		From:    filter.From,
		Results: make([]T, 0, len(resp.Hits.Hits)),
	}
	for _, hit := range resp.Hits.Hits {
		doc, err := decodeDocument[T](hit.Source)
		if err != nil {
			return zero, err
		}
		page.Results = append(page.Results, doc)
	}
	page.To = page.From + len(page.Results)

	if len(resp.Aggregations) > 0 {
		facets, err := decodeFacets(resp.Aggregations)
		if err != nil {
			return zero, err
		}
		page.Facets = facets
	}
	return page, nil
}

func (r *Repository[T]) encode(doc T) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	body, err := json.Marshal(document{Document: raw, Fields: r.indexer(doc)})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document envelope: %w", err)
	}
	return body, nil
}

func decodeDocument[T any](source json.RawMessage) (T, error) {
	var zero T
	var envelope document
	if err := json.Unmarshal(source, &envelope); err != nil {
		return zero, fmt.Errorf("failed to unmarshal document envelope: %w", err)
	}
	var doc T
	if err := json.Unmarshal(envelope.Document, &doc); err != nil {
		return zero, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return doc, nil
}

// fieldPath addresses the keyword sub-field OpenSearch derives for
// dynamically mapped strings.
func fieldPath(field string) string {
	return "fields." + field + ".keyword"
}

// buildQuery translates a facet filter into an OpenSearch request body.
func buildQuery(filter store.FacetFilter, facetFields []string) ([]byte, error) {
	boolQuery := map[string]any{}

	var filters []any
	for field, values := range filter.Filters {
		filters = append(filters, map[string]any{
			"terms": map[string]any{fieldPath(field): values},
		})
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}
	if filter.Keyword != "" {
		boolQuery["must"] = []any{map[string]any{
			"simple_query_string": map[string]any{
				"query":  filter.Keyword,
				"fields": []string{"fields.*"},
			},
		}}
	}

	size := filter.Quantity
	if size <= 0 {
		size = store.DefaultQuantity
	}
	body := map[string]any{
		"query": map[string]any{"bool": boolQuery},
		"from":  filter.From,
		"size":  size,
	}

	if filter.OrderBy != "" {
		order := "asc"
		if filter.OrderDirection == store.OrderDesc {
			order = "desc"
		}
		body["sort"] = []any{
			map[string]any{fieldPath(filter.OrderBy): map[string]any{"order": order}},
		}
	}

	if len(facetFields) > 0 {
		aggs := make(map[string]any, len(facetFields))
		for _, field := range facetFields {
			aggs[field] = map[string]any{
				"terms": map[string]any{"field": fieldPath(field), "size": 50},
			}
		}
		body["aggs"] = aggs
	}

	query, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}
	return query, nil
}

// decodeFacets converts terms aggregations into facets.
func decodeFacets(raw json.RawMessage) ([]store.Facet, error) {
	var aggs map[string]struct {
		Buckets []struct {
			Key      string `json:"key"`
			DocCount int    `json:"doc_count"`
		} `json:"buckets"`
	}
	if err := json.Unmarshal(raw, &aggs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal aggregations: %w", err)
	}

	facets := make([]store.Facet, 0, len(aggs))
	for field, agg := range aggs {
		facet := store.Facet{Field: field}
		for _, bucket := range agg.Buckets {
			facet.Values = append(facet.Values, store.FacetValue{
				Value: bucket.Key,
				Count: bucket.DocCount,
			})
		}
		facets = append(facets, facet)
	}
	return facets, nil
}
