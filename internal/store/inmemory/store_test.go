package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eosc-beyond/resource-catalogue-server/internal/store"
)

type doc struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

func indexDoc(d *doc) map[string]string {
	return map[string]string{"id": d.ID, "name": d.Name, "status": d.Status}
}

func TestAddGetUpdateDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := New(indexDoc)

	require.NoError(t, repo.Add(ctx, "a", &doc{ID: "a", Name: "alpha", Status: "pending"}))
	require.ErrorIs(t, repo.Add(ctx, "a", &doc{ID: "a"}), store.ErrAlreadyExists)

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "alpha", got.Name)

	// Mutating the returned document must not touch the stored copy.
	got.Name = "mutated"
	again, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "alpha", again.Name)

	require.NoError(t, repo.Update(ctx, "a", &doc{ID: "a", Name: "beta", Status: "approved"}))
	require.ErrorIs(t, repo.Update(ctx, "missing", &doc{ID: "missing"}), store.ErrNotFound)

	ok, err := repo.Exists(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.Delete(ctx, "a"))
	require.ErrorIs(t, repo.Delete(ctx, "a"), store.ErrNotFound)
	_, err = repo.Get(ctx, "a")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSearchFiltersKeywordOrderingPaging(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := New(indexDoc, WithFacetFields[*doc]("status"))

	require.NoError(t, repo.Add(ctx, "a", &doc{ID: "a", Name: "compute service", Status: "approved"}))
	require.NoError(t, repo.Add(ctx, "b", &doc{ID: "b", Name: "storage service", Status: "approved"}))
	require.NoError(t, repo.Add(ctx, "c", &doc{ID: "c", Name: "helpdesk", Status: "pending"}))

	filter := store.NewFacetFilter()
	filter.AddFilter("status", "approved")
	page, err := repo.Search(ctx, filter)
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Len(t, page.Results, 2)

	// Keyword narrows within the filtered set.
	filter.Keyword = "storage"
	page, err = repo.Search(ctx, filter)
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	require.Equal(t, "storage service", page.Results[0].Name)

	// Ordering and paging.
	all := store.NewFacetFilter()
	all.OrderBy = "name"
	all.OrderDirection = store.OrderDesc
	all.Quantity = 2
	page, err = repo.Search(ctx, all)
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	require.Equal(t, 0, page.From)
	require.Equal(t, 2, page.To)
	require.Equal(t, "storage service", page.Results[0].Name)

	all.From = 2
	page, err = repo.Search(ctx, all)
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	require.Equal(t, "compute service", page.Results[0].Name)

	// Facets aggregate over the whole match set, not the page.
	page, err = repo.Search(ctx, store.NewFacetFilter())
	require.NoError(t, err)
	require.Len(t, page.Facets, 1)
	require.Equal(t, "status", page.Facets[0].Field)
	require.Equal(t, []store.FacetValue{{Value: "approved", Count: 2}, {Value: "pending", Count: 1}}, page.Facets[0].Values)
}

func TestVisibilityLagHidesFromSearchNotGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	current := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	repo := New(indexDoc,
		WithVisibilityLag[*doc](5*time.Second),
		WithClock[*doc](func() time.Time { return current }),
	)

	require.NoError(t, repo.Add(ctx, "a", &doc{ID: "a", Name: "alpha"}))

	// Get is read-after-write consistent.
	_, err := repo.Get(ctx, "a")
	require.NoError(t, err)

	// Search is not, until the lag elapses.
	page, err := repo.Search(ctx, store.NewFacetFilter())
	require.NoError(t, err)
	require.Zero(t, page.Total)

	current = current.Add(6 * time.Second)
	page, err = repo.Search(ctx, store.NewFacetFilter())
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
}
