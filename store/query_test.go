package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulqrun/crmstore/errors"
	"github.com/fulqrun/crmstore/testutil"
)

func seedDeals(t *testing.T, repo *Repository[deal]) map[string]deal {
	t.Helper()
	ctx := context.Background()
	out := make(map[string]deal)
	for _, d := range []deal{
		{Name: "alpha", Stage: "prospect", Value: 500, Probability: 10},
		{Name: "bravo", Stage: "engage", Value: 2500, Probability: 40},
		{Name: "charlie", Stage: "engage", Value: 1500, Probability: 60},
		{Name: "delta", Stage: "acquire", Value: 9000, Probability: 90},
		{Name: "echo", Stage: "prospect", Value: 100, Probability: 5},
	} {
		created, err := repo.Create(ctx, d)
		require.NoError(t, err)
		out[created.Name] = created
	}
	return out
}

func names(deals []deal) []string {
	out := make([]string, 0, len(deals))
	for _, d := range deals {
		out = append(out, d.Name)
	}
	return out
}

func TestFindAllNilFilterMatchesAbsentField(t *testing.T) {
	kv := testutil.NewMemoryKV()
	companies := newCompanyRepo(t, kv)
	repo := newDealRepo(t, kv)
	ctx := context.Background()

	acme, err := companies.Create(ctx, company{Name: "Acme"})
	require.NoError(t, err)
	seedDeals(t, repo)
	_, err = repo.Create(ctx, deal{Name: "foxtrot", Stage: "keep", CompanyID: acme.ID})
	require.NoError(t, err)

	// company_id is indexed, but null values never enter a bucket; the
	// filter must answer through the scan and agree with it.
	got, total, err := repo.FindAll(ctx, FindOptions{
		Filters: map[string]any{"company_id": nil},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.NotContains(t, names(got), "foxtrot")

	// A second indexed field can still route the same query.
	got, total, err = repo.FindAll(ctx, FindOptions{
		Filters: map[string]any{"company_id": nil, "stage": "keep"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, got)
}

func TestFindAllUnfiltered(t *testing.T) {
	repo := newDealRepo(t, testutil.NewMemoryKV())
	seedDeals(t, repo)

	got, total, err := repo.FindAll(context.Background(), FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, got, 5)
}

func TestFindAllFilters(t *testing.T) {
	repo := newDealRepo(t, testutil.NewMemoryKV())
	seedDeals(t, repo)
	ctx := context.Background()

	got, total, err := repo.FindAll(ctx, FindOptions{
		Filters: map[string]any{"stage": "engage"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.ElementsMatch(t, []string{"bravo", "charlie"}, names(got))

	// Non-indexed filter falls back to the scan but still matches.
	got, total, err = repo.FindAll(ctx, FindOptions{
		Filters: map[string]any{"value": 9000},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, []string{"delta"}, names(got))

	// Combined: indexed field narrows, the rest filter in memory.
	got, _, err = repo.FindAll(ctx, FindOptions{
		Filters: map[string]any{"stage": "engage", "probability": 60},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"charlie"}, names(got))
}

func TestFindAllFilterNumbersAcrossTypes(t *testing.T) {
	// Filter values arrive as int from Go callers but live as float64 in
	// the stored JSON; equality must hold across that boundary.
	repo := newDealRepo(t, testutil.NewMemoryKV())
	seedDeals(t, repo)

	got, _, err := repo.FindAll(context.Background(), FindOptions{
		Filters: map[string]any{"probability": 40},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"bravo"}, names(got))
}

func TestFindAllSorting(t *testing.T) {
	repo := newDealRepo(t, testutil.NewMemoryKV())
	seedDeals(t, repo)
	ctx := context.Background()

	got, _, err := repo.FindAll(ctx, FindOptions{OrderBy: "value", OrderDirection: Ascending})
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", "alpha", "charlie", "bravo", "delta"}, names(got))

	got, _, err = repo.FindAll(ctx, FindOptions{OrderBy: "value", OrderDirection: Descending})
	require.NoError(t, err)
	assert.Equal(t, []string{"delta", "bravo", "charlie", "alpha", "echo"}, names(got))

	got, _, err = repo.FindAll(ctx, FindOptions{OrderBy: "name"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "bravo", "charlie", "delta", "echo"}, names(got))
}

func TestFindAllPagination(t *testing.T) {
	repo := newDealRepo(t, testutil.NewMemoryKV())
	seedDeals(t, repo)
	ctx := context.Background()

	got, total, err := repo.FindAll(ctx, FindOptions{OrderBy: "name", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total, "total reports the full match count, not the page")
	assert.Equal(t, []string{"alpha", "bravo"}, names(got))

	got, _, err = repo.FindAll(ctx, FindOptions{OrderBy: "name", Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"charlie", "delta"}, names(got))

	got, _, err = repo.FindAll(ctx, FindOptions{OrderBy: "name", Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Equal(t, []string{"echo"}, names(got))

	got, _, err = repo.FindAll(ctx, FindOptions{OrderBy: "name", Offset: 99})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindAllRoutesThroughIndex(t *testing.T) {
	mem := testutil.NewMemoryKV()
	flaky := testutil.NewFaultKV(mem)
	repo := newDealRepo(t, flaky)
	seedDeals(t, repo)

	// With a prefix scan forbidden, only the index route can answer.
	flaky.FailOn("keys", RecordPrefix("deals"), errors.ErrSubstrateUnavailable)

	got, _, err := repo.FindAll(context.Background(), FindOptions{
		Filters: map[string]any{"stage": "prospect"},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "echo"}, names(got))

	_, _, err = repo.FindAll(context.Background(), FindOptions{})
	assert.Error(t, err, "unfiltered query needs the scan")
}

func TestCountWithFilters(t *testing.T) {
	repo := newDealRepo(t, testutil.NewMemoryKV())
	seedDeals(t, repo)
	ctx := context.Background()

	count, err := repo.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	count, err = repo.Count(ctx, map[string]any{"stage": "prospect"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = repo.Count(ctx, map[string]any{"stage": "keep"})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestCompareValuesOrdering(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want int
	}{
		{"numbers", 1.0, 2.0, -1},
		{"numbers equal", 3.0, 3.0, 0},
		{"int vs float", 2, 2.0, 0},
		{"strings", "a", "b", -1},
		{"bools", false, true, -1},
		{"nil first", nil, "x", -1},
		{"nil equal", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compareValues(tt.a, tt.b))
		})
	}
}

func TestEncodeSegmentRoundTrip(t *testing.T) {
	for _, s := range []string{
		"plain", "with space", "dot.dot", "Mixed-Case_09", "slash/colon:", "=already",
	} {
		enc := encodeSegment(s)
		assert.NotContains(t, enc, ".", "encoded segment must be key-safe: %q", enc)
		assert.NotContains(t, enc, " ")
		assert.Equal(t, s, decodeSegment(enc))
	}
}
