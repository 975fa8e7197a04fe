// AngelaMos | 2026
// builder_test.go

package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseQuery(t *testing.T, raw string) url.Values {
	t.Helper()
	params, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return params
}

func TestFilterEqualityAndRange(t *testing.T) {
	params := parseQuery(t, "genre=Technology&price[gte]=20&page=3")

	q := New(params).Filter().Build()

	assert.Equal(t, []Condition{
		{Field: "genre", Op: OpEq, Value: "Technology"},
		{Field: "price", Op: OpGte, Value: "20"},
	}, q.Conditions)
}

func TestFilterReservedParamsSkipped(t *testing.T) {
	params := parseQuery(t,
		"page=2&sort=title&limit=5&fields=id&search=go&include=owner")

	q := New(params).Filter().Build()

	assert.Empty(t, q.Conditions)
}

func TestFilterUnknownBracketOpStaysLiteral(t *testing.T) {
	params := parseQuery(t, "price[weird]=1")

	q := New(params).Filter().Build()

	require.Len(t, q.Conditions, 1)
	assert.Equal(t, "price[weird]", q.Conditions[0].Field)
	assert.Equal(t, OpEq, q.Conditions[0].Op)
}

func TestFilterMultipleConstraintsOnOneField(t *testing.T) {
	params := parseQuery(t, "price[gte]=10&price[lte]=50")

	q := New(params).Filter().Build()

	require.Len(t, q.Conditions, 2)
	for _, c := range q.Conditions {
		assert.Equal(t, "price", c.Field)
	}
}

func TestSearchDefaultsAndAbsence(t *testing.T) {
	q := New(parseQuery(t, "search=javascript")).Search().Build()
	require.NotNil(t, q.Search)
	assert.Equal(t, "javascript", q.Search.Term)
	assert.Equal(t, []string{"title", "author", "description"}, q.Search.Fields)

	q = New(parseQuery(t, "genre=Fiction")).Search().Build()
	assert.Nil(t, q.Search)
}

func TestSearchCustomFields(t *testing.T) {
	q := New(parseQuery(t, "search=amos")).Search("name", "email").Build()
	require.NotNil(t, q.Search)
	assert.Equal(t, []string{"name", "email"}, q.Search.Fields)
}

func TestSortParsing(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []SortKey
	}{
		{
			name: "absent defaults to newest first",
			raw:  "",
			want: []SortKey{{Field: "created_at", Desc: true}},
		},
		{
			name: "single ascending",
			raw:  "sort=title",
			want: []SortKey{{Field: "title", Desc: false}},
		},
		{
			name: "mixed directions",
			raw:  "sort=-price,title",
			want: []SortKey{
				{Field: "price", Desc: true},
				{Field: "title", Desc: false},
			},
		},
		{
			name: "empty segments dropped",
			raw:  "sort=,,-rating,",
			want: []SortKey{{Field: "rating", Desc: true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New(parseQuery(t, tt.raw)).Sort().Build()
			assert.Equal(t, tt.want, q.Sort)
		})
	}
}

func TestProjectParsing(t *testing.T) {
	q := New(parseQuery(t, "fields=title, price ,author")).Project().Build()
	assert.Equal(t, []string{"title", "price", "author"}, q.Fields)

	q = New(parseQuery(t, "")).Project().Build()
	assert.Nil(t, q.Fields)
}

func TestPaginateDefaultsAndClamp(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantPage  int
		wantLimit int
	}{
		{"defaults", "", 1, 10},
		{"explicit", "page=4&limit=25", 4, 25},
		{"limit clamped", "limit=9999", 1, 100},
		{"non-numeric falls back", "page=abc&limit=xyz", 1, 10},
		{"zero and negative fall back", "page=0&limit=-5", 1, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New(parseQuery(t, tt.raw)).Paginate().Build()
			assert.Equal(t, tt.wantPage, q.Page)
			assert.Equal(t, tt.wantLimit, q.Limit)
			assert.Equal(t, (tt.wantPage-1)*tt.wantLimit, q.Offset)
		})
	}
}

func TestTransformsComposeInAnyOrder(t *testing.T) {
	params := parseQuery(t,
		"genre=Fiction&search=sea&sort=-price&fields=title,price&page=2&limit=5")

	forward := New(params).
		Filter().Search().Sort().Project().Paginate().Build()
	backward := New(params).
		Paginate().Project().Sort().Search().Filter().Build()

	assert.Equal(t, forward, backward)
}

func TestTransformsAreIdempotent(t *testing.T) {
	params := parseQuery(t, "genre=Fiction&page=2&limit=5&sort=-price")

	once := New(params).Filter().Sort().Paginate().Build()
	twice := New(params).
		Filter().Filter().Sort().Sort().Paginate().Paginate().Build()

	assert.Equal(t, once, twice)
}

func TestBuilderIsImmutable(t *testing.T) {
	params := parseQuery(t, "genre=Fiction&limit=50")

	base := New(params)
	withFilter := base.Filter()
	withPaging := base.Paginate()

	// The base builder must be untouched by derived transforms.
	q := base.Build()
	assert.Empty(t, q.Conditions)
	assert.Equal(t, DefaultLimit, q.Limit)

	assert.Len(t, withFilter.Build().Conditions, 1)
	assert.Equal(t, 50, withPaging.Build().Limit)
}
