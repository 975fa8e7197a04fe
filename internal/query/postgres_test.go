// AngelaMos | 2026
// postgres_test.go

package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRenderer = Renderer{
	Table: "books",
	Columns: map[string]string{
		"discountPrice": "discount_price",
		// filterable without being part of the default projection
		"genre": "genre",
	},
	Default: []string{"id", "title", "author", "price", "created_at"},
}

func TestSelectPlainPagination(t *testing.T) {
	q := Query{Page: 1, Limit: 10, Offset: 0}

	sql, args, err := testRenderer.Select(q)
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id, title, author, price, created_at FROM books "+
			"LIMIT $1 OFFSET $2",
		sql)
	assert.Equal(t, []any{10, 0}, args)
}

func TestSelectFiltersAndSearch(t *testing.T) {
	q := Query{
		Conditions: []Condition{
			{Field: "genre", Op: OpEq, Value: "Technology"},
			{Field: "price", Op: OpGte, Value: "20"},
		},
		Search: &SearchClause{Term: "go", Fields: []string{"title", "author"}},
		Sort:   []SortKey{{Field: "price", Desc: true}},
		Page:   2,
		Limit:  5,
		Offset: 5,
	}

	sql, args, err := testRenderer.Select(q)
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id, title, author, price, created_at FROM books "+
			"WHERE genre = $1 AND price >= $2 "+
			"AND (title ILIKE $3 OR author ILIKE $3) "+
			"ORDER BY price DESC "+
			"LIMIT $4 OFFSET $5",
		sql)
	assert.Equal(t, []any{"Technology", "20", "%go%", 5, 5}, args)
}

func TestSelectAliasedColumn(t *testing.T) {
	q := Query{
		Conditions: []Condition{
			{Field: "discountPrice", Op: OpLt, Value: "15"},
		},
		Limit: 10,
	}

	sql, _, err := testRenderer.Select(q)
	require.NoError(t, err)
	assert.Contains(t, sql, "discount_price < $1")
}

func TestSelectRejectsMalformedIdentifier(t *testing.T) {
	q := Query{
		Conditions: []Condition{
			{Field: "title; DROP TABLE books", Op: OpEq, Value: "x"},
		},
		Limit: 10,
	}

	_, _, err := testRenderer.Select(q)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadField)
}

func TestSelectRejectsUnknownFilterField(t *testing.T) {
	// Well-formed identifiers that are not columns of the table must fail
	// here, not surface as an undefined-column error from postgres.
	q := Query{
		Conditions: []Condition{{Field: "publisher", Op: OpEq, Value: "x"}},
		Limit:      10,
	}

	_, _, err := testRenderer.Select(q)
	assert.ErrorIs(t, err, ErrBadField)
}

func TestSelectRejectsUnknownSortField(t *testing.T) {
	q := Query{
		Sort:  []SortKey{{Field: "popularity", Desc: true}},
		Limit: 10,
	}

	_, _, err := testRenderer.Select(q)
	assert.ErrorIs(t, err, ErrBadField)
}

func TestCountRejectsUnknownSearchField(t *testing.T) {
	q := Query{
		Search: &SearchClause{Term: "go", Fields: []string{"summary"}},
		Limit:  10,
	}

	_, _, err := testRenderer.Count(q)
	assert.ErrorIs(t, err, ErrBadField)
}

func TestProjectionIntersectsKnownColumns(t *testing.T) {
	// password_hash is a valid identifier but not in the projectable set, so
	// it is silently dropped rather than leaked.
	q := Query{Fields: []string{"title", "password_hash"}, Limit: 10}

	sql, _, err := testRenderer.Select(q)
	require.NoError(t, err)
	assert.Equal(t, "SELECT title FROM books LIMIT $1 OFFSET $2", sql)
}

func TestProjectionFallsBackWhenNothingSurvives(t *testing.T) {
	q := Query{Fields: []string{"secret_col"}, Limit: 10}

	sql, _, err := testRenderer.Select(q)
	require.NoError(t, err)
	assert.Contains(t, sql, "SELECT id, title, author, price, created_at")
}

func TestCountIgnoresSortAndPagination(t *testing.T) {
	q := Query{
		Conditions: []Condition{{Field: "genre", Op: OpEq, Value: "Fiction"}},
		Sort:       []SortKey{{Field: "title"}},
		Page:       7,
		Limit:      50,
		Offset:     300,
	}

	sql, args, err := testRenderer.Count(q)
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM books WHERE genre = $1", sql)
	assert.Equal(t, []any{"Fiction"}, args)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%`, escapeLike("50%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c\\d`, escapeLike(`c\d`))
}
