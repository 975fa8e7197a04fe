// AngelaMos | 2026
// builder.go

package query

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Reserved parameter names that never become filter conditions.
var reservedParams = map[string]struct{}{
	"page":    {},
	"sort":    {},
	"limit":   {},
	"fields":  {},
	"search":  {},
	"include": {},
}

type Op string

const (
	OpEq  Op = "eq"
	OpGte Op = "gte"
	OpGt  Op = "gt"
	OpLte Op = "lte"
	OpLt  Op = "lt"
)

var rangeOps = map[string]Op{
	"gte": OpGte,
	"gt":  OpGt,
	"lte": OpLte,
	"lt":  OpLt,
}

// Condition is a single conjunctive constraint on one field.
type Condition struct {
	Field string
	Op    Op
	Value string
}

type SortKey struct {
	Field string
	Desc  bool
}

// SearchClause matches when the term case-insensitively substring-matches at
// least one of Fields.
type SearchClause struct {
	Term   string
	Fields []string
}

// Query is the final composed descriptor handed to a repository for
// execution. It is store-agnostic: rendering into SQL (or anything else)
// happens at the edge.
type Query struct {
	Conditions []Condition
	Search     *SearchClause
	Sort       []SortKey
	Fields     []string
	Page       int
	Limit      int
	Offset     int
}

// Builder translates untyped request query parameters into a Query. It is an
// immutable value: every transform returns a new Builder, so transforms can
// be applied zero or more times in any order, and re-applying one simply
// recomputes its slice of the descriptor from the same parameters.
type Builder struct {
	params url.Values

	conditions []Condition
	search     *SearchClause
	sortKeys   []SortKey
	fields     []string
	page       int
	limit      int
}

func New(params url.Values) Builder {
	return Builder{
		params: params,
		page:   DefaultPage,
		limit:  DefaultLimit,
	}
}

// Filter turns every non-reserved parameter into an equality constraint, or
// into range constraints when the key uses bracket operator syntax
// (price[gte]=20). Unrecognized fields pass through untouched; this layer
// does no schema validation.
func (b Builder) Filter() Builder {
	keys := make([]string, 0, len(b.params))
	for key := range b.params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var conditions []Condition
	for _, key := range keys {
		field, op := parseFilterKey(key)
		if _, reserved := reservedParams[field]; reserved {
			continue
		}
		for _, value := range b.params[key] {
			conditions = append(conditions, Condition{
				Field: field,
				Op:    op,
				Value: value,
			})
		}
	}

	b.conditions = conditions
	return b
}

// parseFilterKey splits bracket operator syntax: "price[gte]" becomes
// (price, gte). A bracket suffix that is not a known operator is kept as part
// of the literal field name.
func parseFilterKey(key string) (string, Op) {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return key, OpEq
	}

	field := key[:open]
	opName := key[open+1 : len(key)-1]
	if op, ok := rangeOps[opName]; ok {
		return field, op
	}

	return key, OpEq
}

// Search installs the disjunctive substring clause when the search parameter
// is present. With no explicit fields the catalog text columns are used.
func (b Builder) Search(fields ...string) Builder {
	term := strings.TrimSpace(b.params.Get("search"))
	if term == "" {
		b.search = nil
		return b
	}

	if len(fields) == 0 {
		fields = []string{"title", "author", "description"}
	}

	b.search = &SearchClause{Term: term, Fields: fields}
	return b
}

// Sort parses the comma-separated sort parameter; a leading '-' means
// descending. Absent parameter means newest first.
func (b Builder) Sort() Builder {
	raw := strings.TrimSpace(b.params.Get("sort"))
	if raw == "" {
		b.sortKeys = []SortKey{{Field: "created_at", Desc: true}}
		return b
	}

	var keys []SortKey
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		desc := false
		if strings.HasPrefix(part, "-") {
			desc = true
			part = part[1:]
		}
		if part == "" {
			continue
		}

		keys = append(keys, SortKey{Field: part, Desc: desc})
	}

	if len(keys) == 0 {
		keys = []SortKey{{Field: "created_at", Desc: true}}
	}

	b.sortKeys = keys
	return b
}

// Project parses the comma-separated fields allow-list. Absent means all
// attributes (minus internal markers, which rendering never exposes).
func (b Builder) Project() Builder {
	raw := strings.TrimSpace(b.params.Get("fields"))
	if raw == "" {
		b.fields = nil
		return b
	}

	var fields []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			fields = append(fields, part)
		}
	}

	b.fields = fields
	return b
}

// Paginate computes page/limit with defaults. Parse failures fall back to
// defaults rather than erroring; a limit above the cap is clamped, not
// rejected.
func (b Builder) Paginate() Builder {
	b.page = positiveIntParam(b.params.Get("page"), DefaultPage)
	b.limit = positiveIntParam(b.params.Get("limit"), DefaultLimit)
	if b.limit > MaxLimit {
		b.limit = MaxLimit
	}
	return b
}

func positiveIntParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// Build assembles the final descriptor.
func (b Builder) Build() Query {
	return Query{
		Conditions: b.conditions,
		Search:     b.search,
		Sort:       b.sortKeys,
		Fields:     b.fields,
		Page:       b.page,
		Limit:      b.limit,
		Offset:     (b.page - 1) * b.limit,
	}
}
