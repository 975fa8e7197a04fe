// AngelaMos | 2026
// postgres.go

package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrBadField marks a field name that cannot be a column identifier; callers
// surface it as a bad-request.
var ErrBadField = errors.New("invalid query field")

var opSQL = map[Op]string{
	OpEq:  "=",
	OpGte: ">=",
	OpGt:  ">",
	OpLte: "<=",
	OpLt:  "<",
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Renderer turns a Query descriptor into parameterized Postgres SQL for one
// table. Columns maps exposed field names to column names; fields without a
// mapping must name a default column directly. Anything outside that set is
// rejected before it can reach the database as an undefined column.
type Renderer struct {
	Table   string
	Columns map[string]string
	// Default is the projection applied when the query requests no fields.
	Default []string
}

func (r Renderer) column(field string) (string, error) {
	if col, ok := r.Columns[field]; ok {
		return col, nil
	}

	field = strings.ToLower(field)
	if !identPattern.MatchString(field) || !r.knownColumn(field) {
		return "", fmt.Errorf("%w: %q", ErrBadField, field)
	}

	return field, nil
}

func (r Renderer) knownColumn(col string) bool {
	for _, c := range r.Default {
		if c == col {
			return true
		}
	}
	for _, c := range r.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Select renders the full listing statement: projection, conjunctive filters,
// disjunctive search, multi-key sort, limit and offset.
func (r Renderer) Select(q Query) (string, []any, error) {
	columns, err := r.projection(q)
	if err != nil {
		return "", nil, err
	}

	where, args, err := r.whereClause(q)
	if err != nil {
		return "", nil, err
	}

	orderBy, err := r.orderClause(q)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", strings.Join(columns, ", "), r.Table)
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	if orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(orderBy)
	}
	fmt.Fprintf(&sb, " LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, q.Limit, q.Offset)

	return sb.String(), args, nil
}

// Count renders the matching row count for the same filters and search,
// ignoring projection, sort and pagination.
func (r Renderer) Count(q Query) (string, []any, error) {
	where, args, err := r.whereClause(q)
	if err != nil {
		return "", nil, err
	}

	sql := "SELECT COUNT(*) FROM " + r.Table
	if where != "" {
		sql += " WHERE " + where
	}

	return sql, args, nil
}

func (r Renderer) projection(q Query) ([]string, error) {
	if len(q.Fields) == 0 {
		return r.Default, nil
	}

	// Requested fields outside the projectable set are dropped rather than
	// producing a failing statement.
	projectable := make(map[string]struct{}, len(r.Default))
	for _, col := range r.Default {
		projectable[col] = struct{}{}
	}

	var columns []string
	for _, field := range q.Fields {
		col, ok := r.Columns[field]
		if !ok {
			col = strings.ToLower(field)
		}
		if _, ok := projectable[col]; ok {
			columns = append(columns, col)
		}
	}

	if len(columns) == 0 {
		return r.Default, nil
	}

	return columns, nil
}

func (r Renderer) whereClause(q Query) (string, []any, error) {
	var parts []string
	var args []any

	for _, cond := range q.Conditions {
		col, err := r.column(cond.Field)
		if err != nil {
			return "", nil, err
		}
		args = append(args, cond.Value)
		parts = append(parts, fmt.Sprintf("%s %s $%d", col, opSQL[cond.Op], len(args)))
	}

	if q.Search != nil {
		var ors []string
		args = append(args, "%"+escapeLike(q.Search.Term)+"%")
		idx := len(args)
		for _, field := range q.Search.Fields {
			col, err := r.column(field)
			if err != nil {
				return "", nil, err
			}
			ors = append(ors, fmt.Sprintf("%s ILIKE $%d", col, idx))
		}
		parts = append(parts, "("+strings.Join(ors, " OR ")+")")
	}

	return strings.Join(parts, " AND "), args, nil
}

func (r Renderer) orderClause(q Query) (string, error) {
	if len(q.Sort) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(q.Sort))
	for _, key := range q.Sort {
		col, err := r.column(key.Field)
		if err != nil {
			return "", err
		}
		dir := "ASC"
		if key.Desc {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
	}

	return strings.Join(parts, ", "), nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
