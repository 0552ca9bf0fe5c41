package store

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/excel-analytics/internal/core"
)

// whereBuilder assembles a parameterized WHERE clause. Placeholders are
// numbered in the order conditions are added.
type whereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

func newWhereBuilder() *whereBuilder {
	return &whereBuilder{argIndex: 1}
}

func (wb *whereBuilder) placeholder(v any) string {
	wb.args = append(wb.args, v)
	p := fmt.Sprintf("$%d", wb.argIndex)
	wb.argIndex++
	return p
}

// Add matches column = value. Empty values are skipped.
func (wb *whereBuilder) Add(column, value string) {
	if value == "" {
		return
	}
	wb.conditions = append(wb.conditions, column+" = "+wb.placeholder(value))
}

// AddCond adds a condition whose single %s is replaced by the placeholder
// for value, e.g. AddCond("created_at >= %s", since).
func (wb *whereBuilder) AddCond(format string, value any) {
	wb.conditions = append(wb.conditions, fmt.Sprintf(format, wb.placeholder(value)))
}

// AddRaw adds a condition without arguments.
func (wb *whereBuilder) AddRaw(cond string) {
	wb.conditions = append(wb.conditions, cond)
}

// AddSearch matches term case-insensitively anywhere in any of columns.
// An empty term is skipped.
func (wb *whereBuilder) AddSearch(term string, columns ...string) {
	term = strings.TrimSpace(term)
	if term == "" || len(columns) == 0 {
		return
	}
	p := wb.placeholder("%" + escapeLike(term) + "%")
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = c + " ILIKE " + p
	}
	wb.conditions = append(wb.conditions, "("+strings.Join(parts, " OR ")+")")
}

// NextArgIndex is the number the next placeholder will get.
func (wb *whereBuilder) NextArgIndex() int {
	return wb.argIndex
}

// Build returns " WHERE ..." and its arguments, or "" and nil.
func (wb *whereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// orderBy renders ORDER BY for a whitelisted sort. Unknown keys fall back to
// created_at; id breaks ties so paging is stable.
func orderBy(s core.Sort, columns map[string]string, idColumn string) string {
	col, ok := columns[s.By]
	if !ok {
		col = columns["createdAt"]
	}
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, %s %s", col, dir, idColumn, dir)
}

// limitOffset appends LIMIT/OFFSET placeholders for p after the builder's
// arguments.
func limitOffset(wb *whereBuilder, p core.Page) (string, []any) {
	n := wb.NextArgIndex()
	_, args := wb.Build()
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", n, n+1), append(args, p.Limit, p.Offset())
}
