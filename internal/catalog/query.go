package catalog

import (
	"fmt"
	"strings"
)

// Query is a compiled browse request. The same WHERE clause and arguments feed
// both the page select and the count so the two always agree.
type Query struct {
	Where   []string
	Args    []interface{}
	OrderBy string
	Limit   int
	Offset  int
}

// Build turns filters into a Query. Invalid filters return an error wrapping
// ErrInvalidFilter and no query.
func Build(f Filters) (Query, error) {
	if err := f.Validate(); err != nil {
		return Query{}, err
	}

	q := Query{
		Where:  make([]string, 0, 4),
		Args:   make([]interface{}, 0, 5),
		Limit:  PageSize,
		Offset: f.Page * PageSize,
	}
	arg := func(value interface{}) string {
		q.Args = append(q.Args, value)
		return fmt.Sprintf("$%d", len(q.Args))
	}

	if genre := NormalizeGenre(f.Genre); genre != "" {
		q.Where = append(q.Where, fmt.Sprintf("genre_keys @> ARRAY[%s]::text[]", arg(genre)))
	}
	if f.Decade != nil {
		q.Where = append(q.Where, rangeClause("year", *f.Decade, arg))
	}
	if f.Runtime != nil {
		q.Where = append(q.Where, rangeClause("runtime", *f.Runtime, arg))
	}
	if service := NormalizeService(f.Service); service != "" {
		pattern := "%" + escapeLike(service) + "%"
		q.Where = append(q.Where, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM unnest(service_names) AS sn WHERE sn LIKE %s ESCAPE '\')`, arg(pattern)))
	}

	q.OrderBy = orderBy(f.Sort)
	return q, nil
}

// WhereSQL renders the WHERE clause, or "" when nothing filters.
func (q Query) WhereSQL() string {
	if len(q.Where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.Where, " AND ")
}

// SelectSQL renders the page query over table.
func (q Query) SelectSQL(columns, table string) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(columns)
	b.WriteString(" FROM ")
	b.WriteString(table)
	b.WriteString(q.WhereSQL())
	b.WriteString(" ORDER BY ")
	b.WriteString(q.OrderBy)
	b.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", q.Limit, q.Offset))
	return b.String()
}

// CountSQL renders the total-count query over table.
func (q Query) CountSQL(table string) string {
	return "SELECT COUNT(*) FROM " + table + q.WhereSQL()
}

func rangeClause(column string, b Bucket, arg func(interface{}) string) string {
	if b.Max == nil {
		return fmt.Sprintf("%s >= %s", column, arg(b.Min))
	}
	return fmt.Sprintf("%s BETWEEN %s AND %s", column, arg(b.Min), arg(*b.Max))
}

// Zero ratings mean unknown and sort with NULLs. Titles compare bytewise so
// the order does not depend on the database locale. Every order ends on id so
// equal keys have a stable position across pages.
func orderBy(s Sort) string {
	switch s {
	case SortRating:
		return "NULLIF(rating, 0) DESC NULLS LAST, id ASC"
	case SortYearDesc:
		return "year DESC NULLS LAST, id ASC"
	case SortYearAsc:
		return "year ASC NULLS LAST, id ASC"
	case SortTitle:
		return `lower(title) COLLATE "C" ASC, id ASC`
	case SortRecent:
		return "created_at DESC, id ASC"
	default:
		return "featured DESC, NULLIF(rating, 0) DESC NULLS LAST, id ASC"
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
