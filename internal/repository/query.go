package repository

import (
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/sitebatch/maintenance/internal/models"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// columnSet whitelists the columns a caller may filter or sort on.
type columnSet map[string]bool

// apply adds the filters, order and limit of q to b, rejecting columns
// outside allowed with models.ErrInvalidInput.
func (allowed columnSet) apply(b squirrel.SelectBuilder, q models.Query) (squirrel.SelectBuilder, error) {
	for _, f := range q.Filters {
		if !allowed[f.Column] {
			return b, fmt.Errorf("%w: cannot filter on %q", models.ErrInvalidInput, f.Column)
		}
		b = b.Where(squirrel.Eq{f.Column: f.Value})
	}
	if q.Order != nil {
		if !allowed[q.Order.Column] {
			return b, fmt.Errorf("%w: cannot order by %q", models.ErrInvalidInput, q.Order.Column)
		}
		dir := "DESC"
		if q.Order.Ascending {
			dir = "ASC"
		}
		b = b.OrderBy(q.Order.Column + " " + dir)
	}
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}
	return b, nil
}
