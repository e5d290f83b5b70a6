package http

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sitebatch/maintenance/internal/models"
)

// uuidColumns hold uuids; other values would only fail in the database.
var uuidColumns = map[string]bool{"id": true, "defect_id": true, "created_by": true}

// parseQuery reads row-store query parameters: column=eq.value filters,
// order=column.asc|column.desc and limit=N. Filters on uuid columns must
// hold a uuid. The select parameter is accepted and ignored.
func parseQuery(values url.Values) (models.Query, error) {
	var q models.Query
	for _, key := range slices.Sorted(maps.Keys(values)) {
		vals := values[key]
		switch key {
		case "select":
		case "order":
			col, dir, _ := strings.Cut(vals[0], ".")
			if col == "" {
				return q, fmt.Errorf("%w: bad order %q", models.ErrInvalidInput, vals[0])
			}
			switch dir {
			case "", "asc":
				q.Order = &models.Order{Column: col, Ascending: true}
			case "desc":
				q.Order = &models.Order{Column: col}
			default:
				return q, fmt.Errorf("%w: bad order direction %q", models.ErrInvalidInput, dir)
			}
		case "limit":
			n, err := strconv.Atoi(vals[0])
			if err != nil || n < 0 {
				return q, fmt.Errorf("%w: bad limit %q", models.ErrInvalidInput, vals[0])
			}
			q.Limit = n
		default:
			for _, v := range vals {
				op, operand, ok := strings.Cut(v, ".")
				if !ok || op != "eq" {
					return q, fmt.Errorf("%w: unsupported filter %s=%s", models.ErrInvalidInput, key, v)
				}
				if uuidColumns[key] {
					if _, err := uuid.Parse(operand); err != nil {
						return q, fmt.Errorf("%w: %s must be a uuid", models.ErrInvalidInput, key)
					}
				}
				q.Filters = append(q.Filters, models.Filter{Column: key, Value: operand})
			}
		}
	}
	return q, nil
}

// idFilter returns the value of the single id=eq.X filter that row updates
// require.
func idFilter(values url.Values) (string, error) {
	q, err := parseQuery(values)
	if err != nil {
		return "", err
	}
	if len(q.Filters) != 1 || q.Filters[0].Column != "id" || q.Filters[0].Value == "" {
		return "", fmt.Errorf("%w: update requires exactly one id=eq filter", models.ErrInvalidInput)
	}
	return q.Filters[0].Value, nil
}
