package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sitebatch/maintenance/internal/models"
)

// Tables of the row store.
const (
	TableDefects  = "defects"
	TableActivity = "defect_activity"
)

// encodeQuery renders q as row-store parameters: column=eq.value,
// order=column.asc|desc and limit=N.
func encodeQuery(q models.Query) url.Values {
	v := url.Values{}
	for _, f := range q.Filters {
		v.Add(f.Column, "eq."+f.Value)
	}
	if q.Order != nil {
		dir := "desc"
		if q.Order.Ascending {
			dir = "asc"
		}
		v.Set("order", q.Order.Column+"."+dir)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

func rowsPath(table string) string {
	return "/rest/v1/" + url.PathEscape(table)
}

// Select decodes the rows of table matching q into dest, which must point
// to a slice.
func (c *Client) Select(ctx context.Context, table string, q models.Query, dest any) error {
	req, err := c.newRequest(ctx, http.MethodGet, rowsPath(table), encodeQuery(q), nil)
	if err != nil {
		return err
	}
	if err := c.authorize(req); err != nil {
		return err
	}
	return c.send(req, dest)
}

// Insert writes row to table and decodes the stored representation into
// dest when dest is non-nil.
func (c *Client) Insert(ctx context.Context, table string, row, dest any) error {
	req, err := c.newRequest(ctx, http.MethodPost, rowsPath(table), nil, row)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=representation")
	if err := c.authorize(req); err != nil {
		return err
	}
	return c.sendSingle(req, dest)
}

// Update applies patch to the row of table with the given id.
func (c *Client) Update(ctx context.Context, table, id string, patch any) error {
	if id == "" {
		return fmt.Errorf("%w: update without id", models.ErrInvalidInput)
	}
	req, err := c.newRequest(ctx, http.MethodPatch, rowsPath(table), url.Values{"id": {"eq." + id}}, patch)
	if err != nil {
		return err
	}
	if err := c.authorize(req); err != nil {
		return err
	}
	return c.send(req, nil)
}

var errNoRows = errors.New("backend returned no rows")

// sendSingle decodes the first row of an array answer into dest.
func (c *Client) sendSingle(req *http.Request, dest any) error {
	if dest == nil {
		return c.send(req, nil)
	}
	var rows []json.RawMessage
	if err := c.send(req, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return errNoRows
	}
	if err := json.Unmarshal(rows[0], dest); err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	return nil
}
