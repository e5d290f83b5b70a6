package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/sitebatch/maintenance/internal/auth"
	"github.com/sitebatch/maintenance/internal/middleware"
	"github.com/sitebatch/maintenance/internal/models"
	"go.uber.org/zap"
)

// DefectService defines the row store operations required by the RowHandler.
type DefectService interface {
	ListDefects(ctx context.Context, q models.Query) ([]models.Defect, error)
	CreateDefect(ctx context.Context, caller auth.Identity, nd models.NewDefect) (*models.Defect, error)
	UpdateDefect(ctx context.Context, id string, patch models.DefectPatch) (*models.Defect, error)
	ListActivity(ctx context.Context, q models.Query) ([]models.ActivityEntry, error)
	AddActivity(ctx context.Context, caller auth.Identity, e models.ActivityEntry) (*models.ActivityEntry, error)
}

// RowHandler serves the /rest/v1 tables. Writes answer with the affected
// rows as a JSON array.
type RowHandler struct {
	DefectService DefectService
	Log           *zap.Logger
}

// ListDefects handles GET /rest/v1/defects.
func (h *RowHandler) ListDefects(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	defects, err := h.DefectService.ListDefects(r.Context(), q)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, defects)
}

// CreateDefect handles POST /rest/v1/defects.
func (h *RowHandler) CreateDefect(w http.ResponseWriter, r *http.Request) {
	var nd models.NewDefect
	if err := decodeRow(r.Body, &nd); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	caller, _ := middleware.GetIdentityFromContext(r.Context())
	d, err := h.DefectService.CreateDefect(r.Context(), caller, nd)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, []models.Defect{*d})
}

// UpdateDefect handles PATCH /rest/v1/defects?id=eq.X.
func (h *RowHandler) UpdateDefect(w http.ResponseWriter, r *http.Request) {
	id, err := idFilter(r.URL.Query())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	var patch models.DefectPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	d, err := h.DefectService.UpdateDefect(r.Context(), id, patch)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, []models.Defect{*d})
}

// ListActivity handles GET /rest/v1/defect_activity.
func (h *RowHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	entries, err := h.DefectService.ListActivity(r.Context(), q)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// AddActivity handles POST /rest/v1/defect_activity.
func (h *RowHandler) AddActivity(w http.ResponseWriter, r *http.Request) {
	var e models.ActivityEntry
	if err := decodeRow(r.Body, &e); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	caller, _ := middleware.GetIdentityFromContext(r.Context())
	out, err := h.DefectService.AddActivity(r.Context(), caller, e)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, []models.ActivityEntry{*out})
}

// decodeRow accepts either a JSON object or an array holding exactly one.
func decodeRow(body io.Reader, dst any) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var rows []json.RawMessage
		if err := json.Unmarshal(raw, &rows); err != nil {
			return err
		}
		if len(rows) != 1 {
			return errSingleRow
		}
		raw = rows[0]
	}
	return json.Unmarshal(raw, dst)
}
