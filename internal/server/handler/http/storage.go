package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sitebatch/maintenance/internal/middleware"
	"github.com/sitebatch/maintenance/internal/models"
	"go.uber.org/zap"
)

// MaxObjectSize caps the size of an uploaded photo.
const MaxObjectSize = 20 << 20

// StorageService defines the object storage operations required by the StorageHandler.
type StorageService interface {
	Upload(ctx context.Context, owner, bucket, name, contentType string, data []byte) error
	Sign(ctx context.Context, bucket, name string, ttl time.Duration) (string, error)
	Fetch(ctx context.Context, bucket, name, token string) (*models.Object, error)
}

// StorageHandler serves the /storage/v1 endpoints.
type StorageHandler struct {
	StorageService StorageService
	Log            *zap.Logger
}

func objectPath(r *http.Request) (string, string) {
	return chi.URLParam(r, "bucket"), chi.URLParam(r, "*")
}

// Upload handles POST /storage/v1/object/{bucket}/{name}. The request body
// is the raw object.
func (h *StorageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	bucket, name := objectPath(r)
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxObjectSize))
	if err != nil {
		http.Error(w, "object too large", http.StatusRequestEntityTooLarge)
		return
	}
	caller, _ := middleware.GetIdentityFromContext(r.Context())
	if err := h.StorageService.Upload(r.Context(), caller.UserID, bucket, name, r.Header.Get("Content-Type"), data); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"Key": bucket + "/" + name})
}

// Sign handles POST /storage/v1/object/sign/{bucket}/{name} with a body of
// {"expiresIn": seconds}.
func (h *StorageHandler) Sign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExpiresIn int64 `json:"expiresIn"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ExpiresIn <= 0 {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	bucket, name := objectPath(r)
	signed, err := h.StorageService.Sign(r.Context(), bucket, name, time.Duration(req.ExpiresIn)*time.Second)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"signedURL": signed})
}

// Download handles GET /storage/v1/object/sign/{bucket}/{name}?token=….
func (h *StorageHandler) Download(w http.ResponseWriter, r *http.Request) {
	bucket, name := objectPath(r)
	obj, err := h.StorageService.Fetch(r.Context(), bucket, name, r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = w.Write(obj.Data)
}
