package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sitebatch/maintenance/internal/models"
	"go.uber.org/zap"
)

// fakeStorageService implements StorageService for testing.
type fakeStorageService struct {
	err error

	gotOwner, gotBucket, gotName, gotType, gotToken string
	gotData                                         []byte
	gotTTL                                          time.Duration
}

func (f *fakeStorageService) Upload(_ context.Context, owner, bucket, name, contentType string, data []byte) error {
	f.gotOwner, f.gotBucket, f.gotName, f.gotType, f.gotData = owner, bucket, name, contentType, data
	return f.err
}

func (f *fakeStorageService) Sign(_ context.Context, bucket, name string, ttl time.Duration) (string, error) {
	f.gotBucket, f.gotName, f.gotTTL = bucket, name, ttl
	return "/object/sign/" + bucket + "/" + name + "?token=t", f.err
}

func (f *fakeStorageService) Fetch(_ context.Context, bucket, name, token string) (*models.Object, error) {
	f.gotBucket, f.gotName, f.gotToken = bucket, name, token
	if f.err != nil {
		return nil, f.err
	}
	return &models.Object{ContentType: "image/jpeg", Data: []byte("jpeg")}, nil
}

// routeStorage mounts the handler on a bare chi router so URL params resolve.
func routeStorage(h *StorageHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/storage/v1/object/sign/{bucket}/*", h.Download)
	r.Post("/storage/v1/object/sign/{bucket}/*", func(w http.ResponseWriter, r *http.Request) {
		h.Sign(w, withCaller(r))
	})
	r.Post("/storage/v1/object/{bucket}/*", func(w http.ResponseWriter, r *http.Request) {
		h.Upload(w, withCaller(r))
	})
	return r
}

func TestStorageHandler_Upload(t *testing.T) {
	svc := &fakeStorageService{}
	srv := routeStorage(&StorageHandler{StorageService: svc, Log: zap.NewNop()})

	req := httptest.NewRequest(http.MethodPost, "/storage/v1/object/repair-photos/d1_repair_1714557600000_0.jpg", bytes.NewReader([]byte("jpeg")))
	req.Header.Set("Content-Type", "image/jpeg")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.gotOwner != "u1" || svc.gotBucket != "repair-photos" || svc.gotName != "d1_repair_1714557600000_0.jpg" {
		t.Errorf("unexpected upload call: %+v", svc)
	}
	if svc.gotType != "image/jpeg" || string(svc.gotData) != "jpeg" {
		t.Errorf("unexpected payload: %q %q", svc.gotType, svc.gotData)
	}
	if !strings.Contains(rec.Body.String(), `"Key":"repair-photos/d1_repair_1714557600000_0.jpg"`) {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestStorageHandler_UploadConflict(t *testing.T) {
	srv := routeStorage(&StorageHandler{StorageService: &fakeStorageService{err: models.ErrObjectExists}, Log: zap.NewNop()})
	req := httptest.NewRequest(http.MethodPost, "/storage/v1/object/defect-photos/a.jpg", bytes.NewReader([]byte("x")))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestStorageHandler_Sign(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"ok", `{"expiresIn":31536000}`, http.StatusOK},
		{"zero ttl", `{"expiresIn":0}`, http.StatusBadRequest},
		{"garbage", `nope`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeStorageService{}
			srv := routeStorage(&StorageHandler{StorageService: svc, Log: zap.NewNop()})
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/storage/v1/object/sign/defect-photos/a.jpg", strings.NewReader(tc.body)))

			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, rec.Code)
			}
			if tc.code == http.StatusOK {
				if svc.gotTTL != 365*24*time.Hour {
					t.Errorf("ttl = %v; want 365 days", svc.gotTTL)
				}
				if !strings.Contains(rec.Body.String(), `"signedURL":"/object/sign/defect-photos/a.jpg?token=t"`) {
					t.Errorf("unexpected body %q", rec.Body.String())
				}
			}
		})
	}
}

func TestStorageHandler_Download(t *testing.T) {
	svc := &fakeStorageService{}
	srv := routeStorage(&StorageHandler{StorageService: svc, Log: zap.NewNop()})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/storage/v1/object/sign/defect-photos/a.jpg?token=abc", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "jpeg" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "image/jpeg" || svc.gotToken != "abc" {
		t.Errorf("unexpected headers or token: %q %q", rec.Header().Get("Content-Type"), svc.gotToken)
	}

	svc.err = models.ErrInvalidToken
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/storage/v1/object/sign/defect-photos/a.jpg?token=bad", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}
