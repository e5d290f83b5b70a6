package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sitebatch/maintenance/internal/auth"
)

// dummyHandler is a placeholder that records if it was called and the context it received.
type dummyHandler struct {
	called bool
	ctx    context.Context
}

func (d *dummyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.called = true
	d.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

type validatorFunc func(string) (auth.Identity, error)

func (f validatorFunc) ValidateAccessToken(tok string) (auth.Identity, error) { return f(tok) }

var okValidator = validatorFunc(func(tok string) (auth.Identity, error) {
	if tok != "good" {
		return auth.Identity{}, errors.New("bad token")
	}
	return auth.Identity{UserID: "u1", Email: "alice@example.com"}, nil
})

func TestBearerAuth(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantCalled bool
		wantCode   int
	}{
		{"no header", "", false, http.StatusUnauthorized},
		{"wrong scheme", "Basic good", false, http.StatusUnauthorized},
		{"empty token", "Bearer ", false, http.StatusUnauthorized},
		{"invalid token", "Bearer bad", false, http.StatusUnauthorized},
		{"valid token", "Bearer good", true, http.StatusOK},
		{"lower case scheme", "bearer good", true, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dummy := &dummyHandler{}
			h := BearerAuth(okValidator)(dummy)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/rest/v1/defects", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			h.ServeHTTP(rec, req)

			if dummy.called != tt.wantCalled {
				t.Errorf("next called = %v, want %v", dummy.called, tt.wantCalled)
			}
			if rec.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.wantCalled {
				id, ok := GetIdentityFromContext(dummy.ctx)
				if !ok || id.Email != "alice@example.com" || id.UserID != "u1" {
					t.Errorf("unexpected identity in context: %+v (ok=%v)", id, ok)
				}
			}
		})
	}
}

func TestGetIdentityFromContext(t *testing.T) {
	if _, ok := GetIdentityFromContext(context.Background()); ok {
		t.Error("expected no identity in empty context")
	}
	ctx := WithIdentity(context.Background(), auth.Identity{UserID: "bob"})
	id, ok := GetIdentityFromContext(ctx)
	if !ok || id.UserID != "bob" {
		t.Errorf("expected 'bob', got %+v", id)
	}
}
