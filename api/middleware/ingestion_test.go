package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInternalSecretAllowsMatchingSecret(t *testing.T) {
	called := false
	handler := InternalSecret("pipeline-secret", testMiddlewareLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/ingestion/extraction", nil)
	req.Header.Set("X-Internal-Secret", "pipeline-secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called || rec.Code != http.StatusNoContent {
		t.Fatalf("expected handler to run, status=%d", rec.Code)
	}
}

func TestInternalSecretRejectsMismatch(t *testing.T) {
	handler := InternalSecret("pipeline-secret", testMiddlewareLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))

	for _, presented := range []string{"", "wrong", "pipeline-secret-extra"} {
		req := httptest.NewRequest(http.MethodPost, "/ingestion/extraction", nil)
		if presented != "" {
			req.Header.Set("X-Internal-Secret", presented)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %q got %d", presented, rec.Code)
		}
	}
}

func TestInternalSecretDisabledWithoutSecret(t *testing.T) {
	handler := InternalSecret("", testMiddlewareLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/ingestion/extraction", nil)
	req.Header.Set("X-Internal-Secret", "")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when secret unset, got %d", rec.Code)
	}
}
