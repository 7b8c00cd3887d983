package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestIDHonorsCallerHeader(t *testing.T) {
	var seen string
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	r := httptest.NewRequest("GET", "/plans", nil)
	r.Header.Set("X-Request-Id", "caller-supplied")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if seen != "caller-supplied" {
		t.Fatalf("context request id = %q, want caller-supplied", seen)
	}
	if got := w.Header().Get("X-Request-Id"); got != "caller-supplied" {
		t.Fatalf("response header = %q, want caller-supplied", got)
	}
}

func TestRequestIDGeneratesWhenMissing(t *testing.T) {
	var seen string
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/plans", nil))

	if seen == "" {
		t.Fatal("expected a generated request id in context")
	}
	if got := w.Header().Get("X-Request-Id"); got != seen {
		t.Fatalf("response header %q does not match context id %q", got, seen)
	}
}
