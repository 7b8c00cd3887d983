package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/billforge/billforge-backend/pkg/errors"
)

type namePayload struct {
	Name string `json:"name"`
}

func TestDecodeJSONBody(t *testing.T) {
	r := httptest.NewRequest("POST", "/products", strings.NewReader(`{"name":"Ledger"}`))
	var dest namePayload
	if err := DecodeJSONBody(r, &dest); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if dest.Name != "Ledger" {
		t.Fatalf("name = %q", dest.Name)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest("POST", "/products", strings.NewReader(`{"name":"Ledger","extra":true}`))
	var dest namePayload
	err := DecodeJSONBody(r, &dest)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	body := `{"name":"` + strings.Repeat("a", 2<<20) + `"}`
	r := httptest.NewRequest("POST", "/products", strings.NewReader(body))
	var dest namePayload
	err := DecodeJSONBody(r, &dest)
	if err == nil {
		t.Fatal("expected oversized body to be rejected")
	}
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error %v", err)
	}
	details, ok := appErr.Details().(map[string]any)
	if !ok || details["max_bytes"] != int64(1<<20) {
		t.Fatalf("details = %v", appErr.Details())
	}
}
