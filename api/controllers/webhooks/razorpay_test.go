package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	razorpaywebhook "github.com/billforge/billforge-backend/internal/webhooks/razorpay"
)

type fakeWebhookService struct {
	calls int
	err   error
	last  *razorpaywebhook.Event
}

func (f *fakeWebhookService) HandleEvent(_ context.Context, event *razorpaywebhook.Event) error {
	f.calls++
	f.last = event
	return f.err
}

type fakeVerifier struct {
	valid bool
}

func (f *fakeVerifier) VerifyWebhookSignature([]byte, string) bool { return f.valid }

type memoryStore struct {
	values map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	if v, exists := m.values[key]; exists {
		return v, nil
	}
	return "", goredis.Nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, exists := m.values[key]; exists {
		return false, nil
	}
	m.values[key] = "1"
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

const capturedPayload = `{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1","status":"captured","amount":49900}}}}`

func newGuard(t *testing.T) *razorpaywebhook.IdempotencyGuard {
	t.Helper()
	guard, err := razorpaywebhook.NewIdempotencyGuard(newMemoryStore(), time.Minute, "razorpay-webhook")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	return guard
}

func postEvent(handler http.HandlerFunc, eventID, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", bytes.NewReader([]byte(capturedPayload)))
	if signature != "" {
		req.Header.Set(razorpaySignatureHeader, signature)
	}
	if eventID != "" {
		req.Header.Set(razorpayEventIDHeader, eventID)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRazorpayWebhookSuccessAndIdempotent(t *testing.T) {
	service := &fakeWebhookService{}
	handler := RazorpayWebhook(service, &fakeVerifier{valid: true}, newGuard(t), nil)

	rec := postEvent(handler, "evt_1", "sig")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}
	if service.last == nil || service.last.Event != "payment.captured" {
		t.Fatalf("unexpected event passed to service: %+v", service.last)
	}

	rec = postEvent(handler, "evt_1", "sig")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected duplicate not processed, call count %d", service.calls)
	}
}

func TestRazorpayWebhookInvalidSignature(t *testing.T) {
	service := &fakeWebhookService{}
	handler := RazorpayWebhook(service, &fakeVerifier{valid: false}, newGuard(t), nil)

	rec := postEvent(handler, "evt_1", "bogus")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not run on a bad signature")
	}
}

func TestRazorpayWebhookMissingSignature(t *testing.T) {
	service := &fakeWebhookService{}
	handler := RazorpayWebhook(service, &fakeVerifier{valid: true}, newGuard(t), nil)

	rec := postEvent(handler, "evt_1", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing signature, got %d", rec.Code)
	}
}

func TestRazorpayWebhookReleasesGuardOnHandlerError(t *testing.T) {
	service := &fakeWebhookService{err: context.DeadlineExceeded}
	handler := RazorpayWebhook(service, &fakeVerifier{valid: true}, newGuard(t), nil)

	rec := postEvent(handler, "evt_1", "sig")
	if rec.Code == http.StatusOK {
		t.Fatalf("expected failure status, got 200")
	}

	// The event id must be retryable after a failed handling attempt.
	service.err = nil
	rec = postEvent(handler, "evt_1", "sig")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected retry to succeed, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 2 {
		t.Fatalf("expected two handling attempts, got %d", service.calls)
	}
}
