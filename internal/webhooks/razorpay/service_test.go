package razorpaywebhook

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/billforge/billforge-backend/internal/payments"
	"github.com/billforge/billforge-backend/pkg/db/models"
	pkgerrors "github.com/billforge/billforge-backend/pkg/errors"
)

type stubPaymentService struct {
	applied  []string
	appliedP []string
	failed   []string
	moneyMvd []bool
	applyErr error
}

func (s *stubPaymentService) CreateOrder(ctx context.Context, tenant *models.Tenant, planID string) (*payments.CheckoutOrder, error) {
	return nil, nil
}

func (s *stubPaymentService) VerifyAndApply(ctx context.Context, orderID, paymentID, signature string) error {
	return nil
}

func (s *stubPaymentService) ApplyOutcome(ctx context.Context, orderID, gatewayPaymentID string) error {
	if s.applyErr != nil {
		return s.applyErr
	}
	s.applied = append(s.applied, orderID)
	s.appliedP = append(s.appliedP, gatewayPaymentID)
	return nil
}

func (s *stubPaymentService) HandleFailure(ctx context.Context, orderID string, moneyMoved bool) error {
	s.failed = append(s.failed, orderID)
	s.moneyMvd = append(s.moneyMvd, moneyMoved)
	return nil
}

func (s *stubPaymentService) Status(ctx context.Context, tenantID uuid.UUID, orderID string) (*models.Payment, error) {
	return nil, nil
}

func TestParseEventCapturedShape(t *testing.T) {
	body := []byte(`{
		"event": "payment.captured",
		"payload": {"payment": {"entity": {"id": "pay_9", "order_id": "order_7", "status": "captured", "amount": 149900}}}
	}`)

	event, err := ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	entity := event.Payload.Payment.Entity
	if entity.ID != "pay_9" || entity.OrderID != "order_7" || entity.Amount != 149900 {
		t.Fatalf("entity = %+v", entity)
	}
}

func TestParseEventRejectsGarbage(t *testing.T) {
	if _, err := ParseEvent([]byte("not json")); pkgerrors.As(err) == nil {
		t.Fatal("expected validation error")
	}
	if _, err := ParseEvent([]byte(`{}`)); pkgerrors.As(err) == nil {
		t.Fatal("expected validation error for missing event type")
	}
}

func TestHandleCapturedEventReconciles(t *testing.T) {
	stub := &stubPaymentService{}
	svc, err := NewService(ServiceParams{Payments: stub})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	event := &Event{Event: "payment.captured"}
	event.Payload.Payment.Entity = PaymentEntity{ID: "pay_9", OrderID: "order_7", Status: "captured"}

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(stub.applied) != 1 || stub.applied[0] != "order_7" || stub.appliedP[0] != "pay_9" {
		t.Fatalf("reconciliation call = %v / %v", stub.applied, stub.appliedP)
	}
}

func TestHandleFailedEventFlagsMoneyMoved(t *testing.T) {
	stub := &stubPaymentService{}
	svc, err := NewService(ServiceParams{Payments: stub})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	event := &Event{Event: "payment.failed"}
	event.Payload.Payment.Entity = PaymentEntity{ID: "pay_9", OrderID: "order_7", Status: "authorized"}

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(stub.failed) != 1 || !stub.moneyMvd[0] {
		t.Fatalf("failure call = %v moneyMoved=%v", stub.failed, stub.moneyMvd)
	}
}

func TestHandleUnknownEventIsAcknowledged(t *testing.T) {
	stub := &stubPaymentService{}
	svc, err := NewService(ServiceParams{Payments: stub})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if err := svc.HandleEvent(context.Background(), &Event{Event: "refund.processed"}); err != nil {
		t.Fatalf("unknown events must be dropped silently: %v", err)
	}
	if len(stub.applied) != 0 || len(stub.failed) != 0 {
		t.Fatal("unknown event must not touch payments")
	}
}

type fakeIdemStore struct {
	keys map[string]time.Time
}

func (f *fakeIdemStore) Get(ctx context.Context, key string) (string, error) {
	if _, ok := f.keys[key]; ok {
		return "1", nil
	}
	return "", goredis.Nil
}

func (f *fakeIdemStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if f.keys == nil {
		f.keys = map[string]time.Time{}
	}
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = time.Now().Add(ttl)
	return true, nil
}

func (f *fakeIdemStore) IdempotencyKey(scope, id string) string {
	return "bf:idem:" + scope + ":" + id
}

func (f *fakeIdemStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

func TestIdempotencyGuardDeduplicates(t *testing.T) {
	guard, err := NewIdempotencyGuard(&fakeIdemStore{}, time.Hour, "razorpay")
	if err != nil {
		t.Fatalf("NewIdempotencyGuard: %v", err)
	}

	seen, err := guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil || seen {
		t.Fatalf("first delivery: seen=%v err=%v", seen, err)
	}
	seen, err = guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil || !seen {
		t.Fatalf("second delivery should be duplicate: seen=%v err=%v", seen, err)
	}

	if err := guard.Delete(context.Background(), "evt_1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	seen, err = guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil || seen {
		t.Fatalf("after release the event may retry: seen=%v err=%v", seen, err)
	}
}
