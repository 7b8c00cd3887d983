package razorpaywebhook

import (
	"context"
	"encoding/json"

	"github.com/billforge/billforge-backend/internal/payments"
	pkgerrors "github.com/billforge/billforge-backend/pkg/errors"
)

// Event is the gateway's webhook envelope.
type Event struct {
	Event   string       `json:"event"`
	Payload EventPayload `json:"payload"`
}

// EventPayload nests the captured payment entity the way the gateway ships it.
type EventPayload struct {
	Payment struct {
		Entity PaymentEntity `json:"entity"`
	} `json:"payment"`
}

// PaymentEntity is the payment resource embedded in webhook deliveries.
// Amount is in the currency's smallest unit.
type PaymentEntity struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Amount  int64  `json:"amount"`
}

const (
	eventPaymentCaptured = "payment.captured"
	eventPaymentFailed   = "payment.failed"
)

// ServiceParams groups dependencies for the webhook service.
type ServiceParams struct {
	Payments payments.Service
}

// Service translates gateway webhook events into reconciliation calls.
type Service struct {
	payments payments.Service
}

// NewService builds a webhook service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment service required")
	}
	return &Service{payments: params.Payments}, nil
}

// ParseEvent decodes a raw webhook body.
func ParseEvent(body []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook body")
	}
	if event.Event == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event type missing")
	}
	return &event, nil
}

// HandleEvent routes one verified, deduplicated delivery. Events this
// service does not care about are acknowledged and dropped.
func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event is required")
	}

	switch event.Event {
	case eventPaymentCaptured:
		entity := event.Payload.Payment.Entity
		if entity.OrderID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "order id missing from captured event")
		}
		return s.payments.ApplyOutcome(ctx, entity.OrderID, entity.ID)
	case eventPaymentFailed:
		entity := event.Payload.Payment.Entity
		if entity.OrderID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "order id missing from failed event")
		}
		// A failed event can follow an authorization that moved money.
		moneyMoved := entity.Status == "authorized" || entity.Status == "captured"
		return s.payments.HandleFailure(ctx, entity.OrderID, moneyMoved)
	default:
		return nil
	}
}
