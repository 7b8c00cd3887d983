package razorpay

import (
	"context"
	"fmt"
	"time"

	razorpaygo "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"

	"github.com/billforge/billforge-backend/pkg/config"
)

// Order is the gateway's order resource, carrying the plan id in its notes.
type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
	Notes    map[string]string
}

// Payment is the gateway's payment resource. Amount is in the currency's
// smallest unit (paise for INR).
type Payment struct {
	ID      string
	OrderID string
	Status  string
	Amount  int64
	Method  string
}

// Gateway is the narrow contract the reconciliation core depends on.
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency string, notes map[string]string) (*Order, error)
	FetchOrder(ctx context.Context, orderID string) (*Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*Payment, error)
	PaymentsForOrder(ctx context.Context, orderID string) ([]Payment, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
}

// Client wraps the official SDK behind the Gateway contract so the
// reconciliation core never handles raw gateway payloads.
type Client struct {
	sdk           *razorpaygo.Client
	keySecret     string
	webhookSecret string
}

// NewClient builds a gateway client from configuration.
func NewClient(cfg config.RazorpayConfig) (*Client, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, fmt.Errorf("razorpay key id and secret are required")
	}
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("razorpay webhook secret is required")
	}
	sdk := razorpaygo.NewClient(cfg.KeyID, cfg.KeySecret)
	if cfg.Timeout > 0 {
		sdk.SetTimeout(int16(cfg.Timeout / time.Second))
	}
	return &Client{
		sdk:           sdk,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

// CreateOrder registers a new order with the gateway.
func (c *Client) CreateOrder(ctx context.Context, amount int64, currency string, notes map[string]string) (*Order, error) {
	data := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
	}
	if len(notes) > 0 {
		noteFields := make(map[string]interface{}, len(notes))
		for key, value := range notes {
			noteFields[key] = value
		}
		data["notes"] = noteFields
	}
	raw, err := c.sdk.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}
	return orderFromAttributes(raw), nil
}

// FetchOrder returns the gateway order, including its notes.
func (c *Client) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("order id is required")
	}
	raw, err := c.sdk.Order.Fetch(orderID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay fetch order %s: %w", orderID, err)
	}
	return orderFromAttributes(raw), nil
}

// FetchPayment returns the gateway payment attempt.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("payment id is required")
	}
	raw, err := c.sdk.Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay fetch payment %s: %w", paymentID, err)
	}
	return paymentFromAttributes(raw), nil
}

// PaymentsForOrder lists every payment attempt the gateway recorded against
// an order, captured and failed alike.
func (c *Client) PaymentsForOrder(ctx context.Context, orderID string) ([]Payment, error) {
	if orderID == "" {
		return nil, fmt.Errorf("order id is required")
	}
	raw, err := c.sdk.Order.Payments(orderID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay list order payments %s: %w", orderID, err)
	}
	items, _ := raw["items"].([]interface{})
	payments := make([]Payment, 0, len(items))
	for _, item := range items {
		attrs, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		payments = append(payments, *paymentFromAttributes(attrs))
	}
	return payments, nil
}

// VerifyPaymentSignature checks the checkout signature the gateway computes
// over "orderID|paymentID" with the key secret.
func (c *Client) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	params := map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}
	return utils.VerifyPaymentSignature(params, signature, c.keySecret)
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header over the raw
// webhook body with the webhook secret.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	if len(body) == 0 || signature == "" {
		return false
	}
	return utils.VerifyWebhookSignature(string(body), signature, c.webhookSecret)
}

// orderFromAttributes maps the SDK's untyped order payload onto the Gateway
// order type. Missing fields map to zero values.
func orderFromAttributes(attrs map[string]interface{}) *Order {
	order := &Order{
		ID:       stringAttr(attrs, "id"),
		Amount:   intAttr(attrs, "amount"),
		Currency: stringAttr(attrs, "currency"),
		Receipt:  stringAttr(attrs, "receipt"),
		Status:   stringAttr(attrs, "status"),
	}
	if rawNotes, ok := attrs["notes"].(map[string]interface{}); ok {
		order.Notes = make(map[string]string, len(rawNotes))
		for key, value := range rawNotes {
			if text, ok := value.(string); ok {
				order.Notes[key] = text
			}
		}
	}
	return order
}

func paymentFromAttributes(attrs map[string]interface{}) *Payment {
	return &Payment{
		ID:      stringAttr(attrs, "id"),
		OrderID: stringAttr(attrs, "order_id"),
		Status:  stringAttr(attrs, "status"),
		Amount:  intAttr(attrs, "amount"),
		Method:  stringAttr(attrs, "method"),
	}
}

func stringAttr(attrs map[string]interface{}, key string) string {
	value, _ := attrs[key].(string)
	return value
}

// intAttr tolerates the number shapes the SDK's JSON decoding produces.
func intAttr(attrs map[string]interface{}, key string) int64 {
	switch value := attrs[key].(type) {
	case float64:
		return int64(value)
	case int64:
		return value
	case int:
		return int64(value)
	default:
		return 0
	}
}
