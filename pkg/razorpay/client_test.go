package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/billforge/billforge-backend/pkg/config"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(config.RazorpayConfig{
		KeyID:         "rzp_test_key",
		KeySecret:     "topsecret",
		WebhookSecret: "hooksecret",
		Timeout:       5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func sign(message, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(config.RazorpayConfig{KeySecret: "s", WebhookSecret: "w"}); err == nil {
		t.Fatal("missing key id accepted")
	}
	if _, err := NewClient(config.RazorpayConfig{KeyID: "k", KeySecret: "s"}); err == nil {
		t.Fatal("missing webhook secret accepted")
	}
}

func TestVerifyPaymentSignature(t *testing.T) {
	client := testClient(t)

	orderID := "order_123"
	paymentID := "pay_456"
	good := sign(orderID+"|"+paymentID, "topsecret")

	if !client.VerifyPaymentSignature(orderID, paymentID, good) {
		t.Fatal("valid signature rejected")
	}
	if client.VerifyPaymentSignature(orderID, "pay_tampered", good) {
		t.Fatal("tampered payment id accepted")
	}
	if client.VerifyPaymentSignature(orderID, paymentID, "") {
		t.Fatal("empty signature accepted")
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	client := testClient(t)
	body := []byte(`{"event":"payment.captured"}`)

	if !client.VerifyWebhookSignature(body, sign(string(body), "hooksecret")) {
		t.Fatal("valid webhook signature rejected")
	}
	if client.VerifyWebhookSignature(append(body, ' '), sign(string(body), "hooksecret")) {
		t.Fatal("modified body accepted")
	}
	if client.VerifyWebhookSignature(nil, sign("", "hooksecret")) {
		t.Fatal("empty body accepted")
	}
}

func TestOrderFromAttributes(t *testing.T) {
	order := orderFromAttributes(map[string]interface{}{
		"id":       "order_abc",
		"amount":   float64(149900),
		"currency": "INR",
		"status":   "paid",
		"notes": map[string]interface{}{
			"plan_id": "pro",
			"count":   float64(2),
		},
	})

	if order.ID != "order_abc" || order.Amount != 149900 || order.Status != "paid" {
		t.Fatalf("order mapped wrong: %+v", order)
	}
	if order.Notes["plan_id"] != "pro" {
		t.Fatalf("notes mapped wrong: %v", order.Notes)
	}
	if _, ok := order.Notes["count"]; ok {
		t.Fatal("non-string note should be dropped")
	}
}

func TestPaymentFromAttributes(t *testing.T) {
	payment := paymentFromAttributes(map[string]interface{}{
		"id":       "pay_1",
		"order_id": "order_abc",
		"status":   "captured",
		"amount":   float64(149900),
		"method":   "upi",
	})

	if payment.ID != "pay_1" || payment.OrderID != "order_abc" || payment.Status != "captured" {
		t.Fatalf("payment mapped wrong: %+v", payment)
	}
	if payment.Amount != 149900 || payment.Method != "upi" {
		t.Fatalf("payment mapped wrong: %+v", payment)
	}

	empty := paymentFromAttributes(map[string]interface{}{})
	if empty.ID != "" || empty.Amount != 0 {
		t.Fatalf("missing fields should map to zero values: %+v", empty)
	}
}
