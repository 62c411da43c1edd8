package payment

import (
	"context"
	"errors"
	"testing"
)

func TestToCents(t *testing.T) {
	cases := map[float64]int64{10: 1000, 0.1: 10, 12.34: 1234, 0.29: 29}
	for in, want := range cases {
		if got := ToCents(in); got != want {
			t.Fatalf("ToCents(%v): expected %d, got %d", in, want, got)
		}
	}
}

func TestChargeOffSessionRequiresSavedCard(t *testing.T) {
	p, err := NewStripeProcessor("sk_test_dummy", "")
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	_, err = p.ChargeOffSession(context.Background(), OffSessionCharge{UserID: "u", Amount: 10})
	if !errors.Is(err, ErrNoPaymentMethod) {
		t.Fatalf("expected ErrNoPaymentMethod, got %v", err)
	}
	_, err = p.ChargeOffSession(context.Background(), OffSessionCharge{UserID: "u", CustomerID: "cus", PaymentMethodID: "pm", Amount: 0})
	if err == nil {
		t.Fatalf("expected invalid amount error")
	}
}

func TestNewStripeProcessorRequiresKey(t *testing.T) {
	if _, err := NewStripeProcessor(" ", "usd"); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestDecodePaymentSucceeded(t *testing.T) {
	payload := []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "payment_intent.succeeded",
		"data": {"object": {
			"id": "pi_1",
			"object": "payment_intent",
			"amount_received": 2500,
			"customer": "cus_9",
			"payment_method": "pm_9",
			"metadata": {"userId": "user-1", "type": "auto_refill"}
		}}
	}`)
	s, ok, err := DecodeEvent(payload)
	if err != nil || !ok {
		t.Fatalf("decode: ok=%v err=%v", ok, err)
	}
	if s.UserID != "user-1" || s.PaymentID != "pi_1" || s.Amount != 25 {
		t.Fatalf("unexpected settlement: %+v", s)
	}
	if s.CustomerID != "cus_9" || s.PaymentMethodID != "pm_9" || !s.AutoRefill {
		t.Fatalf("unexpected references: %+v", s)
	}
}

func TestDecodeSetupSucceededAndIgnoredEvents(t *testing.T) {
	payload := []byte(`{
		"type": "setup_intent.succeeded",
		"data": {"object": {"id": "seti_1", "customer": "cus_1", "payment_method": "pm_1", "metadata": {"userId": "user-2"}}}
	}`)
	s, ok, err := DecodeEvent(payload)
	if err != nil || !ok {
		t.Fatalf("decode: ok=%v err=%v", ok, err)
	}
	if s.PaymentMethodID != "pm_1" || s.UserID != "user-2" || s.Amount != 0 {
		t.Fatalf("unexpected settlement: %+v", s)
	}

	_, ok, err = DecodeEvent([]byte(`{"type": "customer.created", "data": {"object": {}}}`))
	if err != nil || ok {
		t.Fatalf("expected unhandled event ignored, ok=%v err=%v", ok, err)
	}
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	_, _, err := ParseWebhook([]byte(`{}`), "t=1,v1=deadbeef", "whsec_test")
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	_, _, err = ParseWebhook([]byte(`{}`), "", "whsec_test")
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected missing signature rejected, got %v", err)
	}
}
