package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/webhook"
)

// Metadata keys and values attached to PaymentIntents.
const (
	MetadataUserID = "userId"
	MetadataType   = "type"
	TypeAutoRefill = "auto_refill"
)

// Webhook event types the gateway acts on.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventSetupSucceeded   = "setup_intent.succeeded"
)

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("payment: invalid webhook signature")

// Settlement is what a webhook asks the gateway to apply to an account.
type Settlement struct {
	EventType       string
	UserID          string
	PaymentID       string
	Amount          float64 // Dollars received; zero for setup events.
	CustomerID      string
	PaymentMethodID string
	AutoRefill      bool
}

// ParseWebhook verifies the signature and extracts a Settlement. Events the
// gateway does not act on return ok=false and no error.
func ParseWebhook(payload []byte, signature, secret string) (Settlement, bool, error) {
	if strings.TrimSpace(secret) == "" || strings.TrimSpace(signature) == "" {
		return Settlement{}, false, ErrInvalidSignature
	}
	if errVerify := webhook.ValidatePayload(payload, signature, secret); errVerify != nil {
		return Settlement{}, false, fmt.Errorf("%w: %v", ErrInvalidSignature, errVerify)
	}
	return DecodeEvent(payload)
}

// DecodeEvent extracts a Settlement from an already verified event payload.
func DecodeEvent(payload []byte) (Settlement, bool, error) {
	var event stripe.Event
	if errUnmarshal := json.Unmarshal(payload, &event); errUnmarshal != nil {
		return Settlement{}, false, fmt.Errorf("payment: decode event: %w", errUnmarshal)
	}
	if event.Data == nil {
		return Settlement{}, false, nil
	}

	switch event.Type {
	case EventPaymentSucceeded:
		var intent stripe.PaymentIntent
		if errUnmarshal := json.Unmarshal(event.Data.Raw, &intent); errUnmarshal != nil {
			return Settlement{}, false, fmt.Errorf("payment: decode payment intent: %w", errUnmarshal)
		}
		s := Settlement{
			EventType:  event.Type,
			UserID:     intent.Metadata[MetadataUserID],
			PaymentID:  intent.ID,
			Amount:     float64(intent.AmountReceived) / 100,
			AutoRefill: intent.Metadata[MetadataType] == TypeAutoRefill,
		}
		if intent.PaymentMethod != nil {
			s.PaymentMethodID = intent.PaymentMethod.ID
		}
		if intent.Customer != nil {
			s.CustomerID = intent.Customer.ID
		}
		return s, s.UserID != "", nil
	case EventSetupSucceeded:
		var intent stripe.SetupIntent
		if errUnmarshal := json.Unmarshal(event.Data.Raw, &intent); errUnmarshal != nil {
			return Settlement{}, false, fmt.Errorf("payment: decode setup intent: %w", errUnmarshal)
		}
		s := Settlement{EventType: event.Type, UserID: intent.Metadata[MetadataUserID]}
		if intent.PaymentMethod != nil {
			s.PaymentMethodID = intent.PaymentMethod.ID
		}
		if intent.Customer != nil {
			s.CustomerID = intent.Customer.ID
		}
		return s, s.UserID != "" && s.PaymentMethodID != "", nil
	default:
		return Settlement{}, false, nil
	}
}
