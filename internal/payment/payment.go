// Package payment charges saved cards and interprets processor webhooks.
package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	stripe "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
)

// ErrNoPaymentMethod is returned when an account has no saved card.
var ErrNoPaymentMethod = errors.New("payment: no saved payment method")

// OffSessionCharge describes a charge made without the customer present.
type OffSessionCharge struct {
	UserID          string
	CustomerID      string
	PaymentMethodID string
	Amount          float64 // Dollars.
	IdempotencyKey  string
}

// ChargeResult is the processor's answer to a charge.
type ChargeResult struct {
	PaymentID string
	Status    string
	Succeeded bool
}

// Processor charges saved payment methods.
type Processor interface {
	ChargeOffSession(ctx context.Context, charge OffSessionCharge) (ChargeResult, error)
}

// StripeProcessor charges through Stripe PaymentIntents.
type StripeProcessor struct {
	api      *client.API
	currency string
}

// NewStripeProcessor returns an error when secretKey is empty.
func NewStripeProcessor(secretKey, currency string) (*StripeProcessor, error) {
	return newStripeProcessor(secretKey, currency, nil)
}

// newStripeProcessor uses the default Stripe backends when backends is nil.
func newStripeProcessor(secretKey, currency string, backends *stripe.Backends) (*StripeProcessor, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, fmt.Errorf("payment: stripe secret key is required")
	}
	api := &client.API{}
	api.Init(secretKey, backends)
	if strings.TrimSpace(currency) == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &StripeProcessor{api: api, currency: strings.ToLower(currency)}, nil
}

// ChargeOffSession creates and confirms a PaymentIntent against the saved card.
func (p *StripeProcessor) ChargeOffSession(ctx context.Context, charge OffSessionCharge) (ChargeResult, error) {
	if errValidate := charge.validate(); errValidate != nil {
		return ChargeResult{}, errValidate
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(ToCents(charge.Amount)),
		Currency:      stripe.String(p.currency),
		Customer:      stripe.String(charge.CustomerID),
		PaymentMethod: stripe.String(charge.PaymentMethodID),
		OffSession:    stripe.Bool(true),
		Confirm:       stripe.Bool(true),
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserID, charge.UserID)
	params.AddMetadata(MetadataType, TypeAutoRefill)
	if charge.IdempotencyKey != "" {
		params.SetIdempotencyKey(charge.IdempotencyKey)
	}

	intent, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return ChargeResult{}, fmt.Errorf("payment: create payment intent: %w", err)
	}
	return ChargeResult{
		PaymentID: intent.ID,
		Status:    string(intent.Status),
		Succeeded: intent.Status == stripe.PaymentIntentStatusSucceeded,
	}, nil
}

func (c OffSessionCharge) validate() error {
	if strings.TrimSpace(c.CustomerID) == "" || strings.TrimSpace(c.PaymentMethodID) == "" {
		return ErrNoPaymentMethod
	}
	if c.Amount <= 0 || math.IsNaN(c.Amount) {
		return fmt.Errorf("payment: invalid amount %v", c.Amount)
	}
	return nil
}

// ToCents converts dollars to the processor's minor unit.
func ToCents(dollars float64) int64 {
	return int64(math.Round(dollars * 100))
}
