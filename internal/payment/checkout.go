package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	stripe "github.com/stripe/stripe-go/v72"
)

// MinDeposit is the smallest on-session top-up in dollars.
const MinDeposit = 10.0

// TypeDeposit marks PaymentIntents created for on-session top-ups.
const TypeDeposit = "deposit"

// ErrDepositTooSmall is returned for deposits under MinDeposit.
var ErrDepositTooSmall = errors.New("payment: deposit below minimum")

// ErrPaymentMethodInvalid is returned when a saved card no longer resolves.
var ErrPaymentMethodInvalid = errors.New("payment: payment method not found")

// DepositRequest asks for a client-confirmed top-up.
type DepositRequest struct {
	UserID     string
	CustomerID string // Optional; attaches the saved card to the customer.
	Amount     float64
}

// SetupRequest asks for a card-saving intent.
type SetupRequest struct {
	UserID     string
	Email      string
	CustomerID string // Existing customer, if any.
}

// Intent is what the client needs to confirm a payment or setup.
type Intent struct {
	ClientSecret string
	CustomerID   string // Customer the intent is bound to; may be newly created.
}

// Card is the displayable part of a saved payment method.
type Card struct {
	ID       string `json:"id"`
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth uint64 `json:"exp_month"`
	ExpYear  uint64 `json:"exp_year"`
}

// Checkout creates client-side payment flows and manages saved cards.
type Checkout interface {
	CreateDeposit(ctx context.Context, req DepositRequest) (Intent, error)
	CreateSetup(ctx context.Context, req SetupRequest) (Intent, error)
	PaymentMethod(ctx context.Context, id string) (Card, error)
	DetachPaymentMethod(ctx context.Context, id string) error
}

// CreateDeposit creates a card PaymentIntent that also saves the card for
// off-session use.
func (p *StripeProcessor) CreateDeposit(ctx context.Context, req DepositRequest) (Intent, error) {
	if math.IsNaN(req.Amount) || req.Amount < MinDeposit {
		return Intent{}, ErrDepositTooSmall
	}
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(ToCents(req.Amount)),
		Currency:           stripe.String(p.currency),
		SetupFutureUsage:   stripe.String(string(stripe.PaymentIntentSetupFutureUsageOffSession)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	if c := strings.TrimSpace(req.CustomerID); c != "" {
		params.Customer = stripe.String(c)
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserID, req.UserID)
	params.AddMetadata(MetadataType, TypeDeposit)

	intent, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("payment: create deposit: %w", err)
	}
	return Intent{ClientSecret: intent.ClientSecret, CustomerID: req.CustomerID}, nil
}

// CreateSetup creates a SetupIntent, creating the customer when none exists
// and recreating it once when the stored one was deleted at the processor.
func (p *StripeProcessor) CreateSetup(ctx context.Context, req SetupRequest) (Intent, error) {
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		created, err := p.createCustomer(ctx, req)
		if err != nil {
			return Intent{}, err
		}
		customerID = created
	}

	intent, err := p.newSetupIntent(ctx, req.UserID, customerID)
	if err != nil && isMissingCustomer(err) {
		created, errCreate := p.createCustomer(ctx, req)
		if errCreate != nil {
			return Intent{}, errCreate
		}
		customerID = created
		intent, err = p.newSetupIntent(ctx, req.UserID, customerID)
	}
	if err != nil {
		return Intent{}, fmt.Errorf("payment: create setup intent: %w", err)
	}
	return Intent{ClientSecret: intent.ClientSecret, CustomerID: customerID}, nil
}

func (p *StripeProcessor) createCustomer(ctx context.Context, req SetupRequest) (string, error) {
	params := &stripe.CustomerParams{}
	if email := strings.TrimSpace(req.Email); email != "" {
		params.Email = stripe.String(email)
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserID, req.UserID)
	customer, err := p.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("payment: create customer: %w", err)
	}
	return customer.ID, nil
}

func (p *StripeProcessor) newSetupIntent(ctx context.Context, userID, customerID string) (*stripe.SetupIntent, error) {
	params := &stripe.SetupIntentParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserID, userID)
	return p.api.SetupIntents.New(params)
}

// PaymentMethod loads a saved card. Unknown ids return ErrPaymentMethodInvalid.
func (p *StripeProcessor) PaymentMethod(ctx context.Context, id string) (Card, error) {
	if strings.TrimSpace(id) == "" {
		return Card{}, ErrPaymentMethodInvalid
	}
	params := &stripe.PaymentMethodParams{}
	params.Context = ctx
	pm, err := p.api.PaymentMethods.Get(id, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return Card{}, ErrPaymentMethodInvalid
		}
		return Card{}, fmt.Errorf("payment: get payment method: %w", err)
	}
	card := Card{ID: pm.ID}
	if pm.Card != nil {
		card.Brand = string(pm.Card.Brand)
		card.Last4 = pm.Card.Last4
		card.ExpMonth = pm.Card.ExpMonth
		card.ExpYear = pm.Card.ExpYear
	}
	return card, nil
}

// DetachPaymentMethod removes a card from its customer.
func (p *StripeProcessor) DetachPaymentMethod(ctx context.Context, id string) error {
	params := &stripe.PaymentMethodDetachParams{}
	params.Context = ctx
	if _, err := p.api.PaymentMethods.Detach(id, params); err != nil {
		return fmt.Errorf("payment: detach payment method: %w", err)
	}
	return nil
}

func isMissingCustomer(err error) bool {
	var stripeErr *stripe.Error
	return errors.As(err, &stripeErr) &&
		stripeErr.Code == stripe.ErrorCodeResourceMissing &&
		stripeErr.Param == "customer"
}
