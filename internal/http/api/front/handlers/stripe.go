package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/resolv-sh/resolv-gateway/internal/account"
	"github.com/resolv-sh/resolv-gateway/internal/payment"
	log "github.com/sirupsen/logrus"
)

const maxWebhookBody = 64 * 1024

// SettlementStore applies processor settlements to accounts.
type SettlementStore interface {
	Credit(ctx context.Context, credit account.Credit) (bool, float64, error)
	SavePaymentMethod(ctx context.Context, userID, customerID, paymentMethodID string) error
}

// StripeWebhookHandler applies Stripe events to accounts.
type StripeWebhookHandler struct {
	accounts SettlementStore
	secret   string
}

// NewStripeWebhookHandler constructs a StripeWebhookHandler.
func NewStripeWebhookHandler(accounts SettlementStore, secret string) *StripeWebhookHandler {
	return &StripeWebhookHandler{accounts: accounts, secret: secret}
}

// Receive verifies and applies one webhook event. Credits are idempotent
// per payment id, so redelivery and auto-refill settlements are safe.
func (h *StripeWebhookHandler) Receive(c *gin.Context) {
	payload, errRead := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}

	settlement, ok, errParse := payment.ParseWebhook(payload, c.GetHeader("Stripe-Signature"), h.secret)
	if errParse != nil {
		if errors.Is(errParse, payment.ErrInvalidSignature) {
			log.WithError(errParse).Warn("stripe webhook: signature verification failed")
		} else {
			log.WithError(errParse).Warn("stripe webhook: malformed event")
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Webhook Error"})
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	ctx := c.Request.Context()
	entry := log.WithFields(log.Fields{
		"user_id":    settlement.UserID,
		"event_type": settlement.EventType,
		"payment_id": settlement.PaymentID,
	})

	if settlement.EventType == payment.EventPaymentSucceeded && settlement.Amount > 0 {
		description := "Deposit via Stripe"
		if settlement.AutoRefill {
			description = "Auto-refill"
		}
		applied, balance, errCredit := h.accounts.Credit(ctx, account.Credit{
			UserID:      settlement.UserID,
			Amount:      settlement.Amount,
			PaymentID:   settlement.PaymentID,
			Description: description,
		})
		if errCredit != nil {
			entry.WithError(errCredit).Error("stripe webhook: credit failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database update failed"})
			return
		}
		entry.WithFields(log.Fields{"applied": applied, "balance": balance}).Info("stripe webhook: payment settled")
	}

	if settlement.PaymentMethodID != "" {
		if errSave := h.accounts.SavePaymentMethod(ctx, settlement.UserID, settlement.CustomerID, settlement.PaymentMethodID); errSave != nil {
			entry.WithError(errSave).Warn("stripe webhook: save payment method failed")
		}
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
