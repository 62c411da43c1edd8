package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/resolv-sh/resolv-gateway/internal/models"
	"github.com/resolv-sh/resolv-gateway/internal/payment"
	log "github.com/sirupsen/logrus"
)

// PaymentStore is the account surface the card endpoints use.
type PaymentStore interface {
	Get(ctx context.Context, userID string) (models.Account, error)
	SetCustomerID(ctx context.Context, userID, customerID string) error
	SavePaymentMethod(ctx context.Context, userID, customerID, paymentMethodID string) error
	ClearPaymentMethod(ctx context.Context, userID string) error
}

// PaymentHandler serves client-side deposit and card management flows.
type PaymentHandler struct {
	accounts PaymentStore
	checkout payment.Checkout
}

// NewPaymentHandler constructs a PaymentHandler. A nil checkout answers 503.
func NewPaymentHandler(accounts PaymentStore, checkout payment.Checkout) *PaymentHandler {
	return &PaymentHandler{accounts: accounts, checkout: checkout}
}

type depositRequest struct {
	Amount float64 `json:"amount"`
}

type savePaymentMethodRequest struct {
	PaymentMethodID string `json:"paymentMethodId"`
}

// CreateDeposit starts an on-session top-up and returns its client secret.
func (h *PaymentHandler) CreateDeposit(c *gin.Context) {
	acct, ok := h.account(c)
	if !ok {
		return
	}
	var body depositRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	intent, errCreate := h.checkout.CreateDeposit(c.Request.Context(), payment.DepositRequest{
		UserID:     acct.ID,
		CustomerID: deref(acct.StripeCustomerID),
		Amount:     body.Amount,
	})
	if errCreate != nil {
		if errors.Is(errCreate, payment.ErrDepositTooSmall) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Minimum deposit is $10."})
			return
		}
		log.WithError(errCreate).WithField("user_id", acct.ID).Error("create payment intent failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment processor error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"clientSecret": intent.ClientSecret})
}

// CreateSetup starts a card-saving flow, creating the customer on first use.
func (h *PaymentHandler) CreateSetup(c *gin.Context) {
	acct, ok := h.account(c)
	if !ok {
		return
	}
	email := acct.Email
	if email == "" {
		email = getUserEmail(c)
	}
	stored := deref(acct.StripeCustomerID)
	ctx := c.Request.Context()
	intent, errCreate := h.checkout.CreateSetup(ctx, payment.SetupRequest{
		UserID:     acct.ID,
		Email:      email,
		CustomerID: stored,
	})
	if errCreate != nil {
		log.WithError(errCreate).WithField("user_id", acct.ID).Error("create setup intent failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment processor error"})
		return
	}
	if intent.CustomerID != "" && intent.CustomerID != stored {
		if errSave := h.accounts.SetCustomerID(ctx, acct.ID, intent.CustomerID); errSave != nil {
			log.WithError(errSave).WithField("user_id", acct.ID).Error("save customer failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"clientSecret": intent.ClientSecret})
}

// GetPaymentMethod returns the saved card. A card the processor no longer
// knows is forgotten along with the flags that depend on it.
func (h *PaymentHandler) GetPaymentMethod(c *gin.Context) {
	acct, ok := h.account(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if !acct.HasPaymentMethod() {
		if acct.AllowOverdraft || acct.AutoTopup {
			h.forgetCard(ctx, acct.ID)
		}
		c.JSON(http.StatusOK, gin.H{"paymentMethod": nil})
		return
	}
	card, errGet := h.checkout.PaymentMethod(ctx, *acct.StripePaymentMethodID)
	if errGet != nil {
		if errors.Is(errGet, payment.ErrPaymentMethodInvalid) {
			h.forgetCard(ctx, acct.ID)
			c.JSON(http.StatusOK, gin.H{"paymentMethod": nil})
			return
		}
		log.WithError(errGet).WithField("user_id", acct.ID).Error("payment method lookup failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment processor error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"paymentMethod": card})
}

// SavePaymentMethod stores a card confirmed by the client.
func (h *PaymentHandler) SavePaymentMethod(c *gin.Context) {
	acct, ok := h.account(c)
	if !ok {
		return
	}
	var body savePaymentMethodRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || strings.TrimSpace(body.PaymentMethodID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "paymentMethodId is required"})
		return
	}
	if errSave := h.accounts.SavePaymentMethod(c.Request.Context(), acct.ID, "", body.PaymentMethodID); errSave != nil {
		log.WithError(errSave).WithField("user_id", acct.ID).Error("save payment method failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeletePaymentMethod detaches the saved card and turns off dependent flags.
func (h *PaymentHandler) DeletePaymentMethod(c *gin.Context) {
	acct, ok := h.account(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if acct.HasPaymentMethod() {
		errDetach := h.checkout.DetachPaymentMethod(ctx, *acct.StripePaymentMethodID)
		if errDetach != nil {
			log.WithError(errDetach).WithField("user_id", acct.ID).Warn("detach payment method failed")
		}
	}
	if errClear := h.accounts.ClearPaymentMethod(ctx, acct.ID); errClear != nil {
		log.WithError(errClear).WithField("user_id", acct.ID).Error("clear payment method failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// account loads the caller's account and writes the error response when it
// cannot, including when no processor is configured.
func (h *PaymentHandler) account(c *gin.Context) (models.Account, bool) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return models.Account{}, false
	}
	if h.checkout == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payments are not configured"})
		return models.Account{}, false
	}
	acct, errGet := h.accounts.Get(c.Request.Context(), userID)
	if errGet != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return models.Account{}, false
	}
	return acct, true
}

func (h *PaymentHandler) forgetCard(ctx context.Context, userID string) {
	if errClear := h.accounts.ClearPaymentMethod(ctx, userID); errClear != nil {
		log.WithError(errClear).WithField("user_id", userID).Warn("clear invalid payment method failed")
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
