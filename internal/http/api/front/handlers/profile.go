package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/resolv-sh/resolv-gateway/internal/account"
	"github.com/resolv-sh/resolv-gateway/internal/models"
	log "github.com/sirupsen/logrus"
)

// ProfileStore is the account surface the profile endpoints use.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (models.Account, error)
	UpdateFlags(ctx context.Context, userID string, flags account.Flags) error
}

// ProfileHandler handles user profile endpoints.
type ProfileHandler struct {
	accounts ProfileStore
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(accounts ProfileStore) *ProfileHandler {
	return &ProfileHandler{accounts: accounts}
}

// Get returns the current user's billing profile.
func (h *ProfileHandler) Get(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	acct, errGet := h.accounts.Get(c.Request.Context(), userID)
	if errGet != nil {
		if errors.Is(errGet, account.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":                 acct.ID,
		"email":              acct.Email,
		"balance":            acct.Balance,
		"is_admin":           acct.IsAdmin,
		"allow_overdraft":    acct.AllowOverdraft,
		"auto_topup":         acct.AutoTopup,
		"has_payment_method": acct.HasPaymentMethod(),
		"created_at":         acct.CreatedAt,
		"updated_at":         acct.UpdatedAt,
	})
}

// updateProfileRequest toggles billing flags; absent fields are unchanged.
type updateProfileRequest struct {
	AutoTopup      *bool `json:"auto_topup"`
	AllowOverdraft *bool `json:"allow_overdraft"`
}

// Update applies billing flag changes. Turning a flag on requires a saved card.
func (h *ProfileHandler) Update(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body updateProfileRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.AutoTopup == nil && body.AllowOverdraft == nil {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	ctx := c.Request.Context()
	enabling := (body.AutoTopup != nil && *body.AutoTopup) || (body.AllowOverdraft != nil && *body.AllowOverdraft)
	if enabling {
		acct, errGet := h.accounts.Get(ctx, userID)
		if errGet != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		if !acct.HasPaymentMethod() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "a saved payment method is required"})
			return
		}
	}

	if errUpdate := h.accounts.UpdateFlags(ctx, userID, account.Flags{
		AllowOverdraft: body.AllowOverdraft,
		AutoTopup:      body.AutoTopup,
	}); errUpdate != nil {
		log.WithError(errUpdate).WithField("user_id", userID).Error("profile update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
