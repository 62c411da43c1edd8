package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/resolv-sh/resolv-gateway/internal/access"
	"github.com/resolv-sh/resolv-gateway/internal/metrics"
	"github.com/resolv-sh/resolv-gateway/internal/models"
	"github.com/resolv-sh/resolv-gateway/internal/security"
	log "github.com/sirupsen/logrus"
)

// Context keys set by UserAuthMiddleware.
const (
	ContextUserID    = "userID"
	ContextUserEmail = "userEmail"
)

// TokenVerifier resolves a bearer token to an identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (security.Identity, error)
}

// AccountEnsurer creates the account row on a user's first request.
type AccountEnsurer interface {
	Ensure(ctx context.Context, userID, email string) (models.Account, error)
}

// Admitter gates metered requests.
type Admitter interface {
	Check(ctx context.Context, userID string) error
}

// UserAuthMiddleware verifies the bearer token and injects the user id.
func UserAuthMiddleware(verifier TokenVerifier, accounts AccountEnsurer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := access.ExtractBearerToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		identity, errVerify := verifier.Verify(c.Request.Context(), token)
		if errVerify != nil {
			log.WithError(errVerify).Debug("user auth: token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid Token"})
			return
		}
		if accounts != nil {
			if _, errEnsure := accounts.Ensure(c.Request.Context(), identity.UserID, identity.Email); errEnsure != nil {
				log.WithError(errEnsure).WithField("user_id", identity.UserID).Error("user auth: ensure account failed")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Account service error"})
				return
			}
		}
		c.Set(ContextUserID, identity.UserID)
		c.Set(ContextUserEmail, identity.Email)
		c.Next()
	}
}

// AdmissionMiddleware rejects callers whose balance does not admit a new
// request. It must run after UserAuthMiddleware.
func AdmissionMiddleware(admission Admitter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(ContextUserID)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		errCheck := admission.Check(c.Request.Context(), userID)
		switch {
		case errCheck == nil:
			c.Next()
		case errors.Is(errCheck, access.ErrInsufficientBalance):
			metrics.ChatRequests.WithLabelValues("rejected").Inc()
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{"error": "Insufficient funds. Please top up."})
		default:
			log.WithError(errCheck).Error("admission middleware error")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Admission service error"})
		}
	}
}
