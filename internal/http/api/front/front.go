package front

import (
	"github.com/gin-gonic/gin"
	"github.com/resolv-sh/resolv-gateway/internal/account"
	"github.com/resolv-sh/resolv-gateway/internal/catalog"
	"github.com/resolv-sh/resolv-gateway/internal/chat"
	gatewayhttp "github.com/resolv-sh/resolv-gateway/internal/http"
	"github.com/resolv-sh/resolv-gateway/internal/http/api/front/handlers"
	"github.com/resolv-sh/resolv-gateway/internal/payment"
	"github.com/resolv-sh/resolv-gateway/internal/usage"
	"gorm.io/gorm"
)

// Dependencies are the collaborators the front routes need.
type Dependencies struct {
	DB            *gorm.DB
	Verifier      gatewayhttp.TokenVerifier
	Accounts      *account.GormStore
	Admission     gatewayhttp.Admitter
	Chat          *chat.Service
	Catalog       *catalog.Store
	Turns         *usage.GormTurnStore
	WebhookSecret string
	Checkout      payment.Checkout // Nil when no processor is configured.
}

// RegisterFrontRoutes registers public and authenticated editor-facing routes.
func RegisterFrontRoutes(r *gin.Engine, deps Dependencies) {
	if r == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", healthHandler.Healthz)

	api := r.Group("/api")
	modelsHandler := handlers.NewModelsHandler(deps.Catalog)
	api.GET("/models", modelsHandler.List)

	webhookHandler := handlers.NewStripeWebhookHandler(deps.Accounts, deps.WebhookSecret)
	api.POST("/stripe/webhook", webhookHandler.Receive)

	userAuth := gatewayhttp.UserAuthMiddleware(deps.Verifier, deps.Accounts)
	admission := gatewayhttp.AdmissionMiddleware(deps.Admission)

	chatHandler := handlers.NewChatHandler(deps.Chat)
	r.POST("/chat", userAuth, admission, chatHandler.Stream)
	api.POST("/chat", userAuth, admission, chatHandler.Stream)

	authed := api.Group("")
	authed.Use(userAuth)

	profileHandler := handlers.NewProfileHandler(deps.Accounts)
	authed.GET("/profile", profileHandler.Get)
	authed.POST("/profile", profileHandler.Update)

	paymentHandler := handlers.NewPaymentHandler(deps.Accounts, deps.Checkout)
	authed.POST("/stripe/create-payment-intent", paymentHandler.CreateDeposit)
	authed.POST("/stripe/create-setup-intent", paymentHandler.CreateSetup)
	authed.GET("/stripe/payment-method", paymentHandler.GetPaymentMethod)
	authed.POST("/stripe/payment-method", paymentHandler.SavePaymentMethod)
	authed.DELETE("/stripe/payment-method", paymentHandler.DeletePaymentMethod)

	usageHandler := handlers.NewUsageHandler(deps.Turns)
	authed.GET("/usage/turns", usageHandler.Turns)
	authed.GET("/usage/stats", usageHandler.Stats)
}
