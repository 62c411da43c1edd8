package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/resolv-sh/resolv-gateway/internal/access"
	"github.com/resolv-sh/resolv-gateway/internal/account"
	"github.com/resolv-sh/resolv-gateway/internal/billing"
	"github.com/resolv-sh/resolv-gateway/internal/catalog"
	"github.com/resolv-sh/resolv-gateway/internal/chat"
	"github.com/resolv-sh/resolv-gateway/internal/config"
	"github.com/resolv-sh/resolv-gateway/internal/db"
	gatewayhttp "github.com/resolv-sh/resolv-gateway/internal/http"
	"github.com/resolv-sh/resolv-gateway/internal/http/api/front"
	"github.com/resolv-sh/resolv-gateway/internal/logging"
	"github.com/resolv-sh/resolv-gateway/internal/metrics"
	"github.com/resolv-sh/resolv-gateway/internal/payment"
	"github.com/resolv-sh/resolv-gateway/internal/relay"
	"github.com/resolv-sh/resolv-gateway/internal/security"
	"github.com/resolv-sh/resolv-gateway/internal/settings"
	"github.com/resolv-sh/resolv-gateway/internal/usage"
	"github.com/resolv-sh/resolv-gateway/internal/util"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn.WithContext(ctx)); errMigrate != nil {
		return errMigrate
	}
	log.Infof("migrations applied (dialect=%s)", db.DialectName(conn))
	return nil
}

// RunServer boots the gateway and blocks until ctx is done, then drains
// in-flight ledger writes before returning.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	gwCfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logCloser, err := logging.Setup(gwCfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	conn, err := db.Open(gwCfg.Database.DSN)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := settings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		log.WithError(errRefresh).Warn("initial settings load failed; using config defaults")
	}
	settings.NewRefresher(conn, gwCfg.Billing.SettingsRefresh).Start(ctx)

	store, err := buildCatalog(ctx, gwCfg.Catalog)
	if err != nil {
		return err
	}
	pricer := billing.NewPricer(store, billing.NewSettingsRates(gwCfg.Billing))
	limits := billing.NewSettingsLimits(gwCfg.Billing)
	accounts := account.NewGormStore(conn)
	turns := usage.NewGormTurnStore(conn)

	processor, err := buildProcessor(gwCfg.Stripe)
	if err != nil {
		return err
	}
	ledgerOpts, err := ledgerOptions(gwCfg, processor)
	if err != nil {
		return err
	}
	dispatcher := usage.NewDispatcher(
		usage.NewLedger(accounts, turns, pricer, limits, ledgerOpts...),
		gwCfg.Billing.Workers,
		gwCfg.Billing.QueueSize,
		gwCfg.Billing.LedgerTimeout,
	)
	dispatcher.Start()

	usage.NewRetentionCleaner(conn, gwCfg.Billing.TurnRetentionDays).Start(ctx)

	upstream := relay.NewOpenRouterClient(gwCfg.Upstream)
	engine := buildEngine(gwCfg, front.Dependencies{
		DB:            conn,
		Verifier:      security.NewJWTVerifier(gwCfg.Auth.Secret),
		Accounts:      accounts,
		Admission:     access.NewAdmission(accounts, limits),
		Chat:          chat.NewService(store, upstream, pricer, dispatcher),
		Catalog:       store,
		Turns:         turns,
		WebhookSecret: gwCfg.Stripe.WebhookSecret,
	}, processor)

	server := &http.Server{
		Addr:              gwCfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		// Request contexts end with ctx so open streams finalize and bill
		// before Shutdown returns.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Infof("gateway listening on %s (config=%s dialect=%s upstream=%s key=%s)",
			gwCfg.Server.Addr, configPath, db.DialectName(conn), gwCfg.Upstream.BaseURL, util.HideAPIKey(gwCfg.Upstream.APIKey))
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			serveErr <- errServe
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case errServe, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("http server: %w", errServe)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), gwCfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		log.WithError(errShutdown).Warn("http server shutdown incomplete")
	}
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), gwCfg.Server.DrainTimeout)
	defer cancelDrain()
	if errDrain := dispatcher.Drain(drainCtx); errDrain != nil {
		log.WithError(errDrain).Warn("ledger drain incomplete; some charges may be lost")
	}
	closeDB(conn)
	log.Info("gateway stopped")
	return runErr
}

// buildCatalog loads the configured catalog file, falling back to the built-in
// models when no file is configured.
func buildCatalog(ctx context.Context, cfg config.CatalogConfig) (*catalog.Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return catalog.NewStore(catalog.DefaultModels()), nil
	}
	models, err := catalog.LoadFile(path)
	if err != nil {
		return nil, err
	}
	store := catalog.NewStore(models)
	if cfg.Watch {
		if errWatch := catalog.NewWatcher(path, store).Start(ctx); errWatch != nil {
			log.WithError(errWatch).Warn("catalog watcher disabled")
		}
	}
	return store, nil
}

// buildProcessor returns nil when no secret key is configured.
func buildProcessor(cfg config.StripeConfig) (*payment.StripeProcessor, error) {
	key := strings.TrimSpace(cfg.SecretKey)
	if key == "" {
		log.Warn("stripe not configured; auto top-up and card endpoints disabled")
		return nil, nil
	}
	return payment.NewStripeProcessor(key, cfg.Currency)
}

func ledgerOptions(cfg *config.Config, processor *payment.StripeProcessor) ([]usage.LedgerOption, error) {
	var opts []usage.LedgerOption
	if url := strings.TrimSpace(cfg.Redis.URL); url != "" {
		redisOpts, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		opts = append(opts, usage.WithTurnLocker(usage.NewRedisTurnLocker(redis.NewClient(redisOpts), cfg.Redis.LockTTL)))
	} else {
		log.Info("redis not configured; turn merges rely on the database only")
	}
	if processor != nil {
		opts = append(opts, usage.WithProcessor(processor))
	}
	return opts, nil
}

func buildEngine(cfg *config.Config, deps front.Dependencies, processor *payment.StripeProcessor) *gin.Engine {
	if processor != nil {
		deps.Checkout = processor
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), logging.GinLogger(), gatewayhttp.CORSMiddleware(cfg.Server.AllowedOrigins))
	front.RegisterFrontRoutes(engine, deps)
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	return engine
}

func closeDB(conn *gorm.DB) {
	sqlDB, err := conn.DB()
	if err != nil {
		return
	}
	if errClose := sqlDB.Close(); errClose != nil {
		log.WithError(errClose).Warn("database close failed")
	}
}
