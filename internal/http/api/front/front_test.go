package front

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/resolv-sh/resolv-gateway/internal/access"
	"github.com/resolv-sh/resolv-gateway/internal/account"
	"github.com/resolv-sh/resolv-gateway/internal/billing"
	"github.com/resolv-sh/resolv-gateway/internal/catalog"
	"github.com/resolv-sh/resolv-gateway/internal/chat"
	"github.com/resolv-sh/resolv-gateway/internal/config"
	"github.com/resolv-sh/resolv-gateway/internal/db"
	"github.com/resolv-sh/resolv-gateway/internal/logging"
	"github.com/resolv-sh/resolv-gateway/internal/models"
	"github.com/resolv-sh/resolv-gateway/internal/payment"
	"github.com/resolv-sh/resolv-gateway/internal/relay"
	"github.com/resolv-sh/resolv-gateway/internal/security"
	"github.com/resolv-sh/resolv-gateway/internal/usage"
	"gorm.io/gorm"
)

const (
	testSecret        = "test-jwt-secret"
	testWebhookSecret = "whsec_test"
	testModel         = "anthropic/claude-3.5-sonnet"
)

type testEnv struct {
	router     *gin.Engine
	conn       *gorm.DB
	dispatcher *usage.Dispatcher
	upstream   *httptest.Server
	checkout   *fakeCheckout
}

func newTestEnv(t *testing.T, upstream http.HandlerFunc) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, errOpen := db.Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}

	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	accounts := account.NewGormStore(conn)
	store := catalog.NewStore(catalog.DefaultModels())
	pricer := billing.NewPricer(store, billing.NewSettingsRates(config.Default().Billing))
	limits := billing.StaticLimits{Floor: -10, Topup: 10}
	turns := usage.NewGormTurnStore(conn)
	dispatcher := usage.NewDispatcher(usage.NewLedger(accounts, turns, pricer, limits), 1, 16, 5*time.Second)
	dispatcher.Start()

	client := relay.NewOpenRouterClient(config.UpstreamConfig{BaseURL: srv.URL, APIKey: "sk-test"})
	checkout := &fakeCheckout{cards: map[string]payment.Card{}}
	router := gin.New()
	router.Use(logging.GinLogger())
	RegisterFrontRoutes(router, Dependencies{
		DB:            conn,
		Verifier:      security.NewJWTVerifier(testSecret),
		Accounts:      accounts,
		Admission:     access.NewAdmission(accounts, limits),
		Chat:          chat.NewService(store, client, pricer, dispatcher),
		Catalog:       store,
		Turns:         turns,
		WebhookSecret: testWebhookSecret,
		Checkout:      checkout,
	})
	return &testEnv{router: router, conn: conn, dispatcher: dispatcher, upstream: srv, checkout: checkout}
}

func (e *testEnv) seed(t *testing.T, acct models.Account) {
	t.Helper()
	if errCreate := e.conn.Create(&acct).Error; errCreate != nil {
		t.Fatalf("seed account: %v", errCreate)
	}
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := security.GenerateToken(testSecret, userID, userID+"@example.com", time.Hour)
		if err != nil {
			t.Fatalf("GenerateToken: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.dispatcher.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
}

func streamingUpstream(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\n")
	_, _ = io.WriteString(w, "data: {\"choices\":[],\"usage\":{\"prompt_tokens\":1000,\"completion_tokens\":100}}\n\n")
	_, _ = io.WriteString(w, "data: [DONE]\n\n")
}

func chatBody() gin.H {
	return gin.H{
		"mode":       "general_agent",
		"modelId":    testModel,
		"messages":   []gin.H{{"role": "user", "content": "hello"}},
		"session_id": "sess-1",
	}
}

func TestChatRequiresToken(t *testing.T) {
	env := newTestEnv(t, streamingUpstream)
	rec := env.do(t, http.MethodPost, "/chat", "", chatBody())
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestChatRejectsEmptyBalance(t *testing.T) {
	env := newTestEnv(t, streamingUpstream)
	rec := env.do(t, http.MethodPost, "/chat", "broke", chatBody())
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected status 402, got %d", rec.Code)
	}
}

func TestChatRejectsUnknownModel(t *testing.T) {
	env := newTestEnv(t, streamingUpstream)
	env.seed(t, models.Account{ID: "u1", Balance: 5})
	body := chatBody()
	body["modelId"] = "unknown/model"
	rec := env.do(t, http.MethodPost, "/api/chat", "u1", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestChatStreamsAndBills(t *testing.T) {
	env := newTestEnv(t, streamingUpstream)
	env.seed(t, models.Account{ID: "u1", Balance: 5})

	rec := env.do(t, http.MethodPost, "/chat", "u1", chatBody())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	out := rec.Body.String()
	if !strings.HasPrefix(out, "event: content\ndata: {\"delta\":\"Hi\"}\n\n") {
		t.Fatalf("stream = %q", out)
	}
	if !strings.HasSuffix(out, "event: done\ndata: {}\n\n") || strings.Count(out, "event: done") != 1 {
		t.Fatalf("stream must end with a single done event: %q", out)
	}

	env.drain(t)
	acct, _ := account.NewGormStore(env.conn).Get(context.Background(), "u1")
	// 1000 * 3/1M + 100 * 15/1M = 0.0045, premier markup 10%.
	if want := 5 - 0.0050; acct.Balance < want-1e-9 || acct.Balance > want+1e-9 {
		t.Fatalf("balance = %v, want %v", acct.Balance, want)
	}
	rec = env.do(t, http.MethodGet, "/api/usage/turns?session_id=sess-1", "u1", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"title":"Turn 1"`) {
		t.Fatalf("turns = %d %s", rec.Code, rec.Body.String())
	}
}

func TestChatUpstreamFailureBecomesErrorEvent(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})
	env.seed(t, models.Account{ID: "u1", Balance: 5})

	rec := env.do(t, http.MethodPost, "/chat", "u1", chatBody())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	want := "event: error\ndata: {\"message\":\"OpenRouter Error: Service Unavailable\"}\n\nevent: done\ndata: {}\n\n"
	if rec.Body.String() != want {
		t.Fatalf("body = %q", rec.Body.String())
	}

	env.drain(t)
	var count int64
	env.conn.Model(&models.ChatTurn{}).Count(&count)
	if count != 0 {
		t.Fatalf("failed upstream call was billed")
	}
}

func TestModelsArePublicAndGrouped(t *testing.T) {
	env := newTestEnv(t, streamingUpstream)
	rec := env.do(t, http.MethodGet, "/api/models", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var listing struct {
		Premier    []json.RawMessage `json:"premier"`
		OpenSource []json.RawMessage `json:"openSource"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listing.Premier) == 0 || len(listing.OpenSource) == 0 {
		t.Fatalf("listing = %s", rec.Body.String())
	}
}

func TestProfileToggleRequiresPaymentMethod(t *testing.T) {
	env := newTestEnv(t, streamingUpstream)
	env.seed(t, models.Account{ID: "u1", Balance: 1})

	rec := env.do(t, http.MethodPost, "/api/profile", "u1", gin.H{"auto_topup": true})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}

	if err := account.NewGormStore(env.conn).SavePaymentMethod(context.Background(), "u1", "cus_1", "pm_1"); err != nil {
		t.Fatalf("SavePaymentMethod: %v", err)
	}
	rec = env.do(t, http.MethodPost, "/api/profile", "u1", gin.H{"auto_topup": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/profile", "u1", nil)
	if !strings.Contains(rec.Body.String(), `"auto_topup":true`) || !strings.Contains(rec.Body.String(), `"has_payment_method":true`) {
		t.Fatalf("profile = %s", rec.Body.String())
	}
}

func signWebhook(payload []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestStripeWebhookCreditsOnce(t *testing.T) {
	env := newTestEnv(t, streamingUpstream)
	env.seed(t, models.Account{ID: "u1", Balance: -3})

	payload := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","object":"payment_intent","amount_received":2500,"metadata":{"userId":"u1"},"payment_method":"pm_1","customer":"cus_1"}}}`)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", bytes.NewReader(payload))
		req.Header.Set("Stripe-Signature", signWebhook(payload))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: status %d %s", i, rec.Code, rec.Body.String())
		}
	}

	acct, _ := account.NewGormStore(env.conn).Get(context.Background(), "u1")
	if acct.Balance != 22 {
		t.Fatalf("balance = %v, want 22", acct.Balance)
	}
	if !acct.HasPaymentMethod() {
		t.Fatalf("payment method not saved")
	}
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t, streamingUpstream)
	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, streamingUpstream)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"database":"sqlite"`) {
		t.Fatalf("healthz = %d %s", rec.Code, rec.Body.String())
	}
}
