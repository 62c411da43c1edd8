package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/resolv-sh/resolv-gateway/internal/config"
	"github.com/resolv-sh/resolv-gateway/internal/http/api/front"
)

func TestBuildProcessorDisabledWithoutKey(t *testing.T) {
	processor, err := buildProcessor(config.StripeConfig{Currency: "usd"})
	if err != nil || processor != nil {
		t.Fatalf("expected nil processor, got %v %v", processor, err)
	}
	opts, err := ledgerOptions(config.Default(), processor)
	if err != nil {
		t.Fatalf("ledgerOptions: %v", err)
	}
	if len(opts) != 0 {
		t.Fatalf("expected no ledger options, got %d", len(opts))
	}
}

func TestBuildEngineServesMetrics(t *testing.T) {
	engine := buildEngine(config.Default(), front.Dependencies{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", rec.Code)
	}
}

func TestLedgerOptionsRejectsBadRedisURL(t *testing.T) {
	cfg := config.Default()
	cfg.Redis.URL = "not-a-redis-url"
	if _, err := ledgerOptions(cfg, nil); err == nil {
		t.Fatalf("expected redis url error")
	}
}
