package access

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/resolv-sh/resolv-gateway/internal/billing"
	"github.com/resolv-sh/resolv-gateway/internal/models"
)

type stubAccounts struct {
	acct models.Account
	err  error
}

func (s stubAccounts) Get(context.Context, string) (models.Account, error) {
	return s.acct, s.err
}

func admit(acct models.Account) bool {
	a := NewAdmission(stubAccounts{acct: acct}, billing.StaticLimits{Floor: -10, Topup: 10})
	return a.CanProceed(context.Background(), "u")
}

func TestCanProceedDecisionTable(t *testing.T) {
	cases := []struct {
		name string
		acct models.Account
		want bool
	}{
		{"positive balance", models.Account{Balance: 5}, true},
		{"zero balance no overdraft", models.Account{Balance: 0}, false},
		{"negative no overdraft", models.Account{Balance: -1}, false},
		{"overdraft above floor", models.Account{Balance: -5, AllowOverdraft: true}, true},
		{"overdraft at floor", models.Account{Balance: -10, AllowOverdraft: true}, false},
		{"overdraft below floor", models.Account{Balance: -12, AllowOverdraft: true}, false},
		{"autotopup just above floor", models.Account{Balance: -9.99, AutoTopup: true}, true},
		{"autotopup at zero", models.Account{Balance: 0, AutoTopup: true}, true},
		{"admin deep negative", models.Account{Balance: -500, IsAdmin: true}, true},
	}
	for _, tc := range cases {
		if got := admit(tc.acct); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestCanProceedFailsClosed(t *testing.T) {
	a := NewAdmission(stubAccounts{err: errors.New("db down"), acct: models.Account{IsAdmin: true}}, billing.StaticLimits{Floor: -10})
	if a.CanProceed(context.Background(), "u") {
		t.Fatalf("expected deny on storage error")
	}
	if !errors.Is(a.Check(context.Background(), "u"), ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance from Check")
	}

	var nilAdmission *Admission
	if nilAdmission.CanProceed(context.Background(), "u") {
		t.Fatalf("expected nil admission to deny")
	}
}

func TestCanProceedUsesConfiguredFloor(t *testing.T) {
	a := NewAdmission(stubAccounts{acct: models.Account{Balance: -15, AllowOverdraft: true}}, billing.StaticLimits{Floor: -20})
	if !a.CanProceed(context.Background(), "u") {
		t.Fatalf("expected allow above a -20 floor")
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"":             "",
		"Bearer":       "",
	}
	for header, want := range cases {
		r := httptest.NewRequest(http.MethodPost, "/chat", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		if got := ExtractBearerToken(r); got != want {
			t.Fatalf("header %q: expected %q, got %q", header, want, got)
		}
	}
}
