// Package usage debits balances and consolidates billed calls into turns.
package usage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/resolv-sh/resolv-gateway/internal/account"
	"github.com/resolv-sh/resolv-gateway/internal/billing"
	"github.com/resolv-sh/resolv-gateway/internal/metrics"
	"github.com/resolv-sh/resolv-gateway/internal/models"
	"github.com/resolv-sh/resolv-gateway/internal/payment"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// Charge is one finished upstream call awaiting billing.
type Charge struct {
	UserID           string
	ModelID          string
	BaseCost         float64
	SessionID        string
	IsTurnStart      bool
	PromptTokens     int64
	CompletionTokens int64
	Estimated        bool
	RequestID        string
}

// Accounts is the account store surface the ledger needs.
type Accounts interface {
	Get(ctx context.Context, userID string) (models.Account, error)
	Decrement(ctx context.Context, userID string, amount float64) (float64, error)
	SetBalance(ctx context.Context, userID string, balance float64) error
	Credit(ctx context.Context, credit account.Credit) (bool, float64, error)
}

// Marker applies tier markup to a base cost.
type Marker interface {
	ApplyMarkup(modelID string, baseCost float64) billing.Quote
}

// Ledger commits charges. Commit never returns an error; every failure is
// logged and counted.
type Ledger struct {
	accounts  Accounts
	turns     TurnStore
	locker    TurnLocker
	marker    Marker
	limits    billing.Limits
	processor payment.Processor
}

// LedgerOption customises a Ledger.
type LedgerOption func(*Ledger)

// WithTurnLocker serialises same-session consolidation.
func WithTurnLocker(locker TurnLocker) LedgerOption {
	return func(l *Ledger) {
		if locker != nil {
			l.locker = locker
		}
	}
}

// WithProcessor enables auto-refill charges.
func WithProcessor(p payment.Processor) LedgerOption {
	return func(l *Ledger) { l.processor = p }
}

// NewLedger constructs a Ledger.
func NewLedger(accounts Accounts, turns TurnStore, marker Marker, limits billing.Limits, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		accounts: accounts,
		turns:    turns,
		locker:   NoopLocker{},
		marker:   marker,
		limits:   limits,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// callDetail is stored on the turn row for the latest merged call.
type callDetail struct {
	RequestID        string  `json:"request_id,omitempty"`
	Model            string  `json:"model"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	Estimated        bool    `json:"estimated"`
	BaseCost         float64 `json:"base_cost"`
	FinalCost        float64 `json:"final_cost"`
	Debited          float64 `json:"debited"`
	Tier             string  `json:"tier"`
}

// Commit debits the account, triggers auto-refill when due, and records the
// call in the turn ledger.
func (l *Ledger) Commit(ctx context.Context, ch Charge) {
	entry := log.WithFields(log.Fields{
		"user_id":    ch.UserID,
		"session_id": ch.SessionID,
		"model":      ch.ModelID,
		"request_id": ch.RequestID,
	})

	acct, errGet := l.accounts.Get(ctx, ch.UserID)
	if errGet != nil {
		metrics.LedgerFailures.WithLabelValues("account").Inc()
		entry.WithError(errGet).Warn("ledger: load account failed, charge skipped")
		return
	}

	quote := l.marker.ApplyMarkup(ch.ModelID, ch.BaseCost)
	debit := quote.FinalCost
	if acct.IsAdmin {
		debit = 0
	}

	if debit > 0 {
		balance, ok := l.debit(ctx, entry, acct, debit)
		if ok && acct.AutoTopup && balance <= l.limits.OverdraftFloor() {
			l.autoRefill(ctx, entry, acct, ch.RequestID)
		}
	}

	source := "reported"
	if ch.Estimated {
		source = "estimated"
	}
	metrics.BilledDollars.WithLabelValues(string(quote.Tier), source).Add(debit)

	l.recordTurn(ctx, entry, ch, quote, debit)
}

// debit decrements atomically, falling back to a read-then-write when the
// atomic path fails. The fallback races with concurrent adjustments.
func (l *Ledger) debit(ctx context.Context, entry *log.Entry, acct models.Account, amount float64) (float64, bool) {
	balance, errDec := l.accounts.Decrement(ctx, acct.ID, amount)
	if errDec == nil {
		return balance, true
	}
	if errors.Is(errDec, account.ErrAccountNotFound) {
		metrics.LedgerFailures.WithLabelValues("debit").Inc()
		entry.WithError(errDec).Warn("ledger: account vanished before debit")
		return 0, false
	}
	entry.WithError(errDec).Warn("ledger: atomic debit failed, falling back to direct update")

	current := acct.Balance
	if fresh, errGet := l.accounts.Get(ctx, acct.ID); errGet == nil {
		current = fresh.Balance
	}
	balance = current - amount
	if errSet := l.accounts.SetBalance(ctx, acct.ID, balance); errSet != nil {
		metrics.LedgerFailures.WithLabelValues("debit").Inc()
		entry.WithError(errSet).Error("ledger: fallback debit failed")
		return 0, false
	}
	return balance, true
}

// autoRefill charges the saved card once. Failures leave the balance as is.
func (l *Ledger) autoRefill(ctx context.Context, entry *log.Entry, acct models.Account, requestID string) {
	if l.processor == nil {
		metrics.AutoRefills.WithLabelValues("skipped").Inc()
		entry.Warn("ledger: auto-refill due but no payment processor is configured")
		return
	}
	if !acct.HasPaymentMethod() {
		metrics.AutoRefills.WithLabelValues("skipped").Inc()
		entry.Warn("ledger: auto-refill due but account has no saved payment method")
		return
	}
	amount := l.limits.AutoTopupAmount()
	if amount <= 0 {
		return
	}

	key := "auto-refill:" + acct.ID + ":"
	if requestID != "" {
		key += requestID
	} else {
		key += uuid.NewString()
	}
	result, errCharge := l.processor.ChargeOffSession(ctx, payment.OffSessionCharge{
		UserID:          acct.ID,
		CustomerID:      derefString(acct.StripeCustomerID),
		PaymentMethodID: derefString(acct.StripePaymentMethodID),
		Amount:          amount,
		IdempotencyKey:  key,
	})
	if errCharge != nil {
		metrics.AutoRefills.WithLabelValues("error").Inc()
		entry.WithError(errCharge).Warn("ledger: auto-refill charge failed")
		return
	}
	if !result.Succeeded {
		metrics.AutoRefills.WithLabelValues("declined").Inc()
		entry.WithField("status", result.Status).Warn("ledger: auto-refill charge not settled")
		return
	}

	applied, balance, errCredit := l.accounts.Credit(ctx, account.Credit{
		UserID:      acct.ID,
		Amount:      amount,
		PaymentID:   result.PaymentID,
		Description: "Auto-refill",
	})
	if errCredit != nil {
		metrics.AutoRefills.WithLabelValues("error").Inc()
		metrics.LedgerFailures.WithLabelValues("refill").Inc()
		entry.WithError(errCredit).Error("ledger: auto-refill charged but credit failed")
		return
	}
	metrics.AutoRefills.WithLabelValues("succeeded").Inc()
	entry.WithFields(log.Fields{
		"payment_id": result.PaymentID,
		"applied":    applied,
		"balance":    balance,
	}).Info("ledger: auto-refill succeeded")
}

func (l *Ledger) recordTurn(ctx context.Context, entry *log.Entry, ch Charge, quote billing.Quote, debit float64) {
	detail, errMarshal := json.Marshal(callDetail{
		RequestID:        ch.RequestID,
		Model:            ch.ModelID,
		PromptTokens:     ch.PromptTokens,
		CompletionTokens: ch.CompletionTokens,
		Estimated:        ch.Estimated,
		BaseCost:         quote.BaseCost,
		FinalCost:        quote.FinalCost,
		Debited:          debit,
		Tier:             string(quote.Tier),
	})
	if errMarshal != nil {
		detail = nil
	}

	turn := &models.ChatTurn{
		UserID:           ch.UserID,
		Model:            ch.ModelID,
		BaseCost:         quote.BaseCost,
		FinalCost:        quote.FinalCost,
		MarkupPercentage: quote.MarkupPercentage(),
		PromptTokens:     ch.PromptTokens,
		CompletionTokens: ch.CompletionTokens,
		Calls:            1,
		Estimated:        ch.Estimated,
		Detail:           datatypes.JSON(detail),
	}

	sessionID := strings.TrimSpace(ch.SessionID)
	if sessionID == "" {
		if errInsert := l.turns.InsertTurn(ctx, turn); errInsert != nil {
			metrics.LedgerFailures.WithLabelValues("turn").Inc()
			entry.WithError(errInsert).Warn("ledger: record call failed")
		}
		return
	}

	unlock, errLock := l.locker.Lock(ctx, ch.UserID, sessionID)
	if errLock != nil {
		entry.WithError(errLock).Warn("ledger: turn lock unavailable, consolidating without it")
		unlock = func() {}
	}
	defer unlock()

	latest, errFind := l.turns.FindLatestTurn(ctx, ch.UserID, sessionID)
	if errFind != nil {
		metrics.LedgerFailures.WithLabelValues("turn").Inc()
		entry.WithError(errFind).Warn("ledger: load latest turn failed, starting a new one")
		latest = nil
	}

	if latest != nil && !ch.IsTurnStart {
		errUpdate := l.turns.UpdateTurn(ctx, latest.ID, TurnDelta{
			Model:            ch.ModelID,
			BaseCost:         quote.BaseCost,
			FinalCost:        quote.FinalCost,
			PromptTokens:     ch.PromptTokens,
			CompletionTokens: ch.CompletionTokens,
			Estimated:        ch.Estimated,
			Detail:           turn.Detail,
		})
		if errUpdate != nil {
			metrics.LedgerFailures.WithLabelValues("turn").Inc()
			entry.WithError(errUpdate).Warn("ledger: merge into turn failed")
		}
		return
	}

	turn.SessionID = &sessionID
	turn.Title = NextTurnTitle(latest)
	if errInsert := l.turns.InsertTurn(ctx, turn); errInsert != nil {
		metrics.LedgerFailures.WithLabelValues("turn").Inc()
		entry.WithError(errInsert).Warn("ledger: insert turn failed")
		return
	}
	entry.WithField("title", turn.Title).Debug("ledger: turn opened")
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// commitContext bounds one detached Commit.
func commitContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}
