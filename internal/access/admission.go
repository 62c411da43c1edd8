// Package access decides whether a caller may start a metered request.
package access

import (
	"context"
	"errors"

	"github.com/resolv-sh/resolv-gateway/internal/billing"
	"github.com/resolv-sh/resolv-gateway/internal/models"
	log "github.com/sirupsen/logrus"
)

// ErrInsufficientBalance indicates the account may not start a new request.
var ErrInsufficientBalance = errors.New("insufficient balance")

// AccountReader loads account state.
type AccountReader interface {
	Get(ctx context.Context, userID string) (models.Account, error)
}

// Admission gates new requests on account balance.
type Admission struct {
	accounts AccountReader
	limits   billing.Limits
}

// NewAdmission constructs an Admission.
func NewAdmission(accounts AccountReader, limits billing.Limits) *Admission {
	return &Admission{accounts: accounts, limits: limits}
}

// CanProceed reports whether userID may start a request. Any failure to read
// the account denies. The check gates admission only; a single request may
// still push the balance below the floor.
func (a *Admission) CanProceed(ctx context.Context, userID string) bool {
	if a == nil || a.accounts == nil {
		return false
	}
	acct, errGet := a.accounts.Get(ctx, userID)
	if errGet != nil {
		log.WithError(errGet).WithField("user_id", userID).Warn("admission: account lookup failed, denying")
		return false
	}
	floor := -10.0
	if a.limits != nil {
		floor = a.limits.OverdraftFloor()
	}
	return Decide(acct, floor)
}

// Check is CanProceed expressed as an error for middleware use.
func (a *Admission) Check(ctx context.Context, userID string) error {
	if !a.CanProceed(ctx, userID) {
		return ErrInsufficientBalance
	}
	return nil
}

// Decide applies the admission table to an account snapshot.
func Decide(acct models.Account, floor float64) bool {
	switch {
	case acct.IsAdmin:
		return true
	case acct.Balance > 0:
		return true
	case acct.AllowOverdraft || acct.AutoTopup:
		return acct.Balance > floor
	default:
		return false
	}
}
