// Package account persists end-user balances and billing preferences.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/resolv-sh/resolv-gateway/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrAccountNotFound is returned when no account row exists for a user id.
var ErrAccountNotFound = errors.New("account not found")

// Credit describes a settled payment to add to a balance.
type Credit struct {
	UserID      string
	Amount      float64
	PaymentID   string // Processor reference; credits with the same id apply once.
	Description string
}

// Flags are the user-controlled billing switches.
type Flags struct {
	AllowOverdraft *bool
	AutoTopup      *bool
}

// GormStore implements account persistence on GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a GormStore.
func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

// Get loads an account.
func (s *GormStore) Get(ctx context.Context, userID string) (models.Account, error) {
	var acct models.Account
	if errFind := s.db.WithContext(ctx).Where("id = ?", userID).Take(&acct).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.Account{}, ErrAccountNotFound
		}
		return models.Account{}, fmt.Errorf("account: get: %w", errFind)
	}
	return acct, nil
}

// Ensure returns the account for userID, creating an empty one on first sight.
func (s *GormStore) Ensure(ctx context.Context, userID, email string) (models.Account, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return models.Account{}, errors.New("account: empty user id")
	}
	acct := models.Account{ID: userID, Email: strings.TrimSpace(email)}
	if errCreate := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&acct).Error; errCreate != nil {
		return models.Account{}, fmt.Errorf("account: ensure: %w", errCreate)
	}
	return s.Get(ctx, userID)
}

// Decrement atomically subtracts amount and returns the resulting balance.
func (s *GormStore) Decrement(ctx context.Context, userID string, amount float64) (float64, error) {
	return s.adjust(ctx, s.db.WithContext(ctx), userID, -amount)
}

// adjust applies delta in a single UPDATE and reads the row back inside the
// same transaction, so the returned balance includes this change.
func (s *GormStore) adjust(ctx context.Context, conn *gorm.DB, userID string, delta float64) (float64, error) {
	var balance float64
	errTx := conn.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Account{}).
			Where("id = ?", userID).
			Update("balance", gorm.Expr("balance + ?", delta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAccountNotFound
		}
		var row struct{ Balance float64 }
		if errRead := tx.Model(&models.Account{}).Select("balance").Where("id = ?", userID).Take(&row).Error; errRead != nil {
			return errRead
		}
		balance = row.Balance
		return nil
	})
	if errTx != nil {
		if errors.Is(errTx, ErrAccountNotFound) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("account: adjust balance: %w", errTx)
	}
	return balance, nil
}

// SetBalance overwrites the balance. It is the non-atomic fallback for
// Decrement and races with concurrent adjustments.
func (s *GormStore) SetBalance(ctx context.Context, userID string, balance float64) error {
	res := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", userID).Update("balance", balance)
	if res.Error != nil {
		return fmt.Errorf("account: set balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Credit records a settled payment and increments the balance in one
// transaction. A payment id that was already credited is a no-op and
// reports applied=false.
func (s *GormStore) Credit(ctx context.Context, credit Credit) (applied bool, newBalance float64, err error) {
	if credit.Amount <= 0 {
		return false, 0, fmt.Errorf("account: credit amount must be positive, got %v", credit.Amount)
	}
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.Transaction{
			UserID:      credit.UserID,
			Amount:      credit.Amount,
			Status:      models.TransactionStatusCompleted,
			Description: credit.Description,
		}
		if id := strings.TrimSpace(credit.PaymentID); id != "" {
			row.StripePaymentID = &id
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_payment_id"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		balance, errAdjust := s.adjust(ctx, tx, credit.UserID, credit.Amount)
		if errAdjust != nil {
			return errAdjust
		}
		applied = true
		newBalance = balance
		return nil
	})
	if errTx != nil {
		return false, 0, errTx
	}
	return applied, newBalance, nil
}

// SavePaymentMethod stores the processor references used for off-session charges.
func (s *GormStore) SavePaymentMethod(ctx context.Context, userID, customerID, paymentMethodID string) error {
	updates := map[string]any{"stripe_payment_method_id": strings.TrimSpace(paymentMethodID)}
	if c := strings.TrimSpace(customerID); c != "" {
		updates["stripe_customer_id"] = c
	}
	res := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("account: save payment method: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// SetCustomerID stores the processor customer reference.
func (s *GormStore) SetCustomerID(ctx context.Context, userID, customerID string) error {
	res := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", userID).
		Update("stripe_customer_id", strings.TrimSpace(customerID))
	if res.Error != nil {
		return fmt.Errorf("account: set customer: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ClearPaymentMethod forgets the saved card and turns off the flags that
// depend on it.
func (s *GormStore) ClearPaymentMethod(ctx context.Context, userID string) error {
	res := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", userID).Updates(map[string]any{
		"stripe_payment_method_id": nil,
		"allow_overdraft":          false,
		"auto_topup":               false,
	})
	if res.Error != nil {
		return fmt.Errorf("account: clear payment method: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// UpdateFlags applies the non-nil flags.
func (s *GormStore) UpdateFlags(ctx context.Context, userID string, flags Flags) error {
	updates := map[string]any{}
	if flags.AllowOverdraft != nil {
		updates["allow_overdraft"] = *flags.AllowOverdraft
	}
	if flags.AutoTopup != nil {
		updates["auto_topup"] = *flags.AutoTopup
	}
	if len(updates) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("account: update flags: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}
