package models

import "time"

// Transaction status values.
const (
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// Transaction records a balance credit settled by the payment processor.
type Transaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID string  `gorm:"type:varchar(64);not null;index"`        // Credited account.
	Amount float64 `gorm:"type:decimal(20,10);not null;default:0"` // Credited dollars.

	StripePaymentID *string `gorm:"type:varchar(255);uniqueIndex"` // Processor payment reference, unique per credit.

	Status      string `gorm:"type:varchar(32);not null"` // Settlement status.
	Description string `gorm:"type:text"`                 // Human readable reason.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}
