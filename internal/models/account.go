package models

import "time"

// Account holds the billing state for an end user.
type Account struct {
	ID    string `gorm:"type:varchar(64);primaryKey"` // Identity provider user ID.
	Email string `gorm:"type:text"`                   // Contact email, when known.

	Balance float64 `gorm:"type:decimal(20,10);not null;default:0"` // Balance in dollars, may be negative.

	IsAdmin        bool `gorm:"not null;default:false"` // Admins are never debited.
	AllowOverdraft bool `gorm:"not null;default:false"` // Permit spending below zero down to the floor.
	AutoTopup      bool `gorm:"not null;default:false"` // Refill automatically at the floor.

	StripeCustomerID      *string `gorm:"type:text"` // Processor customer reference.
	StripePaymentMethodID *string `gorm:"type:text"` // Saved card used for off-session charges.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// HasPaymentMethod reports whether the account has a saved card.
func (a Account) HasPaymentMethod() bool {
	return a.StripePaymentMethodID != nil && *a.StripePaymentMethodID != ""
}
