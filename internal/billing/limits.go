package billing

import (
	"github.com/resolv-sh/resolv-gateway/internal/config"
	"github.com/resolv-sh/resolv-gateway/internal/settings"
)

// Limits exposes the balance thresholds shared by admission and the ledger.
type Limits interface {
	OverdraftFloor() float64
	AutoTopupAmount() float64
}

// SettingsLimits reads thresholds from the settings snapshot with config fallback.
type SettingsLimits struct {
	cfg config.BillingConfig
}

// NewSettingsLimits constructs a SettingsLimits.
func NewSettingsLimits(cfg config.BillingConfig) *SettingsLimits {
	return &SettingsLimits{cfg: cfg}
}

// OverdraftFloor returns the most negative admissible balance. Positive
// overrides are ignored.
func (l *SettingsLimits) OverdraftFloor() float64 {
	floor := settings.Float(settings.OverdraftFloorKey, l.cfg.OverdraftFloor)
	if floor > 0 {
		return l.cfg.OverdraftFloor
	}
	return floor
}

// AutoTopupAmount returns the dollars charged on auto-refill.
func (l *SettingsLimits) AutoTopupAmount() float64 {
	amount := settings.Float(settings.AutoTopupAmountKey, l.cfg.AutoTopupAmount)
	if amount < 0 {
		return l.cfg.AutoTopupAmount
	}
	return amount
}

// StaticLimits is a fixed Limits value.
type StaticLimits struct {
	Floor float64
	Topup float64
}

// OverdraftFloor implements Limits.
func (s StaticLimits) OverdraftFloor() float64 { return s.Floor }

// AutoTopupAmount implements Limits.
func (s StaticLimits) AutoTopupAmount() float64 { return s.Topup }
