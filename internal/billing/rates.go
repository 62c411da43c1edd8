package billing

import (
	"github.com/resolv-sh/resolv-gateway/internal/catalog"
	"github.com/resolv-sh/resolv-gateway/internal/config"
	"github.com/resolv-sh/resolv-gateway/internal/settings"
)

// SettingsRates reads markup knobs from the settings snapshot, falling back
// to the static billing configuration.
type SettingsRates struct {
	cfg config.BillingConfig
}

// NewSettingsRates constructs a SettingsRates.
func NewSettingsRates(cfg config.BillingConfig) *SettingsRates {
	return &SettingsRates{cfg: cfg}
}

// MarkupRate implements RateSource.
func (r *SettingsRates) MarkupRate(tier catalog.Tier) float64 {
	if tier == catalog.TierPremier {
		return settings.Float(settings.MarkupPremierRateKey, r.cfg.PremierMarkup)
	}
	return settings.Float(settings.MarkupOpenSourceRateKey, r.cfg.OpenSourceMarkup)
}

// DefaultTier implements RateSource.
func (r *SettingsRates) DefaultTier() catalog.Tier {
	name := settings.String(settings.MarkupDefaultTierKey, r.cfg.DefaultTier)
	if tier := ParseTier(name); tier != catalog.TierUnclassified {
		return tier
	}
	return ParseTier(r.cfg.DefaultTier)
}
