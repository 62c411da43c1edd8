// Package billing prices upstream usage.
package billing

import (
	"math"
	"strings"

	"github.com/resolv-sh/resolv-gateway/internal/catalog"
)

const tokensPerMillion = 1_000_000

// ModelSource resolves catalog entries by id.
type ModelSource interface {
	Lookup(id string) (catalog.Model, bool)
}

// RateSource supplies markup rates as fractions (0.2 is 20%).
type RateSource interface {
	MarkupRate(tier catalog.Tier) float64
	DefaultTier() catalog.Tier
}

// Quote is the priced outcome of a single upstream call.
type Quote struct {
	BaseCost  float64
	FinalCost float64
	Markup    float64
	Rate      float64
	Tier      catalog.Tier
}

// MarkupPercentage returns the applied rate in percent.
func (q Quote) MarkupPercentage() float64 {
	return math.Round(q.Rate*100*1e4) / 1e4
}

// Pricer turns token counts into dollar costs. It has no side effects.
type Pricer struct {
	models ModelSource
	rates  RateSource
}

// NewPricer constructs a Pricer.
func NewPricer(models ModelSource, rates RateSource) *Pricer {
	return &Pricer{models: models, rates: rates}
}

// PriceFromTokens returns the pre-markup cost. Unknown models and models
// without a rate table cost nothing. Negative counts are treated as zero.
func (p *Pricer) PriceFromTokens(modelID string, promptTokens, completionTokens int64) float64 {
	if p == nil || p.models == nil {
		return 0
	}
	m, ok := p.models.Lookup(modelID)
	if !ok || m.Pricing == nil {
		return 0
	}
	prompt := float64(max(promptTokens, 0))
	completion := float64(max(completionTokens, 0))
	return prompt/tokensPerMillion*nonNegative(m.Pricing.Input) +
		completion/tokensPerMillion*nonNegative(m.Pricing.Output)
}

// ApplyMarkup prices baseCost with the markup of the model's tier.
// Models without a tier use the configured default tier.
func (p *Pricer) ApplyMarkup(modelID string, baseCost float64) Quote {
	baseCost = nonNegative(baseCost)
	tier := p.TierOf(modelID)
	rate := 0.0
	if p != nil && p.rates != nil {
		rate = nonNegative(p.rates.MarkupRate(tier))
	}

	final := RoundCost(baseCost * (1 + rate))
	// Markups below half a ten-thousandth round away; bill the next step up.
	if rate > 0 && baseCost > 0 && final <= baseCost {
		final = math.Floor(baseCost*1e4)/1e4 + 1e-4
	}
	return Quote{
		BaseCost:  baseCost,
		FinalCost: final,
		Markup:    RoundCost(baseCost * rate),
		Rate:      rate,
		Tier:      tier,
	}
}

// TierOf returns the markup tier for a model id.
func (p *Pricer) TierOf(modelID string) catalog.Tier {
	if p == nil {
		return catalog.TierOpenSource
	}
	if p.models != nil {
		if m, ok := p.models.Lookup(modelID); ok && m.Tier != catalog.TierUnclassified {
			return m.Tier
		}
	}
	if p.rates != nil {
		if tier := p.rates.DefaultTier(); tier != catalog.TierUnclassified {
			return tier
		}
	}
	return catalog.TierOpenSource
}

// RoundCost rounds a dollar amount to the nearest 4th decimal place, halves up.
func RoundCost(v float64) float64 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	return math.Round(v*1e4) / 1e4
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

// ParseTier maps a configured tier name to a Tier.
func ParseTier(name string) catalog.Tier {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case string(catalog.TierPremier):
		return catalog.TierPremier
	case string(catalog.TierOpenSource), "standard", "open-source":
		return catalog.TierOpenSource
	default:
		return catalog.TierUnclassified
	}
}
