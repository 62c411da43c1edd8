package settings

// Runtime override keys stored in the settings table. Values are JSON.
const (
	// OverdraftFloorKey overrides the most negative admissible balance.
	OverdraftFloorKey = "OVERDRAFT_FLOOR"
	// AutoTopupAmountKey overrides the dollar amount charged on auto-refill.
	AutoTopupAmountKey = "AUTO_TOPUP_AMOUNT"
	// MarkupPremierRateKey overrides the premier tier markup fraction.
	MarkupPremierRateKey = "MARKUP_PREMIER_RATE"
	// MarkupOpenSourceRateKey overrides the open source tier markup fraction.
	MarkupOpenSourceRateKey = "MARKUP_STANDARD_RATE"
	// MarkupDefaultTierKey overrides the tier applied to unclassified models.
	MarkupDefaultTierKey = "MARKUP_DEFAULT_TIER"
	// TurnRetentionDaysKey overrides how long chat turns are kept.
	TurnRetentionDaysKey = "TURN_RETENTION_DAYS"
)
