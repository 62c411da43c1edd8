// Package catalog holds the set of models the gateway accepts and their prices.
package catalog

// Tier classifies a model for markup purposes.
type Tier string

const (
	// TierUnclassified leaves the choice to the pricer's default tier.
	TierUnclassified Tier = ""
	// TierPremier is the curated, lower-markup tier.
	TierPremier Tier = "premier"
	// TierOpenSource is the higher-markup tier.
	TierOpenSource Tier = "open_source"
)

// Pricing holds dollar rates per million tokens.
type Pricing struct {
	Input  float64 `json:"input" yaml:"input"`
	Output float64 `json:"output" yaml:"output"`
}

// Capabilities advertises model features to clients.
type Capabilities struct {
	Vision          bool `json:"vision" yaml:"vision"`
	Coding          bool `json:"coding" yaml:"coding"`
	FunctionCalling bool `json:"functionCalling" yaml:"function-calling"`
}

// Model describes one selectable upstream model.
type Model struct {
	ID            string       `json:"id" yaml:"id"`
	Name          string       `json:"name" yaml:"name"`
	Provider      string       `json:"provider" yaml:"provider"`
	ContextWindow int          `json:"contextWindow" yaml:"context-window"`
	Description   string       `json:"description" yaml:"description"`
	Capabilities  Capabilities `json:"capabilities" yaml:"capabilities"`
	Pricing       *Pricing     `json:"pricing,omitempty" yaml:"pricing"`
	// Tier drives markup only and is not exposed to clients.
	Tier Tier `json:"-" yaml:"tier"`
	// Listing groups the model in the public list: premier or open_source.
	Listing Tier `json:"-" yaml:"listing"`
}

func (m Model) clone() Model {
	out := m
	if m.Pricing != nil {
		p := *m.Pricing
		out.Pricing = &p
	}
	return out
}
