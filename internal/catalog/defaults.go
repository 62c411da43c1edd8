package catalog

// DefaultModels returns the built-in catalog used when no catalog file is configured.
func DefaultModels() []Model {
	return []Model{
		{
			ID:            "anthropic/claude-3.5-sonnet",
			Name:          "Claude 3.5 Sonnet",
			Provider:      "Anthropic",
			ContextWindow: 200000,
			Description:   "Top-tier reasoning and coding. Suited to complex architectural work.",
			Capabilities:  Capabilities{Vision: true, Coding: true, FunctionCalling: true},
			Pricing:       &Pricing{Input: 3.00, Output: 15.00},
			Tier:          TierPremier,
		},
		{
			ID:            "openai/gpt-4o",
			Name:          "GPT-4o",
			Provider:      "OpenAI",
			ContextWindow: 128000,
			Description:   "Fast general purpose multimodal model.",
			Capabilities:  Capabilities{Vision: true, Coding: true, FunctionCalling: true},
			Pricing:       &Pricing{Input: 2.50, Output: 10.00},
			Tier:          TierPremier,
		},
		{
			ID:            "google/gemini-pro-1.5",
			Name:          "Gemini 1.5 Pro",
			Provider:      "Google",
			ContextWindow: 2000000,
			Description:   "Very large context window for whole repositories and long documents.",
			Capabilities:  Capabilities{Vision: true, Coding: true, FunctionCalling: true},
			Pricing:       &Pricing{Input: 3.50, Output: 10.50},
			// Listed as premier but not classified for markup.
			Listing: TierPremier,
		},
		{
			ID:            "google/gemini-2.0-flash-exp:free",
			Name:          "Gemini 2.0 Flash (Free)",
			Provider:      "Google",
			ContextWindow: 1048576,
			Description:   "Experimental high-speed model with a 1M token context window.",
			Capabilities:  Capabilities{Vision: true, Coding: true, FunctionCalling: true},
			Pricing:       &Pricing{},
			Tier:          TierOpenSource,
		},
		{
			ID:            "google/gemini-2.0-flash-thinking-exp:free",
			Name:          "Gemini 2.0 Flash Thinking (Free)",
			Provider:      "Google",
			ContextWindow: 1048576,
			Description:   "Thinking variant with stronger multi-step reasoning.",
			Capabilities:  Capabilities{Vision: true, Coding: true, FunctionCalling: true},
			Pricing:       &Pricing{},
		},
		{
			ID:            "meta-llama/llama-3.3-70b-instruct:free",
			Name:          "Llama 3.3 70B (Free)",
			Provider:      "Meta",
			ContextWindow: 128000,
			Description:   "Open-weight model with strong reasoning.",
			Capabilities:  Capabilities{Coding: true, FunctionCalling: true},
			Pricing:       &Pricing{},
		},
		{
			ID:            "deepseek/deepseek-r1:free",
			Name:          "DeepSeek R1 (Free)",
			Provider:      "DeepSeek",
			ContextWindow: 64000,
			Description:   "Reasoning and coding focused open model.",
			Capabilities:  Capabilities{Coding: true, FunctionCalling: true},
			Pricing:       &Pricing{},
		},
		{
			ID:            "mistralai/mistral-small-3.1-24b-instruct:free",
			Name:          "Mistral Small 3 (Free)",
			Provider:      "Mistral",
			ContextWindow: 32000,
			Description:   "Efficient model balancing quality and speed.",
			Capabilities:  Capabilities{Coding: true, FunctionCalling: true},
			Pricing:       &Pricing{},
		},
	}
}
