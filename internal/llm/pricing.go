package llm

// ModelCost holds pricing for a model.
// Token prices are in USD per 1 million tokens, sourced from models.dev.
// Image models are priced per rendered image instead.
type ModelCost struct {
	InputPerMTok  float64 // USD per 1M input tokens
	OutputPerMTok float64 // USD per 1M output tokens
	PerImage      float64 // USD per image (image models only)
}

// Cost calculates the total USD cost for the given token counts.
func (c ModelCost) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*c.InputPerMTok/1_000_000 +
		float64(outputTokens)*c.OutputPerMTok/1_000_000
}

// UsageCost adds the per-image price for calls to the token cost.
func (c ModelCost) UsageCost(calls, inputTokens, outputTokens int) float64 {
	return c.Cost(inputTokens, outputTokens) + float64(calls)*c.PerImage
}

// LookupCost returns the pricing for a model ID, or nil if unknown.
func LookupCost(modelID string) *ModelCost {
	if c, ok := modelCosts[modelID]; ok {
		return &c
	}
	return nil
}

// modelCosts covers the models the friendly names resolve to plus their
// common siblings. Last updated: 2026-02-15.
var modelCosts = map[string]ModelCost{
	// Anthropic
	"claude-3-5-haiku-20241022":  {InputPerMTok: 0.8, OutputPerMTok: 4},
	"claude-haiku-4-5":           {InputPerMTok: 1, OutputPerMTok: 5},
	"claude-haiku-4-5-20251001":  {InputPerMTok: 1, OutputPerMTok: 5},
	"claude-sonnet-4-20250514":   {InputPerMTok: 3, OutputPerMTok: 15},
	"claude-sonnet-4-5":          {InputPerMTok: 3, OutputPerMTok: 15},
	"claude-sonnet-4-5-20250929": {InputPerMTok: 3, OutputPerMTok: 15},

	// OpenAI
	"gpt-4.1":      {InputPerMTok: 2, OutputPerMTok: 8},
	"gpt-4.1-mini": {InputPerMTok: 0.4, OutputPerMTok: 1.6},
	"gpt-4o":       {InputPerMTok: 2.5, OutputPerMTok: 10},
	"gpt-4o-mini":  {InputPerMTok: 0.15, OutputPerMTok: 0.6},
	"gpt-5-mini":   {InputPerMTok: 0.25, OutputPerMTok: 2},
	"dall-e-3":     {PerImage: 0.04},

	// Google (Gemini)
	"gemini-2.0-flash":             {InputPerMTok: 0.1, OutputPerMTok: 0.4},
	"gemini-2.0-flash-lite":        {InputPerMTok: 0.075, OutputPerMTok: 0.3},
	"gemini-2.5-flash":             {InputPerMTok: 0.3, OutputPerMTok: 2.5},
	"gemini-2.5-flash-lite":        {InputPerMTok: 0.1, OutputPerMTok: 0.4},
	"gemini-2.5-pro":               {InputPerMTok: 1.25, OutputPerMTok: 10},
	"imagen-3.0-generate-002":      {PerImage: 0.04},
	"imagen-3.0-fast-generate-001": {PerImage: 0.02},
}
