// Package cost estimates the dollar cost of LLM API usage from token counts.
// Prices are per million tokens and track the published list prices of each
// provider. Unknown models fall back to a conservative default so tracked
// totals never silently read as zero.
package cost

import "strings"

// ModelPricing holds the per-million-token prices for a model.
type ModelPricing struct {
	PromptUSD     float64
	CompletionUSD float64
}

// defaultPricing is applied when a model is not in the table.
var defaultPricing = ModelPricing{PromptUSD: 3.00, CompletionUSD: 15.00}

// pricingTable maps model identifier prefixes to prices. Longest prefix wins,
// so versioned identifiers like "gpt-4o-2024-08-06" resolve correctly.
var pricingTable = map[string]ModelPricing{
	"gpt-4o-mini":          {PromptUSD: 0.15, CompletionUSD: 0.60},
	"gpt-4o":               {PromptUSD: 2.50, CompletionUSD: 10.00},
	"gpt-4.1-mini":         {PromptUSD: 0.40, CompletionUSD: 1.60},
	"gpt-4.1":              {PromptUSD: 2.00, CompletionUSD: 8.00},
	"o3-mini":              {PromptUSD: 1.10, CompletionUSD: 4.40},
	"claude-3-5-haiku":     {PromptUSD: 0.80, CompletionUSD: 4.00},
	"claude-3-5-sonnet":    {PromptUSD: 3.00, CompletionUSD: 15.00},
	"claude-sonnet-4":      {PromptUSD: 3.00, CompletionUSD: 15.00},
	"claude-opus-4":        {PromptUSD: 15.00, CompletionUSD: 75.00},
	"gemini-2.0-flash":     {PromptUSD: 0.10, CompletionUSD: 0.40},
	"gemini-1.5-pro":       {PromptUSD: 1.25, CompletionUSD: 5.00},
	"deepseek-chat":        {PromptUSD: 0.27, CompletionUSD: 1.10},
	"llama-3.3-70b":        {PromptUSD: 0.59, CompletionUSD: 0.79},
	"mistral-small-latest": {PromptUSD: 0.10, CompletionUSD: 0.30},
}

// CostCalculator converts token usage into estimated USD amounts.
type CostCalculator struct {
	table    map[string]ModelPricing
	fallback ModelPricing
}

// NewCostCalculator returns a calculator loaded with the built-in price table.
func NewCostCalculator() *CostCalculator {
	return &CostCalculator{table: pricingTable, fallback: defaultPricing}
}

// PricingFor resolves the price entry for a model identifier. Matching is by
// longest registered prefix after lowercasing, so provider-specific suffixes
// and date stamps do not defeat the lookup.
func (c *CostCalculator) PricingFor(model string) ModelPricing {
	model = strings.ToLower(strings.TrimSpace(model))
	best := ""
	for prefix := range c.table {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return c.fallback
	}
	return c.table[best]
}

// CalculateCost returns the estimated USD cost for a single API response.
func (c *CostCalculator) CalculateCost(model string, promptTokens, completionTokens int) float64 {
	if promptTokens <= 0 && completionTokens <= 0 {
		return 0
	}
	p := c.PricingFor(model)
	cost := float64(promptTokens) / 1e6 * p.PromptUSD
	cost += float64(completionTokens) / 1e6 * p.CompletionUSD
	return cost
}
