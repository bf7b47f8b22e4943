// Package costing prices LLM usage and checks budget thresholds. All money
// math uses fixed-point decimals: a running ledger accumulated in floating
// point drifts, and billing must not.
package costing

import (
	"github.com/shopspring/decimal"
)

// ModelPricing holds USD prices per million tokens for one model
type ModelPricing struct {
	Input  decimal.Decimal
	Output decimal.Decimal
}

// PricingTable maps model names to their prices. Immutable after
// construction; inject a custom table in tests instead of mutating.
type PricingTable map[string]ModelPricing

// Default fallback prices per million tokens, used for models missing from
// the table. Unknown models are an accepted imprecision, never an error.
var (
	DefaultInputPrice  = decimal.RequireFromString("3.00")
	DefaultOutputPrice = decimal.RequireFromString("15.00")
)

var million = decimal.NewFromInt(1_000_000)

// DefaultPricing returns the built-in pricing table.
func DefaultPricing() PricingTable {
	price := func(in, out string) ModelPricing {
		return ModelPricing{
			Input:  decimal.RequireFromString(in),
			Output: decimal.RequireFromString(out),
		}
	}
	return PricingTable{
		// Claude models
		"claude-3-5-sonnet-20241022": price("3.00", "15.00"),
		"claude-sonnet-4-20250514":   price("3.00", "15.00"),
		"claude-3-5-haiku-20241022":  price("1.00", "5.00"),
		"claude-3-opus-20240229":     price("15.00", "75.00"),
		// OpenAI models
		"gpt-5":       price("2.50", "10.00"),
		"gpt-4o":      price("2.50", "10.00"),
		"gpt-4o-mini": price("0.15", "0.60"),
		"gpt-4-turbo": price("10.00", "30.00"),
		// Gemini models
		"gemini-3-pro-preview": price("1.25", "5.00"),
		"gemini-2.0-flash":     price("0.10", "0.40"),
		"gemini-1.5-pro":       price("1.25", "5.00"),
		"gemini-1.5-flash":     price("0.075", "0.30"),
	}
}

// Calculator computes costs from token usage against an injected pricing
// table, so tests can substitute prices hermetically.
type Calculator struct {
	pricing PricingTable
}

// NewCalculator creates a calculator. A nil table uses the built-in pricing.
func NewCalculator(pricing PricingTable) *Calculator {
	if pricing == nil {
		pricing = DefaultPricing()
	}
	return &Calculator{pricing: pricing}
}

// PricingFor returns the input/output prices per million tokens for a model,
// falling back to the default prices for unknown models.
func (c *Calculator) PricingFor(model string) (input, output decimal.Decimal) {
	if p, ok := c.pricing[model]; ok {
		return p.Input, p.Output
	}
	return DefaultInputPrice, DefaultOutputPrice
}

// Cost returns the USD cost for the given model and token counts:
//
//	inputTokens*inputPrice/1e6 + outputTokens*outputPrice/1e6
func (c *Calculator) Cost(model string, inputTokens, outputTokens int) decimal.Decimal {
	inputPrice, outputPrice := c.PricingFor(model)

	inputCost := decimal.NewFromInt(int64(inputTokens)).Mul(inputPrice).Div(million)
	outputCost := decimal.NewFromInt(int64(outputTokens)).Mul(outputPrice).Div(million)

	return inputCost.Add(outputCost)
}

// BudgetAlert is the outcome of a budget threshold check
type BudgetAlert struct {
	Alert        bool            `json:"alert"`
	Percentage   float64         `json:"percentage"`
	CurrentSpend decimal.Decimal `json:"current_spend"`
	Threshold    decimal.Decimal `json:"threshold"`
	Message      string          `json:"message"`
}

// CheckBudgetAlert compares cumulative spend against a budget threshold.
// A threshold of zero or less disables alerting. The boundary is inclusive:
// spend equal to the threshold alerts at exactly 100%.
func CheckBudgetAlert(spend, threshold decimal.Decimal) BudgetAlert {
	if threshold.LessThanOrEqual(decimal.Zero) {
		return BudgetAlert{
			Alert:        false,
			Percentage:   0.0,
			CurrentSpend: spend,
			Threshold:    threshold,
			Message:      "No budget threshold set",
		}
	}

	percentage, _ := spend.Div(threshold).Mul(decimal.NewFromInt(100)).Round(1).Float64()
	alert := spend.GreaterThanOrEqual(threshold)

	message := "Within budget"
	if alert {
		message = "Budget threshold exceeded"
	}

	return BudgetAlert{
		Alert:        alert,
		Percentage:   percentage,
		CurrentSpend: spend,
		Threshold:    threshold,
		Message:      message,
	}
}
