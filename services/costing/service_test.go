package costing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculator_Cost(t *testing.T) {
	calc := NewCalculator(nil)

	tests := []struct {
		name         string
		model        string
		inputTokens  int
		outputTokens int
		want         string
	}{
		{
			name:         "gpt-5 one million each direction",
			model:        "gpt-5",
			inputTokens:  1_000_000,
			outputTokens: 1_000_000,
			want:         "12.50",
		},
		{
			name:         "claude sonnet typical request",
			model:        "claude-sonnet-4-20250514",
			inputTokens:  1000,
			outputTokens: 500,
			want:         "0.0105",
		},
		{
			name:         "unknown model falls back to default prices",
			model:        "some-future-model",
			inputTokens:  1_000_000,
			outputTokens: 1_000_000,
			want:         "18.00",
		},
		{
			name:         "zero tokens cost nothing",
			model:        "gpt-4o",
			inputTokens:  0,
			outputTokens: 0,
			want:         "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cost := calc.Cost(tt.model, tt.inputTokens, tt.outputTokens)
			assert.True(t, cost.Equal(decimal.RequireFromString(tt.want)),
				"got %s, want %s", cost.String(), tt.want)
		})
	}
}

func TestCalculator_Cost_NoFloatDrift(t *testing.T) {
	// Summing many small per-request costs must equal pricing the combined
	// token count in one shot.
	calc := NewCalculator(nil)

	total := decimal.Zero
	for i := 0; i < 1000; i++ {
		total = total.Add(calc.Cost("claude-sonnet-4-20250514", 333, 111))
	}

	expected := calc.Cost("claude-sonnet-4-20250514", 333_000, 111_000)
	assert.True(t, total.Equal(expected), "got %s, want %s", total.String(), expected.String())
}

func TestCalculator_PricingFor(t *testing.T) {
	calc := NewCalculator(PricingTable{
		"test-model": {
			Input:  decimal.RequireFromString("1.00"),
			Output: decimal.RequireFromString("2.00"),
		},
	})

	t.Run("known model", func(t *testing.T) {
		input, output := calc.PricingFor("test-model")
		assert.True(t, input.Equal(decimal.RequireFromString("1.00")))
		assert.True(t, output.Equal(decimal.RequireFromString("2.00")))
	})

	t.Run("unknown model uses defaults", func(t *testing.T) {
		input, output := calc.PricingFor("unlisted")
		assert.True(t, input.Equal(DefaultInputPrice))
		assert.True(t, output.Equal(DefaultOutputPrice))
	})
}

func TestCheckBudgetAlert(t *testing.T) {
	d := decimal.RequireFromString

	tests := []struct {
		name           string
		spend          string
		threshold      string
		wantAlert      bool
		wantPercentage float64
		wantMessage    string
	}{
		{
			name:           "no threshold set",
			spend:          "150.00",
			threshold:      "0",
			wantAlert:      false,
			wantPercentage: 0.0,
			wantMessage:    "No budget threshold set",
		},
		{
			name:           "negative threshold disables alerting",
			spend:          "150.00",
			threshold:      "-10",
			wantAlert:      false,
			wantPercentage: 0.0,
			wantMessage:    "No budget threshold set",
		},
		{
			name:           "under budget",
			spend:          "25.00",
			threshold:      "100.00",
			wantAlert:      false,
			wantPercentage: 25.0,
			wantMessage:    "Within budget",
		},
		{
			name:           "exactly at threshold alerts",
			spend:          "100.00",
			threshold:      "100.00",
			wantAlert:      true,
			wantPercentage: 100.0,
			wantMessage:    "Budget threshold exceeded",
		},
		{
			name:           "over budget",
			spend:          "150.00",
			threshold:      "100.00",
			wantAlert:      true,
			wantPercentage: 150.0,
			wantMessage:    "Budget threshold exceeded",
		},
		{
			name:           "percentage rounds to one decimal",
			spend:          "33.333",
			threshold:      "100.00",
			wantAlert:      false,
			wantPercentage: 33.3,
			wantMessage:    "Within budget",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert := CheckBudgetAlert(d(tt.spend), d(tt.threshold))

			assert.Equal(t, tt.wantAlert, alert.Alert)
			assert.Equal(t, tt.wantPercentage, alert.Percentage)
			assert.Equal(t, tt.wantMessage, alert.Message)
			assert.True(t, alert.CurrentSpend.Equal(d(tt.spend)))
			assert.True(t, alert.Threshold.Equal(d(tt.threshold)))
		})
	}
}

func TestDefaultPricing(t *testing.T) {
	table := DefaultPricing()
	require.NotEmpty(t, table)

	p, ok := table["gpt-5"]
	require.True(t, ok)
	assert.True(t, p.Input.Equal(decimal.RequireFromString("2.50")))
	assert.True(t, p.Output.Equal(decimal.RequireFromString("10.00")))
}
