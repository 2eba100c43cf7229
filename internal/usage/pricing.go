// Package usage turns provider-call outcomes into persisted usage events
// with estimated cost accounting.
package usage

// Price holds per-1M-token rates in USD.
type Price struct {
	Input  float64
	Output float64
}

// pricing is the static per-model rate table. Rates are approximate and
// only feed the estimated (never authoritative) cost figure.
var pricing = map[string]Price{
	"claude-opus-4-20250514": {Input: 15.00, Output: 75.00},
	"gpt-5":                  {Input: 5.00, Output: 15.00},
	"gemini-2.0-flash-exp":   {Input: 0.00, Output: 0.00}, // free during preview
}

// defaultPrice is the cheap general-purpose fallback rate for models
// missing from the table.
var defaultPrice = Price{Input: 1.00, Output: 3.00}

// PriceFor returns the rate for a model, falling back to the default rate
// for unknown models rather than failing.
func PriceFor(model string) Price {
	if p, ok := pricing[model]; ok {
		return p
	}
	return defaultPrice
}

// Cost computes the estimated cost in USD for a call.
func Cost(model string, inputTokens, outputTokens int) float64 {
	p := PriceFor(model)
	return float64(inputTokens)/1_000_000*p.Input + float64(outputTokens)/1_000_000*p.Output
}
