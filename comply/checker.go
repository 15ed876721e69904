// Package comply verifies that the tax carried on an invoice matches the
// amount a jurisdiction's rate implies for the invoice total.
package comply

import (
	"fmt"
	"strings"

	"github.com/xraph/payable/extract"
	"github.com/xraph/payable/types"
)

// Result is the compliance verdict over one field snapshot. ExpectedTax and
// FoundTax are diagnostic and only set when a comparison actually happened.
type Result struct {
	Compliant   bool        `json:"compliant"`
	Violations  []string    `json:"violations"`
	ExpectedTax types.Money `json:"expected_tax,omitempty"`
	FoundTax    types.Money `json:"found_tax,omitempty"`
}

// RateTable maps a jurisdiction code to its tax rate in basis points.
type RateTable map[string]int64

// Config holds the compliance policy. Rate and tolerance are deliberately not
// constants: real deployments look rates up per jurisdiction.
type Config struct {
	// RateBps is the fallback tax rate in basis points when the jurisdiction
	// is unknown or absent from Rates.
	RateBps int64

	// ToleranceBps bounds the accepted |found - expected| difference as a
	// fraction of the invoice total, in basis points.
	ToleranceBps int64

	// Currency used when parsing amount fields.
	Currency string

	// Rates overrides RateBps per jurisdiction code.
	Rates RateTable
}

// DefaultConfig returns the sample-jurisdiction policy: 18% rate, 2% of total
// tolerance.
func DefaultConfig() Config {
	return Config{
		RateBps:      1800,
		ToleranceBps: 200,
		Currency:     "usd",
	}
}

// Checker applies the tax-compliance policy to a field snapshot.
type Checker struct {
	cfg Config
}

// New builds a Checker. Zero-value config fields fall back to defaults.
func New(cfg Config) *Checker {
	def := DefaultConfig()
	if cfg.RateBps <= 0 {
		cfg.RateBps = def.RateBps
	}
	if cfg.ToleranceBps <= 0 {
		cfg.ToleranceBps = def.ToleranceBps
	}
	if cfg.Currency == "" {
		cfg.Currency = def.Currency
	}
	return &Checker{cfg: cfg}
}

// RateFor resolves the tax rate in basis points for a jurisdiction, falling
// back to the configured default rate.
func (c *Checker) RateFor(jurisdiction string) int64 {
	if rate, ok := c.cfg.Rates[strings.ToLower(jurisdiction)]; ok {
		return rate
	}
	return c.cfg.RateBps
}

// Check compares the extracted tax against the tax implied by the total and
// the jurisdiction's rate. A missing tax field is a violation outright. When
// either amount fails to parse no comparison is possible and no mismatch is
// recorded; the validator owns completeness complaints.
func (c *Checker) Check(fields []extract.Field, jurisdiction string) Result {
	return c.CheckAtRate(fields, c.RateFor(jurisdiction))
}

// CheckAtRate is Check with an explicit rate, for callers that resolve rates
// themselves (e.g. an external rate source).
func (c *Checker) CheckAtRate(fields []extract.Field, rateBps int64) Result {
	var violations []string

	totalField, totalOK := findField(fields, "total")
	taxField, taxOK := findField(fields, "tax", "gst")

	if !taxOK {
		violations = append(violations, "Tax/GST field not found on invoice")
		return Result{Compliant: false, Violations: violations}
	}

	result := Result{Compliant: true}
	if totalOK {
		total, totalErr := types.ParseMajor(totalField.Value, c.cfg.Currency)
		found, taxErr := types.ParseMajor(taxField.Value, c.cfg.Currency)
		if totalErr == nil && taxErr == nil {
			expected := total.TaxFromGross(rateBps)
			tolerance := total.Percent(c.cfg.ToleranceBps)
			result.ExpectedTax = expected
			result.FoundTax = found

			if found.Subtract(expected).Abs().GreaterThan(tolerance) {
				violations = append(violations, fmt.Sprintf(
					"Tax amount mismatch: expected %s at %.2f%% rate, found %s",
					expected.String(), float64(rateBps)/100, found.String()))
			}
		}
	}

	result.Violations = violations
	result.Compliant = len(violations) == 0
	return result
}

// findField returns the first field whose name contains any of the given
// substrings, case-insensitively.
func findField(fields []extract.Field, substrings ...string) (extract.Field, bool) {
	for _, f := range fields {
		name := strings.ToLower(f.Name)
		for _, sub := range substrings {
			if strings.Contains(name, sub) {
				return f, true
			}
		}
	}
	return extract.Field{}, false
}
