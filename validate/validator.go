// Package validate checks an extracted field set for completeness and
// confidence before any downstream analysis runs.
package validate

import (
	"fmt"
	"strings"

	"github.com/xraph/payable/extract"
)

// Result is the validator's verdict over one field snapshot.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Config controls which fields must be present and how strict the confidence
// floor is.
type Config struct {
	// RequiredFields are matched against extracted field names by
	// case-insensitive substring.
	RequiredFields []string

	// MinConfidence is the floor below which a field is considered unreliable.
	// Any such field is a validation error.
	MinConfidence float64
}

// DefaultConfig returns the standard invoice requirements.
func DefaultConfig() Config {
	return Config{
		RequiredFields: []string{"invoice number", "date", "total amount"},
		MinConfidence:  0.85,
	}
}

// Validator applies completeness and confidence rules to a field snapshot.
// Check is a pure function: no I/O, deterministic for the same input.
type Validator struct {
	cfg Config
}

// New builds a Validator. Zero-value config fields fall back to defaults.
func New(cfg Config) *Validator {
	def := DefaultConfig()
	if len(cfg.RequiredFields) == 0 {
		cfg.RequiredFields = def.RequiredFields
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	return &Validator{cfg: cfg}
}

// Check validates the field snapshot. Required-field errors come first in
// configuration order, then a single error summarizing low-confidence fields.
func (v *Validator) Check(fields []extract.Field) Result {
	var errs []string

	for _, required := range v.cfg.RequiredFields {
		if !hasField(fields, required) {
			errs = append(errs, fmt.Sprintf("Missing required field: %s", required))
		}
	}

	low := 0
	for _, f := range fields {
		if f.Confidence < v.cfg.MinConfidence {
			low++
		}
	}
	if low > 0 {
		errs = append(errs, fmt.Sprintf("%d field(s) extracted with confidence below %.2f", low, v.cfg.MinConfidence))
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// hasField reports whether any field name contains want, case-insensitively.
// Underscores and spaces are treated as the same separator so "total_amount"
// satisfies "total amount".
func hasField(fields []extract.Field, want string) bool {
	want = normalize(want)
	for _, f := range fields {
		if strings.Contains(normalize(f.Name), want) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "_", " ")
}
