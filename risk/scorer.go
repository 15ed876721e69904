// Package risk scores an invoice on an additive 0-100 point scale and flags
// anomalies against the vendor's payment history. There is no trained model:
// every rule is an explicit heuristic.
package risk

import (
	"fmt"
	"strings"

	"github.com/xraph/payable/extract"
	"github.com/xraph/payable/types"
)

// Level buckets a score for human consumption.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

// Assessment is the scorer's verdict over one field snapshot.
type Assessment struct {
	Score int      `json:"score"`
	Level Level    `json:"level"`
	Flags []string `json:"flags"`
}

// Config holds the rule thresholds.
type Config struct {
	// LargeAmount marks an invoice total as high-value.
	LargeAmount types.Money

	// LowConfidence is the per-field confidence floor for the unreliable-scan
	// rule.
	LowConfidence float64

	// LowConfidenceMax is the number of low-confidence fields tolerated before
	// the rule fires.
	LowConfidenceMax int

	// Currency used when parsing amount fields.
	Currency string

	// ApprovalThreshold enables the just-below-threshold history heuristic
	// when non-zero.
	ApprovalThreshold types.Money
}

// DefaultConfig returns the sample thresholds: 1,000,000 major units for the
// high-value rule, 0.70 confidence floor with more than 2 fields tolerated.
func DefaultConfig() Config {
	return Config{
		LargeAmount:      types.USD(1_000_000 * 100),
		LowConfidence:    0.70,
		LowConfidenceMax: 2,
		Currency:         "usd",
	}
}

// Scorer applies the additive rules and the history heuristics.
type Scorer struct {
	cfg Config
}

// New builds a Scorer. Zero-value config fields fall back to defaults.
func New(cfg Config) *Scorer {
	def := DefaultConfig()
	if cfg.Currency == "" {
		cfg.Currency = def.Currency
	}
	if cfg.LargeAmount.IsZero() {
		cfg.LargeAmount = def.LargeAmount
	}
	// Thresholds are compared against totals parsed in cfg.Currency; a
	// threshold carried in another currency would panic on comparison.
	cfg.LargeAmount.Currency = cfg.Currency
	if !cfg.ApprovalThreshold.IsZero() {
		cfg.ApprovalThreshold.Currency = cfg.Currency
	}
	if cfg.LowConfidence <= 0 {
		cfg.LowConfidence = def.LowConfidence
	}
	if cfg.LowConfidenceMax <= 0 {
		cfg.LowConfidenceMax = def.LowConfidenceMax
	}
	return &Scorer{cfg: cfg}
}

// Score runs the additive rules over the field snapshot and merges any history
// or plugin signals. The rule score and the combined signal score are
// independent views of the same invoice; the assessment takes the worse of
// the two so a clean-looking document cannot mask an anomalous history.
func (s *Scorer) Score(fields []extract.Field, signals ...Signal) Assessment {
	score := 0
	var flags []string

	if !hasInvoiceNumber(fields) {
		score += 20
		flags = append(flags, "missing_invoice_number")
	}

	if total, ok := s.totalAmount(fields); ok && total.GreaterThan(s.cfg.LargeAmount) {
		score += 15
		flags = append(flags, fmt.Sprintf("large_amount:%s", total.FormatMajor()))
	}

	low := 0
	for _, f := range fields {
		if f.Confidence < s.cfg.LowConfidence {
			low++
		}
	}
	if low > s.cfg.LowConfidenceMax {
		score += 10
		flags = append(flags, fmt.Sprintf("low_confidence_fields:%d", low))
	}

	if combined := Combine(signals); combined > score {
		score = combined
	}
	for _, sig := range signals {
		if sig.Flag != "" {
			flags = append(flags, sig.Flag)
		}
	}

	score = clamp(score)
	return Assessment{Score: score, Level: Classify(score), Flags: flags}
}

// Classify buckets a score: strictly above 50 is HIGH, strictly above 25 is
// MEDIUM, anything else LOW.
func Classify(score int) Level {
	switch {
	case score > 50:
		return LevelHigh
	case score > 25:
		return LevelMedium
	default:
		return LevelLow
	}
}

func (s *Scorer) totalAmount(fields []extract.Field) (types.Money, bool) {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f.Name), "total") {
			m, err := types.ParseMajor(f.Value, s.cfg.Currency)
			if err != nil {
				return types.Money{}, false
			}
			return m, true
		}
	}
	return types.Money{}, false
}

func hasInvoiceNumber(fields []extract.Field) bool {
	for _, f := range fields {
		name := strings.ReplaceAll(strings.ToLower(f.Name), "_", " ")
		if strings.Contains(name, "invoice number") || strings.Contains(name, "invoice id") {
			return true
		}
	}
	return false
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
