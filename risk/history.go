package risk

import (
	"fmt"
	"math"

	"github.com/xraph/payable/types"
)

// Category classifies an anomaly signal; each category carries a fixed weight
// in the combined score.
type Category string

const (
	CategoryDuplicate        Category = "duplicate"
	CategoryVendorAnomaly    Category = "vendor_anomaly"
	CategoryAmountAnomaly    Category = "amount_anomaly"
	CategoryPatternAnomaly   Category = "pattern_anomaly"
	CategoryFrequencyAnomaly Category = "frequency_anomaly"
)

var categoryWeights = map[Category]float64{
	CategoryDuplicate:        1.0,
	CategoryVendorAnomaly:    0.7,
	CategoryAmountAnomaly:    0.6,
	CategoryPatternAnomaly:   0.5,
	CategoryFrequencyAnomaly: 0.4,
}

// Signal is one heuristic's contribution: a 0-100 score with an optional flag
// when the heuristic actually fired. Signals with unknown categories carry
// the lowest weight.
type Signal struct {
	Category Category `json:"category"`
	Score    int      `json:"score"`
	Flag     string   `json:"flag,omitempty"`
}

// Weight returns the category weight of the signal.
func (s Signal) Weight() float64 {
	if w, ok := categoryWeights[s.Category]; ok {
		return w
	}
	return categoryWeights[CategoryFrequencyAnomaly]
}

// Combine folds signals into a single 0-100 score by weighted average over
// category weights. No signals means zero.
func Combine(signals []Signal) int {
	var sum, weights float64
	for _, s := range signals {
		w := s.Weight()
		sum += w * float64(clamp(s.Score))
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return clamp(int(math.Round(sum / weights)))
}

// minHistory is the number of prior amounts required before the statistical
// heuristics are meaningful.
const minHistory = 3

// AnalyzeHistory evaluates the current amount against the vendor's prior
// invoice amounts. Every evaluated heuristic contributes a signal, scored 100
// when it fired and 0 when it did not, so the combined average reflects how
// much of the history looks anomalous. With insufficient history no signals
// are produced.
func (s *Scorer) AnalyzeHistory(current types.Money, prior []types.Money) []Signal {
	if len(prior) < minHistory {
		return nil
	}

	var signals []Signal

	zscore := Signal{Category: CategoryAmountAnomaly}
	if z, ok := populationZScore(current, prior); ok && math.Abs(z) > 3 {
		zscore.Score = 100
		zscore.Flag = fmt.Sprintf("amount_zscore:%.2f", z)
	}
	signals = append(signals, zscore)

	cluster := Signal{Category: CategoryPatternAnomaly}
	if bucket, share := dominantBucket(prior); share > 0.40 {
		cluster.Score = 100
		cluster.Flag = fmt.Sprintf("round_number_clustering:%d", bucket)
	}
	signals = append(signals, cluster)

	if !s.cfg.ApprovalThreshold.IsZero() {
		near := Signal{Category: CategoryPatternAnomaly}
		// Like the other heuristics this compares magnitudes only, so the
		// threshold follows the currency the caller parsed the total in.
		threshold := s.cfg.ApprovalThreshold
		threshold.Currency = current.Currency
		if justBelow(current, threshold) {
			near.Score = 100
			near.Flag = "just_below_approval_threshold"
		}
		signals = append(signals, near)
	}

	return signals
}

// populationZScore computes the z-score of current against the population
// mean and standard deviation of prior amounts. Reports false when the
// history has no variance.
func populationZScore(current types.Money, prior []types.Money) (float64, bool) {
	n := float64(len(prior))
	var mean float64
	for _, m := range prior {
		mean += float64(m.Amount)
	}
	mean /= n

	var variance float64
	for _, m := range prior {
		d := float64(m.Amount) - mean
		variance += d * d
	}
	variance /= n

	if variance == 0 {
		return 0, false
	}
	return (float64(current.Amount) - mean) / math.Sqrt(variance), true
}

// dominantBucket groups amounts into 100-major-unit buckets and returns the
// most populated bucket with its share of the history.
func dominantBucket(amounts []types.Money) (int64, float64) {
	if len(amounts) == 0 {
		return 0, 0
	}

	// Bucket width is 100 major units expressed in minor units.
	width := int64(100 * 100)
	counts := make(map[int64]int)
	for _, m := range amounts {
		counts[m.Amount/width]++
	}

	var best int64
	bestCount := 0
	for bucket, count := range counts {
		if count > bestCount {
			best, bestCount = bucket, count
		}
	}
	return best, float64(bestCount) / float64(len(amounts))
}

// justBelow reports whether amount sits within 5% under the threshold, a
// classic structuring pattern.
func justBelow(amount, threshold types.Money) bool {
	if !amount.LessThan(threshold) {
		return false
	}
	floor := threshold.Subtract(threshold.Percent(500))
	return amount.GreaterThan(floor) || amount.Equal(floor)
}
