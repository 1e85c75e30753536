package analysis

import (
	"fmt"
	"math"

	"budgetwatch/internal/core"
)

// Reasons attached to anomaly flags. Presentation renders them verbatim.
const (
	ReasonInsufficientHistory  = "insufficient history"
	ReasonExceedsTypicalRange  = "amount exceeds typical range"
	ReasonDeviatesFromConstant = "amount deviates from constant history"
)

const (
	DefaultMultiplier = 2.0
	DefaultMinSamples = 3
)

// Detector flags records whose amounts sit far outside the category's
// historical baseline. Output is advisory only and never blocks recording.
type Detector struct {
	k          float64
	minSamples int
}

// NewDetector builds a detector with the given z-score multiplier and
// minimum history size. Zero values fall back to the defaults.
func NewDetector(k float64, minSamples int) *Detector {
	if k <= 0 {
		k = DefaultMultiplier
	}
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	return &Detector{k: k, minSamples: minSamples}
}

// Detect compares the record's amount against the mean and sample standard
// deviation of the supplied same-category history. The record under test is
// excluded from its own baseline (matched by ID). Below the minimum sample
// size the record is never flagged, keeping sparse categories quiet.
func (d *Detector) Detect(record core.ExpenseRecord, history []core.ExpenseRecord) (core.AnomalyFlag, error) {
	cat := core.NormalizeCategory(record.Category)
	if cat == "" {
		return core.AnomalyFlag{}, core.ErrEmptyCategory
	}
	if record.Amount.Cents < 0 {
		return core.AnomalyFlag{}, fmt.Errorf("record %d: %w", record.ID, core.ErrNegativeAmount)
	}

	flag := core.AnomalyFlag{RecordID: record.ID, Category: cat}

	amounts := make([]float64, 0, len(history))
	for _, h := range history {
		if h.ID == record.ID {
			continue
		}
		if core.NormalizeCategory(h.Category) != cat {
			continue
		}
		if h.Amount.Cents < 0 {
			return core.AnomalyFlag{}, fmt.Errorf("record %d: %w", h.ID, core.ErrNegativeAmount)
		}
		amounts = append(amounts, h.Amount.Units())
	}

	if len(amounts) < d.minSamples {
		flag.Reason = ReasonInsufficientHistory
		return flag, nil
	}

	mu := mean(amounts)
	sigma := stdDev(amounts)
	amount := record.Amount.Units()

	if sigma == 0 {
		// Constant history: any deviation at all is unusual.
		if amount != mu {
			flag.Anomalous = true
			flag.Reason = ReasonDeviatesFromConstant
		}
		return flag, nil
	}

	flag.Score = (amount - mu) / sigma
	if math.Abs(flag.Score) > d.k {
		flag.Anomalous = true
		flag.Reason = ReasonExceedsTypicalRange
	}
	return flag, nil
}

// MinSamples exposes the configured minimum history size.
func (d *Detector) MinSamples() int { return d.minSamples }

// Multiplier exposes the configured z-score cutoff.
func (d *Detector) Multiplier() float64 { return d.k }
