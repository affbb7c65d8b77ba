// Package scoring turns the raw per-flash signal samples of a completed
// trial into a ranked confidence ordering, rejecting passes whose top option
// does not separate cleanly from the rest.
package scoring

// #region imports
import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// #endregion

// #region errors

// ErrInsufficientSeparation signals that the best option's confidence does
// not stand out from the rest. The trial should be retried with the same
// order and repeat plan; this is an expected outcome, not a fault.
var ErrInsufficientSeparation = errors.New("insufficient separation between best option and rest")

// #endregion

// #region constants

// zThreshold is the per-sample z-score magnitude above which a sample counts
// toward an option's percentage-correct multiplier.
const zThreshold = 0.5

// separationThreshold is the minimum distance, in rest-standard-deviations,
// between the best confidence and the mean of the others for a result to be
// accepted.
const separationThreshold = 2.0

// #endregion

// #region score

// Score aggregates samples into per-option statistics and produces a ranked
// result. order and plan come from the trial's sequence; optionIDs[i] is the
// caller-facing ID of option index i. Samples resolve to options through
// order[FlashIndex-1].
//
// Returns ErrInsufficientSeparation when the accept test fails, alongside
// the rejected ranking so callers can log or persist it; any other error
// indicates malformed input.
func Score(order, plan []int, optionIDs []int, samples []FlashSample) (RankedResult, error) {
	results := make([]*OptionResult, len(optionIDs))
	for i := range results {
		results[i] = &OptionResult{
			Index:         i,
			ID:            optionIDs[i],
			ExpectedCount: plan[i],
		}
	}

	// Step 1: group samples by resolved option.
	values := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.FlashIndex < 1 || s.FlashIndex > len(order) {
			return RankedResult{}, fmt.Errorf("sample flash index %d outside order of length %d", s.FlashIndex, len(order))
		}
		r := results[order[s.FlashIndex-1]]
		r.Values = append(r.Values, s.Value)
		r.RankPositions = append(r.RankPositions, s.RankPos)
		values = append(values, s.Value)
	}

	// Step 2: candidate ranking by mean of each option's two best values.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].AvgBestTwo() > results[j].AvgBestTwo()
	})

	// Steps 3-4: global z-score against the pooled sample distribution.
	overallMedian := median(values)
	overallStd := std(values)
	if overallStd == 0 {
		// Every sample identical: nothing distinguishes the options.
		return RankedResult{}, ErrInsufficientSeparation
	}
	z := func(v float64) float64 {
		return (overallMedian - v) / overallStd
	}

	// Steps 5-6: confidence = z(mean) scaled by the fraction of samples that
	// deviated meaningfully, relative to the option's expected repeat count.
	ranked := RankedResult{
		OptionIDs:   make([]int, len(results)),
		Confidences: make([]float64, len(results)),
	}
	for i, r := range results {
		ranked.OptionIDs[i] = r.ID
		if len(r.Values) == 0 {
			continue
		}
		correct := 0
		for _, v := range r.Values {
			if math.Abs(z(v)) > zThreshold {
				correct++
			}
		}
		pctCorrect := float64(correct) / float64(r.ExpectedCount)
		ranked.Confidences[i] = z(r.MeanValue()) * pctCorrect
	}

	// Step 7: accept only when the best confidence stands clear of the rest.
	// A zero rest spread with a distinct best is infinite separation; a zero
	// spread with best inside it means nothing stood out.
	best := ranked.Confidences[0]
	rest := ranked.Confidences[1:]
	restMean := mean(rest)
	restStd := std(rest)
	if restStd == 0 {
		if best == restMean {
			return ranked, ErrInsufficientSeparation
		}
		ranked.Separation = math.Inf(1)
		return ranked, nil
	}
	ranked.Separation = math.Abs(best-restMean) / restStd
	if ranked.Separation < separationThreshold {
		return ranked, ErrInsufficientSeparation
	}

	return ranked, nil
}

// #endregion
