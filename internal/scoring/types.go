package scoring

// #region imports
import (
	"fmt"
	"sort"
	"strings"
)

// #endregion

// #region flash-sample

// FlashSample is one signal observation attributed to exactly one flash.
// FlashIndex is 1-based and matches the emission order of the trial's
// RUNNING phase; the flash's option is order[FlashIndex-1].
type FlashSample struct {
	FlashIndex int
	Value      float64
	RankPos    float64
}

// #endregion

// #region option-result

// OptionResult accumulates the samples that resolved to one option during a
// scoring pass.
type OptionResult struct {
	Index         int
	ID            int
	ExpectedCount int
	Values        []float64
	RankPositions []float64
}

// MeanValue returns the mean signal value, or 0 with no samples.
func (r *OptionResult) MeanValue() float64 { return mean(r.Values) }

// StdValue returns the signal value standard deviation.
func (r *OptionResult) StdValue() float64 { return std(r.Values) }

// MeanRankPos returns the mean rank position reported by the collector.
func (r *OptionResult) MeanRankPos() float64 { return mean(r.RankPositions) }

// AvgBestTwo returns the mean of the two largest signal values, the
// per-option summary statistic used for the candidate ranking. With a single
// sample it returns that value; with none it returns negative infinity so
// sampleless options sort last.
func (r *OptionResult) AvgBestTwo() float64 {
	if len(r.Values) == 0 {
		return negInf
	}
	sorted := append([]float64(nil), r.Values...)
	sort.Float64s(sorted)
	top := sorted[len(sorted)-min(2, len(sorted)):]
	return mean(top)
}

// String renders the collected samples for logging.
func (r *OptionResult) String() string {
	vals := make([]string, len(r.Values))
	for i, v := range r.Values {
		vals[i] = fmt.Sprintf("%.3f", v)
	}
	return fmt.Sprintf("id=%d values=[%s]", r.ID, strings.Join(vals, ","))
}

// #endregion

// #region ranked-result

// RankedResult is the accepted output of a scoring pass: option IDs ordered
// best-first with position-aligned confidences. Separation is the distance
// of the best confidence from the rest in rest-standard-deviations, the
// statistic the accept test thresholds on.
type RankedResult struct {
	OptionIDs   []int
	Confidences []float64
	Separation  float64
}

// Best returns the top-ranked option ID and its confidence.
func (r RankedResult) Best() (int, float64) {
	return r.OptionIDs[0], r.Confidences[0]
}

// #endregion
