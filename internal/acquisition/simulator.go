package acquisition

// #region imports
import (
	"math/rand"
	"sort"

	"github.com/perceptml/rsvp/go-controller/internal/scoring"
)

// #endregion

// #region simulator

// Simulator synthesizes a block of per-flash samples when no acquisition
// engine is attached. Flashes of one favored option draw from a high-valued
// distribution so end-to-end runs produce a clean winner.
type Simulator struct {
	rng *rand.Rand

	// Target is the option index whose flashes respond strongly. Negative
	// means a fresh random target per block.
	Target int

	// BaseValue/TargetValue are the distribution centers, Noise the stddev.
	BaseValue   float64
	TargetValue float64
	Noise       float64
}

// NewSimulator returns a Simulator with a random per-block target and the
// default signal distribution.
func NewSimulator(rng *rand.Rand) *Simulator {
	return &Simulator{
		rng:         rng,
		Target:      -1,
		BaseValue:   1.0,
		TargetValue: 10.0,
		Noise:       0.5,
	}
}

// #endregion

// #region synthesize

// Synthesize generates one sample per flash of the given presentation order.
// Rank positions are assigned by descending value, 1-based, the way the
// engine reports its own sort order.
func (s *Simulator) Synthesize(order []int, plan []int) []scoring.FlashSample {
	target := s.Target
	if target < 0 {
		target = s.rng.Intn(len(plan))
	}

	samples := make([]scoring.FlashSample, len(order))
	for i, optIdx := range order {
		center := s.BaseValue
		if optIdx == target {
			center = s.TargetValue
		}
		samples[i] = scoring.FlashSample{
			FlashIndex: i + 1,
			Value:      center + s.rng.NormFloat64()*s.Noise,
		}
	}

	byValue := make([]int, len(samples))
	for i := range byValue {
		byValue[i] = i
	}
	sort.Slice(byValue, func(a, b int) bool {
		return samples[byValue[a]].Value > samples[byValue[b]].Value
	})
	for rank, idx := range byValue {
		samples[idx].RankPos = float64(rank + 1)
	}

	return samples
}

// #endregion
