// Package acquisition is the boundary to the signal-acquisition engine: a
// remote service that records the viewer's brain signal, segments it into
// per-flash samples, and classifies each one. A Simulator stands in for the
// engine when no live device is attached.
package acquisition

// #region imports
import (
	"context"

	"github.com/perceptml/rsvp/go-controller/internal/scoring"
)

// #endregion

// #region signal-source

// SignalSource collects per-flash signal samples for one trial block.
// BeginBlock/EndBlock bracket a trial's RUNNING phase; MarkFlash is called
// at the start of every flash so the next-arriving sample is attributed to
// that flash index; BlockSamples returns everything collected since the last
// BeginBlock.
type SignalSource interface {
	BeginBlock(ctx context.Context) error
	EndBlock(ctx context.Context) error
	MarkFlash(flashIndex int)
	BlockSamples(ctx context.Context) ([]scoring.FlashSample, error)
}

// #endregion
