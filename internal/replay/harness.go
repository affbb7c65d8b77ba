// Package replay runs batches of simulated ranking sessions offline, for
// tuning repeat bounds and the attempt cap without a display or a live
// acquisition device.
package replay

// #region imports
import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/perceptml/rsvp/go-controller/internal/controller"
	"github.com/perceptml/rsvp/go-controller/internal/results"
	"github.com/perceptml/rsvp/go-controller/internal/trial"
)

// #endregion

// #region types

// Config describes one batch run.
type Config struct {
	Sessions    int
	Options     int
	MinRepeat   int
	MaxRepeat   int
	MaxAttempts int
	Seed        int64
}

// DefaultConfig returns a small batch with the controller's own defaults.
func DefaultConfig() Config {
	return Config{
		Sessions:    20,
		Options:     4,
		MinRepeat:   3,
		MaxRepeat:   7,
		MaxAttempts: 5,
		Seed:        1,
	}
}

// SessionResult captures one simulated session's outcome.
type SessionResult struct {
	SessionNum int
	Outcome    results.SessionOutcome
	Attempts   int
	BestID     int
	Confidence float64
	Separation float64
}

// Summary aggregates a batch.
type Summary struct {
	Sessions       int
	Accepted       int
	NoConvergence  int
	TotalAttempts  int
	TotalFlashes   int
	MeanSeparation float64 // over accepted sessions with finite separation
}

// #endregion

// #region counting-display

// countingDisplay is a headless display; previews double as an attempt
// counter since every attempt starts with exactly one preview.
type countingDisplay struct {
	previews int
	flashes  int
}

func (d *countingDisplay) ShowPreview(options []trial.Option)       { d.previews++ }
func (d *countingDisplay) ShowFlash(flashIndex int, o trial.Option) { d.flashes++ }
func (d *countingDisplay) ShowResult(o trial.Option, conf float64)  {}

// #endregion

// #region run

// Run executes cfg.Sessions simulated ranking sessions through a full
// controller and returns per-session results with a batch summary.
func Run(ctx context.Context, cfg Config) ([]SessionResult, Summary, error) {
	rng := rand.New(rand.NewSource(cfg.Seed))
	display := &countingDisplay{}
	ctrl := controller.New(display, nil, nil, rng)

	req := controller.Request{
		Timing:      trial.Timing{Preview: 10 * time.Microsecond, Flash: 10 * time.Microsecond},
		MinRepeat:   cfg.MinRepeat,
		MaxRepeat:   cfg.MaxRepeat,
		MaxAttempts: cfg.MaxAttempts,
	}

	sessions := make([]SessionResult, 0, cfg.Sessions)
	var summary Summary
	sepSum, sepN := 0.0, 0

	for i := 0; i < cfg.Sessions; i++ {
		req.Options = make([]trial.Option, cfg.Options)
		for j := range req.Options {
			req.Options[j] = trial.Option{ID: j + 1}
		}

		prevPreviews := display.previews
		result, err := ctrl.Rank(ctx, req)

		sr := SessionResult{
			SessionNum: i + 1,
			Attempts:   display.previews - prevPreviews,
		}
		switch {
		case err == nil:
			sr.Outcome = results.OutcomeAccepted
			sr.BestID, sr.Confidence = result.Best()
			sr.Separation = result.Separation
			summary.Accepted++
			if !math.IsInf(result.Separation, 1) {
				sepSum += result.Separation
				sepN++
			}
		case errors.Is(err, controller.ErrNoConvergence):
			sr.Outcome = results.OutcomeNoConverge
			summary.NoConvergence++
		default:
			return sessions, summary, err
		}

		summary.TotalAttempts += sr.Attempts
		sessions = append(sessions, sr)
	}

	summary.Sessions = len(sessions)
	summary.TotalFlashes = display.flashes
	if sepN > 0 {
		summary.MeanSeparation = sepSum / float64(sepN)
	}
	return sessions, summary, nil
}

// #endregion
