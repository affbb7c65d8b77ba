// Package trial holds the state machine that drives one presentation run:
// a preview of all options followed by an ordered sequence of timed flashes.
// Advance is the single mutating operation; each call renders the next piece
// of content and returns how long the caller's timer should wait before
// calling Advance again.
package trial

// #region imports
import (
	"fmt"
	"math/rand"
	"time"

	"github.com/perceptml/rsvp/go-controller/internal/sequence"
)

// #endregion

// #region trial-struct

// Trial owns one presentation run over a fixed option set. The presentation
// order and repeat plan are generated once at construction and survive Reset,
// so a retried trial replays the identical flash sequence.
type Trial struct {
	state   State
	options []Option
	order   []int
	plan    []int
	cursor  int
	timing  Timing

	display Display
	marker  FlashMarker
}

// #endregion

// #region constructor

// New builds a Trial over options, generating its presentation order with
// per-option repeat counts in [minRepeat, maxRepeat]. marker may be nil when
// no signal collector is attached.
func New(options []Option, timing Timing, minRepeat, maxRepeat int, rng *rand.Rand, display Display, marker FlashMarker) (*Trial, error) {
	if len(options) == 0 {
		return nil, fmt.Errorf("trial requires at least one option")
	}
	if display == nil {
		return nil, fmt.Errorf("trial requires a display")
	}

	order, plan := sequence.Build(rng, len(options), minRepeat, maxRepeat)

	opts := make([]Option, len(options))
	copy(opts, options)

	return &Trial{
		state:   StateInit,
		options: opts,
		order:   order,
		plan:    plan,
		timing:  timing,
		display: display,
		marker:  marker,
	}, nil
}

// #endregion

// #region accessors

// State returns the current lifecycle phase.
func (t *Trial) State() State { return t.state }

// Order returns the presentation order (option indices). Callers must not
// mutate it.
func (t *Trial) Order() []int { return t.order }

// Plan returns the realized per-option repeat counts.
func (t *Trial) Plan() []int { return t.plan }

// Options returns the option set the trial was built over.
func (t *Trial) Options() []Option { return t.options }

// FlashCount returns the total number of flashes one full run emits.
func (t *Trial) FlashCount() int { return len(t.order) }

// #endregion

// #region advance

// Advance performs one transition and returns the delay until the caller
// should call Advance again. A zero return means the trial reached a
// terminal state and the timer should stop.
//
//	INIT      -> PREVIEW    render preview, wait Timing.Preview
//	PREVIEW   -> RUNNING    render flash 1, wait Timing.Flash
//	RUNNING   -> RUNNING    render next flash, wait Timing.Flash
//	RUNNING   -> COMPLETED  past the last flash, wait 0
//	terminal  -> no-op      wait 0
func (t *Trial) Advance() time.Duration {
	switch t.state {
	case StateInit:
		t.state = StatePreview
		t.display.ShowPreview(t.options)
		return t.timing.Preview

	case StatePreview, StateRunning:
		if t.state == StatePreview {
			t.state = StateRunning
			t.cursor = 0
		} else {
			t.cursor++
		}

		if t.cursor >= len(t.order) {
			t.state = StateCompleted
			return 0
		}

		flashIndex := t.cursor + 1
		if t.marker != nil {
			t.marker.MarkFlash(flashIndex)
		}
		t.display.ShowFlash(flashIndex, t.options[t.order[t.cursor]])
		return t.timing.Flash

	default:
		return 0
	}
}

// #endregion

// #region reset

// Reset returns the trial to INIT with a fresh cursor, keeping the generated
// order and repeat plan, and returns the preview wait time so the caller can
// restart its timer directly. Used when a completed trial's result was
// rejected and the run must repeat.
func (t *Trial) Reset() time.Duration {
	t.state = StateInit
	t.cursor = 0
	return t.timing.Preview
}

// #endregion

// #region abort

// Abort moves the trial to ABORTED. Calling it on an already-terminal trial
// is a no-op; in particular a completed trial stays completed.
func (t *Trial) Abort() {
	if t.state.Terminal() {
		return
	}
	t.state = StateAborted
}

// #endregion
