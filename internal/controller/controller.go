// Package controller owns the live trial: it turns the state machine's
// wake-up delays into wall-clock scheduling, feeds completed blocks to the
// scorer, and retries rejected trials with the same presentation order until
// one converges or the attempt cap runs out.
package controller

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/perceptml/rsvp/go-controller/internal/acquisition"
	"github.com/perceptml/rsvp/go-controller/internal/results"
	"github.com/perceptml/rsvp/go-controller/internal/scoring"
	"github.com/perceptml/rsvp/go-controller/internal/trial"
)

// #endregion

// #region errors

var (
	// ErrBusy means a ranking request arrived while a trial was in flight.
	ErrBusy = errors.New("a ranking is already in progress")
	// ErrAborted means the in-flight trial was cancelled; no result exists.
	ErrAborted = errors.New("ranking aborted")
	// ErrEmptyOptions means the request carried nothing to rank.
	ErrEmptyOptions = errors.New("ranking request has no options")
	// ErrNoConvergence means every attempt was rejected for insufficient
	// separation before the attempt cap was reached.
	ErrNoConvergence = errors.New("ranking did not converge within attempt cap")
)

// #endregion

// #region clock

// Clock abstracts the single-fire timer that drives trial progress.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// #endregion

// #region request

const (
	defaultMinRepeat   = 3
	defaultMaxRepeat   = 7
	defaultMaxAttempts = 5
)

// Request describes one ranking run. Zero-valued fields fall back to
// defaults: repeat bounds [3,7], default timing, 5 attempts.
type Request struct {
	Options     []trial.Option
	Timing      trial.Timing
	MinRepeat   int
	MaxRepeat   int
	MaxAttempts int
}

func (r *Request) applyDefaults() {
	if r.MinRepeat == 0 {
		r.MinRepeat = defaultMinRepeat
	}
	if r.MaxRepeat == 0 {
		r.MaxRepeat = defaultMaxRepeat
	}
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = defaultMaxAttempts
	}
	if r.Timing.Preview == 0 && r.Timing.Flash == 0 {
		r.Timing = trial.DefaultTiming()
	}
}

// #endregion

// #region controller-struct

// Controller services ranking requests one at a time. A nil source runs in
// simulation mode with synthesized samples; a nil store disables
// persistence.
type Controller struct {
	display trial.Display
	source  acquisition.SignalSource
	sim     *acquisition.Simulator
	store   *results.Store
	clock   Clock
	rng     *rand.Rand

	mu     sync.Mutex
	active *trial.Trial
}

// New creates a fully wired controller.
func New(display trial.Display, source acquisition.SignalSource, store *results.Store, rng *rand.Rand) *Controller {
	return &Controller{
		display: display,
		source:  source,
		sim:     acquisition.NewSimulator(rng),
		store:   store,
		clock:   realClock{},
		rng:     rng,
	}
}

// Busy reports whether a trial is currently in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil && !c.active.State().Terminal()
}

// Abort cancels the in-flight trial, if any. Idempotent; a no-op when idle.
func (c *Controller) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		c.active.Abort()
	}
}

// #endregion

// #region rank

// Rank runs one full ranking request to a terminal outcome. It refuses with
// ErrBusy while another request is in flight, retries rejected trials with
// the identical presentation order, and returns ErrAborted if ctx is
// cancelled or Abort is called.
func (c *Controller) Rank(ctx context.Context, req Request) (scoring.RankedResult, error) {
	if len(req.Options) == 0 {
		return scoring.RankedResult{}, ErrEmptyOptions
	}
	req.applyDefaults()

	var marker trial.FlashMarker
	if c.source != nil {
		marker = c.source
	}

	c.mu.Lock()
	if c.active != nil && !c.active.State().Terminal() {
		c.mu.Unlock()
		return scoring.RankedResult{}, ErrBusy
	}
	tr, err := trial.New(req.Options, req.Timing, req.MinRepeat, req.MaxRepeat, c.rng, c.display, marker)
	if err != nil {
		c.mu.Unlock()
		return scoring.RankedResult{}, err
	}
	c.active = tr
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.active = nil
		c.mu.Unlock()
	}()

	sessionID := ""
	if c.store != nil {
		sessionID, err = c.store.CreateSession(len(req.Options), tr.FlashCount())
		if err != nil {
			log.Printf("[CTRL] failed to create session row: %v", err)
		}
	}

	log.Printf("[CTRL] ranking %d options, %d flashes, max %d attempts",
		len(req.Options), tr.FlashCount(), req.MaxAttempts)

	return c.drive(ctx, tr, req, sessionID)
}

// #endregion

// #region drive

// drive advances the trial on the timer until a terminal outcome.
func (c *Controller) drive(ctx context.Context, tr *trial.Trial, req Request, sessionID string) (scoring.RankedResult, error) {
	ids := make([]int, len(req.Options))
	for i, opt := range req.Options {
		ids[i] = opt.ID
	}

	if err := c.beginBlock(ctx); err != nil {
		c.finishSession(sessionID, results.OutcomeAborted, 0, 0, 0)
		return scoring.RankedResult{}, err
	}

	attempt := 0
	wait, _ := c.step(tr)
	for {
		select {
		case <-ctx.Done():
			return scoring.RankedResult{}, c.aborted(tr, sessionID, attempt)
		default:
		}

		select {
		case <-ctx.Done():
			return scoring.RankedResult{}, c.aborted(tr, sessionID, attempt)
		case <-c.clock.After(wait):
		}

		var state trial.State
		wait, state = c.step(tr)

		switch state {
		case trial.StateAborted:
			return scoring.RankedResult{}, c.aborted(tr, sessionID, attempt)

		case trial.StateCompleted:
			attempt++
			samples, err := c.collectBlock(ctx, tr)
			if err != nil {
				c.finishSession(sessionID, results.OutcomeAborted, attempt, 0, 0)
				return scoring.RankedResult{}, fmt.Errorf("collect block: %w", err)
			}

			result, err := scoring.Score(tr.Order(), tr.Plan(), ids, samples)
			c.recordAttempt(sessionID, attempt, result, err == nil, len(samples))

			if err == nil {
				bestID, bestConf := result.Best()
				log.Printf("[CTRL] attempt %d accepted: best=%d conf=%.3f separation=%.2f",
					attempt, bestID, bestConf, result.Separation)
				c.showResult(req.Options, bestID, bestConf)
				c.finishSession(sessionID, results.OutcomeAccepted, attempt, bestID, bestConf)
				return result, nil
			}
			if !errors.Is(err, scoring.ErrInsufficientSeparation) {
				c.finishSession(sessionID, results.OutcomeAborted, attempt, 0, 0)
				return scoring.RankedResult{}, fmt.Errorf("score: %w", err)
			}

			if attempt >= req.MaxAttempts {
				log.Printf("[CTRL] attempt %d rejected, attempt cap reached", attempt)
				c.finishSession(sessionID, results.OutcomeNoConverge, attempt, 0, 0)
				return scoring.RankedResult{}, ErrNoConvergence
			}

			log.Printf("[CTRL] attempt %d rejected, rescheduling with same order", attempt)
			if err := c.beginBlock(ctx); err != nil {
				c.finishSession(sessionID, results.OutcomeAborted, attempt, 0, 0)
				return scoring.RankedResult{}, err
			}
			wait = c.reset(tr)
		}
	}
}

// step advances the trial under the controller lock, so an operator Abort
// from another goroutine never races a transition.
func (c *Controller) step(tr *trial.Trial) (time.Duration, trial.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	wait := tr.Advance()
	return wait, tr.State()
}

func (c *Controller) reset(tr *trial.Trial) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return tr.Reset()
}

// #endregion

// #region block-helpers

func (c *Controller) beginBlock(ctx context.Context) error {
	if c.source == nil {
		return nil
	}
	if err := c.source.BeginBlock(ctx); err != nil {
		return fmt.Errorf("begin block: %w", err)
	}
	return nil
}

// collectBlock closes the current block and returns its samples,
// synthesizing them when no engine is attached.
func (c *Controller) collectBlock(ctx context.Context, tr *trial.Trial) ([]scoring.FlashSample, error) {
	if c.source == nil {
		return c.sim.Synthesize(tr.Order(), tr.Plan()), nil
	}
	if err := c.source.EndBlock(ctx); err != nil {
		return nil, err
	}
	return c.source.BlockSamples(ctx)
}

// #endregion

// #region outcome-helpers

func (c *Controller) aborted(tr *trial.Trial, sessionID string, attempt int) error {
	c.mu.Lock()
	tr.Abort()
	c.mu.Unlock()
	if c.source != nil {
		// Block bracketing must close even on abort; use a fresh context in
		// case the request's was the cancellation source.
		endCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := c.source.EndBlock(endCtx); err != nil {
			log.Printf("[CTRL] end block on abort: %v", err)
		}
	}
	log.Printf("[CTRL] ranking aborted after %d completed attempts", attempt)
	c.finishSession(sessionID, results.OutcomeAborted, attempt, 0, 0)
	return ErrAborted
}

func (c *Controller) showResult(options []trial.Option, bestID int, bestConf float64) {
	for _, opt := range options {
		if opt.ID == bestID {
			c.display.ShowResult(opt, bestConf)
			return
		}
	}
}

func (c *Controller) recordAttempt(sessionID string, attempt int, result scoring.RankedResult, accepted bool, sampleCount int) {
	if c.store == nil || sessionID == "" {
		return
	}
	rec := results.AttemptRecord{
		SessionID:   sessionID,
		AttemptNum:  attempt,
		Accepted:    accepted,
		Separation:  result.Separation,
		SampleCount: sampleCount,
		OptionIDs:   result.OptionIDs,
		Confidences: result.Confidences,
	}
	if err := c.store.RecordAttempt(rec); err != nil {
		log.Printf("[CTRL] failed to record attempt: %v", err)
	}
}

func (c *Controller) finishSession(sessionID string, outcome results.SessionOutcome, attempts, bestID int, bestConf float64) {
	if c.store == nil || sessionID == "" {
		return
	}
	if err := c.store.FinishSession(sessionID, outcome, attempts, bestID, bestConf); err != nil {
		log.Printf("[CTRL] failed to finish session: %v", err)
	}
}

// #endregion
