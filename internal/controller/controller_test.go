package controller

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/perceptml/rsvp/go-controller/internal/results"
	"github.com/perceptml/rsvp/go-controller/internal/scoring"
	"github.com/perceptml/rsvp/go-controller/internal/trial"
)

// #region fakes

// immediateClock fires every timer at once so a run completes synchronously.
type immediateClock struct{}

func (immediateClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

// gatedClock hands the test control over every timer fire.
type gatedClock struct {
	armed chan chan time.Time
}

func newGatedClock() *gatedClock {
	return &gatedClock{armed: make(chan chan time.Time, 64)}
}

func (g *gatedClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	g.armed <- ch
	return ch
}

type fakeDisplay struct {
	previews int
	flashes  int
	results  []int
}

func (d *fakeDisplay) ShowPreview(options []trial.Option)       { d.previews++ }
func (d *fakeDisplay) ShowFlash(flashIndex int, o trial.Option) { d.flashes++ }
func (d *fakeDisplay) ShowResult(o trial.Option, conf float64)  { d.results = append(d.results, o.ID) }

// flatSource always returns indistinguishable samples, so every scoring
// pass is rejected.
type flatSource struct {
	begins, ends, marks int
	order               []int
}

func (s *flatSource) BeginBlock(ctx context.Context) error { s.begins++; return nil }
func (s *flatSource) EndBlock(ctx context.Context) error   { s.ends++; return nil }
func (s *flatSource) MarkFlash(flashIndex int)             { s.marks++ }

func (s *flatSource) BlockSamples(ctx context.Context) ([]scoring.FlashSample, error) {
	samples := make([]scoring.FlashSample, s.marks)
	for i := range samples {
		samples[i] = scoring.FlashSample{FlashIndex: i%len(s.order) + 1, Value: 2.0}
	}
	return samples, nil
}

func testOptions(n int) []trial.Option {
	opts := make([]trial.Option, n)
	for i := range opts {
		opts[i] = trial.Option{ID: 100 + i}
	}
	return opts
}

func fastRequest(n int) Request {
	return Request{
		Options:   testOptions(n),
		Timing:    trial.Timing{Preview: time.Millisecond, Flash: time.Millisecond},
		MinRepeat: 3,
		MaxRepeat: 3,
	}
}

func tempStore(t *testing.T) *results.Store {
	t.Helper()
	s, err := results.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// #endregion

func TestRank_SimulatedAcceptFirstAttempt(t *testing.T) {
	display := &fakeDisplay{}
	store := tempStore(t)
	c := New(display, nil, store, rand.New(rand.NewSource(1)))
	c.clock = immediateClock{}
	c.sim.Target = 0

	result, err := c.Rank(context.Background(), fastRequest(3))
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if id, _ := result.Best(); id != 100 {
		t.Errorf("best = %d, want simulated target 100", id)
	}
	if display.previews != 1 || display.flashes != 9 {
		t.Errorf("display saw %d previews, %d flashes; want 1, 9", display.previews, display.flashes)
	}
	if len(display.results) != 1 || display.results[0] != 100 {
		t.Errorf("ShowResult calls = %v, want [100]", display.results)
	}

	sessions, err := store.RecentSessions(5)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	if sessions[0].Outcome != results.OutcomeAccepted || sessions[0].Attempts != 1 {
		t.Errorf("session = %+v", sessions[0])
	}
	if sessions[0].BestOptionID != 100 {
		t.Errorf("best option id = %d, want 100", sessions[0].BestOptionID)
	}
}

func TestRank_EmptyOptionsRefused(t *testing.T) {
	c := New(&fakeDisplay{}, nil, nil, rand.New(rand.NewSource(2)))
	c.clock = immediateClock{}

	_, err := c.Rank(context.Background(), Request{})
	if !errors.Is(err, ErrEmptyOptions) {
		t.Fatalf("err = %v, want ErrEmptyOptions", err)
	}
}

func TestRank_RejectionRetriesWithSameOrderThenGivesUp(t *testing.T) {
	display := &fakeDisplay{}
	store := tempStore(t)
	source := &flatSource{order: make([]int, 9)}
	c := New(display, source, store, rand.New(rand.NewSource(3)))
	c.clock = immediateClock{}

	req := fastRequest(3)
	req.MaxAttempts = 3

	_, err := c.Rank(context.Background(), req)
	if !errors.Is(err, ErrNoConvergence) {
		t.Fatalf("err = %v, want ErrNoConvergence", err)
	}

	// One block per attempt, one preview per attempt, identical flash totals.
	if source.begins != 3 || source.ends != 3 {
		t.Errorf("blocks = %d/%d, want 3/3", source.begins, source.ends)
	}
	if display.previews != 3 {
		t.Errorf("previews = %d, want one per attempt", display.previews)
	}
	if display.flashes != 27 {
		t.Errorf("flashes = %d, want 9 per attempt", display.flashes)
	}
	if len(display.results) != 0 {
		t.Errorf("ShowResult called on a non-converged run")
	}

	sessions, err := store.RecentSessions(5)
	if err != nil {
		t.Fatal(err)
	}
	if sessions[0].Outcome != results.OutcomeNoConverge || sessions[0].Attempts != 3 {
		t.Errorf("session = %+v", sessions[0])
	}
	attempts, err := store.SessionAttempts(sessions[0].SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 3 {
		t.Fatalf("recorded %d attempts, want 3", len(attempts))
	}
	for _, a := range attempts {
		if a.Accepted {
			t.Errorf("attempt %d recorded as accepted", a.AttemptNum)
		}
	}
}

func TestRank_ContextCancelAborts(t *testing.T) {
	c := New(&fakeDisplay{}, nil, nil, rand.New(rand.NewSource(4)))
	c.clock = immediateClock{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Rank(ctx, fastRequest(2))
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("err = %v, want ErrAborted", err)
	}
	if c.Busy() {
		t.Error("controller still busy after abort")
	}
}

func TestRank_BusyWhileInFlight(t *testing.T) {
	clock := newGatedClock()
	c := New(&fakeDisplay{}, nil, nil, rand.New(rand.NewSource(5)))
	c.clock = clock

	done := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_, err := c.Rank(ctx, fastRequest(2))
		done <- err
	}()

	// First timer armed: the trial is in flight.
	fire := <-clock.armed
	if !c.Busy() {
		t.Error("controller not busy with trial in flight")
	}
	if _, err := c.Rank(context.Background(), fastRequest(2)); !errors.Is(err, ErrBusy) {
		t.Errorf("concurrent request err = %v, want ErrBusy", err)
	}

	cancel()
	fire <- time.Time{}
	if err := <-done; !errors.Is(err, ErrAborted) {
		t.Errorf("first request err = %v, want ErrAborted", err)
	}
	if c.Busy() {
		t.Error("controller still busy after completion")
	}
}

func TestRank_OperatorAbort(t *testing.T) {
	clock := newGatedClock()
	c := New(&fakeDisplay{}, nil, nil, rand.New(rand.NewSource(6)))
	c.clock = clock

	done := make(chan error, 1)
	go func() {
		_, err := c.Rank(context.Background(), fastRequest(2))
		done <- err
	}()

	fire := <-clock.armed
	c.Abort()
	fire <- time.Time{}

	if err := <-done; !errors.Is(err, ErrAborted) {
		t.Errorf("err = %v, want ErrAborted after operator abort", err)
	}
}

func TestRank_DefaultsApplied(t *testing.T) {
	req := Request{Options: testOptions(1)}
	req.applyDefaults()
	if req.MinRepeat != defaultMinRepeat || req.MaxRepeat != defaultMaxRepeat {
		t.Errorf("repeat bounds = [%d,%d], want defaults", req.MinRepeat, req.MaxRepeat)
	}
	if req.MaxAttempts != defaultMaxAttempts {
		t.Errorf("max attempts = %d, want %d", req.MaxAttempts, defaultMaxAttempts)
	}
	if req.Timing.Flash == 0 {
		t.Error("timing defaults not applied")
	}
}
