package replay

import (
	"context"
	"math"
	"testing"

	"github.com/perceptml/rsvp/go-controller/internal/results"
)

func TestRun_SummaryAccounting(t *testing.T) {
	cfg := Config{
		Sessions:    5,
		Options:     3,
		MinRepeat:   3,
		MaxRepeat:   3,
		MaxAttempts: 3,
		Seed:        42,
	}

	sessions, summary, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sessions) != cfg.Sessions || summary.Sessions != cfg.Sessions {
		t.Fatalf("sessions = %d/%d, want %d", len(sessions), summary.Sessions, cfg.Sessions)
	}
	if summary.Accepted+summary.NoConvergence != cfg.Sessions {
		t.Errorf("outcomes %d+%d do not cover %d sessions",
			summary.Accepted, summary.NoConvergence, cfg.Sessions)
	}

	totalAttempts := 0
	for _, sr := range sessions {
		if sr.Attempts < 1 || sr.Attempts > cfg.MaxAttempts {
			t.Errorf("session %d attempts = %d, want in [1,%d]", sr.SessionNum, sr.Attempts, cfg.MaxAttempts)
		}
		totalAttempts += sr.Attempts
		if sr.Outcome == results.OutcomeAccepted {
			if sr.BestID < 1 || sr.BestID > cfg.Options {
				t.Errorf("session %d best id = %d out of range", sr.SessionNum, sr.BestID)
			}
			if !math.IsInf(sr.Separation, 1) && sr.Separation < 2 {
				t.Errorf("session %d accepted with separation %v", sr.SessionNum, sr.Separation)
			}
		}
	}
	if summary.TotalAttempts != totalAttempts {
		t.Errorf("summary attempts = %d, want %d", summary.TotalAttempts, totalAttempts)
	}
	// 3 options x 3 repeats = 9 flashes per attempt.
	if summary.TotalFlashes != totalAttempts*9 {
		t.Errorf("flashes = %d, want %d", summary.TotalFlashes, totalAttempts*9)
	}
}

func TestRun_DeterministicForSeed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sessions = 3

	a, _, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i].Outcome != b[i].Outcome || a[i].BestID != b[i].BestID || a[i].Attempts != b[i].Attempts {
			t.Fatalf("session %d diverged across identical seeds: %+v vs %+v", i+1, a[i], b[i])
		}
	}
}
