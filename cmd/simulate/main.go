package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/perceptml/rsvp/go-controller/internal/replay"
	"github.com/perceptml/rsvp/go-controller/internal/results"
)

// #region main

func main() {
	sessions := flag.Int("sessions", 20, "number of simulated ranking sessions")
	options := flag.Int("options", 4, "options per session")
	minRepeat := flag.Int("min-repeat", 3, "minimum repeat count per option")
	maxRepeat := flag.Int("max-repeat", 7, "maximum repeat count per option")
	attempts := flag.Int("attempts", 5, "attempt cap per session")
	seed := flag.Int64("seed", 1, "rng seed")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	cfg := replay.Config{
		Sessions:    *sessions,
		Options:     *options,
		MinRepeat:   *minRepeat,
		MaxRepeat:   *maxRepeat,
		MaxAttempts: *attempts,
		Seed:        *seed,
	}

	sessionResults, summary, err := replay.Run(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *jsonOut {
		printJSON(sessionResults, summary)
	} else {
		printTable(sessionResults, summary)
	}
}

// #endregion main

// #region output

type jsonReport struct {
	Sessions []replay.SessionResult `json:"sessions"`
	Summary  replay.Summary         `json:"summary"`
}

func printJSON(sessionResults []replay.SessionResult, summary replay.Summary) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jsonReport{Sessions: sessionResults, Summary: summary}); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}
}

func printTable(sessionResults []replay.SessionResult, summary replay.Summary) {
	fmt.Printf("%-8s %-16s %-9s %-8s %-12s %s\n",
		"session", "outcome", "attempts", "best", "confidence", "separation")
	for _, sr := range sessionResults {
		sep := fmt.Sprintf("%.2f", sr.Separation)
		if math.IsInf(sr.Separation, 1) {
			sep = "inf"
		}
		best, conf := "-", "-"
		if sr.Outcome == results.OutcomeAccepted {
			best = fmt.Sprintf("%d", sr.BestID)
			conf = fmt.Sprintf("%.3f", sr.Confidence)
		} else {
			sep = "-"
		}
		fmt.Printf("%-8d %-16s %-9d %-8s %-12s %s\n",
			sr.SessionNum, sr.Outcome, sr.Attempts, best, conf, sep)
	}

	fmt.Printf("\n%d sessions: %d accepted, %d no-convergence\n",
		summary.Sessions, summary.Accepted, summary.NoConvergence)
	fmt.Printf("attempts: %d total, flashes: %d total\n", summary.TotalAttempts, summary.TotalFlashes)
	if summary.MeanSeparation > 0 {
		fmt.Printf("mean separation (accepted, finite): %.2f\n", summary.MeanSeparation)
	}
}

// #endregion output
