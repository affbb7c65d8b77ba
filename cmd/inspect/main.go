package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/perceptml/rsvp/go-controller/internal/results"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to rsvp_results.db")
	last := flag.Int("last", 20, "show N most recent sessions")
	session := flag.String("session", "", "show one session's attempts")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/rsvp_results.db [--last N] [--session id] [--json]")
		os.Exit(2)
	}

	store, err := results.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *session != "" {
		err = runAttemptMode(store, *session, *jsonOut)
	} else {
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

func runListMode(store *results.Store, last int, jsonOut bool) error {
	sessions, err := store.RecentSessions(last)
	if err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sessions)
	}

	fmt.Printf("%-36s %-16s %-8s %-9s %-7s %s\n",
		"session", "outcome", "options", "attempts", "best", "created")
	for _, s := range sessions {
		best := "-"
		if s.Outcome == results.OutcomeAccepted {
			best = fmt.Sprintf("%d", s.BestOptionID)
		}
		fmt.Printf("%-36s %-16s %-8d %-9d %-7s %s\n",
			s.SessionID, s.Outcome, s.OptionCount, s.Attempts, best,
			s.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// #endregion list-mode

// #region attempt-mode

func runAttemptMode(store *results.Store, sessionID string, jsonOut bool) error {
	attempts, err := store.SessionAttempts(sessionID)
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		return fmt.Errorf("no attempts recorded for session %s", sessionID)
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(attempts)
	}

	for _, a := range attempts {
		verdict := "rejected"
		if a.Accepted {
			verdict = "accepted"
		}
		fmt.Printf("attempt %d: %s (separation %.2f, %d samples)\n",
			a.AttemptNum, verdict, a.Separation, a.SampleCount)
		fmt.Printf("  ranking:     %v\n", a.OptionIDs)
		fmt.Printf("  confidences: %v\n", a.Confidences)
	}
	return nil
}

// #endregion attempt-mode
