package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/perceptml/rsvp/go-controller/internal/acquisition"
	"github.com/perceptml/rsvp/go-controller/internal/controller"
	"github.com/perceptml/rsvp/go-controller/internal/results"
	"github.com/perceptml/rsvp/go-controller/internal/trial"
)

// #region console-display

// consoleDisplay is a textual stand-in for the real rendering surface.
type consoleDisplay struct{}

func (consoleDisplay) ShowPreview(options []trial.Option) {
	fmt.Printf("  [preview] %d options\n", len(options))
}

func (consoleDisplay) ShowFlash(flashIndex int, o trial.Option) {
	fmt.Printf("  [flash %3d] option %d\n", flashIndex, o.ID)
}

func (consoleDisplay) ShowResult(o trial.Option, conf float64) {
	fmt.Printf("  [result] option %d (confidence %.3f)\n", o.ID, conf)
}

// #endregion

// #region main

func main() {
	dbPath := envOr("RSVP_DB", "rsvp_results.db")
	engineAddr := envOr("ENGINE_ADDR", "localhost:4444")
	simulate := os.Getenv("RSVP_SIMULATE") == "true"

	store, err := results.NewStore(dbPath)
	if err != nil {
		log.Fatalf("failed to open results store: %v", err)
	}
	defer store.Close()

	var source acquisition.SignalSource
	if simulate {
		log.Println("SIMULATION MODE: no acquisition engine attached")
	} else {
		client, err := acquisition.NewEngineClient(engineAddr)
		if err != nil {
			log.Fatalf("failed to connect to acquisition engine at %s: %v", engineAddr, err)
		}
		defer client.Close()
		source = client
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	display := consoleDisplay{}
	ctrl := controller.New(display, source, store, rng)

	fmt.Println("RSVP controller ready.")
	fmt.Printf("  DB: %s | Engine: %s | Simulate: %v\n", dbPath, engineAddr, simulate)
	fmt.Println("Enter comma-separated option IDs to rank (or 'quit' to exit):")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}

		options, err := parseOptions(line)
		if err != nil {
			fmt.Printf("bad input: %v\n", err)
			continue
		}

		result, err := ctrl.Rank(context.Background(), controller.Request{Options: options})
		switch {
		case err == nil:
			fmt.Printf("ranking: %v\nconfidences: %s\n", result.OptionIDs, formatConfidences(result.Confidences))
		case errors.Is(err, controller.ErrNoConvergence):
			fmt.Println("no convergence: every attempt was rejected")
		case errors.Is(err, controller.ErrAborted):
			fmt.Println("ranking aborted")
		default:
			log.Printf("ranking error: %v", err)
		}
	}
}

// #endregion

// #region helpers

func parseOptions(line string) ([]trial.Option, error) {
	parts := strings.Split(line, ",")
	options := make([]trial.Option, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("option id %q is not an integer", p)
		}
		options = append(options, trial.Option{ID: id})
	}
	return options, nil
}

func formatConfidences(confs []float64) string {
	parts := make([]string, len(confs))
	for i, c := range confs {
		parts[i] = fmt.Sprintf("%.3f", c)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion
