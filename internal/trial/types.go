package trial

// #region imports
import (
	"time"
)

// #endregion

// #region state

// State is the lifecycle phase of a Trial.
type State int

const (
	StateInit State = iota
	StatePreview
	StateRunning
	StateCompleted
	StateAborted
)

var stateNames = map[State]string{
	StateInit:      "init",
	StatePreview:   "preview",
	StateRunning:   "running",
	StateCompleted: "completed",
	StateAborted:   "aborted",
}

// String returns the lowercase state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transitions are possible without Reset.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

// #endregion

// #region option

// Option is one candidate stimulus being ranked. Stimulus is an opaque
// handle owned by the caller; the core never inspects it, only forwards it
// to the Display.
type Option struct {
	ID       int
	Stimulus any
}

// #endregion

// #region timing

// Timing configures how long the preview and each flash stay on screen.
type Timing struct {
	Preview time.Duration
	Flash   time.Duration
}

// DefaultTiming matches a 4 Hz presentation rate with a 5 s preview.
func DefaultTiming() Timing {
	return Timing{
		Preview: 5 * time.Second,
		Flash:   250 * time.Millisecond,
	}
}

// #endregion

// #region collaborators

// Display renders trial content. Implementations own all pixel-level
// concerns; the core only tells them what to show.
type Display interface {
	// ShowPreview presents the full option set at once (e.g. as a grid).
	ShowPreview(options []Option)
	// ShowFlash presents a single option. flashIndex is 1-based and
	// monotonically increasing across the RUNNING phase.
	ShowFlash(flashIndex int, option Option)
	// ShowResult presents the winning option after an accepted trial.
	ShowResult(option Option, confidence float64)
}

// FlashMarker is notified that a new unlabeled flash has begun, before the
// flash's wait time is returned, so the next-arriving signal sample can be
// attributed to the correct flash index.
type FlashMarker interface {
	MarkFlash(flashIndex int)
}

// #endregion
