package upload

import (
	"time"

	"studiocast/internal/services"
)

// State is a position in the upload state machine.
type State string

const (
	StateQueued         State = "Queued"
	StateSessionReady   State = "SessionReady"
	StateFileReady      State = "FileReady"
	StateFormOpened     State = "FormOpened"
	StateMetadataFilled State = "MetadataFilled"
	StateTogglesApplied State = "TogglesApplied"
	StateSubmitted      State = "Submitted"
	StateVerified       State = "Verified"
	StateDone           State = "Done"
	StateFailed         State = "Failed"
)

var nextState = map[State]State{
	StateQueued:         StateSessionReady,
	StateSessionReady:   StateFileReady,
	StateFileReady:      StateFormOpened,
	StateFormOpened:     StateMetadataFilled,
	StateMetadataFilled: StateTogglesApplied,
	StateTogglesApplied: StateSubmitted,
	StateSubmitted:      StateVerified,
	StateVerified:       StateDone,
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Next returns the state a successful transition from s reaches.
func (s State) Next() (State, bool) {
	next, ok := nextState[s]
	return next, ok
}

// resumeState is where a retry of a failed transition out of s starts.
func resumeState(s State) State {
	switch s {
	case StateFileReady, StateFormOpened, StateMetadataFilled, StateTogglesApplied:
		return StateFileReady
	default:
		return s
	}
}

// Transition is one entry of an attempt's history.
type Transition struct {
	From State
	To   State
	At   time.Time
	// Err is set when the transition failed; To is then the resume state or
	// Failed.
	Err  string
	Kind services.Kind
}

// Attempt is the ephemeral record of one job execution.
type Attempt struct {
	ID         string
	Account    string
	RowIndex   int
	State      State
	Tries      map[State]int
	Failures   int
	LastErr    error
	History    []Transition
	StartedAt  time.Time
	FinishedAt time.Time
}

func newAttempt(id, account string, row int, now time.Time) *Attempt {
	return &Attempt{
		ID:        id,
		Account:   account,
		RowIndex:  row,
		State:     StateQueued,
		Tries:     make(map[State]int),
		StartedAt: now,
	}
}

// TotalTries sums tries across all transitions.
func (a *Attempt) TotalTries() int {
	total := 0
	for _, n := range a.Tries {
		total += n
	}
	return total
}

func (a *Attempt) advance(to State, at time.Time) {
	a.History = append(a.History, Transition{From: a.State, To: to, At: at})
	a.State = to
}

func (a *Attempt) fail(to State, at time.Time, err error) {
	a.Failures++
	a.LastErr = err
	a.History = append(a.History, Transition{
		From: a.State,
		To:   to,
		At:   at,
		Err:  err.Error(),
		Kind: services.KindOf(err),
	})
	a.State = to
}

// Result is the outcome of Machine.Run.
type Result struct {
	State State
	URL   string
	// Kind is empty for Done.
	Kind services.Kind
	Err  error
	// WriteErr is set when a Done upload could not be recorded in the job
	// source. The row is left InProgress.
	WriteErr error
	Attempt  *Attempt
	// Source is the local file that was uploaded or fetched, if any.
	Source     string
	Downloaded bool
}

// LastActive returns the state the attempt was working from when it last
// moved, which for a failed attempt is where it stopped.
func (a *Attempt) LastActive() State {
	for i := len(a.History) - 1; i >= 0; i-- {
		if a.History[i].From != StateFailed {
			return a.History[i].From
		}
	}
	return a.State
}
