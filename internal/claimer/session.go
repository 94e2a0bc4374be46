package claimer

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fentz26/easyclaim/internal/models"
	"github.com/fentz26/easyclaim/internal/remote"
)

// Session is the runtime state of one claiming run. It is written only by the
// claimer's own loop and discarded when the run ends.
type Session struct {
	RunID string
	// Credential is the cookie the run was configured with. It is kept for
	// inspection only; the Remote holds the copy sent on the wire.
	Credential string
	Limit      int
	Claimed    int
	Attempts   int
}

// Remaining returns the budget left in this run.
func (s Session) Remaining() int {
	if r := s.Limit - s.Claimed; r > 0 {
		return r
	}
	return 0
}

// Exhausted reports whether the limit has been reached.
func (s Session) Exhausted() bool {
	return s.Remaining() == 0
}

// State is the phase of a run.
type State int32

const (
	StateIdle State = iota
	StateValidating
	StatePolling
	StateClaiming
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StatePolling:
		return "polling"
	case StateClaiming:
		return "claiming"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// RunResult is the terminal status of a run. Claimed is reported on every
// termination path so partial progress before an abort is never lost.
type RunResult struct {
	RunID      string
	Status     models.RunStatus
	Username   string
	Claimed    int
	Limit      int
	Attempts   int
	Iterations int
	Err        error
	StartedAt  time.Time
	EndedAt    time.Time
}

// Completed reports whether the run ended without a fatal error.
func (r RunResult) Completed() bool {
	return r.Status == models.RunStatusCompleted
}

// ErrorKind returns the remote classification of the abort reason, or 0 when
// the run completed or was canceled.
func (r RunResult) ErrorKind() remote.Kind {
	if r.Err == nil || errors.Is(r.Err, context.Canceled) {
		return 0
	}
	return remote.KindOf(r.Err)
}

// Duration is the wall time of the run.
func (r RunResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}
