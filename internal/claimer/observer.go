package claimer

import (
	"time"

	"github.com/fentz26/easyclaim/internal/models"
)

// Observer receives progress and terminal-status events from a run. Methods
// are called synchronously from the run's goroutine and must not block for
// long; the run does no output of its own.
type Observer interface {
	RunStarted(info RunInfo)
	UserValidated(runID string, user models.UserIdentity)
	Iteration(ev IterationEvent)
	RunFinished(res RunResult)
}

// RunInfo describes a run as it starts.
type RunInfo struct {
	RunID     string
	TaskType  models.TaskType
	Limit     int
	Interval  time.Duration
	Filter    models.Filter
	StartedAt time.Time
}

// IterationEvent reports one PerformSingleClaim call.
type IterationEvent struct {
	RunID     string
	Iteration int
	// Listed is the number of tasks the list query returned.
	Listed int
	// Requested is the number of ids submitted, capped at the remaining budget.
	Requested int
	Claimed   int
	// Cumulative is the run's claimed total after this iteration.
	Cumulative int
	Limit      int
	TaskIDs    []int64
	// BudgetReached is set when the iteration skipped the server because the
	// limit was already met.
	BudgetReached bool
	// Rejection is an application error absorbed as zero progress.
	Rejection error
	// Err is a fatal error that ends the run.
	Err error
	At  time.Time
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) RunStarted(RunInfo)                       {}
func (NopObserver) UserValidated(string, models.UserIdentity) {}
func (NopObserver) Iteration(IterationEvent)                 {}
func (NopObserver) RunFinished(RunResult)                    {}

type multiObserver []Observer

// Observers fans events out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var m multiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	switch len(m) {
	case 0:
		return NopObserver{}
	case 1:
		return m[0]
	}
	return m
}

func (m multiObserver) RunStarted(info RunInfo) {
	for _, o := range m {
		o.RunStarted(info)
	}
}

func (m multiObserver) UserValidated(runID string, user models.UserIdentity) {
	for _, o := range m {
		o.UserValidated(runID, user)
	}
}

func (m multiObserver) Iteration(ev IterationEvent) {
	for _, o := range m {
		o.Iteration(ev)
	}
}

func (m multiObserver) RunFinished(res RunResult) {
	for _, o := range m {
		o.RunFinished(res)
	}
}
