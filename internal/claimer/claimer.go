// Package claimer runs the claiming loop: it validates the session, polls the
// task list, submits claims within the configured budget and decides when a
// run is complete or must be aborted.
package claimer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fentz26/easyclaim/internal/config"
	"github.com/fentz26/easyclaim/internal/models"
	"github.com/fentz26/easyclaim/internal/remote"
	"github.com/google/uuid"
)

// Remote is the task API as the claimer uses it. *remote.Client implements it.
type Remote interface {
	FetchUserInfo(ctx context.Context) (*models.UserIdentity, error)
	ListTasks(ctx context.Context, filter models.Filter) ([]models.TaskDescriptor, error)
	SubmitClaim(ctx context.Context, ids []int64, taskType models.TaskType) (*models.ClaimOutcome, error)
}

// ErrAlreadyRun is returned when Run is called twice on the same Claimer.
var ErrAlreadyRun = errors.New("claimer already ran; create a new one per run")

// Claimer owns one run's session. Calls must not be made concurrently.
type Claimer struct {
	remote   Remote
	observer Observer

	taskType models.TaskType
	filter   models.Filter
	interval time.Duration

	session Session
	state   atomic.Int32
}

// New creates a claimer for cfg. The session credential is copied from cfg;
// obs may be nil.
func New(cfg *config.Config, rc Remote, obs Observer) *Claimer {
	return &Claimer{
		remote:   rc,
		observer: Observers(obs),
		taskType: cfg.TaskType,
		filter:   cfg.Filter(),
		interval: cfg.IntervalDuration(),
		session: Session{
			RunID:      uuid.New().String(),
			Credential: cfg.Cookie,
			Limit:      cfg.Limit,
		},
	}
}

// Session returns a snapshot of the run state.
func (c *Claimer) Session() Session {
	return c.session
}

// State returns the current phase. Safe to call from any goroutine.
func (c *Claimer) State() State {
	return State(c.state.Load())
}

func (c *Claimer) setState(s State) {
	c.state.Store(int32(s))
}

// ValidateUser checks the session credential and returns the username.
// Failures are returned as-is and never retried.
func (c *Claimer) ValidateUser(ctx context.Context) (string, error) {
	user, err := c.remote.FetchUserInfo(ctx)
	if err != nil {
		return "", remoteErr(ctx, err, "validate user")
	}
	c.observer.UserValidated(c.session.RunID, *user)
	return user.Username, nil
}

// PerformSingleClaim runs one iteration: list tasks, submit a claim for at
// most the remaining budget, and account for the result. It returns 0 when
// the budget is already met, no tasks are available or the server rejected
// the claim. Network, protocol and auth failures are returned.
func (c *Claimer) PerformSingleClaim(ctx context.Context) (int, error) {
	c.session.Attempts++
	ev := IterationEvent{
		RunID:      c.session.RunID,
		Iteration:  c.session.Attempts,
		Cumulative: c.session.Claimed,
		Limit:      c.session.Limit,
	}
	emit := func() {
		ev.At = time.Now()
		c.observer.Iteration(ev)
	}

	remaining := c.session.Remaining()
	if remaining == 0 {
		ev.BudgetReached = true
		emit()
		return 0, nil
	}

	c.setState(StatePolling)
	tasks, err := c.remote.ListTasks(ctx, c.filter)
	if err != nil {
		if remote.KindOf(err) == remote.KindApplication {
			ev.Rejection = err
			emit()
			return 0, nil
		}
		ev.Err = remoteErr(ctx, err, "list tasks")
		emit()
		return 0, ev.Err
	}
	ev.Listed = len(tasks)

	ids := claimIDs(tasks, c.taskType, remaining)
	if len(ids) == 0 {
		emit()
		return 0, nil
	}
	ev.Requested = len(ids)
	ev.TaskIDs = ids

	c.setState(StateClaiming)
	outcome, err := c.remote.SubmitClaim(ctx, ids, c.taskType)
	if err != nil {
		if remote.KindOf(err) == remote.KindApplication {
			ev.Rejection = err
			emit()
			return 0, nil
		}
		ev.Err = remoteErr(ctx, err, "claim tasks")
		emit()
		return 0, ev.Err
	}
	if outcome.Claimed < 0 || outcome.Claimed > len(ids) {
		ev.Err = remote.NewProtocolError(remote.OpClaim,
			errors.Newf("claimed %d of %d requested", outcome.Claimed, len(ids)))
		emit()
		return 0, ev.Err
	}

	c.session.Claimed += outcome.Claimed
	ev.Claimed = outcome.Claimed
	ev.Cumulative = c.session.Claimed
	emit()
	return outcome.Claimed, nil
}

// remoteErr wraps a failed remote call. A call cut short by ctx is reported
// as the cancellation, not as the transport failure it caused.
func remoteErr(ctx context.Context, err error, msg string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Wrap(ctxErr, msg)
	}
	return errors.Wrap(err, msg)
}

// claimIDs picks the ids to submit, never more than budget.
func claimIDs(tasks []models.TaskDescriptor, taskType models.TaskType, budget int) []int64 {
	n := len(tasks)
	if n > budget {
		n = budget
	}
	ids := make([]int64, 0, n)
	for _, t := range tasks[:n] {
		ids = append(ids, t.ClaimID(taskType))
	}
	return ids
}

// Run executes a full session: validate the user once, then claim until the
// budget is met, no tasks remain, a fatal error occurs or ctx is canceled.
// The returned result is never nil and always carries the claimed total;
// the error is non-nil exactly when the run aborted.
func (c *Claimer) Run(ctx context.Context) (*RunResult, error) {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateValidating)) {
		return nil, ErrAlreadyRun
	}

	res := &RunResult{
		RunID:     c.session.RunID,
		Limit:     c.session.Limit,
		StartedAt: time.Now(),
	}
	c.observer.RunStarted(RunInfo{
		RunID:     c.session.RunID,
		TaskType:  c.taskType,
		Limit:     c.session.Limit,
		Interval:  c.interval,
		Filter:    c.filter,
		StartedAt: res.StartedAt,
	})

	username, err := c.ValidateUser(ctx)
	if err != nil {
		return c.finish(res, err)
	}
	res.Username = username

	pace := newPacer(c.interval)
	for {
		if err := ctx.Err(); err != nil {
			return c.finish(res, err)
		}
		c.setState(StatePolling)
		if err := pace.Wait(ctx); err != nil {
			return c.finish(res, err)
		}

		claimed, err := c.PerformSingleClaim(ctx)
		res.Iterations++
		if err != nil {
			return c.finish(res, err)
		}
		if claimed == 0 || c.session.Exhausted() {
			return c.finish(res, nil)
		}
	}
}

func (c *Claimer) finish(res *RunResult, err error) (*RunResult, error) {
	res.Claimed = c.session.Claimed
	res.Attempts = c.session.Attempts
	res.EndedAt = time.Now()
	res.Err = err
	if err != nil {
		res.Status = models.RunStatusAborted
		c.setState(StateAborted)
	} else {
		res.Status = models.RunStatusCompleted
		c.setState(StateCompleted)
	}
	c.observer.RunFinished(*res)
	return res, err
}
