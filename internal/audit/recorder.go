// Package audit writes claiming runs to the journal as they happen.
package audit

import (
	"sync"

	"github.com/fentz26/easyclaim/internal/claimer"
	"github.com/fentz26/easyclaim/internal/logger"
	"github.com/fentz26/easyclaim/internal/models"
	"github.com/fentz26/easyclaim/internal/report"
	"go.uber.org/zap"
)

// Journal is the storage the recorder writes to. *store.Store implements it.
type Journal interface {
	CreateRun(run *models.RunRecord) error
	SetRunUser(id, username string) error
	RecordClaimEvent(ev *models.ClaimEvent) error
	FinishRun(run *models.RunRecord) error
}

// Recorder is a claimer.Observer that journals each run. Write failures are
// logged and never interrupt the run; if the run row cannot be created the
// rest of the run is not journaled.
type Recorder struct {
	journal Journal
	log     *zap.SugaredLogger

	mu       sync.Mutex
	run      *models.RunRecord
	disabled bool
	failures int
}

var _ claimer.Observer = (*Recorder)(nil)

// NewRecorder creates a recorder writing to j.
func NewRecorder(j Journal, log *zap.SugaredLogger) *Recorder {
	return &Recorder{journal: j, log: log}
}

// Failures returns the number of journal writes that failed.
func (r *Recorder) Failures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures
}

func (r *Recorder) RunStarted(info claimer.RunInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.run = &models.RunRecord{
		ID:         info.RunID,
		TaskType:   info.TaskType,
		ClaimLimit: info.Limit,
		Status:     models.RunStatusRunning,
		StartedAt:  info.StartedAt.UTC(),
	}
	r.disabled = false
	if err := r.journal.CreateRun(r.run); err != nil {
		r.fail("create run", info.RunID, err)
		r.disabled = true
	}
}

func (r *Recorder) UserValidated(runID string, user models.UserIdentity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disabled {
		return
	}
	if r.run != nil {
		r.run.Username = user.Username
	}
	if err := r.journal.SetRunUser(runID, user.Username); err != nil {
		r.fail("set run user", runID, err)
	}
}

func (r *Recorder) Iteration(ev claimer.IterationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disabled {
		return
	}

	entry := &models.ClaimEvent{
		RunID:      ev.RunID,
		Iteration:  ev.Iteration,
		Listed:     ev.Listed,
		Requested:  ev.Requested,
		Claimed:    ev.Claimed,
		Cumulative: ev.Cumulative,
		TaskIDs:    ev.TaskIDs,
		CreatedAt:  ev.At.UTC(),
	}
	if ev.Rejection != nil {
		entry.Rejection = ev.Rejection.Error()
	}
	if err := r.journal.RecordClaimEvent(entry); err != nil {
		r.fail("record claim event", ev.RunID, err)
	}
}

func (r *Recorder) RunFinished(res claimer.RunResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disabled {
		return
	}

	run := r.run
	if run == nil || run.ID != res.RunID {
		run = &models.RunRecord{ID: res.RunID}
	}
	ended := res.EndedAt.UTC()
	run.Status = res.Status
	run.Claimed = res.Claimed
	run.Attempts = res.Attempts
	run.EndedAt = &ended
	if res.Err != nil {
		run.Error = res.Err.Error()
		run.ErrorKind = report.ErrorKindName(res.Err)
	}
	if err := r.journal.FinishRun(run); err != nil {
		r.fail("finish run", res.RunID, err)
	}
}

func (r *Recorder) fail(op, runID string, err error) {
	r.failures++
	r.log.Warnw("Journal write failed",
		logger.FieldRunID, runID,
		"op", op,
		logger.FieldError, err.Error(),
	)
}
