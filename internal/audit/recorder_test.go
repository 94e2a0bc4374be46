package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fentz26/easyclaim/internal/claimer"
	"github.com/fentz26/easyclaim/internal/models"
	"github.com/fentz26/easyclaim/internal/remote"
	"github.com/fentz26/easyclaim/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecorder_JournalsRun(t *testing.T) {
	s := newTestStore(t)
	rec := NewRecorder(s, zap.NewNop().Sugar())
	start := time.Now()

	rec.RunStarted(claimer.RunInfo{RunID: "run-1", TaskType: models.TaskTypeAudit, Limit: 10, StartedAt: start})
	rec.UserValidated("run-1", models.UserIdentity{Username: "reviewer01"})
	rec.Iteration(claimer.IterationEvent{RunID: "run-1", Iteration: 1, Listed: 15, Requested: 10, Claimed: 6, Cumulative: 6, TaskIDs: []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, At: start})
	rec.Iteration(claimer.IterationEvent{
		RunID:     "run-1",
		Iteration: 2,
		Requested: 4,
		Rejection: errors.WithStack(&remote.Error{Kind: remote.KindApplication, Op: remote.OpClaim, Errno: 10003, Message: "pending"}),
		At:        start.Add(time.Second),
	})
	rec.RunFinished(claimer.RunResult{RunID: "run-1", Status: models.RunStatusCompleted, Claimed: 6, Attempts: 2, StartedAt: start, EndedAt: start.Add(2 * time.Second)})

	assert.Zero(t, rec.Failures())

	run, err := s.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, "reviewer01", run.Username)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 6, run.Claimed)
	assert.Equal(t, 2, run.Attempts)
	assert.Empty(t, run.ErrorKind)

	events, err := s.ListClaimEvents("run-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Len(t, events[0].TaskIDs, 10)
	assert.Contains(t, events[1].Rejection, "errno 10003")
}

func TestRecorder_AbortedRun(t *testing.T) {
	s := newTestStore(t)
	rec := NewRecorder(s, zap.NewNop().Sugar())
	start := time.Now()

	rec.RunStarted(claimer.RunInfo{RunID: "run-2", TaskType: models.TaskTypeAudit, Limit: 10, StartedAt: start})
	rec.RunFinished(claimer.RunResult{
		RunID:     "run-2",
		Status:    models.RunStatusAborted,
		Err:       errors.WithStack(&remote.Error{Kind: remote.KindAuth, Op: remote.OpUserInfo, Status: 401}),
		StartedAt: start,
		EndedAt:   start,
	})

	run, err := s.GetRun("run-2")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusAborted, run.Status)
	assert.Equal(t, "auth", run.ErrorKind)
	assert.Contains(t, run.Error, "HTTP 401")
}

type failingJournal struct {
	createErr error
	eventErr  error
	calls     int
}

func (f *failingJournal) CreateRun(*models.RunRecord) error { f.calls++; return f.createErr }
func (f *failingJournal) SetRunUser(string, string) error    { f.calls++; return nil }
func (f *failingJournal) RecordClaimEvent(*models.ClaimEvent) error {
	f.calls++
	return f.eventErr
}
func (f *failingJournal) FinishRun(*models.RunRecord) error { f.calls++; return nil }

func TestRecorder_WriteFailuresAreLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	j := &failingJournal{eventErr: errors.New("disk full")}
	rec := NewRecorder(j, zap.New(core).Sugar())

	rec.RunStarted(claimer.RunInfo{RunID: "run-3"})
	assert.NotPanics(t, func() {
		rec.Iteration(claimer.IterationEvent{RunID: "run-3", Iteration: 1})
	})
	rec.RunFinished(claimer.RunResult{RunID: "run-3", Status: models.RunStatusCompleted})

	assert.Equal(t, 1, rec.Failures())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "disk full", logs.All()[0].ContextMap()["error"])
	assert.Equal(t, 3, j.calls)
}

func TestRecorder_DisabledWhenRunRowFails(t *testing.T) {
	j := &failingJournal{createErr: errors.New("read-only")}
	rec := NewRecorder(j, zap.NewNop().Sugar())

	rec.RunStarted(claimer.RunInfo{RunID: "run-4"})
	rec.UserValidated("run-4", models.UserIdentity{Username: "x"})
	rec.Iteration(claimer.IterationEvent{RunID: "run-4", Iteration: 1})
	rec.RunFinished(claimer.RunResult{RunID: "run-4"})

	assert.Equal(t, 1, j.calls)
	assert.Equal(t, 1, rec.Failures())
}
