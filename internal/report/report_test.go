package report

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fentz26/easyclaim/internal/claimer"
	"github.com/fentz26/easyclaim/internal/models"
	"github.com/fentz26/easyclaim/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(level zapcore.Level) (*LogObserver, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewLogObserver(zap.New(core).Sugar()), logs
}

func TestLogObserver_Progress(t *testing.T) {
	o, logs := newObserved(zapcore.InfoLevel)

	o.RunStarted(claimer.RunInfo{RunID: "r1", TaskType: models.TaskTypeAudit, Limit: 10, Interval: 3 * time.Second})
	o.UserValidated("r1", models.UserIdentity{Username: "reviewer01"})
	o.Iteration(claimer.IterationEvent{RunID: "r1", Iteration: 1, Listed: 15, Requested: 10, Claimed: 10, Cumulative: 10, Limit: 10})
	o.Iteration(claimer.IterationEvent{RunID: "r1", Iteration: 2})

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, "Run started", entries[0].Message)
	assert.Equal(t, "3s", entries[0].ContextMap()["interval"])
	assert.Equal(t, "reviewer01", entries[1].ContextMap()["user"])

	claimed := entries[2].ContextMap()
	assert.Equal(t, "Claimed tasks", entries[2].Message)
	assert.EqualValues(t, 10, claimed["claimed"])
	assert.EqualValues(t, 15, claimed["listed"])

	assert.Equal(t, "No tasks available", entries[3].Message)
}

func TestLogObserver_RejectionIsWarning(t *testing.T) {
	o, logs := newObserved(zapcore.InfoLevel)

	rejection := errors.WithHint(
		errors.WithStack(&remote.Error{Kind: remote.KindApplication, Op: remote.OpClaim, Errno: 10003, Message: "pending"}),
		"finish pending review tasks before claiming new ones",
	)
	o.Iteration(claimer.IterationEvent{RunID: "r1", Iteration: 3, Requested: 2, Rejection: rejection})

	warns := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warns, 1)
	fields := warns[0].ContextMap()
	assert.EqualValues(t, 10003, fields["errno"])
	assert.Equal(t, "finish pending review tasks before claiming new ones", fields["hint"])
}

func TestLogObserver_RunFinished(t *testing.T) {
	o, logs := newObserved(zapcore.InfoLevel)
	start := time.Now()

	o.RunFinished(claimer.RunResult{RunID: "r1", Status: models.RunStatusCompleted, Claimed: 4, Limit: 10, StartedAt: start, EndedAt: start.Add(time.Second)})

	authErr := errors.WithStack(&remote.Error{Kind: remote.KindAuth, Op: remote.OpUserInfo, Status: 401})
	o.RunFinished(claimer.RunResult{RunID: "r2", Status: models.RunStatusAborted, Err: authErr, StartedAt: start, EndedAt: start})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Run completed", entries[0].Message)
	assert.EqualValues(t, 1000, entries[0].ContextMap()["duration_ms"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "auth", entries[1].ContextMap()["error_kind"])
}

func TestLogObserver_DebugDetail(t *testing.T) {
	o, logs := newObserved(zapcore.DebugLevel)

	o.Iteration(claimer.IterationEvent{RunID: "r1", Iteration: 1, Requested: 2, Claimed: 2, TaskIDs: []int64{7, 9}})
	o.Iteration(claimer.IterationEvent{RunID: "r1", Iteration: 2, BudgetReached: true})

	ids := logs.FilterMessage("Claimed ids").All()
	require.Len(t, ids, 1)
	assert.Equal(t, "7,9", ids[0].ContextMap()["task_ids"])
	assert.Equal(t, 1, logs.FilterMessage("Limit already reached").Len())
}

func TestErrorKindName(t *testing.T) {
	assert.Equal(t, "", ErrorKindName(nil))
	assert.Equal(t, "network", ErrorKindName(errors.WithStack(&remote.Error{Kind: remote.KindNetwork})))
	assert.Equal(t, "canceled", ErrorKindName(errors.Wrap(context.Canceled, "wait")))
	inFlight := errors.WithStack(&remote.Error{Kind: remote.KindNetwork, Op: remote.OpClaim, Err: context.Canceled})
	assert.Equal(t, "canceled", ErrorKindName(inFlight))
	assert.Equal(t, "internal", ErrorKindName(errors.New("boom")))
}
