package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fentz26/easyclaim/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "journal.db")

	s, err := New(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestNew_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	s, err := New(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.CreateRun(&models.RunRecord{ID: "run-1", TaskType: models.TaskTypeAudit, ClaimLimit: 5}))
	require.NoError(t, s.Close())

	s, err = New(dbPath)
	require.NoError(t, err)
	defer s.Close()

	run, err := s.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, 5, run.ClaimLimit)
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)

	run := &models.RunRecord{ID: "3f2a-run", TaskType: models.TaskTypeProduce, ClaimLimit: 10}
	require.NoError(t, s.CreateRun(run))
	assert.False(t, run.StartedAt.IsZero())

	got, err := s.GetRun("3f2a-run")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, got.Status)
	assert.Equal(t, models.TaskTypeProduce, got.TaskType)
	assert.Nil(t, got.EndedAt)
	assert.Empty(t, got.Username)

	require.NoError(t, s.SetRunUser("3f2a-run", "reviewer01"))

	ended := time.Now().UTC()
	run.Status = models.RunStatusAborted
	run.Claimed = 4
	run.Attempts = 2
	run.ErrorKind = "network"
	run.Error = "list_tasks: network error"
	run.EndedAt = &ended
	require.NoError(t, s.FinishRun(run))

	got, err = s.GetRun("3f2a-run")
	require.NoError(t, err)
	assert.Equal(t, "reviewer01", got.Username)
	assert.Equal(t, models.RunStatusAborted, got.Status)
	assert.Equal(t, 4, got.Claimed)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, "network", got.ErrorKind)
	assert.Equal(t, "list_tasks: network error", got.Error)
	require.NotNil(t, got.EndedAt)
	assert.WithinDuration(t, ended, *got.EndedAt, time.Second)
}

func TestCreateRun_RequiresID(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.CreateRun(&models.RunRecord{TaskType: models.TaskTypeAudit}))
}

func TestUpdateMissingRun(t *testing.T) {
	s := newTestStore(t)

	err := s.SetRunUser("missing", "someone")
	assert.True(t, errors.Is(err, ErrNotFound))

	err = s.FinishRun(&models.RunRecord{ID: "missing", Status: models.RunStatusCompleted})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGetRun_Prefix(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"abc-111", "abc-222", "abd-333"} {
		require.NoError(t, s.CreateRun(&models.RunRecord{ID: id, TaskType: models.TaskTypeAudit}))
	}

	got, err := s.GetRun("abd")
	require.NoError(t, err)
	assert.Equal(t, "abd-333", got.ID)

	_, err = s.GetRun("abc")
	assert.True(t, errors.Is(err, ErrAmbiguous))

	_, err = s.GetRun("zzz")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGetRun_PrefixIsLiteral(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"a_c-1", "abc-2", "x%z-3"} {
		require.NoError(t, s.CreateRun(&models.RunRecord{ID: id, TaskType: models.TaskTypeAudit}))
	}

	got, err := s.GetRun("a_")
	require.NoError(t, err)
	assert.Equal(t, "a_c-1", got.ID)

	got, err = s.GetRun("x%")
	require.NoError(t, err)
	assert.Equal(t, "x%z-3", got.ID)

	_, err = s.GetRun("%")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		require.NoError(t, s.CreateRun(&models.RunRecord{
			ID:        id,
			TaskType:  models.TaskTypeAudit,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := s.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "third", runs[0].ID)
	assert.Equal(t, "first", runs[2].ID)

	runs, err = s.ListRuns(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestClaimEvents(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateRun(&models.RunRecord{ID: "run-1", TaskType: models.TaskTypeAudit, ClaimLimit: 10}))

	first := &models.ClaimEvent{RunID: "run-1", Iteration: 1, Listed: 15, Requested: 10, Claimed: 7, Cumulative: 7, TaskIDs: []int64{101, 102, 103}}
	second := &models.ClaimEvent{RunID: "run-1", Iteration: 2, Rejection: "claim: application error (errno 10003)"}
	require.NoError(t, s.RecordClaimEvent(second))
	require.NoError(t, s.RecordClaimEvent(first))
	assert.NotEmpty(t, first.ID)

	events, err := s.ListClaimEvents("run-1")
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, 1, events[0].Iteration)
	assert.Equal(t, []int64{101, 102, 103}, events[0].TaskIDs)
	assert.Equal(t, 7, events[0].Claimed)
	assert.Empty(t, events[0].Rejection)

	assert.Equal(t, 2, events[1].Iteration)
	assert.Empty(t, events[1].TaskIDs)
	assert.Contains(t, events[1].Rejection, "10003")

	none, err := s.ListClaimEvents("other")
	require.NoError(t, err)
	assert.Empty(t, none)
}
