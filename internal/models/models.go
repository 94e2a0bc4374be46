// Package models defines the core domain types for easyclaim.
package models

import (
	"strconv"
	"time"
)

// TaskType selects which task pool is listed and claimed.
type TaskType string

const (
	TaskTypeAudit   TaskType = "audittask"
	TaskTypeProduce TaskType = "producetask"
)

// Valid reports whether t is a task type the remote API accepts.
func (t TaskType) Valid() bool {
	return t == TaskTypeAudit || t == TaskTypeProduce
}

// CommitEndpoint returns the path segment used to submit claims for t.
func (t TaskType) CommitEndpoint() string {
	if t == TaskTypeProduce {
		return "producetaskcommit"
	}
	return "audittaskcommit"
}

// ClaimIDLabel names the identifier claims are submitted with.
func (t TaskType) ClaimIDLabel() string {
	if t == TaskTypeProduce {
		return "ClueID"
	}
	return "TaskID"
}

// Filter selects the claimable tasks returned by a list query.
// Fields are forwarded verbatim as query parameters.
type Filter struct {
	TaskType TaskType `json:"taskType"`
	Subject  int      `json:"subject"`
	Step     int      `json:"step"`
	ClueType int      `json:"clueType"`
	ClueID   string   `json:"clueID,omitempty"`
	Page     int      `json:"pn"`
	PageSize int      `json:"rn"`
}

// UserIdentity is the account behind the session credential.
type UserIdentity struct {
	Username  string   `json:"userName"`
	RoleNames []string `json:"roleNames"`
	RoleLinks []string `json:"roleLinks"`
	Avatar    string   `json:"avatar"`
}

// TaskDescriptor is a snapshot of one claimable task at query time.
// The task may already be gone by the time a claim is submitted.
type TaskDescriptor struct {
	TaskID       int64  `json:"taskID"`
	ClueID       int64  `json:"clueID"`
	Brief        string `json:"brief"`
	Step         int    `json:"step"`
	StepName     string `json:"stepName"`
	Subject      int    `json:"subject"`
	SubjectName  string `json:"subjectName"`
	ClueType     int    `json:"clueType"`
	ClueTypeName string `json:"clueTypeName"`
	State        int    `json:"state"`
	StateName    string `json:"stateName"`
	CreateTime   string `json:"createTime"`
	DispatchTime string `json:"dispatchTime,omitempty"`
}

// ClaimID returns the identifier the claim endpoint for taskType expects.
func (t TaskDescriptor) ClaimID(taskType TaskType) int64 {
	if taskType == TaskTypeProduce {
		return t.ClueID
	}
	return t.TaskID
}

// ClaimOutcome is the server's answer to one claim submission.
type ClaimOutcome struct {
	Requested int    `json:"requested"`
	Claimed   int    `json:"claimed"`
	Errno     int    `json:"errno"`
	Message   string `json:"message"`
}

// RunStatus is the terminal status of a claiming run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusAborted   RunStatus = "aborted"
)

// RunRecord is a journaled claiming run.
type RunRecord struct {
	ID         string     `json:"id"`
	Username   string     `json:"username,omitempty"`
	TaskType   TaskType   `json:"task_type"`
	ClaimLimit int        `json:"claim_limit"`
	Status     RunStatus  `json:"status"`
	Claimed    int        `json:"claimed"`
	Attempts   int        `json:"attempts"`
	ErrorKind  string     `json:"error_kind,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// ClaimEvent is a journaled iteration of a claiming run.
type ClaimEvent struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id"`
	Iteration  int       `json:"iteration"`
	Listed     int       `json:"listed"`
	Requested  int       `json:"requested"`
	Claimed    int       `json:"claimed"`
	Cumulative int       `json:"cumulative"`
	TaskIDs    []int64   `json:"task_ids"`
	Rejection  string    `json:"rejection,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// FormatIDs renders ids the way the remote API logs them.
func FormatIDs(ids []int64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatInt(id, 10)
	}
	return out
}
